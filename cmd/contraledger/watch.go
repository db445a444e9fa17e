package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/contraledger/internal/scheduler"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the earnings calendar and evaluate events on a schedule",
	Long: `Run continuously: on every scheduled tick, query the earnings calendar
for the configured companies, wait for each report to settle so a post-report
close exists, then evaluate it through the pipeline and merge the results into
the author ledger. Events are processed once per process lifetime.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	if len(cfg.Watch.Companies) == 0 {
		return fmt.Errorf("watch.companies must list at least one symbol")
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	// A nil *telegram.Client stored in the interface would not compare
	// equal to nil inside the scheduler, so only assign when enabled.
	var alerter scheduler.Alerter
	if a.telegram != nil {
		alerter = a.telegram
	}

	sched, err := scheduler.New(a.pipeline, a.prices, alerter, scheduler.Config{
		Companies:     cfg.Watch.Companies,
		Schedule:      cfg.Watch.Schedule,
		LookaheadDays: cfg.Watch.LookaheadDays,
	}, log)
	if err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}

	fmt.Printf("👀 Watching %d companies on schedule %q\n", len(cfg.Watch.Companies), cfg.Watch.Schedule)
	sched.RunNow()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down watcher")
	sched.Stop()
	return nil
}
