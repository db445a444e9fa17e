// Package scheduler drives the processing pipeline on a cron schedule
// over a configured company universe. Each cycle discovers earnings
// report dates from the price feed's calendar, waits for events to
// settle so a post-event close exists, and evaluates each event exactly
// once per process lifetime.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/rewired-gh/contraledger/internal/models"
	"github.com/rewired-gh/contraledger/internal/pipeline"
	"github.com/rewired-gh/contraledger/internal/prices"
)

const (
	// DefaultSchedule runs one cycle every day at 06:00.
	DefaultSchedule = "0 0 6 * * *"

	// settleDays is how many days past its report date an event must be
	// before evaluation, so the price series can bracket the event.
	settleDays = 2

	// catchupDays extends the calendar window backward so an event whose
	// cycle was missed is still picked up on a later day.
	catchupDays = 3

	// defaultCycleTimeout bounds one processing cycle.
	defaultCycleTimeout = 30 * time.Minute

	// processedRetention bounds the processed-event record. Events leave
	// the calendar window long before this expires.
	processedRetention = 30 * 24 * time.Hour
)

// EarningsCalendar discovers earnings report dates for a set of symbols.
type EarningsCalendar interface {
	UpcomingEarnings(ctx context.Context, symbols []string, from, to time.Time) ([]prices.EarningsReport, error)
}

// Runner executes one pipeline run over a batch of events.
type Runner interface {
	Run(ctx context.Context, events []models.EarningsEvent) (pipeline.RunResult, error)
}

// Alerter reports cycle failures and recovery to an operator channel.
type Alerter interface {
	SendError(err error) error
	SendRecovery(failures int) error
}

// Config holds the watch universe and timing.
type Config struct {
	// Companies maps price-feed symbols to company display names used
	// for article search ("AAPL.US" -> "Apple").
	Companies map[string]string

	// Schedule is a six-field cron expression.
	Schedule string

	// LookaheadDays is how far ahead the calendar query looks, so
	// upcoming reports show up in the logs before they settle.
	LookaheadDays int

	// CycleTimeout bounds one processing cycle.
	CycleTimeout time.Duration
}

// Scheduler runs discovery-and-evaluation cycles on a cron schedule.
type Scheduler struct {
	runner   Runner
	calendar EarningsCalendar
	alerter  Alerter
	cfg      Config
	cron     *cron.Cron
	logger   arbor.ILogger

	mu        sync.Mutex
	processed map[string]time.Time
	failures  int
}

// New creates a scheduler. The alerter may be nil to disable alerts.
func New(runner Runner, calendar EarningsCalendar, alerter Alerter, cfg Config, logger arbor.ILogger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler requires a pipeline runner")
	}
	if calendar == nil {
		return nil, errors.New("scheduler requires an earnings calendar")
	}
	if len(cfg.Companies) == 0 {
		return nil, errors.New("scheduler requires at least one company to watch")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.LookaheadDays < 0 {
		cfg.LookaheadDays = 0
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = defaultCycleTimeout
	}

	return &Scheduler{
		runner:    runner,
		calendar:  calendar,
		alerter:   alerter,
		cfg:       cfg,
		cron:      cron.New(cron.WithSeconds()),
		logger:    logger,
		processed: make(map[string]time.Time),
	}, nil
}

// Start begins the scheduled cycles.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, s.runCycle)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.cfg.Schedule, err)
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.cfg.Schedule).
		Int("companies", len(s.cfg.Companies)).
		Msg("Watch scheduler started")
	return nil
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Watch scheduler stopped")
}

// RunNow triggers an immediate cycle.
func (s *Scheduler) RunNow() {
	s.logger.Info().Msg("Triggering immediate watch cycle")
	go s.runCycle()
}

func (s *Scheduler) runCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CycleTimeout)
	defer cancel()

	s.handleResult(s.Cycle(ctx))
}

// Cycle runs one discovery-and-evaluation pass: query the earnings
// calendar around today, evaluate watched events that have settled and
// were not processed before, and log the upcoming ones.
func (s *Scheduler) Cycle(ctx context.Context) error {
	s.pruneProcessed()

	today := dayOf(time.Now().UTC())
	from := today.AddDate(0, 0, -(settleDays + catchupDays))
	to := today.AddDate(0, 0, s.cfg.LookaheadDays)

	reports, err := s.calendar.UpcomingEarnings(ctx, s.symbols(), from, to)
	if err != nil {
		return fmt.Errorf("querying earnings calendar: %w", err)
	}

	events := s.selectEvents(reports, today)
	if len(events) == 0 {
		s.logger.Info().
			Int("reports", len(reports)).
			Msg("No earnings events ready for evaluation")
		return nil
	}

	result, err := s.runner.Run(ctx, events)
	s.markProcessed(result.Events)
	return err
}

func (s *Scheduler) symbols() []string {
	symbols := make([]string, 0, len(s.cfg.Companies))
	for symbol := range s.cfg.Companies {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// selectEvents picks the calendar reports ready for evaluation: watched
// symbols whose report date has settled and whose event was not already
// processed. Reports the calendar returns for unwatched symbols are
// ignored.
func (s *Scheduler) selectEvents(reports []prices.EarningsReport, today time.Time) []models.EarningsEvent {
	cutoff := today.AddDate(0, 0, -settleDays)

	var events []models.EarningsEvent
	for _, report := range reports {
		name, watched := s.cfg.Companies[report.Code]
		if !watched {
			continue
		}
		if name == "" {
			name = baseTicker(report.Code)
		}
		event := models.EarningsEvent{Company: name, Symbol: report.Code, Date: report.ReportDate}

		if report.ReportDate.After(cutoff) {
			s.logger.Info().
				Str("symbol", report.Code).
				Str("report_date", report.ReportDate.Format("2006-01-02")).
				Msg("Earnings report not settled yet")
			continue
		}
		if s.alreadyProcessed(event.Key()) {
			continue
		}
		events = append(events, event)
	}
	return events
}

func (s *Scheduler) alreadyProcessed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[key]
	return ok
}

// markProcessed records events that ran without an operational failure
// so later cycles do not merge them again. The record is process-local:
// after a restart, a settled event still inside the calendar window gets
// merged a second time.
func (s *Scheduler) markProcessed(results []pipeline.EventResult) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		if r.Err == nil {
			s.processed[r.Event.Key()] = now
		}
	}
}

func (s *Scheduler) pruneProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, at := range s.processed {
		if time.Since(at) > processedRetention {
			delete(s.processed, key)
		}
	}
}

// handleResult tracks consecutive cycle failures, alerting once when a
// failure streak starts and once when it ends.
func (s *Scheduler) handleResult(err error) {
	if err != nil {
		s.mu.Lock()
		s.failures++
		first := s.failures == 1
		s.mu.Unlock()

		s.logger.Error().Err(err).Msg("Watch cycle failed")
		if first && s.alerter != nil {
			if sendErr := s.alerter.SendError(err); sendErr != nil {
				s.logger.Warn().Err(sendErr).Msg("Failed to send failure alert")
			}
		}
		return
	}

	s.mu.Lock()
	recovered := s.failures
	s.failures = 0
	s.mu.Unlock()

	if recovered > 0 && s.alerter != nil {
		if sendErr := s.alerter.SendRecovery(recovered); sendErr != nil {
			s.logger.Warn().Err(sendErr).Msg("Failed to send recovery alert")
		}
	}
}

// baseTicker trims the exchange suffix from a symbol ("AAPL.US" -> "AAPL").
func baseTicker(symbol string) string {
	if i := strings.IndexByte(symbol, '.'); i > 0 {
		return symbol[:i]
	}
	return symbol
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
