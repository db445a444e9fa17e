package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rewired-gh/contraledger/internal/logger"
	"github.com/rewired-gh/contraledger/internal/models"
	"github.com/rewired-gh/contraledger/internal/pipeline"
	"github.com/rewired-gh/contraledger/internal/prices"
)

type fakeCalendar struct {
	reports []prices.EarningsReport
	err     error

	symbols [][]string
	from    time.Time
	to      time.Time
}

func (f *fakeCalendar) UpcomingEarnings(_ context.Context, symbols []string, from, to time.Time) ([]prices.EarningsReport, error) {
	f.symbols = append(f.symbols, symbols)
	f.from, f.to = from, to
	if f.err != nil {
		return nil, f.err
	}
	return f.reports, nil
}

type fakeRunner struct {
	batches  [][]models.EarningsEvent
	err      error
	eventErr error
}

func (f *fakeRunner) Run(_ context.Context, events []models.EarningsEvent) (pipeline.RunResult, error) {
	f.batches = append(f.batches, events)
	var result pipeline.RunResult
	for _, e := range events {
		result.Events = append(result.Events, pipeline.EventResult{Event: e, Err: f.eventErr})
	}
	return result, f.err
}

type fakeAlerter struct {
	errors     []error
	recoveries []int
}

func (f *fakeAlerter) SendError(err error) error {
	f.errors = append(f.errors, err)
	return nil
}

func (f *fakeAlerter) SendRecovery(failures int) error {
	f.recoveries = append(f.recoveries, failures)
	return nil
}

func watchConfig() Config {
	return Config{
		Companies: map[string]string{
			"AAPL.US": "Apple",
			"MSFT.US": "Microsoft",
		},
		LookaheadDays: 1,
	}
}

func TestCycle_SelectsSettledUnprocessedEvents(t *testing.T) {
	settled := dayOf(time.Now().UTC()).AddDate(0, 0, -3)
	upcoming := dayOf(time.Now().UTC()).AddDate(0, 0, 1)

	calendar := &fakeCalendar{
		reports: []prices.EarningsReport{
			{Code: "AAPL.US", ReportDate: settled},
			{Code: "MSFT.US", ReportDate: upcoming},
			{Code: "TSLA.US", ReportDate: settled},
		},
	}
	runner := &fakeRunner{}

	s, err := New(runner, calendar, nil, watchConfig(), logger.Get())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := s.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if len(runner.batches) != 1 {
		t.Fatalf("Expected 1 pipeline run, got %d", len(runner.batches))
	}
	events := runner.batches[0]
	if len(events) != 1 {
		t.Fatalf("Expected only the settled watched event, got %d: %+v", len(events), events)
	}
	if events[0].Company != "Apple" || events[0].Symbol != "AAPL.US" {
		t.Errorf("Expected Apple/AAPL.US, got %s/%s", events[0].Company, events[0].Symbol)
	}
	if !events[0].Date.Equal(settled) {
		t.Errorf("Expected event date %v, got %v", settled, events[0].Date)
	}

	if len(calendar.symbols) != 1 {
		t.Fatalf("Expected 1 calendar query, got %d", len(calendar.symbols))
	}
	got := calendar.symbols[0]
	if len(got) != 2 || got[0] != "AAPL.US" || got[1] != "MSFT.US" {
		t.Errorf("Expected sorted watched symbols, got %v", got)
	}
	wantWindow := time.Duration(settleDays+catchupDays+1) * 24 * time.Hour
	if calendar.to.Sub(calendar.from) != wantWindow {
		t.Errorf("Expected a %v calendar window, got %v", wantWindow, calendar.to.Sub(calendar.from))
	}

	// A second cycle must not re-run the processed event.
	if err := s.Cycle(context.Background()); err != nil {
		t.Fatalf("Second cycle failed: %v", err)
	}
	if len(runner.batches) != 1 {
		t.Errorf("Expected no re-run of a processed event, got %d runs", len(runner.batches))
	}
}

func TestCycle_FailedEventsAreRetried(t *testing.T) {
	settled := dayOf(time.Now().UTC()).AddDate(0, 0, -3)
	calendar := &fakeCalendar{
		reports: []prices.EarningsReport{{Code: "AAPL.US", ReportDate: settled}},
	}
	runner := &fakeRunner{
		err:      fmt.Errorf("all 1 events failed"),
		eventErr: fmt.Errorf("content API down"),
	}

	s, err := New(runner, calendar, nil, watchConfig(), logger.Get())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := s.Cycle(context.Background()); err == nil {
		t.Fatal("Expected the cycle to surface the run error")
	}

	// The failed event was not marked processed, so the next cycle
	// retries it.
	runner.err = nil
	runner.eventErr = nil
	if err := s.Cycle(context.Background()); err != nil {
		t.Fatalf("Retry cycle failed: %v", err)
	}
	if len(runner.batches) != 2 {
		t.Fatalf("Expected the event to be retried, got %d runs", len(runner.batches))
	}
}

func TestCycle_FallsBackToTickerName(t *testing.T) {
	settled := dayOf(time.Now().UTC()).AddDate(0, 0, -3)
	calendar := &fakeCalendar{
		reports: []prices.EarningsReport{{Code: "NVDA.US", ReportDate: settled}},
	}
	runner := &fakeRunner{}

	cfg := Config{Companies: map[string]string{"NVDA.US": ""}}
	s, err := New(runner, calendar, nil, cfg, logger.Get())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := s.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if len(runner.batches) != 1 || len(runner.batches[0]) != 1 {
		t.Fatalf("Expected 1 event, got %+v", runner.batches)
	}
	if runner.batches[0][0].Company != "NVDA" {
		t.Errorf("Expected ticker fallback NVDA, got %s", runner.batches[0][0].Company)
	}
}

func TestCycle_CalendarErrorPropagates(t *testing.T) {
	calendar := &fakeCalendar{err: fmt.Errorf("calendar unavailable")}
	runner := &fakeRunner{}

	s, err := New(runner, calendar, nil, watchConfig(), logger.Get())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := s.Cycle(context.Background()); err == nil {
		t.Fatal("Expected calendar error to fail the cycle")
	}
	if len(runner.batches) != 0 {
		t.Errorf("Expected no pipeline run, got %d", len(runner.batches))
	}
}

func TestHandleResult_AlertsOnceAndRecovers(t *testing.T) {
	alerter := &fakeAlerter{}
	s, err := New(&fakeRunner{}, &fakeCalendar{}, alerter, watchConfig(), logger.Get())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cycleErr := fmt.Errorf("cycle broke")
	s.handleResult(cycleErr)
	s.handleResult(cycleErr)
	if len(alerter.errors) != 1 {
		t.Errorf("Expected exactly one failure alert, got %d", len(alerter.errors))
	}

	s.handleResult(nil)
	if len(alerter.recoveries) != 1 || alerter.recoveries[0] != 2 {
		t.Errorf("Expected one recovery alert after 2 failures, got %v", alerter.recoveries)
	}

	s.handleResult(nil)
	if len(alerter.recoveries) != 1 {
		t.Errorf("Expected no recovery alert without preceding failures, got %v", alerter.recoveries)
	}
}

func TestNew_Validation(t *testing.T) {
	log := logger.Get()

	if _, err := New(nil, &fakeCalendar{}, nil, watchConfig(), log); err == nil {
		t.Error("Expected an error without a runner")
	}
	if _, err := New(&fakeRunner{}, nil, nil, watchConfig(), log); err == nil {
		t.Error("Expected an error without a calendar")
	}
	if _, err := New(&fakeRunner{}, &fakeCalendar{}, nil, Config{}, log); err == nil {
		t.Error("Expected an error without companies")
	}

	s, err := New(&fakeRunner{}, &fakeCalendar{}, nil, watchConfig(), log)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.cfg.Schedule != DefaultSchedule {
		t.Errorf("Expected default schedule, got %q", s.cfg.Schedule)
	}
	if s.cfg.CycleTimeout != defaultCycleTimeout {
		t.Errorf("Expected default cycle timeout, got %v", s.cfg.CycleTimeout)
	}
}

func TestStart_RejectsInvalidSchedule(t *testing.T) {
	cfg := watchConfig()
	cfg.Schedule = "not a cron spec"

	s, err := New(&fakeRunner{}, &fakeCalendar{}, nil, cfg, logger.Get())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Fatal("Expected an error for an invalid schedule")
	}
}
