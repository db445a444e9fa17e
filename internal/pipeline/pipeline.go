// Package pipeline runs the end-to-end evaluation for a batch of earnings
// events: fetch pre-earnings press coverage, classify each article into an
// opinion, tally the per-event consensus, score contrarians against the
// realized price outcome, and fold the findings into the author ledger.
//
// Per-event failures are recorded on the event's result and do not abort
// the batch; the run as a whole fails only when every event failed or the
// final ledger merge could not commit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/rewired-gh/contraledger/internal/adapter"
	"github.com/rewired-gh/contraledger/internal/classify"
	"github.com/rewired-gh/contraledger/internal/export"
	"github.com/rewired-gh/contraledger/internal/guardian"
	"github.com/rewired-gh/contraledger/internal/ledger"
	"github.com/rewired-gh/contraledger/internal/models"
	"github.com/rewired-gh/contraledger/internal/outcome"
	"github.com/rewired-gh/contraledger/internal/query"
	"github.com/rewired-gh/contraledger/internal/scorer"
	"github.com/rewired-gh/contraledger/internal/telegram"
)

const (
	// DefaultLookbackDays is the article search window before an event.
	DefaultLookbackDays = 14

	// Price window around the event date used for outcome resolution. The
	// pre side is wide enough to always contain a trading day; the post
	// side covers the first sessions after the report.
	preWindowDays  = 7
	postWindowDays = 5

	// digestTopLimit is how many top performers a run digest carries.
	digestTopLimit = 5
)

// ArticleSource retrieves pre-earnings press coverage for a company.
type ArticleSource interface {
	PreEarningsArticles(ctx context.Context, company string, earningsDate time.Time, lookbackDays int) ([]guardian.Article, error)
}

// OpinionClassifier extracts a commentator opinion from one article.
type OpinionClassifier interface {
	ClassifyArticle(ctx context.Context, company string, article guardian.Article) (*classify.Classification, error)
}

// PriceSource retrieves daily closes for outcome resolution.
type PriceSource interface {
	DailyCloses(ctx context.Context, symbol string, from, to time.Time) ([]models.PricePoint, error)
}

// Notifier delivers the digest of one run.
type Notifier interface {
	SendDigest(digest telegram.Digest) error
}

// Deps are the collaborators a Pipeline is assembled from. Articles,
// Classifier, Prices, Scorer, Ledger, and Logger are required; Runs and
// Notifier may be nil to disable exports or notifications.
type Deps struct {
	Articles   ArticleSource
	Classifier OpinionClassifier
	Prices     PriceSource
	Scorer     *scorer.Scorer
	Ledger     *ledger.Ledger
	Runs       *export.RunWriter
	Notifier   Notifier
	Logger     arbor.ILogger
}

// Options are the per-pipeline tunables.
type Options struct {
	// LookbackDays is the article search window before each event date.
	LookbackDays int

	// MoveThresholdPct separates a meet from a beat or miss.
	MoveThresholdPct float64

	// DryRun evaluates and exports without merging into the ledger or
	// sending notifications.
	DryRun bool

	// Version is stamped into run metadata.
	Version string
}

// EventResult is the outcome of processing one earnings event. Err is set
// only for operational failures; an event with no usable coverage yields
// an empty result with a nil Err.
type EventResult struct {
	Event    models.EarningsEvent
	Articles int
	Opinions int
	Rejected int
	Findings []models.ContrarianFinding
	Outcome  *models.ActualOutcome
	Err      error
}

// RunResult summarizes one pipeline run across all its events.
type RunResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Events     []EventResult
	Findings   []models.ContrarianFinding
	Stats      ledger.MergeStats
	OutputDir  string
}

// Pipeline executes evaluation runs over batches of earnings events.
type Pipeline struct {
	deps    Deps
	opts    Options
	queries *query.Service
}

// New assembles a pipeline from its collaborators.
func New(deps Deps, opts Options) (*Pipeline, error) {
	switch {
	case deps.Articles == nil:
		return nil, errors.New("pipeline requires an article source")
	case deps.Classifier == nil:
		return nil, errors.New("pipeline requires a classifier")
	case deps.Prices == nil:
		return nil, errors.New("pipeline requires a price source")
	case deps.Scorer == nil:
		return nil, errors.New("pipeline requires a scorer")
	case deps.Ledger == nil:
		return nil, errors.New("pipeline requires a ledger")
	case deps.Logger == nil:
		return nil, errors.New("pipeline requires a logger")
	}

	if opts.LookbackDays <= 0 {
		opts.LookbackDays = DefaultLookbackDays
	}
	if opts.MoveThresholdPct <= 0 {
		opts.MoveThresholdPct = outcome.DefaultMoveThresholdPct
	}

	return &Pipeline{
		deps:    deps,
		opts:    opts,
		queries: query.New(deps.Ledger.Store()),
	}, nil
}

// Run evaluates the given events and commits the findings. Returns an
// error when no event could be processed or the ledger merge failed;
// individual event failures are reported on the result instead.
func (p *Pipeline) Run(ctx context.Context, events []models.EarningsEvent) (RunResult, error) {
	if len(events) == 0 {
		return RunResult{}, errors.New("no events to process")
	}
	for i := range events {
		if err := events[i].Validate(); err != nil {
			return RunResult{}, fmt.Errorf("event %d: %w", i, err)
		}
	}

	result := RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	p.deps.Logger.Info().
		Str("run_id", result.RunID).
		Int("events", len(events)).
		Bool("dry_run", p.opts.DryRun).
		Msg("Starting pipeline run")

	failed := 0
	for _, event := range events {
		eventResult := p.processEvent(ctx, event)
		if eventResult.Err != nil {
			failed++
			p.deps.Logger.Error().
				Err(eventResult.Err).
				Str("event", event.Key()).
				Msg("Event processing failed")
		}
		result.Events = append(result.Events, eventResult)
		result.Findings = append(result.Findings, eventResult.Findings...)
	}
	if failed == len(events) {
		result.FinishedAt = time.Now().UTC()
		return result, fmt.Errorf("all %d events failed", len(events))
	}

	if !p.opts.DryRun && len(result.Findings) > 0 {
		stats, err := p.deps.Ledger.Merge(result.Findings)
		if err != nil {
			result.FinishedAt = time.Now().UTC()
			return result, fmt.Errorf("merging findings: %w", err)
		}
		result.Stats = stats
	}

	if p.deps.Runs != nil && totalOpinions(result.Events) > 0 {
		dir, err := p.export(result)
		if err != nil {
			p.deps.Logger.Error().Err(err).Msg("Run export failed")
		} else {
			result.OutputDir = dir
		}
	}

	if p.deps.Notifier != nil && !p.opts.DryRun && len(result.Findings) > 0 {
		if err := p.deps.Notifier.SendDigest(p.buildDigest(result)); err != nil {
			p.deps.Logger.Error().Err(err).Msg("Digest notification failed")
		}
	}

	result.FinishedAt = time.Now().UTC()
	p.deps.Logger.Info().
		Str("run_id", result.RunID).
		Int("findings", len(result.Findings)).
		Int("contrarians", countContrarians(result.Findings)).
		Int("failed_events", failed).
		Msg("Pipeline run completed")
	return result, nil
}

// processEvent runs one event through fetch, classify, adapt, resolve,
// and score. An unresolvable outcome is not a failure; the findings just
// carry unknown correctness until the price series brackets the event.
func (p *Pipeline) processEvent(ctx context.Context, event models.EarningsEvent) EventResult {
	result := EventResult{Event: event}
	log := p.deps.Logger

	log.Info().
		Str("company", event.Company).
		Str("symbol", event.Symbol).
		Str("date", event.Date.Format("2006-01-02")).
		Msg("Processing earnings event")

	articles, err := p.deps.Articles.PreEarningsArticles(ctx, event.Company, event.Date, p.opts.LookbackDays)
	if err != nil {
		result.Err = fmt.Errorf("fetching articles: %w", err)
		return result
	}
	result.Articles = len(articles)
	if len(articles) == 0 {
		log.Info().Str("event", event.Key()).Msg("No pre-earnings coverage found")
		return result
	}

	raws := make([]adapter.RawOpinion, 0, len(articles))
	for _, article := range articles {
		classification, err := p.deps.Classifier.ClassifyArticle(ctx, event.Company, article)
		if err != nil {
			if ctx.Err() != nil {
				result.Err = fmt.Errorf("classifying articles: %w", err)
				return result
			}
			log.Warn().
				Err(err).
				Str("headline", article.Headline).
				Msg("Article classification failed, skipping")
			continue
		}
		raws = append(raws, adapter.RawOpinion{
			Author:      classification.Author,
			Sentiment:   classification.Sentiment,
			Prediction:  classification.Prediction,
			Confidence:  classification.Confidence,
			SourceID:    article.URL,
			EventKey:    event.Key(),
			PublishedAt: article.PublishedAt,
		})
	}

	opinions, rejected := adapter.AdaptBatch(raws)
	result.Opinions = len(opinions)
	result.Rejected = len(rejected)
	for _, recordErr := range rejected {
		log.Debug().
			Err(recordErr).
			Str("event", event.Key()).
			Msg("Opinion rejected by adapter")
	}
	if len(opinions) == 0 {
		log.Warn().
			Str("event", event.Key()).
			Int("articles", len(articles)).
			Msg("No classifiable opinions in coverage")
		return result
	}

	actual := p.resolveOutcome(ctx, event)
	result.Outcome = actual

	findings, err := p.deps.Scorer.EvaluateBatch(event, opinions, actual)
	if err != nil {
		result.Err = fmt.Errorf("evaluating opinions: %w", err)
		return result
	}
	result.Findings = findings

	log.Info().
		Str("event", event.Key()).
		Int("articles", result.Articles).
		Int("opinions", result.Opinions).
		Int("contrarians", countContrarians(findings)).
		Bool("resolved", actual != nil).
		Msg("Event evaluated")
	return result
}

// resolveOutcome fetches the close series around the event and derives the
// realized result. Any failure here degrades to an unresolved outcome
// rather than failing the event; correctness stays unknown until a later
// run can resolve it.
func (p *Pipeline) resolveOutcome(ctx context.Context, event models.EarningsEvent) *models.ActualOutcome {
	from := event.Date.AddDate(0, 0, -preWindowDays)
	to := event.Date.AddDate(0, 0, postWindowDays)

	points, err := p.deps.Prices.DailyCloses(ctx, event.Symbol, from, to)
	if err != nil {
		p.deps.Logger.Warn().
			Err(err).
			Str("event", event.Key()).
			Msg("Price fetch failed, outcome stays unresolved")
		return nil
	}

	actual, err := outcome.FromPriceWindow(event.Key(), event.Date, points, p.opts.MoveThresholdPct)
	if err != nil {
		p.deps.Logger.Warn().
			Err(err).
			Str("event", event.Key()).
			Msg("Outcome resolution failed, outcome stays unresolved")
		return nil
	}
	if actual == nil {
		p.deps.Logger.Info().
			Str("event", event.Key()).
			Msg("Price series does not bracket the event date yet")
	}
	return actual
}

// export writes the run folder: findings dashboard, master ledger
// snapshot, and metadata.
func (p *Pipeline) export(result RunResult) (string, error) {
	entries, err := p.deps.Ledger.Store().All()
	if err != nil {
		return "", fmt.Errorf("reading ledger for export: %w", err)
	}

	summary := export.RunSummary{
		RunID:             result.RunID,
		StartedAt:         result.StartedAt,
		FinishedAt:        time.Now().UTC(),
		Events:            eventKeys(result.Events),
		ArticlesProcessed: totalArticles(result.Events),
		OpinionsEvaluated: totalOpinions(result.Events),
		ContrariansFound:  countContrarians(result.Findings),
		EntriesCreated:    result.Stats.EntriesCreated,
		EntriesUpdated:    result.Stats.EntriesUpdated,
		DryRun:            p.opts.DryRun,
		Errors:            eventErrors(result.Events),
		Version:           p.opts.Version,
	}
	summary.DurationSeconds = summary.FinishedAt.Sub(summary.StartedAt).Seconds()

	return p.deps.Runs.WriteRun(summary, result.Findings, entries)
}

// buildDigest assembles the notification material for one run.
func (p *Pipeline) buildDigest(result RunResult) telegram.Digest {
	digest := telegram.Digest{RunAt: result.StartedAt}

	for _, eventResult := range result.Events {
		if eventResult.Err != nil {
			continue
		}
		summary := telegram.EventSummary{
			Company:  eventResult.Event.Company,
			Symbol:   eventResult.Event.Symbol,
			EventKey: eventResult.Event.Key(),
			Opinions: eventResult.Opinions,
			Outcome:  eventResult.Outcome,
		}
		for _, finding := range eventResult.Findings {
			if finding.IsContrarian {
				summary.Contrarians = append(summary.Contrarians, finding)
			}
		}
		digest.Events = append(digest.Events, summary)
	}

	top, err := p.queries.Top(digestTopLimit, query.SortBySuccessRate)
	if err != nil {
		p.deps.Logger.Warn().Err(err).Msg("Top performer lookup for digest failed")
	} else {
		digest.Top = top
	}
	return digest
}

func countContrarians(findings []models.ContrarianFinding) int {
	n := 0
	for _, f := range findings {
		if f.IsContrarian {
			n++
		}
	}
	return n
}

func totalArticles(events []EventResult) int {
	n := 0
	for _, e := range events {
		n += e.Articles
	}
	return n
}

func totalOpinions(events []EventResult) int {
	n := 0
	for _, e := range events {
		n += e.Opinions
	}
	return n
}

func eventKeys(events []EventResult) []string {
	keys := make([]string, 0, len(events))
	for _, e := range events {
		keys = append(keys, e.Event.Key())
	}
	return keys
}

func eventErrors(events []EventResult) []string {
	var errs []string
	for _, e := range events {
		if e.Err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", e.Event.Key(), e.Err))
		}
	}
	return errs
}
