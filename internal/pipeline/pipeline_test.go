package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rewired-gh/contraledger/internal/classify"
	"github.com/rewired-gh/contraledger/internal/export"
	"github.com/rewired-gh/contraledger/internal/guardian"
	"github.com/rewired-gh/contraledger/internal/ledger"
	"github.com/rewired-gh/contraledger/internal/logger"
	"github.com/rewired-gh/contraledger/internal/models"
	"github.com/rewired-gh/contraledger/internal/scorer"
	"github.com/rewired-gh/contraledger/internal/telegram"
)

type fakeArticles struct {
	byCompany map[string][]guardian.Article
	failFor   map[string]error
}

func (f *fakeArticles) PreEarningsArticles(_ context.Context, company string, _ time.Time, _ int) ([]guardian.Article, error) {
	if err := f.failFor[company]; err != nil {
		return nil, err
	}
	return f.byCompany[company], nil
}

type fakeClassifier struct {
	byURL map[string]classify.Classification
}

func (f *fakeClassifier) ClassifyArticle(_ context.Context, _ string, article guardian.Article) (*classify.Classification, error) {
	c, ok := f.byURL[article.URL]
	if !ok {
		return nil, fmt.Errorf("no classification for %s", article.URL)
	}
	return &c, nil
}

type fakePrices struct {
	points []models.PricePoint
	err    error
}

func (f *fakePrices) DailyCloses(_ context.Context, _ string, _, _ time.Time) ([]models.PricePoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.points, nil
}

type fakeNotifier struct {
	digests []telegram.Digest
}

func (f *fakeNotifier) SendDigest(d telegram.Digest) error {
	f.digests = append(f.digests, d)
	return nil
}

func appleEvent() models.EarningsEvent {
	return models.EarningsEvent{
		Company: "Apple",
		Symbol:  "AAPL.US",
		Date:    time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
	}
}

func appleArticle(url, byline string) guardian.Article {
	return guardian.Article{
		Headline:    "Apple earnings preview",
		Body:        "Analysts weigh in ahead of the quarterly report.",
		Byline:      byline,
		URL:         url,
		PublishedAt: time.Date(2025, 2, 5, 9, 0, 0, 0, time.UTC),
	}
}

// appleFixture covers one event with three classifiable opinions (one
// bullish/beat minority against a bearish/miss majority) plus one article
// whose classification carries no author and gets rejected.
func appleFixture() (*fakeArticles, *fakeClassifier, *fakePrices) {
	articles := &fakeArticles{
		byCompany: map[string][]guardian.Article{
			"Apple": {
				appleArticle("https://example.com/a1", "Jane Smith"),
				appleArticle("https://example.com/a2", "John Doe"),
				appleArticle("https://example.com/a3", "Bob Lee"),
				appleArticle("https://example.com/a4", ""),
			},
		},
		failFor: map[string]error{},
	}
	classifier := &fakeClassifier{
		byURL: map[string]classify.Classification{
			"https://example.com/a1": {Author: "Jane Smith", Sentiment: "bullish", Prediction: "beat", Confidence: "high"},
			"https://example.com/a2": {Author: "John Doe", Sentiment: "bearish", Prediction: "miss", Confidence: "medium"},
			"https://example.com/a3": {Author: "Bob Lee", Sentiment: "bearish", Prediction: "miss", Confidence: "low"},
			"https://example.com/a4": {Sentiment: "bullish", Prediction: "beat"},
		},
	}
	prices := &fakePrices{
		points: []models.PricePoint{
			{Date: time.Date(2025, 2, 7, 0, 0, 0, 0, time.UTC), Close: 100},
			{Date: time.Date(2025, 2, 11, 0, 0, 0, 0, time.UTC), Close: 105},
		},
	}
	return articles, classifier, prices
}

func newTestPipeline(t *testing.T, deps Deps, opts Options) (*Pipeline, *ledger.MemoryStore) {
	t.Helper()
	log := logger.Get()

	store, err := ledger.NewMemoryStore("", log)
	if err != nil {
		t.Fatalf("NewMemoryStore failed: %v", err)
	}
	sc, err := scorer.New(scorer.DefaultConfig())
	if err != nil {
		t.Fatalf("scorer.New failed: %v", err)
	}

	deps.Scorer = sc
	deps.Ledger = ledger.New(store, log)
	deps.Logger = log
	p, err := New(deps, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p, store
}

func TestRun_EndToEnd(t *testing.T) {
	articles, classifier, prices := appleFixture()
	notifier := &fakeNotifier{}
	exportDir := t.TempDir()

	p, store := newTestPipeline(t, Deps{
		Articles:   articles,
		Classifier: classifier,
		Prices:     prices,
		Runs:       export.NewRunWriter(exportDir, logger.Get()),
		Notifier:   notifier,
	}, Options{Version: "test"})

	result, err := p.Run(context.Background(), []models.EarningsEvent{appleEvent()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Events) != 1 {
		t.Fatalf("Expected 1 event result, got %d", len(result.Events))
	}
	eventResult := result.Events[0]
	if eventResult.Err != nil {
		t.Fatalf("Unexpected event error: %v", eventResult.Err)
	}
	if eventResult.Articles != 4 {
		t.Errorf("Expected 4 articles, got %d", eventResult.Articles)
	}
	if eventResult.Opinions != 3 {
		t.Errorf("Expected 3 adapted opinions, got %d", eventResult.Opinions)
	}
	if eventResult.Rejected != 1 {
		t.Errorf("Expected 1 rejected record (no author), got %d", eventResult.Rejected)
	}
	if eventResult.Outcome == nil {
		t.Fatal("Expected a resolved outcome")
	}
	if eventResult.Outcome.Result != models.OutcomeBeat {
		t.Errorf("Expected beat outcome for +5%% move, got %s", eventResult.Outcome.Result)
	}

	if len(result.Findings) != 3 {
		t.Fatalf("Expected 3 findings, got %d", len(result.Findings))
	}
	var contrarian *models.ContrarianFinding
	for i := range result.Findings {
		if result.Findings[i].IsContrarian {
			if contrarian != nil {
				t.Fatal("Expected exactly one contrarian finding")
			}
			contrarian = &result.Findings[i]
		}
	}
	if contrarian == nil {
		t.Fatal("Expected a contrarian finding for the minority bull")
	}
	if contrarian.Author != "Jane Smith" {
		t.Errorf("Expected Jane Smith as the contrarian, got %s", contrarian.Author)
	}
	if contrarian.Type != models.ContrarianBoth {
		t.Errorf("Expected both-dimension contrarian, got %s", contrarian.Type)
	}
	if contrarian.Correct == nil || !*contrarian.Correct {
		t.Error("Expected the contrarian call to be vindicated by the beat")
	}
	if contrarian.Score <= 0 {
		t.Errorf("Expected a positive contrarian score, got %f", contrarian.Score)
	}

	if result.Stats.FindingsApplied != 3 {
		t.Errorf("Expected 3 findings applied, got %d", result.Stats.FindingsApplied)
	}
	if result.Stats.EntriesCreated != 3 {
		t.Errorf("Expected 3 ledger entries created, got %d", result.Stats.EntriesCreated)
	}
	entry, err := store.Get(models.NormalizeAuthor("Jane Smith"))
	if err != nil {
		t.Fatalf("Expected ledger entry for Jane Smith: %v", err)
	}
	if entry.ContrarianInstances != 1 || entry.SuccessfulCalls != 1 {
		t.Errorf("Expected 1 successful contrarian instance, got instances=%d successes=%d",
			entry.ContrarianInstances, entry.SuccessfulCalls)
	}
	if entry.SuccessRate == nil || *entry.SuccessRate != 100 {
		t.Errorf("Expected 100%% success rate, got %v", entry.SuccessRate)
	}

	if len(notifier.digests) != 1 {
		t.Fatalf("Expected 1 digest, got %d", len(notifier.digests))
	}
	digest := notifier.digests[0]
	if len(digest.Events) != 1 || digest.Events[0].Opinions != 3 {
		t.Errorf("Unexpected digest events: %+v", digest.Events)
	}
	if len(digest.Events[0].Contrarians) != 1 {
		t.Errorf("Expected 1 contrarian in digest, got %d", len(digest.Events[0].Contrarians))
	}
	if len(digest.Top) != 3 {
		t.Errorf("Expected all 3 authors in digest top, got %d", len(digest.Top))
	}

	if result.OutputDir == "" {
		t.Fatal("Expected an export folder")
	}
	for _, name := range []string{"findings.csv", "master_ledger.csv", "metadata.json"} {
		if _, err := os.Stat(filepath.Join(result.OutputDir, name)); err != nil {
			t.Errorf("Expected %s in run folder: %v", name, err)
		}
	}
}

func TestRun_DryRun(t *testing.T) {
	articles, classifier, prices := appleFixture()
	notifier := &fakeNotifier{}
	exportDir := t.TempDir()

	p, store := newTestPipeline(t, Deps{
		Articles:   articles,
		Classifier: classifier,
		Prices:     prices,
		Runs:       export.NewRunWriter(exportDir, logger.Get()),
		Notifier:   notifier,
	}, Options{DryRun: true})

	result, err := p.Run(context.Background(), []models.EarningsEvent{appleEvent()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Findings) != 3 {
		t.Fatalf("Expected findings to be evaluated in dry run, got %d", len(result.Findings))
	}
	entries, err := store.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no ledger writes in dry run, got %d entries", len(entries))
	}
	if result.Stats.FindingsApplied != 0 {
		t.Errorf("Expected zero merge stats in dry run, got %+v", result.Stats)
	}
	if len(notifier.digests) != 0 {
		t.Errorf("Expected no notifications in dry run, got %d", len(notifier.digests))
	}
	if result.OutputDir == "" {
		t.Fatal("Expected dry run to still write the export folder")
	}
}

func TestRun_PartialFailureIsIsolated(t *testing.T) {
	articles, classifier, prices := appleFixture()
	articles.failFor["Microsoft"] = fmt.Errorf("content API down")

	p, _ := newTestPipeline(t, Deps{
		Articles:   articles,
		Classifier: classifier,
		Prices:     prices,
	}, Options{})

	events := []models.EarningsEvent{
		appleEvent(),
		{Company: "Microsoft", Symbol: "MSFT.US", Date: time.Date(2025, 2, 12, 0, 0, 0, 0, time.UTC)},
	}
	result, err := p.Run(context.Background(), events)
	if err != nil {
		t.Fatalf("Run should survive a single event failure: %v", err)
	}

	if len(result.Events) != 2 {
		t.Fatalf("Expected 2 event results, got %d", len(result.Events))
	}
	if result.Events[0].Err != nil {
		t.Errorf("Expected Apple to succeed: %v", result.Events[0].Err)
	}
	if result.Events[1].Err == nil {
		t.Error("Expected Microsoft to carry its fetch error")
	}
	if len(result.Findings) != 3 {
		t.Errorf("Expected findings from the surviving event only, got %d", len(result.Findings))
	}
}

func TestRun_AllEventsFailed(t *testing.T) {
	articles, classifier, prices := appleFixture()
	articles.failFor["Apple"] = fmt.Errorf("content API down")

	p, _ := newTestPipeline(t, Deps{
		Articles:   articles,
		Classifier: classifier,
		Prices:     prices,
	}, Options{})

	result, err := p.Run(context.Background(), []models.EarningsEvent{appleEvent()})
	if err == nil {
		t.Fatal("Expected an error when every event failed")
	}
	if len(result.Events) != 1 || result.Events[0].Err == nil {
		t.Errorf("Expected the event result to carry its error: %+v", result.Events)
	}
}

func TestRun_NoCoverageIsNotAFailure(t *testing.T) {
	_, classifier, prices := appleFixture()
	articles := &fakeArticles{byCompany: map[string][]guardian.Article{}, failFor: map[string]error{}}
	notifier := &fakeNotifier{}

	p, store := newTestPipeline(t, Deps{
		Articles:   articles,
		Classifier: classifier,
		Prices:     prices,
		Runs:       export.NewRunWriter(t.TempDir(), logger.Get()),
		Notifier:   notifier,
	}, Options{})

	result, err := p.Run(context.Background(), []models.EarningsEvent{appleEvent()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Findings) != 0 {
		t.Errorf("Expected no findings without coverage, got %d", len(result.Findings))
	}
	if result.Events[0].Err != nil {
		t.Errorf("Missing coverage should not be an event error: %v", result.Events[0].Err)
	}
	entries, _ := store.All()
	if len(entries) != 0 {
		t.Errorf("Expected no ledger writes, got %d entries", len(entries))
	}
	if len(notifier.digests) != 0 {
		t.Errorf("Expected no digest for an empty run, got %d", len(notifier.digests))
	}
	if result.OutputDir != "" {
		t.Errorf("Expected no export folder for an empty run, got %s", result.OutputDir)
	}
}

func TestRun_PriceFailureLeavesOutcomeUnresolved(t *testing.T) {
	articles, classifier, prices := appleFixture()
	prices.err = fmt.Errorf("price API down")

	p, store := newTestPipeline(t, Deps{
		Articles:   articles,
		Classifier: classifier,
		Prices:     prices,
	}, Options{})

	result, err := p.Run(context.Background(), []models.EarningsEvent{appleEvent()})
	if err != nil {
		t.Fatalf("Run should degrade to unresolved outcome: %v", err)
	}

	if result.Events[0].Outcome != nil {
		t.Error("Expected no resolved outcome when the price fetch fails")
	}
	for _, finding := range result.Findings {
		if finding.Correct != nil {
			t.Errorf("Expected unknown correctness for %s", finding.Author)
		}
		if finding.ActualResult != models.OutcomeUnknown {
			t.Errorf("Expected unknown result, got %s", finding.ActualResult)
		}
	}

	entry, err := store.Get(models.NormalizeAuthor("Jane Smith"))
	if err != nil {
		t.Fatalf("Expected ledger entry: %v", err)
	}
	if entry.SuccessRate != nil {
		t.Errorf("Expected nil success rate with no resolved calls, got %v", *entry.SuccessRate)
	}
	if entry.ContrarianInstances != 1 {
		t.Errorf("Expected the unresolved contrarian instance to count, got %d", entry.ContrarianInstances)
	}
}

func TestRun_RejectsInvalidEvent(t *testing.T) {
	articles, classifier, prices := appleFixture()
	p, _ := newTestPipeline(t, Deps{
		Articles:   articles,
		Classifier: classifier,
		Prices:     prices,
	}, Options{})

	_, err := p.Run(context.Background(), []models.EarningsEvent{{Company: "Apple"}})
	if err == nil {
		t.Fatal("Expected an error for an event without symbol and date")
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Deps{}, Options{})
	if err == nil {
		t.Fatal("Expected an error for missing collaborators")
	}
}
