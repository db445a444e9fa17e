// Package classify turns pre-earnings commentary articles into structured
// opinion records using the Anthropic API. It is purely a producer of
// adapter input; detection math never depends on anything in this package.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/rewired-gh/contraledger/internal/guardian"
)

const (
	// DefaultModel is the model used when none is configured.
	DefaultModel = "claude-sonnet-4-20250514"

	// DefaultMaxTokens bounds the classification response.
	DefaultMaxTokens = 1024

	// DefaultTemperature keeps classifications near-deterministic.
	DefaultTemperature = 0.1

	// DefaultMaxRetries is the number of retry attempts on API failure.
	DefaultMaxRetries = 3

	// maxContentLength truncates article bodies to stay well inside the
	// prompt budget; the opening of a commentary piece carries its stance.
	maxContentLength = 3000

	initialBackoff = 1 * time.Second
	maxBackoff     = 10 * time.Second
)

// Classification is the structured reading of one article: who wrote it and
// what stance they took going into earnings. Prediction may be "unclear"
// when the article takes no discrete earnings call; downstream adaptation
// decides what to do with such records.
type Classification struct {
	Author              string   `json:"author"`
	Sentiment           string   `json:"sentiment"`
	Prediction          string   `json:"earnings_prediction"`
	Confidence          string   `json:"confidence"`
	Reasoning           string   `json:"reasoning"`
	KeyConcerns         []string `json:"key_concerns"`
	SpecificPredictions []string `json:"specific_predictions"`
}

// Config holds classifier settings.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	MaxRetries  int
}

// Classifier extracts opinions from articles via the Anthropic API.
type Classifier struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float64
	maxRetries  int
	logger      arbor.ILogger
}

// New creates a Classifier. The API key is required; everything else
// defaults sensibly.
func New(cfg Config, logger arbor.ILogger) (*Classifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for the classifier")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
	)

	return &Classifier{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		logger:      logger,
	}, nil
}

const systemPrompt = "You are a financial analyst expert at analyzing earnings predictions " +
	"and sentiment in financial articles. Always respond with valid JSON."

// ClassifyArticle reads one article and returns its structured opinion.
func (c *Classifier) ClassifyArticle(ctx context.Context, company string, article guardian.Article) (*Classification, error) {
	prompt := buildPrompt(company, article)

	response, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("classification of %q failed: %w", article.Headline, err)
	}

	result, err := parseClassification(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse classification of %q: %w (response: %s)", article.Headline, err, response)
	}

	if result.Author == "" {
		result.Author = article.Byline
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("headline", article.Headline).
			Str("author", result.Author).
			Str("sentiment", result.Sentiment).
			Str("prediction", result.Prediction).
			Msg("Classified article")
	}

	return result, nil
}

func buildPrompt(company string, article guardian.Article) string {
	content := article.Body
	if len(content) > maxContentLength {
		content = content[:maxContentLength]
	}

	author := article.Byline
	if author == "" {
		author = "Unknown"
	}

	return fmt.Sprintf(`Analyze this pre-earnings financial article about %s.

Headline: %s
Author: %s
Date: %s
Section: %s
Content: %s

Output Format (JSON only, no markdown fences):
{
  "author": "primary author name from the byline, or \"Unknown\"",
  "sentiment": "bullish/bearish/neutral",
  "earnings_prediction": "beat/miss/meet/unclear",
  "confidence": "high/medium/low",
  "reasoning": "brief explanation of the analysis",
  "key_concerns": ["main concerns or positive points mentioned"],
  "specific_predictions": ["specific predictions made, if any"]
}

Focus on:
- Overall tone about company prospects before earnings
- Specific earnings predictions or expectations
- Any contrarian viewpoints expressed`,
		company,
		article.Headline,
		author,
		article.PublishedAt.Format("2006-01-02"),
		article.Section,
		content,
	)
}

// complete sends the prompt and returns the raw text response, retrying on
// API failures with exponential backoff.
func (c *Classifier) complete(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
	}
	params.Temperature = anthropic.Float(c.temperature)

	var resp *anthropic.Message
	var apiErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, apiErr = c.client.Messages.New(ctx, params)
		if apiErr == nil {
			break
		}
		if attempt == c.maxRetries {
			break
		}

		backoff := initialBackoff * time.Duration(uint(1)<<uint(attempt))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}

		if c.logger != nil {
			c.logger.Warn().
				Err(apiErr).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("Classification request failed, retrying")
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return "", fmt.Errorf("API call failed after %d retries: %w", c.maxRetries, apiErr)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("no text in API response")
	}

	return text.String(), nil
}

var fencePattern = regexp.MustCompile(`(?s)^\s*` + "```" + `(?:json|JSON)?\s*\n?(.*?)\n?\s*` + "```" + `\s*$`)

// cleanMarkdownFences strips markdown code fences the model sometimes wraps
// around its JSON despite instructions.
func cleanMarkdownFences(s string) string {
	s = strings.TrimSpace(s)

	if matches := fencePattern.FindStringSubmatch(s); len(matches) > 1 {
		s = matches[1]
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

// parseClassification parses the model response, tolerating fences and
// surrounding prose.
func parseClassification(response string) (*Classification, error) {
	cleaned := cleanMarkdownFences(response)

	var result Classification
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		// Fall back to the outermost JSON object embedded in prose.
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start == -1 || end == -1 || end <= start {
			return nil, fmt.Errorf("no JSON object in response: %w", err)
		}
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &result); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	}

	if result.Sentiment == "" {
		result.Sentiment = "unclear"
	}
	if result.Prediction == "" {
		result.Prediction = "unclear"
	}
	if result.KeyConcerns == nil {
		result.KeyConcerns = []string{}
	}
	if result.SpecificPredictions == nil {
		result.SpecificPredictions = []string{}
	}

	return &result, nil
}
