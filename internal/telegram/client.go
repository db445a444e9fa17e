// Package telegram delivers run digests and operational notifications via
// the Telegram Bot API. It formats contrarian findings and author standings
// into MarkdownV2 messages and handles delivery with retry logic.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/contraledger/internal/models"
)

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// Digest is the material for one run notification.
type Digest struct {
	RunAt  time.Time
	Events []EventSummary
	Top    []models.AuthorLedgerEntry
}

// EventSummary is the per-event slice of a digest.
type EventSummary struct {
	Company     string
	Symbol      string
	EventKey    string
	Opinions    int
	Contrarians []models.ContrarianFinding
	Outcome     *models.ActualOutcome
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendDigest sends the digest of one pipeline run.
func (c *Client) SendDigest(digest Digest) error {
	return c.send(formatDigest(digest))
}

// SendError notifies that a scheduled run started failing.
func (c *Client) SendError(err error) error {
	message := fmt.Sprintf("⚠️ *Pipeline run failed*\n%s", escapeMarkdownV2(err.Error()))
	return c.send(message)
}

// SendRecovery notifies that scheduled runs recovered after failures.
func (c *Client) SendRecovery(failures int) error {
	message := fmt.Sprintf("✅ *Pipeline recovered* after %d failed runs", failures)
	if failures == 1 {
		message = "✅ *Pipeline recovered* after 1 failed run"
	}
	return c.send(message)
}

// send dispatches one MarkdownV2 message with retry.
func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2" // Use MarkdownV2 for better escaping support

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatDigest formats one run's findings into a Telegram message.
func formatDigest(digest Digest) string {
	var b strings.Builder

	b.WriteString("📊 *Contrarian Run Digest*\n")
	runAt := digest.RunAt
	if runAt.IsZero() {
		runAt = time.Now()
	}
	fmt.Fprintf(&b, "📅 %s\n\n", escapeMarkdownV2(runAt.Format("2006-01-02 15:04:05")))

	for _, event := range digest.Events {
		title := escapeMarkdownV2(fmt.Sprintf("%s (%s)", event.Company, event.EventKey))
		fmt.Fprintf(&b, "*%s*\n", title)

		line := fmt.Sprintf("Opinions: %d · Contrarians: %d", event.Opinions, len(event.Contrarians))
		if event.Outcome != nil {
			line += fmt.Sprintf(" · Outcome: %s (%+.1f%%)", event.Outcome.Result, event.Outcome.PriceMovePct)
		} else {
			line += " · Outcome: pending"
		}
		b.WriteString(escapeMarkdownV2(line))
		b.WriteString("\n")

		for i, finding := range event.Contrarians {
			marker := "❔"
			if finding.Correct != nil {
				if *finding.Correct {
					marker = "✅"
				} else {
					marker = "❌"
				}
			}
			entry := fmt.Sprintf("%d. %s — %s/%s (score %.1f) ", i+1, finding.Author, finding.Sentiment, finding.Prediction, finding.Score)
			b.WriteString(escapeMarkdownV2(entry))
			b.WriteString(marker)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(digest.Top) > 0 {
		b.WriteString("🏆 *Top performers*\n")
		for i, entry := range digest.Top {
			rate := "n/a"
			if entry.SuccessRate != nil {
				rate = fmt.Sprintf("%.1f%% success", *entry.SuccessRate)
			}
			line := fmt.Sprintf("%d. %s — %s, %d instances [%s]", i+1, entry.DisplayName, rate, entry.ContrarianInstances, entry.RiskTier)
			b.WriteString(escapeMarkdownV2(line))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . !
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
			b.WriteRune(char)
		default:
			b.WriteRune(char)
		}
	}
	return b.String()
}
