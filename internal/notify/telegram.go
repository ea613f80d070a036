package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/config"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/logger"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/models"
)

// Telegram sends alerts as MarkdownV2 bot messages. The bot connection is
// established lazily, so an unreachable API never stops the engine.
type Telegram struct {
	token          string
	endpoint       string
	chatID         int64
	enabled        bool
	maxRetries     int
	retryDelayBase time.Duration
	loc            *time.Location

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegram creates the Telegram dispatcher. Without a token and chat ID
// it returns a disabled dispatcher. Only a malformed chat ID is an error; a
// failed connection attempt is logged and retried on the next Dispatch.
func NewTelegram(cfg config.TelegramConfig, loc *time.Location) (*Telegram, error) {
	t := &Telegram{
		token:          cfg.BotToken,
		endpoint:       cfg.APIEndpoint,
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		loc:            locationOrUTC(loc),
	}
	if t.endpoint == "" {
		t.endpoint = tgbotapi.APIEndpoint
	}
	if t.maxRetries <= 0 {
		t.maxRetries = 3
	}
	if t.retryDelayBase <= 0 {
		t.retryDelayBase = time.Second
	}
	if !cfg.Enabled() {
		return t, nil
	}

	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}
	t.chatID = chatID
	t.enabled = true

	if _, err := t.connect(); err != nil {
		logger.Warn("Telegram bot unavailable, will retry on next alert: %v", err)
	}
	return t, nil
}

// connect returns the bot, creating it on first success.
func (t *Telegram) connect() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(t.token, t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	t.bot = bot
	return bot, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Enabled() bool { return t.enabled }

// Dispatch sends the alert and returns the Telegram message id.
func (t *Telegram) Dispatch(ctx context.Context, a models.AlertEvent) (string, error) {
	bot, err := t.connect()
	if err != nil {
		return "", err
	}
	return t.sendMarkdownV2(ctx, bot, formatTelegram(a, t.loc))
}

// sendMarkdownV2 sends a MarkdownV2 message, waiting retryDelayBase*(n)
// before the n-th retry.
func (t *Telegram) sendMarkdownV2(ctx context.Context, bot *tgbotapi.BotAPI, text string) (string, error) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		sent, err := bot.Send(msg)
		if err == nil {
			return strconv.Itoa(sent.MessageID), nil
		}
		lastErr = err
		if i == t.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(t.retryDelayBase * time.Duration(i+1)):
		}
	}
	return "", fmt.Errorf("failed after %d retries: %w", t.maxRetries, lastErr)
}

// formatTelegram formats an alert into a Telegram MarkdownV2 message.
func formatTelegram(a models.AlertEvent, loc *time.Location) string {
	return fmt.Sprintf("%s *%s \\(%s\\)* %s *%s*\n💵 %s\n🕒 %s",
		a.Direction.Emoji(),
		escapeMarkdownV2(a.Name),
		escapeMarkdownV2(a.Symbol),
		escapeMarkdownV2(string(a.Direction)),
		escapeMarkdownV2(a.AbsPercent()+"%"),
		escapeMarkdownV2(a.CurrentPrice.StringFixed(2)),
		escapeMarkdownV2(a.Timestamp.In(loc).Format(sentLayout)+" ("+loc.String()+")"),
	)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
