// Package telegram is the send-only admin alert channel. The site never
// polls for updates; it posts to one configured chat (and optional topic).
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "archsite/pkg/logx"
)

const textLimit = 4000

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int

	// APIURL overrides https://api.telegram.org.
	APIURL string
}

// Configured reports whether both a token and a target chat are set.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.Token) != "" && c.ChatID != 0
}

type Adapter struct {
	bot      *tele.Bot
	chat     *tele.Chat
	threadID int
	log      logx.Logger
}

// New builds the adapter without a network round-trip.
func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if !cfg.Configured() {
		return nil, errors.New("telegram token and chat_id are required")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.APIURL,
		Offline: true,
		Client:  &http.Client{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{
		bot:      b,
		chat:     &tele.Chat{ID: cfg.ChatID},
		threadID: cfg.ThreadID,
		log:      log.With(logx.String("comp", "telegram")),
	}, nil
}

// SendText posts text as plain messages, split at the Telegram size limit.
func (a *Adapter) SendText(ctx context.Context, text string) error {
	for _, chunk := range splitText(text, textLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		opts := &tele.SendOptions{DisableWebPagePreview: true, ThreadID: a.threadID}
		if _, err := a.bot.Send(a.chat, chunk, opts); err != nil {
			return err
		}
	}
	return nil
}

// SendAlert lets the adapter serve as the log alert sink.
func (a *Adapter) SendAlert(ctx context.Context, text string) error {
	return a.SendText(ctx, text)
}

// splitText cuts s into chunks of at most limit runes, preferring a newline
// in the last two thirds of each window.
func splitText(s string, limit int) []string {
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}
	out := make([]string, 0, len(rs)/limit+1)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))
		if end < len(rs) {
			for i := end - 1; i-start >= limit/3; i-- {
				if rs[i] == '\n' {
					end = i + 1
					break
				}
			}
		}
		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
