// Package telegram runs the Telegram Bot channel. It long-polls the Bot
// API and feeds each text message through the engine, so a Telegram chat
// behaves exactly like the HTTP chat endpoint.
package telegram

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/yuin/goldmark"

	"github.com/kopibot/kopibot/engine"
)

const (
	pollTimeoutSeconds = 30
	parseMode          = tgbotapi.ModeHTML
)

// Channel is a running Telegram bot bound to one engine.
type Channel struct {
	bot    *tgbotapi.BotAPI
	engine *engine.Engine
	logger *slog.Logger
	md     goldmark.Markdown
}

// New creates the channel. The token comes from BotFather.
func New(token string, eng *engine.Engine, logger *slog.Logger) (*Channel, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Channel{
		bot:    bot,
		engine: eng,
		logger: logger,
		md:     goldmark.New(),
	}, nil
}

// Run long-polls for updates until the context is cancelled.
func (c *Channel) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds

	updates := c.bot.GetUpdatesChan(cfg)
	c.logger.Info("telegram channel started", "bot", c.bot.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			c.handleUpdate(ctx, update)
		}
	}
}

func (c *Channel) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}

	started := time.Now()
	resp, err := c.engine.Chat(ctx, engine.Request{
		// One conversation per Telegram chat.
		SessionID: SessionID(msg.Chat.ID),
		Message:   msg.Text,
	})
	if err != nil {
		c.logger.Warn("telegram: rejected message", "chat_id", msg.Chat.ID, "error", err)
		c.send(msg.Chat.ID, "Sorry, I couldn't read that message. Please try a shorter one.")
		return
	}

	c.logger.Debug("telegram: turn handled",
		"chat_id", msg.Chat.ID,
		"intent", resp.Intent,
		"latency", time.Since(started),
	)
	c.send(msg.Chat.ID, c.renderHTML(resp.Message))
}

func (c *Channel) send(chatID int64, html string) {
	out := tgbotapi.NewMessage(chatID, html)
	out.ParseMode = parseMode
	if _, err := c.bot.Send(out); err != nil {
		c.logger.Error("telegram: send failed", "chat_id", chatID, "error", err)
		// Retry once as plain text in case the HTML upset the Bot API.
		out.ParseMode = ""
		out.Text = stripTags(html)
		if _, err := c.bot.Send(out); err != nil {
			c.logger.Error("telegram: plain-text retry failed", "chat_id", chatID, "error", err)
		}
	}
}

// SessionID maps a Telegram chat to a stable engine session id.
func SessionID(chatID int64) string {
	return "tg-" + strconv.FormatInt(chatID, 10)
}

// renderHTML converts the engine's markdown-ish reply to the tag subset
// Telegram accepts for HTML parse mode. Block tags become newlines since
// Telegram has no <p> or <li>.
func (c *Channel) renderHTML(text string) string {
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(text), &buf); err != nil {
		return tgEscape(text)
	}

	html := buf.String()
	html = blockTags.Replace(html)
	html = strings.ReplaceAll(html, "<strong>", "<b>")
	html = strings.ReplaceAll(html, "</strong>", "</b>")
	html = strings.ReplaceAll(html, "<em>", "<i>")
	html = strings.ReplaceAll(html, "</em>", "</i>")
	return strings.TrimSpace(html)
}

var blockTags = strings.NewReplacer(
	"<p>", "",
	"</p>", "\n",
	"<ul>", "",
	"</ul>", "",
	"<ol>", "",
	"</ol>", "",
	"<li>", "• ",
	"</li>", "\n",
	"<br>", "\n",
	"<br/>", "\n",
)

func tgEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func stripTags(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	out := b.String()
	out = strings.ReplaceAll(out, "&amp;", "&")
	out = strings.ReplaceAll(out, "&lt;", "<")
	out = strings.ReplaceAll(out, "&gt;", ">")
	out = strings.ReplaceAll(out, "&quot;", `"`)
	return out
}
