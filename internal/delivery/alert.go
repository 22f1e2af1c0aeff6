package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/jobassist/internal/domain"
)

const defaultTelegramURL = "https://api.telegram.org"

// AlertOptions configures an AlertingSender.
type AlertOptions struct {
	BaseURL    string
	BotToken   string
	ChatID     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Now        func() time.Time
}

// AlertingSender wraps a Sender and reports every undelivered reply to an
// operators' Telegram chat. The delivery error is returned unchanged; a
// failed alert is only logged.
type AlertingSender struct {
	next Sender
	opts AlertOptions
}

// NewAlertingSender wraps next.
func NewAlertingSender(next Sender, opts AlertOptions) *AlertingSender {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultTelegramURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AlertingSender{next: next, opts: opts}
}

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Send implements Sender.
func (s *AlertingSender) Send(ctx context.Context, reply domain.Reply) error {
	err := s.next.Send(ctx, reply)
	if err == nil {
		return nil
	}

	// The reply's deadline may be what failed; the alert gets its own.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)
	defer cancel()

	msg := telegramMessage{
		ChatID: s.opts.ChatID,
		Text: fmt.Sprintf("Error de entrega\n\nCanal: %s\nUsuario: %s\nError: %v\nHora: %s",
			strings.ToUpper(string(reply.Channel)), reply.UserID, err, s.opts.Now().Format("2006-01-02 15:04:05")),
	}
	url := s.opts.BaseURL + "/bot" + s.opts.BotToken + "/sendMessage"
	if alertErr := postJSON(actx, s.opts.HTTPClient, url, "", msg); alertErr != nil {
		s.opts.Logger.Error("Failed to send delivery alert", "channel", reply.Channel, "user_id", reply.UserID, "error", s.redact(alertErr))
	} else {
		s.opts.Logger.Info("Delivery alert sent", "channel", reply.Channel, "user_id", reply.UserID)
	}
	return err
}

// redact hides the bot token, which transport errors echo as part of the URL.
func (s *AlertingSender) redact(err error) string {
	if s.opts.BotToken == "" {
		return err.Error()
	}
	return strings.ReplaceAll(err.Error(), s.opts.BotToken, "***")
}
