// Package delivery sends turn replies back to the user's messaging channel.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/jobassist/internal/domain"
	"github.com/ashureev/jobassist/internal/metrics"
)

// ErrDeliveryFailed is returned when the channel did not accept a reply.
var ErrDeliveryFailed = errors.New("reply delivery failed")

// Sender delivers a reply to its channel.
type Sender interface {
	Send(ctx context.Context, reply domain.Reply) error
}

const (
	defaultGraphURL = "https://graph.facebook.com/v21.0"

	messengerQuickReplyLimit = 13
	messengerTextLimit       = 2000
	whatsAppButtonLimit      = 3
	whatsAppButtonTitleLimit = 20
	whatsAppTextLimit        = 4096
	whatsAppBodyLimit        = 1024
)

// GraphOptions configures a GraphSender.
type GraphOptions struct {
	BaseURL               string
	WhatsAppToken         string
	WhatsAppPhoneNumberID string
	MessengerToken        string
	Timeout               time.Duration
	HTTPClient            *http.Client
	Logger                *slog.Logger
	Metrics               *metrics.Metrics
}

// GraphSender posts replies to the WhatsApp Cloud API and the Messenger Send
// API.
type GraphSender struct {
	opts GraphOptions
}

// NewGraphSender creates a sender for the Graph API.
func NewGraphSender(opts GraphOptions) *GraphSender {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultGraphURL
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
	return &GraphSender{opts: opts}
}

// Send implements Sender.
func (s *GraphSender) Send(ctx context.Context, reply domain.Reply) error {
	var (
		url, token string
		body       any
	)
	switch reply.Channel {
	case domain.ChannelWhatsApp:
		if s.opts.WhatsAppToken == "" || s.opts.WhatsAppPhoneNumberID == "" {
			return s.fail(reply, fmt.Errorf("%w: whatsapp is not configured", ErrDeliveryFailed))
		}
		url = s.opts.BaseURL + "/" + s.opts.WhatsAppPhoneNumberID + "/messages"
		token = s.opts.WhatsAppToken
		body = whatsAppPayload(reply)
	case domain.ChannelMessenger:
		if s.opts.MessengerToken == "" {
			return s.fail(reply, fmt.Errorf("%w: messenger is not configured", ErrDeliveryFailed))
		}
		url = s.opts.BaseURL + "/me/messages"
		token = s.opts.MessengerToken
		body = messengerPayload(reply)
	default:
		return s.fail(reply, fmt.Errorf("%w: unknown channel %q", ErrDeliveryFailed, reply.Channel))
	}

	if err := s.post(ctx, url, token, body); err != nil {
		return s.fail(reply, err)
	}
	s.opts.Logger.Debug("Reply delivered", "channel", reply.Channel, "user_id", reply.UserID)
	return nil
}

func (s *GraphSender) fail(reply domain.Reply, err error) error {
	s.opts.Metrics.IncDeliveryFailure(string(reply.Channel))
	s.opts.Logger.Warn("Reply delivery failed", "channel", reply.Channel, "user_id", reply.UserID, "error", err)
	return err
}

func (s *GraphSender) post(ctx context.Context, url, token string, body any) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	return postJSON(ctx, s.opts.HTTPClient, url, "Bearer "+token, body)
}

// postJSON posts body as JSON and maps every failure to ErrDeliveryFailed.
// auth is sent as the Authorization header when set.
func postJSON(ctx context.Context, client *http.Client, url, auth string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encode payload: %v", ErrDeliveryFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: status %d: %s", ErrDeliveryFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type messengerQuickReply struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Payload     string `json:"payload"`
}

type messengerMessage struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	MessagingType string `json:"messaging_type"`
	Message       struct {
		Text         string                `json:"text"`
		QuickReplies []messengerQuickReply `json:"quick_replies,omitempty"`
	} `json:"message"`
}

func messengerPayload(reply domain.Reply) messengerMessage {
	var m messengerMessage
	m.Recipient.ID = reply.UserID
	m.MessagingType = "RESPONSE"
	m.Message.Text = clip(reply.Text, messengerTextLimit)
	for i, q := range reply.QuickReplies {
		if i == messengerQuickReplyLimit {
			break
		}
		m.Message.QuickReplies = append(m.Message.QuickReplies, messengerQuickReply{
			ContentType: "text",
			Title:       clip(q.Label, 20),
			Payload:     q.Value,
		})
	}
	return m
}

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppButton struct {
	Type  string `json:"type"`
	Reply struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"reply"`
}

type whatsAppInteractive struct {
	Type string       `json:"type"`
	Body whatsAppText `json:"body"`
	// Action holds up to three reply buttons.
	Action struct {
		Buttons []whatsAppButton `json:"buttons"`
	} `json:"action"`
}

type whatsAppMessage struct {
	MessagingProduct string               `json:"messaging_product"`
	RecipientType    string               `json:"recipient_type"`
	To               string               `json:"to"`
	Type             string               `json:"type"`
	Text             *whatsAppText        `json:"text,omitempty"`
	Interactive      *whatsAppInteractive `json:"interactive,omitempty"`
}

// whatsAppPayload renders quick replies as reply buttons when they fit;
// longer option lists are already numbered in the text.
func whatsAppPayload(reply domain.Reply) whatsAppMessage {
	m := whatsAppMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               reply.UserID,
	}
	n := len(reply.QuickReplies)
	if n == 0 || n > whatsAppButtonLimit || len([]rune(reply.Text)) > whatsAppBodyLimit {
		m.Type = "text"
		m.Text = &whatsAppText{Body: clip(reply.Text, whatsAppTextLimit)}
		return m
	}

	in := &whatsAppInteractive{Type: "button", Body: whatsAppText{Body: reply.Text}}
	for _, q := range reply.QuickReplies {
		var b whatsAppButton
		b.Type = "reply"
		b.Reply.ID = q.Value
		b.Reply.Title = clip(q.Label, whatsAppButtonTitleLimit)
		in.Action.Buttons = append(in.Action.Buttons, b)
	}
	m.Type = "interactive"
	m.Interactive = in
	return m
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// LogSender writes replies to the log instead of a channel. It is used when
// no channel credentials are configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, reply domain.Reply) error {
	s.logger.Info("Reply", "channel", reply.Channel, "user_id", reply.UserID, "text", reply.Text, "quick_replies", len(reply.QuickReplies))
	return nil
}
