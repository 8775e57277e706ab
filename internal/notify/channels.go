package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Channel names accepted by Channels.
const (
	ChannelLog     = "log"
	ChannelWebhook = "webhook"
)

// Channels builds the named channels.
func Channels(names []string, webhookURL string, logger *slog.Logger) ([]Channel, error) {
	var out []Channel
	for _, name := range names {
		switch strings.TrimSpace(name) {
		case ChannelLog:
			out = append(out, NewLogChannel(logger))
		case ChannelWebhook:
			if webhookURL == "" {
				return nil, fmt.Errorf("notify: webhook channel needs a webhook url")
			}
			out = append(out, NewWebhook(WebhookOptions{URL: webhookURL}))
		default:
			return nil, fmt.Errorf("notify: unknown channel %q", name)
		}
	}
	return out, nil
}

// LogChannel writes events to a structured logger.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates a log channel. A nil logger uses slog.Default().
func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return ChannelLog }

func (c *LogChannel) Send(ctx context.Context, e Event) error {
	level := slog.LevelInfo
	switch e.Type {
	case SyncFailed, RetryScheduled:
		level = slog.LevelWarn
	case RetriesExhausted:
		level = slog.LevelError
	}
	c.logger.Log(ctx, level, Message(e),
		"event", string(e.Type),
		"record_type", e.State.RecordType,
		"sync_state_id", e.State.ID)
	return nil
}

// WebhookOptions configures a Webhook.
type WebhookOptions struct {
	URL        string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Webhook posts Slack-compatible JSON messages.
type Webhook struct {
	url        string
	httpClient *http.Client
}

// NewWebhook creates a webhook channel.
func NewWebhook(opts WebhookOptions) *Webhook {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Webhook{url: strings.TrimSpace(opts.URL), httpClient: httpClient}
}

func (w *Webhook) Name() string { return ChannelWebhook }

func (w *Webhook) Send(ctx context.Context, e Event) error {
	body, err := Payload(e)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("webhook: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

type slackPayload struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Payload renders the webhook body for e.
func Payload(e Event) ([]byte, error) {
	p := slackPayload{Text: Message(e)}
	short := func(title, value string) slackField {
		return slackField{Title: title, Value: value, Short: true}
	}

	switch e.Type {
	case SyncCompleted:
		p.Attachments = []slackAttachment{{Color: "good", Fields: []slackField{
			short("Records Processed", strconv.FormatUint(e.State.TotalProcessed, 10)),
			short("Sync Type", string(e.State.Kind)),
		}}}
	case RetryScheduled:
		p.Attachments = []slackAttachment{{Color: "warning", Fields: []slackField{
			short("Retry Attempt", strconv.Itoa(e.Attempt)),
			short("Failed Records", strconv.Itoa(e.Pending)),
			short("Next Retry In", minutes(e.RetryIn)),
		}}}
	case SyncFailed, RetriesExhausted:
		p.Attachments = []slackAttachment{{Color: "danger", Fields: []slackField{
			{Title: "Error", Value: e.Err},
			short("Records Processed", strconv.FormatUint(e.State.TotalProcessed, 10)),
		}}}
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("webhook payload: %w", err)
	}
	return body, nil
}
