package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/internal/core/ports"
)

const (
	webhookTimeout = 10 * time.Second
	webhookRetries = 2
)

// Payload is the JSON body posted for every finished launch
type Payload struct {
	Event    string              `json:"event"`
	Launch   domain.LaunchRecord `json:"launch"`
	Duration string              `json:"duration"`
}

// WebhookNotifier posts finished launches to a URL
type WebhookNotifier struct {
	client *resty.Client
	url    string
}

// New returns a webhook notifier, or a no-op one when url is empty
func New(url string) ports.Notifier {
	if url == "" {
		return Noop{}
	}
	return NewWebhookNotifier(url, webhookTimeout)
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = webhookTimeout
	}

	cli := resty.New().
		SetTimeout(timeout).
		SetRetryCount(webhookRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &WebhookNotifier{client: cli, url: url}
}

// Notify posts the launch record
func (w *WebhookNotifier) Notify(ctx context.Context, record domain.LaunchRecord) error {
	event := "launch.failed"
	if record.Success {
		event = "launch.completed"
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(Payload{Event: event, Launch: record, Duration: record.Duration().Round(time.Second).String()}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned %s", resp.Status())
	}
	return nil
}

// Noop discards notifications
type Noop struct{}

func (Noop) Notify(ctx context.Context, record domain.LaunchRecord) error {
	return nil
}
