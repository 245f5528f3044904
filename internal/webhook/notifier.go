// Package webhook delivers pipeline completion events to an optional
// operator-configured HTTP endpoint. Delivery is best effort: failures are
// logged and counted but never surfaced to the caller.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tndd/datadoggo-v3-rss/internal/metrics"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 5 * time.Second

// Event names carried in the payload.
const (
	EventFetchRss     = "fetch_rss"
	EventFetchContent = "fetch_content"
)

// Trigger origins carried in the payload.
const (
	SourceAPI = "api"
	SourceCLI = "cli"
)

type payload struct {
	Event   string `json:"event"`
	Source  string `json:"source"`
	Summary any    `json:"summary"`
}

// Notifier posts event payloads to a single webhook URL. The zero URL
// disables delivery entirely.
type Notifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewNotifier builds a Notifier for url. An empty url yields a no-op
// notifier. A nil client gets a default with DefaultTimeout.
func NewNotifier(url string, client *http.Client, logger *zap.Logger) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{url: url, client: client, logger: logger}
}

// NotifyFetchRss reports a completed ingestion run.
func (n *Notifier) NotifyFetchRss(ctx context.Context, source string, summary any) {
	n.deliver(ctx, EventFetchRss, source, summary)
}

// NotifyFetchContent reports a completed content fetch run.
func (n *Notifier) NotifyFetchContent(ctx context.Context, source string, summary any) {
	n.deliver(ctx, EventFetchContent, source, summary)
}

func (n *Notifier) deliver(ctx context.Context, event, source string, summary any) {
	if n.url == "" {
		return
	}

	body, err := json.Marshal(payload{Event: event, Source: source, Summary: summary})
	if err != nil {
		n.logger.Warn("webhook payload marshal failed",
			zap.String("event", event),
			zap.Error(err))
		metrics.ObserveWebhookDelivery("error")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("webhook request build failed",
			zap.String("event", event),
			zap.Error(err))
		metrics.ObserveWebhookDelivery("error")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("event", event),
			zap.String("url", n.url),
			zap.Error(err))
		metrics.ObserveWebhookDelivery("error")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.logger.Warn("webhook delivery rejected",
			zap.String("event", event),
			zap.String("url", n.url),
			zap.Error(fmt.Errorf("unexpected status %d", resp.StatusCode)))
		metrics.ObserveWebhookDelivery("error")
		return
	}

	n.logger.Debug("webhook delivered",
		zap.String("event", event),
		zap.String("source", source))
	metrics.ObserveWebhookDelivery("ok")
}
