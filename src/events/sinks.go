package events

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger *logrus.Entry
}

func NewLogSink(logger *logrus.Entry) *LogSink {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Handle(_ context.Context, env Envelope) error {
	entry := s.logger.WithFields(logrus.Fields{
		"event_id": env.ID,
		"kind":     env.Kind,
	})

	switch ev := env.Payload.(type) {
	case PositionOpened:
		entry.WithFields(logrus.Fields{
			"position_id": ev.ID,
			"strategy":    ev.Strategy,
			"symbol":      ev.Symbol,
			"quantity":    ev.Quantity,
			"avg_price":   ev.AvgPrice,
			"algorithm":   ev.Algorithm,
		}).Info("position opened")
	case PositionClosed:
		entry.WithFields(logrus.Fields{
			"position_id": ev.ID,
			"strategy":    ev.Strategy,
			"symbol":      ev.Symbol,
			"exit_price":  ev.ExitPrice,
			"pnl":         ev.PnL,
			"pnl_pct":     ev.PnLPct,
			"reason":      ev.Reason,
		}).Info("position closed")
	case TradeBlocked:
		entry.WithFields(logrus.Fields{
			"strategy": ev.Strategy,
			"symbol":   ev.Symbol,
			"reason":   ev.Reason,
		}).Warn("trade blocked")
	default:
		return fmt.Errorf("log sink: unexpected payload %T", env.Payload)
	}
	return nil
}

// Journal persists events. repository.JournalRepository implements it.
type Journal interface {
	RecordOpened(ctx context.Context, eventID uuid.UUID, at time.Time, ev PositionOpened) error
	RecordClosed(ctx context.Context, eventID uuid.UUID, at time.Time, ev PositionClosed) error
	RecordBlocked(ctx context.Context, eventID uuid.UUID, at time.Time, ev TradeBlocked) error
}

type JournalSink struct {
	journal Journal
}

func NewJournalSink(journal Journal) *JournalSink {
	return &JournalSink{journal: journal}
}

func (s *JournalSink) Name() string { return "journal" }

func (s *JournalSink) Handle(ctx context.Context, env Envelope) error {
	switch ev := env.Payload.(type) {
	case PositionOpened:
		return s.journal.RecordOpened(ctx, env.ID, env.OccurredAt, ev)
	case PositionClosed:
		return s.journal.RecordClosed(ctx, env.ID, env.OccurredAt, ev)
	case TradeBlocked:
		return s.journal.RecordBlocked(ctx, env.ID, env.OccurredAt, ev)
	}
	return fmt.Errorf("journal sink: unexpected payload %T", env.Payload)
}

const (
	defaultWebhookRetryWait    = 200 * time.Millisecond
	defaultWebhookRetryMaxWait = 2 * time.Second
)

var ErrWebhookRejected = errors.New("webhook rejected event")

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}

	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

// WebhookSink POSTs envelopes as JSON to a notification endpoint.
type WebhookSink struct {
	url  string
	http *resty.Client
}

func NewWebhookSink(cfg Config) *WebhookSink {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(max(cfg.WebhookRetries, 0)).
		SetRetryWaitTime(defaultWebhookRetryWait).
		SetRetryMaxWaitTime(defaultWebhookRetryMaxWait).
		AddRetryCondition(isRetryableResp).
		SetHeader("Content-Type", "application/json")
	if cfg.WebhookToken != "" {
		client.SetAuthToken(cfg.WebhookToken)
	}

	return &WebhookSink{url: cfg.WebhookURL, http: client}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Handle(ctx context.Context, env Envelope) error {
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("X-Event-ID", env.ID.String()).
		SetBody(env).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: status %d", ErrWebhookRejected, resp.StatusCode())
	}
	return nil
}
