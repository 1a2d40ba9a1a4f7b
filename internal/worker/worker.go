// Package worker drains the check-in outbox and alerts supervising staff
// about recorded check-ins.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bailbond/checkin-service/internal/models"
	"bailbond/checkin-service/internal/store"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	consumerName = "checkin-alerts"
	alertChannel = "staff"

	defaultRetryDelay    = 30 * time.Second
	defaultMaxRetryDelay = 15 * time.Minute
)

type Worker struct {
	store         store.OutboxStore
	provider      Provider
	recipient     string
	batchSize     int
	maxAttempts   int
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

type Config struct {
	BatchSize   int
	MaxAttempts int
	// RetryDelay is the wait before the first retry. Later retries back off
	// exponentially up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	Recipient     string
	Logger        *zap.Logger
}

func New(st store.OutboxStore, provider Provider, cfg Config) *Worker {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	maxRetryDelay := cfg.MaxRetryDelay
	if maxRetryDelay <= 0 {
		maxRetryDelay = defaultMaxRetryDelay
	}
	if maxRetryDelay < retryDelay {
		maxRetryDelay = retryDelay
	}
	recipient := strings.TrimSpace(cfg.Recipient)
	if recipient == "" {
		recipient = "compliance-desk"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		store:         st,
		provider:      provider,
		recipient:     recipient,
		batchSize:     batch,
		maxAttempts:   maxAttempts,
		retryDelay:    retryDelay,
		maxRetryDelay: maxRetryDelay,
		logger:        logger,
		now:           time.Now,
	}
}

// Run retries deliveries that are due, then processes one batch of outbox
// events after the stored offset and advances the offset past every event it
// looked at. A delivery that fails here is scheduled for a later Run.
func (w *Worker) Run(ctx context.Context) error {
	due, err := w.store.ListDueDeliveries(ctx, w.now(), w.batchSize)
	if err != nil {
		return err
	}
	for _, delivery := range due {
		if err := w.attempt(ctx, delivery); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("alert retry error", zap.String("delivery_id", delivery.DeliveryID), zap.Error(err))
		}
	}

	last, err := w.store.GetLastOffset(ctx, consumerName)
	if err != nil {
		return err
	}

	events, err := w.store.ListOutboxEvents(ctx, last, w.batchSize)
	if err != nil {
		return err
	}

	for _, event := range events {
		if err := w.processEvent(ctx, event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("alert process error", zap.String("event_id", event.EventID), zap.Error(err))
		}
		last = store.OutboxOffset{CreatedAt: event.CreatedAt, EventID: event.EventID}
	}

	if len(events) > 0 {
		if err := w.store.UpdateOffset(ctx, consumerName, last); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) processEvent(ctx context.Context, event store.OutboxEvent) error {
	if event.Type != store.EventCheckInRecorded {
		return nil
	}

	var payload store.CheckInEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	delivery := store.Delivery{
		DeliveryID: uuid.NewString(),
		EventID:    event.EventID,
		Channel:    alertChannel,
		Recipient:  w.recipient,
		Subject:    renderSubject(payload),
		Message:    renderMessage(payload),
		Status:     "pending",
	}
	if err := w.store.InsertDelivery(ctx, delivery); err != nil {
		return err
	}
	return w.attempt(ctx, delivery)
}

// attempt sends a delivery once. On failure it either schedules the next try
// or, once the attempts are used up, marks it failed and dead-letters it.
func (w *Worker) attempt(ctx context.Context, delivery store.Delivery) error {
	sendErr := w.provider.Send(ctx, Alert{
		EventID:   delivery.EventID,
		Channel:   delivery.Channel,
		Recipient: delivery.Recipient,
		Subject:   delivery.Subject,
		Message:   delivery.Message,
	})
	if sendErr == nil {
		return w.store.MarkDeliverySent(ctx, delivery.DeliveryID)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	attempt := delivery.Attempts + 1
	if attempt >= w.maxAttempts {
		attempts, err := w.store.MarkDeliveryFailed(ctx, delivery.DeliveryID, sendErr.Error())
		if err != nil {
			return err
		}
		w.logger.Warn("alert dead-lettered",
			zap.String("delivery_id", delivery.DeliveryID),
			zap.Int("attempts", attempts),
			zap.Error(sendErr),
		)
		return w.store.InsertDeadLetter(ctx, delivery.DeliveryID, "max attempts reached: "+sendErr.Error())
	}

	next := w.now().Add(w.retryAfter(attempt))
	if _, err := w.store.MarkDeliveryRetry(ctx, delivery.DeliveryID, sendErr.Error(), next); err != nil {
		return err
	}
	w.logger.Warn("alert send failed, retry scheduled",
		zap.String("delivery_id", delivery.DeliveryID),
		zap.Int("attempt", attempt),
		zap.Time("next_attempt_at", next),
		zap.Error(sendErr),
	)
	return nil
}

// retryAfter is the wait following the given failed attempt: RetryDelay
// after the first, doubling each time, capped at MaxRetryDelay.
func (w *Worker) retryAfter(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.retryDelay
	b.MaxInterval = w.maxRetryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

func renderSubject(payload store.CheckInEventPayload) string {
	name := clientLabel(payload)
	if payload.IsFirstCheckIn {
		return "First check-in: " + name
	}
	return "Check-in: " + name
}

func renderMessage(payload store.CheckInEventPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s checked in at %s", clientLabel(payload), payload.Location)
	if !payload.CheckInTime.IsZero() {
		fmt.Fprintf(&b, " on %s", payload.CheckInTime.UTC().Format(time.RFC3339))
	}
	switch payload.BiometricType {
	case models.BiometricFacial:
		b.WriteString(", verified by facial photo")
	case models.BiometricFingerprint:
		b.WriteString(", verified by fingerprint")
	}
	if payload.IsFirstCheckIn {
		b.WriteString(". This is the client's first check-in.")
	} else {
		b.WriteString(".")
	}
	return b.String()
}

func clientLabel(payload store.CheckInEventPayload) string {
	if name := strings.TrimSpace(payload.ClientName); name != "" {
		return name
	}
	return fmt.Sprintf("client #%d", payload.ClientID)
}

// Start runs the worker every interval until ctx is done. It returns after
// the in-flight Run finishes.
func Start(ctx context.Context, interval time.Duration, w *Worker) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("alert worker error", zap.Error(err))
			}
		}
	}
}
