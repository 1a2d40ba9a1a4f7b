package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bailbond/checkin-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// nilEventID sorts before every generated event id.
const nilEventID = "00000000-0000-0000-0000-000000000000"

func (s *Store) ListOutboxEvents(ctx context.Context, after store.OutboxOffset, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	afterID := after.EventID
	if afterID == "" {
		afterID = nilEventID
	}
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, type, payload, created_at
		FROM outbox_events
		WHERE (created_at, event_id) > ($1, $2::uuid)
		ORDER BY created_at ASC, event_id ASC
		LIMIT $3
	`, after.CreatedAt, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		var payload []byte
		if err := rows.Scan(&event.EventID, &event.Type, &payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.Payload = payload
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) GetLastOffset(ctx context.Context, consumer string) (store.OutboxOffset, error) {
	var offset store.OutboxOffset
	row := s.pool.QueryRow(ctx, `
		SELECT last_created_at, last_event_id
		FROM outbox_offsets
		WHERE consumer = $1
	`, consumer)
	if err := row.Scan(&offset.CreatedAt, &offset.EventID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.OutboxOffset{}, nil
		}
		return store.OutboxOffset{}, err
	}
	return offset, nil
}

func (s *Store) UpdateOffset(ctx context.Context, consumer string, offset store.OutboxOffset) error {
	if offset.EventID == "" {
		offset.EventID = nilEventID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO outbox_offsets (consumer, last_created_at, last_event_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (consumer) DO UPDATE
		SET last_created_at = EXCLUDED.last_created_at, last_event_id = EXCLUDED.last_event_id
	`, consumer, offset.CreatedAt, offset.EventID)
	return err
}

func (s *Store) InsertDelivery(ctx context.Context, delivery store.Delivery) error {
	if delivery.DeliveryID == "" {
		delivery.DeliveryID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alert_deliveries (
			delivery_id, event_id, channel, recipient, subject, message, status, attempts, last_error, next_attempt_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, delivery.DeliveryID, delivery.EventID, delivery.Channel, delivery.Recipient, delivery.Subject, delivery.Message,
		delivery.Status, delivery.Attempts, nullIfEmpty(delivery.LastError), nullTime(delivery.NextAttemptAt))
	return err
}

// ListDueDeliveries returns pending deliveries whose retry time has passed,
// oldest first.
func (s *Store) ListDueDeliveries(ctx context.Context, now time.Time, limit int) ([]store.Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT delivery_id, event_id, channel, recipient, subject, message, status, attempts, last_error, next_attempt_at, created_at
		FROM alert_deliveries
		WHERE status = 'pending' AND next_attempt_at IS NOT NULL AND next_attempt_at <= $1
		ORDER BY next_attempt_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []store.Delivery
	for rows.Next() {
		var d store.Delivery
		var lastError sql.NullString
		if err := rows.Scan(&d.DeliveryID, &d.EventID, &d.Channel, &d.Recipient, &d.Subject, &d.Message, &d.Status,
			&d.Attempts, &lastError, &d.NextAttemptAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.LastError = lastError.String
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return deliveries, nil
}

func (s *Store) MarkDeliverySent(ctx context.Context, deliveryID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE alert_deliveries
		SET status = 'sent', attempts = attempts + 1, sent_at = $2, last_error = NULL, next_attempt_at = NULL
		WHERE delivery_id = $1
	`, deliveryID, s.now())
	return err
}

func (s *Store) MarkDeliveryRetry(ctx context.Context, deliveryID, lastError string, nextAttemptAt time.Time) (int, error) {
	var attempts int
	row := s.pool.QueryRow(ctx, `
		UPDATE alert_deliveries
		SET status = 'pending', attempts = attempts + 1, last_error = $2, next_attempt_at = $3
		WHERE delivery_id = $1
		RETURNING attempts
	`, deliveryID, lastError, nextAttemptAt)
	if err := row.Scan(&attempts); err != nil {
		return 0, err
	}
	return attempts, nil
}

func (s *Store) MarkDeliveryFailed(ctx context.Context, deliveryID, lastError string) (int, error) {
	var attempts int
	row := s.pool.QueryRow(ctx, `
		UPDATE alert_deliveries
		SET status = 'failed', attempts = attempts + 1, last_error = $2, next_attempt_at = NULL
		WHERE delivery_id = $1
		RETURNING attempts
	`, deliveryID, lastError)
	if err := row.Scan(&attempts); err != nil {
		return 0, err
	}
	return attempts, nil
}

func (s *Store) InsertDeadLetter(ctx context.Context, deliveryID, reason string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alert_dead_letters (delivery_id, reason)
		VALUES ($1, $2)
		ON CONFLICT (delivery_id) DO NOTHING
	`, deliveryID, reason)
	return err
}

func nullTime(value *time.Time) interface{} {
	if value == nil || value.IsZero() {
		return nil
	}
	return *value
}
