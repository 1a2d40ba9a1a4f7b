package store

import (
	"context"
	"encoding/json"
	"time"

	"bailbond/checkin-service/internal/models"
)

type CreateCheckInInput struct {
	RequestID       string
	ClientID        int64
	Location        string
	Latitude        float64
	Longitude       float64
	Notes           string
	CheckInTime     time.Time
	BiometricType   models.BiometricType
	BiometricData   string
	BiometricDigest string
	ClaimedFirst    bool
	GPSAccuracy     string
	CreatedAt       time.Time
}

type CheckInStore interface {
	GetClient(ctx context.Context, clientID int64) (models.Client, error)
	ListClientCheckIns(ctx context.Context, clientID int64, limit int) ([]models.CheckIn, error)
	ListCheckInChain(ctx context.Context, clientID int64) ([]ChainEntry, error)
	CreateCheckIn(ctx context.Context, input CreateCheckInInput) (models.CheckIn, bool, error)
	GetSession(ctx context.Context, sessionID string) (Session, error)
}

type OutboxStore interface {
	ListOutboxEvents(ctx context.Context, after OutboxOffset, limit int) ([]OutboxEvent, error)
	GetLastOffset(ctx context.Context, consumer string) (OutboxOffset, error)
	UpdateOffset(ctx context.Context, consumer string, offset OutboxOffset) error
	InsertDelivery(ctx context.Context, delivery Delivery) error
	ListDueDeliveries(ctx context.Context, now time.Time, limit int) ([]Delivery, error)
	MarkDeliverySent(ctx context.Context, deliveryID string) error
	MarkDeliveryRetry(ctx context.Context, deliveryID, lastError string, nextAttemptAt time.Time) (int, error)
	MarkDeliveryFailed(ctx context.Context, deliveryID, lastError string) (int, error)
	InsertDeadLetter(ctx context.Context, deliveryID, reason string) error
}

type Session struct {
	SessionID string
	UserID    string
	Role      string
	ClientID  int64
	ExpiresAt time.Time
}

type OutboxEvent struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// OutboxOffset is a consumer's position in the outbox. Events are ordered by
// (CreatedAt, EventID) so events sharing a timestamp are never skipped.
type OutboxOffset struct {
	CreatedAt time.Time
	EventID   string
}

func (o OutboxOffset) IsZero() bool {
	return o.CreatedAt.IsZero() && o.EventID == ""
}

// Delivery is one alert bound for a recipient. A pending delivery with a
// NextAttemptAt is retried once that time passes.
type Delivery struct {
	DeliveryID    string
	EventID       string
	Channel       string
	Recipient     string
	Subject       string
	Message       string
	Status        string
	Attempts      int
	LastError     string
	NextAttemptAt *time.Time
	CreatedAt     time.Time
}

const EventCheckInRecorded = "checkin.recorded"

// CheckInEventPayload is the outbox payload written alongside each check-in.
type CheckInEventPayload struct {
	CheckInID      string               `json:"checkin_id"`
	ClientID       int64                `json:"client_id"`
	ClientName     string               `json:"client_name"`
	Location       string               `json:"location"`
	CheckInTime    time.Time            `json:"checkin_time"`
	BiometricType  models.BiometricType `json:"biometric_type,omitempty"`
	IsFirstCheckIn bool                 `json:"is_first_checkin"`
}
