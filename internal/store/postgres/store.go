package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"bailbond/checkin-service/internal/models"
	"bailbond/checkin-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxListLimit = 200

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) GetClient(ctx context.Context, clientID int64) (models.Client, error) {
	var client models.Client
	row := s.pool.QueryRow(ctx, `
		SELECT client_id, full_name, status, created_at
		FROM clients
		WHERE client_id = $1
	`, clientID)
	if err := row.Scan(&client.ClientID, &client.FullName, &client.Status, &client.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Client{}, store.ErrClientNotFound
		}
		return models.Client{}, err
	}
	return client, nil
}

func (s *Store) ListClientCheckIns(ctx context.Context, clientID int64, limit int) ([]models.CheckIn, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT checkin_id, client_id, location, latitude, longitude, notes, checkin_time,
			biometric_type, biometric_digest, is_first_checkin, gps_accuracy, request_id, created_at
		FROM check_ins
		WHERE client_id = $1
		ORDER BY checkin_time DESC, seq DESC
		LIMIT $2
	`, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checkIns := []models.CheckIn{}
	for rows.Next() {
		checkIn, err := scanCheckIn(rows)
		if err != nil {
			return nil, err
		}
		checkIns = append(checkIns, checkIn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return checkIns, nil
}

func (s *Store) ListCheckInChain(ctx context.Context, clientID int64) ([]store.ChainEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT checkin_id, client_id, seq, location, checkin_time, biometric_digest, prev_hash, hash
		FROM check_ins
		WHERE client_id = $1
		ORDER BY seq ASC
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []store.ChainEntry
	for rows.Next() {
		var entry store.ChainEntry
		var digest sql.NullString
		if err := rows.Scan(&entry.CheckInID, &entry.ClientID, &entry.Seq, &entry.Location, &entry.CheckInTime, &digest, &entry.PrevHash, &entry.Hash); err != nil {
			return nil, err
		}
		entry.BiometricDigest = digest.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateCheckIn records a check-in. The client row is locked for the
// duration of the transaction so the first-check-in decision and the chain
// sequence cannot race with a concurrent submission for the same client.
// The bool result is false when the request id was already recorded.
func (s *Store) CreateCheckIn(ctx context.Context, input store.CreateCheckInInput) (models.CheckIn, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.CheckIn{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	client, err := lockClient(ctx, tx, input.ClientID)
	if err != nil {
		return models.CheckIn{}, false, err
	}

	// With the client row locked, a concurrent request carrying the same id
	// for this client has either committed or not started.
	existing, found, err := findCheckInByRequestID(ctx, tx, input.RequestID)
	if err != nil {
		return models.CheckIn{}, false, err
	}
	if found {
		if existing.ClientID != input.ClientID {
			return models.CheckIn{}, false, store.ErrRequestIDConflict
		}
		if err := tx.Commit(ctx); err != nil {
			return models.CheckIn{}, false, err
		}
		return existing, false, nil
	}

	if client.Status != models.ClientStatusActive {
		return models.CheckIn{}, false, store.ErrClientInactive
	}

	prevSeq, prevHash, err := lastChainLink(ctx, tx, input.ClientID)
	if err != nil {
		return models.CheckIn{}, false, err
	}
	first := prevSeq == 0
	if first && input.BiometricType == "" {
		return models.CheckIn{}, false, store.ErrBiometricRequired
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	createdAt = createdAt.UTC().Truncate(store.TimestampPrecision)
	checkIn := models.CheckIn{
		CheckInID:       uuid.NewString(),
		ClientID:        input.ClientID,
		Location:        input.Location,
		Latitude:        input.Latitude,
		Longitude:       input.Longitude,
		Notes:           input.Notes,
		CheckInTime:     input.CheckInTime.UTC().Truncate(store.TimestampPrecision),
		BiometricType:   input.BiometricType,
		BiometricDigest: input.BiometricDigest,
		IsFirstCheckIn:  first,
		GPSAccuracy:     input.GPSAccuracy,
		RequestID:       input.RequestID,
		CreatedAt:       createdAt,
	}
	seq := prevSeq + 1
	hash := store.ComputeCheckInHash(prevHash, checkIn.CheckInID, checkIn.ClientID, checkIn.Location, checkIn.CheckInTime, checkIn.BiometricDigest, seq)

	_, err = tx.Exec(ctx, `
		INSERT INTO check_ins (
			checkin_id, request_id, client_id, seq, location, latitude, longitude, notes, checkin_time,
			biometric_type, biometric_data, biometric_digest, is_first_checkin, claimed_first_checkin,
			gps_accuracy, prev_hash, hash, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`, checkIn.CheckInID, checkIn.RequestID, checkIn.ClientID, seq, checkIn.Location, checkIn.Latitude, checkIn.Longitude,
		checkIn.Notes, checkIn.CheckInTime, nullIfEmpty(string(checkIn.BiometricType)), nullIfEmpty(input.BiometricData),
		nullIfEmpty(checkIn.BiometricDigest), first, input.ClaimedFirst, checkIn.GPSAccuracy, prevHash, hash, createdAt)
	if err != nil {
		if isUniqueViolation(err, "check_ins_request_id_key") {
			return models.CheckIn{}, false, store.ErrRequestIDConflict
		}
		return models.CheckIn{}, false, err
	}

	if err := insertOutboxEvent(ctx, tx, client, checkIn); err != nil {
		return models.CheckIn{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.CheckIn{}, false, err
	}
	return checkIn, true, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	var session store.Session
	var clientID sql.NullInt64
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, user_id, role, client_id, expires_at
		FROM sessions
		WHERE session_id = $1
	`, sessionID)
	if err := row.Scan(&session.SessionID, &session.UserID, &session.Role, &clientID, &session.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Session{}, store.ErrSessionNotFound
		}
		return store.Session{}, err
	}
	if !session.ExpiresAt.After(s.now()) {
		return store.Session{}, store.ErrSessionExpired
	}
	session.ClientID = clientID.Int64
	return session, nil
}

func lockClient(ctx context.Context, tx pgx.Tx, clientID int64) (models.Client, error) {
	var client models.Client
	row := tx.QueryRow(ctx, `
		SELECT client_id, full_name, status, created_at
		FROM clients
		WHERE client_id = $1
		FOR UPDATE
	`, clientID)
	if err := row.Scan(&client.ClientID, &client.FullName, &client.Status, &client.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Client{}, store.ErrClientNotFound
		}
		return models.Client{}, err
	}
	return client, nil
}

func lastChainLink(ctx context.Context, tx pgx.Tx, clientID int64) (int, string, error) {
	var seq int
	var hash string
	row := tx.QueryRow(ctx, `
		SELECT seq, hash
		FROM check_ins
		WHERE client_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`, clientID)
	if err := row.Scan(&seq, &hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", nil
		}
		return 0, "", err
	}
	return seq, hash, nil
}

func findCheckInByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.CheckIn, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT checkin_id, client_id, location, latitude, longitude, notes, checkin_time,
			biometric_type, biometric_digest, is_first_checkin, gps_accuracy, request_id, created_at
		FROM check_ins
		WHERE request_id = $1
	`, requestID)
	checkIn, err := scanCheckIn(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CheckIn{}, false, nil
		}
		return models.CheckIn{}, false, err
	}
	return checkIn, true, nil
}

func scanCheckIn(row pgx.Row) (models.CheckIn, error) {
	var checkIn models.CheckIn
	var biometricType sql.NullString
	var digest sql.NullString
	if err := row.Scan(&checkIn.CheckInID, &checkIn.ClientID, &checkIn.Location, &checkIn.Latitude, &checkIn.Longitude,
		&checkIn.Notes, &checkIn.CheckInTime, &biometricType, &digest, &checkIn.IsFirstCheckIn, &checkIn.GPSAccuracy,
		&checkIn.RequestID, &checkIn.CreatedAt); err != nil {
		return models.CheckIn{}, err
	}
	checkIn.BiometricType = models.BiometricType(biometricType.String)
	checkIn.BiometricDigest = digest.String
	return checkIn, nil
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, client models.Client, checkIn models.CheckIn) error {
	payload, err := json.Marshal(store.CheckInEventPayload{
		CheckInID:      checkIn.CheckInID,
		ClientID:       checkIn.ClientID,
		ClientName:     client.FullName,
		Location:       checkIn.Location,
		CheckInTime:    checkIn.CheckInTime,
		BiometricType:  checkIn.BiometricType,
		IsFirstCheckIn: checkIn.IsFirstCheckIn,
	})
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), store.EventCheckInRecorded, payload, checkIn.CreatedAt)
	return err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
