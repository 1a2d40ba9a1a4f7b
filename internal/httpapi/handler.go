package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bailbond/checkin-service/internal/biometric"
	"bailbond/checkin-service/internal/cache"
	"bailbond/checkin-service/internal/models"
	"bailbond/checkin-service/internal/store"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxNotesLength   = 2000
	maxAccuracyLabel = 32
	cacheNamespace   = "checkin"
)

type Handler struct {
	store        store.CheckInStore
	cache        cache.Cache
	logger       *zap.Logger
	cacheTTL     time.Duration
	limits       biometric.Limits
	maxClockSkew time.Duration
	now          func() time.Time
}

type Options struct {
	Logger            *zap.Logger
	CacheTTL          time.Duration
	MaxBiometricBytes int
	MaxClockSkew      time.Duration
}

type createCheckInRequest struct {
	ClientID       int64      `json:"clientId"`
	Location       string     `json:"location"`
	Notes          string     `json:"notes"`
	CheckInTime    *time.Time `json:"checkInTime"`
	BiometricData  string     `json:"biometricData"`
	BiometricType  string     `json:"biometricType"`
	IsFirstCheckIn bool       `json:"isFirstCheckIn"`
	GPSAccuracy    string     `json:"gpsAccuracy"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(st store.CheckInStore, c cache.Cache, options Options) *Handler {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = cache.NewMemoryCache(0)
	}
	skew := options.MaxClockSkew
	if skew <= 0 {
		skew = 5 * time.Minute
	}
	return &Handler{
		store:        st,
		cache:        c,
		logger:       logger,
		cacheTTL:     options.CacheTTL,
		limits:       biometric.Limits{MaxBytes: options.MaxBiometricBytes},
		maxClockSkew: skew,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) Routes() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", expvar.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/check-ins", h.handleCreateCheckIn).Methods(http.MethodPost)
	api.HandleFunc("/clients/{clientId}/check-ins", h.handleListCheckIns).Methods(http.MethodGet)
	api.HandleFunc("/clients/{clientId}/check-ins/audit", h.handleAuditChain).Methods(http.MethodGet)
	return AuthMiddleware(h.store, router)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleCreateCheckIn(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromRequest(r)
	if requestID == "" {
		requestID = uuid.NewString()
	} else if !isValidUUID(requestID) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "X-Request-ID must be a UUID")
		return
	}

	var req createCheckInRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, int64(h.maxBodyBytes())))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.Location = strings.TrimSpace(req.Location)
	req.Notes = strings.TrimSpace(req.Notes)
	req.BiometricType = strings.TrimSpace(req.BiometricType)
	req.BiometricData = strings.TrimSpace(req.BiometricData)
	req.GPSAccuracy = strings.TrimSpace(req.GPSAccuracy)

	if req.ClientID <= 0 {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "clientId is required")
		return
	}
	if !requireClientAccess(w, r, req.ClientID) {
		return
	}
	if req.Location == "" {
		writeError(w, requestID, http.StatusBadRequest, "location_required", "GPS location is required for check-in")
		return
	}
	lat, lon, err := models.ParseLocation(req.Location)
	if err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_location", "location must be \"latitude,longitude\" within valid ranges")
		return
	}
	if len(req.Notes) > maxNotesLength {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "notes must be at most 2000 characters")
		return
	}
	if len(req.GPSAccuracy) > maxAccuracyLabel {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "gpsAccuracy is too long")
		return
	}

	now := h.now().UTC().Truncate(store.TimestampPrecision)
	checkInTime := now
	if req.CheckInTime != nil && !req.CheckInTime.IsZero() {
		checkInTime = req.CheckInTime.UTC().Truncate(store.TimestampPrecision)
		if checkInTime.After(now.Add(h.maxClockSkew)) {
			writeError(w, requestID, http.StatusBadRequest, "invalid_request", "checkInTime is in the future")
			return
		}
	}

	biometricType := models.BiometricType(req.BiometricType)
	var digest string
	switch {
	case biometricType == "" && req.BiometricData == "":
	case biometricType == "" || req.BiometricData == "":
		writeError(w, requestID, http.StatusBadRequest, "invalid_biometric", "biometricType and biometricData must be provided together")
		return
	case !biometricType.Valid():
		writeError(w, requestID, http.StatusBadRequest, "invalid_biometric", "biometricType must be facial or fingerprint")
		return
	default:
		artifact, err := biometric.Validate(biometricType, req.BiometricData, h.limits)
		if err != nil {
			h.logger.Info("biometric rejected", zap.Int64("client_id", req.ClientID), zap.String("type", string(biometricType)), zap.Error(err))
			writeError(w, requestID, http.StatusBadRequest, "invalid_biometric", biometricMessage(err))
			return
		}
		digest = artifact.Digest
	}

	checkIn, created, err := h.store.CreateCheckIn(r.Context(), store.CreateCheckInInput{
		RequestID:       requestID,
		ClientID:        req.ClientID,
		Location:        models.FormatLocation(lat, lon),
		Latitude:        lat,
		Longitude:       lon,
		Notes:           req.Notes,
		CheckInTime:     checkInTime,
		BiometricType:   biometricType,
		BiometricData:   req.BiometricData,
		BiometricDigest: digest,
		ClaimedFirst:    req.IsFirstCheckIn,
		GPSAccuracy:     req.GPSAccuracy,
		CreatedAt:       now,
	})
	if err != nil {
		status, code, msg := mapError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("create check-in failed", zap.String("request_id", requestID), zap.Int64("client_id", req.ClientID), zap.Error(err))
		}
		writeError(w, requestID, status, code, msg)
		return
	}

	if created {
		h.invalidateClient(r.Context(), req.ClientID)
		if req.IsFirstCheckIn != checkIn.IsFirstCheckIn {
			h.logger.Info("first check-in claim differs from history",
				zap.Int64("client_id", req.ClientID), zap.Bool("claimed", req.IsFirstCheckIn), zap.Bool("recorded", checkIn.IsFirstCheckIn))
		}
		writeJSON(w, http.StatusCreated, checkIn)
		return
	}
	writeJSON(w, http.StatusOK, checkIn)
}

func (h *Handler) handleListCheckIns(w http.ResponseWriter, r *http.Request) {
	clientID, ok := clientIDFromPath(w, r)
	if !ok {
		return
	}
	if !requireClientAccess(w, r, clientID) {
		return
	}

	limit := defaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxListLimit)
	}

	checkIns, err := h.loadCheckIns(r.Context(), clientID)
	if err != nil {
		status, code, msg := mapError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("list check-ins failed", zap.Int64("client_id", clientID), zap.Error(err))
		}
		writeError(w, "", status, code, msg)
		return
	}
	if len(checkIns) > limit {
		checkIns = checkIns[:limit]
	}
	writeJSON(w, http.StatusOK, checkIns)
}

func (h *Handler) handleAuditChain(w http.ResponseWriter, r *http.Request) {
	clientID, ok := clientIDFromPath(w, r)
	if !ok {
		return
	}
	if !requireStaff(w, r) {
		return
	}
	if _, err := h.store.GetClient(r.Context(), clientID); err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	entries, err := h.store.ListCheckInChain(r.Context(), clientID)
	if err != nil {
		h.logger.Error("load check-in chain failed", zap.Int64("client_id", clientID), zap.Error(err))
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	report := store.VerifyChain(entries)
	if !report.Valid {
		h.logger.Warn("check-in chain broken", zap.Int64("client_id", clientID), zap.Int("broken_at", report.BrokenAt))
	}
	writeJSON(w, http.StatusOK, report)
}

// loadCheckIns serves the newest check-ins for a client, reading through the
// cache. The cached list always holds up to maxListLimit entries.
func (h *Handler) loadCheckIns(ctx context.Context, clientID int64) ([]models.CheckIn, error) {
	key := clientCacheKey(clientID)
	if h.cacheTTL > 0 {
		if raw, err := h.cache.Get(ctx, key); err == nil {
			var cached []models.CheckIn
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			h.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	if _, err := h.store.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	checkIns, err := h.store.ListClientCheckIns(ctx, clientID, maxListLimit)
	if err != nil {
		return nil, err
	}
	if checkIns == nil {
		checkIns = []models.CheckIn{}
	}

	if h.cacheTTL > 0 {
		if raw, err := json.Marshal(checkIns); err == nil {
			if err := h.cache.Set(ctx, key, raw, h.cacheTTL); err != nil {
				h.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return checkIns, nil
}

func (h *Handler) invalidateClient(ctx context.Context, clientID int64) {
	if err := h.cache.Delete(ctx, clientCacheKey(clientID)); err != nil {
		h.logger.Warn("cache invalidation failed", zap.Int64("client_id", clientID), zap.Error(err))
	}
}

// maxBodyBytes leaves room for base64 expansion of the largest accepted
// biometric plus the rest of the payload.
func (h *Handler) maxBodyBytes() int {
	limit := h.limits.MaxBytes
	if limit <= 0 {
		limit = biometric.DefaultMaxBytes
	}
	return limit*4/3 + 64<<10
}

func clientCacheKey(clientID int64) string {
	return cache.Key(cacheNamespace, "client-checkins", strconv.FormatInt(clientID, 10))
}

func clientIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["clientId"]
	clientID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || clientID <= 0 {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "clientId must be a positive integer")
		return 0, false
	}
	return clientID, true
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func biometricMessage(err error) string {
	switch {
	case errors.Is(err, biometric.ErrTooLarge):
		return "biometric data exceeds the maximum allowed size"
	case errors.Is(err, biometric.ErrImageTooSmall):
		return "facial image resolution is too low"
	case errors.Is(err, biometric.ErrUnsupportedType):
		return "biometricType must be facial or fingerprint"
	default:
		return "biometric data could not be decoded"
	}
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrClientNotFound):
		return http.StatusNotFound, "client_not_found", "client not found"
	case errors.Is(err, store.ErrClientInactive):
		return http.StatusConflict, "client_inactive", "client is not active"
	case errors.Is(err, store.ErrBiometricRequired):
		return http.StatusUnprocessableEntity, "biometric_required", "biometric verification is required for the first check-in"
	case errors.Is(err, store.ErrAccessDenied):
		return http.StatusForbidden, "access_denied", "access denied"
	case errors.Is(err, store.ErrRequestIDConflict):
		return http.StatusConflict, "request_id_conflict", "X-Request-ID has already been used"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable", "request cancelled"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
