// Package checkin implements the client side of a compliance check-in: it
// gates submission behind a GPS fix and, for a client's first check-in, a
// facial or fingerprint capture.
package checkin

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"bailbond/checkin-service/internal/models"

	"go.uber.org/zap"
)

// Backend is the REST surface the flow talks to.
type Backend interface {
	HistorySource
	SubmitCheckIn(ctx context.Context, submission models.CheckInSubmission) (models.CheckIn, error)
}

// Invalidator drops cached queries so dependent views re-fetch.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

type Toast struct {
	Title       string
	Description string
	Destructive bool
}

type Notifier interface {
	Notify(toast Toast)
}

// userMessenger is implemented by backend errors carrying a message meant
// for the end user.
type userMessenger interface {
	UserMessage() string
}

type Config struct {
	ClientID int64
	// Origin is the page origin the fingerprint ceremony is scoped to.
	Origin string

	Backend       Backend
	Invalidator   Invalidator
	Geolocator    Geolocator
	Camera        Camera
	Authenticator Authenticator
	Notifier      Notifier
	Logger        *zap.Logger

	PositionOptions   PositionOptions
	StreamConstraints StreamConstraints

	Now    func() time.Time
	Random io.Reader
}

type State struct {
	Phase          Phase
	Location       string
	Fix            *LocationFix
	Biometric      BiometricCapture
	BiometricMode  BiometricMode
	IsFirstCheckIn bool
	HistoryLoaded  bool
	Notes          string
	CanSubmit      bool
	LastFailure    *Failure
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeSubmitted
	outcomeFailed
)

// Flow is safe for concurrent use. The mutex is never held across device or
// network calls; each operation records a generation before it suspends and
// drops its result if the generation moved or the flow closed meanwhile.
type Flow struct {
	cfg      Config
	logger   *zap.Logger
	lifetime context.Context
	cancel   context.CancelFunc

	mu            sync.Mutex
	closed        bool
	mounted       bool
	historyLoaded bool
	firstCheckIn  bool
	locating      bool
	location      string
	fix           *LocationFix
	mode          BiometricMode
	camera        *cameraSession
	biometric     BiometricCapture
	notes         string
	submitting    bool
	outcome       outcome
	lastFailure   *Failure
	locationGen   uint64
	biometricGen  uint64
}

func New(cfg Config) (*Flow, error) {
	if cfg.ClientID <= 0 {
		return nil, errors.New("client id is required")
	}
	if cfg.Backend == nil {
		return nil, errors.New("backend is required")
	}
	if cfg.Invalidator == nil {
		if inv, ok := cfg.Backend.(Invalidator); ok {
			cfg.Invalidator = inv
		}
	}
	if cfg.PositionOptions == (PositionOptions{}) {
		cfg.PositionOptions = DefaultPositionOptions()
	}
	if cfg.StreamConstraints == (StreamConstraints{}) {
		cfg.StreamConstraints = DefaultStreamConstraints()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lifetime, cancel := context.WithCancel(context.Background())
	return &Flow{
		cfg:          cfg,
		logger:       logger.With(zap.Int64("client_id", cfg.ClientID)),
		lifetime:     lifetime,
		cancel:       cancel,
		firstCheckIn: true,
	}, nil
}

// Mount determines once whether this is the client's first check-in. Until
// it completes, and whenever the history lookup fails, the flow requires a
// biometric capture.
func (f *Flow) Mount(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.mounted {
		f.mu.Unlock()
		return nil
	}
	f.mounted = true
	f.mu.Unlock()

	opCtx, done := f.operationContext(ctx)
	defer done()
	first, err := detectFirstCheckIn(opCtx, f.cfg.Backend, f.cfg.ClientID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if err != nil {
		f.logger.Warn("check-in history unavailable, requiring biometric", zap.Error(err))
	}
	f.firstCheckIn = first
	f.historyLoaded = true
	return nil
}

func (f *Flow) AcquireLocation(ctx context.Context) error {
	f.mu.Lock()
	if err := f.beginLocked(actionAcquireLocation); err != nil {
		f.mu.Unlock()
		return err
	}
	f.locationGen++
	gen := f.locationGen
	f.locating = true
	f.mu.Unlock()

	opCtx, done := f.operationContext(ctx)
	defer done()
	fix, err := acquireLocation(opCtx, f.cfg.Geolocator, f.cfg.PositionOptions)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if gen != f.locationGen {
		return ErrSuperseded
	}
	f.locating = false
	if err != nil {
		var failure *Failure
		if errors.As(err, &failure) {
			f.lastFailure = failure
		}
		return err
	}
	f.location = fix.Location
	f.fix = &fix
	return nil
}

// StartCamera opens a user-facing stream for facial capture. Any capture in
// progress is abandoned and a previously captured biometric is discarded.
func (f *Flow) StartCamera(ctx context.Context) error {
	f.mu.Lock()
	if err := f.beginLocked(actionStartCamera); err != nil {
		f.mu.Unlock()
		return err
	}
	gen := f.resetBiometricLocked(BiometricModeCamera)
	f.mu.Unlock()

	if f.cfg.Camera == nil {
		return f.finishCameraStart(gen, nil, ErrCameraNotFound)
	}
	opCtx, done := f.operationContext(ctx)
	defer done()
	stream, err := f.cfg.Camera.Open(opCtx, f.cfg.StreamConstraints)
	return f.finishCameraStart(gen, stream, err)
}

func (f *Flow) finishCameraStart(gen uint64, stream MediaStream, openErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stale := f.closed || gen != f.biometricGen
	if stale {
		if stream != nil {
			newCameraSession(stream).release()
		}
		if f.closed {
			return ErrClosed
		}
		return ErrSuperseded
	}
	if openErr != nil {
		if stream != nil {
			newCameraSession(stream).release()
		}
		f.mode = BiometricModeNone
		failure := classifyCameraError(openErr)
		f.lastFailure = failure
		return failure
	}
	f.camera = newCameraSession(stream)
	return nil
}

// CapturePhoto freezes the current frame as the facial biometric and releases
// the camera before the image is stored.
func (f *Flow) CapturePhoto(ctx context.Context) error {
	f.mu.Lock()
	if err := f.beginLocked(actionCapturePhoto); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.mode != BiometricModeCamera || f.camera == nil {
		f.mu.Unlock()
		return ErrCameraNotActive
	}
	session := f.camera
	gen := f.biometricGen
	f.mu.Unlock()

	opCtx, done := f.operationContext(ctx)
	defer done()
	dataURL, err := captureFrame(opCtx, session.stream, f.cfg.StreamConstraints)
	session.release()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if gen != f.biometricGen {
		return ErrSuperseded
	}
	f.camera = nil
	f.mode = BiometricModeNone
	if err != nil {
		failure := newFailure(FailureCameraUnavailable, err)
		f.lastFailure = failure
		return failure
	}
	f.biometric = FacialImage{DataURL: dataURL}
	return nil
}

func captureFrame(ctx context.Context, stream MediaStream, constraints StreamConstraints) (string, error) {
	frame, err := stream.Frame(ctx)
	if err != nil {
		return "", fmt.Errorf("read frame: %w", err)
	}
	return encodeFrame(frame, constraints.Width, constraints.Height)
}

// CancelCamera stops an open or opening camera session without capturing.
func (f *Flow) CancelCamera() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode != BiometricModeCamera {
		return
	}
	f.biometricGen++
	f.releaseCameraLocked()
	f.mode = BiometricModeNone
}

// CaptureFingerprint runs a platform credential ceremony and keeps the
// credential id as the biometric. Any capture in progress is abandoned and a
// previously captured biometric is discarded.
func (f *Flow) CaptureFingerprint(ctx context.Context) error {
	f.mu.Lock()
	if err := f.beginLocked(actionCaptureFingerprint); err != nil {
		f.mu.Unlock()
		return err
	}
	gen := f.resetBiometricLocked(BiometricModeFingerprint)
	f.mu.Unlock()

	opCtx, done := f.operationContext(ctx)
	defer done()
	credentialID, err := f.createCredential(opCtx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if gen != f.biometricGen {
		return ErrSuperseded
	}
	f.mode = BiometricModeNone
	if err != nil {
		if ctxErr := opCtx.Err(); ctxErr != nil && ctx.Err() != nil {
			return ctxErr
		}
		failure := classifyCredentialError(err)
		f.lastFailure = failure
		return failure
	}
	f.biometric = FingerprintCredential{CredentialID: credentialID}
	return nil
}

func (f *Flow) createCredential(ctx context.Context) (string, error) {
	auth := f.cfg.Authenticator
	if auth == nil {
		return "", ErrAuthenticatorUnsupported
	}
	available, err := auth.PlatformAuthenticatorAvailable(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthenticatorUnsupported, err)
	}
	if !available {
		return "", ErrAuthenticatorUnsupported
	}

	opts, err := newCredentialCreationOptions(f.cfg.Origin, f.cfg.ClientID, f.cfg.Random)
	if err != nil {
		return "", err
	}
	ceremonyCtx, cancel := context.WithTimeout(ctx, ceremonyTimeout(opts))
	defer cancel()
	credential, err := auth.CreateCredential(ceremonyCtx, opts)
	if err != nil {
		return "", err
	}
	if len(credential.RawID) == 0 {
		return "", errors.New("authenticator returned an empty credential id")
	}
	return base64.StdEncoding.EncodeToString(credential.RawID), nil
}

func (f *Flow) SetNotes(notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkLocked(actionSetNotes); err != nil {
		return err
	}
	f.notes = notes
	return nil
}

func (f *Flow) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canSubmitLocked()
}

// Submit re-checks the gate, posts the check-in and resets the form on
// success. On failure every acquired artifact is kept for a resubmission.
func (f *Flow) Submit(ctx context.Context) error {
	f.mu.Lock()
	if err := f.beginLocked(actionSubmit); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.location == "" {
		failure := newFailure(FailureMissingLocation, nil)
		f.lastFailure = failure
		f.mu.Unlock()
		return failure
	}
	if f.firstCheckIn && f.biometric == nil {
		failure := newFailure(FailureMissingBiometric, nil)
		f.lastFailure = failure
		f.mu.Unlock()
		return failure
	}
	submission := models.CheckInSubmission{
		ClientID:       f.cfg.ClientID,
		Location:       f.location,
		Notes:          f.notes,
		CheckInTime:    f.cfg.Now().UTC(),
		IsFirstCheckIn: f.firstCheckIn,
		GPSAccuracy:    models.GPSAccuracyHigh,
	}
	if f.biometric != nil {
		submission.BiometricType = f.biometric.Type()
		submission.BiometricData = f.biometric.Payload()
	}
	f.submitting = true
	f.mu.Unlock()

	opCtx, done := f.operationContext(ctx)
	defer done()
	_, err := f.cfg.Backend.SubmitCheckIn(opCtx, submission)

	f.mu.Lock()
	f.submitting = false
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		failure := newFailure(FailureSubmission, err)
		var messenger userMessenger
		if errors.As(err, &messenger) && messenger.UserMessage() != "" {
			failure.Message = messenger.UserMessage()
		}
		f.outcome = outcomeFailed
		f.lastFailure = failure
		f.mu.Unlock()

		f.logger.Warn("check-in submission failed", zap.Error(err))
		f.notify(Toast{Title: "Check-in failed", Description: failure.Message, Destructive: true})
		return failure
	}

	f.location = ""
	f.fix = nil
	f.notes = ""
	f.biometric = nil
	f.biometricGen++
	f.locationGen++
	f.locating = false
	f.releaseCameraLocked()
	f.mode = BiometricModeNone
	f.outcome = outcomeSubmitted
	f.mu.Unlock()

	if f.cfg.Invalidator != nil {
		if err := f.cfg.Invalidator.Invalidate(opCtx, CheckInQueryKeys(f.cfg.ClientID)...); err != nil {
			f.logger.Warn("check-in cache invalidation failed", zap.Error(err))
		}
	}
	f.notify(Toast{Title: "Check-in submitted", Description: "Your check-in has been recorded successfully."})
	return nil
}

// CheckInQueryKeys are the cached queries that depend on a client's
// check-ins.
func CheckInQueryKeys(clientID int64) []string {
	return []string{"check-ins", "clients/" + strconv.FormatInt(clientID, 10) + "/check-ins"}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	var fix *LocationFix
	if f.fix != nil {
		copied := *f.fix
		fix = &copied
	}
	return State{
		Phase:          f.phaseLocked(),
		Location:       f.location,
		Fix:            fix,
		Biometric:      f.biometric,
		BiometricMode:  f.mode,
		IsFirstCheckIn: f.firstCheckIn,
		HistoryLoaded:  f.historyLoaded,
		Notes:          f.notes,
		CanSubmit:      f.canSubmitLocked(),
		LastFailure:    f.lastFailure,
	}
}

// Close cancels in-flight operations and releases the camera. Results that
// arrive afterwards are discarded. Close is idempotent.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.cancel()
	f.releaseCameraLocked()
	f.mode = BiometricModeNone
}

func (f *Flow) checkLocked(a action) error {
	if f.closed {
		return ErrClosed
	}
	phase := f.phaseLocked()
	if !validTransition(a, phase) {
		return fmt.Errorf("%w: %s during %s", ErrInvalidAction, a, phase)
	}
	return nil
}

// beginLocked validates an action against the current phase and clears the
// previous outcome.
func (f *Flow) beginLocked(a action) error {
	if err := f.checkLocked(a); err != nil {
		return err
	}
	f.outcome = outcomeNone
	f.lastFailure = nil
	return nil
}

// resetBiometricLocked abandons any capture in progress, discards the held
// biometric and enters mode. It returns the new biometric generation.
func (f *Flow) resetBiometricLocked(mode BiometricMode) uint64 {
	f.biometricGen++
	f.releaseCameraLocked()
	f.biometric = nil
	f.mode = mode
	return f.biometricGen
}

func (f *Flow) releaseCameraLocked() {
	if f.camera != nil {
		f.camera.release()
		f.camera = nil
	}
}

func (f *Flow) phaseLocked() Phase {
	switch {
	case f.closed:
		return PhaseClosed
	case f.submitting:
		return PhaseSubmitting
	case f.locating:
		return PhaseLocationPending
	case f.mode != BiometricModeNone:
		return PhaseBiometricPending
	case f.outcome == outcomeSubmitted:
		return PhaseSubmitted
	case f.outcome == outcomeFailed:
		return PhaseSubmitFailed
	case f.biometric != nil:
		return PhaseBiometricReady
	case f.location != "":
		return PhaseLocationReady
	default:
		return PhaseIdle
	}
}

func (f *Flow) canSubmitLocked() bool {
	if f.closed || f.submitting || f.location == "" {
		return false
	}
	return !f.firstCheckIn || f.biometric != nil
}

// operationContext derives a context that ends with either the caller's
// context or the flow's lifetime.
func (f *Flow) operationContext(ctx context.Context) (context.Context, func()) {
	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(f.lifetime, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func (f *Flow) notify(toast Toast) {
	if f.cfg.Notifier != nil {
		f.cfg.Notifier.Notify(toast)
	}
}
