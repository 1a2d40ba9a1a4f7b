package checkin

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"bailbond/checkin-service/internal/biometric"
	"bailbond/checkin-service/internal/models"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2026, 4, 2, 15, 4, 5, 0, time.UTC)

type harness struct {
	flow     *Flow
	backend  *fakeBackend
	geo      *fakeGeolocator
	camera   *fakeCamera
	auth     *fakeAuthenticator
	notifier *recordingNotifier
}

func newHarness(t *testing.T, history []models.CheckIn) *harness {
	t.Helper()
	h := &harness{
		backend:  &fakeBackend{history: history},
		geo:      &fakeGeolocator{position: Position{Latitude: 40.7127753, Longitude: -74.0059728, Accuracy: 8}},
		camera:   &fakeCamera{},
		auth:     &fakeAuthenticator{available: true, rawID: []byte{0x01, 0x02, 0xfe, 0xff}},
		notifier: &recordingNotifier{},
	}
	flow, err := New(Config{
		ClientID:      42,
		Origin:        "https://portal.example.com:8443",
		Backend:       h.backend,
		Geolocator:    h.geo,
		Camera:        h.camera,
		Authenticator: h.auth,
		Notifier:      h.notifier,
		Now:           func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	t.Cleanup(flow.Close)
	h.flow = flow
	return h
}

func priorCheckIn() []models.CheckIn {
	return []models.CheckIn{{CheckInID: "prior", ClientID: 42}}
}

func mountedHarness(t *testing.T, history []models.CheckIn) *harness {
	t.Helper()
	h := newHarness(t, history)
	require.NoError(t, h.flow.Mount(context.Background()))
	return h
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Backend: &fakeBackend{}})
	assert.Error(t, err)

	_, err = New(Config{ClientID: 1})
	assert.Error(t, err)
}

func TestFirstCheckInRequiresLocationAndBiometric(t *testing.T) {
	ctx := context.Background()
	h := mountedHarness(t, nil)

	state := h.flow.State()
	assert.True(t, state.IsFirstCheckIn)
	assert.True(t, state.HistoryLoaded)
	assert.False(t, state.CanSubmit)

	require.NoError(t, h.flow.AcquireLocation(ctx))
	assert.False(t, h.flow.CanSubmit(), "location alone is not enough for a first check-in")

	require.NoError(t, h.flow.CaptureFingerprint(ctx))
	assert.True(t, h.flow.CanSubmit())
}

func TestFirstCheckInBiometricBeforeLocation(t *testing.T) {
	ctx := context.Background()
	h := mountedHarness(t, nil)

	require.NoError(t, h.flow.CaptureFingerprint(ctx))
	assert.False(t, h.flow.CanSubmit(), "biometric alone is not enough")

	require.NoError(t, h.flow.AcquireLocation(ctx))
	assert.True(t, h.flow.CanSubmit())
}

func TestReturningClientNeedsOnlyLocation(t *testing.T) {
	ctx := context.Background()
	h := mountedHarness(t, priorCheckIn())

	assert.False(t, h.flow.State().IsFirstCheckIn)
	assert.False(t, h.flow.CanSubmit())

	require.NoError(t, h.flow.AcquireLocation(ctx))
	assert.True(t, h.flow.CanSubmit())

	require.NoError(t, h.flow.StartCamera(ctx))
	assert.True(t, h.flow.CanSubmit(), "an open camera does not block a returning client")

	require.NoError(t, h.flow.Submit(ctx))
	submissions := h.backend.submitted()
	require.Len(t, submissions, 1)
	assert.False(t, submissions[0].IsFirstCheckIn)
	assert.Empty(t, submissions[0].BiometricType)
	assert.Empty(t, submissions[0].BiometricData)
	assert.True(t, h.camera.stream(0).allStopped(), "form reset releases the camera")
}

func TestHistoryFailureTreatedAsFirstCheckIn(t *testing.T) {
	h := newHarness(t, priorCheckIn())
	h.backend.historyErr = errors.New("connection refused")

	require.NoError(t, h.flow.Mount(context.Background()))
	assert.True(t, h.flow.State().IsFirstCheckIn)
}

func TestMountIsOneTime(t *testing.T) {
	ctx := context.Background()
	h := mountedHarness(t, nil)

	h.backend.history = priorCheckIn()
	require.NoError(t, h.flow.Mount(ctx))
	assert.True(t, h.flow.State().IsFirstCheckIn)

	require.NoError(t, h.flow.AcquireLocation(ctx))
	require.NoError(t, h.flow.CaptureFingerprint(ctx))
	require.NoError(t, h.flow.Submit(ctx))
	assert.True(t, h.flow.State().IsFirstCheckIn, "not re-evaluated after a successful submission")
}

func TestUnmountedFlowRequiresBiometric(t *testing.T) {
	h := newHarness(t, priorCheckIn())
	require.NoError(t, h.flow.AcquireLocation(context.Background()))
	assert.False(t, h.flow.CanSubmit())
}

func TestAcquireLocationFormatsSixDecimals(t *testing.T) {
	h := mountedHarness(t, priorCheckIn())
	require.NoError(t, h.flow.AcquireLocation(context.Background()))

	state := h.flow.State()
	assert.Equal(t, "40.712775,-74.005973", state.Location)
	require.NotNil(t, state.Fix)
	assert.Equal(t, models.AccuracySourceHighPrecision, state.Fix.AccuracySource)
	assert.Equal(t, 8.0, state.Fix.AccuracyMeters)
	assert.Equal(t, PhaseLocationReady, state.Phase)
}

func TestAcquireLocationFailureMessagesStateGPSIsMandatory(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind FailureKind
	}{
		{"permission denied", &PositionError{Code: PositionPermissionDenied, Message: "User denied Geolocation"}, FailureGPSPermissionDenied},
		{"unavailable", &PositionError{Code: PositionUnavailable}, FailureGPSUnavailable},
		{"timeout", &PositionError{Code: PositionTimeout}, FailureGPSTimeout},
		{"unsupported", ErrGeolocationUnsupported, FailureGPSUnsupported},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := mountedHarness(t, priorCheckIn())
			h.geo.err = tc.err

			err := h.flow.AcquireLocation(context.Background())
			require.Error(t, err)
			assert.True(t, IsKind(err, tc.kind), "got %v", err)

			state := h.flow.State()
			require.NotNil(t, state.LastFailure)
			assert.Contains(t, state.LastFailure.Message, "GPS location is mandatory")
			assert.Empty(t, state.Location)
			assert.False(t, state.CanSubmit)
			assert.Equal(t, int32(1), h.geo.calls.Load(), "no automatic retry")
		})
	}
}

func TestAcquireLocationWithoutGeolocator(t *testing.T) {
	flow, err := New(Config{ClientID: 42, Backend: &fakeBackend{}})
	require.NoError(t, err)
	defer flow.Close()

	err = flow.AcquireLocation(context.Background())
	assert.True(t, IsKind(err, FailureGPSUnsupported))
	assert.Contains(t, flow.State().LastFailure.Message, "GPS location is mandatory")
}

func TestAcquireLocationBoundedByTimeout(t *testing.T) {
	release := make(chan struct{})
	geo := &fakeGeolocator{release: release}
	flow, err := New(Config{
		ClientID:        42,
		Backend:         &fakeBackend{},
		Geolocator:      geo,
		PositionOptions: PositionOptions{EnableHighAccuracy: true, Timeout: 20 * time.Millisecond, MaximumAge: 30 * time.Second},
	})
	require.NoError(t, err)
	defer flow.Close()
	defer close(release)

	err = flow.AcquireLocation(context.Background())
	assert.True(t, IsKind(err, FailureGPSTimeout), "got %v", err)
	assert.Equal(t, PhaseIdle, flow.State().Phase)
}

func TestAcquireLocationRejectsOutOfRangeFix(t *testing.T) {
	h := mountedHarness(t, priorCheckIn())
	h.geo.position = Position{Latitude: 123, Longitude: 0}

	err := h.flow.AcquireLocation(context.Background())
	assert.True(t, IsKind(err, FailureGPSUnavailable))
}

func TestCapturePhotoStopsTracksAndStoresJPEG(t *testing.T) {
	ctx := context.Background()
	h := mountedHarness(t, nil)

	require.NoError(t, h.flow.StartCamera(ctx))
	state := h.flow.State()
	assert.Equal(t, BiometricModeCamera, state.BiometricMode)
	assert.Equal(t, PhaseBiometricPending, state.Phase)
	assert.Equal(t, DefaultStreamConstraints(), h.camera.got)

	require.NoError(t, h.flow.CapturePhoto(ctx))
	stream := h.camera.stream(0)
	assert.True(t, stream.allStopped(), "every track stopped exactly once")

	state = h.flow.State()
	assert.Equal(t, BiometricModeNone, state.BiometricMode)
	facial, ok := state.Biometric.(FacialImage)
	require.True(t, ok)
	assert.Equal(t, models.BiometricFacial, facial.Type())

	mediaType, raw, err := biometric.ParseDataURL(facial.DataURL)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mediaType)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)

	h.flow.Close()
	assert.True(t, stream.allStopped(), "close does not stop tracks a second time")
}

func TestCapturePhotoRequiresActiveCamera(t *testing.T) {
	h := mountedHarness(t, nil)
	err := h.flow.CapturePhoto(context.Background())
	assert.True(t, errors.Is(err, ErrInvalidAction) || errors.Is(err, ErrCameraNotActive), "got %v", err)
}

func TestCapturePhotoFrameErrorReleasesCamera(t *testing.T) {
	ctx := context.Background()
	h := mountedHarness(t, nil)
	require.NoError(t, h.flow.StartCamera(ctx))
	stream := h.camera.stream(0)
	stream.err = errors.New("video not ready")

	err := h.flow.CapturePhoto(ctx)
	assert.True(t, IsKind(err, FailureCameraUnavailable))
	assert.True(t, stream.allStopped())
	assert.Nil(t, h.flow.State().Biometric)
}

func TestCameraErrorsSuggestFingerprint(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		kind     FailureKind
		fallback bool
	}{
		{"permission denied", ErrCameraPermissionDenied, FailureCameraPermissionDenied, true},
		{"no camera", ErrCameraNotFound, FailureCameraNotFound, true},
		{"other", errors.New("device busy"), FailureCameraUnavailable, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := mountedHarness(t, nil)
			h.camera.err = tc.err

			err := h.flow.StartCamera(context.Background())
			require.True(t, IsKind(err, tc.kind), "got %v", err)
			state := h.flow.State()
			assert.Equal(t, BiometricModeNone, state.BiometricMode)
			if tc.fallback {
				assert.Contains(t, state.LastFailure.Message, "fingerprint verification")
			} else {
				assert.NotContains(t, state.LastFailure.Message, "fingerprint")
			}
		})
	}
}

func TestStartCameraTwiceReleasesPreviousSession(t *testing.T) {
	ctx := context.Background()
	h := mountedHarness(t, nil)

	require.NoError(t, h.flow.StartCamera(ctx))
	require.NoError(t, h.flow.StartCamera(ctx))

	assert.True(t, h.camera.stream(0).allStopped())
	assert.False(t, h.camera.stream(1).allStopped())
}

func TestCancelCameraReleasesStream(t *testing.T) {
	ctx := context.Background()
	h := mountedHarness(t, nil)

	require.NoError(t, h.flow.StartCamera(ctx))
	h.flow.CancelCamera()

	assert.True(t, h.camera.stream(0).allStopped())
	state := h.flow.State()
	assert.Equal(t, BiometricModeNone, state.BiometricMode)
	assert.Nil(t, state.Biometric)
	assert.Equal(t, PhaseIdle, state.Phase)
}

func TestSwitchingCaptureTypeDiscardsPrevious(t *testing.T) {
	ctx := context.Background()
	h := mountedHarness(t, nil)
	require.NoError(t, h.flow.AcquireLocation(ctx))

	require.NoError(t, h.flow.StartCamera(ctx))
	require.NoError(t, h.flow.CapturePhoto(ctx))
	require.IsType(t, FacialImage{}, h.flow.State().Biometric)

	require.NoError(t, h.flow.CaptureFingerprint(ctx))
	fingerprint, ok := h.flow.State().Biometric.(FingerprintCredential)
	require.True(t, ok)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0x01, 0x02, 0xfe, 0xff}), fingerprint.CredentialID)

	require.NoError(t, h.flow.StartCamera(ctx))
	assert.Nil(t, h.flow.State().Biometric, "starting a facial capture discards the fingerprint")
	assert.False(t, h.flow.CanSubmit())

	require.NoError(t, h.flow.CapturePhoto(ctx))
	require.NoError(t, h.flow.Submit(ctx))

	submissions := h.backend.submitted()
	require.Len(t, submissions, 1)
	assert.Equal(t, models.BiometricFacial, submissions[0].BiometricType)
	assert.Contains(t, submissions[0].BiometricData, "data:image/jpeg;base64,")
}

func TestFingerprintRejectionSuggestsFacial(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind FailureKind
	}{
		{"not allowed", ErrCredentialNotAllowed, FailureFingerprintDenied},
		{"ceremony failure", errors.New("InvalidStateError"), FailureFingerprintFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := mountedHarness(t, nil)
			h.auth.err = tc.err

			err := h.flow.CaptureFingerprint(context.Background())
			require.True(t, IsKind(err, tc.kind), "got %v", err)
			assert.Contains(t, h.flow.State().LastFailure.Message, "facial verification")
			assert.Nil(t, h.flow.State().Biometric)
		})
	}
}

func TestFingerprintUnsupported(t *testing.T) {
	h := mountedHarness(t, nil)
	h.auth.available = false

	err := h.flow.CaptureFingerprint(context.Background())
	require.True(t, IsKind(err, FailureFingerprintUnsupported), "got %v", err)
	assert.Contains(t, h.flow.State().LastFailure.Message, "not supported")
	assert.Contains(t, h.flow.State().LastFailure.Message, "facial verification")
}

func TestCredentialCreationOptions(t *testing.T) {
	h := mountedHarness(t, nil)
	require.NoError(t, h.flow.CaptureFingerprint(context.Background()))

	opts := h.auth.got
	assert.Equal(t, "portal.example.com", opts.RelyingParty.ID)
	assert.Equal(t, protocol.URLEncodedBase64("42"), opts.User.ID)
	assert.Len(t, opts.Challenge, protocol.ChallengeLength)
	assert.Equal(t, protocol.Platform, opts.AuthenticatorSelection.AuthenticatorAttachment)
	assert.Equal(t, protocol.VerificationRequired, opts.AuthenticatorSelection.UserVerification)
	assert.Equal(t, protocol.ResidentKeyRequirementPreferred, opts.AuthenticatorSelection.ResidentKey)
	require.NotNil(t, opts.AuthenticatorSelection.RequireResidentKey)
	assert.False(t, *opts.AuthenticatorSelection.RequireResidentKey)
	assert.Equal(t, protocol.PreferDirectAttestation, opts.Attestation)
	assert.Equal(t, 60000, opts.Timeout)
	assert.Equal(t, []protocol.CredentialParameter{
		{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
		{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgRS256},
	}, opts.Parameters)
	assert.True(t, h.auth.deadline, "ceremony is bounded by the timeout")
}

func TestSubmitGuardsBeforeRequest(t *testing.T) {
	ctx := context.Background()
	h := mountedHarness(t, nil)

	err := h.flow.Submit(ctx)
	require.True(t, IsKind(err, FailureMissingLocation), "got %v", err)
	assert.Contains(t, err.(*Failure).Message, "GPS location is required")

	require.NoError(t, h.flow.AcquireLocation(ctx))
	err = h.flow.Submit(ctx)
	require.True(t, IsKind(err, FailureMissingBiometric), "got %v", err)

	assert.Empty(t, h.backend.submitted())
}

func TestSuccessfulSubmissionClearsForm(t *testing.T) {
	ctx := context.Background()
	h := mountedHarness(t, nil)

	require.NoError(t, h.flow.AcquireLocation(ctx))
	require.NoError(t, h.flow.CaptureFingerprint(ctx))
	require.NoError(t, h.flow.SetNotes("Reporting from home"))
	require.NoError(t, h.flow.Submit(ctx))

	submissions := h.backend.submitted()
	require.Len(t, submissions, 1)
	assert.Equal(t, models.CheckInSubmission{
		ClientID:       42,
		Location:       "40.712775,-74.005973",
		Notes:          "Reporting from home",
		CheckInTime:    fixedNow,
		BiometricData:  base64.StdEncoding.EncodeToString([]byte{0x01, 0x02, 0xfe, 0xff}),
		BiometricType:  models.BiometricFingerprint,
		IsFirstCheckIn: true,
		GPSAccuracy:    models.GPSAccuracyHigh,
	}, submissions[0])

	state := h.flow.State()
	assert.Equal(t, PhaseSubmitted, state.Phase)
	assert.Empty(t, state.Location)
	assert.Nil(t, state.Fix)
	assert.Nil(t, state.Biometric)
	assert.Empty(t, state.Notes)
	assert.False(t, state.CanSubmit)

	assert.Equal(t, [][]string{{"check-ins", "clients/42/check-ins"}}, h.backend.invalidated)
	toasts := h.notifier.all()
	require.Len(t, toasts, 1)
	assert.False(t, toasts[0].Destructive)
}

func TestFailedSubmissionKeepsArtifacts(t *testing.T) {
	ctx := context.Background()
	h := mountedHarness(t, nil)
	h.backend.submitErr = &userFacingError{message: "Client is not active"}

	require.NoError(t, h.flow.AcquireLocation(ctx))
	require.NoError(t, h.flow.StartCamera(ctx))
	require.NoError(t, h.flow.CapturePhoto(ctx))
	require.NoError(t, h.flow.SetNotes("late"))

	err := h.flow.Submit(ctx)
	require.True(t, IsKind(err, FailureSubmission), "got %v", err)

	state := h.flow.State()
	assert.Equal(t, PhaseSubmitFailed, state.Phase)
	assert.Equal(t, "40.712775,-74.005973", state.Location)
	assert.IsType(t, FacialImage{}, state.Biometric)
	assert.Equal(t, "late", state.Notes)
	assert.True(t, state.CanSubmit, "resubmission needs no re-capture")
	assert.Equal(t, "Client is not active", state.LastFailure.Message)
	assert.Empty(t, h.backend.invalidated)

	toasts := h.notifier.all()
	require.Len(t, toasts, 1)
	assert.True(t, toasts[0].Destructive)
	assert.Equal(t, "Client is not active", toasts[0].Description)

	h.backend.submitErr = nil
	require.NoError(t, h.flow.Submit(ctx))
	assert.Len(t, h.backend.submitted(), 2)
}

func TestFailedSubmissionGenericMessage(t *testing.T) {
	ctx := context.Background()
	h := mountedHarness(t, priorCheckIn())
	h.backend.submitErr = errors.New("dial tcp: connection refused")

	require.NoError(t, h.flow.AcquireLocation(ctx))
	err := h.flow.Submit(ctx)
	require.Error(t, err)
	assert.Equal(t, "Failed to submit check-in. Please try again.", h.flow.State().LastFailure.Message)
}

func TestPhaseProgression(t *testing.T) {
	ctx := context.Background()
	h := mountedHarness(t, nil)

	assert.Equal(t, PhaseIdle, h.flow.State().Phase)
	require.NoError(t, h.flow.AcquireLocation(ctx))
	assert.Equal(t, PhaseLocationReady, h.flow.State().Phase)
	require.NoError(t, h.flow.StartCamera(ctx))
	assert.Equal(t, PhaseBiometricPending, h.flow.State().Phase)
	require.NoError(t, h.flow.CapturePhoto(ctx))
	assert.Equal(t, PhaseBiometricReady, h.flow.State().Phase)
	require.NoError(t, h.flow.Submit(ctx))
	assert.Equal(t, PhaseSubmitted, h.flow.State().Phase)
	h.flow.Close()
	assert.Equal(t, PhaseClosed, h.flow.State().Phase)
}

func TestCloseReleasesCameraAndRejectsWork(t *testing.T) {
	ctx := context.Background()
	h := mountedHarness(t, nil)

	require.NoError(t, h.flow.StartCamera(ctx))
	h.flow.Close()
	h.flow.Close()

	assert.True(t, h.camera.stream(0).allStopped())
	assert.ErrorIs(t, h.flow.AcquireLocation(ctx), ErrClosed)
	assert.ErrorIs(t, h.flow.Submit(ctx), ErrClosed)
	assert.ErrorIs(t, h.flow.Mount(ctx), ErrClosed)
	assert.False(t, h.flow.CanSubmit())
}

func TestCloseDropsLateCameraStream(t *testing.T) {
	h := mountedHarness(t, nil)
	h.camera.release = make(chan struct{})
	h.camera.opened = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- h.flow.StartCamera(context.Background())
	}()

	<-h.camera.opened
	h.flow.Close()
	close(h.camera.release)

	err := <-done
	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, h.camera.stream(0).allStopped(), "a stream that arrives after close is released")
	assert.Equal(t, BiometricModeNone, h.flow.State().BiometricMode)
}

func TestCloseDropsLateLocation(t *testing.T) {
	h := mountedHarness(t, priorCheckIn())
	h.geo.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- h.flow.AcquireLocation(context.Background())
	}()

	require.Eventually(t, func() bool { return h.geo.calls.Load() == 1 }, time.Second, time.Millisecond)
	h.flow.Close()

	assert.ErrorIs(t, <-done, ErrClosed)
	close(h.geo.release)
	assert.Empty(t, h.flow.State().Location)
}

func TestFingerprintSupersedesPendingCamera(t *testing.T) {
	h := mountedHarness(t, nil)
	h.camera.release = make(chan struct{})
	h.camera.opened = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- h.flow.StartCamera(context.Background())
	}()

	<-h.camera.opened
	require.NoError(t, h.flow.CaptureFingerprint(context.Background()))
	close(h.camera.release)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.True(t, h.camera.stream(0).allStopped())
	state := h.flow.State()
	assert.IsType(t, FingerprintCredential{}, state.Biometric)
	assert.Equal(t, BiometricModeNone, state.BiometricMode)
}

func TestConcurrentUse(t *testing.T) {
	ctx := context.Background()
	h := mountedHarness(t, priorCheckIn())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = h.flow.AcquireLocation(ctx)
			_ = h.flow.SetNotes("note")
			_ = h.flow.CanSubmit()
			_ = h.flow.State()
			if i%2 == 0 {
				_ = h.flow.CaptureFingerprint(ctx)
			}
		}(i)
	}
	wg.Wait()

	state := h.flow.State()
	assert.Equal(t, "40.712775,-74.005973", state.Location)
	assert.True(t, state.CanSubmit)
}

func TestEncodeFrameScalesToTarget(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 320, 240))
	dataURL, err := encodeFrame(frame, 640, 480)
	require.NoError(t, err)

	artifact, err := biometric.Validate(models.BiometricFacial, dataURL, biometric.Limits{})
	require.NoError(t, err)
	assert.Equal(t, 640, artifact.Width)
	assert.Equal(t, 480, artifact.Height)

	_, err = encodeFrame(image.NewRGBA(image.Rectangle{}), 640, 480)
	assert.Error(t, err)
}
