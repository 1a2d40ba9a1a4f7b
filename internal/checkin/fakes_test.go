package checkin

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"bailbond/checkin-service/internal/models"

	"github.com/go-webauthn/webauthn/protocol"
)

type fakeBackend struct {
	mu          sync.Mutex
	history     []models.CheckIn
	historyErr  error
	submitErr   error
	submissions []models.CheckInSubmission
	invalidated [][]string
}

func (b *fakeBackend) ListClientCheckIns(ctx context.Context, clientID int64) ([]models.CheckIn, error) {
	if b.historyErr != nil {
		return nil, b.historyErr
	}
	return b.history, nil
}

func (b *fakeBackend) SubmitCheckIn(ctx context.Context, submission models.CheckInSubmission) (models.CheckIn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submissions = append(b.submissions, submission)
	if b.submitErr != nil {
		return models.CheckIn{}, b.submitErr
	}
	return models.CheckIn{CheckInID: "checkin-1", ClientID: submission.ClientID, Location: submission.Location}, nil
}

func (b *fakeBackend) Invalidate(ctx context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.invalidated = append(b.invalidated, keys)
	return nil
}

func (b *fakeBackend) submitted() []models.CheckInSubmission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.CheckInSubmission(nil), b.submissions...)
}

type userFacingError struct {
	message string
}

func (e *userFacingError) Error() string       { return "api error: " + e.message }
func (e *userFacingError) UserMessage() string { return e.message }

type fakeGeolocator struct {
	position Position
	err      error
	// release, when set, holds the call until closed and ignores ctx.
	release chan struct{}
	calls   atomic.Int32
}

func (g *fakeGeolocator) CurrentPosition(ctx context.Context, opts PositionOptions) (Position, error) {
	g.calls.Add(1)
	if g.release != nil {
		<-g.release
	}
	return g.position, g.err
}

type fakeTrack struct {
	stops atomic.Int32
}

func (t *fakeTrack) Stop() { t.stops.Add(1) }

type fakeStream struct {
	tracks []*fakeTrack
	frame  image.Image
	err    error
}

func newFakeStream() *fakeStream {
	frame := image.NewRGBA(image.Rect(0, 0, 1280, 960))
	for y := 0; y < 960; y += 4 {
		for x := 0; x < 1280; x += 4 {
			frame.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return &fakeStream{tracks: []*fakeTrack{{}, {}}, frame: frame}
}

func (s *fakeStream) Tracks() []MediaTrack {
	out := make([]MediaTrack, len(s.tracks))
	for i, track := range s.tracks {
		out[i] = track
	}
	return out
}

func (s *fakeStream) Frame(ctx context.Context) (image.Image, error) {
	return s.frame, s.err
}

func (s *fakeStream) allStopped() bool {
	for _, track := range s.tracks {
		if track.stops.Load() != 1 {
			return false
		}
	}
	return true
}

type fakeCamera struct {
	mu      sync.Mutex
	streams []*fakeStream
	err     error
	release chan struct{}
	opened  chan struct{}
	got     StreamConstraints
}

func (c *fakeCamera) Open(ctx context.Context, constraints StreamConstraints) (MediaStream, error) {
	if c.opened != nil {
		close(c.opened)
	}
	if c.release != nil {
		<-c.release
	}
	if c.err != nil {
		return nil, c.err
	}
	stream := newFakeStream()
	c.mu.Lock()
	c.got = constraints
	c.streams = append(c.streams, stream)
	c.mu.Unlock()
	return stream, nil
}

func (c *fakeCamera) stream(i int) *fakeStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streams[i]
}

type fakeAuthenticator struct {
	available bool
	rawID     []byte
	err       error
	got       CredentialCreationOptions
	deadline  bool
}

func (a *fakeAuthenticator) PlatformAuthenticatorAvailable(ctx context.Context) (bool, error) {
	return a.available, nil
}

func (a *fakeAuthenticator) CreateCredential(ctx context.Context, opts CredentialCreationOptions) (Credential, error) {
	a.got = opts
	_, a.deadline = ctx.Deadline()
	if a.err != nil {
		return Credential{}, a.err
	}
	return Credential{RawID: a.rawID, Type: protocol.PublicKeyCredentialType}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	toasts []Toast
}

func (n *recordingNotifier) Notify(toast Toast) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, toast)
}

func (n *recordingNotifier) all() []Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Toast(nil), n.toasts...)
}
