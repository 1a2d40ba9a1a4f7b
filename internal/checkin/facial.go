package checkin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"bailbond/checkin-service/internal/biometric"

	xdraw "golang.org/x/image/draw"
)

var (
	ErrCameraPermissionDenied = errors.New("camera permission denied")
	ErrCameraNotFound         = errors.New("camera not found")
	ErrCameraNotActive        = errors.New("camera not active")
)

const (
	FacingUser        = "user"
	facialJPEGQuality = 80
)

type StreamConstraints struct {
	FacingMode string
	Width      int
	Height     int
}

func DefaultStreamConstraints() StreamConstraints {
	return StreamConstraints{FacingMode: FacingUser, Width: 640, Height: 480}
}

// Camera opens media streams. Open returns ErrCameraPermissionDenied or
// ErrCameraNotFound for those conditions.
type Camera interface {
	Open(ctx context.Context, constraints StreamConstraints) (MediaStream, error)
}

type MediaStream interface {
	Tracks() []MediaTrack
	// Frame returns the current video frame.
	Frame(ctx context.Context) (image.Image, error)
}

type MediaTrack interface {
	Stop()
}

// cameraSession owns an open stream until release, which stops every track
// exactly once no matter how many exit paths call it.
type cameraSession struct {
	stream MediaStream
	once   sync.Once
}

func newCameraSession(stream MediaStream) *cameraSession {
	return &cameraSession{stream: stream}
}

func (s *cameraSession) release() {
	s.once.Do(func() {
		for _, track := range s.stream.Tracks() {
			track.Stop()
		}
	})
}

func classifyCameraError(err error) *Failure {
	switch {
	case errors.Is(err, ErrCameraPermissionDenied):
		return newFailure(FailureCameraPermissionDenied, err)
	case errors.Is(err, ErrCameraNotFound):
		return newFailure(FailureCameraNotFound, err)
	default:
		return newFailure(FailureCameraUnavailable, err)
	}
}

// encodeFrame scales the frame to the target resolution and serializes it as
// a JPEG data URL.
func encodeFrame(frame image.Image, width, height int) (string, error) {
	if frame == nil {
		return "", errors.New("empty frame")
	}
	bounds := frame.Bounds()
	if bounds.Empty() {
		return "", errors.New("empty frame")
	}
	if width <= 0 || height <= 0 {
		width, height = bounds.Dx(), bounds.Dy()
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), frame, bounds, xdraw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: facialJPEGQuality}); err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}
	return biometric.EncodeDataURL("image/jpeg", buf.Bytes()), nil
}
