package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"sync/atomic"
	"time"

	"bailbond/checkin-service/internal/checkin"
	"bailbond/checkin-service/internal/models"

	_ "golang.org/x/image/webp"
)

// staticGeolocator reports a fixed position given on the command line.
type staticGeolocator struct {
	lat, lon float64
	accuracy float64
}

func parsePosition(value string, accuracy float64) (*staticGeolocator, error) {
	lat, lon, err := models.ParseLocation(value)
	if err != nil {
		return nil, fmt.Errorf("--position: %w", err)
	}
	return &staticGeolocator{lat: lat, lon: lon, accuracy: accuracy}, nil
}

func (g *staticGeolocator) CurrentPosition(ctx context.Context, _ checkin.PositionOptions) (checkin.Position, error) {
	if err := ctx.Err(); err != nil {
		return checkin.Position{}, err
	}
	return checkin.Position{
		Latitude:  g.lat,
		Longitude: g.lon,
		Accuracy:  g.accuracy,
		Timestamp: time.Now(),
	}, nil
}

// fileCamera serves a still image from disk as a single-track stream.
type fileCamera struct {
	path string
}

func (c fileCamera) Open(ctx context.Context, _ checkin.StreamConstraints) (checkin.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.path == "" {
		return nil, checkin.ErrCameraNotFound
	}
	file, err := os.Open(c.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", checkin.ErrCameraNotFound, c.path)
	case errors.Is(err, os.ErrPermission):
		return nil, fmt.Errorf("%w: %s", checkin.ErrCameraPermissionDenied, c.path)
	case err != nil:
		return nil, err
	}
	return &fileStream{file: file, track: &fileTrack{file: file}}, nil
}

type fileStream struct {
	file  io.ReadSeeker
	track *fileTrack
}

func (s *fileStream) Tracks() []checkin.MediaTrack {
	return []checkin.MediaTrack{s.track}
}

func (s *fileStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.track.stopped.Load() {
		return nil, checkin.ErrCameraNotActive
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	frame, _, err := image.Decode(s.file)
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	return frame, nil
}

type fileTrack struct {
	file    io.Closer
	stopped atomic.Bool
}

func (t *fileTrack) Stop() {
	if t.stopped.CompareAndSwap(false, true) {
		_ = t.file.Close()
	}
}

// terminalNotifier prints toasts.
type terminalNotifier struct {
	out io.Writer
}

func (n terminalNotifier) Notify(toast checkin.Toast) {
	prefix := "ok"
	if toast.Destructive {
		prefix = "error"
	}
	fmt.Fprintf(n.out, "[%s] %s: %s\n", prefix, toast.Title, toast.Description)
}
