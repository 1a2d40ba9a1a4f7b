package checkin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"bailbond/checkin-service/internal/models"
)

// ErrGeolocationUnsupported is returned by a Geolocator on devices without
// positioning hardware.
var ErrGeolocationUnsupported = errors.New("geolocation not supported")

type PositionErrorCode int

const (
	PositionPermissionDenied PositionErrorCode = 1
	PositionUnavailable      PositionErrorCode = 2
	PositionTimeout          PositionErrorCode = 3
)

type PositionError struct {
	Code    PositionErrorCode
	Message string
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("position error %d: %s", e.Code, e.Message)
}

type PositionOptions struct {
	EnableHighAccuracy bool
	Timeout            time.Duration
	MaximumAge         time.Duration
}

// DefaultPositionOptions asks for a one-shot high accuracy fix, accepting a
// cached position up to 30 seconds old.
func DefaultPositionOptions() PositionOptions {
	return PositionOptions{
		EnableHighAccuracy: true,
		Timeout:            15 * time.Second,
		MaximumAge:         30 * time.Second,
	}
}

type Position struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Timestamp time.Time
}

// Geolocator provides one-shot position fixes.
type Geolocator interface {
	CurrentPosition(ctx context.Context, opts PositionOptions) (Position, error)
}

type LocationFix struct {
	Latitude       float64
	Longitude      float64
	AccuracySource string
	AccuracyMeters float64
	Location       string
}

type positionResult struct {
	position Position
	err      error
}

// acquireLocation returns a fix or a *Failure. The call is bounded by
// opts.Timeout even if the geolocator does not honour it. Cancellation of
// ctx is returned as ctx.Err().
func acquireLocation(ctx context.Context, geo Geolocator, opts PositionOptions) (LocationFix, error) {
	if geo == nil {
		return LocationFix{}, newFailure(FailureGPSUnsupported, ErrGeolocationUnsupported)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPositionOptions().Timeout
	}

	callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	results := make(chan positionResult, 1)
	go func() {
		position, err := geo.CurrentPosition(callCtx, opts)
		results <- positionResult{position: position, err: err}
	}()

	var result positionResult
	select {
	case result = <-results:
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return LocationFix{}, err
		}
		return LocationFix{}, newFailure(FailureGPSTimeout, callCtx.Err())
	}

	if result.err != nil {
		if err := ctx.Err(); err != nil {
			return LocationFix{}, err
		}
		return LocationFix{}, classifyPositionError(result.err)
	}

	position := result.position
	if math.IsNaN(position.Latitude) || math.IsNaN(position.Longitude) ||
		position.Latitude < -90 || position.Latitude > 90 ||
		position.Longitude < -180 || position.Longitude > 180 {
		return LocationFix{}, newFailure(FailureGPSUnavailable, models.ErrInvalidLocation)
	}

	return LocationFix{
		Latitude:       position.Latitude,
		Longitude:      position.Longitude,
		AccuracySource: models.AccuracySourceHighPrecision,
		AccuracyMeters: position.Accuracy,
		Location:       models.FormatLocation(position.Latitude, position.Longitude),
	}, nil
}

func classifyPositionError(err error) *Failure {
	if errors.Is(err, ErrGeolocationUnsupported) {
		return newFailure(FailureGPSUnsupported, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newFailure(FailureGPSTimeout, err)
	}
	var positionErr *PositionError
	if errors.As(err, &positionErr) {
		switch positionErr.Code {
		case PositionPermissionDenied:
			return newFailure(FailureGPSPermissionDenied, err)
		case PositionTimeout:
			return newFailure(FailureGPSTimeout, err)
		}
	}
	return newFailure(FailureGPSUnavailable, err)
}
