// Package biometric validates the biometric artifacts attached to a
// check-in: facial photos arrive as image data URLs, fingerprint
// credentials as base64 credential ids.
package biometric

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"bailbond/checkin-service/internal/models"

	"golang.org/x/crypto/blake2b"
	_ "golang.org/x/image/webp"
)

var (
	ErrUnsupportedType = errors.New("unsupported biometric type")
	ErrMissingData     = errors.New("biometric data is required")
	ErrMalformedData   = errors.New("malformed biometric data")
	ErrTooLarge        = errors.New("biometric data too large")
	ErrImageTooSmall   = errors.New("facial image below minimum resolution")
)

const (
	DefaultMaxBytes  = 2 << 20
	MinFacialWidth   = 160
	MinFacialHeight  = 120
	maxCredentialLen = 1023
)

type Limits struct {
	MaxBytes int
}

// Artifact is a validated biometric payload.
type Artifact struct {
	Type   models.BiometricType
	Format string
	Width  int
	Height int
	Size   int
	Digest string
}

func Validate(kind models.BiometricType, data string, limits Limits) (Artifact, error) {
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultMaxBytes
	}
	data = strings.TrimSpace(data)
	if data == "" {
		return Artifact{}, ErrMissingData
	}
	switch kind {
	case models.BiometricFacial:
		return validateFacial(data, limits)
	case models.BiometricFingerprint:
		return validateFingerprint(data)
	default:
		return Artifact{}, ErrUnsupportedType
	}
}

func validateFacial(dataURL string, limits Limits) (Artifact, error) {
	mediaType, raw, err := ParseDataURL(dataURL)
	if err != nil {
		return Artifact{}, err
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return Artifact{}, fmt.Errorf("%w: media type %q is not an image", ErrMalformedData, mediaType)
	}
	if len(raw) > limits.MaxBytes {
		return Artifact{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(raw), limits.MaxBytes)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	if cfg.Width < MinFacialWidth || cfg.Height < MinFacialHeight {
		return Artifact{}, fmt.Errorf("%w: %dx%d", ErrImageTooSmall, cfg.Width, cfg.Height)
	}
	return Artifact{
		Type:   models.BiometricFacial,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		Size:   len(raw),
		Digest: Digest(raw),
	}, nil
}

func validateFingerprint(encoded string) (Artifact, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: credential id is not base64: %v", ErrMalformedData, err)
	}
	if len(raw) == 0 || len(raw) > maxCredentialLen {
		return Artifact{}, fmt.Errorf("%w: credential id length %d", ErrMalformedData, len(raw))
	}
	return Artifact{
		Type:   models.BiometricFingerprint,
		Format: "credential-id",
		Size:   len(raw),
		Digest: Digest(raw),
	}, nil
}

// ParseDataURL splits a base64 data URL into its media type and payload.
func ParseDataURL(value string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(value, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrMalformedData)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrMalformedData)
	}
	mediaType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: data URL must be base64 encoded", ErrMalformedData)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	return strings.ToLower(mediaType), raw, nil
}

func EncodeDataURL(mediaType string, raw []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(raw)
}

func Digest(raw []byte) string {
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
