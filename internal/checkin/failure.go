package checkin

import "errors"

var (
	// ErrClosed is returned by operations on a closed flow and by operations
	// whose result arrived after Close.
	ErrClosed = errors.New("check-in flow closed")

	// ErrSuperseded is returned when a newer operation of the same kind
	// replaced this one before it finished.
	ErrSuperseded = errors.New("operation superseded")

	ErrInvalidAction = errors.New("action not allowed in current phase")
)

type FailureKind int

const (
	FailureGPSPermissionDenied FailureKind = iota + 1
	FailureGPSUnavailable
	FailureGPSTimeout
	FailureGPSUnsupported
	FailureCameraPermissionDenied
	FailureCameraNotFound
	FailureCameraUnavailable
	FailureFingerprintUnsupported
	FailureFingerprintDenied
	FailureFingerprintFailed
	FailureMissingLocation
	FailureMissingBiometric
	FailureSubmission
)

var failureNames = map[FailureKind]string{
	FailureGPSPermissionDenied:    "gps_permission_denied",
	FailureGPSUnavailable:         "gps_unavailable",
	FailureGPSTimeout:             "gps_timeout",
	FailureGPSUnsupported:         "gps_unsupported",
	FailureCameraPermissionDenied: "camera_permission_denied",
	FailureCameraNotFound:         "camera_not_found",
	FailureCameraUnavailable:      "camera_unavailable",
	FailureFingerprintUnsupported: "fingerprint_unsupported",
	FailureFingerprintDenied:      "fingerprint_denied",
	FailureFingerprintFailed:      "fingerprint_failed",
	FailureMissingLocation:        "missing_location",
	FailureMissingBiometric:       "missing_biometric",
	FailureSubmission:             "submission_failed",
}

func (k FailureKind) String() string {
	if name, ok := failureNames[k]; ok {
		return name
	}
	return "unknown"
}

var failureMessages = map[FailureKind]string{
	FailureGPSPermissionDenied:    "Location access was denied. GPS location is mandatory for check-in; enable location permissions and try again.",
	FailureGPSUnavailable:         "Your location could not be determined. GPS location is mandatory for check-in; check your signal and try again.",
	FailureGPSTimeout:             "Timed out waiting for a GPS fix. GPS location is mandatory for check-in; please try again.",
	FailureGPSUnsupported:         "This device does not support geolocation. GPS location is mandatory for check-in.",
	FailureCameraPermissionDenied: "Camera access was denied. Allow camera access or use fingerprint verification instead.",
	FailureCameraNotFound:         "No camera was found on this device. Please use fingerprint verification instead.",
	FailureCameraUnavailable:      "The camera is unavailable. Please try again.",
	FailureFingerprintUnsupported: "Fingerprint verification is not supported on this device. Please use facial verification instead.",
	FailureFingerprintDenied:      "Fingerprint verification was cancelled or denied. Please try again or use facial verification instead.",
	FailureFingerprintFailed:      "Fingerprint verification failed. Please try facial verification instead.",
	FailureMissingLocation:        "GPS location is required for check-in. Please capture your location first.",
	FailureMissingBiometric:       "Biometric verification is required for your first check-in. Please capture a facial photo or fingerprint.",
	FailureSubmission:             "Failed to submit check-in. Please try again.",
}

// Failure is a user-facing error. Message is safe to display as-is.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func newFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Message: failureMessages[kind], Err: err}
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return f.Kind.String() + ": " + f.Err.Error()
	}
	return f.Kind.String()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// IsKind reports whether err is a *Failure of the given kind.
func IsKind(err error, kind FailureKind) bool {
	var failure *Failure
	return errors.As(err, &failure) && failure.Kind == kind
}
