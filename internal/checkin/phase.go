package checkin

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLocationPending
	PhaseLocationReady
	PhaseBiometricPending
	PhaseBiometricReady
	PhaseSubmitting
	PhaseSubmitted
	PhaseSubmitFailed
	PhaseClosed
)

var phaseNames = map[Phase]string{
	PhaseIdle:             "idle",
	PhaseLocationPending:  "location_pending",
	PhaseLocationReady:    "location_ready",
	PhaseBiometricPending: "biometric_pending",
	PhaseBiometricReady:   "biometric_ready",
	PhaseSubmitting:       "submitting",
	PhaseSubmitted:        "submitted",
	PhaseSubmitFailed:     "submit_failed",
	PhaseClosed:           "closed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// BiometricMode is the capture currently in progress. A single field keeps
// camera and fingerprint capture mutually exclusive.
type BiometricMode int

const (
	BiometricModeNone BiometricMode = iota
	BiometricModeCamera
	BiometricModeFingerprint
)

func (m BiometricMode) String() string {
	switch m {
	case BiometricModeCamera:
		return "camera"
	case BiometricModeFingerprint:
		return "fingerprint"
	default:
		return "none"
	}
}

type action string

const (
	actionAcquireLocation    action = "acquire_location"
	actionStartCamera        action = "start_camera"
	actionCapturePhoto       action = "capture_photo"
	actionCaptureFingerprint action = "capture_fingerprint"
	actionSetNotes           action = "set_notes"
	actionSubmit             action = "submit"
)

var (
	capturePhases = []Phase{PhaseIdle, PhaseLocationPending, PhaseLocationReady, PhaseBiometricPending, PhaseBiometricReady, PhaseSubmitted, PhaseSubmitFailed}

	transitionMap = map[action][]Phase{
		actionAcquireLocation:    {PhaseIdle, PhaseLocationReady, PhaseBiometricPending, PhaseBiometricReady, PhaseSubmitted, PhaseSubmitFailed},
		actionStartCamera:        capturePhases,
		actionCapturePhoto:       {PhaseLocationPending, PhaseBiometricPending},
		actionCaptureFingerprint: capturePhases,
		actionSetNotes:           capturePhases,
		actionSubmit:             capturePhases,
	}
)

func validTransition(a action, from Phase) bool {
	allowed, ok := transitionMap[a]
	if !ok {
		return false
	}
	for _, phase := range allowed {
		if phase == from {
			return true
		}
	}
	return false
}
