package models

import "time"

type BiometricType string

const (
	BiometricFacial      BiometricType = "facial"
	BiometricFingerprint BiometricType = "fingerprint"
)

func (t BiometricType) Valid() bool {
	return t == BiometricFacial || t == BiometricFingerprint
}

const (
	GPSAccuracyHigh = "high"

	AccuracySourceHighPrecision = "high-precision"
)

// CheckInSubmission is the payload posted by the check-in flow. A new one is
// built for every submission attempt.
type CheckInSubmission struct {
	ClientID       int64         `json:"clientId"`
	Location       string        `json:"location"`
	Notes          string        `json:"notes,omitempty"`
	CheckInTime    time.Time     `json:"checkInTime"`
	BiometricData  string        `json:"biometricData,omitempty"`
	BiometricType  BiometricType `json:"biometricType,omitempty"`
	IsFirstCheckIn bool          `json:"isFirstCheckIn"`
	GPSAccuracy    string        `json:"gpsAccuracy,omitempty"`
}

type CheckIn struct {
	CheckInID       string        `json:"id"`
	ClientID        int64         `json:"clientId"`
	Location        string        `json:"location"`
	Latitude        float64       `json:"latitude"`
	Longitude       float64       `json:"longitude"`
	Notes           string        `json:"notes,omitempty"`
	CheckInTime     time.Time     `json:"checkInTime"`
	BiometricType   BiometricType `json:"biometricType,omitempty"`
	BiometricDigest string        `json:"biometricDigest,omitempty"`
	IsFirstCheckIn  bool          `json:"isFirstCheckIn"`
	GPSAccuracy     string        `json:"gpsAccuracy,omitempty"`
	RequestID       string        `json:"requestId,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
}
