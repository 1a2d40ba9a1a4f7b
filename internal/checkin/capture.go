package checkin

import "bailbond/checkin-service/internal/models"

// BiometricCapture is either a FacialImage or a FingerprintCredential.
type BiometricCapture interface {
	Type() models.BiometricType
	Payload() string
	sealed()
}

type FacialImage struct {
	DataURL string
}

func (FacialImage) Type() models.BiometricType { return models.BiometricFacial }
func (c FacialImage) Payload() string          { return c.DataURL }
func (FacialImage) sealed()                    {}

type FingerprintCredential struct {
	CredentialID string
}

func (FingerprintCredential) Type() models.BiometricType { return models.BiometricFingerprint }
func (c FingerprintCredential) Payload() string          { return c.CredentialID }
func (FingerprintCredential) sealed()                    {}
