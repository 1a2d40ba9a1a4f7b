package checkin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

var (
	ErrAuthenticatorUnsupported = errors.New("platform authenticator not supported")

	// ErrCredentialNotAllowed reports that the user dismissed or refused the
	// credential prompt.
	ErrCredentialNotAllowed = errors.New("credential creation not allowed")
)

const (
	credentialTimeout = 60 * time.Second
	relyingPartyName  = "Bail Bond Check-In"
)

// CredentialCreationOptions is the navigator.credentials.create payload handed
// to the platform authenticator.
type CredentialCreationOptions = protocol.PublicKeyCredentialCreationOptions

type Credential struct {
	RawID             []byte
	Type              protocol.CredentialType
	AttestationObject []byte
	ClientDataJSON    []byte
}

// Authenticator runs platform credential ceremonies.
type Authenticator interface {
	PlatformAuthenticatorAvailable(ctx context.Context) (bool, error)
	CreateCredential(ctx context.Context, opts CredentialCreationOptions) (Credential, error)
}

func newCredentialCreationOptions(origin string, clientID int64, random io.Reader) (CredentialCreationOptions, error) {
	rpID, err := relyingPartyID(origin)
	if err != nil {
		return CredentialCreationOptions{}, err
	}
	challenge, err := newChallenge(random)
	if err != nil {
		return CredentialCreationOptions{}, fmt.Errorf("generate challenge: %w", err)
	}

	handle := strconv.FormatInt(clientID, 10)
	return CredentialCreationOptions{
		RelyingParty: protocol.RelyingPartyEntity{
			CredentialEntity: protocol.CredentialEntity{Name: relyingPartyName},
			ID:               rpID,
		},
		User: protocol.UserEntity{
			CredentialEntity: protocol.CredentialEntity{Name: "client-" + handle},
			DisplayName:      "Client " + handle,
			ID:               protocol.URLEncodedBase64(handle),
		},
		Challenge: challenge,
		Parameters: []protocol.CredentialParameter{
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgRS256},
		},
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			RequireResidentKey:      protocol.ResidentKeyNotRequired(),
			ResidentKey:             protocol.ResidentKeyRequirementPreferred,
			UserVerification:        protocol.VerificationRequired,
		},
		Timeout:     int(credentialTimeout / time.Millisecond),
		Attestation: protocol.PreferDirectAttestation,
	}, nil
}

// newChallenge draws from random when set so tests can pin the challenge.
func newChallenge(random io.Reader) (protocol.URLEncodedBase64, error) {
	if random == nil {
		return protocol.CreateChallenge()
	}
	challenge := make([]byte, protocol.ChallengeLength)
	if _, err := io.ReadFull(random, challenge); err != nil {
		return nil, err
	}
	return challenge, nil
}

// ceremonyTimeout converts the option's millisecond timeout into a deadline
// for the authenticator call.
func ceremonyTimeout(opts CredentialCreationOptions) time.Duration {
	if opts.Timeout <= 0 {
		return credentialTimeout
	}
	return time.Duration(opts.Timeout) * time.Millisecond
}

func relyingPartyID(origin string) (string, error) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse origin: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("origin %q has no host", origin)
	}
	return host, nil
}

func classifyCredentialError(err error) *Failure {
	switch {
	case errors.Is(err, ErrAuthenticatorUnsupported):
		return newFailure(FailureFingerprintUnsupported, err)
	case errors.Is(err, ErrCredentialNotAllowed):
		return newFailure(FailureFingerprintDenied, err)
	default:
		return newFailure(FailureFingerprintFailed, err)
	}
}
