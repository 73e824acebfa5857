package sessions

import (
	"crypto/hmac"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cameronmore/authd/secrets"
	"github.com/google/uuid"
)

// NewSessionId returns a random (version 4) UUID session id.
func NewSessionId() SessionId {
	return SessionId(uuid.New().String())
}

// Sign returns the cookie value for a session id: "<id>.<base64url hmac>".
func Sign(id SessionId, key *secrets.Key) (string, error) {
	signature, err := key.MAC([]byte(id))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s", id, base64.URLEncoding.EncodeToString(signature)), nil
}

// Verify checks the signature of a signed session id and returns the id.
func Verify(signed string, key *secrets.Key) (SessionId, error) {
	id, encodedSignature, err := splitSignedSessionId(signed)
	if err != nil {
		return "", err
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrInvalidSessionSignature
	}
	decodedSignature, err := base64.URLEncoding.DecodeString(encodedSignature)
	if err != nil {
		return "", ErrInvalidSessionSignature
	}

	expectedSignature, err := key.MAC([]byte(id))
	if err != nil {
		return "", err
	}
	if !hmac.Equal(decodedSignature, expectedSignature) {
		return "", ErrInvalidSessionSignature
	}
	return SessionId(id), nil
}

func splitSignedSessionId(signed string) (string, string, error) {
	parts := strings.Split(signed, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrSignedSessionIdIncorrectLength
	}
	return parts[0], parts[1], nil
}
