package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// InvitationTokenBytes is the entropy of an invitation token
const InvitationTokenBytes = 32

// GenerateInvitationToken returns a new hex-encoded random token and the
// digest to store for it. The raw token is never persisted.
func GenerateInvitationToken() (token, digest string, err error) {
	buf := make([]byte, InvitationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate invitation token: %w", err)
	}
	token = hex.EncodeToString(buf)
	return token, HashInvitationToken(token), nil
}

// HashInvitationToken returns the hex BLAKE2b-256 digest of a token
func HashInvitationToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IsWellFormedInvitationToken reports whether token could have been produced
// by GenerateInvitationToken
func IsWellFormedInvitationToken(token string) bool {
	if len(token) != hex.EncodedLen(InvitationTokenBytes) {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
