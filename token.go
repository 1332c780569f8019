package tablenav

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	// tokenBytes of randomness encode to a 16 character URL-safe token.
	tokenBytes = 12

	maxTokenAttempts = 5
)

// tokenSource produces random tokens. Tests replace it.
var tokenSource = randomToken

func randomToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("tablenav: failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// newToken returns a token not present in taken.
func newToken(taken map[string]bool) (string, error) {
	for range maxTokenAttempts {
		token, err := tokenSource()
		if err != nil {
			return "", err
		}
		if !taken[token] {
			return token, nil
		}
	}
	return "", ErrTokenExhausted
}
