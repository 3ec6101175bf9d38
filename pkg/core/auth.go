package core

import (
	"crypto/subtle"
	"strings"
)

// minTokenLength is the shortest bearer token the server accepts as configured.
const minTokenLength = 16

var weakTokens = []string{
	"password", "secret", "token", "admin", "test", "default",
	"12345", "123456", "password123", "secret123", "admin123",
}

// SecureCompareString performs constant-time string comparison
func SecureCompareString(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ValidateAuthToken rejects configured tokens that are empty, short or guessable.
func ValidateAuthToken(token string) error {
	if token == "" {
		return NewError(ErrInvalidInput, "Authentication token cannot be empty").
			WithGuidance("Provide a valid authentication token.")
	}
	if len(token) < minTokenLength {
		return NewError(ErrInvalidInput, "Authentication token is too short").
			WithGuidance("Use a token with at least 16 characters.")
	}
	lower := strings.ToLower(token)
	for _, weak := range weakTokens {
		if strings.Contains(lower, weak) {
			return NewError(ErrInvalidInput, "Authentication token appears to be weak").
				WithGuidance("Use a randomly generated authentication token.")
		}
	}
	return nil
}

// AuthenticateBearer checks an Authorization header against the expected
// token. It returns nil on success and an ErrUnauthorized error otherwise.
func AuthenticateBearer(authHeader, expectedToken string) error {
	if authHeader == "" {
		return NewError(ErrUnauthorized, "Missing Authorization header")
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || scheme != "Bearer" {
		return NewError(ErrUnauthorized, "Invalid Authorization header format").
			WithGuidance("Use the form: Authorization: Bearer <token>")
	}
	if !SecureCompareString(token, expectedToken) {
		return NewError(ErrUnauthorized, "Invalid bearer token")
	}
	return nil
}
