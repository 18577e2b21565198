package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestMintAndVerify(t *testing.T) {
	v := NewVerifier("test-secret")

	token := v.Mint("user-1", now.Add(time.Hour))
	userID, err := v.Verify(token, now)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewVerifier("test-secret")

	token := v.Mint("user-1", now.Add(-time.Minute))
	_, err := v.Verify(token, now)
	assert.ErrorIs(t, err, ErrExpiredToken)

	// Expiry is exclusive: a token expiring exactly now is expired.
	token = v.Mint("user-1", now)
	_, err = v.Verify(token, now)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	v := NewVerifier("test-secret")
	token := v.Mint("user-1", now.Add(time.Hour))

	// Swap the user id, keep the original signature.
	parts := strings.SplitN(token, ":", 2)
	forged := "user-2:" + parts[1]
	_, err := v.Verify(forged, now)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	minter := NewVerifier("secret-a")
	verifier := NewVerifier("secret-b")

	token := minter.Mint("user-1", now.Add(time.Hour))
	_, err := verifier.Verify(token, now)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMalformedTokens(t *testing.T) {
	v := NewVerifier("test-secret")

	for _, token := range []string{
		"",
		"user-1",
		"user-1:123",
		"user-1:notanumber:deadbeef",
		":123:deadbeef",
		"user-1:123:not-hex",
	} {
		_, err := v.Verify(token, now)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}
