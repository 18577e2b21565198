// Package auth verifies the HMAC-signed bearer tokens minted by the
// account service.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken means the token is malformed or its signature does
	// not verify.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken means the token verified but its expiry has passed.
	ErrExpiredToken = errors.New("token expired")
)

// Verifier validates bearer tokens of the form
// "userID:expiryUnix:hexSignature" where the signature is
// HMAC-SHA256("userID:expiryUnix") under a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier with the shared signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify checks the token's signature and expiry and returns the user id it
// was issued to.
func (v *Verifier) Verify(token string, now time.Time) (string, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 || parts[0] == "" {
		return "", ErrInvalidToken
	}
	userID, expiryStr, sig := parts[0], parts[1], parts[2]

	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}

	want := v.sign(userID, expiry)
	got, err := hex.DecodeString(sig)
	if err != nil || !hmac.Equal(got, want) {
		return "", ErrInvalidToken
	}

	if now.Unix() >= expiry {
		return "", ErrExpiredToken
	}
	return userID, nil
}

// Mint issues a token for the given user, used by tests and tooling.
func (v *Verifier) Mint(userID string, expiry time.Time) string {
	sig := v.sign(userID, expiry.Unix())
	return fmt.Sprintf("%s:%d:%s", userID, expiry.Unix(), hex.EncodeToString(sig))
}

func (v *Verifier) sign(userID string, expiry int64) []byte {
	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%s:%d", userID, expiry)
	return mac.Sum(nil)
}
