package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var ErrInvalidSignature = errors.New("invalid gateway signature")

// SignatureVerifier checks the HMAC-SHA256 the gateway puts on webhook bodies.
// An empty secret disables the check.
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) SignatureVerifier {
	return SignatureVerifier{secret: []byte(secret)}
}

func (v SignatureVerifier) Enabled() bool {
	return len(v.secret) > 0
}

func (v SignatureVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (v SignatureVerifier) Verify(body []byte, signature string) error {
	if !v.Enabled() {
		return nil
	}

	expected, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), expected) {
		return ErrInvalidSignature
	}

	return nil
}
