// Package signature verifies HMAC signed webhook deliveries.
package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"net/http"
	"strings"

	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/logging"
)

// Verifier handles webhook signature verification
type Verifier struct {
	config *Config
	logger logging.Logger
}

// NewVerifier creates a new signature verifier
func NewVerifier(config *Config, logger logging.Logger) *Verifier {
	return &Verifier{
		config: config,
		logger: logging.OrGlobal(logger),
	}
}

// Enabled reports whether requests are checked at all
func (v *Verifier) Enabled() bool {
	return v != nil && v.config != nil && v.config.Enabled
}

// Verify checks the request signature against body. Every configured
// secret is tried; the comparison is constant time.
func (v *Verifier) Verify(r *http.Request, body []byte) error {
	if !v.Enabled() {
		return nil
	}

	headerValue := r.Header.Get(v.config.Header)
	if headerValue == "" {
		return v.fail("missing signature header")
	}
	if !strings.HasPrefix(headerValue, v.config.Prefix) {
		return v.fail("malformed signature header")
	}

	given, err := hex.DecodeString(strings.TrimPrefix(headerValue, v.config.Prefix))
	if err != nil {
		return v.fail("signature is not hex encoded")
	}

	for _, secret := range v.config.Secrets {
		expected, err := v.compute(body, secret)
		if err != nil {
			return err
		}
		if hmac.Equal(given, expected) {
			return nil
		}
	}

	return v.fail("signature mismatch")
}

// Sign returns the header value for body under the first secret
func (v *Verifier) Sign(body []byte) (string, error) {
	if len(v.config.Secrets) == 0 {
		return "", errors.ConfigError("no signing secret configured")
	}
	digest, err := v.compute(body, v.config.Secrets[0])
	if err != nil {
		return "", err
	}
	return v.config.Prefix + hex.EncodeToString(digest), nil
}

func (v *Verifier) compute(body []byte, secret string) ([]byte, error) {
	var newHash func() hash.Hash
	switch v.config.algorithm() {
	case "hmac-sha1":
		newHash = sha1.New
	case "hmac-sha256":
		newHash = sha256.New
	case "hmac-sha512":
		newHash = sha512.New
	default:
		return nil, errors.ConfigError("unsupported algorithm: " + v.config.Algorithm)
	}

	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil), nil
}

func (v *Verifier) fail(reason string) error {
	v.logger.Warn("Signature verification failed",
		logging.String("header", v.config.Header),
		logging.String("reason", reason),
	)
	return errors.AuthError(reason).WithContext("header", v.config.Header)
}

// PreserveRequestBody reads the body and replaces it so handlers can read it again
func PreserveRequestBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
