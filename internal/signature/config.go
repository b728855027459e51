package signature

import (
	stderrors "errors"

	"dday-scheduler/internal/common/validation"
)

// Config describes how a webhook sender signs its requests
type Config struct {
	// Enabled determines if signature verification is active
	Enabled bool `json:"enabled"`

	// Header is the HTTP header carrying the signature
	Header string `json:"header"`

	// Prefix precedes the encoded digest in the header value, e.g. "sha256="
	Prefix string `json:"prefix"`

	// Algorithm is "hmac-sha256" (default), "hmac-sha1" or "hmac-sha512"
	Algorithm string `json:"algorithm"`

	// Secrets are tried in order so a secret can be rotated without downtime
	Secrets []string `json:"-"`
}

// GitHubConfig verifies X-Hub-Signature-256. An empty secret disables
// verification.
func GitHubConfig(secret string) *Config {
	config := &Config{
		Enabled:   secret != "",
		Header:    "X-Hub-Signature-256",
		Prefix:    "sha256=",
		Algorithm: "hmac-sha256",
	}
	if secret != "" {
		config.Secrets = []string{secret}
	}
	return config
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	v := validation.NewValidatorWithPrefix("signature")
	v.RequireString(c.Header, "header")
	v.RequireOneOf(c.algorithm(), []string{"hmac-sha1", "hmac-sha256", "hmac-sha512"}, "algorithm")
	v.ValidateIf(len(c.Secrets) == 0, func() error {
		return stderrors.New("signature: at least one secret is required")
	})
	return v.Error()
}

func (c *Config) algorithm() string {
	if c.Algorithm == "" {
		return "hmac-sha256"
	}
	return c.Algorithm
}
