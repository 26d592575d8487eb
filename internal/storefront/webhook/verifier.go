// Package webhook authenticates inbound storefront webhook deliveries.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/smallbiznis/posbridge/internal/config"
)

const (
	HeaderHMAC       = "X-Shopify-Hmac-Sha256"
	HeaderTest       = "X-Shopify-Test"
	HeaderAPIVersion = "X-Shopify-Api-Version"
	HeaderTopic      = "X-Shopify-Topic"
)

var (
	ErrMissingSignature    = errors.New("webhook_missing_signature")
	ErrInvalidSignature    = errors.New("webhook_invalid_signature")
	ErrSecretNotConfigured = errors.New("webhook_secret_not_configured")
	ErrUnsupportedVersion  = errors.New("webhook_unsupported_api_version")
)

// Verifier checks the HMAC signature and declared API version of a delivery.
type Verifier struct {
	secret     []byte
	testSecret []byte
	versions   []string
}

func NewVerifier(cfg config.Config) *Verifier {
	return &Verifier{
		secret:     []byte(cfg.Storefront.WebhookSecret),
		testSecret: []byte(cfg.Storefront.WebhookTestSecret),
		versions:   cfg.Storefront.AllowedAPIVersions(),
	}
}

// Verify compares the base64 HMAC-SHA256 of the raw body with the signature
// header. Test deliveries are signed with the test secret.
func (v *Verifier) Verify(body []byte, signature string, isTest bool) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}

	secret := v.secret
	if isTest {
		secret = v.testSecret
	}
	if len(secret) == 0 {
		return ErrSecretNotConfigured
	}

	given, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(given, Sign(secret, body)) {
		return ErrInvalidSignature
	}
	return nil
}

// CheckVersion accepts only the configured API versions.
func (v *Verifier) CheckVersion(version string) error {
	version = strings.TrimSpace(version)
	for _, allowed := range v.versions {
		if version == allowed {
			return nil
		}
	}
	return ErrUnsupportedVersion
}

// IsTest reports whether the X-Shopify-Test header marks a test delivery.
func IsTest(header string) bool {
	return strings.EqualFold(strings.TrimSpace(header), "true")
}

// Sign returns the raw HMAC-SHA256 of body.
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

// SignBase64 returns the header value a storefront would send for body.
func SignBase64(secret, body []byte) string {
	return base64.StdEncoding.EncodeToString(Sign(secret, body))
}
