package webhook

import (
	"testing"

	"github.com/smallbiznis/posbridge/internal/config"
	"github.com/stretchr/testify/assert"
)

func newTestVerifier() *Verifier {
	return NewVerifier(config.Config{Storefront: config.StorefrontConfig{
		WebhookSecret:     "live-secret",
		WebhookTestSecret: "test-secret",
		APIVersion:        "2022-01",
		LegacyAPIVersion:  "2021-07",
	}})
}

func TestVerify(t *testing.T) {
	v := newTestVerifier()
	body := []byte(`{"order_number":1001}`)

	assert.NoError(t, v.Verify(body, SignBase64([]byte("live-secret"), body), false))
	assert.NoError(t, v.Verify(body, SignBase64([]byte("test-secret"), body), true))

	assert.ErrorIs(t, v.Verify(body, SignBase64([]byte("test-secret"), body), false), ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(body, "", false), ErrMissingSignature)
	assert.ErrorIs(t, v.Verify(body, "%%%", false), ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify([]byte(`{"order_number":1002}`), SignBase64([]byte("live-secret"), body), false), ErrInvalidSignature)
}

func TestVerifyWithoutSecret(t *testing.T) {
	v := NewVerifier(config.Config{})
	body := []byte(`{}`)
	assert.ErrorIs(t, v.Verify(body, SignBase64([]byte(""), body), false), ErrSecretNotConfigured)
}

func TestCheckVersion(t *testing.T) {
	v := newTestVerifier()
	assert.NoError(t, v.CheckVersion("2022-01"))
	assert.NoError(t, v.CheckVersion("2021-07"))
	assert.ErrorIs(t, v.CheckVersion("2023-04"), ErrUnsupportedVersion)
	assert.ErrorIs(t, v.CheckVersion(""), ErrUnsupportedVersion)
}

func TestIsTest(t *testing.T) {
	assert.True(t, IsTest("true"))
	assert.True(t, IsTest(" TRUE "))
	assert.False(t, IsTest("false"))
	assert.False(t, IsTest(""))
}
