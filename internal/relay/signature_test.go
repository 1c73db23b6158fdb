package relay_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krockxz/mailflow-relay/internal/relay"
)

func TestVerifySignatureRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		secret string
	}{
		{name: "simple body", body: `{"message":{"messageId":"m1"}}`, secret: "topsecret"},
		{name: "empty json", body: `{}`, secret: "k"},
		{name: "binary-ish body", body: "\x00\x01\xfe\xff", secret: "another-secret"},
		{name: "multibyte body", body: "メール 📬", secret: "秘密"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sig := relay.SignBody([]byte(tc.body), tc.secret)
			assert.True(t, relay.VerifySignature(sig, []byte(tc.body), tc.secret))
		})
	}
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	body := []byte(`{"message":{"messageId":"m1"}}`)
	secret := "topsecret"
	sig := relay.SignBody(body, secret)
	require.True(t, relay.VerifySignature(sig, body, secret))

	t.Run("flipped bit in body", func(t *testing.T) {
		tampered := append([]byte(nil), body...)
		tampered[0] ^= 0x01
		assert.False(t, relay.VerifySignature(sig, tampered, secret))
	})

	t.Run("flipped bit in signature", func(t *testing.T) {
		raw, err := relay.DecodeBase64URL(sig)
		require.NoError(t, err)
		raw[0] ^= 0x01
		assert.False(t, relay.VerifySignature(relay.EncodeBase64URL(raw), body, secret))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, relay.VerifySignature(sig, body, "other-secret"))
	})

	t.Run("truncated signature fails on length", func(t *testing.T) {
		raw, err := relay.DecodeBase64URL(sig)
		require.NoError(t, err)
		assert.False(t, relay.VerifySignature(relay.EncodeBase64URL(raw[:16]), body, secret))
	})
}

func TestVerifySignatureMissingInput(t *testing.T) {
	body := []byte("payload")
	sig := relay.SignBody(body, "s")

	tests := []struct {
		name      string
		signature string
		body      []byte
		secret    string
	}{
		{name: "empty signature", signature: "", body: body, secret: "s"},
		{name: "empty body", signature: sig, body: nil, secret: "s"},
		{name: "empty secret", signature: sig, body: body, secret: ""},
		{name: "all empty", signature: "", body: nil, secret: ""},
		{name: "garbage signature", signature: "!!!not-base64!!!", body: body, secret: "s"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, relay.VerifySignature(tc.signature, tc.body, tc.secret))
			})
		})
	}
}
