package signature

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("super-secret-signing-key"))

func TestSignAndVerify(t *testing.T) {
	key, err := DecodeKey(testKey)
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	body := []byte(`{"type":"message.received"}`)
	header := Sign(key, now, body)

	v, err := NewVerifier(testKey, 5*time.Minute)
	require.NoError(t, err)
	v.now = func() time.Time { return now.Add(time.Minute) }

	assert.NoError(t, v.Verify(header, body))
}

func TestVerify_Failures(t *testing.T) {
	key, err := DecodeKey(testKey)
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	body := []byte(`{"id":"evt_1"}`)
	valid := Sign(key, now, body)

	tests := []struct {
		name    string
		header  string
		body    []byte
		nowSkew time.Duration
		wantErr error
	}{
		{"missing header", "", body, 0, ErrMissing},
		{"wrong scheme", "sha;1;1;AAAA", body, 0, ErrMalformed},
		{"wrong part count", "hmac;1;AAAA", body, 0, ErrMalformed},
		{"bad base64", "hmac;1;1717243200000;!!!", body, 0, ErrMalformed},
		{"tampered body", valid, []byte(`{"id":"evt_2"}`), 0, ErrMismatch},
		{"other key", Sign([]byte("other"), now, body), body, 0, ErrMismatch},
		{"expired", valid, body, 10 * time.Minute, ErrExpired},
		{"from the future", valid, body, -10 * time.Minute, ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVerifier(testKey, 5*time.Minute)
			require.NoError(t, err)
			v.now = func() time.Time { return now.Add(tt.nowSkew) }

			err = v.Verify(tt.header, tt.body)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}

func TestVerify_NoTolerance(t *testing.T) {
	key, err := DecodeKey(testKey)
	require.NoError(t, err)

	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	header := Sign(key, old, []byte("x"))

	v, err := NewVerifier(testKey, 0)
	require.NoError(t, err)
	assert.NoError(t, v.Verify(header, []byte("x")))
}

func TestParse(t *testing.T) {
	sig, err := Parse("hmac;1;1717243200000;" + base64.StdEncoding.EncodeToString([]byte("digest")))
	require.NoError(t, err)
	assert.Equal(t, "1717243200000", sig.Timestamp)
	assert.Equal(t, []byte("digest"), sig.Digest)

	at, ok := sig.Time()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), at.UTC())
}

func TestNewVerifier_BadKey(t *testing.T) {
	_, err := NewVerifier("not base64!", time.Minute)
	assert.ErrorIs(t, err, ErrBadKey)

	_, err = NewVerifier("", time.Minute)
	assert.ErrorIs(t, err, ErrBadKey)
}

func TestError(t *testing.T) {
	assert.Equal(t, "signature mismatch", ErrMismatch.Error())
	assert.Equal(t, 3, ErrMismatch.Code)
}
