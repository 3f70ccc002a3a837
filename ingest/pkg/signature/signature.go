// Package signature signs and verifies OpenPhone webhook deliveries.
//
// OpenPhone sends the header
//
//	openphone-signature: hmac;1;<timestamp ms>;<base64 digest>
//
// where the digest is HMAC-SHA256 over "<timestamp>.<raw body>" keyed with
// the base64-decoded webhook signing key.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// Header is the request header carrying the signature.
const Header = "openphone-signature"

const (
	scheme  = "hmac"
	version = "1"
)

var (
	ErrMissing   = &Error{Code: 1, Text: "missing signature"}
	ErrMalformed = &Error{Code: 2, Text: "malformed signature"}
	ErrMismatch  = &Error{Code: 3, Text: "signature mismatch"}
	ErrExpired   = &Error{Code: 4, Text: "signature timestamp outside tolerance"}
	ErrBadKey    = &Error{Code: 5, Text: "signing key is not valid base64"}
)

// Error is returned for every verification failure.
type Error struct {
	Code int
	Text string
}

func (e *Error) Error() string {
	return e.Text
}

// Signature is a parsed signature header.
type Signature struct {
	Timestamp string
	Digest    []byte
}

// Time returns the signing time encoded in the timestamp.
func (s Signature) Time() (time.Time, bool) {
	ms, err := strconv.ParseInt(s.Timestamp, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Parse splits a header value into its parts.
func Parse(header string) (Signature, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Signature{}, ErrMissing
	}

	parts := strings.Split(header, ";")
	if len(parts) != 4 || parts[0] != scheme || parts[1] != version || parts[2] == "" {
		return Signature{}, ErrMalformed
	}

	digest, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(digest) == 0 {
		return Signature{}, ErrMalformed
	}

	return Signature{Timestamp: parts[2], Digest: digest}, nil
}

// DecodeKey decodes a base64 signing key as shown in the OpenPhone console.
func DecodeKey(key string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(key))
	if err != nil || len(raw) == 0 {
		return nil, ErrBadKey
	}
	return raw, nil
}

func digest(key []byte, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

// Sign returns the header value for body signed at t.
func Sign(key []byte, t time.Time, body []byte) string {
	ts := strconv.FormatInt(t.UnixMilli(), 10)
	return strings.Join([]string{
		scheme,
		version,
		ts,
		base64.StdEncoding.EncodeToString(digest(key, ts, body)),
	}, ";")
}

// Verifier checks signature headers against one signing key.
type Verifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier returns a Verifier for the base64 signing key. A positive
// tolerance rejects signatures whose timestamp is further than tolerance from
// the current time.
func NewVerifier(base64Key string, tolerance time.Duration) (*Verifier, error) {
	key, err := DecodeKey(base64Key)
	if err != nil {
		return nil, err
	}
	return &Verifier{key: key, tolerance: tolerance, now: time.Now}, nil
}

// Verify checks header against body.
func (v *Verifier) Verify(header string, body []byte) error {
	sig, err := Parse(header)
	if err != nil {
		return err
	}

	if v.tolerance > 0 {
		signedAt, ok := sig.Time()
		if !ok {
			return ErrMalformed
		}
		skew := v.now().Sub(signedAt)
		if skew < 0 {
			skew = -skew
		}
		if skew > v.tolerance {
			return ErrExpired
		}
	}

	if !hmac.Equal(sig.Digest, digest(v.key, sig.Timestamp, body)) {
		return ErrMismatch
	}
	return nil
}
