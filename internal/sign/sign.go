// Package sign computes the request fingerprints the cloud API verifies.
// The digest pairs retries with one logical delivery attempt; it is a
// checksum bound to a shared secret, not a cryptographic authenticator.
package sign

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrEmptySecret is returned when no API secret is configured
var ErrEmptySecret = errors.New("empty signing secret")

// Canonical returns a canonical JSON serialization of payload: object keys
// sorted, no insignificant whitespace. The same content yields identical
// bytes regardless of struct field order or map insertion history.
func Canonical(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}

	// Re-decode generically and re-marshal: object keys come out sorted.
	// UseNumber keeps numeric literals exact instead of via float64.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}

	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return out, nil
}

// Sign returns the hex digest of canonical(payload) || timestamp || secret.
// The same payload, secret and timestamp always produce the same signature,
// across processes and runs; a fresh timestamp produces a fresh signature.
func Sign(payload any, secret string, ts int64) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	canonical, err := Canonical(payload)
	if err != nil {
		return "", err
	}

	h := md5.New()
	h.Write(canonical)
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil)), nil
}
