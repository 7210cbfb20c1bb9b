package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content fingerprints.
// The version suffix leaves room for algorithm migration.
const (
	DomainOptions = "vizbridge/options/v1"
	DomainData    = "vizbridge/data/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// OptionsHash fingerprints an options revision. Two revisions with the same
// hash pushed the same observable configuration (computed styles compare by
// presence only).
func OptionsHash(o Options) (string, error) {
	canonical, err := MarshalCanonical(o.Canonical())
	if err != nil {
		return "", fmt.Errorf("OptionsHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainOptions, canonical), nil
}

// DataHash fingerprints a data snapshot.
func DataHash(g GraphData) (string, error) {
	canonical, err := MarshalCanonical(g.Canonical())
	if err != nil {
		return "", fmt.Errorf("DataHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainData, canonical), nil
}

// MustOptionsHash is like OptionsHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustOptionsHash(o Options) string {
	h, err := OptionsHash(o)
	if err != nil {
		panic(err)
	}
	return h
}
