package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainQuery prefixes compiled query fingerprints. The version suffix
// allows the hashing input to change without collisions.
const DomainQuery = "eventfilter/query/v1"

// hashWithDomain computes SHA-256 over domain + 0x00 + data.
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes the canonical JSON encoding of v under a domain.
// Two structurally identical values always produce the same fingerprint.
func Fingerprint(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}
