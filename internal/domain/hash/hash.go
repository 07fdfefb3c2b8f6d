// Package hash provides the one-way accession identifier transform.
//
// Raw accessions are patient-adjacent identifiers; they must never be
// retained once a record exists. Hashing is deterministic for a fixed salt so
// the same accession always maps to the same record key, while different
// salts keep deployments unlinkable.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher applies a fixed salt to every accession it hashes.
type Hasher struct {
	salt string
}

// New creates a Hasher with the given salt.
func New(salt string) *Hasher {
	return &Hasher{salt: salt}
}

// Hash returns the hex-encoded SHA-256 of the salted accession. The raw
// accession is not kept after the call returns.
func (h *Hasher) Hash(rawAccession string) string {
	sum := sha256.Sum256([]byte(h.salt + "\x00" + rawAccession))
	return hex.EncodeToString(sum[:])
}
