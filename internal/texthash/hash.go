// Package texthash produces deterministic fingerprints of text, used to
// detect whether a segment's translated text changed since its audio was
// generated. It is a change detector, not a cryptographic guarantee.
package texthash

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Sum returns a stable hex-encoded BLAKE2b-256 digest of text. Same input
// always yields the same output, across runs and platforms; the empty
// string has a fixed, well-defined digest.
func Sum(text string) string {
	d := blake2b.Sum256([]byte(text))
	return hex.EncodeToString(d[:])
}
