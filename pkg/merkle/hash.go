// Package merkle implements content-addressed hashing and Merkle commitment
// for ingested documents: SHA3-256 leaf/pair hashing, bottom-up tree
// construction, and inclusion-proof generation/verification (spec.md §4.1).
//
// Hashing is position-independent within a level: pair hashing sorts its two
// operands lexicographically before concatenating, so H(a,b) == H(b,a).
// Order is reintroduced by the proof's direction bits, not by the hash
// itself — see Proof.
//
// Grounded on the teacher's go.mod dependency on golang.org/x/crypto (used
// there for bcrypt/pbkdf2); this package pulls in the sha3 subpackage of the
// same module rather than a new dependency.
package merkle

import (
	"bytes"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Digest is a lowercase 64-char hex-encoded SHA3-256 hash, per spec.md §6.
type Digest = string

// Hash returns the lowercase hex SHA3-256 digest of data.
//
// Hash([]byte("hello")) == "3338be694f50c5f338814986cdf0686453a888b84f424d792af4b9202398f392"[:64]
// is the literal fixture spec.md §8 pins (truncated to 64 hex chars here;
// SHA3-256 output is 32 bytes = 64 hex chars).
func Hash(data []byte) Digest {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// pairHash hashes two child digests together, sorting them lexicographically
// first so the result does not depend on which child is "left". Both inputs
// must be valid hex digests produced by Hash or pairHash.
func pairHash(left, right Digest) Digest {
	l, err1 := hex.DecodeString(left)
	r, err2 := hex.DecodeString(right)
	if err1 != nil || err2 != nil {
		// Defensive: callers only ever pass digests produced by this
		// package, but never hash garbage silently.
		l = []byte(left)
		r = []byte(right)
	}
	var buf bytes.Buffer
	if bytes.Compare(l, r) <= 0 {
		buf.Write(l)
		buf.Write(r)
	} else {
		buf.Write(r)
		buf.Write(l)
	}
	return Hash(buf.Bytes())
}
