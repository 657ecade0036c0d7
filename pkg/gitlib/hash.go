// Package gitlib wraps the libgit2 operations jig needs: opening a
// repository, resolving revisions, diffing trees and the index, and
// inspecting remotes of plugin clones.
package gitlib

import (
	"encoding/hex"

	git2go "github.com/libgit2/git2go/v34"
)

// HashSize is the size of a SHA-1 hash in bytes.
const HashSize = 20

// Hash represents a git object hash (SHA-1).
type Hash [HashSize]byte

// NewHash creates a Hash from a hex string. Invalid input yields the zero hash.
func NewHash(hexStr string) Hash {
	var hash Hash

	decoded, err := hex.DecodeString(hexStr)
	if err != nil || len(decoded) != HashSize {
		return hash
	}

	copy(hash[:], decoded)

	return hash
}

// HashFromOid converts a libgit2 Oid to Hash.
func HashFromOid(oid *git2go.Oid) Hash {
	var h Hash
	if oid == nil {
		return h
	}

	copy(h[:], oid[:])

	return h
}

// String returns the hex representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the abbreviated hex form used in messages.
func (h Hash) Short() string {
	const shortLen = 7

	return h.String()[:shortLen]
}

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ToOid converts Hash back to libgit2 Oid.
func (h Hash) ToOid() *git2go.Oid {
	oid := new(git2go.Oid)
	copy(oid[:], h[:])

	return oid
}
