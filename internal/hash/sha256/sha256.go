// Package sha256 names archived payloads by content digest.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Hasher implements crawler.Hasher. Identical payloads fetched from different
// URLs share one archive object.
type Hasher struct{}

// New returns a hasher producing 64-character hex digests.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data. Empty payloads are rejected since they
// would all collapse onto one object.
func (h *Hasher) Hash(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("hash: empty payload")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
