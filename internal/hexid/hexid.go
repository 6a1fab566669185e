// Package hexid generates short random hex identifiers for log runs and
// task executions.
package hexid

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns an 8-character lowercase hex string.
func New() string {
	return NewN(4)
}

// NewN returns a lowercase hex string encoding n random bytes.
func NewN(n int) string {
	if n <= 0 {
		n = 4
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("hexid: crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
