package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// VisitKey identifies the set of visitor states already notified for one
// (origin, destination) pair. It is a one-way hash, safe to use as an
// external lookup name.
type VisitKey string

// NewVisitKey derives the key for origin and destination. Both parts are
// length-prefixed so ("ab", "c") and ("a", "bc") never share a key.
func NewVisitKey(origin, destination string) VisitKey {
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(len(origin))))
	h.Write([]byte{':'})
	h.Write([]byte(origin))
	h.Write([]byte(strconv.Itoa(len(destination))))
	h.Write([]byte{':'})
	h.Write([]byte(destination))
	return VisitKey(hex.EncodeToString(h.Sum(nil)))
}

func (k VisitKey) String() string { return string(k) }
