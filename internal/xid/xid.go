// Package xid mints opaque identifiers for correlating the log lines of one
// commit attempt. These never reach the ledger tables; persisted IDs come
// from the sequence allocator.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns a fresh attempt identifier, e.g. "sale-a1b2c3d4e5f6". Falls
// back to a nanosecond timestamp if the system randomness source fails.
func New(prefix string) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%s", prefix, hex.EncodeToString(buf))
}
