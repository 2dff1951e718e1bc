// Package seq derives the next human-readable ledger identifier from the
// existing table contents. There is no central sequence authority in the
// backing store: this is a scan-based high-water mark, and two writers
// allocating from the same stale read WILL compute the same ID. The
// coordinator narrows that window by allocating from a force-fresh read, but
// cannot close it; the store offers nothing to build a real counter on.
package seq

import (
	"fmt"
	"strconv"
	"strings"
)

// Identifier prefixes per ledger.
const (
	PrefixSale    = "V"
	PrefixExpense = "G"
)

// Next scans existing identifiers of the form {prefix}-{year}-{NNNN} and
// returns the next one for the target year, zero-padded to four digits.
// Entries for other years, and anything malformed, are skipped. An empty
// ledger (or one with no entries for the year) starts at 0001.
func Next(ids []string, prefix string, year int) string {
	max := 0
	for _, id := range ids {
		n, ok := parse(id, prefix, year)
		if !ok {
			continue
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s-%d-%04d", prefix, year, max+1)
}

func parse(id, prefix string, year int) (int, bool) {
	parts := strings.Split(strings.TrimSpace(id), "-")
	if len(parts) != 3 {
		return 0, false
	}
	if !strings.EqualFold(parts[0], prefix) {
		return 0, false
	}
	y, err := strconv.Atoi(parts[1])
	if err != nil || y != year {
		return 0, false
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
