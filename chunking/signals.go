package chunking

import (
	"slices"
	"strings"
)

// signalSet matches stop signals at the head of a byte window.
type signalSet struct {
	signals []string // longest first
	maxLen  int
}

func newSignalSet(signals []string) signalSet {
	sorted := slices.Clone(signals)
	slices.SortFunc(sorted, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	sorted = slices.Compact(sorted)

	set := signalSet{signals: sorted}
	if len(sorted) > 0 {
		set.maxLen = len(sorted[0])
	}
	return set
}

// match returns the longest signal that prefixes window, or "".
func (s signalSet) match(window []byte) string {
	for _, sig := range s.signals {
		if len(window) >= len(sig) && string(window[:len(sig)]) == sig {
			return sig
		}
	}
	return ""
}
