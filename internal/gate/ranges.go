package gate

import (
	"fmt"
	"net/netip"
	"strings"
)

// RangeMatcher answers whether a source address falls inside a configured
// set of CIDR blocks (known data-center/cloud ranges).
type RangeMatcher struct {
	prefixes []netip.Prefix
}

// NewRangeMatcher parses the CIDR strings into a matcher. Blank entries
// are skipped; malformed entries are an error so a config typo cannot
// silently disable the check.
func NewRangeMatcher(cidrs []string) (*RangeMatcher, error) {
	matcher := &RangeMatcher{}
	for _, raw := range cidrs {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(value)
		if err != nil {
			return nil, fmt.Errorf("parse cidr %q: %w", value, err)
		}
		matcher.prefixes = append(matcher.prefixes, prefix.Masked())
	}
	return matcher, nil
}

// Contains reports whether addr falls inside any configured range.
// Unparsable addresses never match.
func (m *RangeMatcher) Contains(addr string) bool {
	if m == nil || len(m.prefixes) == 0 {
		return false
	}
	parsed, err := netip.ParseAddr(strings.TrimSpace(addr))
	if err != nil {
		return false
	}
	parsed = parsed.Unmap()
	for _, prefix := range m.prefixes {
		if prefix.Contains(parsed) {
			return true
		}
	}
	return false
}
