package fixture

import "strings"

// PathMatcher decides whether a transaction path needs the session token
type PathMatcher interface {
	Protected(path string) bool
}

// SubstringMatcher treats a path as protected when it contains any of
// Prefixes anywhere and does not contain Exempt. "/taskservice" therefore
// counts as protected under "/tasks".
type SubstringMatcher struct {
	Prefixes []string
	Exempt   string
}

// Protected implements PathMatcher
func (m SubstringMatcher) Protected(path string) bool {
	if m.Exempt != "" && strings.Contains(path, m.Exempt) {
		return false
	}
	for _, p := range m.Prefixes {
		if p != "" && strings.Contains(path, p) {
			return true
		}
	}
	return false
}

// SegmentMatcher compares whole path segments. A path is protected when it
// starts with one of Prefixes and no run of its segments equals Exempt.
// The query string is ignored.
type SegmentMatcher struct {
	Prefixes []string
	Exempt   string
}

// Protected implements PathMatcher
func (m SegmentMatcher) Protected(path string) bool {
	segs := splitSegments(path)
	if exempt := splitSegments(m.Exempt); len(exempt) > 0 && containsRun(segs, exempt) {
		return false
	}
	for _, p := range m.Prefixes {
		prefix := splitSegments(p)
		if len(prefix) > 0 && hasPrefixRun(segs, prefix) {
			return true
		}
	}
	return false
}

func splitSegments(path string) []string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func hasPrefixRun(segs, prefix []string) bool {
	if len(prefix) > len(segs) {
		return false
	}
	for i := range prefix {
		if segs[i] != prefix[i] {
			return false
		}
	}
	return true
}

func containsRun(segs, run []string) bool {
	for i := 0; i+len(run) <= len(segs); i++ {
		if hasPrefixRun(segs[i:], run) {
			return true
		}
	}
	return false
}
