package plugin

import (
	"strconv"
	"strings"
)

// CompareVersions compares two dotted-integer version strings.
// Components are compared left to right; missing components are treated as
// 0, so "1.2" and "1.2.0" are equal. Non-numeric components compare as 0.
// Returns -1 if a < b, 0 if equal, 1 if a > b.
func CompareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}

	for i := 0; i < n; i++ {
		av := versionComponent(as, i)
		bv := versionComponent(bs, i)
		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
	}
	return 0
}

// versionComponent returns the i-th numeric component, or 0 when the
// component is missing or not an integer.
func versionComponent(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
	if err != nil {
		return 0
	}
	return v
}

// versionInRange reports whether v falls within [min, max].
// An empty bound is open on that side.
func versionInRange(v, min, max string) bool {
	if min != "" && CompareVersions(v, min) < 0 {
		return false
	}
	if max != "" && CompareVersions(v, max) > 0 {
		return false
	}
	return true
}
