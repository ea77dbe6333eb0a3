package runner

import "strings"

// matchName matches a case name against a filter with an optional leading
// and/or trailing *.
func matchName(name, filter string) bool {
	if filter == "" {
		return true
	}

	prefix := strings.HasSuffix(filter, "*")
	suffix := strings.HasPrefix(filter, "*")
	core := strings.TrimSuffix(strings.TrimPrefix(filter, "*"), "*")

	switch {
	case prefix && suffix:
		return strings.Contains(name, core)
	case suffix:
		return strings.HasSuffix(name, core)
	case prefix:
		return strings.HasPrefix(name, core)
	default:
		return name == filter
	}
}
