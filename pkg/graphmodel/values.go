package graphmodel

import "strings"

// Visibility is the closed set of accepted visibility values on Class and
// Method nodes.
type Visibility string

// The closed set of visibility values; anything else collapses to VisibilityPackage.
const (
	VisibilityPublic    Visibility = "public"
	VisibilityPrivate   Visibility = "private"
	VisibilityProtected Visibility = "protected"
	VisibilityInternal  Visibility = "internal"
	VisibilityPackage   Visibility = "package"
)

// NormalizeVisibility lower-cases raw and maps it onto the accepted
// visibility set, defaulting to VisibilityPackage for anything unrecognized.
func NormalizeVisibility(raw string) Visibility {
	switch Visibility(strings.ToLower(strings.TrimSpace(raw))) {
	case VisibilityPublic:
		return VisibilityPublic
	case VisibilityPrivate:
		return VisibilityPrivate
	case VisibilityProtected:
		return VisibilityProtected
	case VisibilityInternal:
		return VisibilityInternal
	default:
		return VisibilityPackage
	}
}

// StringsProp returns raw, substituting an empty (non-nil) slice when raw
// is nil so list properties are always an empty array rather than null.
func StringsProp(raw []string) []string {
	if raw == nil {
		return []string{}
	}

	return raw
}

// IsTestFilePath reports whether path matches one of the accepted test-file
// patterns: *.test.*, *.spec.*, __tests__/, /test[s]?/, *Test.java, *Tests.java.
func IsTestFilePath(path string) bool {
	lower := strings.ToLower(path)

	switch {
	case strings.Contains(lower, "__tests__/"):
		return true
	case strings.Contains(lower, "/test/") || strings.Contains(lower, "/tests/"):
		return true
	case strings.HasPrefix(lower, "test/") || strings.HasPrefix(lower, "tests/"):
		return true
	}

	base := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		base = path[idx+1:]
	}

	switch {
	case hasDottedSegment(base, "test"):
		return true
	case hasDottedSegment(base, "spec"):
		return true
	case strings.HasSuffix(base, "Test.java"):
		return true
	case strings.HasSuffix(base, "Tests.java"):
		return true
	}

	return false
}

// hasDottedSegment reports whether base contains segment as a dot-delimited
// component, e.g. hasDottedSegment("App.test.ts", "test") is true.
func hasDottedSegment(base, segment string) bool {
	parts := strings.Split(base, ".")
	for _, p := range parts {
		if strings.EqualFold(p, segment) {
			return true
		}
	}

	return false
}
