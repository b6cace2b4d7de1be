// Package semver parses dotted method paths and negotiates API versions.
package semver

import (
	"fmt"
	"regexp"
	"strings"
)

const logPrefix = "semver:parser"

// ParsedMethodPath holds the components of a "Namespace.method" path.
type ParsedMethodPath struct {
	// Namespace is the backend namespace (e.g., "Launcher")
	Namespace string
	// Method is the function within the namespace (e.g., "setCount")
	Method string
	// Raw input string
	Raw string
}

var (
	identifierRegex   = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
	majorOnlyRegex    = regexp.MustCompile(`^\d+$`)
	majorMinorRegex   = regexp.MustCompile(`^\d+\.\d+$`)
	exactVersionRegex = regexp.MustCompile(`^\d+\.\d+\.\d+(-[\w.]+)?(\+[\w.]+)?$`)
)

// ParseMethodPath parses a method path.
//
// Supported formats:
//   - Launcher.setCount
//   - RuntimeApi.getApplication
//
// Deeper paths such as "A.b.c" are rejected: every callable is addressed by
// exactly one namespace and one method name.
func ParseMethodPath(input string) (*ParsedMethodPath, error) {
	raw := strings.TrimSpace(input)

	dot := strings.Index(raw, ".")
	if dot == -1 {
		return nil, fmt.Errorf("%s - invalid method path, missing namespace: %q", logPrefix, raw)
	}

	namespace := raw[:dot]
	method := raw[dot+1:]

	if !ValidateIdentifier(namespace) {
		return nil, fmt.Errorf("%s - invalid namespace in method path: %q", logPrefix, raw)
	}
	if !ValidateIdentifier(method) {
		return nil, fmt.Errorf("%s - invalid method name in method path: %q", logPrefix, raw)
	}

	return &ParsedMethodPath{
		Namespace: namespace,
		Method:    method,
		Raw:       raw,
	}, nil
}

// BuildMethodPath joins a namespace and method name.
func BuildMethodPath(namespace, method string) string {
	return namespace + "." + method
}

// ValidateIdentifier reports whether s is usable as a namespace or method
// name (letters, digits, underscore and dollar, not starting with a digit).
func ValidateIdentifier(s string) bool {
	return identifierRegex.MatchString(s)
}

// IsMajorOnly checks if a range is a major-only specifier (e.g., "1").
func IsMajorOnly(rangeStr string) bool {
	return majorOnlyRegex.MatchString(rangeStr)
}

// IsMajorMinor checks if a range is a bare major.minor pair (e.g., "1.0").
func IsMajorMinor(rangeStr string) bool {
	return majorMinorRegex.MatchString(rangeStr)
}

// IsExactVersion checks if a range is an exact version (e.g., "1.0.2").
func IsExactVersion(rangeStr string) bool {
	return exactVersionRegex.MatchString(rangeStr)
}

// ExtractMajorFromRange extracts the major version if the range is major-only.
// Returns -1 if not a major-only range.
func ExtractMajorFromRange(rangeStr string) int {
	if !IsMajorOnly(rangeStr) {
		return -1
	}
	var major int
	fmt.Sscanf(rangeStr, "%d", &major)
	return major
}

// NormalizeRange turns the version strings pages pass to the API entry
// point into constraints. A bare "1.0" means any 1.0.x release.
func NormalizeRange(rangeStr string) string {
	r := strings.TrimSpace(rangeStr)
	if IsMajorMinor(r) {
		return "~" + r
	}
	return r
}
