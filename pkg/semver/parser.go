// Package semver parses versioned service references and resolves them against the
// versions registered under a service name.
package semver

import (
	"fmt"
	"regexp"
	"strings"
)

const logPrefix = "semver:parser"

// ServiceRef holds the parsed components of a service reference string.
type ServiceRef struct {
	// Service name without version (e.g., "user.get")
	Name string
	// Version range if specified (e.g., "^1.2.0", "1", ""); empty string means no version
	Range string
	// Raw input string
	Raw string
}

// Versioned reports whether the reference carries a version or range.
func (r *ServiceRef) Versioned() bool {
	return r.Range != ""
}

var (
	serviceNameRegex  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9._-]*$`)
	majorOnlyRegex    = regexp.MustCompile(`^\d+$`)
	exactVersionRegex = regexp.MustCompile(`^\d+\.\d+\.\d+(-[\w.]+)?(\+[\w.]+)?$`)
)

// ParseServiceRef parses a service reference string.
//
// Supported formats:
//   - user.get           (no version)
//   - user.get@1         (major only)
//   - user.get@1.2.1     (exact version)
//   - user.get@^1.2.0    (caret range)
//   - user.get@~1.2.0    (tilde range)
//   - user.get@>=1.0.0   (comparison range)
func ParseServiceRef(input string) (*ServiceRef, error) {
	raw := strings.TrimSpace(input)

	name := raw
	rangeStr := ""
	if at := strings.Index(raw, "@"); at != -1 {
		name = raw[:at]
		rangeStr = strings.TrimSpace(raw[at+1:])
		if rangeStr == "" {
			return nil, fmt.Errorf("%s - empty version after @: %s", logPrefix, raw)
		}
	}

	if !ValidateServiceName(name) {
		return nil, fmt.Errorf("%s - invalid service name: %q", logPrefix, raw)
	}

	return &ServiceRef{Name: name, Range: rangeStr, Raw: raw}, nil
}

// IsMajorOnly checks if a range is a major-only specifier (e.g., "3").
func IsMajorOnly(rangeStr string) bool {
	return majorOnlyRegex.MatchString(rangeStr)
}

// IsExactVersion checks if a range is an exact version (e.g., "3.2.1").
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

// BuildServiceString builds a full service reference from a name and version.
func BuildServiceString(name, version string) string {
	if version != "" {
		return name + "@" + version
	}
	return name
}

// ValidateServiceName validates a service name (letters, digits, dots, hyphens, underscores).
func ValidateServiceName(name string) bool {
	return serviceNameRegex.MatchString(name)
}
