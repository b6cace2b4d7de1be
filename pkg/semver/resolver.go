package semver

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const resolverLogPrefix = "semver:resolver"

// API version statuses.
const (
	StatusActive     = "active"
	StatusDeprecated = "deprecated"
	StatusDisabled   = "disabled"
)

// ErrNoMatchingVersion is returned when no offered version satisfies a request.
var ErrNoMatchingVersion = errors.New("no matching API version")

// APIVersion is one version of the API surface offered by the host.
type APIVersion struct {
	Version string `json:"version" yaml:"version"`
	Status  string `json:"status,omitempty" yaml:"status,omitempty"`
}

// NegotiateParams holds parameters for Negotiate.
type NegotiateParams struct {
	Offered           []APIVersion
	Requested         string // SemVer range, major-only, "major.minor", or empty
	IncludeDeprecated bool
}

type parsedVersion struct {
	APIVersion
	sv *masterminds.Version
}

// Negotiate picks the highest offered version satisfying the request,
// preferring active versions over deprecated ones. Disabled versions are
// never chosen.
func Negotiate(params NegotiateParams) (*APIVersion, error) {
	candidates := make([]parsedVersion, 0, len(params.Offered))
	for _, v := range params.Offered {
		if v.Status == StatusDisabled {
			continue
		}
		sv, err := masterminds.NewVersion(v.Version)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - ignoring unparseable offered version %q: %v", resolverLogPrefix, v.Version, err))
			continue
		}
		candidates = append(candidates, parsedVersion{APIVersion: v, sv: sv})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%s - %w: nothing offered", resolverLogPrefix, ErrNoMatchingVersion)
	}

	requested := NormalizeRange(params.Requested)
	var matching []parsedVersion

	switch {
	case requested == "":
		// No request: the highest major wins, stable releases first.
		matching = candidates
	case IsMajorOnly(requested):
		major := uint64(ExtractMajorFromRange(requested))
		for _, c := range candidates {
			if c.sv.Major() == major {
				matching = append(matching, c)
			}
		}
	default:
		constraint, err := masterminds.NewConstraint(requested)
		if err != nil {
			for _, c := range candidates {
				if c.Version == requested {
					matching = append(matching, c)
				}
			}
			break
		}
		for _, c := range candidates {
			if constraint.Check(c.sv) {
				matching = append(matching, c)
			}
		}
	}

	if len(matching) == 0 {
		return nil, fmt.Errorf("%s - %w for %q", resolverLogPrefix, ErrNoMatchingVersion, params.Requested)
	}

	sortVersionsDesc(matching)
	if requested == "" || IsMajorOnly(requested) {
		matching = preferStable(matching)
	}

	if !params.IncludeDeprecated {
		for i := range matching {
			if matching[i].Status != StatusDeprecated {
				out := matching[i].APIVersion
				return &out, nil
			}
		}
	}

	out := matching[0].APIVersion
	return &out, nil
}

// GetUniqueMajors returns all unique major versions sorted descending.
func GetUniqueMajors(versions []APIVersion) []int {
	seen := make(map[int]bool)
	var majors []int

	for _, v := range versions {
		sv, err := masterminds.NewVersion(v.Version)
		if err != nil {
			continue
		}
		major := int(sv.Major())
		if !seen[major] {
			seen[major] = true
			majors = append(majors, major)
		}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(majors)))
	return majors
}

// SatisfiesRange checks if a version string satisfies a range.
func SatisfiesRange(version, rangeStr string) bool {
	rangeStr = NormalizeRange(rangeStr)
	sv, err := masterminds.NewVersion(version)
	if err != nil {
		return false
	}

	if IsMajorOnly(rangeStr) {
		return int(sv.Major()) == ExtractMajorFromRange(rangeStr)
	}

	constraint, err := masterminds.NewConstraint(rangeStr)
	if err != nil {
		return false
	}
	return constraint.Check(sv)
}

// --- internal helpers ---

func preferStable(versions []parsedVersion) []parsedVersion {
	var stable []parsedVersion
	for _, v := range versions {
		if strings.TrimSpace(v.sv.Prerelease()) == "" {
			stable = append(stable, v)
		}
	}
	if len(stable) > 0 {
		return stable
	}
	return versions
}

func sortVersionsDesc(versions []parsedVersion) {
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].sv.GreaterThan(versions[j].sv)
	})
}
