package semver

import (
	"sort"

	masterminds "github.com/Masterminds/semver/v3"
)

// ResolveVersion picks the best registered version for rangeStr.
//
//   - empty range: highest stable version, or highest prerelease when no stable exists
//   - major-only ("3"): latest stable in that major, falling back to prereleases
//   - semver range ("^3.2.0", "~3.2.0", ">=3.0.0 <4.0.0"): highest match
//   - anything the constraint parser rejects is tried as an exact version string
//
// ok is false when nothing matches.
func ResolveVersion(versions []string, rangeStr string) (resolved string, ok bool) {
	parsed := parseAll(versions)
	if len(parsed) == 0 {
		return "", false
	}

	if rangeStr == "" {
		return latest(parsed)
	}

	if IsMajorOnly(rangeStr) {
		major := uint64(ExtractMajorFromRange(rangeStr))
		var inMajor []parsedVersion
		for _, v := range parsed {
			if v.sv.Major() == major {
				inMajor = append(inMajor, v)
			}
		}
		return latest(inMajor)
	}

	constraint, err := masterminds.NewConstraint(rangeStr)
	if err != nil {
		for _, v := range parsed {
			if v.raw == rangeStr {
				return v.raw, true
			}
		}
		return "", false
	}

	var matching []parsedVersion
	for _, v := range parsed {
		if constraint.Check(v.sv) {
			matching = append(matching, v)
		}
	}
	if len(matching) == 0 {
		return "", false
	}
	sortVersionsDesc(matching)
	return matching[0].raw, true
}

// SatisfiesRange checks if a version string satisfies a range.
func SatisfiesRange(version, rangeStr string) bool {
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

// ValidVersion reports whether version parses as a strict semantic version.
func ValidVersion(version string) bool {
	_, err := masterminds.StrictNewVersion(version)
	return err == nil
}

// --- internal helpers ---

type parsedVersion struct {
	raw string
	sv  *masterminds.Version
}

func parseAll(versions []string) []parsedVersion {
	out := make([]parsedVersion, 0, len(versions))
	for _, v := range versions {
		sv, err := masterminds.NewVersion(v)
		if err != nil {
			continue
		}
		out = append(out, parsedVersion{raw: v, sv: sv})
	}
	return out
}

// latest prefers stable versions over prereleases.
func latest(versions []parsedVersion) (string, bool) {
	if len(versions) == 0 {
		return "", false
	}
	var stable []parsedVersion
	for _, v := range versions {
		if v.sv.Prerelease() == "" {
			stable = append(stable, v)
		}
	}
	candidates := versions
	if len(stable) > 0 {
		candidates = stable
	}
	sortVersionsDesc(candidates)
	return candidates[0].raw, true
}

func sortVersionsDesc(versions []parsedVersion) {
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].sv.GreaterThan(versions[j].sv)
	})
}
