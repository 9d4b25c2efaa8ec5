package semver

import (
	"fmt"
	"sort"

	mm "github.com/Masterminds/semver/v3"
)

// Version is a semantic version.
//
// The zero value is not a valid version; use [ParseVersion].
type Version struct {
	v *mm.Version
}

// ParseVersion parses a full MAJOR.MINOR.PATCH version with optional
// prerelease and build metadata. Partial versions ("1.2") and a leading "v"
// are rejected; registries only publish complete versions.
func ParseVersion(raw string) (Version, error) {
	v, err := mm.StrictNewVersion(raw)
	if err != nil {
		return Version{}, fmt.Errorf("semver: parse version %q: %w", raw, err)
	}
	return Version{v: v}, nil
}

// MustParseVersion is like [ParseVersion] but panics on error.
func MustParseVersion(raw string) Version {
	v, err := ParseVersion(raw)
	if err != nil {
		panic(err)
	}
	return v
}

func newVersion(major, minor, patch uint64, pre string) Version {
	return Version{v: mm.New(major, minor, patch, pre, "")}
}

// IsZero reports whether v was never parsed.
func (v Version) IsZero() bool { return v.v == nil }

// Major returns the major component.
func (v Version) Major() uint64 { return v.v.Major() }

// Minor returns the minor component.
func (v Version) Minor() uint64 { return v.v.Minor() }

// Patch returns the patch component.
func (v Version) Patch() uint64 { return v.v.Patch() }

// Prerelease returns the prerelease identifiers joined by dots, or "".
func (v Version) Prerelease() string {
	if v.v == nil {
		return ""
	}
	return v.v.Prerelease()
}

// IsPrerelease reports whether v carries a prerelease identifier.
func (v Version) IsPrerelease() bool { return v.Prerelease() != "" }

// String returns the canonical form, e.g. "1.2.3-alpha.1+build".
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

// Compare returns -1, 0 or 1 as v orders before, equal to, or after o.
// Build metadata never affects the result.
func (v Version) Compare(o Version) int { return Compare(v, o) }

// Equal reports whether v and o have the same precedence.
func (v Version) Equal(o Version) bool { return Compare(v, o) == 0 }

// Compare compares a and b, returning:
// -1 if a < b
//
//	0 if a == b
//	1 if a > b
//
// A zero Version orders before every parsed version.
func Compare(a, b Version) int {
	if a.v == nil && b.v == nil {
		return 0
	}
	if a.v == nil {
		return -1
	}
	if b.v == nil {
		return 1
	}
	return a.v.Compare(b.v)
}

// Max returns the highest version in vs.
// If multiple versions are equal, the first encountered wins.
func Max(vs []Version) (Version, bool) {
	var best Version
	found := false
	for _, v := range vs {
		if !found || Compare(v, best) > 0 {
			best = v
			found = true
		}
	}
	return best, found
}

// Sort orders vs ascending in place.
func Sort(vs []Version) {
	sort.SliceStable(vs, func(i, j int) bool { return Compare(vs[i], vs[j]) < 0 })
}
