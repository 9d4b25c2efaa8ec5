package semver

import (
	"fmt"
	"strconv"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// Requirement is a version requirement as written in a manifest,
// e.g. "0.8", "^1.2.3", ">=0.1.1", "~0.4, <0.4.5" or "*".
type Requirement struct {
	raw         string
	comparators []comparator
	c           *mm.Constraints
}

type comparator struct {
	op      string // "", "^", "~", "=", ">", ">=", "<", "<=" or "*"
	partial partial
}

// partial is a possibly incomplete version such as "1", "1.2" or "1.2.*".
type partial struct {
	major, minor, patch uint64
	minorSet, patchSet  bool
	wild                bool
	pre                 string
}

func (p partial) lower() Version {
	return newVersion(p.major, p.minor, p.patch, p.pre)
}

// ParseRequirement parses the Cargo requirement syntax: comma-separated
// comparators where a bare version means a caret requirement.
func ParseRequirement(raw string) (Requirement, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Requirement{}, fmt.Errorf("semver: empty requirement")
	}

	var (
		comps []comparator
		parts []string
	)
	for _, field := range strings.Split(text, ",") {
		comp, err := parseComparator(strings.TrimSpace(field))
		if err != nil {
			return Requirement{}, fmt.Errorf("semver: parse requirement %q: %w", raw, err)
		}
		comps = append(comps, comp)
		parts = append(parts, comp.constraint())
	}

	c, err := mm.NewConstraint(strings.Join(parts, ", "))
	if err != nil {
		return Requirement{}, fmt.Errorf("semver: parse requirement %q: %w", raw, err)
	}
	return Requirement{raw: raw, comparators: comps, c: c}, nil
}

// MustParseRequirement is like [ParseRequirement] but panics on error.
func MustParseRequirement(raw string) Requirement {
	r, err := ParseRequirement(raw)
	if err != nil {
		panic(err)
	}
	return r
}

// String returns the requirement text exactly as it was parsed.
func (r Requirement) String() string { return r.raw }

// IsZero reports whether r was never parsed.
func (r Requirement) IsZero() bool { return r.c == nil }

// Admits reports whether v satisfies every comparator of r.
// A prerelease version is only admitted by requirements that name a
// prerelease on the same MAJOR.MINOR.PATCH.
func (r Requirement) Admits(v Version) bool {
	if r.c == nil || v.v == nil {
		return false
	}
	if v.IsPrerelease() && !r.namesPrerelease(v) {
		return false
	}
	return r.c.Check(v.v)
}

// namesPrerelease reports whether a comparator of r carries a prerelease on
// the MAJOR.MINOR.PATCH of v.
func (r Requirement) namesPrerelease(v Version) bool {
	for _, comp := range r.comparators {
		p := comp.partial
		if p.pre != "" && p.major == v.Major() && p.minor == v.Minor() && p.patch == v.Patch() {
			return true
		}
	}
	return false
}

// MinimumVersion returns the lowest version named by a lower-bound comparator
// of r, keeping its prerelease. Requirements with no lower bound ("*", "<2")
// yield 0.0.0.
func (r Requirement) MinimumVersion() Version {
	var (
		best  Version
		found bool
	)
	for _, comp := range r.comparators {
		switch comp.op {
		case "", "^", "~", "=", ">=", ">":
			v := comp.partial.lower()
			if !found || Compare(v, best) < 0 {
				best, found = v, true
			}
		}
	}
	if !found {
		return newVersion(0, 0, 0, "")
	}
	return best
}

var operators = []string{">=", "<=", ">", "<", "=", "^", "~"}

func parseComparator(s string) (comparator, error) {
	if s == "" {
		return comparator{}, fmt.Errorf("empty comparator")
	}
	if s == "*" {
		return comparator{op: "*"}, nil
	}

	var comp comparator
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			comp.op = op
			s = strings.TrimSpace(s[len(op):])
			break
		}
	}

	p, err := parsePartial(s)
	if err != nil {
		return comparator{}, err
	}
	comp.partial = p
	return comp, nil
}

func parsePartial(s string) (partial, error) {
	var p partial
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '-'); i >= 0 {
		p.pre = s[i+1:]
		s = s[:i]
		if p.pre == "" {
			return partial{}, fmt.Errorf("empty prerelease")
		}
	}

	fields := strings.Split(s, ".")
	if len(fields) > 3 {
		return partial{}, fmt.Errorf("too many version components in %q", s)
	}

	nums := []*uint64{&p.major, &p.minor, &p.patch}
	for i, f := range fields {
		if isWildcard(f) {
			if i == 0 {
				return partial{}, fmt.Errorf("wildcard major version")
			}
			p.wild = true
			break
		}
		n, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return partial{}, fmt.Errorf("invalid version component %q", f)
		}
		*nums[i] = n
		switch i {
		case 1:
			p.minorSet = true
		case 2:
			p.patchSet = true
		}
	}
	return p, nil
}

func isWildcard(s string) bool {
	return s == "*" || s == "x" || s == "X"
}

// constraint renders the comparator in Masterminds syntax. Masterminds
// already reads partial versions the way Cargo does; only the implicit caret
// of a bare version needs spelling out.
func (c comparator) constraint() string {
	if c.op == "*" {
		return "*"
	}
	v := strconv.FormatUint(c.partial.major, 10)
	if c.partial.minorSet {
		v += "." + strconv.FormatUint(c.partial.minor, 10)
	}
	if c.partial.patchSet {
		v += "." + strconv.FormatUint(c.partial.patch, 10)
	}
	if c.partial.wild {
		v += ".x"
	}
	if c.partial.pre != "" {
		v += "-" + c.partial.pre
	}

	op := c.op
	if op == "" && !c.partial.wild {
		op = "^"
	}
	return op + v
}
