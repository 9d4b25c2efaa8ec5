// Package resolve decides whether a dependency requirement should change.
//
// [Resolve] is a pure function: it performs no I/O, and the same [Input] and
// [Policy] always produce the same [Outcome]. Fetching available versions,
// reading lock data and writing manifests belong to the caller.
package resolve

import (
	"github.com/matzehuels/cargo-upgrade/pkg/errors"
	"github.com/matzehuels/cargo-upgrade/pkg/semver"
)

// Kind is the decision of an Outcome.
type Kind int

const (
	Unchanged Kind = iota
	Update
)

func (k Kind) String() string {
	if k == Update {
		return "update"
	}
	return "unchanged"
}

// Source identifies where a selected version came from.
type Source int

const (
	FromRegistry Source = iota
	FromPin
	FromLockfile
)

func (s Source) String() string {
	switch s {
	case FromPin:
		return "pin"
	case FromLockfile:
		return "lockfile"
	default:
		return "registry"
	}
}

// Reasons attached to Unchanged outcomes.
const (
	ReasonNoCandidate = "no candidate"
	ReasonCompatible  = "already compatible"
	ReasonUpToDate    = "up to date"
	ReasonExcluded    = "excluded"
)

// Input describes one dependency at the time of resolution.
type Input struct {
	// Crate is used in error messages only.
	Crate string
	// Current is nil when the entry carries no requirement.
	Current *semver.Requirement
	// Available lists the versions the registry offers, in any order.
	Available []semver.Version
	// Target is an explicit name@version pin.
	Target *semver.Version
	// Locked is the version recorded in the lockfile, if any.
	Locked *semver.Version
}

// Policy holds the flags that influence selection.
type Policy struct {
	AllowPrerelease bool
	SkipCompatible  bool
	ToLockfile      bool
	// VerifyPinned rejects pins that are absent from Available.
	VerifyPinned bool
}

// Outcome is the result of resolving one dependency.
type Outcome struct {
	Kind    Kind
	Version semver.Version
	Source  Source
	Reason  string
}

// Keep returns an Unchanged outcome with the given reason.
func Keep(reason string) Outcome {
	return Outcome{Kind: Unchanged, Reason: reason}
}

// Text returns the requirement text to write for an Update: the bare version.
func (o Outcome) Text() string {
	if o.Kind != Update {
		return ""
	}
	return o.Version.String()
}

// Resolve selects the version a dependency should be upgraded to.
//
// Selection order: explicit pin, then lockfile (when ToLockfile is set),
// then the highest available version. Stable versions are preferred unless
// AllowPrerelease is set or the current requirement already targets a
// prerelease. SkipCompatible only applies to registry selections.
func Resolve(in Input, p Policy) (Outcome, error) {
	var (
		selected semver.Version
		source   Source
	)

	switch {
	case in.Target != nil:
		if p.VerifyPinned && !contains(in.Available, *in.Target) {
			return Outcome{}, errors.New(errors.ErrCodeVersionNotFound,
				"The version `%s` for the crate `%s` could not be found", in.Target, in.Crate)
		}
		selected, source = *in.Target, FromPin

	case p.ToLockfile:
		if in.Locked == nil {
			return Outcome{}, errors.New(errors.ErrCodeLockfileMissingEntry,
				"The crate `%s` could not be found in the lockfile", in.Crate)
		}
		selected, source = *in.Locked, FromLockfile

	default:
		candidates := in.Available
		if !p.AllowPrerelease && !currentIsPrerelease(in.Current) {
			candidates = stable(candidates)
		}
		best, ok := semver.Max(candidates)
		if !ok {
			return Keep(ReasonNoCandidate), nil
		}
		if p.SkipCompatible && in.Current != nil && in.Current.Admits(best) {
			return Keep(ReasonCompatible), nil
		}
		selected, source = best, FromRegistry
	}

	if in.Current != nil && in.Current.String() == selected.String() {
		return Keep(ReasonUpToDate), nil
	}
	return Outcome{Kind: Update, Version: selected, Source: source}, nil
}

func currentIsPrerelease(r *semver.Requirement) bool {
	return r != nil && r.MinimumVersion().IsPrerelease()
}

func stable(vs []semver.Version) []semver.Version {
	out := make([]semver.Version, 0, len(vs))
	for _, v := range vs {
		if !v.IsPrerelease() {
			out = append(out, v)
		}
	}
	return out
}

func contains(vs []semver.Version, v semver.Version) bool {
	for _, c := range vs {
		if c.Equal(v) {
			return true
		}
	}
	return false
}
