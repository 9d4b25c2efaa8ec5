package upgrade

import (
	"strings"

	"github.com/matzehuels/cargo-upgrade/pkg/errors"
	"github.com/matzehuels/cargo-upgrade/pkg/resolve"
	"github.com/matzehuels/cargo-upgrade/pkg/semver"
)

// Filter names one dependency, optionally pinned to an exact version.
type Filter struct {
	Name    string
	Version *semver.Version
}

// ParseFilter parses "name" or "name@version".
func ParseFilter(s string) (Filter, error) {
	name, ver, pinned := strings.Cut(s, "@")
	if err := errors.ValidateCratesPackageName(name); err != nil {
		return Filter{}, err
	}
	f := Filter{Name: name}
	if pinned {
		v, err := semver.ParseVersion(ver)
		if err != nil {
			return Filter{}, errors.Wrap(errors.ErrCodeInvalidInput, err,
				"Invalid version `%s` for `%s`", ver, name)
		}
		f.Version = &v
	}
	return f, nil
}

// String returns the filter in "name[@version]" form.
func (f Filter) String() string {
	if f.Version == nil {
		return f.Name
	}
	return f.Name + "@" + f.Version.String()
}

// Policy is the immutable configuration of one run.
type Policy struct {
	// Filters restricts the run to the named dependencies. Empty means all.
	Filters []Filter
	// Exclude lists dependency keys or crate names that are never rewritten.
	Exclude []string

	AllowPrerelease bool
	SkipCompatible  bool
	DryRun          bool
	ToLockfile      bool
	Workspace       bool
	VerifyPinned    bool
}

// PinAll applies version to every filter. It fails when there are no filters
// or when a filter already carries its own pin.
func (p *Policy) PinAll(version string) error {
	if len(p.Filters) == 0 {
		return errors.New(errors.ErrCodeInvalidInput,
			"`--version` requires at least one dependency name")
	}
	v, err := semver.ParseVersion(version)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "Invalid version `%s`", version)
	}
	for i := range p.Filters {
		if p.Filters[i].Version != nil {
			return errors.New(errors.ErrCodeInvalidInput,
				"`%s` is pinned inline and with `--version`", p.Filters[i].Name)
		}
		p.Filters[i].Version = &v
	}
	return nil
}

func (p Policy) excluded(names ...string) bool {
	for _, ex := range p.Exclude {
		for _, n := range names {
			if ex == n {
				return true
			}
		}
	}
	return false
}

func (p Policy) resolvePolicy() resolve.Policy {
	return resolve.Policy{
		AllowPrerelease: p.AllowPrerelease,
		SkipCompatible:  p.SkipCompatible,
		ToLockfile:      p.ToLockfile,
		VerifyPinned:    p.VerifyPinned,
	}
}
