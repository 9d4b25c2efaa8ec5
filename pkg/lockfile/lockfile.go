// Package lockfile reads Cargo.lock files.
//
// A lockfile records the exact version resolved for every package of a
// workspace. The same crate may appear more than once when members depend on
// semver-incompatible versions of it; [Lockfile.Select] picks the locked
// version that matches a given requirement.
package lockfile

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/cargo-upgrade/pkg/errors"
	"github.com/matzehuels/cargo-upgrade/pkg/semver"
)

// Filename is the lockfile name Cargo writes next to the workspace root manifest.
const Filename = "Cargo.lock"

// Package is one [[package]] record.
type Package struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Source  string `toml:"source"`
}

// Lockfile is a decoded Cargo.lock.
type Lockfile struct {
	Version  int       `toml:"version"`
	Packages []Package `toml:"package"`

	byName map[string][]semver.Version
}

// Load reads the lockfile in dir.
func Load(dir string) (*Lockfile, error) {
	path := filepath.Join(dir, Filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "No lockfile found at %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "Unable to read %s", path)
	}
	lf, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "Unable to parse %s", path)
	}
	return lf, nil
}

// Parse decodes lockfile text. Records with unparseable versions are ignored.
func Parse(data []byte) (*Lockfile, error) {
	var lf Lockfile
	if _, err := toml.Decode(string(data), &lf); err != nil {
		return nil, err
	}
	lf.byName = make(map[string][]semver.Version)
	for _, p := range lf.Packages {
		v, err := semver.ParseVersion(p.Version)
		if err != nil {
			continue
		}
		lf.byName[p.Name] = append(lf.byName[p.Name], v)
	}
	return &lf, nil
}

// Versions returns every locked version of the named crate.
func (l *Lockfile) Versions(name string) []semver.Version {
	if l == nil {
		return nil
	}
	return l.byName[name]
}

// Select returns the locked version of name to use for req.
// The highest locked version admitted by req wins; if none is admitted and
// exactly one version is locked, that version is returned.
func (l *Lockfile) Select(name string, req *semver.Requirement) (semver.Version, bool) {
	locked := l.Versions(name)
	if len(locked) == 0 {
		return semver.Version{}, false
	}
	if req != nil {
		var admitted []semver.Version
		for _, v := range locked {
			if req.Admits(v) {
				admitted = append(admitted, v)
			}
		}
		if best, ok := semver.Max(admitted); ok {
			return best, true
		}
	}
	if len(locked) == 1 {
		return locked[0], true
	}
	if req == nil {
		return semver.Max(locked)
	}
	return semver.Version{}, false
}
