package resolve

import (
	"testing"

	"github.com/matzehuels/cargo-upgrade/pkg/errors"
	"github.com/matzehuels/cargo-upgrade/pkg/semver"
)

func versions(raw ...string) []semver.Version {
	out := make([]semver.Version, len(raw))
	for i, r := range raw {
		out[i] = semver.MustParseVersion(r)
	}
	return out
}

func req(raw string) *semver.Requirement {
	r := semver.MustParseRequirement(raw)
	return &r
}

func ver(raw string) *semver.Version {
	v := semver.MustParseVersion(raw)
	return &v
}

func TestResolve(t *testing.T) {
	registry := versions("0.8.0", "0.9.0", "99999.0.0", "99999.0.0-alpha.1", "0.8.0-alpha", "100000.0.0-beta.1")

	tests := []struct {
		name   string
		in     Input
		policy Policy
		kind   Kind
		want   string
		reason string
		source Source
	}{
		{
			name: "latest stable",
			in:   Input{Crate: "docopt", Current: req("0.8"), Available: registry},
			kind: Update, want: "99999.0.0", source: FromRegistry,
		},
		{
			name: "operator requirement replaced by bare version",
			in:   Input{Crate: "docopt", Current: req(">=0.1.1"), Available: registry},
			kind: Update, want: "99999.0.0",
		},
		{
			name:   "allow prerelease",
			in:     Input{Crate: "docopt", Current: req("0.8"), Available: registry},
			policy: Policy{AllowPrerelease: true},
			kind:   Update, want: "100000.0.0-beta.1",
		},
		{
			name: "prerelease current keeps prerelease line",
			in:   Input{Crate: "docopt", Current: req("0.8.0-alpha"), Available: registry},
			kind: Update, want: "100000.0.0-beta.1",
		},
		{
			name:   "skip compatible when admitted",
			in:     Input{Crate: "docopt", Current: req(">=0.1.1"), Available: registry},
			policy: Policy{SkipCompatible: true},
			kind:   Unchanged, reason: ReasonCompatible,
		},
		{
			name:   "skip compatible when not admitted",
			in:     Input{Crate: "docopt", Current: req("0.8"), Available: registry},
			policy: Policy{SkipCompatible: true},
			kind:   Update, want: "99999.0.0",
		},
		{
			name:   "skip compatible with prerelease on another patch",
			in:     Input{Crate: "docopt", Current: req("0.8.0-alpha"), Available: versions("0.8.0-alpha", "0.8.1-alpha.1")},
			policy: Policy{SkipCompatible: true},
			kind:   Update, want: "0.8.1-alpha.1", source: FromRegistry,
		},
		{
			name:   "skip compatible with prerelease on the same patch",
			in:     Input{Crate: "docopt", Current: req("0.8.0-alpha"), Available: versions("0.8.0-alpha", "0.8.0-alpha.2")},
			policy: Policy{SkipCompatible: true},
			kind:   Unchanged, reason: ReasonCompatible,
		},
		{
			name: "no candidates",
			in:   Input{Crate: "docopt", Current: req("0.8"), Available: versions("1.0.0-rc.1")},
			kind: Unchanged, reason: ReasonNoCandidate,
		},
		{
			name: "empty registry",
			in:   Input{Crate: "docopt", Current: req("0.8")},
			kind: Unchanged, reason: ReasonNoCandidate,
		},
		{
			name: "already at latest",
			in:   Input{Crate: "docopt", Current: req("99999.0.0"), Available: registry},
			kind: Unchanged, reason: ReasonUpToDate,
		},
		{
			name:   "pin bypasses filtering",
			in:     Input{Crate: "docopt", Current: req("0.8"), Available: registry, Target: ver("0.8.0-alpha")},
			policy: Policy{SkipCompatible: true},
			kind:   Update, want: "0.8.0-alpha", source: FromPin,
		},
		{
			name: "unverified pin absent from registry",
			in:   Input{Crate: "docopt", Current: req("0.8"), Available: registry, Target: ver("1000000.0.0")},
			kind: Update, want: "1000000.0.0", source: FromPin,
		},
		{
			name:   "lockfile",
			in:     Input{Crate: "docopt", Current: req("0.8"), Available: registry, Locked: ver("0.8.3")},
			policy: Policy{ToLockfile: true, SkipCompatible: true},
			kind:   Update, want: "0.8.3", source: FromLockfile,
		},
		{
			name: "no current requirement",
			in:   Input{Crate: "docopt", Available: registry},
			kind: Update, want: "99999.0.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.in, tt.policy)
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v (reason %q)", got.Kind, tt.kind, got.Reason)
			}
			if tt.kind == Update {
				if got.Text() != tt.want {
					t.Errorf("Text() = %q, want %q", got.Text(), tt.want)
				}
				if got.Source != tt.source {
					t.Errorf("Source = %v, want %v", got.Source, tt.source)
				}
			} else if got.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.reason)
			}
		})
	}
}

func TestResolveErrors(t *testing.T) {
	registry := versions("0.8.0", "99999.0.0")

	tests := []struct {
		name   string
		in     Input
		policy Policy
		code   errors.Code
	}{
		{
			name:   "verified pin absent",
			in:     Input{Crate: "docopt", Current: req("0.8"), Available: registry, Target: ver("1000000.0.0")},
			policy: Policy{VerifyPinned: true},
			code:   errors.ErrCodeVersionNotFound,
		},
		{
			name:   "lockfile entry missing",
			in:     Input{Crate: "docopt", Current: req("0.8"), Available: registry},
			policy: Policy{ToLockfile: true},
			code:   errors.ErrCodeLockfileMissingEntry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.in, tt.policy)
			if !errors.Is(err, tt.code) {
				t.Errorf("Resolve() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestResolveVerifiedPinPresent(t *testing.T) {
	got, err := Resolve(Input{
		Crate:     "docopt",
		Current:   req("0.8"),
		Available: versions("0.8.0", "0.9.0"),
		Target:    ver("0.9.0"),
	}, Policy{VerifyPinned: true})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got.Text() != "0.9.0" {
		t.Errorf("Text() = %q, want 0.9.0", got.Text())
	}
}

func TestResolveIdempotent(t *testing.T) {
	registry := versions("0.8.0", "99999.0.0")
	first, _ := Resolve(Input{Crate: "docopt", Current: req("0.8"), Available: registry}, Policy{})
	if first.Kind != Update {
		t.Fatalf("first run Kind = %v", first.Kind)
	}
	second, _ := Resolve(Input{Crate: "docopt", Current: req(first.Text()), Available: registry}, Policy{})
	if second.Kind != Unchanged {
		t.Errorf("second run Kind = %v, want Unchanged", second.Kind)
	}
}
