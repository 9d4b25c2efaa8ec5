package upgrade

import (
	"context"
	"testing"

	"github.com/matzehuels/cargo-upgrade/pkg/errors"
	"github.com/matzehuels/cargo-upgrade/pkg/semver"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		input   string
		name    string
		version string
		wantErr bool
	}{
		{input: "docopt", name: "docopt"},
		{input: "docopt@1.0.0", name: "docopt", version: "1.0.0"},
		{input: "serde_json@1.0.1-rc.1", name: "serde_json", version: "1.0.1-rc.1"},
		{input: "docopt@1.0", wantErr: true},
		{input: "docopt@", wantErr: true},
		{input: "@1.0.0", wantErr: true},
		{input: "../etc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f, err := ParseFilter(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseFilter(%q) = %+v, want error", tt.input, f)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFilter(%q) error: %v", tt.input, err)
			}
			if f.Name != tt.name {
				t.Errorf("Name = %q, want %q", f.Name, tt.name)
			}
			got := ""
			if f.Version != nil {
				got = f.Version.String()
			}
			if got != tt.version {
				t.Errorf("Version = %q, want %q", got, tt.version)
			}
			if f.String() != tt.input {
				t.Errorf("String() = %q, want %q", f.String(), tt.input)
			}
		})
	}
}

func TestPinAll(t *testing.T) {
	var p Policy
	if err := p.PinAll("1.0.0"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("PinAll without filters error = %v", err)
	}

	p.Filters = filters(t, "docopt", "libc")
	if err := p.PinAll("2.0.0"); err != nil {
		t.Fatalf("PinAll() error: %v", err)
	}
	for _, f := range p.Filters {
		if f.Version == nil || f.Version.String() != "2.0.0" {
			t.Errorf("%s pinned to %v", f.Name, f.Version)
		}
	}

	p.Filters = filters(t, "docopt@1.0.0")
	if err := p.PinAll("2.0.0"); err == nil {
		t.Error("PinAll over an inline pin should fail")
	}

	p.Filters = filters(t, "docopt")
	if err := p.PinAll("latest"); err == nil {
		t.Error("PinAll with an invalid version should fail")
	}
}

func TestPolicyExcluded(t *testing.T) {
	p := Policy{Exclude: []string{"rand"}}
	if !p.excluded("renamed", "rand") {
		t.Error("crate name should match the exclude list")
	}
	if p.excluded("docopt", "docopt") {
		t.Error("docopt is not excluded")
	}
}

func TestVersionCache(t *testing.T) {
	reg := newFakeRegistry()
	c := NewVersionCache(reg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		vs, err := c.Versions(ctx, "libc", "")
		if err != nil {
			t.Fatalf("Versions() error: %v", err)
		}
		if best, _ := semver.Max(vs); best.String() != "99999.0.0" {
			t.Errorf("max = %s", best)
		}
	}
	if _, err := c.Versions(ctx, "libc", "alternative"); err != nil {
		t.Fatal(err)
	}
	if c.Fetches() != 2 {
		t.Errorf("Fetches() = %d, want 2", c.Fetches())
	}

	for i := 0; i < 2; i++ {
		if _, err := c.Versions(ctx, "missing", ""); !errors.Is(err, errors.ErrCodeNotFound) {
			t.Errorf("error = %v, want NOT_FOUND", err)
		}
	}
	if reg.calls["missing"] != 2 {
		t.Errorf("failed lookups should not be cached, got %d calls", reg.calls["missing"])
	}
}
