package upgrade

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/cargo-upgrade/pkg/errors"
	"github.com/matzehuels/cargo-upgrade/pkg/manifest"
	"github.com/matzehuels/cargo-upgrade/pkg/observability"
	"github.com/matzehuels/cargo-upgrade/pkg/semver"
)

// fakeRegistry serves fixed version lists and counts lookups.
type fakeRegistry struct {
	versions map[string][]string
	calls    map[string]int
	fail     map[string]error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		versions: map[string][]string{
			"docopt":           {"0.8.0", "0.8.3", "99999.0.0", "99999.0.1-alpha.1"},
			"libc":             {"0.2.100", "99999.0.0"},
			"rand":             {"0.3.0", "99999.0.0"},
			"pad":              {"0.1.0", "99999.0.0"},
			"serde":            {"1.0.0", "1.0.200"},
			"test_breaking":    {"0.1.0", "0.2.0"},
			"test_nonbreaking": {"0.1.0", "0.1.5"},
			"toml":             {"0.4.0", "99999.0.0"},
		},
		calls: make(map[string]int),
		fail:  make(map[string]error),
	}
}

func (f *fakeRegistry) Versions(_ context.Context, crate, registry string) ([]semver.Version, error) {
	key := crate
	if registry != "" {
		key = registry + "/" + crate
	}
	f.calls[key]++
	if err, ok := f.fail[crate]; ok {
		return nil, err
	}
	raw, ok := f.versions[crate]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "The crate `%s` could not be found in registry index.", crate)
	}
	out := make([]semver.Version, len(raw))
	for i, s := range raw {
		out[i] = semver.MustParseVersion(s)
	}
	return out, nil
}

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "Cargo.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readManifest(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func requirement(t *testing.T, path, table, key string) string {
	t.Helper()
	doc, err := manifest.Load(path)
	if err != nil {
		t.Fatalf("reload %s: %v", path, err)
	}
	for _, tbl := range doc.DependencyTables(manifest.DefaultSelectors()...) {
		if tbl.Name() != table {
			continue
		}
		if e, ok := tbl.Find(key); ok {
			return e.Requirement()
		}
	}
	t.Fatalf("%s not found in [%s] of %s", key, table, path)
	return ""
}

func testRunner(reg Registry) (*Runner, *Collector) {
	c := &Collector{}
	return NewRunner(reg, c, log.New(io.Discard)), c
}

func filters(t *testing.T, names ...string) []Filter {
	t.Helper()
	out := make([]Filter, len(names))
	for i, n := range names {
		f, err := ParseFilter(n)
		if err != nil {
			t.Fatalf("ParseFilter(%q): %v", n, err)
		}
		out[i] = f
	}
	return out
}

const pkgHeader = "[package]\nname = \"fixture\"\nversion = \"0.1.0\"\n\n"

func TestRunUpgradesAll(t *testing.T) {
	path := writeManifest(t, t.TempDir(), pkgHeader+`[dependencies]
docopt = "0.8"   # pinned for now
pad = { version = ">=0.1.1", optional = true }
local = { path = "../local" }

[dev-dependencies]
renamed = { package = "rand", version = "0.3" }

[target.'cfg(unix)'.dependencies]
libc = "0.2"
`)

	r, rep := testRunner(newFakeRegistry())
	summary, err := r.Run(context.Background(), path, Policy{})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := pkgHeader + `[dependencies]
docopt = "99999.0.0"   # pinned for now
pad = { version = "99999.0.0", optional = true }
local = { path = "../local" }

[dev-dependencies]
renamed = { package = "rand", version = "99999.0.0" }

[target.'cfg(unix)'.dependencies]
libc = "99999.0.0"
`
	if got := readManifest(t, path); got != want {
		t.Errorf("manifest after upgrade:\n%s\nwant:\n%s", got, want)
	}
	if summary.Updated != 4 || summary.Unchanged != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.Written) != 1 {
		t.Errorf("Written = %v", summary.Written)
	}

	var local Record
	for _, rec := range rep.Records {
		if rec.Key == "local" {
			local = rec
		}
	}
	if local.Reason != ReasonPath {
		t.Errorf("path dependency reason = %q", local.Reason)
	}
}

func TestRunSpecifiedOnly(t *testing.T) {
	path := writeManifest(t, t.TempDir(), pkgHeader+"[dependencies]\ndocopt = \"0.8\"\nenv_proxy = \"0.1.1\"\n")

	r, _ := testRunner(newFakeRegistry())
	if _, err := r.Run(context.Background(), path, Policy{Filters: filters(t, "docopt")}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got := requirement(t, path, "dependencies", "docopt"); got != "99999.0.0" {
		t.Errorf("docopt = %q", got)
	}
	if got := requirement(t, path, "dependencies", "env_proxy"); got != "0.1.1" {
		t.Errorf("env_proxy = %q, want untouched", got)
	}
}

func TestRunSkipCompatible(t *testing.T) {
	path := writeManifest(t, t.TempDir(), pkgHeader+"[dependencies]\ntest_breaking = \"0.1\"\ntest_nonbreaking = \"0.1\"\n")

	r, _ := testRunner(newFakeRegistry())
	if _, err := r.Run(context.Background(), path, Policy{SkipCompatible: true}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got := requirement(t, path, "dependencies", "test_breaking"); got != "0.2.0" {
		t.Errorf("test_breaking = %q, want 0.2.0", got)
	}
	if got := requirement(t, path, "dependencies", "test_nonbreaking"); got != "0.1" {
		t.Errorf("test_nonbreaking = %q, want 0.1", got)
	}
}

func TestRunExclude(t *testing.T) {
	path := writeManifest(t, t.TempDir(), pkgHeader+"[dependencies]\ndocopt = \"0.8\"\nlibc = \"0.2\"\n")

	r, rep := testRunner(newFakeRegistry())
	if _, err := r.Run(context.Background(), path, Policy{Exclude: []string{"docopt"}}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got := requirement(t, path, "dependencies", "docopt"); got != "0.8" {
		t.Errorf("excluded docopt = %q", got)
	}
	if got := requirement(t, path, "dependencies", "libc"); got != "99999.0.0" {
		t.Errorf("libc = %q", got)
	}
	if rep.Records[0].Reason != "excluded" {
		t.Errorf("reason = %q", rep.Records[0].Reason)
	}
}

func TestRunRenameEquivalence(t *testing.T) {
	tests := []struct {
		name  string
		names []string
	}{
		{"by key", []string{"renamed"}},
		{"by crate", []string{"rand"}},
		{"by both", []string{"renamed", "rand"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), pkgHeader+"[dependencies]\nrenamed = { package = \"rand\", version = \"0.3\" }\n")

			r, rep := testRunner(newFakeRegistry())
			summary, err := r.Run(context.Background(), path, Policy{Filters: filters(t, tt.names...)})
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			if summary.Updated != 1 || len(rep.Updates()) != 1 {
				t.Errorf("updated %d entries, want exactly 1", summary.Updated)
			}
			if len(rep.Warnings) != 0 {
				t.Errorf("unexpected warnings: %v", rep.Warnings)
			}
			if got := requirement(t, path, "dependencies", "renamed"); got != "99999.0.0" {
				t.Errorf("renamed = %q", got)
			}
		})
	}
}

func TestRunPrereleaseGating(t *testing.T) {
	tests := []struct {
		name    string
		current string
		policy  Policy
		want    string
	}{
		{"prerelease line", "0.8.0-alpha", Policy{}, "99999.0.1-alpha.1"},
		{"stable line", "0.8", Policy{}, "99999.0.0"},
		{"stable line with flag", "0.8", Policy{AllowPrerelease: true}, "99999.0.1-alpha.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), pkgHeader+"[dependencies]\ndocopt = \""+tt.current+"\"\n")
			r, _ := testRunner(newFakeRegistry())
			tt.policy.Filters = filters(t, "docopt")
			if _, err := r.Run(context.Background(), path, tt.policy); err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			if got := requirement(t, path, "dependencies", "docopt"); got != tt.want {
				t.Errorf("docopt = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunPinned(t *testing.T) {
	path := writeManifest(t, t.TempDir(), pkgHeader+"[dependencies]\ndocopt = \"0.8\"\n")

	reg := newFakeRegistry()
	r, _ := testRunner(reg)
	if _, err := r.Run(context.Background(), path, Policy{Filters: filters(t, "docopt@1000000.0.0")}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got := requirement(t, path, "dependencies", "docopt"); got != "1000000.0.0" {
		t.Errorf("docopt = %q", got)
	}
	if reg.calls["docopt"] != 0 {
		t.Error("unverified pin should not query the registry")
	}

	_, err := r.Run(context.Background(), path, Policy{Filters: filters(t, "docopt@2000000.0.0"), VerifyPinned: true})
	if !errors.Is(err, errors.ErrCodeVersionNotFound) {
		t.Errorf("verified pin error = %v, want VERSION_NOT_FOUND", err)
	}
}

func TestRunDryRun(t *testing.T) {
	content := pkgHeader + "[dependencies]\ndocopt = \"0.8\"\n"
	path := writeManifest(t, t.TempDir(), content)

	r, rep := testRunner(newFakeRegistry())
	summary, err := r.Run(context.Background(), path, Policy{DryRun: true})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got := readManifest(t, path); got != content {
		t.Error("dry run modified the manifest")
	}
	if len(summary.Written) != 0 || !summary.DryRun {
		t.Errorf("summary = %+v", summary)
	}
	if len(rep.Updates()) != 1 || rep.Updates()[0].New != "99999.0.0" {
		t.Errorf("dry run should still report updates: %+v", rep.Records)
	}
}

func TestRunIdempotent(t *testing.T) {
	path := writeManifest(t, t.TempDir(), pkgHeader+"[dependencies]\ndocopt = \"0.8\"\npad = { version = \"0.1\" }\n")

	r, _ := testRunner(newFakeRegistry())
	if _, err := r.Run(context.Background(), path, Policy{}); err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	after := readManifest(t, path)

	r2, _ := testRunner(newFakeRegistry())
	summary, err := r2.Run(context.Background(), path, Policy{})
	if err != nil {
		t.Fatalf("second Run() error: %v", err)
	}
	if readManifest(t, path) != after {
		t.Error("second run changed the manifest")
	}
	if summary.Updated != 0 || len(summary.Written) != 0 {
		t.Errorf("second run summary = %+v", summary)
	}
}

func TestRunMissingDependencyWarns(t *testing.T) {
	content := pkgHeader + "[dependencies]\ndocopt = \"0.8\"\n"
	path := writeManifest(t, t.TempDir(), content)

	r, rep := testRunner(newFakeRegistry())
	summary, err := r.Run(context.Background(), path, Policy{Filters: filters(t, "failure")})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(rep.Warnings) != 1 || rep.Warnings[0].Code != errors.ErrCodeDependencyNotFound {
		t.Fatalf("warnings = %+v", rep.Warnings)
	}
	if !strings.Contains(rep.Warnings[0].Message, "failure") {
		t.Errorf("warning = %q", rep.Warnings[0].Message)
	}
	if summary.Warnings != 1 || readManifest(t, path) != content {
		t.Error("missing dependency should only warn")
	}
}

func TestRunVirtualManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "[workspace]\nmembers = [\"one\"]\n")
	writeManifest(t, filepath.Join(dir, "one"), "[package]\nname = \"one\"\n\n[dependencies]\nlibc = \"0.2\"\n")

	r, _ := testRunner(newFakeRegistry())
	_, err := r.Run(context.Background(), path, Policy{})
	if !errors.Is(err, errors.ErrCodeWorkspacePrecondition) {
		t.Fatalf("error = %v, want WORKSPACE_PRECONDITION", err)
	}
	if !strings.Contains(errors.UserMessage(err), "Try adding `--workspace`") {
		t.Errorf("message = %q", errors.UserMessage(err))
	}
	if got := requirement(t, filepath.Join(dir, "one", "Cargo.toml"), "dependencies", "libc"); got != "0.2" {
		t.Error("precondition failure touched a member")
	}
}

func TestRunWorkspaceFanOut(t *testing.T) {
	dir := t.TempDir()
	root := writeManifest(t, dir, "[workspace]\nmembers = [\"one\", \"two\"]\n")
	one := writeManifest(t, filepath.Join(dir, "one"), "[package]\nname = \"one\"\n\n[dependencies]\nlibc = \"0.2\"\n")
	two := writeManifest(t, filepath.Join(dir, "two"), "[package]\nname = \"two\"\n\n[dependencies]\nlibc = { version = \"0.2.100\" }\n")

	reg := newFakeRegistry()
	r, _ := testRunner(reg)
	summary, err := r.Run(context.Background(), root, Policy{Workspace: true})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	for _, m := range []string{one, two} {
		if got := requirement(t, m, "dependencies", "libc"); got != "99999.0.0" {
			t.Errorf("%s libc = %q", m, got)
		}
	}
	if len(summary.Manifests) != 3 {
		t.Errorf("visited %v", summary.Manifests)
	}
	if reg.calls["libc"] != 1 || summary.Fetches != 1 {
		t.Errorf("libc fetched %d times, want 1", reg.calls["libc"])
	}
}

func TestRunnerReuseRefetches(t *testing.T) {
	path := writeManifest(t, t.TempDir(), pkgHeader+"[dependencies]\nlibc = \"0.2\"\n")

	reg := newFakeRegistry()
	r, _ := testRunner(reg)
	p := Policy{DryRun: true}

	first, err := r.Run(context.Background(), path, p)
	if err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	reg.versions["libc"] = append(reg.versions["libc"], "100000.0.0")
	second, err := r.Run(context.Background(), path, p)
	if err != nil {
		t.Fatalf("second Run() error: %v", err)
	}

	if first.Fetches != 1 || second.Fetches != 1 {
		t.Errorf("Fetches = %d, %d, want 1 per run", first.Fetches, second.Fetches)
	}
	if reg.calls["libc"] != 2 {
		t.Errorf("libc fetched %d times, want 2", reg.calls["libc"])
	}

	path2 := writeManifest(t, t.TempDir(), pkgHeader+"[dependencies]\nlibc = \"0.2\"\n")
	if _, err := r.Run(context.Background(), path2, Policy{}); err != nil {
		t.Fatalf("third Run() error: %v", err)
	}
	if got := requirement(t, path2, "dependencies", "libc"); got != "100000.0.0" {
		t.Errorf("libc = %q, want the version published after the first run", got)
	}
}

func TestRunWorkspaceMetadataError(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "This is clearly not a valid Cargo.toml.\n")

	r, _ := testRunner(newFakeRegistry())
	_, err := r.Run(context.Background(), path, Policy{Workspace: true})
	if !errors.Is(err, errors.ErrCodeWorkspaceMetadata) {
		t.Fatalf("error = %v, want WORKSPACE_METADATA", err)
	}
	if chain := errors.Chain(err); chain[0] != "Failed to get workspace metadata" {
		t.Errorf("Chain()[0] = %q", chain[0])
	}

	_, err = r.Run(context.Background(), path, Policy{})
	if chain := errors.Chain(err); len(chain) < 2 || chain[0] != "Unable to parse Cargo.toml" {
		t.Errorf("Chain() = %q", chain)
	}
}

func TestRunAbortsWithoutRollback(t *testing.T) {
	dir := t.TempDir()
	root := writeManifest(t, dir, "[workspace]\nmembers = [\"a\", \"b\"]\n")
	a := writeManifest(t, filepath.Join(dir, "a"), "[package]\nname = \"a\"\n\n[dependencies]\nlibc = \"0.2\"\n")
	b := writeManifest(t, filepath.Join(dir, "b"), "[package]\nname = \"b\"\n\n[dependencies]\nbroken = \"1.0\"\nlibc = \"0.2\"\n")

	reg := newFakeRegistry()
	reg.fail["broken"] = errors.New(errors.ErrCodeNetwork, "registry unavailable")
	r, _ := testRunner(reg)

	summary, err := r.Run(context.Background(), root, Policy{Workspace: true})
	if !errors.Is(err, errors.ErrCodeNetwork) {
		t.Fatalf("error = %v, want NETWORK_ERROR", err)
	}
	if got := requirement(t, a, "dependencies", "libc"); got != "99999.0.0" {
		t.Errorf("member written before the failure was rolled back: %q", got)
	}
	if got := requirement(t, b, "dependencies", "libc"); got != "0.2" {
		t.Errorf("failing member was written: %q", got)
	}
	if len(summary.Written) != 1 || summary.Written[0] != a {
		t.Errorf("Written = %v", summary.Written)
	}
}

func TestRunToLockfile(t *testing.T) {
	dir := t.TempDir()
	root := writeManifest(t, dir, "[workspace]\nmembers = [\"one\", \"two\"]\n")
	one := writeManifest(t, filepath.Join(dir, "one"), "[package]\nname = \"one\"\n\n[dependencies]\nrand = \"0.3\"\n")
	two := writeManifest(t, filepath.Join(dir, "two"), "[package]\nname = \"two\"\n\n[dependencies]\nrand = \"0.8\"\n")
	lock := `version = 3

[[package]]
name = "rand"
version = "0.3.23"

[[package]]
name = "rand"
version = "0.8.5"
`
	if err := os.WriteFile(filepath.Join(dir, "Cargo.lock"), []byte(lock), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := newFakeRegistry()
	r, _ := testRunner(reg)
	if _, err := r.Run(context.Background(), root, Policy{Workspace: true, ToLockfile: true}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got := requirement(t, one, "dependencies", "rand"); got != "0.3.23" {
		t.Errorf("one rand = %q, want 0.3.23", got)
	}
	if got := requirement(t, two, "dependencies", "rand"); got != "0.8.5" {
		t.Errorf("two rand = %q, want 0.8.5", got)
	}
	if len(reg.calls) != 0 {
		t.Errorf("lockfile run queried the registry: %v", reg.calls)
	}

	// A member outside the lock aborts the run.
	writeManifest(t, filepath.Join(dir, "two"), "[package]\nname = \"two\"\n\n[dependencies]\nlibc = \"0.2\"\n")
	_, err := r.Run(context.Background(), two, Policy{ToLockfile: true})
	if !errors.Is(err, errors.ErrCodeLockfileMissingEntry) {
		t.Errorf("error = %v, want LOCKFILE_MISSING_ENTRY", err)
	}
}

func TestRunAlternativeRegistry(t *testing.T) {
	path := writeManifest(t, t.TempDir(), pkgHeader+"[dependencies]\ntoml = { version = \"0.4\", registry = \"alternative\" }\n")

	reg := newFakeRegistry()
	r, _ := testRunner(reg)
	if _, err := r.Run(context.Background(), path, Policy{}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if reg.calls["alternative/toml"] != 1 {
		t.Errorf("calls = %v", reg.calls)
	}
	if got := readManifest(t, path); !strings.Contains(got, `toml = { version = "99999.0.0", registry = "alternative" }`) {
		t.Errorf("manifest = %s", got)
	}
}

func TestRunInvalidManifestName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	_ = os.WriteFile(path, []byte("{}"), 0o644)

	r, _ := testRunner(newFakeRegistry())
	if _, err := r.Run(context.Background(), path, Policy{}); !errors.Is(err, errors.ErrCodeInvalidManifest) {
		t.Errorf("error = %v, want INVALID_MANIFEST", err)
	}
}

type runHooks struct {
	observability.NoopRunHooks
	started  []string
	updated  map[string]int
	outcomes map[string]string
}

func (h *runHooks) OnManifestStart(_ context.Context, path string) {
	h.started = append(h.started, path)
}

func (h *runHooks) OnManifestComplete(_ context.Context, path string, updated int, _ time.Duration, _ error) {
	h.updated[path] = updated
}

func (h *runHooks) OnResolve(_ context.Context, crate, outcome string) {
	h.outcomes[crate] = outcome
}

func TestRunHooks(t *testing.T) {
	hooks := &runHooks{updated: map[string]int{}, outcomes: map[string]string{}}
	observability.SetRunHooks(hooks)
	defer observability.Reset()

	path := writeManifest(t, t.TempDir(), pkgHeader+"[dependencies]\ndocopt = \"0.8\"\nserde = \"1.0.200\"\n")
	r, _ := testRunner(newFakeRegistry())
	if _, err := r.Run(context.Background(), path, Policy{}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(hooks.started) != 1 || hooks.updated[path] != 1 {
		t.Errorf("started=%v updated=%v", hooks.started, hooks.updated)
	}
	if hooks.outcomes["docopt"] != "update" || hooks.outcomes["serde"] != "unchanged" {
		t.Errorf("outcomes = %v", hooks.outcomes)
	}
}

func ExampleParseFilter() {
	f, _ := ParseFilter("docopt@1.0.0")
	fmt.Println(f.Name, f.Version)
	// Output:
	// docopt 1.0.0
}
