package upgrade

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/cargo-upgrade/pkg/errors"
	"github.com/matzehuels/cargo-upgrade/pkg/lockfile"
	"github.com/matzehuels/cargo-upgrade/pkg/manifest"
	"github.com/matzehuels/cargo-upgrade/pkg/observability"
	"github.com/matzehuels/cargo-upgrade/pkg/resolve"
	"github.com/matzehuels/cargo-upgrade/pkg/semver"
	"github.com/matzehuels/cargo-upgrade/pkg/workspace"
)

// Runner executes upgrade runs.
//
// Discover and LoadLock are the membership and lock data collaborators;
// NewRunner wires the filesystem implementations.
type Runner struct {
	Reporter Reporter
	Logger   *log.Logger
	Discover func(manifestPath string) (*workspace.Workspace, error)
	FindRoot func(manifestPath string) (string, error)
	LoadLock func(dir string) (*lockfile.Lockfile, error)

	registry Registry
}

// NewRunner creates a runner backed by registry.
// If reporter is nil, records are discarded.
// If logger is nil, log.Default() is used.
func NewRunner(registry Registry, reporter Reporter, logger *log.Logger) *Runner {
	if reporter == nil {
		reporter = nopReporter{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Reporter: reporter,
		Logger:   logger,
		Discover: workspace.Discover,
		FindRoot: workspace.FindRoot,
		LoadLock: lockfile.Load,
		registry: registry,
	}
}

// run holds the state of one Run call. Registry lookups are memoized for
// the lifetime of the run only.
type run struct {
	*Runner
	policy   Policy
	versions *VersionCache
	lock     *lockfile.Lockfile
	found    map[string]bool
	summary  *Summary
}

// Run upgrades the manifest at manifestPath, or its whole workspace when
// p.Workspace is set. The returned summary is valid even when err is not nil.
func (r *Runner) Run(ctx context.Context, manifestPath string, p Policy) (*Summary, error) {
	st := &run{
		Runner:   r,
		policy:   p,
		versions: NewVersionCache(r.registry),
		found:    make(map[string]bool),
		summary:  &Summary{DryRun: p.DryRun},
	}
	defer func() { st.summary.Fetches = st.versions.Fetches() }()

	if err := errors.ValidateManifestFilename(manifestPath); err != nil {
		return st.summary, err
	}

	var (
		paths   []string
		first   *manifest.Document
		lockDir string
	)
	if p.Workspace {
		ws, err := r.Discover(manifestPath)
		if err != nil {
			return st.summary, errors.Wrap(errors.ErrCodeWorkspaceMetadata, err, "Failed to get workspace metadata")
		}
		paths, lockDir = ws.Manifests(), ws.Dir
		r.Logger.Debug("discovered workspace", "root", ws.Dir, "manifests", len(paths))
	} else {
		doc, err := manifest.Load(manifestPath)
		if err != nil {
			return st.summary, err
		}
		if doc.IsVirtual() {
			return st.summary, errors.New(errors.ErrCodeWorkspacePrecondition,
				"Found virtual manifest, but this command requires running against an actual package in this workspace. Try adding `--workspace`.")
		}
		paths, first = []string{manifestPath}, doc
		lockDir = filepath.Dir(manifestPath)
		if p.ToLockfile {
			if root, err := r.FindRoot(manifestPath); err == nil {
				lockDir = filepath.Dir(root)
			}
		}
	}

	if p.ToLockfile {
		lock, err := r.LoadLock(lockDir)
		if err != nil {
			return st.summary, err
		}
		st.lock = lock
	}

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return st.summary, err
		}
		doc := first
		if i > 0 || doc == nil {
			var err error
			if doc, err = manifest.Load(path); err != nil {
				return st.summary, err
			}
		}
		if err := st.manifest(ctx, doc); err != nil {
			return st.summary, err
		}
	}

	for _, f := range p.Filters {
		if st.found[f.Name] {
			continue
		}
		w := Warning{
			Code:    errors.ErrCodeDependencyNotFound,
			Message: "Could not find dependency `" + f.Name + "` in any manifest",
		}
		st.summary.Warnings++
		r.Reporter.Warn(w)
		r.Logger.Debug("dependency not found", "name", f.Name)
	}
	return st.summary, nil
}

// manifest runs resolve and mutate over one document and persists it.
func (st *run) manifest(ctx context.Context, doc *manifest.Document) (err error) {
	st.summary.Manifests = append(st.summary.Manifests, doc.Path())
	st.Logger.Debug("checking manifest", "path", doc.Path(), "package", doc.PackageName())

	hooks := observability.Run()
	hooks.OnManifestStart(ctx, doc.Path())
	start, updated := time.Now(), 0
	defer func() {
		hooks.OnManifestComplete(ctx, doc.Path(), updated, time.Since(start), err)
	}()

	for _, table := range doc.DependencyTables(manifest.DefaultSelectors()...) {
		for _, sel := range st.selectEntries(table) {
			rec, err := st.entry(ctx, doc, sel.entry, sel.pin)
			if err != nil {
				return err
			}
			if rec.Updated() {
				st.summary.Updated++
				updated++
			} else {
				st.summary.Unchanged++
			}
			st.Reporter.Record(rec)
		}
	}

	if !doc.Modified() {
		return nil
	}
	if st.policy.DryRun {
		st.Logger.Debug("dry run, not writing", "path", doc.Path())
		return nil
	}
	if err := writeFile(doc.Path(), doc.Bytes()); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "Unable to write %s", doc.Path())
	}
	st.summary.Written = append(st.summary.Written, doc.Path())
	return nil
}

type selection struct {
	entry *manifest.Entry
	pin   *semver.Version
}

// selectEntries applies the name filters to a table. A renamed entry matched
// by both its key and its crate name is selected once.
func (st *run) selectEntries(t *manifest.Table) []selection {
	if len(st.policy.Filters) == 0 {
		out := make([]selection, 0, len(t.Entries()))
		for _, e := range t.Entries() {
			out = append(out, selection{entry: e})
		}
		return out
	}

	var out []selection
	seen := make(map[*manifest.Entry]bool)
	for _, f := range st.policy.Filters {
		e, ok := t.Find(f.Name)
		if !ok {
			e, ok = t.ResolveCrate(f.Name)
		}
		if !ok {
			continue
		}
		st.found[f.Name] = true
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, selection{entry: e, pin: f.Version})
	}
	return out
}

// entry resolves one dependency and applies the outcome to doc.
func (st *run) entry(ctx context.Context, doc *manifest.Document, e *manifest.Entry, pin *semver.Version) (Record, error) {
	rec := Record{
		Manifest: doc.Path(),
		Table:    e.Table().Name(),
		Key:      e.Key,
		Crate:    e.CrateName(),
		Old:      e.Requirement(),
	}

	switch {
	case st.policy.excluded(e.Key, e.CrateName()):
		rec.Reason = resolve.ReasonExcluded
		return rec, nil
	case e.Workspace:
		rec.Reason = ReasonInherited
		return rec, nil
	case e.Path != "":
		rec.Reason = ReasonPath
		return rec, nil
	case e.Git != "":
		rec.Reason = ReasonGit
		return rec, nil
	case !e.HasVersion():
		rec.Reason = ReasonNoVersion
		return rec, nil
	}

	in := resolve.Input{Crate: e.CrateName(), Target: pin}
	if e.Requirement() != "" {
		current, err := semver.ParseRequirement(e.Requirement())
		if err != nil {
			return rec, errors.Wrap(errors.ErrCodeInvalidDependencyFormat, err,
				"Invalid version requirement `%s` for `%s` in %s", e.Requirement(), e.Key, doc.Path())
		}
		in.Current = &current
	}

	needRegistry := (pin == nil && !st.policy.ToLockfile) || (pin != nil && st.policy.VerifyPinned)
	if needRegistry {
		available, err := st.versions.Versions(ctx, e.CrateName(), e.Registry)
		if err != nil {
			return rec, err
		}
		in.Available = available
	}
	if pin == nil && st.policy.ToLockfile {
		if v, ok := st.lock.Select(e.CrateName(), in.Current); ok {
			in.Locked = &v
		}
	}

	out, err := resolve.Resolve(in, st.policy.resolvePolicy())
	if err != nil {
		return rec, err
	}
	observability.Run().OnResolve(ctx, rec.Crate, out.Kind.String())
	rec.Source = out.Source
	if out.Kind == resolve.Unchanged {
		rec.Reason = out.Reason
		return rec, nil
	}

	if err := doc.SetVersion(e, out.Text()); err != nil {
		return rec, err
	}
	rec.New = out.Text()
	st.Logger.Debug("upgraded dependency", "crate", rec.Crate, "from", rec.Old, "to", rec.New, "source", out.Source)
	return rec, nil
}

// writeFile replaces path keeping its permission bits.
func writeFile(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	return os.WriteFile(path, data, mode)
}
