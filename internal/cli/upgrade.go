package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/cargo-upgrade/pkg/upgrade"
)

// deprecatedAll is logged when the --all alias is used.
const deprecatedAll = "The flag `--all` has been deprecated in favor of `--workspace`"

// upgradeOptions holds the flags of the upgrade command.
type upgradeOptions struct {
	version         string
	manifestPath    string
	exclude         []string
	dryRun          bool
	workspace       bool
	all             bool
	allowPrerelease bool
	skipCompatible  bool
	toLockfile      bool
	verifyPinned    bool
	noCache         bool
	refresh         bool
}

// policy builds the run policy from flags and positional names.
func (o upgradeOptions) policy(args []string) (upgrade.Policy, error) {
	p := upgrade.Policy{
		Exclude:         o.exclude,
		AllowPrerelease: o.allowPrerelease,
		SkipCompatible:  o.skipCompatible,
		DryRun:          o.dryRun,
		ToLockfile:      o.toLockfile,
		Workspace:       o.workspace || o.all,
		VerifyPinned:    o.verifyPinned,
	}
	for _, arg := range args {
		f, err := upgrade.ParseFilter(arg)
		if err != nil {
			return upgrade.Policy{}, err
		}
		p.Filters = append(p.Filters, f)
	}
	if o.version != "" {
		if err := p.PinAll(o.version); err != nil {
			return upgrade.Policy{}, err
		}
	}
	return p, nil
}

// upgradeCommand creates the upgrade command.
func (c *CLI) upgradeCommand() *cobra.Command {
	var opts upgradeOptions

	cmd := &cobra.Command{
		Use:   "upgrade [dependency]...",
		Short: "Upgrade dependency version requirements in Cargo.toml",
		Long: `Upgrade the version requirements of dependencies in a Cargo.toml manifest.

Without names every registry dependency is upgraded to its latest published
version. A name may carry an exact pin as name@version. Comments, whitespace,
quoting and key order of the manifest are preserved.`,
		Example: `  cargo upgrade
  cargo upgrade docopt serde@1.0.200
  cargo upgrade --workspace --exclude rand
  cargo upgrade --to-lockfile --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.all {
				loggerFromContext(cmd.Context()).Warn(deprecatedAll)
			}
			return c.runUpgrade(cmd.Context(), args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.version, "version", "", "pin every named dependency to this exact version")
	f.StringVar(&opts.version, "vers", "", "alias for --version")
	f.StringVar(&opts.manifestPath, "manifest-path", "Cargo.toml", "path to the manifest to upgrade")
	f.StringArrayVar(&opts.exclude, "exclude", nil, "dependency to leave untouched (repeatable)")
	f.BoolVar(&opts.dryRun, "dry-run", false, "print changes without writing any manifest")
	f.BoolVar(&opts.workspace, "workspace", false, "upgrade every member of the workspace")
	f.BoolVar(&opts.all, "all", false, "deprecated alias for --workspace")
	f.BoolVar(&opts.allowPrerelease, "allow-prerelease", false, "include prerelease versions")
	f.BoolVar(&opts.skipCompatible, "skip-compatible", false, "leave requirements that already admit the latest version")
	f.BoolVar(&opts.toLockfile, "to-lockfile", false, "upgrade to the versions recorded in Cargo.lock")
	f.BoolVar(&opts.verifyPinned, "verify-pinned", false, "check pinned versions against the registry")
	f.BoolVar(&opts.noCache, "no-cache", false, "disable the registry response cache")
	f.BoolVar(&opts.refresh, "refresh", false, "refetch registry data, updating the cache")
	_ = f.MarkHidden("all")
	_ = f.MarkHidden("vers")

	return cmd
}

// runUpgrade executes one upgrade run and prints its summary.
func (c *CLI) runUpgrade(ctx context.Context, args []string, opts upgradeOptions) error {
	logger := loggerFromContext(ctx)

	p, err := opts.policy(args)
	if err != nil {
		return err
	}
	cfg, err := c.loadConfig(ctx)
	if err != nil {
		return err
	}

	registry, backend := c.newRegistry(ctx, cfg, opts.noCache)
	defer backend.Close()
	registry.Refresh = opts.refresh

	runner := upgrade.NewRunner(registry, &reporter{w: c.err, logger: logger}, logger)
	prog := newProgress(logger)

	summary, err := runner.Run(ctx, opts.manifestPath, p)
	if err != nil {
		return err
	}

	logger.Debug("registry lookups", "fetches", summary.Fetches)
	msg := fmt.Sprintf("Upgraded %d dependencies in %d manifests", summary.Updated, len(summary.Manifests))
	if summary.DryRun {
		msg += " (dry run)"
	}
	prog.done(msg)
	return nil
}

// reporter renders run records as transition lines and warnings as log
// entries.
type reporter struct {
	w      io.Writer
	logger *log.Logger
}

// Record implements upgrade.Reporter.
func (r *reporter) Record(rec upgrade.Record) {
	if rec.Updated() {
		printTransition(r.w, rec.Key, rec.Old, rec.New)
		return
	}
	switch rec.Reason {
	case upgrade.ReasonPath, upgrade.ReasonGit, upgrade.ReasonInherited, upgrade.ReasonNoVersion:
		r.logger.Debug("skipped dependency", "name", rec.Key, "reason", rec.Reason)
	default:
		printUnchanged(r.w, rec.Key, rec.Old, rec.Reason)
	}
}

// Warn implements upgrade.Reporter.
func (r *reporter) Warn(w upgrade.Warning) {
	r.logger.Warn(w.Message)
}
