// Package upgrade rewrites dependency requirements across Cargo manifests.
//
// # Pipeline
//
// A [Runner] visits either a single manifest or every manifest of a
// workspace and, for each one, runs Parse → Resolve → Mutate → Serialize:
//
//	runner := upgrade.NewRunner(registry, reporter, logger)
//	summary, err := runner.Run(ctx, "Cargo.toml", upgrade.Policy{Workspace: true})
//
// Every considered dependency produces a [Record] on the [Reporter]. Named
// dependencies that appear in no visited manifest produce a [Warning].
//
// # Failure semantics
//
// The first fatal error (parse failure, invalid dependency format, registry
// failure, missing pin or lock entry) aborts the run. Manifests written
// before the failure stay written; there is no cross-manifest rollback.
//
// # Registry lookups
//
// Available versions are memoized per (crate, registry) in a [VersionCache]
// owned by the Runner, so a crate shared by many workspace members is
// fetched once per run.
package upgrade
