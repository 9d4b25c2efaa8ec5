package upgrade

import (
	"github.com/matzehuels/cargo-upgrade/pkg/errors"
	"github.com/matzehuels/cargo-upgrade/pkg/resolve"
)

// Reasons for entries that never reach the resolver.
const (
	ReasonPath      = "path dependency"
	ReasonGit       = "git dependency"
	ReasonInherited = "inherited from workspace"
	ReasonNoVersion = "no version requirement"
)

// Record is the outcome for one dependency entry.
type Record struct {
	Manifest string
	Table    string
	Key      string
	Crate    string
	Old      string
	// New is empty when the entry was left unchanged.
	New    string
	Reason string
	Source resolve.Source
}

// Updated reports whether the entry was rewritten.
func (r Record) Updated() bool { return r.New != "" }

// Warning is a non-fatal condition raised during a run.
type Warning struct {
	Code    errors.Code
	Message string
}

// Reporter receives records and warnings as the run progresses.
type Reporter interface {
	Record(Record)
	Warn(Warning)
}

type nopReporter struct{}

func (nopReporter) Record(Record) {}
func (nopReporter) Warn(Warning)  {}

// Collector is a Reporter that keeps everything in memory.
type Collector struct {
	Records  []Record
	Warnings []Warning
}

// Record implements Reporter.
func (c *Collector) Record(r Record) { c.Records = append(c.Records, r) }

// Warn implements Reporter.
func (c *Collector) Warn(w Warning) { c.Warnings = append(c.Warnings, w) }

// Updates returns the records of rewritten entries.
func (c *Collector) Updates() []Record {
	var out []Record
	for _, r := range c.Records {
		if r.Updated() {
			out = append(out, r)
		}
	}
	return out
}

// Summary totals a run.
type Summary struct {
	// Manifests lists every manifest visited, in order.
	Manifests []string
	// Written lists manifests persisted to disk.
	Written   []string
	Updated   int
	Unchanged int
	Warnings  int
	// Fetches counts registry lookups made during the run.
	Fetches int
	DryRun  bool
}
