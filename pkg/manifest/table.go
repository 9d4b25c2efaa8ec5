package manifest

import (
	"strings"

	"github.com/pelletier/go-toml/v2/unstable"
)

// Kind identifies a family of dependency tables.
type Kind int

const (
	Normal Kind = iota
	Development
	Build
	WorkspaceShared
)

// String returns the canonical table name for the kind.
func (k Kind) String() string {
	switch k {
	case Development:
		return "dev-dependencies"
	case Build:
		return "build-dependencies"
	case WorkspaceShared:
		return "workspace.dependencies"
	default:
		return "dependencies"
	}
}

// AnyTarget selects a table family under every [target.<triple>] section.
const AnyTarget = "*"

// Selector picks dependency tables by kind and platform target.
// An empty Target selects the untargeted table; AnyTarget selects every
// target-specific table. Target is ignored for WorkspaceShared.
type Selector struct {
	Kind   Kind
	Target string
}

func (s Selector) matches(t *Table) bool {
	if s.Kind != t.Kind {
		return false
	}
	if s.Kind == WorkspaceShared {
		return true
	}
	if s.Target == AnyTarget {
		return t.Target != ""
	}
	return s.Target == t.Target
}

// DefaultSelectors returns the selectors an upgrade run walks: normal, dev
// and build tables, untargeted and per target, plus [workspace.dependencies].
func DefaultSelectors() []Selector {
	var out []Selector
	for _, k := range []Kind{Normal, Development, Build} {
		out = append(out, Selector{Kind: k}, Selector{Kind: k, Target: AnyTarget})
	}
	return append(out, Selector{Kind: WorkspaceShared})
}

// tableKinds maps table names, including Cargo's underscore spellings.
var tableKinds = map[string]Kind{
	"dependencies":       Normal,
	"dev-dependencies":   Development,
	"dev_dependencies":   Development,
	"build-dependencies": Build,
	"build_dependencies": Build,
}

// Table is one dependency table of a document.
type Table struct {
	Kind   Kind
	Target string

	doc     *Document
	path    []string
	entries []*Entry
	byKey   map[string]*Entry
}

// Name returns the dotted header of the table, e.g. "target.x86_64-pc-windows-gnu.dependencies".
func (t *Table) Name() string {
	parts := make([]string, len(t.path))
	for i, p := range t.path {
		parts[i] = quoteKey(p)
	}
	return strings.Join(parts, ".")
}

// Entries returns the entries of the table in document order.
func (t *Table) Entries() []*Entry { return t.entries }

// Find returns the entry stored under key.
func (t *Table) Find(key string) (*Entry, bool) {
	e, ok := t.byKey[key]
	return e, ok
}

// ResolveCrate returns the entry that refers to the named crate, whether it
// is stored under that key or renamed through `package = "<crate>"`.
func (t *Table) ResolveCrate(crate string) (*Entry, bool) {
	for _, e := range t.entries {
		if e.CrateName() == crate {
			return e, true
		}
	}
	return nil, false
}

// DependencyTables returns the tables matched by any of the selectors in
// document order. Tables absent from the manifest are simply not returned.
func (d *Document) DependencyTables(selectors ...Selector) []*Table {
	var out []*Table
	for _, t := range d.tables {
		for _, s := range selectors {
			if s.matches(t) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// classify returns the dependency table a path belongs to, if any, and the
// length of the table prefix.
func classify(path []string) (kind Kind, target string, n int, ok bool) {
	switch {
	case len(path) >= 1 && isKind(path[0]):
		return tableKinds[path[0]], "", 1, true
	case len(path) >= 3 && path[0] == "target" && isKind(path[2]):
		return tableKinds[path[2]], path[1], 3, true
	case len(path) >= 2 && path[0] == "workspace" && path[1] == "dependencies":
		return WorkspaceShared, "", 2, true
	}
	return 0, "", 0, false
}

func isKind(name string) bool {
	_, ok := tableKinds[name]
	return ok
}

// index groups nodes into tables and entries.
func (d *Document) index() error {
	byPath := make(map[string]*Table)
	for _, n := range d.nodes {
		kind, target, size, ok := classify(n.path)
		if !ok {
			continue
		}
		id := strings.Join(n.path[:size], "\x00")
		t, seen := byPath[id]
		if !seen {
			t = &Table{
				Kind:   kind,
				Target: target,
				doc:    d,
				path:   n.path[:size:size],
				byKey:  make(map[string]*Entry),
			}
			byPath[id] = t
			d.tables = append(d.tables, t)
		}
		if len(n.path) == size {
			continue
		}

		key := n.path[size]
		e, seen := t.byKey[key]
		if !seen {
			e = &Entry{Key: key, table: t, version: -1}
			t.byKey[key] = e
			t.entries = append(t.entries, e)
		}
		if err := e.absorb(n, n.path[size+1:]); err != nil {
			return err
		}
	}
	return nil
}

// absorb folds a node below the entry key into the entry.
func (e *Entry) absorb(n node, rest []string) error {
	d := e.table.doc
	if len(rest) == 0 {
		if n.leaf < 0 {
			e.shape = Detailed
			return nil
		}
		lf := d.leaves[n.leaf]
		if lf.kind != unstable.String {
			return invalidFormat(e.Key, e.table.Name(), "expected a version string or a table, found "+kindName(lf.kind))
		}
		e.shape = Simple
		e.version = n.leaf
		e.requirement = lf.data
		return nil
	}

	e.shape = Detailed
	if n.leaf < 0 || len(rest) != 1 {
		return nil
	}
	lf := d.leaves[n.leaf]
	field := rest[0]
	switch field {
	case "version":
		if lf.kind != unstable.String {
			return invalidFormat(e.Key, e.table.Name(), "`version` must be a string")
		}
		e.version = n.leaf
		e.requirement = lf.data
	case "optional":
		e.Optional = lf.kind == unstable.Bool && lf.data == "true"
	case "workspace":
		e.Workspace = lf.kind == unstable.Bool && lf.data == "true"
	case "registry", "package", "path", "git":
		if lf.kind != unstable.String {
			return invalidFormat(e.Key, e.table.Name(), "`"+field+"` must be a string")
		}
		switch field {
		case "registry":
			e.Registry = lf.data
		case "package":
			e.Package = lf.data
		case "path":
			e.Path = lf.data
		case "git":
			e.Git = lf.data
		}
	}
	return nil
}

func kindName(k unstable.Kind) string {
	switch k {
	case unstable.Array:
		return "an array"
	case unstable.Bool:
		return "a boolean"
	case unstable.Integer:
		return "an integer"
	case unstable.Float:
		return "a float"
	case unstable.DateTime, unstable.LocalDate, unstable.LocalDateTime, unstable.LocalTime:
		return "a datetime"
	default:
		return "an unsupported value"
	}
}

func quoteKey(k string) string {
	if k == "" {
		return `""`
	}
	for _, r := range k {
		bare := r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !bare {
			return "'" + k + "'"
		}
	}
	return k
}
