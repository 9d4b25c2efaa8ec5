package manifest

// Shape is the syntactic form of a dependency entry.
type Shape int

const (
	// Simple is `name = "requirement"`.
	Simple Shape = iota
	// Detailed is an inline table, a sub-table or dotted keys.
	Detailed
)

func (s Shape) String() string {
	if s == Detailed {
		return "detailed"
	}
	return "simple"
}

// Entry is a single dependency of a table.
type Entry struct {
	// Key is the name the entry is declared under.
	Key string

	Optional  bool
	Registry  string
	Package   string
	Path      string
	Git       string
	Workspace bool

	table       *Table
	shape       Shape
	version     int
	requirement string
}

// Shape returns the syntactic form of the entry.
func (e *Entry) Shape() Shape { return e.shape }

// Table returns the table the entry belongs to.
func (e *Entry) Table() *Table { return e.table }

// HasVersion reports whether the entry carries a version requirement.
func (e *Entry) HasVersion() bool { return e.version >= 0 }

// Requirement returns the current requirement text, "" when absent.
func (e *Entry) Requirement() string { return e.requirement }

// CrateName returns the registry crate the entry refers to.
func (e *Entry) CrateName() string {
	if e.Package != "" {
		return e.Package
	}
	return e.Key
}

// IsRenamed reports whether the entry key differs from the crate name.
func (e *Entry) IsRenamed() bool { return e.Package != "" && e.Package != e.Key }

// IsRegistry reports whether the entry is resolved against a registry,
// as opposed to a path, git or inherited workspace dependency.
func (e *Entry) IsRegistry() bool {
	return e.Path == "" && e.Git == "" && !e.Workspace
}
