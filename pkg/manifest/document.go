package manifest

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pelletier/go-toml/v2/unstable"

	"github.com/matzehuels/cargo-upgrade/pkg/errors"
)

// Document is a parsed Cargo.toml that can be edited without disturbing
// formatting. The zero value is not usable; construct with [Parse] or [Load].
type Document struct {
	path   string
	src    []byte
	leaves []leaf
	nodes  []node
	tables []*Table
	edits  map[uint32]edit

	pkg       *packageSection
	workspace *workspaceSection
}

// node is a table declaration (leaf < 0) or a reference into leaves, in
// document order.
type node struct {
	path []string
	leaf int
}

// leaf is a key/value pair whose value is not an inline table.
type leaf struct {
	path []string
	kind unstable.Kind
	data string
	raw  unstable.Range
}

type edit struct {
	offset uint32
	length uint32
	text   string
}

type packageSection struct {
	Name    string `toml:"name"`
	Version any    `toml:"version"`
}

type workspaceSection struct {
	Members []string `toml:"members"`
	Exclude []string `toml:"exclude"`
}

type rawManifest struct {
	Package   *packageSection   `toml:"package"`
	Workspace *workspaceSection `toml:"workspace"`
}

// Load reads and parses the manifest at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "Unable to read %s", path)
	}
	return Parse(path, data)
}

// Parse parses manifest text. path is only used for diagnostics.
//
// Syntax errors are returned as a chain ending in *[ParseError]. A dependency
// whose value is neither a string nor a table fails with
// INVALID_DEPENDENCY_FORMAT.
func Parse(path string, data []byte) (*Document, error) {
	var raw rawManifest
	if _, err := toml.Decode(string(data), &raw); err != nil {
		if pe := fromBurntSushi(path, data, err); pe != nil {
			return nil, wrapParseError(pe)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "Unable to parse Cargo.toml")
	}

	doc := &Document{
		path:      path,
		src:       data,
		edits:     make(map[uint32]edit),
		pkg:       raw.Package,
		workspace: raw.Workspace,
	}

	var p unstable.Parser
	p.Reset(data)
	if err := doc.scan(&p); err != nil {
		return nil, wrapParseError(fromGoTOML(path, data, &p, err))
	}
	if err := doc.index(); err != nil {
		return nil, err
	}
	return doc, nil
}

// scan records every leaf and every declared table in document order.
func (d *Document) scan(p *unstable.Parser) error {
	var current []string
	arrays := make(map[string]int)
	for p.NextExpression() {
		expr := p.Expression()
		switch expr.Kind {
		case unstable.Table:
			current = keyPath(nil, expr.Key())
			d.nodes = append(d.nodes, node{path: current, leaf: -1})
		case unstable.ArrayTable:
			base := keyPath(nil, expr.Key())
			id := strings.Join(base, "\x00")
			current = append(base, "["+strconv.Itoa(arrays[id])+"]")
			arrays[id]++
			d.nodes = append(d.nodes, node{path: current, leaf: -1})
		case unstable.KeyValue:
			d.keyValue(current, expr)
		}
	}
	return p.Error()
}

func (d *Document) keyValue(prefix []string, kv *unstable.Node) {
	path := keyPath(prefix, kv.Key())
	v := kv.Value()
	if v.Kind == unstable.InlineTable {
		d.nodes = append(d.nodes, node{path: path, leaf: -1})
		it := v.Children()
		for it.Next() {
			d.keyValue(path, it.Node())
		}
		return
	}
	d.nodes = append(d.nodes, node{path: path, leaf: len(d.leaves)})
	d.leaves = append(d.leaves, leaf{
		path: path,
		kind: v.Kind,
		data: string(v.Data),
		raw:  v.Raw,
	})
}

func keyPath(prefix []string, it unstable.Iterator) []string {
	path := make([]string, len(prefix), len(prefix)+2)
	copy(path, prefix)
	for it.Next() {
		path = append(path, string(it.Node().Data))
	}
	return path
}

// Path returns the path the document was parsed from.
func (d *Document) Path() string { return d.path }

// PackageName returns the [package] name, or "" for a virtual manifest.
func (d *Document) PackageName() string {
	if d.pkg == nil {
		return ""
	}
	return d.pkg.Name
}

// HasPackage reports whether the manifest declares a [package] section.
func (d *Document) HasPackage() bool { return d.pkg != nil }

// IsWorkspaceRoot reports whether the manifest declares a [workspace] section.
func (d *Document) IsWorkspaceRoot() bool { return d.workspace != nil }

// IsVirtual reports whether the manifest is a workspace root without a package.
func (d *Document) IsVirtual() bool { return d.workspace != nil && d.pkg == nil }

// WorkspaceMembers returns the member globs of the [workspace] section.
func (d *Document) WorkspaceMembers() []string {
	if d.workspace == nil {
		return nil
	}
	return d.workspace.Members
}

// WorkspaceExclude returns the exclude globs of the [workspace] section.
func (d *Document) WorkspaceExclude() []string {
	if d.workspace == nil {
		return nil
	}
	return d.workspace.Exclude
}

// SetVersion rewrites the version requirement of e to text.
//
// A Simple entry keeps its shape and becomes `key = "text"`; a Detailed
// entry only has the value of its version field replaced. The quoting style
// of the original token is preserved.
func (d *Document) SetVersion(e *Entry, text string) error {
	if e == nil || e.table == nil || e.table.doc != d {
		return errors.New(errors.ErrCodeInternal, "entry does not belong to %s", d.path)
	}
	if e.version < 0 {
		return errors.New(errors.ErrCodeInvalidInput,
			"dependency %q in [%s] has no version requirement", e.Key, e.table.Name())
	}
	lf := d.leaves[e.version]
	original := string(d.src[lf.raw.Offset : lf.raw.Offset+lf.raw.Length])
	d.edits[lf.raw.Offset] = edit{
		offset: lf.raw.Offset,
		length: lf.raw.Length,
		text:   requote(original, text),
	}
	e.requirement = text
	return nil
}

// Modified reports whether any edit has been applied.
func (d *Document) Modified() bool { return len(d.edits) > 0 }

// Bytes serializes the document. An unmodified document yields exactly the
// bytes it was parsed from.
func (d *Document) Bytes() []byte {
	if len(d.edits) == 0 {
		out := make([]byte, len(d.src))
		copy(out, d.src)
		return out
	}
	edits := make([]edit, 0, len(d.edits))
	for _, e := range d.edits {
		edits = append(edits, e)
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].offset < edits[j].offset })

	var b strings.Builder
	b.Grow(len(d.src))
	var pos uint32
	for _, e := range edits {
		b.Write(d.src[pos:e.offset])
		b.WriteString(e.text)
		pos = e.offset + e.length
	}
	b.Write(d.src[pos:])
	return []byte(b.String())
}

// String returns the serialized document.
func (d *Document) String() string { return string(d.Bytes()) }

// requote wraps text in the same delimiters as the original string token.
func requote(original, text string) string {
	for _, delim := range []string{`"""`, `'''`, `"`, `'`} {
		if !strings.HasPrefix(original, delim) {
			continue
		}
		literal := delim[0] == '\''
		if literal && !strings.Contains(text, delim) && !strings.ContainsAny(text, "\n\r") {
			return delim + text + delim
		}
		if !literal {
			return delim + escapeBasic(text) + delim
		}
		break
	}
	return `"` + escapeBasic(text) + `"`
}

func escapeBasic(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return r.Replace(s)
}
