// Package manifest provides a format-preserving view over Cargo.toml files.
//
// # Overview
//
// A [Document] keeps the original bytes of a manifest and an index of the
// byte ranges of every key/value leaf. Dependency entries are located through
// that index and edited by splicing replacement text over a single string
// token; everything else (comments, whitespace, quoting style, key order,
// unrelated tables) is emitted verbatim by [Document.Bytes].
//
//	doc, err := manifest.Parse("Cargo.toml", data)
//	for _, t := range doc.DependencyTables(manifest.DefaultSelectors()...) {
//	    if e, ok := t.Find("docopt"); ok {
//	        _ = doc.SetVersion(e, "99999.0.0")
//	    }
//	}
//	os.WriteFile("Cargo.toml", doc.Bytes(), 0o644)
//
// # Dependency entries
//
// An [Entry] is either [Simple] (`docopt = "0.8"`) or [Detailed]
// (`docopt = { version = "0.8", optional = true }`, a `[dependencies.docopt]`
// sub-table, or dotted keys). Editing never changes the shape: a Simple entry
// receives a new bare string, a Detailed entry only has its `version` value
// rewritten.
//
// # Parsing
//
// Parsing is done twice: github.com/BurntSushi/toml validates the document,
// decodes the [package] and [workspace] sections and produces the grammar's
// own diagnostics; the parser from github.com/pelletier/go-toml/v2/unstable
// supplies the raw byte ranges used for editing.
package manifest
