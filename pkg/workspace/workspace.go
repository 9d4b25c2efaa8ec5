// Package workspace discovers the manifests that make up a Cargo workspace.
//
// The root is located by walking up from a manifest until a Cargo.toml with a
// [workspace] section is found. Members are expanded from the root's
// `members` globs, minus the `exclude` globs, using doublestar patterns
// relative to the root directory.
package workspace

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/matzehuels/cargo-upgrade/pkg/errors"
	"github.com/matzehuels/cargo-upgrade/pkg/manifest"
)

// ManifestName is the file name of a package manifest.
const ManifestName = "Cargo.toml"

// Workspace is a root manifest and its members.
type Workspace struct {
	// Dir is the directory containing the root manifest.
	Dir string
	// Root is the parsed root manifest.
	Root *manifest.Document
	// Members lists member manifest paths in sorted order. A root that also
	// declares a [package] is included.
	Members []string
}

// Manifests returns every manifest path an upgrade run should visit: the
// root first (virtual or not), then each member.
func (w *Workspace) Manifests() []string {
	rootPath := filepath.Join(w.Dir, ManifestName)
	out := []string{rootPath}
	for _, m := range w.Members {
		if m != rootPath {
			out = append(out, m)
		}
	}
	return out
}

// FindRoot returns the path of the workspace root manifest enclosing
// manifestPath. A manifest that is not part of any workspace is its own root.
func FindRoot(manifestPath string) (string, error) {
	abs, err := filepath.Abs(manifestPath)
	if err != nil {
		return "", err
	}
	doc, err := manifest.Load(abs)
	if err != nil {
		return "", err
	}
	if doc.IsWorkspaceRoot() {
		return abs, nil
	}

	dir := filepath.Dir(abs)
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent

		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		doc, err := manifest.Load(candidate)
		if err != nil {
			return "", err
		}
		if doc.IsWorkspaceRoot() && contains(dir, doc, abs) {
			return candidate, nil
		}
	}
}

// contains reports whether the workspace rooted at dir lists member.
func contains(dir string, root *manifest.Document, member string) bool {
	rel, err := filepath.Rel(dir, filepath.Dir(member))
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return matchAny(root.WorkspaceMembers(), rel) && !matchAny(root.WorkspaceExclude(), rel)
}

// Discover loads the workspace enclosing manifestPath.
func Discover(manifestPath string) (*Workspace, error) {
	rootPath, err := FindRoot(manifestPath)
	if err != nil {
		return nil, err
	}
	root, err := manifest.Load(rootPath)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{Dir: filepath.Dir(rootPath), Root: root}
	if root.HasPackage() {
		ws.Members = append(ws.Members, rootPath)
	}
	members, err := expand(ws.Dir, root.WorkspaceMembers(), root.WorkspaceExclude())
	if err != nil {
		return nil, err
	}
	ws.Members = append(ws.Members, members...)
	return ws, nil
}

// expand resolves member globs relative to dir.
func expand(dir string, include, exclude []string) ([]string, error) {
	fsys := os.DirFS(dir)
	seen := make(map[string]bool)
	var out []string

	for _, pattern := range include {
		pattern = normalize(pattern)
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "invalid workspace member pattern %q", pattern)
		}
		if len(matches) == 0 && !hasMeta(pattern) {
			return nil, errors.New(errors.ErrCodeNotFound, "workspace member %q does not exist", pattern)
		}
		for _, rel := range matches {
			if seen[rel] || matchAny(exclude, rel) {
				continue
			}
			info, err := fs.Stat(fsys, rel)
			if err != nil || !info.IsDir() {
				continue
			}
			if _, err := fs.Stat(fsys, path.Join(rel, ManifestName)); err != nil {
				return nil, errors.Wrap(errors.ErrCodeNotFound, err,
					"failed to load manifest for workspace member %q", rel)
			}
			seen[rel] = true
			out = append(out, filepath.Join(dir, filepath.FromSlash(rel), ManifestName))
		}
	}
	sort.Strings(out)
	return out, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(normalize(p), rel); err == nil && ok {
			return true
		}
	}
	return false
}

func normalize(pattern string) string {
	pattern = filepath.ToSlash(pattern)
	pattern = strings.TrimPrefix(pattern, "./")
	return strings.TrimSuffix(pattern, "/")
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
