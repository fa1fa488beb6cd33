// Package library implements the tag index over a real directory tree.
//
// Files live once under the library root. A tag is a directory under the
// root; tagging a file hard-links it into the tag directory (directories
// are symlinked, since they cannot be hard-linked). Two directory entries
// carry the same tag when they resolve to the same inode.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/brettbedarf/tagfs"
	"github.com/brettbedarf/tagfs/internal/util"
)

// Library is the concrete tag index rooted at a real directory. It
// satisfies tagfs.Library.
type Library struct {
	root   string
	logger util.Logger
}

// Init creates the library metadata directory under root and returns the
// opened library. root must be an existing directory.
func Init(root string) (*Library, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.Mkdir(filepath.Join(abs, tagfs.MetaDirName), 0o770&^0o007); err != nil && !os.IsExist(err) {
		return nil, fmt.Errorf("failed to initialize library at %s: %w", abs, err)
	}
	return Open(abs)
}

// Open opens an initialized library rooted at root.
func Open(root string) (*Library, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(filepath.Join(abs, tagfs.MetaDirName))
	if err != nil {
		return nil, fmt.Errorf("%s is not an initialized library: %w", abs, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not an initialized library: %s is not a directory",
			abs, tagfs.MetaDirName)
	}
	return &Library{
		root:   abs,
		logger: util.GetLogger("library"),
	}, nil
}

// Root returns the absolute path of the library storage root.
func (l *Library) Root() string {
	return l.root
}

// PrivateDir returns the absolute path of the library metadata directory.
func (l *Library) PrivateDir() string {
	return filepath.Join(l.root, tagfs.MetaDirName)
}

// TagPath returns the real directory a tag names. Tags are written like
// absolute paths rooted at the library ("/music/rock").
func (l *Library) TagPath(tag string) string {
	return filepath.Join(l.root, strings.TrimPrefix(tag, "/"))
}

// Find returns the absolute paths of all entries carrying every tag in
// tags. The returned paths point into the first tag's directory. Unreadable
// tag directories yield an empty result.
func (l *Library) Find(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	first, err := listPaths(l.TagPath(tags[0]))
	if err != nil {
		l.logger.Warn().Err(err).Str("tag", tags[0]).Msg("failed to list tag directory")
		return nil
	}

	rest := make([]map[fileID]bool, 0, len(tags)-1)
	for _, tag := range tags[1:] {
		paths, err := listPaths(l.TagPath(tag))
		if err != nil {
			l.logger.Warn().Err(err).Str("tag", tag).Msg("failed to list tag directory")
			return nil
		}
		ids := make(map[fileID]bool, len(paths))
		for _, p := range paths {
			id, err := idOf(p)
			if err != nil {
				continue
			}
			ids[id] = true
		}
		rest = append(rest, ids)
	}

	var out []string
	for _, p := range first {
		id, err := idOf(p)
		if err != nil {
			continue
		}
		shared := true
		for _, ids := range rest {
			if !ids[id] {
				shared = false
				break
			}
		}
		if shared {
			out = append(out, p)
		}
	}
	return out
}

// Tag links path into the tag's directory. Files are hard-linked,
// directories symlinked. Tagging an already-tagged path is a no-op. The tag
// directory is created if missing.
func (l *Library) Tag(path, tag string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	id, err := idOf(abs)
	if err != nil {
		return fmt.Errorf("cannot tag %s: %w", path, err)
	}

	dir := l.TagPath(tag)
	if err := os.MkdirAll(dir, 0o770&^0o007); err != nil {
		return err
	}
	entries, err := listPaths(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if eid, err := idOf(e); err == nil && eid == id {
			return nil // already tagged
		}
	}

	fi, err := os.Stat(abs)
	if err != nil {
		return err
	}
	dest := filepath.Join(dir, availableName(dir, filepath.Base(abs)))
	l.logger.Debug().Str("path", abs).Str("tag", tag).Str("dest", dest).Msg("tagging")
	if fi.IsDir() {
		return os.Symlink(abs, dest)
	}
	return os.Link(abs, dest)
}

// Untag removes every entry of the tag's directory that refers to path.
// Untagging a path that does not carry the tag is a no-op.
func (l *Library) Untag(path, tag string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	id, err := idOf(abs)
	if err != nil {
		return fmt.Errorf("cannot untag %s: %w", path, err)
	}

	entries, err := listPaths(l.TagPath(tag))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		eid, err := idOf(e)
		if err != nil || eid != id {
			continue
		}
		l.logger.Debug().Str("entry", e).Str("tag", tag).Msg("untagging")
		if err := os.Remove(e); err != nil {
			return err
		}
	}
	return nil
}

// ListTags returns every tag whose directory holds an entry referring to
// path, sorted by walk order. The metadata directory is skipped.
func (l *Library) ListTags(path string) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	id, err := idOf(abs)
	if err != nil {
		return nil, err
	}

	var tags []string
	err = filepath.WalkDir(l.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p == filepath.Join(l.root, tagfs.MetaDirName) {
			return filepath.SkipDir
		}
		entries, err := listPaths(p)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if eid, err := idOf(e); err == nil && eid == id {
				rel, err := filepath.Rel(l.root, p)
				if err != nil {
					return err
				}
				if rel == "." {
					rel = ""
				}
				tags = append(tags, "/"+rel)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// fileID identifies an inode.
type fileID struct {
	dev uint64
	ino uint64
}

// idOf resolves path (following symlinks) to its inode identity.
func idOf(path string) (fileID, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return fileID{}, err
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return fileID{}, fmt.Errorf("no stat info for %s", path)
	}
	return fileID{dev: uint64(st.Dev), ino: st.Ino}, nil //nolint:unconvert // Dev width differs across platforms
}

// listPaths returns the full paths of all entries in dir.
func listPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = filepath.Join(dir, e.Name())
	}
	return paths, nil
}

// availableName returns name if it is free in dir, otherwise the first
// counter-suffixed variant ("name.1.ext", "name.2.ext", ...) that is.
func availableName(dir, name string) string {
	if _, err := os.Lstat(filepath.Join(dir, name)); os.IsNotExist(err) {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		var candidate string
		if ext != "" {
			candidate = fmt.Sprintf("%s.%d%s", stem, i, ext)
		} else {
			candidate = fmt.Sprintf("%s.%d", stem, i)
		}
		if _, err := os.Lstat(filepath.Join(dir, candidate)); os.IsNotExist(err) {
			return candidate
		}
	}
}

var _ tagfs.Library = (*Library)(nil)
