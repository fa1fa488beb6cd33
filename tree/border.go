package tree

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/brettbedarf/tagfs"
	"github.com/brettbedarf/tagfs/internal/util"
)

// TagNode is a border node whose computed children are the files currently
// carrying all of its tags. The computed set is derived from the library on
// every enumeration and lookup; it is never stored and never affects the
// link count.
type TagNode struct {
	*Dir
	lib  tagfs.Library
	tags []string
}

// NewTagNode creates a tag-query directory bound to lib and tags.
func NewTagNode(lib tagfs.Library, tags []string) *TagNode {
	return &TagNode{
		Dir:  NewDir(),
		lib:  lib,
		tags: tags,
	}
}

// Tags returns the tag set whose conjunction defines the computed children.
func (n *TagNode) Tags() []string {
	return n.tags
}

// Enumerate returns explicit child names followed by the computed names.
func (n *TagNode) Enumerate() []string {
	names := n.Dir.Enumerate()
	computed := n.computed()
	cnames := make([]string, 0, len(computed))
	for name := range computed {
		cnames = append(cnames, name)
	}
	sort.Strings(cnames)
	return append(names, cnames...)
}

// Lookup checks explicit children first; explicit names shadow computed
// ones. On an explicit miss the computed mapping is consulted.
func (n *TagNode) Lookup(name string) (Value, error) {
	if v, err := n.Dir.Lookup(name); err == nil {
		return v, nil
	}
	if p, ok := n.computed()[name]; ok {
		return RealPath(p), nil
	}
	logger := util.GetLogger("tree.TagNode")
	logger.Debug().Str("name", name).Strs("tags", n.tags).Msg("lookup miss")
	return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
}

// Dump serializes the node as ["tag", [tags], {name: child}].
func (n *TagNode) Dump() []any {
	tags := make([]any, len(n.tags))
	for i, t := range n.tags {
		tags[i] = t
	}
	return []any{tagTag, tags, n.dumpChildren()}
}

// computed queries the library and resolves basename collisions into an
// injective name-to-path mapping.
func (n *TagNode) computed() map[string]string {
	return uniqmap(n.lib.Find(n.tags))
}

// RootNode projects the library root into virtual space: its computed
// children are the direct listing of the root directory. It additionally
// carries one explicit entry exposing the library metadata directory under
// a reserved alias.
type RootNode struct {
	*Dir
	lib tagfs.Library
}

// NewRootNode creates the root projection for lib and seeds the metadata
// directory alias.
func NewRootNode(lib tagfs.Library) *RootNode {
	n := &RootNode{
		Dir: NewDir(),
		lib: lib,
	}
	n.Assign(tagfs.MetaDirAlias, RealPath(lib.PrivateDir())) //nolint:errcheck // fresh Dir, cannot fail
	return n
}

// Enumerate returns explicit child names followed by the library root's
// directory listing.
func (n *RootNode) Enumerate() []string {
	return append(n.Dir.Enumerate(), n.listing()...)
}

// Lookup checks explicit children first, then the library root listing.
func (n *RootNode) Lookup(name string) (Value, error) {
	if v, err := n.Dir.Lookup(name); err == nil {
		return v, nil
	}
	for _, entry := range n.listing() {
		if entry == name {
			return RealPath(filepath.Join(n.lib.Root(), name)), nil
		}
	}
	logger := util.GetLogger("tree.RootNode")
	logger.Debug().Str("name", name).Msg("lookup miss")
	return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
}

// Dump serializes the node as ["root", {name: child}].
func (n *RootNode) Dump() []any {
	return []any{rootTag, n.dumpChildren()}
}

// listing reads the library root directory. A failed read is logged and
// treated as an empty computed set.
func (n *RootNode) listing() []string {
	entries, err := os.ReadDir(n.lib.Root())
	if err != nil {
		logger := util.GetLogger("tree.RootNode")
		logger.Warn().Err(err).Str("root", n.lib.Root()).Msg("failed to list library root")
		return nil
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

// FSToTag converts any node into a TagNode bound to lib and tags, shallow
// copying the node's explicit children. Used when materializing an ad hoc
// virtual directory into a tag-backed one.
func FSToTag(n Node, lib tagfs.Library, tags []string) *TagNode {
	t := NewTagNode(lib, tags)
	for name, v := range n.explicit() {
		t.children[name] = v
	}
	t.attr.Nlink = 2 + uint32(len(t.children))
	return t
}

var (
	_ Node = (*TagNode)(nil)
	_ Node = (*RootNode)(nil)
)
