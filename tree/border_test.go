package tree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brettbedarf/tagfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLibrary is an in-memory Library for tree tests. Find ignores the tag
// set and returns a fixed path list.
type stubLibrary struct {
	root  string
	found []string
}

func (l *stubLibrary) Find(tags []string) []string {
	return append([]string(nil), l.found...)
}

func (l *stubLibrary) Root() string {
	return l.root
}

func (l *stubLibrary) PrivateDir() string {
	return filepath.Join(l.root, tagfs.MetaDirName)
}

func TestTagNode_ComputedChildren(t *testing.T) {
	lib := &stubLibrary{found: []string{"/lib/store/song.mp3", "/lib/store/other.mp3"}}
	n := NewTagNode(lib, []string{"rock"})

	v, err := n.Lookup("song.mp3")
	require.NoError(t, err)
	assert.Equal(t, RealPath("/lib/store/song.mp3"), v)

	assert.ElementsMatch(t, []string{"song.mp3", "other.mp3"}, n.Enumerate())
}

// Computed children reflect the current index state: they are recomputed on
// every call, never cached.
func TestTagNode_ComputedChildren_Recomputed(t *testing.T) {
	lib := &stubLibrary{found: []string{"/lib/store/a.txt"}}
	n := NewTagNode(lib, []string{"docs"})

	_, err := n.Lookup("a.txt")
	require.NoError(t, err)

	lib.found = []string{"/lib/store/b.txt"}

	_, err = n.Lookup("a.txt")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = n.Lookup("b.txt")
	assert.NoError(t, err)
}

// Policy decision: an explicit child shadows a computed child of the same
// name. An accepted Assign must always be readable back.
func TestTagNode_ExplicitShadowsComputed(t *testing.T) {
	lib := &stubLibrary{found: []string{"/lib/store/song.mp3"}}
	n := NewTagNode(lib, []string{"rock"})

	sub := NewDir()
	require.NoError(t, n.Assign("song.mp3", sub))

	v, err := n.Lookup("song.mp3")
	require.NoError(t, err)
	assert.Equal(t, Node(sub), v, "explicit entry must win over the computed one")
}

func TestTagNode_Delete_ComputedEntryNotFound(t *testing.T) {
	lib := &stubLibrary{found: []string{"/lib/store/song.mp3"}}
	n := NewTagNode(lib, []string{"rock"})

	err := n.Delete("song.mp3")
	assert.ErrorIs(t, err, ErrNotFound, "computed entries are read-only projections")
}

// Computed entries never affect the link count; explicit ones do.
func TestTagNode_LinkCountIgnoresComputed(t *testing.T) {
	lib := &stubLibrary{found: []string{"/lib/store/a", "/lib/store/b", "/lib/store/c"}}
	n := NewTagNode(lib, []string{"x"})

	assert.Equal(t, uint32(2), n.Attr().Nlink)

	require.NoError(t, n.Assign("sub", NewDir()))
	assert.Equal(t, uint32(3), n.Attr().Nlink)
}

func TestRootNode_SeedsMetaAlias(t *testing.T) {
	lib := &stubLibrary{root: t.TempDir()}
	n := NewRootNode(lib)

	v, err := n.Lookup(tagfs.MetaDirAlias)
	require.NoError(t, err)
	assert.Equal(t, RealPath(lib.PrivateDir()), v)
	assert.Equal(t, uint32(3), n.Attr().Nlink, "alias is an explicit child")
}

func TestRootNode_ListsLibraryRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "song.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "rock"), 0o755))

	lib := &stubLibrary{root: root}
	n := NewRootNode(lib)

	v, err := n.Lookup("song.mp3")
	require.NoError(t, err)
	assert.Equal(t, RealPath(filepath.Join(root, "song.mp3")), v)

	names := n.Enumerate()
	assert.Contains(t, names, tagfs.MetaDirAlias)
	assert.Contains(t, names, "song.mp3")
	assert.Contains(t, names, "rock")

	_, err = n.Lookup("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRootNode_UnreadableRoot_EmptyComputed(t *testing.T) {
	lib := &stubLibrary{root: filepath.Join(t.TempDir(), "does-not-exist")}
	n := NewRootNode(lib)

	_, err := n.Lookup("anything")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{tagfs.MetaDirAlias}, n.Enumerate())
}

// FSToTag copies explicit children into a fresh TagNode regardless of the
// source node's type.
func TestFSToTag(t *testing.T) {
	lib := &stubLibrary{found: []string{"/lib/store/song.mp3"}}

	d := NewDir()
	sub := NewDir()
	require.NoError(t, d.Assign("sub", sub))
	require.NoError(t, d.Assign("file", RealPath("/real/file")))

	n := FSToTag(d, lib, []string{"rock", "live"})

	assert.Equal(t, []string{"rock", "live"}, n.Tags())
	v, err := n.Lookup("sub")
	require.NoError(t, err)
	assert.Equal(t, Node(sub), v)
	v, err = n.Lookup("file")
	require.NoError(t, err)
	assert.Equal(t, RealPath("/real/file"), v)
	assert.Equal(t, uint32(4), n.Attr().Nlink)

	// Source keeps its own children (shallow copy of the map, not a share).
	require.NoError(t, n.Delete("file"))
	_, err = d.Lookup("file")
	assert.NoError(t, err)

	// A border node converts the same way: only explicit children carry over.
	n2 := FSToTag(n, lib, []string{"rock"})
	_, err = n2.Lookup("sub")
	assert.NoError(t, err)
}
