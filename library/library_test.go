package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brettbedarf/tagfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLibrary initializes a library in a temp dir with a store directory
// holding the named files.
func newTestLibrary(t *testing.T, files ...string) *Library {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "store"), 0o755))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, "store", f), []byte(f), 0o644))
	}
	lib, err := Init(root)
	require.NoError(t, err)
	return lib
}

func storePath(lib *Library, name string) string {
	return filepath.Join(lib.Root(), "store", name)
}

func TestInitAndOpen(t *testing.T) {
	root := t.TempDir()

	_, err := Open(root)
	assert.Error(t, err, "opening an uninitialized root must fail")

	lib, err := Init(root)
	require.NoError(t, err)
	assert.Equal(t, root, lib.Root())
	assert.Equal(t, filepath.Join(root, tagfs.MetaDirName), lib.PrivateDir())

	fi, err := os.Stat(lib.PrivateDir())
	require.NoError(t, err)
	assert.True(t, fi.IsDir())

	// Init is idempotent.
	_, err = Init(root)
	assert.NoError(t, err)

	reopened, err := Open(root)
	require.NoError(t, err)
	assert.Equal(t, lib.Root(), reopened.Root())
}

func TestTagPath(t *testing.T) {
	lib := newTestLibrary(t)

	assert.Equal(t, filepath.Join(lib.Root(), "music", "rock"), lib.TagPath("/music/rock"))
	assert.Equal(t, filepath.Join(lib.Root(), "music"), lib.TagPath("music"))
}

func TestTagAndFind(t *testing.T) {
	lib := newTestLibrary(t, "song.mp3", "talk.mp3", "paper.pdf")

	require.NoError(t, lib.Tag(storePath(lib, "song.mp3"), "/music"))
	require.NoError(t, lib.Tag(storePath(lib, "talk.mp3"), "/music"))
	require.NoError(t, lib.Tag(storePath(lib, "song.mp3"), "/favorites"))

	music := lib.Find([]string{"/music"})
	require.Len(t, music, 2)

	both := lib.Find([]string{"/music", "/favorites"})
	require.Len(t, both, 1)
	assert.Equal(t, "song.mp3", filepath.Base(both[0]))

	assert.Empty(t, lib.Find([]string{"/music", "/missing"}))
	assert.Empty(t, lib.Find(nil))
}

func TestTag_Idempotent(t *testing.T) {
	lib := newTestLibrary(t, "song.mp3")
	path := storePath(lib, "song.mp3")

	require.NoError(t, lib.Tag(path, "/music"))
	require.NoError(t, lib.Tag(path, "/music"))

	assert.Len(t, lib.Find([]string{"/music"}), 1)
}

// Two distinct files with the same basename both land in the tag directory,
// the second under a counter-suffixed name.
func TestTag_NameConflict(t *testing.T) {
	lib := newTestLibrary(t, "song.mp3")
	require.NoError(t, os.Mkdir(filepath.Join(lib.Root(), "other"), 0o755))
	other := filepath.Join(lib.Root(), "other", "song.mp3")
	require.NoError(t, os.WriteFile(other, []byte("other"), 0o644))

	require.NoError(t, lib.Tag(storePath(lib, "song.mp3"), "/music"))
	require.NoError(t, lib.Tag(other, "/music"))

	found := lib.Find([]string{"/music"})
	require.Len(t, found, 2)
	names := []string{filepath.Base(found[0]), filepath.Base(found[1])}
	assert.ElementsMatch(t, []string{"song.mp3", "song.1.mp3"}, names)
}

func TestTag_Directory_Symlinked(t *testing.T) {
	lib := newTestLibrary(t)
	dir := filepath.Join(lib.Root(), "store")

	require.NoError(t, lib.Tag(dir, "/places"))

	entry := filepath.Join(lib.TagPath("/places"), "store")
	fi, err := os.Lstat(entry)
	require.NoError(t, err)
	assert.Equal(t, os.ModeSymlink, fi.Mode()&os.ModeSymlink)

	found := lib.Find([]string{"/places"})
	require.Len(t, found, 1)
}

func TestUntag(t *testing.T) {
	lib := newTestLibrary(t, "song.mp3")
	path := storePath(lib, "song.mp3")

	require.NoError(t, lib.Tag(path, "/music"))
	require.Len(t, lib.Find([]string{"/music"}), 1)

	require.NoError(t, lib.Untag(path, "/music"))
	assert.Empty(t, lib.Find([]string{"/music"}))

	// Untag of an untagged path and of a missing tag are no-ops.
	assert.NoError(t, lib.Untag(path, "/music"))
	assert.NoError(t, lib.Untag(path, "/never-existed"))
}

func TestListTags(t *testing.T) {
	lib := newTestLibrary(t, "song.mp3", "talk.mp3")
	path := storePath(lib, "song.mp3")

	require.NoError(t, lib.Tag(path, "/music"))
	require.NoError(t, lib.Tag(path, "/music/rock"))
	require.NoError(t, lib.Tag(storePath(lib, "talk.mp3"), "/spoken"))

	tags, err := lib.ListTags(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/store", "/music", "/music/rock"}, tags)
}
