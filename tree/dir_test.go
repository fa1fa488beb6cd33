package tree

import (
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDir_DefaultAttr(t *testing.T) {
	d := NewDir()
	attr := d.Attr()

	assert.Equal(t, uint32(syscall.S_IFDIR|0o770&^umask), attr.Mode)
	assert.Equal(t, uint32(2), attr.Nlink)
	assert.Equal(t, uint64(4096), attr.Size)
	assert.Equal(t, uint32(os.Getuid()), attr.Owner.Uid)
	assert.Equal(t, uint32(os.Getgid()), attr.Owner.Gid)
	assert.Equal(t, attr.Ctime, attr.Mtime, "modification time defaults to creation time")
	assert.Equal(t, attr.Ctime, attr.Atime, "access time defaults to creation time")
}

func TestDir_AssignLookupDelete(t *testing.T) {
	d := NewDir()
	child := NewDir()

	require.NoError(t, d.Assign("sub", child))
	require.NoError(t, d.Assign("file", RealPath("/real/file")))

	v, err := d.Lookup("sub")
	require.NoError(t, err)
	assert.Equal(t, Node(child), v)

	v, err = d.Lookup("file")
	require.NoError(t, err)
	assert.Equal(t, RealPath("/real/file"), v)

	_, err = d.Lookup("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, d.Delete("file"))
	_, err = d.Lookup("file")
	assert.ErrorIs(t, err, ErrNotFound)

	err = d.Delete("file")
	assert.ErrorIs(t, err, ErrNotFound, "double delete must report not found")
}

func TestDir_Enumerate_Sorted(t *testing.T) {
	d := NewDir()
	require.NoError(t, d.Assign("zebra", RealPath("/z")))
	require.NoError(t, d.Assign("apple", RealPath("/a")))
	require.NoError(t, d.Assign("mango", NewDir()))

	assert.Equal(t, []string{"apple", "mango", "zebra"}, d.Enumerate())
}

// Link count must equal 2 + number of explicit children after any sequence
// of inserts and deletes.
func TestDir_LinkCountInvariant(t *testing.T) {
	d := NewDir()

	check := func() {
		t.Helper()
		assert.Equal(t, 2+uint32(len(d.children)), d.Attr().Nlink)
	}

	check()
	require.NoError(t, d.Assign("a", RealPath("/a")))
	check()
	require.NoError(t, d.Assign("b", NewDir()))
	check()

	// Replacing an existing name is not an insert.
	require.NoError(t, d.Assign("a", RealPath("/a2")))
	check()
	assert.Equal(t, uint32(4), d.Attr().Nlink)

	require.NoError(t, d.Delete("a"))
	check()
	require.NoError(t, d.Delete("b"))
	check()
	assert.Equal(t, uint32(2), d.Attr().Nlink)
}
