// Package tree implements the virtual namespace tree backing a tagfs mount.
//
// The tree projects two populations into one hierarchy: explicit children,
// inserted by hand through the mapping protocol, and computed children,
// which border nodes derive on demand from the library's tag index. A child
// value is either another Node (descent continues) or a RealPath (resolution
// crosses into the real filesystem).
package tree

import (
	"os"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// umask applied to the permission bits of synthetic directories.
const umask = 0o007

// Value is an entry in a node's directory table: either another Node or a
// RealPath.
type Value interface {
	isValue()
}

// RealPath is an absolute path into the real filesystem. Path resolution
// stops when it reaches one.
type RealPath string

func (RealPath) isValue() {}

// Node is the mapping protocol shared by every virtual directory type.
// The concrete set is closed: Dir, TagNode and RootNode.
type Node interface {
	Value

	// Enumerate returns the names of all children, explicit first, then
	// computed. The two populations are disjoint by construction and are
	// not deduplicated here.
	Enumerate() []string

	// Lookup returns the value stored under name, consulting explicit
	// children before any computed set. Returns ErrNotFound if the name is
	// absent from both.
	Lookup(name string) (Value, error)

	// Assign writes name into the explicit mapping. Computed entries are
	// never touched.
	Assign(name string, v Value) error

	// Delete removes name from the explicit mapping. Returns ErrNotFound
	// if the name only exists as a computed entry.
	Delete(name string) error

	// Dump returns the JSON-compatible serialized form of the subtree.
	// Computed children are never part of it.
	Dump() []any

	// Attr returns the node's synthetic file attributes. The returned
	// struct is live; callers wanting a snapshot must copy it.
	Attr() *fuse.Attr

	// explicit exposes the explicit child mapping to package internals
	// (FSToTag, serialization). Keeping it unexported closes the variant
	// set to this package.
	explicit() map[string]Value
}

// newDirAttr returns the synthetic attributes of a fresh virtual directory:
// timestamps at creation time, process identity as owner, the directory bit
// plus group permissions minus the umask, a starting link count of 2 and a
// fixed size.
func newDirAttr() *fuse.Attr {
	now := time.Now()
	return &fuse.Attr{
		Mode:  uint32(syscall.S_IFDIR | 0o770&^umask),
		Nlink: 2,
		Size:  4096,
		Owner: fuse.Owner{
			Uid: uint32(os.Getuid()),
			Gid: uint32(os.Getgid()),
		},
		Atime:     uint64(now.Unix()),
		Mtime:     uint64(now.Unix()),
		Ctime:     uint64(now.Unix()),
		Atimensec: uint32(now.Nanosecond()),
		Mtimensec: uint32(now.Nanosecond()),
		Ctimensec: uint32(now.Nanosecond()),
		Blksize:   4096,
	}
}
