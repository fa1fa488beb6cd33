// Package filesystem is the driver layer between the namespace tree and the
// FUSE wire protocol. It owns the node ID registry, serializes all access
// to the tree (the tree itself provides no locking) and passes file I/O
// through to the real filesystem behind border crossings.
package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/brettbedarf/tagfs"
	"github.com/brettbedarf/tagfs/config"
	"github.com/brettbedarf/tagfs/internal/util"
	"github.com/brettbedarf/tagfs/tree"
)

// target is what a FUSE node ID resolves to: a virtual tree node, or a
// location in the real filesystem behind a border crossing.
type target struct {
	node tree.Node // non-nil for virtual targets
	real string    // absolute real path; "" for virtual targets
}

func (t *target) virtual() bool {
	return t.node != nil
}

type FileSystem struct {
	cfg *config.Config
	lib tagfs.Library

	// mu serializes all access to the node tree and the nodeIDs map. The
	// kernel issues requests concurrently; the tree is single-threaded by
	// design.
	mu   sync.Mutex
	root tree.Node

	lastNodeID atomic.Uint64
	registry   *xsync.Map[uint64, *target] // node ID -> target
	pathIDs    *xsync.Map[string, uint64]  // real path -> node ID
	nodeIDs    map[tree.Node]uint64        // virtual node -> node ID; protected by mu

	lastFh  atomic.Uint64
	handles *xsync.Map[uint64, *os.File] // file handle -> open real file

	session uuid.UUID
}

// NewFS creates the driver over a fresh root projection of lib.
func NewFS(cfg *config.Config, lib tagfs.Library) *FileSystem {
	fs := &FileSystem{
		cfg:      cfg,
		lib:      lib,
		root:     tree.NewRootNode(lib),
		registry: xsync.NewMap[uint64, *target](),
		pathIDs:  xsync.NewMap[string, uint64](),
		nodeIDs:  make(map[tree.Node]uint64),
		handles:  xsync.NewMap[uint64, *os.File](),
		session:  uuid.New(),
	}
	fs.lastNodeID.Store(fuse.FUSE_ROOT_ID)
	fs.registry.Store(fuse.FUSE_ROOT_ID, &target{node: fs.root})
	fs.nodeIDs[fs.root] = fuse.FUSE_ROOT_ID

	logger := util.GetLogger("filesystem")
	logger.Info().Str("session", fs.session.String()).Str("root", lib.Root()).Msg("Filesystem initialized")
	return fs
}

// Root returns the tree root.
func (fs *FileSystem) Root() tree.Node {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.root
}

// Library returns the library collaborator.
func (fs *FileSystem) Library() tagfs.Library {
	return fs.lib
}

// TreePath returns the configured snapshot location inside the library
// metadata directory.
func (fs *FileSystem) TreePath() string {
	return filepath.Join(fs.lib.PrivateDir(), fs.cfg.TreeFile)
}

// Resolve walks the virtual path under the tree lock. See tree.Resolve.
func (fs *FileSystem) Resolve(path string) (tree.Node, []string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return tree.Resolve(fs.root, path)
}

// RealLocation resolves a virtual path to its final real filesystem
// location. ok is false when the path terminates at a virtual node and has
// no real location.
func (fs *FileSystem) RealLocation(path string) (loc string, ok bool, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, rest, err := tree.Resolve(fs.root, path)
	if err != nil {
		return "", false, err
	}
	if len(rest) == 0 {
		return "", false, nil
	}
	v, err := n.Lookup(rest[0])
	if err != nil {
		return "", false, err
	}
	rp, isReal := v.(tree.RealPath)
	if !isReal {
		return "", false, fmt.Errorf("segment %q did not cross the border", rest[0])
	}
	// The matched segment is already part of the real path; join only what
	// follows it.
	return filepath.Join(append([]string{string(rp)}, rest[1:]...)...), true, nil
}

// getTarget returns the registry entry for a node ID.
func (fs *FileSystem) getTarget(id uint64) (*target, bool) {
	return fs.registry.Load(id)
}

// ensureNodeID retrieves or allocates the node ID of a virtual node.
// Callers must hold fs.mu.
func (fs *FileSystem) ensureNodeID(n tree.Node) uint64 {
	if id, ok := fs.nodeIDs[n]; ok {
		return id
	}
	id := fs.lastNodeID.Add(1)
	fs.nodeIDs[n] = id
	fs.registry.Store(id, &target{node: n})
	return id
}

// ensurePathID retrieves or allocates the node ID of a real path.
func (fs *FileSystem) ensurePathID(path string) uint64 {
	if id, ok := fs.pathIDs.Load(path); ok {
		return id
	}
	id := fs.lastNodeID.Add(1)
	if prev, loaded := fs.pathIDs.LoadOrStore(path, id); loaded {
		return prev
	}
	fs.registry.Store(id, &target{real: path})
	return id
}

// forget drops the registry entry for a node ID.
func (fs *FileSystem) forget(id uint64) {
	if id == fuse.FUSE_ROOT_ID {
		return
	}
	tgt, ok := fs.registry.LoadAndDelete(id)
	if !ok {
		return
	}
	if tgt.virtual() {
		fs.mu.Lock()
		delete(fs.nodeIDs, tgt.node)
		fs.mu.Unlock()
	} else {
		fs.pathIDs.Delete(tgt.real)
	}
}

// lookupChild resolves name under the parent node ID, registering the
// result. Returns the child's node ID and attributes.
func (fs *FileSystem) lookupChild(parentID uint64, name string) (uint64, fuse.Attr, fuse.Status) {
	parent, ok := fs.getTarget(parentID)
	if !ok {
		return 0, fuse.Attr{}, fuse.ENOENT
	}

	if !parent.virtual() {
		full := filepath.Join(parent.real, name)
		attr, status := realAttr(full)
		if status != fuse.OK {
			return 0, fuse.Attr{}, status
		}
		id := fs.ensurePathID(full)
		attr.Ino = id
		return id, attr, fuse.OK
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	v, err := parent.node.Lookup(name)
	if err != nil {
		return 0, fuse.Attr{}, fuse.ENOENT
	}
	switch v := v.(type) {
	case tree.RealPath:
		attr, status := realAttr(string(v))
		if status != fuse.OK {
			return 0, fuse.Attr{}, status
		}
		id := fs.ensurePathID(string(v))
		attr.Ino = id
		return id, attr, fuse.OK
	case tree.Node:
		id := fs.ensureNodeID(v)
		attr := *v.Attr()
		attr.Ino = id
		return id, attr, fuse.OK
	default:
		return 0, fuse.Attr{}, fuse.EIO
	}
}

// attrOf returns the attributes of a registered target.
func (fs *FileSystem) attrOf(id uint64) (fuse.Attr, fuse.Status) {
	tgt, ok := fs.getTarget(id)
	if !ok {
		return fuse.Attr{}, fuse.ENOENT
	}
	if tgt.virtual() {
		fs.mu.Lock()
		attr := *tgt.node.Attr()
		fs.mu.Unlock()
		attr.Ino = id
		return attr, fuse.OK
	}
	attr, status := realAttr(tgt.real)
	if status != fuse.OK {
		return fuse.Attr{}, status
	}
	attr.Ino = id
	return attr, fuse.OK
}

// readDirEntries lists a directory target. Virtual listings enumerate the
// tree node; real listings read the directory behind the border.
func (fs *FileSystem) readDirEntries(id uint64) ([]fuse.DirEntry, fuse.Status) {
	tgt, ok := fs.getTarget(id)
	if !ok {
		return nil, fuse.ENOENT
	}

	if !tgt.virtual() {
		entries, err := os.ReadDir(tgt.real)
		if err != nil {
			return nil, fuse.ToStatus(err)
		}
		out := make([]fuse.DirEntry, 0, len(entries))
		for _, e := range entries {
			full := filepath.Join(tgt.real, e.Name())
			attr, status := realAttr(full)
			if status != fuse.OK {
				continue
			}
			out = append(out, fuse.DirEntry{
				Name: e.Name(),
				Mode: attr.Mode,
				Ino:  fs.ensurePathID(full),
			})
		}
		return out, fuse.OK
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	logger := util.GetLogger("filesystem")
	var out []fuse.DirEntry
	for _, name := range tgt.node.Enumerate() {
		v, err := tgt.node.Lookup(name)
		if err != nil {
			// Enumerated but not resolvable; only possible if the index
			// shifted between the two calls.
			logger.Debug().Str("name", name).Msg("entry vanished during listing")
			continue
		}
		switch v := v.(type) {
		case tree.RealPath:
			attr, status := realAttr(string(v))
			if status != fuse.OK {
				logger.Debug().Str("name", name).Str("real", string(v)).Msg("skipping dangling entry")
				continue
			}
			out = append(out, fuse.DirEntry{
				Name: name,
				Mode: attr.Mode,
				Ino:  fs.ensurePathID(string(v)),
			})
		case tree.Node:
			out = append(out, fuse.DirEntry{
				Name: name,
				Mode: v.Attr().Mode,
				Ino:  fs.ensureNodeID(v),
			})
		}
	}
	return out, fuse.OK
}

// open opens the real file behind a target and registers a file handle.
func (fs *FileSystem) open(id uint64, flags uint32) (uint64, fuse.Status) {
	tgt, ok := fs.getTarget(id)
	if !ok {
		return 0, fuse.ENOENT
	}
	if tgt.virtual() {
		return 0, fuse.EISDIR
	}
	f, err := os.OpenFile(tgt.real, int(flags), 0)
	if err != nil {
		return 0, fuse.ToStatus(err)
	}
	fh := fs.lastFh.Add(1)
	fs.handles.Store(fh, f)
	return fh, fuse.OK
}

// handle returns the open file behind a file handle.
func (fs *FileSystem) handle(fh uint64) (*os.File, fuse.Status) {
	f, ok := fs.handles.Load(fh)
	if !ok {
		return nil, fuse.EBADF
	}
	return f, fuse.OK
}

// release closes and drops a file handle.
func (fs *FileSystem) release(fh uint64) {
	if f, ok := fs.handles.LoadAndDelete(fh); ok {
		f.Close() //nolint:errcheck // read path; nothing useful to do
	}
}

// mkdir creates a directory under a target: a fresh virtual Dir under
// virtual parents, a real directory behind the border.
func (fs *FileSystem) mkdir(parentID uint64, name string, mode uint32) (uint64, fuse.Attr, fuse.Status) {
	parent, ok := fs.getTarget(parentID)
	if !ok {
		return 0, fuse.Attr{}, fuse.ENOENT
	}

	if !parent.virtual() {
		full := filepath.Join(parent.real, name)
		if err := os.Mkdir(full, os.FileMode(mode)); err != nil {
			return 0, fuse.Attr{}, fuse.ToStatus(err)
		}
		attr, status := realAttr(full)
		if status != fuse.OK {
			return 0, fuse.Attr{}, status
		}
		id := fs.ensurePathID(full)
		attr.Ino = id
		return id, attr, fuse.OK
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, err := parent.node.Lookup(name); err == nil {
		return 0, fuse.Attr{}, fuse.Status(syscall.EEXIST)
	}
	d := tree.NewDir()
	if err := parent.node.Assign(name, d); err != nil {
		return 0, fuse.Attr{}, fuse.EIO
	}
	id := fs.ensureNodeID(d)
	attr := *d.Attr()
	attr.Ino = id
	return id, attr, fuse.OK
}

// remove deletes name under a target. Computed entries of border nodes are
// read-only projections and cannot be removed through the mount.
func (fs *FileSystem) remove(parentID uint64, name string) fuse.Status {
	parent, ok := fs.getTarget(parentID)
	if !ok {
		return fuse.ENOENT
	}

	if !parent.virtual() {
		return fuse.ToStatus(os.Remove(filepath.Join(parent.real, name)))
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := parent.node.Delete(name); err != nil {
		if _, lerr := parent.node.Lookup(name); lerr == nil {
			return fuse.EPERM // computed entry
		}
		return fuse.ENOENT
	}
	return fuse.OK
}

// realAttr stats a real path into FUSE attributes without following
// symlinks.
func realAttr(path string) (fuse.Attr, fuse.Status) {
	var st syscall.Stat_t
	if err := syscall.Lstat(path, &st); err != nil {
		return fuse.Attr{}, fuse.ToStatus(err)
	}
	var attr fuse.Attr
	attr.FromStat(&st)
	return attr, fuse.OK
}
