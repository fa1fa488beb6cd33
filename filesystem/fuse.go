package filesystem

import (
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/brettbedarf/tagfs/internal/util"
)

// FuseRaw implements the low-level FUSE wire protocol over the driver.
// It serves as protocol adapter between FUSE and the namespace tree.
// See https://www.man7.org/linux/man-pages/man4/fuse.4.html
type FuseRaw struct {
	fuse.RawFileSystem
	fs     *FileSystem
	server *fuse.Server
}

// NewFuseRaw wraps the driver in the wire protocol adapter. Unimplemented
// operations fall through to go-fuse's ENOSYS defaults.
func NewFuseRaw(fs *FileSystem) *FuseRaw {
	return &FuseRaw{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		fs:            fs,
	}
}

func (r *FuseRaw) Init(s *fuse.Server) {
	logger := util.GetLogger("Fuse.Init")
	logger.Debug().Msg("FUSE initialized")
	r.server = s
}

func (r *FuseRaw) OnUnmount() {
	logger := util.GetLogger("Fuse.OnUnmount")
	logger.Info().Msg("FUSE unmounted")
}

func (r *FuseRaw) String() string {
	return "tagfs"
}

// Access allows everything; permission bits are enforced by the kernel via
// the default_permissions mount behavior on real files.
func (r *FuseRaw) Access(cancel <-chan struct{}, input *fuse.AccessIn) fuse.Status {
	return fuse.OK
}

func (r *FuseRaw) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	logger := util.GetLogger("Fuse.Lookup")
	logger.Trace().Uint64("parent", header.NodeId).Str("name", name).Msg("Lookup called")

	id, attr, status := r.fs.lookupChild(header.NodeId, name)
	if status != fuse.OK {
		return status
	}
	out.NodeId = id
	out.Attr = attr
	r.setTimeouts(out)
	return fuse.OK
}

func (r *FuseRaw) Forget(nodeid, nlookup uint64) {
	r.fs.forget(nodeid)
}

func (r *FuseRaw) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	attr, status := r.fs.attrOf(input.NodeId)
	if status != fuse.OK {
		return status
	}
	out.Attr = attr
	out.SetTimeout(r.attrTimeout())
	return fuse.OK
}

func (r *FuseRaw) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	if _, ok := r.fs.getTarget(input.NodeId); !ok {
		return fuse.ENOENT
	}
	return fuse.OK
}

func (r *FuseRaw) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	logger := util.GetLogger("Fuse.ReadDir")
	logger.Trace().Uint64("node", input.NodeId).Uint64("offset", input.Offset).Msg("ReadDir called")

	entries, status := r.fs.readDirEntries(input.NodeId)
	if status != fuse.OK {
		return status
	}
	for i := int(input.Offset); i < len(entries); i++ {
		e := entries[i]
		e.Off = uint64(i + 1)
		if !out.AddDirEntry(e) {
			break
		}
	}
	return fuse.OK
}

func (r *FuseRaw) ReadDirPlus(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	entries, status := r.fs.readDirEntries(input.NodeId)
	if status != fuse.OK {
		return status
	}
	for i := int(input.Offset); i < len(entries); i++ {
		e := entries[i]
		e.Off = uint64(i + 1)
		entryOut := out.AddDirLookupEntry(e)
		if entryOut == nil {
			break
		}
		if attr, st := r.fs.attrOf(e.Ino); st == fuse.OK {
			entryOut.NodeId = e.Ino
			entryOut.Attr = attr
			r.setTimeouts(entryOut)
		}
	}
	return fuse.OK
}

func (r *FuseRaw) ReleaseDir(input *fuse.ReleaseIn) {}

func (r *FuseRaw) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	fh, status := r.fs.open(input.NodeId, input.Flags)
	if status != fuse.OK {
		return status
	}
	out.Fh = fh
	return fuse.OK
}

func (r *FuseRaw) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	f, status := r.fs.handle(input.Fh)
	if status != fuse.OK {
		return nil, status
	}
	return fuse.ReadResultFd(f.Fd(), int64(input.Offset), int(input.Size)), fuse.OK
}

func (r *FuseRaw) Write(cancel <-chan struct{}, input *fuse.WriteIn, data []byte) (uint32, fuse.Status) {
	f, status := r.fs.handle(input.Fh)
	if status != fuse.OK {
		return 0, status
	}
	n, err := f.WriteAt(data, int64(input.Offset))
	return uint32(n), fuse.ToStatus(err)
}

func (r *FuseRaw) Flush(cancel <-chan struct{}, input *fuse.FlushIn) fuse.Status {
	return fuse.OK
}

func (r *FuseRaw) Fsync(cancel <-chan struct{}, input *fuse.FsyncIn) fuse.Status {
	f, status := r.fs.handle(input.Fh)
	if status != fuse.OK {
		return status
	}
	return fuse.ToStatus(f.Sync())
}

func (r *FuseRaw) Release(cancel <-chan struct{}, input *fuse.ReleaseIn) {
	r.fs.release(input.Fh)
}

func (r *FuseRaw) Mkdir(cancel <-chan struct{}, input *fuse.MkdirIn, name string, out *fuse.EntryOut) fuse.Status {
	id, attr, status := r.fs.mkdir(input.NodeId, name, input.Mode)
	if status != fuse.OK {
		return status
	}
	out.NodeId = id
	out.Attr = attr
	r.setTimeouts(out)
	return fuse.OK
}

func (r *FuseRaw) Unlink(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	return r.fs.remove(header.NodeId, name)
}

func (r *FuseRaw) Rmdir(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	return r.fs.remove(header.NodeId, name)
}

func (r *FuseRaw) StatFs(cancel <-chan struct{}, input *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	var st syscall.Statfs_t
	if err := syscall.Statfs(r.fs.lib.Root(), &st); err != nil {
		return fuse.ToStatus(err)
	}
	out.Blocks = st.Blocks
	out.Bfree = st.Bfree
	out.Bavail = st.Bavail
	out.Files = st.Files
	out.Ffree = st.Ffree
	out.Bsize = uint32(st.Bsize)
	out.NameLen = uint32(st.Namelen)
	out.Frsize = uint32(st.Frsize)
	return fuse.OK
}

func (r *FuseRaw) attrTimeout() time.Duration {
	return time.Duration(r.fs.cfg.AttrTimeout * float64(time.Second))
}

func (r *FuseRaw) entryTimeout() time.Duration {
	return time.Duration(r.fs.cfg.EntryTimeout * float64(time.Second))
}

func (r *FuseRaw) setTimeouts(out *fuse.EntryOut) {
	out.SetAttrTimeout(r.attrTimeout())
	out.SetEntryTimeout(r.entryTimeout())
}
