package server

import (
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/brettbedarf/tagfs"
	"github.com/brettbedarf/tagfs/config"
	"github.com/brettbedarf/tagfs/filesystem"
	"github.com/brettbedarf/tagfs/internal/util"
)

// TagFs contains the core filesystem state and operations with abstractions
// over the underlying FUSE wire protocol implementation
type TagFs struct {
	*filesystem.FileSystem
	cfg    *config.Config
	server *fuse.Server
}

// New creates a TagFs instance over lib given your config.
func New(cfg *config.Config, lib tagfs.Library) *TagFs {
	return &TagFs{
		FileSystem: filesystem.NewFS(cfg, lib),
		cfg:        cfg,
	}
}

// Serve restores the tree snapshot, then mounts and serves the filesystem
// at the given mountPoint.
func (t *TagFs) Serve(mountPoint string) error {
	if err := t.LoadTree(t.TreePath()); err != nil {
		return err
	}

	raw := filesystem.NewFuseRaw(t.FileSystem)
	opts := t.cfg.MountOptions
	slogger := util.NewLogLogger("FuseServer", util.DebugLevel)
	srv, err := fuse.NewServer(raw, mountPoint, &fuse.MountOptions{
		Name:   opts.Name,
		FsName: opts.FsName,
		Debug:  opts.Debug || t.cfg.LogLvl == util.TraceLevel,
		Logger: slogger,
	})
	if err != nil {
		return err
	}
	t.server = srv

	go srv.Serve()
	return srv.WaitMount()
}

// ServeAsync mounts in the background and reports the mount result on the
// returned channel.
func (t *TagFs) ServeAsync(mountPoint string) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- t.Serve(mountPoint)
		close(done)
	}()

	return done
}

// Unmount snapshots the tree and cleanly unmounts the filesystem.
func (t *TagFs) Unmount() error {
	if t.server == nil {
		return nil
	}
	if err := t.SaveTree(t.TreePath()); err != nil {
		logger := util.GetLogger("server")
		logger.Warn().Err(err).Msg("Failed to save tree snapshot")
	}
	return t.server.Unmount()
}
