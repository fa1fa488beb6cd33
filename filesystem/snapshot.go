package filesystem

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/brettbedarf/tagfs/internal/util"
	"github.com/brettbedarf/tagfs/tree"
)

// SaveTree writes the serialized namespace tree to path. The write goes to
// a uniquely-named temp file first and is renamed into place, so a crash
// mid-write never corrupts an existing snapshot.
func (fs *FileSystem) SaveTree(path string) error {
	fs.mu.Lock()
	dump := fs.root.Dump()
	fs.mu.Unlock()

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize tree: %w", err)
	}

	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck // best effort cleanup
		return err
	}

	logger := util.GetLogger("filesystem.SaveTree")
	logger.Info().Str("path", path).Msg("Tree snapshot saved")
	return nil
}

// LoadTree replaces the in-memory tree with the snapshot at path. A missing
// snapshot is not an error: the fresh root projection stays in place. A
// corrupt snapshot aborts the load and leaves the current tree untouched.
func (fs *FileSystem) LoadTree(path string) error {
	logger := util.GetLogger("filesystem.LoadTree")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info().Str("path", path).Msg("No tree snapshot; starting fresh")
			return nil
		}
		return err
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("failed to parse tree snapshot %s: %w", path, err)
	}
	root, err := tree.Load(fs.lib, decoded)
	if err != nil {
		return fmt.Errorf("failed to load tree snapshot %s: %w", path, err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.root = root
	fs.registry.Clear()
	fs.pathIDs.Clear()
	fs.nodeIDs = make(map[tree.Node]uint64)
	fs.registry.Store(fuse.FUSE_ROOT_ID, &target{node: root})
	fs.nodeIDs[root] = fuse.FUSE_ROOT_ID

	logger.Info().Str("path", path).Msg("Tree snapshot loaded")
	return nil
}
