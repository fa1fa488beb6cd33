package tree

import (
	"path/filepath"
	"strings"

	"github.com/brettbedarf/tagfs/internal/util"
)

// uniqmap turns a list of real paths into an injective mapping from unique
// names to paths. The plain basename is used where possible; a colliding
// path falls back to its qualified name, the full path components joined
// with ":". A path already occupying a qualified slot is evicted back onto
// the front of the work queue and recomputes its own qualified name on its
// next pass, which is strictly more specific than the one it lost.
//
// Distinct paths have distinct qualified names, and each path is evicted at
// most once, so the queue drains.
func uniqmap(paths []string) map[string]string {
	logger := util.GetLogger("tree.uniqmap")

	out := make(map[string]string, len(paths))
	seen := make(map[string]bool, len(paths))
	queue := append([]string(nil), paths...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		name := filepath.Base(p)
		if !seen[name] {
			seen[name] = true
			out[name] = p
			continue
		}

		alt := qualifiedName(p)
		logger.Debug().Str("path", p).Str("name", name).Str("alt", alt).Msg("name collision")
		if prev, ok := out[alt]; ok && prev != p {
			// The previous holder loses the slot and is reprocessed.
			logger.Debug().Str("evicted", prev).Str("slot", alt).Msg("evicting previous holder")
			queue = append([]string{prev}, queue...)
		}
		seen[alt] = true
		out[alt] = p
	}
	return out
}

// qualifiedName renders a path as a single directory-entry name by joining
// all of its components with ":". "/music/rock/song.mp3" becomes
// "music:rock:song.mp3".
func qualifiedName(path string) string {
	trimmed := strings.Trim(filepath.Clean(path), "/")
	return strings.ReplaceAll(trimmed, "/", ":")
}
