package tree

import (
	"fmt"
	"strings"

	"github.com/brettbedarf/tagfs/internal/util"
)

// Resolve walks an absolute virtual path from root and returns the furthest
// node along it together with the remaining path segments.
//
// If the path terminates exactly at a virtual node, the remainder is empty.
// If the walk reaches a border crossing (a segment whose value is a
// RealPath), it stops and the remainder starts with the segment that
// matched the crossing; the caller joins the remainder onto the matched
// real path to obtain the final real location. If any segment is unknown
// the walk fails with ErrUnresolvable, regardless of what lies beyond it.
//
// The traversal is read-only; no node state is mutated.
func Resolve(root Node, path string) (Node, []string, error) {
	logger := util.GetLogger("tree.Resolve")
	logger.Trace().Str("path", path).Msg("resolving path")

	if !strings.HasPrefix(path, "/") {
		return nil, nil, fmt.Errorf("path %q is not absolute: %w", path, ErrUnresolvable)
	}

	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}

	cur := root
	for len(segs) > 0 {
		v, err := cur.Lookup(segs[0])
		if err != nil {
			logger.Debug().Str("segment", segs[0]).Str("path", path).Msg("path broken")
			return nil, nil, fmt.Errorf("segment %q of %q: %w", segs[0], path, ErrUnresolvable)
		}
		switch v := v.(type) {
		case RealPath:
			// Border crossing. The matched segment stays in the remainder:
			// it is part of the real-path suffix.
			logger.Trace().Str("segment", segs[0]).Str("real", string(v)).Msg("border crossing")
			return cur, segs, nil
		case Node:
			cur = v
			segs = segs[1:]
		}
	}
	return cur, nil, nil
}
