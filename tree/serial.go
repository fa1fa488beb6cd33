package tree

import (
	"fmt"

	"github.com/brettbedarf/tagfs"
)

// Serialized type tags. The set is closed; Load rejects anything else.
const (
	dirTag  = "dir"
	tagTag  = "tag"
	rootTag = "root"
)

// Load reconstructs a node tree from its serialized form. data must be the
// shape produced by Dump, directly or after a round trip through
// encoding/json. lib is bound into every node type that requires a library
// reference. Computed children are never part of the serialized form; they
// are recomputed from the library after loading.
func Load(lib tagfs.Library, data any) (Node, error) {
	arr, ok := data.([]any)
	if !ok || len(arr) == 0 {
		return nil, fmt.Errorf("serialized node is not a tagged array: %w", ErrUnknownType)
	}
	tag, ok := arr[0].(string)
	if !ok {
		return nil, fmt.Errorf("serialized node tag is not a string: %w", ErrUnknownType)
	}

	switch tag {
	case dirTag:
		if len(arr) != 2 {
			return nil, fmt.Errorf("malformed %q node: %w", tag, ErrUnknownType)
		}
		n := NewDir()
		if err := loadChildren(lib, n, arr[1]); err != nil {
			return nil, err
		}
		return n, nil

	case tagTag:
		if len(arr) != 3 {
			return nil, fmt.Errorf("malformed %q node: %w", tag, ErrUnknownType)
		}
		tags, err := stringSlice(arr[1])
		if err != nil {
			return nil, fmt.Errorf("malformed %q node tags: %w", tag, ErrUnknownType)
		}
		n := NewTagNode(lib, tags)
		if err := loadChildren(lib, n, arr[2]); err != nil {
			return nil, err
		}
		return n, nil

	case rootTag:
		if len(arr) != 2 {
			return nil, fmt.Errorf("malformed %q node: %w", tag, ErrUnknownType)
		}
		n := NewRootNode(lib)
		if err := loadChildren(lib, n, arr[1]); err != nil {
			return nil, err
		}
		return n, nil

	default:
		return nil, fmt.Errorf("%q: %w", tag, ErrUnknownType)
	}
}

// loadChildren deserializes a children map into n: strings become
// RealPaths, arrays recurse through Load.
func loadChildren(lib tagfs.Library, n Node, raw any) error {
	m, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("serialized children is not a map: %w", ErrUnknownType)
	}
	for name, v := range m {
		switch v := v.(type) {
		case string:
			if err := n.Assign(name, RealPath(v)); err != nil {
				return err
			}
		default:
			child, err := Load(lib, v)
			if err != nil {
				return err
			}
			if err := n.Assign(name, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// stringSlice coerces a dumped tag list, which is []any after a JSON round
// trip but may be []string when built by hand.
func stringSlice(v any) ([]string, error) {
	switch v := v.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, len(v))
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is not a string", i)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("not a string list")
	}
}
