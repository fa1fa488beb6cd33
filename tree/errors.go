package tree

import "errors"

// Error taxonomy of the namespace tree. Everything here is recoverable by
// the driver layer; none of these conditions is fatal to the tree itself.
var (
	// ErrNotFound reports a name absent from both the explicit and the
	// computed children of a node, or a deletion target that only exists
	// as a read-only computed entry.
	ErrNotFound = errors.New("name not found")

	// ErrUnresolvable reports a path walk that hit an unknown segment
	// before reaching a border crossing. It is a traversal-level outcome,
	// distinct from the per-lookup ErrNotFound.
	ErrUnresolvable = errors.New("unresolvable path")

	// ErrUnknownType reports a serialized node whose type tag is not one
	// of the known node types. It indicates corruption of the serialized
	// form; the load aborts without side effects.
	ErrUnknownType = errors.New("unknown node type")
)
