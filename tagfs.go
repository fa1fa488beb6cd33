// Package tagfs mounts a tag-organized view of a file library as a
// filesystem. Files live once under a library root; tags are directories
// into which files are hard-linked. The mounted namespace is a virtual tree
// of plain directories, tag-query directories whose contents are computed
// from the tag index on every access, and a root that projects the library
// root itself.
package tagfs

const (
	// MetaDirName is the name of the library metadata directory kept
	// directly under the library root.
	MetaDirName = ".tagfs"

	// MetaDirAlias is the reserved name the mounted root exposes the
	// metadata directory under. It must differ from MetaDirName so the
	// explicit alias entry never clashes with the root projection's own
	// listing of the library root.
	MetaDirAlias = ".tagfs-meta"
)
