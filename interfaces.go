package tagfs

// Library is the tag index collaborator the namespace tree queries on
// demand. Implementations own the real storage root and the association of
// tags to files; the tree never caches their answers.
type Library interface {
	// Find returns the absolute real paths of all files carrying every tag
	// in tags. Order is not significant and basenames are not guaranteed
	// unique across the result.
	Find(tags []string) []string

	// Root returns the absolute path of the library storage root.
	Root() string

	// PrivateDir returns the absolute path of the library's metadata
	// directory (MetaDirName under the root).
	PrivateDir() string
}
