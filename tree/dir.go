package tree

import (
	"fmt"
	"sort"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// Dir is a purely virtual directory: a mapping of names to child values plus
// synthetic file attributes. Its link count tracks explicit children only
// and always equals 2 + len(children).
type Dir struct {
	children map[string]Value
	attr     *fuse.Attr
}

// NewDir creates an empty virtual directory with default attributes.
func NewDir() *Dir {
	return &Dir{
		children: make(map[string]Value),
		attr:     newDirAttr(),
	}
}

// Enumerate returns the explicit child names in sorted order.
func (d *Dir) Enumerate() []string {
	names := make([]string, 0, len(d.children))
	for name := range d.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the explicit child stored under name.
func (d *Dir) Lookup(name string) (Value, error) {
	v, ok := d.children[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return v, nil
}

// Assign stores v under name. Inserting a new name increments the link
// count; replacing an existing one leaves it unchanged.
func (d *Dir) Assign(name string, v Value) error {
	if _, ok := d.children[name]; !ok {
		d.attr.Nlink++
	}
	d.children[name] = v
	return nil
}

// Delete removes the explicit child stored under name and decrements the
// link count.
func (d *Dir) Delete(name string) error {
	if _, ok := d.children[name]; !ok {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	delete(d.children, name)
	d.attr.Nlink--
	return nil
}

// Dump serializes the directory as ["dir", {name: child}].
func (d *Dir) Dump() []any {
	return []any{dirTag, d.dumpChildren()}
}

// Attr returns the directory's synthetic attributes.
func (d *Dir) Attr() *fuse.Attr {
	return d.attr
}

func (d *Dir) explicit() map[string]Value {
	return d.children
}

func (*Dir) isValue() {}

// dumpChildren serializes the explicit mapping: nodes recurse, real paths
// become plain strings.
func (d *Dir) dumpChildren() map[string]any {
	out := make(map[string]any, len(d.children))
	for name, v := range d.children {
		switch v := v.(type) {
		case RealPath:
			out[name] = string(v)
		case Node:
			out[name] = v.Dump()
		}
	}
	return out
}

var _ Node = (*Dir)(nil)
