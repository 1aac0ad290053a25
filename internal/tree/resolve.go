package tree

import (
	"fmt"

	"github.com/NotTobi/soundcloud-dl-sub000/internal/format"
	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

// Resolve walks path from the top level, expanding children as needed, and
// returns the atom at its end or nil when any step is missing.
func (t *Tree) Resolve(path []format.Tag) *Atom {
	if len(path) == 0 {
		return nil
	}
	cur := t.Find(path[0])
	for _, tag := range path[1:] {
		if cur == nil {
			return nil
		}
		cur = t.child(cur, tag)
	}
	return cur
}

// child returns the first child of a tagged tag.
func (t *Tree) child(a *Atom, tag format.Tag) *Atom {
	for _, c := range t.ExpandChildren(a) {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// ResolveOrCreate is Resolve that synthesizes missing containers. On a miss
// at depth k it creates containers k..end, each with no children, placed
// after all existing children of its parent, with a provisional offset of
// parent.Offset + parent.Length. Every ancestor's Length grows as each
// container is appended, so closure holds after every step.
//
// The first tag of path must exist at the top level; it is never
// synthesized. On failure the tree is left unchanged.
func (t *Tree) ResolveOrCreate(path []format.Tag) (*Atom, error) {
	return t.resolveOrCreate(path, 0)
}

// AppendAt resolves or creates the container at path and appends child to
// it. Room for child is checked before any container is synthesized, so on
// failure the tree is left unchanged.
func (t *Tree) AppendAt(path []format.Tag, child *Atom) (*Atom, error) {
	if child == nil {
		return nil, types.Errorf(types.ErrKindInsertion, "tree: nil atom", nil)
	}
	parent, err := t.resolveOrCreate(path, uint64(child.Length))
	if err != nil {
		return nil, err
	}
	if err := t.Append(parent, child); err != nil {
		return nil, err
	}
	return parent, nil
}

// resolveOrCreate reserves n extra bytes when checking a synthesized
// chain against the 32-bit length limit.
func (t *Tree) resolveOrCreate(path []format.Tag, n uint64) (*Atom, error) {
	if !t.HasValidStructure() {
		return nil, types.ErrMissingStructure
	}
	if len(path) == 0 {
		return nil, types.Errorf(types.ErrKindInsertion, "tree: empty path", nil)
	}
	cur := t.Find(path[0])
	if cur == nil {
		return nil, types.Errorf(types.ErrKindInsertion,
			fmt.Sprintf("tree: top-level %s not found", path[0]), nil)
	}

	for i, tag := range path[1:] {
		next := t.child(cur, tag)
		if next == nil {
			return t.synthesize(cur, path[1+i:], n)
		}
		cur = next
	}
	if !format.IsContainer(cur.Tag) {
		return nil, types.Errorf(types.ErrKindInsertion,
			fmt.Sprintf("tree: %s is not a container", cur.Tag), nil)
	}
	return cur, nil
}

// synthesize appends a chain of empty containers for tags below parent,
// provided parent and its ancestors can also take reserve more bytes.
func (t *Tree) synthesize(parent *Atom, tags []format.Tag, reserve uint64) (*Atom, error) {
	grow := reserve
	for _, tag := range tags {
		if !format.IsContainer(tag) {
			return nil, types.Errorf(types.ErrKindInsertion,
				fmt.Sprintf("tree: cannot synthesize non-container %s", tag), nil)
		}
		grow += uint64(format.ContainerHeaderSize(tag))
	}
	if err := t.checkAppend(parent, grow); err != nil {
		return nil, err
	}

	for _, tag := range tags {
		child := &Atom{
			Tag:    tag,
			Length: uint32(format.ContainerHeaderSize(tag)),
			Offset: parent.Offset + int(parent.Length),
			Dirty:  true,
			state:  ExpandedEmpty,
		}
		if err := t.Append(parent, child); err != nil {
			return nil, err
		}
		parent = child
	}
	return parent, nil
}

// Append adds child as the last child of parent and grows every ancestor
// by child.Length.
func (t *Tree) Append(parent, child *Atom) error {
	if parent == nil || child == nil {
		return types.Errorf(types.ErrKindInsertion, "tree: nil atom", nil)
	}
	if err := t.checkAppend(parent, uint64(child.Length)); err != nil {
		return err
	}

	child.Parent = parent
	parent.Children = append(parent.Children, child)
	parent.state = Expanded
	for p := parent; p != nil; p = p.Parent {
		p.Length += child.Length
	}
	parent.markDirty()
	return nil
}

// checkAppend verifies parent can take n more bytes without breaking
// closure or overflowing any ancestor's 32-bit length.
func (t *Tree) checkAppend(parent *Atom, n uint64) error {
	if t.released {
		return types.ErrFinalized
	}
	if !format.IsContainer(parent.Tag) {
		return types.Errorf(types.ErrKindInsertion,
			fmt.Sprintf("tree: %s is not a container", parent.Tag), nil)
	}
	t.ExpandChildren(parent)
	if !parent.Expanded() {
		return types.Errorf(types.ErrKindInsertion,
			fmt.Sprintf("tree: %s at offset %d is too short to hold children", parent.Tag, parent.Offset), nil)
	}
	for p := parent; p != nil; p = p.Parent {
		if uint64(p.Length)+n > format.MaxAtomLength {
			return types.Errorf(types.ErrKindInsertion,
				fmt.Sprintf("tree: %s would exceed the 32-bit length field", p.Tag), nil)
		}
	}
	return nil
}

// Verify checks closure (Length == ClosureLength) for a and every expanded
// descendant.
func Verify(a *Atom) error {
	if a == nil || !a.Expanded() {
		return nil
	}
	if got := a.ClosureLength(); got != uint64(a.Length) {
		return types.Errorf(types.ErrKindRebuild,
			fmt.Sprintf("tree: %s declares %d bytes, children imply %d", a.Tag, a.Length, got), nil)
	}
	for _, c := range a.Children {
		if err := Verify(c); err != nil {
			return err
		}
	}
	return nil
}
