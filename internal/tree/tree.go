// Package tree models an MP4-family buffer as a lazily expanded forest of
// atoms. Only the atoms on the paths we touch are ever decoded; everything
// else stays a (offset, length) reference into the original buffer and is
// copied verbatim when the buffer is rebuilt.
package tree

import (
	"fmt"

	"github.com/NotTobi/soundcloud-dl-sub000/internal/format"
	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

// ChildState tracks whether an atom's children have been decoded.
type ChildState uint8

const (
	// Unexpanded atoms have never been scanned for children. Leaves and
	// containers we did not need to look inside stay in this state.
	Unexpanded ChildState = iota
	// ExpandedEmpty containers were scanned (or synthesized) and hold no children.
	ExpandedEmpty
	// Expanded containers hold at least one child.
	Expanded
)

func (s ChildState) String() string {
	switch s {
	case Unexpanded:
		return "unexpanded"
	case ExpandedEmpty:
		return "expanded-empty"
	case Expanded:
		return "expanded"
	default:
		return "unknown"
	}
}

// Atom is one node of the tree.
//
// Atoms read from the buffer carry their original Offset. Atoms created in
// this session have HasOffset == false; for synthesized containers Offset
// still records the provisional position assigned at creation (directly
// after the parent's last byte), which the rebuilder never reads.
type Atom struct {
	Tag       format.Tag
	Length    uint32
	Offset    int
	HasOffset bool

	Parent   *Atom
	Children []*Atom

	// Payload holds everything after the 8-byte header of an atom built in
	// this session. Original atoms never materialize a payload.
	Payload []byte

	// Dirty is set when this atom or a descendant gained a child.
	Dirty bool

	state    ChildState
	slack    int
	slackOff int // source offset of the slack bytes
}

// State reports the expansion state of a's children.
func (a *Atom) State() ChildState { return a.state }

// Expanded reports whether a's children are materialized (possibly none).
func (a *Atom) Expanded() bool { return a.state != Unexpanded }

// Synthesized reports whether a was created in this session.
func (a *Atom) Synthesized() bool { return !a.HasOffset }

// HeaderLength is the header plus any container extension bytes.
func (a *Atom) HeaderLength() int {
	if format.IsContainer(a.Tag) {
		return format.ContainerHeaderSize(a.Tag)
	}
	return format.HeaderSize
}

// Slack is the number of bytes between the end of the last readable child
// and the end of an expanded original container. Well-formed boxes have
// none; some encoders leave a 4-byte zero terminator in 'udta'.
func (a *Atom) Slack() int { return a.slack }

// SlackOffset is where the slack bytes start in the source buffer. It is
// fixed at expansion, so it stays valid after a grows.
func (a *Atom) SlackOffset() int { return a.slackOff }

// ClosureLength is the length a's children imply:
// HeaderLength + Σ child lengths + Slack.
func (a *Atom) ClosureLength() uint64 {
	n := uint64(a.HeaderLength()) + uint64(a.slack)
	for _, c := range a.Children {
		n += uint64(c.Length)
	}
	return n
}

// markDirty marks a and all its ancestors dirty.
func (a *Atom) markDirty() {
	for cur := a; cur != nil && !cur.Dirty; cur = cur.Parent {
		cur.Dirty = true
	}
}

// NewLeaf creates an atom built in this session whose bytes are
// tag header + body.
func NewLeaf(tag format.Tag, body []byte) (*Atom, error) {
	n := uint64(format.HeaderSize) + uint64(len(body))
	if n > format.MaxAtomLength {
		return nil, types.Errorf(types.ErrKindValidation,
			fmt.Sprintf("tree: %s body of %d bytes overflows the length field", tag, len(body)), nil)
	}
	return &Atom{
		Tag:     tag,
		Length:  uint32(n),
		Payload: body,
		Dirty:   true,
	}, nil
}

// Patch overwrites len(Data) bytes of the source at Offset when the source
// is copied into the output. The source buffer itself is never written.
type Patch struct {
	Offset int
	Data   []byte
}

// Tree is the forest of top-level atoms parsed from one buffer.
type Tree struct {
	Atoms []*Atom

	src      []byte
	end      int // end of the last readable top-level atom
	valid    bool
	patches  []Patch
	released bool
}

// Parse scans the top-level atom sequence of b. It fails only when b
// holds no readable atom at all; anything after the last readable atom is
// kept as an opaque trailer.
func Parse(b []byte) (*Tree, error) {
	atoms, end := scan(b, 0, len(b), nil)
	if len(atoms) == 0 {
		return nil, types.Errorf(types.ErrKindStructural,
			fmt.Sprintf("tree: no atoms in %d-byte buffer", len(b)), nil)
	}
	t := &Tree{Atoms: atoms, src: b, end: end}
	t.valid = t.Find(format.RootTag) != nil
	return t, nil
}

// scan reads consecutive atoms in b[start:limit].
func scan(b []byte, start, limit int, parent *Atom) ([]*Atom, int) {
	window := b[:limit]
	var atoms []*Atom
	off := start
	for {
		h, ok := format.ReadAtom(window, off)
		if !ok {
			break
		}
		atoms = append(atoms, &Atom{
			Tag:       h.Tag,
			Length:    h.Length,
			Offset:    h.Offset,
			HasOffset: true,
			Parent:    parent,
		})
		off = h.End()
	}
	return atoms, off
}

// HasValidStructure reports whether the top level holds the root container.
// Every mutating operation is gated on it.
func (t *Tree) HasValidStructure() bool { return t.valid && !t.released }

// Source returns the original buffer, or nil after Release.
func (t *Tree) Source() []byte { return t.src }

// Trailer returns the bytes after the last readable top-level atom.
func (t *Tree) Trailer() []byte {
	if t.src == nil {
		return nil
	}
	return t.src[t.end:]
}

// Patches returns the pending in-place overwrites in the order they were made.
func (t *Tree) Patches() []Patch { return t.patches }

// Release drops the tree's references to the source buffer and atoms.
// The tree must not be used afterwards.
func (t *Tree) Release() {
	t.Atoms = nil
	t.src = nil
	t.patches = nil
	t.released = true
}

// Released reports whether Release was called.
func (t *Tree) Released() bool { return t.released }

// Find returns the first top-level atom tagged tag.
func (t *Tree) Find(tag format.Tag) *Atom {
	for _, a := range t.Atoms {
		if a.Tag == tag {
			return a
		}
	}
	return nil
}

// ExpandChildren decodes a's children on first use and returns them.
// It is a no-op for leaves, synthesized atoms and atoms already expanded.
// A container too short to hold its own extension stays unexpanded.
func (t *Tree) ExpandChildren(a *Atom) []*Atom {
	if a == nil {
		return nil
	}
	if a.state != Unexpanded {
		return a.Children
	}
	if !format.IsContainer(a.Tag) || !a.HasOffset || t.src == nil {
		return nil
	}
	start := a.Offset + a.HeaderLength()
	end := a.Offset + int(a.Length)
	if start > end || end > len(t.src) {
		return nil
	}

	children, stop := scan(t.src, start, end, a)
	a.Children = children
	a.slack = end - stop
	a.slackOff = stop
	if len(children) == 0 {
		a.state = ExpandedEmpty
	} else {
		a.state = Expanded
	}
	return a.Children
}

// Overwrite schedules data to replace the bytes of original atom a starting
// rel bytes into it. Lengths never change.
func (t *Tree) Overwrite(a *Atom, rel int, data []byte) error {
	if t.released {
		return types.ErrFinalized
	}
	if a == nil || !a.HasOffset {
		return types.Errorf(types.ErrKindInsertion, "tree: overwrite target has no source bytes", nil)
	}
	if rel < 0 || rel+len(data) > int(a.Length) {
		return types.Errorf(types.ErrKindInsertion,
			fmt.Sprintf("tree: overwrite [%d,%d) outside %d-byte %s", rel, rel+len(data), a.Length, a.Tag), nil)
	}
	t.patches = append(t.patches, Patch{
		Offset: a.Offset + rel,
		Data:   append([]byte(nil), data...),
	})
	return nil
}
