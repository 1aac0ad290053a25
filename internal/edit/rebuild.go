// Package edit serializes a mutated atom tree back into a contiguous buffer.
//
// Offsets of unmodified atoms that follow a grown container (typically the
// 'mdat' after 'moov') are not rewritten, and neither are the chunk offset
// tables ('stco', 'co64') that point into them. Players that resolve sample
// data through those tables will read shifted bytes when 'moov' precedes
// 'mdat' and grows. Fixing that means rewriting sample tables, which this
// package does not do.
package edit

import (
	"fmt"
	"sort"

	"github.com/NotTobi/soundcloud-dl-sub000/internal/buf"
	"github.com/NotTobi/soundcloud-dl-sub000/internal/format"
	"github.com/NotTobi/soundcloud-dl-sub000/internal/tree"
	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

// Rebuild emits t as a new buffer. Clean atoms are copied from the source by
// range, with any pending patches applied; dirty containers are re-emitted
// from their children and their lengths back-filled. Every emitted length is
// checked against the atom's tracked Length.
//
// The source buffer is never written.
func Rebuild(t *tree.Tree) ([]byte, error) {
	if t == nil || t.Released() {
		return nil, types.ErrFinalized
	}

	size, err := calculateBufferSize(t)
	if err != nil {
		return nil, err
	}

	s := &serializer{
		src:     t.Source(),
		patches: sortedPatches(t.Patches()),
		out:     make([]byte, 0, size),
	}
	for _, a := range t.Atoms {
		if err := s.atom(a); err != nil {
			return nil, err
		}
	}
	s.out = append(s.out, t.Trailer()...)

	if len(s.out) != size {
		return nil, rebuildErr(fmt.Sprintf("emitted %d bytes, tree accounts for %d", len(s.out), size), nil)
	}
	return s.out, nil
}

// calculateBufferSize is the exact output size: the top-level lengths plus
// the trailer.
func calculateBufferSize(t *tree.Tree) (int, error) {
	total := len(t.Trailer())
	for _, a := range t.Atoms {
		next, ok := buf.AddOverflowSafe(total, int(a.Length))
		if !ok {
			return 0, rebuildErr("output size overflows", nil)
		}
		total = next
	}
	return total, nil
}

type serializer struct {
	src     []byte
	patches []tree.Patch
	out     []byte
}

func (s *serializer) atom(a *tree.Atom) error {
	switch {
	case !a.Dirty:
		if !a.HasOffset {
			return rebuildErr(fmt.Sprintf("%s has neither source bytes nor changes", a.Tag), nil)
		}
		return s.copyRange(a.Offset, int(a.Length))
	case a.Payload != nil || !format.IsContainer(a.Tag):
		return s.leaf(a)
	default:
		return s.container(a)
	}
}

// leaf emits an atom built in this session.
func (s *serializer) leaf(a *tree.Atom) error {
	n := uint64(format.HeaderSize) + uint64(len(a.Payload))
	if n != uint64(a.Length) {
		return rebuildErr(fmt.Sprintf("%s payload implies %d bytes, tracked %d", a.Tag, n, a.Length), nil)
	}
	s.out = format.AppendHeader(s.out, a.Length, a.Tag)
	s.out = append(s.out, a.Payload...)
	return nil
}

// container emits header, extension, children and slack, then back-fills
// the length field.
func (s *serializer) container(a *tree.Atom) error {
	start := len(s.out)
	s.out = format.AppendHeader(s.out, 0, a.Tag)

	if ext := format.ExtensionSize(a.Tag); ext > 0 {
		if a.HasOffset {
			if err := s.copyRange(a.Offset+format.HeaderSize, ext); err != nil {
				return err
			}
		} else {
			s.out = append(s.out, make([]byte, ext)...)
		}
	}

	for _, c := range a.Children {
		if err := s.atom(c); err != nil {
			return err
		}
	}

	if slack := a.Slack(); slack > 0 {
		if err := s.copyRange(a.SlackOffset(), slack); err != nil {
			return err
		}
	}

	n := uint64(len(s.out) - start)
	if n != uint64(a.Length) {
		return rebuildErr(fmt.Sprintf("%s emitted %d bytes, tracked %d", a.Tag, n, a.Length), nil)
	}
	if n > format.MaxAtomLength {
		return rebuildErr(fmt.Sprintf("%s length %d overflows the length field", a.Tag, n), nil)
	}
	format.PutHeader(s.out[start:], uint32(n), a.Tag)
	return nil
}

// copyRange appends src[off:off+n] with overlapping patches applied.
func (s *serializer) copyRange(off, n int) error {
	chunk, ok := buf.Slice(s.src, off, n)
	if !ok {
		return rebuildErr(fmt.Sprintf("source range [%d,+%d) outside %d-byte buffer", off, n, len(s.src)), nil)
	}
	base := len(s.out)
	s.out = append(s.out, chunk...)

	end := off + n
	for _, p := range s.patches {
		if p.Offset >= end {
			break
		}
		pEnd := p.Offset + len(p.Data)
		if pEnd <= off {
			continue
		}
		lo, hi := max(p.Offset, off), min(pEnd, end)
		copy(s.out[base+lo-off:], p.Data[lo-p.Offset:hi-p.Offset])
	}
	return nil
}

// sortedPatches orders patches by offset. Later patches to the same bytes
// win, so the sort is stable.
func sortedPatches(in []tree.Patch) []tree.Patch {
	if len(in) == 0 {
		return nil
	}
	out := append([]tree.Patch(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

func rebuildErr(msg string, cause error) error {
	return types.Errorf(types.ErrKindRebuild, "edit: "+msg, cause)
}
