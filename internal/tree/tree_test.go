package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NotTobi/soundcloud-dl-sub000/internal/format"
	"github.com/NotTobi/soundcloud-dl-sub000/internal/testutil"
	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

func TestParseTopLevel(t *testing.T) {
	b := testutil.M4A(testutil.M4AOptions{Chain: true, Samples: 32})
	tr, err := Parse(b)
	require.NoError(t, err)

	require.Len(t, tr.Atoms, 3)
	assert.Equal(t, format.TagFtyp, tr.Atoms[0].Tag)
	assert.Equal(t, format.TagMoov, tr.Atoms[1].Tag)
	assert.Equal(t, format.TagMdat, tr.Atoms[2].Tag)
	assert.True(t, tr.HasValidStructure())
	assert.Empty(t, tr.Trailer())

	for _, a := range tr.Atoms {
		assert.True(t, a.HasOffset)
		assert.Equal(t, Unexpanded, a.State(), "top-level atoms are not expanded eagerly")
	}
}

func TestParseEmptyBufferFails(t *testing.T) {
	for name, b := range map[string][]byte{
		"nil":         nil,
		"short":       {0, 0, 0},
		"zero length": {0, 0, 0, 0, 'm', 'o', 'o', 'v'},
		"garbage":     []byte("this is not an mp4 file"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(b)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrStructural)
		})
	}
}

func TestParseWithoutRoot(t *testing.T) {
	b := append(testutil.Ftyp(), testutil.Atom("mdat", []byte{1, 2, 3})...)
	tr, err := Parse(b)
	require.NoError(t, err)
	assert.False(t, tr.HasValidStructure())

	_, err = tr.ResolveOrCreate(format.MetadataPath)
	assert.ErrorIs(t, err, types.ErrMissingStructure)
}

func TestParseKeepsTrailer(t *testing.T) {
	b := append(testutil.Atom("moov"), 0xde, 0xad, 0xbe)
	tr, err := Parse(b)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe}, tr.Trailer())
}

func TestExpandChildrenStates(t *testing.T) {
	b := testutil.M4A(testutil.M4AOptions{Chain: true})
	tr, err := Parse(b)
	require.NoError(t, err)

	moov := tr.Find(format.TagMoov)
	children := tr.ExpandChildren(moov)
	require.Len(t, children, 2)
	assert.Equal(t, Expanded, moov.State())
	assert.Equal(t, format.TagMvhd, children[0].Tag)
	assert.Equal(t, format.TagUdta, children[1].Tag)
	assert.Same(t, moov, children[1].Parent)

	// idempotent: same slice, same atoms
	again := tr.ExpandChildren(moov)
	require.Len(t, again, 2)
	assert.Same(t, children[0], again[0])

	// leaves never expand
	assert.Nil(t, tr.ExpandChildren(children[0]))
	assert.Equal(t, Unexpanded, children[0].State())

	ilst := tr.Resolve(format.MetadataPath)
	require.NotNil(t, ilst)
	assert.Empty(t, tr.ExpandChildren(ilst))
	assert.Equal(t, ExpandedEmpty, ilst.State())
}

func TestExpandChildrenSkipsExtension(t *testing.T) {
	b := testutil.Atom("moov", testutil.Atom("udta", testutil.Meta(testutil.Hdlr(), testutil.Atom("ilst"))))
	tr, err := Parse(b)
	require.NoError(t, err)

	meta := tr.Resolve([]format.Tag{format.TagMoov, format.TagUdta, format.TagMeta})
	require.NotNil(t, meta)
	kids := tr.ExpandChildren(meta)
	require.Len(t, kids, 2)
	assert.Equal(t, format.TagHdlr, kids[0].Tag)
	assert.Equal(t, meta.Offset+12, kids[0].Offset)
	assert.Equal(t, format.TagIlst, kids[1].Tag)
	assert.NoError(t, Verify(meta))
}

func TestExpandChildrenRecordsSlack(t *testing.T) {
	// udta with a trailing 4-byte zero terminator
	udta := testutil.Atom("udta", testutil.Meta(testutil.Atom("ilst")), []byte{0, 0, 0, 0})
	tr, err := Parse(testutil.Atom("moov", udta))
	require.NoError(t, err)

	u := tr.Resolve([]format.Tag{format.TagMoov, format.TagUdta})
	require.NotNil(t, u)
	tr.ExpandChildren(u)
	assert.Equal(t, 4, u.Slack())
	assert.Equal(t, 8+len(udta)-4, u.SlackOffset())
	assert.NoError(t, Verify(u))

	// growing the container leaves the slack where it was in the source
	ilst, err := tr.ResolveOrCreate(format.MetadataPath)
	require.NoError(t, err)
	leaf, err := NewLeaf(format.TagTitle, []byte("body"))
	require.NoError(t, err)
	require.NoError(t, tr.Append(ilst, leaf))
	assert.Equal(t, uint32(len(udta)+12), u.Length)
	assert.Equal(t, 8+len(udta)-4, u.SlackOffset())
}

func TestResolveMissing(t *testing.T) {
	b := testutil.M4A(testutil.M4AOptions{})
	tr, err := Parse(b)
	require.NoError(t, err)

	assert.Nil(t, tr.Resolve(format.MetadataPath))
	assert.Nil(t, tr.Resolve(nil))
	// read mode never synthesizes
	moov := tr.Find(format.TagMoov)
	require.Len(t, moov.Children, 1)
}

func TestResolveOrCreateSynthesizesChain(t *testing.T) {
	tr, err := Parse(testutil.Atom("moov"))
	require.NoError(t, err)
	root := tr.Atoms[0]
	require.Equal(t, uint32(8), root.Length)

	ilst, err := tr.ResolveOrCreate(format.MetadataPath)
	require.NoError(t, err)
	require.NotNil(t, ilst)

	udta := root.Children[0]
	meta := udta.Children[0]
	assert.Equal(t, format.TagUdta, udta.Tag)
	assert.Equal(t, format.TagMeta, meta.Tag)
	assert.Same(t, ilst, meta.Children[0])

	// provisional offsets: each atom directly after its parent's last byte;
	// root spanned 28 bytes when ilst was placed
	assert.Equal(t, 8, udta.Offset)
	assert.Equal(t, 16, meta.Offset)
	assert.Equal(t, 28, ilst.Offset)

	assert.Equal(t, uint32(8), ilst.Length)
	assert.Equal(t, uint32(20), meta.Length)
	assert.Equal(t, uint32(28), udta.Length)
	assert.Equal(t, uint32(8+8+12+8), root.Length)
	for _, a := range []*Atom{udta, meta, ilst} {
		assert.True(t, a.Synthesized())
		assert.True(t, a.Dirty)
	}
	assert.Equal(t, ExpandedEmpty, ilst.State())
	assert.True(t, root.Dirty)
	assert.NoError(t, Verify(root))

	// second call resolves the same atom without growing anything
	again, err := tr.ResolveOrCreate(format.MetadataPath)
	require.NoError(t, err)
	assert.Same(t, ilst, again)
	assert.Equal(t, uint32(36), root.Length)
}

func TestResolveOrCreateExistingChain(t *testing.T) {
	b := testutil.M4A(testutil.M4AOptions{Chain: true})
	tr, err := Parse(b)
	require.NoError(t, err)
	moov := tr.Find(format.TagMoov)
	before := moov.Length

	ilst, err := tr.ResolveOrCreate(format.MetadataPath)
	require.NoError(t, err)
	assert.False(t, ilst.Synthesized())
	assert.Equal(t, before, moov.Length)
	assert.False(t, moov.Dirty, "resolving an existing chain does not dirty it")
}

func TestAppendPropagatesLength(t *testing.T) {
	b := testutil.M4A(testutil.M4AOptions{Chain: true})
	tr, err := Parse(b)
	require.NoError(t, err)

	ilst, err := tr.ResolveOrCreate(format.MetadataPath)
	require.NoError(t, err)
	moov := tr.Find(format.TagMoov)
	before := moov.Length

	tag, body, err := format.BuildMetadataAtom("©nam", format.TextValue("X"))
	require.NoError(t, err)
	leaf, err := NewLeaf(tag, body)
	require.NoError(t, err)
	require.NoError(t, tr.Append(ilst, leaf))

	assert.Equal(t, before+leaf.Length, moov.Length)
	for a := ilst; a != nil; a = a.Parent {
		assert.True(t, a.Dirty, "%s should be dirty", a.Tag)
		assert.NoError(t, Verify(a))
	}
	assert.Same(t, leaf, ilst.Children[len(ilst.Children)-1])
}

func TestAppendRejectsLeafParent(t *testing.T) {
	b := testutil.M4A(testutil.M4AOptions{})
	tr, err := Parse(b)
	require.NoError(t, err)

	mvhd := tr.Resolve([]format.Tag{format.TagMoov, format.TagMvhd})
	require.NotNil(t, mvhd)
	leaf, err := NewLeaf(format.TagTitle, []byte("x"))
	require.NoError(t, err)

	err = tr.Append(mvhd, leaf)
	assert.ErrorIs(t, err, types.ErrInsertion)
	assert.Empty(t, mvhd.Children)
}

func TestResolveOrCreateThroughTruncatedContainer(t *testing.T) {
	// meta declares 8 bytes, too short for its own 4-byte extension
	b := testutil.Atom("moov", testutil.Atom("udta", testutil.Atom("meta")))
	tr, err := Parse(b)
	require.NoError(t, err)
	moov := tr.Atoms[0]
	before := moov.Length

	_, err = tr.ResolveOrCreate(format.MetadataPath)
	assert.ErrorIs(t, err, types.ErrInsertion)
	assert.Equal(t, before, moov.Length, "failed synthesis leaves lengths unchanged")
	assert.False(t, moov.Dirty)
}

func TestAppendAtSynthesizesChain(t *testing.T) {
	tr, err := Parse(testutil.Atom("moov"))
	require.NoError(t, err)
	leaf, err := NewLeaf(format.TagAlbum, make([]byte, 20))
	require.NoError(t, err)

	ilst, err := tr.AppendAt(format.MetadataPath, leaf)
	require.NoError(t, err)
	assert.Equal(t, format.TagIlst, ilst.Tag)
	assert.Equal(t, ilst, leaf.Parent)
	assert.Equal(t, uint32(64), tr.Atoms[0].Length)
	assert.NoError(t, Verify(tr.Atoms[0]))
}

func TestAppendAtOverflowLeavesTreeUnchanged(t *testing.T) {
	tr, err := Parse(testutil.Atom("moov"))
	require.NoError(t, err)
	moov := tr.Atoms[0]

	// fits on its own, but not together with the synthesized chain
	huge := &Atom{Tag: format.TagArtwork, Length: format.MaxAtomLength - 20, Dirty: true}
	_, err = tr.AppendAt(format.MetadataPath, huge)
	assert.ErrorIs(t, err, types.ErrInsertion)

	assert.Equal(t, uint32(8), moov.Length)
	assert.Empty(t, moov.Children)
	assert.False(t, moov.Dirty)
	assert.Nil(t, tr.Resolve(format.MetadataPath))
}

func TestOverwrite(t *testing.T) {
	b := testutil.M4A(testutil.M4AOptions{})
	tr, err := Parse(b)
	require.NoError(t, err)
	mvhd := tr.Resolve([]format.Tag{format.TagMoov, format.TagMvhd})
	require.NotNil(t, mvhd)

	require.NoError(t, tr.Overwrite(mvhd, format.MvhdV0DurationOffset, []byte{0, 0, 1, 0}))
	require.Len(t, tr.Patches(), 1)
	assert.Equal(t, mvhd.Offset+format.MvhdV0DurationOffset, tr.Patches()[0].Offset)

	assert.ErrorIs(t, tr.Overwrite(mvhd, int(mvhd.Length)-2, []byte{1, 2, 3, 4}), types.ErrInsertion)
	assert.ErrorIs(t, tr.Overwrite(mvhd, -1, []byte{1}), types.ErrInsertion)
	synth, err := NewLeaf(format.TagTitle, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, tr.Overwrite(synth, 0, []byte{1}), types.ErrInsertion)
}

func TestRelease(t *testing.T) {
	tr, err := Parse(testutil.Atom("moov"))
	require.NoError(t, err)
	tr.Release()

	assert.True(t, tr.Released())
	assert.False(t, tr.HasValidStructure())
	assert.Nil(t, tr.Source())
	assert.Nil(t, tr.Trailer())
	_, err = tr.ResolveOrCreate(format.MetadataPath)
	assert.ErrorIs(t, err, types.ErrMissingStructure)
}
