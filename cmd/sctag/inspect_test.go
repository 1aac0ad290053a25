package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NotTobi/soundcloud-dl-sub000/internal/format"
	"github.com/NotTobi/soundcloud-dl-sub000/internal/testutil"
)

func titleItem(title string) []byte {
	return testutil.Item(string(format.TagTitle[:]), uint32(format.ClassUTF8), []byte(title))
}

func TestInspectCommand(t *testing.T) {
	tagged := testutil.M4A(testutil.M4AOptions{Chain: true, Items: [][]byte{titleItem("Demo")}, Samples: 16})

	tests := []struct {
		name        string
		file        string
		data        []byte
		wantContain []string
	}{
		{"tagged m4a", "a.m4a", tagged, []string{"Format: mp4", "Title: Demo"}},
		{"mp3", "a.mp3", testutil.MP3(true, 2), []string{"Format: mp3", "Title: Old title"}},
		{"wav", "a.wav", testutil.WAV(8), []string{"Format: wav"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			path := testutil.WriteTemp(t, tt.file, tt.data)
			out, err := captureOutput(t, func() error { return runInspect([]string{path}, false) })
			require.NoError(t, err)
			for _, want := range tt.wantContain {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestInspectBoxesJSON(t *testing.T) {
	resetFlags(t)
	jsonOut = true
	path := testutil.WriteTemp(t, "a.m4a",
		testutil.M4A(testutil.M4AOptions{Chain: true, Items: [][]byte{titleItem("Demo")}, Samples: 16}))

	out, err := captureOutput(t, func() error { return runInspect([]string{path}, true) })
	require.NoError(t, err)

	var res inspectResult
	decodeJSON(t, out, &res)
	assert.Equal(t, "mp4", res.Format)
	require.NotNil(t, res.Tags)
	assert.Equal(t, "Demo", res.Tags.Title)

	depth := map[string]int{}
	for _, b := range res.Boxes {
		depth[b.Type] = b.Depth
	}
	assert.Equal(t, 0, depth["moov"])
	assert.Equal(t, 1, depth["udta"])
	assert.Equal(t, 2, depth["meta"])
	assert.Equal(t, 3, depth["ilst"])
	assert.Contains(t, depth, "mdat")
}

func TestInspectMissingFile(t *testing.T) {
	resetFlags(t)
	_, err := captureOutput(t, func() error { return runInspect([]string{"/nonexistent/a.m4a"}, false) })
	assert.Error(t, err)
}
