//go:build unix

package mmfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapReadOnlyUnix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.m4a")
	want := []byte{0, 0, 0, 8, 'm', 'o', 'o', 'v'}
	require.NoError(t, os.WriteFile(path, want, 0o644))

	data, cleanup, err := Map(path)
	require.NoError(t, err)
	assert.Equal(t, want, data)

	require.NoError(t, cleanup())
	assert.NoError(t, cleanup(), "second cleanup is a no-op")
}

func TestMapReadOnlyUnixZeroLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.mp3")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	data, cleanup, err := Map(path)
	require.NoError(t, err)
	assert.Empty(t, data)
	require.NotNil(t, cleanup)
	assert.NoError(t, cleanup())
}

func TestMapRejectsDirectory(t *testing.T) {
	_, _, err := Map(t.TempDir())
	assert.Error(t, err)
}

func TestMapMissingFile(t *testing.T) {
	_, _, err := Map(filepath.Join(t.TempDir(), "nope.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
