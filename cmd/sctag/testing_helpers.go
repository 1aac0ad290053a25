package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// captureOutput runs fn with stdout redirected to a buffer.
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	orig := stdout
	var buf bytes.Buffer
	stdout = &buf
	defer func() { stdout = orig }()

	err := fn()
	return buf.String(), err
}

// resetFlags restores the global flags between tests.
func resetFlags(t *testing.T) {
	t.Helper()
	quiet = false
	verbose = false
	jsonOut = false
	logDir = ""
	t.Setenv("SCTAG_META", "")
}

// decodeJSON unmarshals output into v.
func decodeJSON(t *testing.T, output string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(output), v), "invalid JSON output:\n%s", output)
}
