package server

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setMTime(t *testing.T, path, rfc3339 string) {
	t.Helper()
	mtime, err := time.Parse(time.RFC3339, rfc3339)
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}
