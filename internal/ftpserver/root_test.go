package ftpserver

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareRootCreatesLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ftp_server_root")
	var out bytes.Buffer

	abs, err := PrepareRoot(root, fixedClock(), &out)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(abs))
	assert.Equal(t, "Created FTP server directory: "+abs+"\n", out.String())

	for _, dir := range RootDirs {
		info, err := os.Stat(filepath.Join(abs, dir))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	welcome, err := os.ReadFile(filepath.Join(abs, WelcomeFile))
	require.NoError(t, err)
	assert.Equal(t, "Welcome to the FTP Server!\n"+
		"This is a test file for cybersecurity lab purposes.\n"+
		"Server started at: 2024-01-02 03:04:05\n", string(welcome))
}

func TestPrepareRootLeavesExistingRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("x"), 0o644))
	var out bytes.Buffer

	abs, err := PrepareRoot(root, fixedClock(), &out)
	require.NoError(t, err)
	assert.Equal(t, root, abs)
	assert.Empty(t, out.String())

	_, err = os.Stat(filepath.Join(root, WelcomeFile))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPrepareRootRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := PrepareRoot(path, fixedClock(), &bytes.Buffer{})
	assert.ErrorContains(t, err, "not a directory")
}
