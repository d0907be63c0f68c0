package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generate(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out, &out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateIntoDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fixtures")

	out, err := generate(t, "--dir", dir, "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Generating files in: "+dir)
	assert.Contains(t, out, "Summary: 6/6 files created")

	for _, name := range []string{"employee_records.csv", "app_config.json", "sales_data.csv", "system.log", "README.txt", "network_config.ini"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestSeedReproducesSalesData(t *testing.T) {
	a := filepath.Join(t.TempDir(), "a")
	b := filepath.Join(t.TempDir(), "b")

	_, err := generate(t, "--dir", a, "--seed", "42")
	require.NoError(t, err)
	_, err = generate(t, "--dir", b, "--seed", "42")
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(a, "sales_data.csv"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(b, "sales_data.csv"))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestDefaultDir(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := generate(t)
	require.NoError(t, err)
	assert.DirExists(t, "ftp_test_data")
}

func TestUnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	out, err := generate(t, "--dir", filepath.Join(blocker, "data"))
	require.Error(t, err)
	assert.Contains(t, out, "Failed to create output directory")
}
