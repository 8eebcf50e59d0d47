package main

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/glaucoscan"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", "", "--env-file", filepath.Join(t.TempDir(), "none.env")))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	assert.Equal(t, "glaucoscan version "+glaucoscan.Version+"\n", run(t, "version"))
}

func TestGraphCommand(t *testing.T) {
	out := run(t, "graph", "--delay", "2s", "--hide-reset")
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "⏱️ 2s")
	assert.NotContains(t, out, "reset")
}

func TestScanAndSessionCommands(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")
	storeFlags := []string{"--store", "file", "--store-path", dir}

	out := run(t, append([]string{"session", "ls"}, storeFlags...)...)
	assert.Contains(t, out, "No sessions found.")

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	path := filepath.Join(t.TempDir(), "fundus.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))

	out = run(t, append([]string{"scan", path, "--delay", "10ms", "--quiet"}, storeFlags...)...)
	assert.Contains(t, out, "Normal")
	assert.Contains(t, out, "fundus.png")

	out = run(t, append([]string{"session", "ls"}, storeFlags...)...)
	assert.Contains(t, out, "(complete)")
}
