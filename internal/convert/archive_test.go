package convert

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func readTarEntries(t *testing.T, r io.Reader) map[string]string {
	t.Helper()

	entries := make(map[string]string)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[hdr.Name] = string(data)
	}
	return entries
}

func TestArchiveConverter_Pairs(t *testing.T) {
	c := NewArchiveConverter()

	assert.Contains(t, c.Pairs(), Pair{"zip", "tar"})
	assert.Contains(t, c.Pairs(), Pair{"rar", "zip"})

	// RAR is extract-only
	for _, pair := range c.Pairs() {
		assert.NotEqual(t, "rar", pair.Output)
	}
}

func TestArchiveConverter_ZipToTar(t *testing.T) {
	c := NewArchiveConverter()
	dir := t.TempDir()

	input := filepath.Join(dir, "in.zip")
	writeTestZip(t, input, map[string]string{
		"readme.txt":     "hello",
		"docs/guide.txt": "nested entry",
	})
	output := filepath.Join(dir, "out.tar")

	err := c.Convert(context.Background(), input, output, Options{TargetFormat: "tar"})
	require.NoError(t, err)

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()

	entries := readTarEntries(t, f)
	assert.Equal(t, "hello", entries["readme.txt"])
	assert.Equal(t, "nested entry", entries["docs/guide.txt"])
}

func TestArchiveConverter_ZipToTarGz(t *testing.T) {
	c := NewArchiveConverter()
	dir := t.TempDir()

	input := filepath.Join(dir, "in.zip")
	writeTestZip(t, input, map[string]string{"a.txt": "alpha"})
	output := filepath.Join(dir, "out.gz")

	err := c.Convert(context.Background(), input, output, Options{TargetFormat: "gz"})
	require.NoError(t, err)

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	entries := readTarEntries(t, gz)
	assert.Equal(t, "alpha", entries["a.txt"])
}

func TestArchiveConverter_TarToZip(t *testing.T) {
	c := NewArchiveConverter()
	dir := t.TempDir()

	// Build the tar input by converting a zip first
	seed := filepath.Join(dir, "seed.zip")
	writeTestZip(t, seed, map[string]string{"data/x.txt": "x marks the spot"})
	tarPath := filepath.Join(dir, "in.tar")
	require.NoError(t, c.Convert(context.Background(), seed, tarPath, Options{TargetFormat: "tar"}))

	output := filepath.Join(dir, "out.zip")
	err := c.Convert(context.Background(), tarPath, output, Options{TargetFormat: "zip"})
	require.NoError(t, err)

	zr, err := zip.OpenReader(output)
	require.NoError(t, err)
	defer zr.Close()

	require.Len(t, zr.File, 1)
	assert.Equal(t, "data/x.txt", zr.File[0].Name)

	r, err := zr.File[0].Open()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	r.Close()
	require.NoError(t, err)
	assert.Equal(t, "x marks the spot", string(data))
}

func TestArchiveConverter_RejectsZipSlip(t *testing.T) {
	dir := t.TempDir()

	// Hand-build a zip whose entry tries to escape the extraction dir
	input := filepath.Join(dir, "evil.zip")
	f, err := os.Create(input)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("../escape.txt")
	require.NoError(t, err)
	_, err = io.WriteString(w, "gotcha")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	c := NewArchiveConverter()
	err = c.Convert(context.Background(), input, filepath.Join(dir, "out.tar"), Options{TargetFormat: "tar"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes extraction dir")
}

func TestArchiveConverter_CorruptInput(t *testing.T) {
	c := NewArchiveConverter()
	dir := t.TempDir()

	input := filepath.Join(dir, "in.zip")
	require.NoError(t, os.WriteFile(input, []byte("not a zip"), 0o644))

	err := c.Convert(context.Background(), input, filepath.Join(dir, "out.tar"), Options{TargetFormat: "tar"})
	assert.Error(t, err)
}
