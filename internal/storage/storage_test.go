package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorage_RoundTrip(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	path := UploadPath("job-1", "/tmp/sales.csv")
	assert.Equal(t, "uploads/job-1/sales.csv", path)

	require.NoError(t, fs.Upload(ctx, path, []byte("a,b\n1,2\n")))
	got, err := fs.Download(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(got))
}

func TestFileStorage_MissingFile(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	_, err = fs.Download(context.Background(), "uploads/nope.csv")
	assert.Error(t, err)
}

func TestFileStorage_StaysInBaseDir(t *testing.T) {
	base := t.TempDir()
	fs, err := NewFileStorage(base)
	require.NoError(t, err)

	full, err := fs.resolve("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, base+"/etc/passwd", full)
}

func TestFileStorage_CanceledContext(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, fs.Upload(ctx, "x.csv", []byte("x")))
}

func TestUploadPath_StripsClientDirectories(t *testing.T) {
	assert.Equal(t, "uploads/j/sales.xlsx", UploadPath("j", `C:\Users\me\sales.xlsx`))
	assert.Equal(t, "uploads/j/upload", UploadPath("j", ""))
	assert.Equal(t, "uploads/j/upload", UploadPath("j", "../"))
}
