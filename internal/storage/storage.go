// Package storage holds uploaded source files for the job queue.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"go-insight-pipeline/pkg/utils"
)

// Storage stores and retrieves raw uploads by path.
type Storage interface {
	Upload(ctx context.Context, path string, content []byte) error
	Download(ctx context.Context, path string) ([]byte, error)
}

// FileStorage keeps uploads under a base directory on local disk.
type FileStorage struct {
	BaseDir string
}

// NewFileStorage creates the base directory if needed.
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "storage: create %s", baseDir)
	}
	return &FileStorage{BaseDir: baseDir}, nil
}

// Upload writes content to path, creating parent directories.
func (fs *FileStorage) Upload(ctx context.Context, path string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := fs.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return eris.Wrapf(err, "storage: create dir for %s", path)
	}
	return eris.Wrapf(os.WriteFile(full, content, 0o644), "storage: write %s", path)
}

// Download reads the file stored at path.
func (fs *FileStorage) Download(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(full)
	if err != nil {
		return nil, eris.Wrapf(err, "storage: read %s", path)
	}
	return b, nil
}

// resolve maps a storage path into BaseDir and rejects paths that escape it.
func (fs *FileStorage) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	full := filepath.Join(fs.BaseDir, clean)
	rel, err := filepath.Rel(fs.BaseDir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", eris.Errorf("storage: invalid path %q", path)
	}
	return full, nil
}

// UploadPath returns the storage path for a job's source file. Directories
// in fileName are dropped.
func UploadPath(jobID, fileName string) string {
	name := utils.BaseName(fileName)
	if name == "" || name == "." || name == ".." {
		name = "upload"
	}
	return fmt.Sprintf("uploads/%s/%s", jobID, name)
}
