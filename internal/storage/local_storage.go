package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/poselab/swinglab/internal/video"
)

// LocalStorage writes uploads into one directory under random names,
// so client-supplied filenames never touch the filesystem.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// SaveFile stores the upload and returns its generated name. Files
// outside the supported video extensions are rejected before any
// bytes are written.
func (ls *LocalStorage) SaveFile(file io.Reader, info FileInfo) (string, error) {
	if !video.SupportedExtension(info.Filename) {
		return "", fmt.Errorf("%w: %q (supported: %s)",
			video.ErrUnsupportedExtension, filepath.Ext(info.Filename),
			strings.Join(video.SupportedExtensions(), ", "))
	}

	filename := uuid.New().String() + strings.ToLower(filepath.Ext(info.Filename))
	fullPath := filepath.Join(ls.basePath, filename)

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return filename, nil
}

func (ls *LocalStorage) OpenFile(name string) (io.ReadSeekCloser, error) {
	fullPath, err := ls.Path(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Path resolves a stored name to its location on disk, rejecting
// traversal attempts.
func (ls *LocalStorage) Path(name string) (string, error) {
	clean := filepath.Clean(name)
	if clean == "." || filepath.IsAbs(clean) || strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid path %q", name)
	}
	return filepath.Join(ls.basePath, clean), nil
}

func (ls *LocalStorage) DeleteFile(name string) error {
	fullPath, err := ls.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
