// Package blobstore manages the flat uploads directory holding original
// images and rendered GIF artifacts, addressed by filename.
package blobstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrUnsafeName marks filenames that could escape the uploads directory.
var ErrUnsafeName = errors.New("unsafe blob name")

// Store is a flat directory of files addressed by safe filenames.
type Store struct {
	dir string
}

// New returns a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the uploads directory path.
func (s *Store) Dir() string {
	return s.dir
}

// CheckName rejects names containing path separators or traversal sequences.
// Every entry point that accepts a caller-supplied filename must pass it
// through here before touching the filesystem.
func CheckName(name string) error {
	if name == "" ||
		strings.Contains(name, "..") ||
		strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return nil
}

// Path returns the absolute path for a blob name after validating it.
func (s *Store) Path(name string) (string, error) {
	if err := CheckName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// Write stores data under name, truncating any existing blob.
func (s *Store) Write(name string, data []byte) (string, error) {
	path, err := s.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob %s: %w", name, err)
	}
	return path, nil
}

// Open returns a reader for the named blob along with its size.
func (s *Store) Open(name string) (io.ReadCloser, int64, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, 0, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, err
	}
	return file, info.Size(), nil
}

// Exists reports whether the named blob is present.
func (s *Store) Exists(name string) bool {
	path, err := s.Path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Remove deletes the named blob. A missing blob returns fs.ErrNotExist so
// callers can distinguish "already gone" from real filesystem failures.
func (s *Store) Remove(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return fmt.Errorf("remove blob %s: %w", name, err)
	}
	return nil
}

// ContentType infers a media content type from the filename extension.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

// IsImageName reports whether the filename extension implies an image type
// the catalog accepts for upload.
func IsImageName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg":
		return true
	default:
		return false
	}
}

// DiskUsage describes capacity of the volume backing the uploads directory.
type DiskUsage struct {
	TotalBytes uint64
	FreeBytes  uint64
}

// Usage reports disk capacity for the uploads volume.
func (s *Store) Usage() (DiskUsage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(s.dir, &stat); err != nil {
		return DiskUsage{}, fmt.Errorf("statfs %s: %w", s.dir, err)
	}
	blockSize := uint64(stat.Bsize)
	return DiskUsage{
		TotalBytes: uint64(stat.Blocks) * blockSize,
		FreeBytes:  uint64(stat.Bavail) * blockSize,
	}, nil
}
