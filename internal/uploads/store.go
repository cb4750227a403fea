// Package uploads stores event images on local disk under a fixed directory.
// Filenames are randomized to avoid collisions; only the stored name is kept
// on the event record.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxFileBytes caps a single uploaded image.
const MaxFileBytes = 5 << 20 // 5MB

var (
	ErrUnsupportedType = errors.New("Only JPG, JPEG, PNG allowed")
	ErrTooLarge        = fmt.Errorf("image exceeds %d bytes", MaxFileBytes)
	ErrInvalidName     = errors.New("invalid file name")
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

type Store struct {
	dir      string
	maxBytes int64
}

func NewStore(dir string, maxBytes int64) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("uploads: dir is required")
	}
	if maxBytes <= 0 {
		maxBytes = MaxFileBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("uploads: create dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the directory files are stored under, for static serving.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes an uploaded image to disk under a randomized name and returns
// that name.
func (s *Store) Save(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		return "", ErrUnsupportedType
	}
	if header.Size > s.maxBytes {
		return "", ErrTooLarge
	}

	name := uuid.New().String() + ext
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("uploads: create file: %w", err)
	}
	defer dst.Close()

	// LimitReader guards against a lying Content-Length.
	written, err := io.Copy(dst, io.LimitReader(file, s.maxBytes+1))
	if err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("uploads: write file: %w", err)
	}
	if written > s.maxBytes {
		_ = os.Remove(dst.Name())
		return "", ErrTooLarge
	}

	return name, nil
}

// Remove deletes a stored file by name. Names containing path separators or
// dot components are rejected so records can never reach outside the uploads
// directory.
func (s *Store) Remove(name string) error {
	if !validName(name) {
		return ErrInvalidName
	}
	return os.Remove(filepath.Join(s.dir, name))
}

// Path returns the on-disk path for a stored name.
func (s *Store) Path(name string) (string, error) {
	if !validName(name) {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}

// validName accepts only plain file names. filepath.Base leaves "." and ".."
// intact, so they need their own check.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return name == filepath.Base(name)
}
