package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrInvalidPath reports a path that would escape the store's base directory.
var ErrInvalidPath = errors.New("invalid path")

// Storage is the byte-level store reports are written through.
type Storage interface {
	Save(ctx context.Context, path string, data []byte) error
	Load(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, pattern string) ([]string, error)
	Delete(ctx context.Context, path string) error
}

type FileSystem struct {
	baseDir string
}

func NewFileSystem(baseDir string) *FileSystem {
	return &FileSystem{
		baseDir: filepath.Clean(baseDir),
	}
}

// BaseDir returns the directory every path is resolved against.
func (fs *FileSystem) BaseDir() string {
	return fs.baseDir
}

// sanitizePath resolves path inside the base directory, rejecting absolute
// paths and parent references.
func (fs *FileSystem) sanitizePath(path string) (string, error) {
	cleaned := filepath.Clean(path)
	if cleaned == "." || cleaned == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	if slices.Contains(strings.Split(filepath.ToSlash(cleaned), "/"), "..") {
		return "", fmt.Errorf("%w: contains parent directory reference", ErrInvalidPath)
	}
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: absolute paths not allowed", ErrInvalidPath)
	}

	fullPath := filepath.Join(fs.baseDir, cleaned)
	if !strings.HasPrefix(fullPath, fs.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: outside base directory", ErrInvalidPath)
	}
	return fullPath, nil
}

// Save writes data atomically: a temporary file in the target directory is
// renamed over the destination.
func (fs *FileSystem) Save(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := fs.sanitizePath(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("renaming file: %w", err)
	}
	return nil
}

func (fs *FileSystem) Load(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := fs.sanitizePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// List returns the paths, relative to the base directory, that match a glob
// pattern. Results are sorted.
func (fs *FileSystem) List(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cleaned := filepath.Clean(pattern)
	if slices.Contains(strings.Split(filepath.ToSlash(cleaned), "/"), "..") {
		return nil, fmt.Errorf("%w: pattern contains parent directory reference", ErrInvalidPath)
	}
	if filepath.IsAbs(cleaned) {
		return nil, fmt.Errorf("%w: absolute patterns not allowed", ErrInvalidPath)
	}

	matches, err := filepath.Glob(filepath.Join(fs.baseDir, cleaned))
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	results := make([]string, 0, len(matches))
	for _, match := range matches {
		if !strings.HasPrefix(match, fs.baseDir+string(filepath.Separator)) {
			continue
		}
		rel, err := filepath.Rel(fs.baseDir, match)
		if err != nil {
			continue
		}
		results = append(results, filepath.ToSlash(rel))
	}
	slices.Sort(results)
	return results, nil
}

func (fs *FileSystem) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := fs.sanitizePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
