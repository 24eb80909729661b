package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pavel-fokin/lan-share/internal/files"
)

// tempPrefix marks in-flight uploads. Such files are never listed.
const tempPrefix = ".upload-"

// Storage implements files.FileStorage over a single flat directory
type Storage struct {
	dataDir string
}

// NewStorage creates the directory if needed and returns a storage rooted at it
func NewStorage(dataDir string) (*Storage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Storage{dataDir: dataDir}, nil
}

// Dir returns the shared directory
func (s *Storage) Dir() string {
	return s.dataDir
}

// List returns every regular file in the directory
func (s *Storage) List() ([]files.Entry, error) {
	dirEntries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	entries := make([]files.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.Type().IsRegular() || strings.HasPrefix(de.Name(), tempPrefix) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// removed since ReadDir
			continue
		}
		entries = append(entries, entryFromInfo(info))
	}
	return entries, nil
}

// Stat returns the entry for a regular file
func (s *Storage) Stat(name string) (files.Entry, error) {
	// Lstat: a symlink is not a regular file, even when its target is.
	info, err := os.Lstat(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return files.Entry{}, files.ErrNotFound
		}
		return files.Entry{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return files.Entry{}, files.ErrNotFound
	}
	return entryFromInfo(info), nil
}

// Stage writes content to a temp file in the directory. The temp file is
// hidden from List until Commit renames it.
func (s *Storage) Stage(content io.Reader) (files.StagedFile, error) {
	tmp, err := os.CreateTemp(s.dataDir, tempPrefix+"*")
	if err != nil {
		return files.StagedFile{}, fmt.Errorf("failed to create file: %w", err)
	}
	tmpName := tmp.Name()

	size, err := io.Copy(tmp, content)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return files.StagedFile{}, fmt.Errorf("failed to write file content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return files.StagedFile{}, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return files.StagedFile{}, fmt.Errorf("failed to chmod file: %w", err)
	}

	return files.StagedFile{ID: filepath.Base(tmpName), Size: size}, nil
}

// Commit renames a staged file over name
func (s *Storage) Commit(staged files.StagedFile, name string) error {
	if s.IsReserved(name) {
		return fmt.Errorf("%w: %q uses a reserved prefix", files.ErrInvalidName, name)
	}
	tmpName, err := s.stagedPath(staged)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// Discard removes a staged file
func (s *Storage) Discard(staged files.StagedFile) error {
	tmpName, err := s.stagedPath(staged)
	if err != nil {
		return err
	}
	if err := os.Remove(tmpName); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove staged file: %w", err)
	}
	return nil
}

// IsReserved reports whether name is used for in-flight uploads
func (s *Storage) IsReserved(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}

// Open returns a reader for the file content
func (s *Storage) Open(name string) (io.ReadSeekCloser, error) {
	f, err := os.Open(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, files.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete removes a file
func (s *Storage) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return files.ErrNotFound
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *Storage) path(name string) string {
	return filepath.Join(s.dataDir, name)
}

func (s *Storage) stagedPath(staged files.StagedFile) (string, error) {
	if !s.IsReserved(staged.ID) || filepath.Base(staged.ID) != staged.ID {
		return "", fmt.Errorf("unknown staged file %q", staged.ID)
	}
	return s.path(staged.ID), nil
}

func entryFromInfo(info os.FileInfo) files.Entry {
	return files.Entry{
		Name:       info.Name(),
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}
}
