// Package jsonstore keeps the metadata document as one JSON file next to the
// shared files.
package jsonstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pavel-fokin/lan-share/internal/files"
)

// FileName is the document's name inside the shared directory
const FileName = ".meta.json"

// Store implements files.MetadataStore
type Store struct {
	path string
}

// NewStore returns a store for the document in dir. The file is created on
// the first Save.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, FileName)}
}

// Path returns the document location
func (s *Store) Path() string {
	return s.path
}

// Load reads the document. A missing or corrupt file yields an empty document.
func (s *Store) Load(_ context.Context) files.Document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read metadata", "error", err, "path", s.path)
		}
		return files.Document{}
	}

	doc := files.Document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("Ignoring corrupt metadata", "error", err, "path", s.path)
		return files.Document{}
	}
	if doc == nil {
		// the file held a JSON null
		return files.Document{}
	}
	return doc
}

// Save serializes the whole document and replaces the previous one
func (s *Store) Save(_ context.Context, doc files.Document) error {
	if doc == nil {
		doc = files.Document{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace metadata: %w", err)
	}
	return nil
}

// ReservedNames implements files.MetadataStore
func (s *Store) ReservedNames() []string {
	return []string{FileName, FileName + ".tmp"}
}
