package files

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrInvalidName is returned when a client-supplied filename fails sanitization.
	ErrInvalidName = errors.New("invalid filename")

	// ErrNotFound is returned when no regular file exists under the given name.
	ErrNotFound = errors.New("file not found")

	// ErrStorageUnavailable is returned when the shared directory cannot be read.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrMetadataSave marks a metadata document write failure. The file
	// operation it accompanied has already succeeded.
	ErrMetadataSave = errors.New("metadata save failed")
)

// SharedFile is a file in the shared directory enriched with device metadata
type SharedFile struct {
	Name       string     `json:"name"`
	Size       int64      `json:"size"`
	ModifiedAt time.Time  `json:"mtime"`
	DeviceID   *string    `json:"deviceId"`
	DeviceName *string    `json:"deviceName"`
	UploadedAt *time.Time `json:"uploadedAt"`
}

// Record attributes a stored file to the device that uploaded it
type Record struct {
	DeviceID   string    `json:"deviceId,omitempty"`
	DeviceName string    `json:"deviceName,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Document maps stored filenames to their records
type Document map[string]Record

// Device identifies the uploading browser. Both fields are optional.
type Device struct {
	ID   string
	Name string
}

// Empty reports whether neither identifier is set.
func (d Device) Empty() bool {
	return d.ID == "" && d.Name == ""
}

// Incoming is a single file of an upload batch
type Incoming struct {
	Name    string
	Content io.Reader
}

// IncomingReader yields the files of an upload batch in request order. Next
// returns io.EOF after the last file. Content is only valid until the
// following call to Next.
type IncomingReader interface {
	Next() (Incoming, error)
}

// StagedFile is upload content held by the storage but not yet visible under
// its final name
type StagedFile struct {
	ID   string
	Size int64
}

// Entry is a regular file found in the shared directory
type Entry struct {
	Name       string
	Size       int64
	ModifiedAt time.Time
}

// FileStorage defines the physical storage of the shared directory
type FileStorage interface {
	// List returns every regular file in the directory
	List() ([]Entry, error)

	// Stat returns the entry for name, or ErrNotFound
	Stat(name string) (Entry, error)

	// Stage writes content to a hidden location
	Stage(content io.Reader) (StagedFile, error)

	// Commit publishes a staged file under name, replacing any existing file
	Commit(staged StagedFile, name string) error

	// Discard drops a staged file that will not be committed
	Discard(staged StagedFile) error

	// IsReserved reports whether the storage keeps name for its own use
	IsReserved(name string) bool

	// Open returns the file content for reading
	Open(name string) (io.ReadSeekCloser, error)

	// Delete removes the file
	Delete(name string) error
}

// MetadataStore persists the metadata document as a single unit
type MetadataStore interface {
	// Load returns the stored document. Read failures yield an empty document.
	Load(ctx context.Context) Document

	// Save replaces the stored document with doc
	Save(ctx context.Context, doc Document) error

	// ReservedNames lists files the store keeps in the shared directory
	ReservedNames() []string
}
