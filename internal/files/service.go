package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	MaxDeviceIDLen   = 64
	MaxDeviceNameLen = 128
)

// Service is the registry of the shared directory. It owns both the files on
// disk and the metadata document describing who uploaded them.
type Service struct {
	storage  FileStorage
	store    MetadataStore
	reserved map[string]struct{}

	// mu serializes metadata read-modify-write cycles
	mu  sync.Mutex
	now func() time.Time
}

// NewService creates a new file service
func NewService(storage FileStorage, store MetadataStore) *Service {
	reserved := make(map[string]struct{})
	for _, name := range store.ReservedNames() {
		reserved[name] = struct{}{}
	}
	return &Service{
		storage:  storage,
		store:    store,
		reserved: reserved,
		now:      time.Now,
	}
}

// NewDevice builds a Device from raw header values, truncating each to its
// maximum length.
func NewDevice(id, name string) Device {
	return Device{
		ID:   truncate(id, MaxDeviceIDLen),
		Name: truncate(name, MaxDeviceNameLen),
	}
}

// List returns the shared files, most recently modified first
func (s *Service) List(ctx context.Context) ([]SharedFile, error) {
	entries, err := s.storage.List()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	doc := s.store.Load(ctx)

	list := make([]SharedFile, 0, len(entries))
	for _, e := range entries {
		if s.isReserved(e.Name) {
			continue
		}
		f := SharedFile{
			Name:       e.Name,
			Size:       e.Size,
			ModifiedAt: e.ModifiedAt,
		}
		if rec, ok := doc[e.Name]; ok {
			f.DeviceID = optional(rec.DeviceID)
			f.DeviceName = optional(rec.DeviceName)
			uploadedAt := rec.UploadedAt
			f.UploadedAt = &uploadedAt
		}
		list = append(list, f)
	}

	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].ModifiedAt.Equal(list[j].ModifiedAt) {
			return list[i].ModifiedAt.After(list[j].ModifiedAt)
		}
		return list[i].Name < list[j].Name
	})

	return list, nil
}

// Upload stores every file read from parts, replacing files of the same
// name, and attributes the batch to device. Files are staged as they arrive
// and only published once the whole batch has been read: one invalid name
// rejects the batch before anything becomes visible. When a name repeats,
// the later file wins.
//
// A returned error wrapping ErrMetadataSave means every file was stored.
func (s *Service) Upload(ctx context.Context, parts IncomingReader, device Device) ([]string, error) {
	var pending []pendingUpload
	discard := func(list []pendingUpload) {
		for _, p := range list {
			if err := s.storage.Discard(p.staged); err != nil {
				slog.Warn("Failed to discard staged upload", "error", err, "filename", p.name)
			}
		}
	}

	for {
		in, err := parts.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			discard(pending)
			return nil, err
		}

		name, err := s.uploadName(in.Name)
		if err != nil {
			discard(pending)
			return nil, err
		}

		staged, err := s.storage.Stage(in.Content)
		if err != nil {
			discard(pending)
			return nil, fmt.Errorf("failed to save %s: %w", name, err)
		}
		pending = append(pending, pendingUpload{name: name, staged: staged})
	}

	uploaded := make([]string, 0, len(pending))
	for i, p := range pending {
		if err := s.storage.Commit(p.staged, p.name); err != nil {
			discard(pending[i:])
			return uploaded, fmt.Errorf("failed to save %s: %w", p.name, err)
		}
		uploaded = append(uploaded, p.name)
	}

	if len(uploaded) == 0 || device.Empty() {
		return uploaded, nil
	}

	uploadedAt := s.now().UTC()
	err := s.updateMetadata(ctx, func(doc Document) bool {
		for _, name := range uploaded {
			doc[name] = Record{
				DeviceID:   device.ID,
				DeviceName: device.Name,
				UploadedAt: uploadedAt,
			}
		}
		return true
	})
	return uploaded, err
}

type pendingUpload struct {
	name   string
	staged StagedFile
}

// uploadName resolves the stored name of an incoming file
func (s *Service) uploadName(raw string) (string, error) {
	if raw == "" {
		raw = fmt.Sprintf("upload-%d", s.now().UnixMilli())
	}
	name, err := Sanitize(raw)
	if err != nil {
		return "", err
	}
	if s.isReserved(name) {
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	return name, nil
}

// Open returns the content of the named file. The caller closes it.
func (s *Service) Open(ctx context.Context, raw string) (io.ReadSeekCloser, Entry, error) {
	entry, err := s.lookup(raw)
	if err != nil {
		return nil, Entry{}, err
	}

	// The file may disappear between the lookup and the open.
	f, err := s.storage.Open(entry.Name)
	if err != nil {
		return nil, Entry{}, err
	}
	return f, entry, nil
}

// Delete removes the named file and then its metadata record, if any.
//
// A returned error wrapping ErrMetadataSave means the file itself was removed.
func (s *Service) Delete(ctx context.Context, raw string) error {
	entry, err := s.lookup(raw)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(entry.Name); err != nil {
		return err
	}

	return s.updateMetadata(ctx, func(doc Document) bool {
		if _, ok := doc[entry.Name]; !ok {
			return false
		}
		delete(doc, entry.Name)
		return true
	})
}

// lookup sanitizes raw and resolves it to a regular file
func (s *Service) lookup(raw string) (Entry, error) {
	name, err := Sanitize(raw)
	if err != nil {
		return Entry{}, err
	}
	if s.isReserved(name) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	entry, err := s.storage.Stat(name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Entry{}, err
	}
	return entry, nil
}

// updateMetadata runs one load-mutate-save cycle. mutate reports whether it
// changed the document; an unchanged document is not written back.
func (s *Service) updateMetadata(ctx context.Context, mutate func(Document) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.store.Load(ctx)
	if doc == nil {
		doc = Document{}
	}
	if !mutate(doc) {
		return nil
	}
	if err := s.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMetadataSave, err)
	}
	return nil
}

func (s *Service) isReserved(name string) bool {
	if _, ok := s.reserved[name]; ok {
		return true
	}
	return s.storage.IsReserved(name)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func truncate(v string, max int) string {
	if utf8.RuneCountInString(v) <= max {
		return v
	}
	runes := []rune(v)
	return string(runes[:max])
}
