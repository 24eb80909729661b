package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/pavel-fokin/lan-share/internal/files"
	"github.com/pavel-fokin/lan-share/internal/fs"
	"github.com/pavel-fokin/lan-share/internal/jsonstore"
	"github.com/pavel-fokin/lan-share/internal/metrics"
	"github.com/pavel-fokin/lan-share/internal/network"
	"github.com/pavel-fokin/lan-share/internal/sqlite"
)

const (
	headerDeviceID   = "X-Device-Id"
	headerDeviceName = "X-Device-Name"

	qrSize = 256
)

func New(cfg *Config) (*http.Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level, _ := parseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	storage, err := fs.NewStorage(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var (
		store   files.MetadataStore
		closeDB func() error
	)
	switch cfg.MetadataBackend {
	case BackendSQLite:
		repo, err := sqlite.NewRepository(cfg.DBPath, cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize repository: %w", err)
		}
		store, closeDB = repo, repo.Close
	default:
		store = jsonstore.NewStore(cfg.Dir)
	}

	fileService := files.NewService(storage, store)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("GET /api/files", listFiles(fileService))
	mux.Handle("POST /api/upload", limitBody(uploadFiles(fileService), cfg.MaxUploadSize))
	mux.HandleFunc("GET /files/{filename}", downloadFile(fileService))
	mux.HandleFunc("DELETE /api/files/{filename}", deleteFile(fileService))
	mux.HandleFunc("GET /api/info", shareInfo(cfg))
	mux.HandleFunc("GET /api/qr", shareQR(cfg))
	if cfg.Metrics {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	mux.Handle("GET /", staticFiles())

	handler := loggingMiddleware(recoverer(secureHeaders(cors(mux))))

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if closeDB != nil {
		srv.RegisterOnShutdown(func() {
			if err := closeDB(); err != nil {
				slog.Error("Failed to close repository", "error", err)
			}
		})
	}

	return srv, nil
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type listResponse struct {
	Files []files.SharedFile `json:"files"`
}

func listFiles(fileService *files.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := fileService.List(r.Context())
		if err != nil {
			slog.Error("List files failed", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		metrics.SetSharedFiles(len(list))
		writeJSON(w, http.StatusOK, listResponse{Files: list})
	}
}

type uploadResponse struct {
	OK       bool     `json:"ok"`
	Uploaded []string `json:"uploaded"`
}

func uploadFiles(fileService *files.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		device := files.NewDevice(r.Header.Get(headerDeviceID), r.Header.Get(headerDeviceName))

		uploaded, err := fileService.Upload(r.Context(), &partReader{mr: mr}, device)
		var maxErr *http.MaxBytesError
		switch {
		case err == nil:
		case errors.Is(err, files.ErrMetadataSave):
			metrics.RecordMetadataSaveFailure()
			slog.Warn("Upload metadata not saved", "error", err, "files", uploaded)
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "Request entity too large")
			return
		case errors.Is(err, errMalformedUpload), errors.Is(err, files.ErrInvalidName):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		default:
			slog.Error("Upload failed", "error", err, "saved", uploaded)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		metrics.RecordUpload(len(uploaded))
		slog.Info("Files uploaded", "files", uploaded, "device_id", device.ID, "device_name", device.Name)
		writeJSON(w, http.StatusOK, uploadResponse{OK: true, Uploaded: uploaded})
	}
}

var errMalformedUpload = errors.New("malformed multipart body")

// partReader streams the file parts of a multipart body in request order.
// Parts without a filename are form fields and are skipped.
type partReader struct {
	mr   *multipart.Reader
	part *multipart.Part
}

func (p *partReader) Next() (files.Incoming, error) {
	for {
		if p.part != nil {
			p.part.Close()
			p.part = nil
		}

		part, err := p.mr.NextPart()
		if err == io.EOF {
			return files.Incoming{}, io.EOF
		}
		if err != nil {
			return files.Incoming{}, malformed(err)
		}

		name, ok := partFilename(part)
		if !ok {
			part.Close()
			continue
		}
		p.part = part
		return files.Incoming{Name: name, Content: bodyReader{part}}, nil
	}
}

// partFilename returns the filename as sent by the client. Part.FileName
// would strip its directories.
func partFilename(part *multipart.Part) (string, bool) {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return "", false
	}
	name, ok := params["filename"]
	return name, ok
}

// bodyReader marks read failures of a part as client errors
type bodyReader struct {
	r io.Reader
}

func (b bodyReader) Read(buf []byte) (int, error) {
	n, err := b.r.Read(buf)
	if err != nil && err != io.EOF {
		err = malformed(err)
	}
	return n, err
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w", errMalformedUpload, err)
}

func downloadFile(fileService *files.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("filename")

		f, entry, err := fileService.Open(r.Context(), name)
		switch {
		case err == nil:
		case errors.Is(err, files.ErrInvalidName):
			metrics.RecordDownload("invalid")
			http.Error(w, "Invalid filename", http.StatusBadRequest)
			return
		case errors.Is(err, files.ErrNotFound):
			metrics.RecordDownload("not_found")
			http.Error(w, "Not found", http.StatusNotFound)
			return
		default:
			metrics.RecordDownload("error")
			slog.Error("Download failed", "error", err, "filename", name)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer f.Close()

		metrics.RecordDownload("ok")
		w.Header().Set("Content-Disposition", contentDisposition(entry.Name))
		http.ServeContent(w, r, entry.Name, entry.ModifiedAt, f)
	}
}

func deleteFile(fileService *files.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("filename")

		err := fileService.Delete(r.Context(), name)
		switch {
		case err == nil:
		case errors.Is(err, files.ErrMetadataSave):
			metrics.RecordMetadataSaveFailure()
			slog.Warn("Delete metadata not saved", "error", err, "filename", name)
		case errors.Is(err, files.ErrInvalidName):
			writeError(w, http.StatusBadRequest, "Invalid filename")
			return
		case errors.Is(err, files.ErrNotFound):
			writeError(w, http.StatusNotFound, "Not found")
			return
		default:
			slog.Error("Delete failed", "error", err, "filename", name)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		metrics.RecordDelete()
		slog.Info("File deleted", "filename", name)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

type infoResponse struct {
	URL string `json:"url"`
}

func shareInfo(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, infoResponse{URL: shareURL(cfg, r)})
	}
}

func shareQR(cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		png, err := qrcode.Encode(shareURL(cfg, r), qrcode.Medium, qrSize)
		if err != nil {
			slog.Error("QR encoding failed", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(png); err != nil {
			slog.Debug("Failed to write QR code", "error", err)
		}
	}
}

// shareURL reports the LAN address of the listener that accepted r
func shareURL(cfg *Config, r *http.Request) string {
	port := cfg.Port
	if addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		if p := network.PortOf(addr); p != 0 {
			port = p
		}
	}
	return network.ShareURL(network.LocalIP(), port)
}

func contentDisposition(name string) string {
	return fmt.Sprintf("attachment; filename=\"%s\"", strings.ReplaceAll(name, `"`, `\"`))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
