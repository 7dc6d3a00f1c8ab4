package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/portway-io/portway/internal/logger"
	"github.com/portway-io/portway/pkg/filestore"
	"github.com/portway-io/portway/pkg/gateway"
)

// DefaultMaxUploadBytes applies when the descriptor sets no cap.
const DefaultMaxUploadBytes = 32 << 20

// formOverhead covers multipart boundaries and part headers on top of the
// payload cap.
const formOverhead = 1 << 20

// File handles uploads, downloads, deletes and listings. Stores are created
// lazily per storage root and shared across requests; memory-only endpoints
// keep one store per endpoint so uploads survive between requests.
type File struct {
	defaultRoot string

	mu     sync.Mutex
	disk   map[string]*filestore.DiskStore
	memory map[string]*filestore.MemoryStore
}

// NewFile creates the file handler. defaultRoot backs endpoints whose
// descriptor and environment declare no storage root; it may be empty, in
// which case such endpoints fail at request time.
func NewFile(defaultRoot string) *File {
	return &File{
		defaultRoot: defaultRoot,
		disk:        make(map[string]*filestore.DiskStore),
		memory:      make(map[string]*filestore.MemoryStore),
	}
}

// fileEntry is one listing row.
type fileEntry struct {
	FileID       string    `json:"fileId"`
	FileName     string    `json:"fileName"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

func (h *File) Handle(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) error {
	spec := rc.Endpoint.File
	if spec == nil {
		return gateway.Internal(fmt.Errorf("endpoint %s has no file spec", rc.Endpoint.FullPath))
	}

	store, err := h.storeFor(rc)
	if err != nil {
		return err
	}

	switch {
	case rc.Method == http.MethodPost && len(rc.Rest) == 0:
		return h.upload(w, r, rc, store)
	case rc.Method == http.MethodGet && len(rc.Rest) == 1 && rc.Rest[0] == "list":
		return h.list(w, r, rc, store)
	case rc.Method == http.MethodGet && len(rc.Rest) == 1:
		return h.download(w, r, rc, store, rc.Rest[0])
	case rc.Method == http.MethodDelete && len(rc.Rest) == 1:
		return h.remove(w, r, rc, store, rc.Rest[0])
	default:
		return gateway.BadRequest("File endpoints accept POST, GET /{fileId}, GET /list and DELETE /{fileId}")
	}
}

// storeFor picks the backing store: memory-only endpoints get one in-memory
// store each, everything else shares a disk store per resolved root.
func (h *File) storeFor(rc *gateway.RequestContext) (filestore.Store, error) {
	spec := rc.Endpoint.File

	h.mu.Lock()
	defer h.mu.Unlock()

	if spec.MemoryOnly {
		st, ok := h.memory[rc.Endpoint.FullPath]
		if !ok {
			st = filestore.NewMemory()
			h.memory[rc.Endpoint.FullPath] = st
		}
		return st, nil
	}

	root := spec.StorageRoot
	if root == "" {
		root = rc.Environment.StorageRoot()
	}
	if root == "" {
		root = h.defaultRoot
	}
	if root == "" {
		return nil, gateway.Internal(fmt.Errorf("endpoint %s has no storage root configured", rc.Endpoint.FullPath))
	}

	st, ok := h.disk[root]
	if !ok {
		st = filestore.NewDisk(root)
		h.disk[root] = st
	}
	return st, nil
}

func (h *File) upload(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext, store filestore.Store) error {
	spec := rc.Endpoint.File
	maxBytes := spec.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return gateway.PayloadTooLarge("Upload exceeds the size limit of %d bytes", maxBytes)
		}
		return gateway.BadRequest("Multipart field 'file' is required").WithCause(err)
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return gateway.BadRequest("Uploaded file has no usable name")
	}
	if !spec.AllowsExtension(filename) {
		return gateway.Forbidden("File extension is not allowed for this endpoint")
	}

	content, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return gateway.BadRequest("Failed to read uploaded file").WithCause(err)
	}
	if int64(len(content)) > maxBytes {
		return gateway.PayloadTooLarge("Upload exceeds the size limit of %d bytes", maxBytes)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}

	uploader := ""
	if rc.Token != nil {
		uploader = rc.Token.Username
	}

	meta, created, err := store.Save(r.Context(), filestore.SaveRequest{
		Env:         rc.Environment.Name(),
		Endpoint:    rc.Endpoint.FullPath,
		FileName:    filename,
		ContentType: contentType,
		Uploader:    uploader,
		Content:     content,
		Overwrite:   rc.Query.Get("overwrite") == "true",
	})
	if err != nil {
		if errors.Is(err, filestore.ErrNameExists) {
			return gateway.Conflict("File '%s' already exists; pass overwrite=true to replace it", filename)
		}
		return gateway.Internal(err)
	}

	logger.InfoCtx(r.Context(), "file stored",
		logger.FileID(meta.FileID),
		logger.Filename(meta.FileName),
		logger.Size(meta.Size),
	)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	gateway.WriteJSON(w, status, meta)
	return nil
}

func (h *File) download(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext, store filestore.Store, fileID string) error {
	reader, meta, err := store.Open(r.Context(), rc.Environment.Name(), fileID)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return gateway.NotFound("File not found")
		}
		return gateway.Internal(err)
	}
	defer reader.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": meta.FileName})
	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("Content-Disposition", disposition)

	// ServeContent takes over ranges and conditional headers.
	http.ServeContent(w, r, meta.FileName, meta.UploadedAt, reader)
	return nil
}

func (h *File) remove(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext, store filestore.Store, fileID string) error {
	if err := store.Delete(r.Context(), rc.Environment.Name(), fileID); err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return gateway.NotFound("File not found")
		}
		return gateway.Internal(err)
	}

	logger.InfoCtx(r.Context(), "file deleted", logger.FileID(fileID))
	gateway.WriteJSON(w, http.StatusOK, gateway.MutationResult{
		Success: true,
		Message: "File deleted",
	})
	return nil
}

func (h *File) list(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext, store filestore.Store) error {
	entries, err := store.List(r.Context(), rc.Environment.Name(), rc.Query.Get("prefix"))
	if err != nil {
		return gateway.Internal(err)
	}

	out := make([]fileEntry, len(entries))
	for i, meta := range entries {
		out[i] = fileEntry{
			FileID:       meta.FileID,
			FileName:     meta.FileName,
			ContentType:  meta.ContentType,
			Size:         meta.Size,
			LastModified: meta.UploadedAt,
		}
	}

	gateway.WriteJSON(w, http.StatusOK, gateway.ListResult{Count: len(out), Value: out})
	return nil
}
