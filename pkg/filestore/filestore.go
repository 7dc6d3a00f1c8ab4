// Package filestore persists uploaded files content-addressed: the file id
// is derived from the endpoint, the original filename, and the bytes, so a
// repeated upload of the same content lands on the same object and writes
// are idempotent.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"time"
)

// FileIDLength is the truncated length of the URL-safe base64 digest.
const FileIDLength = 22

var (
	// ErrNotFound is returned when a file id does not exist in the store.
	ErrNotFound = errors.New("file not found")

	// ErrNameExists is returned when a different file with the same
	// original filename is already stored and overwrite was not requested.
	ErrNameExists = errors.New("filename already exists")
)

// Metadata is the sidecar record kept next to each stored object.
type Metadata struct {
	FileID      string    `json:"fileId"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Uploader    string    `json:"uploader"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// SaveRequest describes one upload.
type SaveRequest struct {
	Env         string
	Endpoint    string
	FileName    string
	ContentType string
	Uploader    string
	Content     []byte

	// Overwrite permits replacing an existing object that has the same
	// original filename but different content.
	Overwrite bool
}

// Store is the persistence contract of file endpoints. Implementations are
// safe for concurrent use.
type Store interface {
	// Save stores the content and returns its metadata. The second result
	// reports whether a new object was created; saving identical content
	// again succeeds without it.
	Save(ctx context.Context, req SaveRequest) (*Metadata, bool, error)

	// Open returns the content and metadata for a file id.
	Open(ctx context.Context, env, fileID string) (io.ReadSeekCloser, *Metadata, error)

	// Delete removes the object and its metadata.
	Delete(ctx context.Context, env, fileID string) error

	// List returns metadata for every file in the environment whose
	// original filename starts with prefix. Empty prefix lists all.
	List(ctx context.Context, env, prefix string) ([]*Metadata, error)
}

// FileID derives the content address for an upload.
func FileID(endpointName, filename string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(endpointName))
	h.Write([]byte(filename))
	h.Write(content)
	sum := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return sum[:FileIDLength]
}
