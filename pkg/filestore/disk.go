package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/portway-io/portway/internal/logger"
)

const metaSuffix = ".meta"

// DiskStore keeps objects under root/<env>/<fileId> with a JSON sidecar
// root/<env>/<fileId>.meta. Writes go through a temp file and rename, so a
// crash never leaves a half-written object under its final name.
type DiskStore struct {
	root string
}

// NewDisk creates a store rooted at the given directory.
func NewDisk(root string) *DiskStore {
	return &DiskStore{root: root}
}

// Root returns the configured base directory.
func (s *DiskStore) Root() string { return s.root }

func (s *DiskStore) envDir(env string) string {
	return filepath.Join(s.root, env)
}

func (s *DiskStore) Save(ctx context.Context, req SaveRequest) (*Metadata, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	id := FileID(req.Endpoint, req.FileName, req.Content)
	dir := s.envDir(req.Env)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, false, fmt.Errorf("create storage directory: %w", err)
	}

	// Same id means same content: the upload is already stored.
	if existing, err := s.readMeta(filepath.Join(dir, id+metaSuffix)); err == nil {
		return existing, false, nil
	}

	// A different id under the same original filename is a replacement and
	// needs explicit consent.
	prior, err := s.findByName(dir, req.FileName)
	if err != nil {
		return nil, false, err
	}
	if prior != nil {
		if !req.Overwrite {
			return nil, false, fmt.Errorf("%w: %s", ErrNameExists, req.FileName)
		}
		if err := s.remove(dir, prior.FileID); err != nil {
			return nil, false, err
		}
		logger.Debug("replaced stored file",
			logger.Filename(req.FileName),
			logger.FileID(prior.FileID),
		)
	}

	meta := &Metadata{
		FileID:      id,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Size:        int64(len(req.Content)),
		Uploader:    req.Uploader,
		UploadedAt:  time.Now().UTC(),
	}

	if err := writeAtomic(filepath.Join(dir, id), req.Content, 0o640); err != nil {
		return nil, false, fmt.Errorf("write file: %w", err)
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, false, fmt.Errorf("encode metadata: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, id+metaSuffix), raw, 0o640); err != nil {
		return nil, false, fmt.Errorf("write metadata: %w", err)
	}

	return meta, true, nil
}

func (s *DiskStore) Open(ctx context.Context, env, fileID string) (io.ReadSeekCloser, *Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if !validFileID(fileID) {
		return nil, nil, ErrNotFound
	}

	dir := s.envDir(env)
	meta, err := s.readMeta(filepath.Join(dir, fileID+metaSuffix))
	if err != nil {
		return nil, nil, ErrNotFound
	}

	f, err := os.Open(filepath.Join(dir, fileID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	return f, meta, nil
}

func (s *DiskStore) Delete(ctx context.Context, env, fileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validFileID(fileID) {
		return ErrNotFound
	}

	dir := s.envDir(env)
	if _, err := os.Stat(filepath.Join(dir, fileID)); os.IsNotExist(err) {
		return ErrNotFound
	}
	return s.remove(dir, fileID)
}

func (s *DiskStore) List(ctx context.Context, env, prefix string) ([]*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := s.envDir(env)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Metadata{}, nil
		}
		return nil, fmt.Errorf("read storage directory: %w", err)
	}

	out := make([]*Metadata, 0, len(entries)/2)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metaSuffix) {
			continue
		}
		meta, err := s.readMeta(filepath.Join(dir, entry.Name()))
		if err != nil {
			logger.Warn("skipping unreadable file metadata",
				logger.Path(entry.Name()),
				logger.Err(err),
			)
			continue
		}
		if prefix != "" && !strings.HasPrefix(meta.FileName, prefix) {
			continue
		}
		out = append(out, meta)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out, nil
}

func (s *DiskStore) remove(dir, fileID string) error {
	if err := os.Remove(filepath.Join(dir, fileID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	if err := os.Remove(filepath.Join(dir, fileID+metaSuffix)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove metadata: %w", err)
	}
	return nil
}

func (s *DiskStore) readMeta(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", filepath.Base(path), err)
	}
	return &meta, nil
}

// findByName scans the sidecars for an entry with the given original
// filename. Directories stay small enough that a scan beats maintaining a
// separate index that can go stale.
func (s *DiskStore) findByName(dir, filename string) (*Metadata, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read storage directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metaSuffix) {
			continue
		}
		meta, err := s.readMeta(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if meta.FileName == filename {
			return meta, nil
		}
	}
	return nil, nil
}

// validFileID rejects ids that could escape the environment directory.
func validFileID(id string) bool {
	if len(id) != FileIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

// writeAtomic writes through a temp file in the same directory and renames
// it into place. Concurrent identical writes race benignly: both rename the
// same bytes onto the same name.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
