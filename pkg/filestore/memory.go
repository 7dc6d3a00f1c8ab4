package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps objects in process memory. Used by endpoints marked
// MemoryOnly and by tests; contents vanish on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	envs map[string]map[string]*memEntry
}

type memEntry struct {
	meta    Metadata
	content []byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{envs: make(map[string]map[string]*memEntry)}
}

func (s *MemoryStore) Save(ctx context.Context, req SaveRequest) (*Metadata, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	id := FileID(req.Endpoint, req.FileName, req.Content)

	s.mu.Lock()
	defer s.mu.Unlock()

	env := s.envs[req.Env]
	if env == nil {
		env = make(map[string]*memEntry)
		s.envs[req.Env] = env
	}

	if existing, ok := env[id]; ok {
		meta := existing.meta
		return &meta, false, nil
	}

	for priorID, entry := range env {
		if entry.meta.FileName != req.FileName {
			continue
		}
		if !req.Overwrite {
			return nil, false, fmt.Errorf("%w: %s", ErrNameExists, req.FileName)
		}
		delete(env, priorID)
		break
	}

	meta := Metadata{
		FileID:      id,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Size:        int64(len(req.Content)),
		Uploader:    req.Uploader,
		UploadedAt:  time.Now().UTC(),
	}
	env[id] = &memEntry{meta: meta, content: append([]byte(nil), req.Content...)}

	out := meta
	return &out, true, nil
}

func (s *MemoryStore) Open(ctx context.Context, env, fileID string) (io.ReadSeekCloser, *Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.envs[env][fileID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	meta := entry.meta
	return nopSeekCloser{bytes.NewReader(entry.content)}, &meta, nil
}

func (s *MemoryStore) Delete(ctx context.Context, env, fileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.envs[env][fileID]; !ok {
		return ErrNotFound
	}
	delete(s.envs[env], fileID)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, env, prefix string) ([]*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Metadata, 0, len(s.envs[env]))
	for _, entry := range s.envs[env] {
		if prefix != "" && !strings.HasPrefix(entry.meta.FileName, prefix) {
			continue
		}
		meta := entry.meta
		out = append(out, &meta)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out, nil
}

type nopSeekCloser struct{ *bytes.Reader }

func (nopSeekCloser) Close() error { return nil }
