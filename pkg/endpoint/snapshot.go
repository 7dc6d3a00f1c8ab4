package endpoint

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LoadError records one descriptor that failed to load. The walk keeps
// going; a broken endpoint never takes down the rest of the tree.
type LoadError struct {
	Path string
	Err  error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Snapshot is one immutable view of the descriptor tree. Requests take a
// snapshot once and use it throughout; reloads build a new snapshot and
// swap it in atomically.
type Snapshot struct {
	definitions map[string]*Definition
	folded      map[string][]*Definition
	ordered     []*Definition
	errors      []LoadError
	dirs        []string
	loadedAt    time.Time
}

// load walks the descriptor tree under root. Every directory containing an
// entity descriptor becomes one endpoint; descriptor errors are recorded and
// skipped.
func load(root string) (*Snapshot, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("endpoint root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("endpoint root %s is not a directory", root)
	}

	snap := &Snapshot{
		definitions: make(map[string]*Definition),
		folded:      make(map[string][]*Definition),
		loadedAt:    time.Now(),
	}

	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			snap.errors = append(snap.errors, LoadError{Path: path, Err: walkErr})
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		snap.dirs = append(snap.dirs, path)

		if _, err := os.Stat(filepath.Join(path, DescriptorFileName)); err != nil {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			snap.errors = append(snap.errors, LoadError{
				Path: path,
				Err:  fmt.Errorf("descriptor must live in its own endpoint directory"),
			})
			return nil
		}

		namespace := ""
		name := filepath.Base(rel)
		if parent := filepath.Dir(rel); parent != "." {
			namespace = filepath.ToSlash(parent)
		}

		def, err := ParseDescriptor(path, namespace, name)
		if err != nil {
			snap.errors = append(snap.errors, LoadError{Path: path, Err: err})
			return nil
		}

		if _, dup := snap.definitions[def.FullPath]; dup {
			snap.errors = append(snap.errors, LoadError{
				Path: path,
				Err:  fmt.Errorf("duplicate endpoint %q", def.FullPath),
			})
			return nil
		}

		snap.definitions[def.FullPath] = def
		if def.Namespace == "" {
			key := strings.ToLower(def.Name)
			snap.folded[key] = append(snap.folded[key], def)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	snap.ordered = make([]*Definition, 0, len(snap.definitions))
	for _, def := range snap.definitions {
		snap.ordered = append(snap.ordered, def)
	}
	sort.Slice(snap.ordered, func(i, j int) bool {
		return snap.ordered[i].FullPath < snap.ordered[j].FullPath
	})

	return snap, nil
}

// Find resolves an endpoint name. Namespaced lookups are case-sensitive.
// A top-level name that misses exactly falls back to a case-insensitive
// match, but only when it is unambiguous; two candidates mean none wins.
func (s *Snapshot) Find(name string) (*Definition, bool) {
	if def, ok := s.definitions[name]; ok {
		return def, true
	}
	if strings.Contains(name, "/") {
		return nil, false
	}
	candidates := s.folded[strings.ToLower(name)]
	if len(candidates) == 1 {
		return candidates[0], true
	}
	return nil, false
}

// Definitions returns every loaded endpoint, sorted by FullPath.
func (s *Snapshot) Definitions() []*Definition {
	return s.ordered
}

// PublicDefinitions returns the endpoints that belong in discovery
// documents, excluding private ones.
func (s *Snapshot) PublicDefinitions() []*Definition {
	out := make([]*Definition, 0, len(s.ordered))
	for _, def := range s.ordered {
		if !def.IsPrivate {
			out = append(out, def)
		}
	}
	return out
}

// Errors returns the descriptors that failed to load in this snapshot.
func (s *Snapshot) Errors() []LoadError {
	return s.errors
}

// Len returns the number of loaded endpoints.
func (s *Snapshot) Len() int {
	return len(s.definitions)
}

// LoadedAt returns when this snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}
