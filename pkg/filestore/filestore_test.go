package filestore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileID(t *testing.T) {
	id := FileID("docs", "report.pdf", []byte("q1 figures"))

	if len(id) != FileIDLength {
		t.Fatalf("FileID length = %d, want %d", len(id), FileIDLength)
	}
	if again := FileID("docs", "report.pdf", []byte("q1 figures")); again != id {
		t.Errorf("FileID is not deterministic: %q then %q", id, again)
	}
	if other := FileID("docs", "report.pdf", []byte("q2 figures")); other == id {
		t.Error("different content produced the same id")
	}
	if other := FileID("docs", "summary.pdf", []byte("q1 figures")); other == id {
		t.Error("different filename produced the same id")
	}
	if other := FileID("invoices", "report.pdf", []byte("q1 figures")); other == id {
		t.Error("different endpoint produced the same id")
	}
	if !validFileID(id) {
		t.Errorf("FileID %q falls outside the URL-safe alphabet", id)
	}
}

func mustSave(t *testing.T, s Store, env, name, content string, overwrite bool) *Metadata {
	t.Helper()
	meta, _, err := s.Save(context.Background(), SaveRequest{
		Env:         env,
		Endpoint:    "docs",
		FileName:    name,
		ContentType: "text/plain",
		Uploader:    "svc-upload",
		Content:     []byte(content),
		Overwrite:   overwrite,
	})
	if err != nil {
		t.Fatalf("Save(%s/%s) failed: %v", env, name, err)
	}
	return meta
}

func listNames(t *testing.T, s Store, env, prefix string) []string {
	t.Helper()
	metas, err := s.List(context.Background(), env, prefix)
	if err != nil {
		t.Fatalf("List(%s, %q) failed: %v", env, prefix, err)
	}
	names := make([]string, len(metas))
	for i, m := range metas {
		names[i] = m.FileName
	}
	return names
}

// TestStoreContract runs the same behavioural suite against both backends:
// the two must be interchangeable behind the Store interface.
func TestStoreContract(t *testing.T) {
	backends := []struct {
		name string
		make func(t *testing.T) Store
	}{
		{"disk", func(t *testing.T) Store { return NewDisk(t.TempDir()) }},
		{"memory", func(t *testing.T) Store { return NewMemory() }},
	}

	scenarios := []struct {
		name string
		run  func(t *testing.T, s Store)
	}{
		{"save assigns metadata", testSaveAssignsMetadata},
		{"identical save is idempotent", testIdenticalSaveIsIdempotent},
		{"replacing a filename needs consent", testReplacementNeedsConsent},
		{"open round trips content", testOpenRoundTrip},
		{"open unknown id", testOpenUnknownID},
		{"delete removes the object", testDeleteRemoves},
		{"list filters by filename prefix", testListPrefix},
		{"environments are isolated", testEnvironmentIsolation},
		{"canceled context aborts", testCanceledContext},
	}

	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			for _, sc := range scenarios {
				t.Run(sc.name, func(t *testing.T) {
					sc.run(t, backend.make(t))
				})
			}
		})
	}
}

func testSaveAssignsMetadata(t *testing.T, s Store) {
	content := []byte("q1 figures")
	meta, created, err := s.Save(context.Background(), SaveRequest{
		Env:         "prod",
		Endpoint:    "docs",
		FileName:    "report.pdf",
		ContentType: "application/pdf",
		Uploader:    "svc-upload",
		Content:     content,
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !created {
		t.Error("first save reported created=false")
	}
	if want := FileID("docs", "report.pdf", content); meta.FileID != want {
		t.Errorf("FileID = %q, want %q", meta.FileID, want)
	}
	if meta.FileName != "report.pdf" {
		t.Errorf("FileName = %q, want report.pdf", meta.FileName)
	}
	if meta.ContentType != "application/pdf" {
		t.Errorf("ContentType = %q, want application/pdf", meta.ContentType)
	}
	if meta.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", meta.Size, len(content))
	}
	if meta.Uploader != "svc-upload" {
		t.Errorf("Uploader = %q, want svc-upload", meta.Uploader)
	}
	if meta.UploadedAt.IsZero() {
		t.Error("UploadedAt was not set")
	}
}

func testIdenticalSaveIsIdempotent(t *testing.T, s Store) {
	first := mustSave(t, s, "prod", "report.pdf", "q1 figures", false)

	meta, created, err := s.Save(context.Background(), SaveRequest{
		Env:      "prod",
		Endpoint: "docs",
		FileName: "report.pdf",
		Content:  []byte("q1 figures"),
	})
	if err != nil {
		t.Fatalf("re-saving identical content failed: %v", err)
	}
	if created {
		t.Error("identical re-save reported created=true")
	}
	if meta.FileID != first.FileID {
		t.Errorf("re-save changed the id: %q then %q", first.FileID, meta.FileID)
	}
	if names := listNames(t, s, "prod", ""); len(names) != 1 {
		t.Errorf("store holds %d entries after idempotent save, want 1", len(names))
	}
}

func testReplacementNeedsConsent(t *testing.T, s Store) {
	old := mustSave(t, s, "prod", "report.pdf", "q1 figures", false)

	_, _, err := s.Save(context.Background(), SaveRequest{
		Env:      "prod",
		Endpoint: "docs",
		FileName: "report.pdf",
		Content:  []byte("q2 figures"),
	})
	if !errors.Is(err, ErrNameExists) {
		t.Fatalf("unforced replacement: err = %v, want ErrNameExists", err)
	}

	replacement := mustSave(t, s, "prod", "report.pdf", "q2 figures", true)
	if replacement.FileID == old.FileID {
		t.Error("overwrite kept the old id for different content")
	}

	if _, _, err := s.Open(context.Background(), "prod", old.FileID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old id still opens after overwrite: err = %v", err)
	}
	rd, _, err := s.Open(context.Background(), "prod", replacement.FileID)
	if err != nil {
		t.Fatalf("Open(replacement) failed: %v", err)
	}
	defer rd.Close()
	got, err := io.ReadAll(rd)
	if err != nil {
		t.Fatalf("read replacement: %v", err)
	}
	if string(got) != "q2 figures" {
		t.Errorf("replacement content = %q, want %q", got, "q2 figures")
	}
}

func testOpenRoundTrip(t *testing.T, s Store) {
	saved := mustSave(t, s, "prod", "report.pdf", "q1 figures", false)

	rd, meta, err := s.Open(context.Background(), "prod", saved.FileID)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rd.Close()

	if meta.FileID != saved.FileID || meta.FileName != saved.FileName {
		t.Errorf("metadata mismatch: got %s/%s, want %s/%s",
			meta.FileID, meta.FileName, saved.FileID, saved.FileName)
	}
	got, err := io.ReadAll(rd)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "q1 figures" {
		t.Errorf("content = %q, want %q", got, "q1 figures")
	}

	// Range requests need a seekable reader.
	if _, err := rd.Seek(3, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}
	rest, err := io.ReadAll(rd)
	if err != nil {
		t.Fatalf("read after seek: %v", err)
	}
	if string(rest) != "figures" {
		t.Errorf("content after seek = %q, want %q", rest, "figures")
	}
}

func testOpenUnknownID(t *testing.T, s Store) {
	ghost := FileID("docs", "ghost.pdf", []byte("never stored"))
	if _, _, err := s.Open(context.Background(), "prod", ghost); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open(unknown) err = %v, want ErrNotFound", err)
	}
}

func testDeleteRemoves(t *testing.T, s Store) {
	saved := mustSave(t, s, "prod", "report.pdf", "q1 figures", false)

	if err := s.Delete(context.Background(), "prod", saved.FileID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, _, err := s.Open(context.Background(), "prod", saved.FileID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open after delete: err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(context.Background(), "prod", saved.FileID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
	if names := listNames(t, s, "prod", ""); len(names) != 0 {
		t.Errorf("List after delete = %v, want empty", names)
	}
}

func testListPrefix(t *testing.T, s Store) {
	mustSave(t, s, "prod", "beta.txt", "b", false)
	mustSave(t, s, "prod", "alpha.txt", "a", false)
	mustSave(t, s, "prod", "alpha.md", "m", false)

	all := listNames(t, s, "prod", "")
	want := []string{"alpha.md", "alpha.txt", "beta.txt"}
	if len(all) != len(want) {
		t.Fatalf("List(\"\") = %v, want %v", all, want)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Fatalf("List(\"\") = %v, want %v (sorted by name)", all, want)
		}
	}

	filtered := listNames(t, s, "prod", "alpha")
	if len(filtered) != 2 || filtered[0] != "alpha.md" || filtered[1] != "alpha.txt" {
		t.Errorf("List(\"alpha\") = %v, want [alpha.md alpha.txt]", filtered)
	}
	if none := listNames(t, s, "prod", "gamma"); len(none) != 0 {
		t.Errorf("List(\"gamma\") = %v, want empty", none)
	}
}

func testEnvironmentIsolation(t *testing.T, s Store) {
	prod := mustSave(t, s, "prod", "report.pdf", "q1 figures", false)
	dev := mustSave(t, s, "dev", "report.pdf", "q1 figures", false)

	// Same endpoint, name and content, so the ids collide by construction.
	// The environment keeps the objects apart anyway.
	if prod.FileID != dev.FileID {
		t.Fatalf("expected identical ids across environments, got %q and %q", prod.FileID, dev.FileID)
	}
	if names := listNames(t, s, "dev", ""); len(names) != 1 {
		t.Fatalf("List(dev) = %v, want one entry", names)
	}
	if err := s.Delete(context.Background(), "prod", prod.FileID); err != nil {
		t.Fatalf("Delete(prod) failed: %v", err)
	}
	if _, _, err := s.Open(context.Background(), "dev", dev.FileID); err != nil {
		t.Errorf("dev copy vanished after prod delete: %v", err)
	}
	if names := listNames(t, s, "prod", ""); len(names) != 0 {
		t.Errorf("List(prod) after delete = %v, want empty", names)
	}
}

func testCanceledContext(t *testing.T, s Store) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := s.Save(ctx, SaveRequest{Env: "prod", Endpoint: "docs", FileName: "x", Content: []byte("x")}); !errors.Is(err, context.Canceled) {
		t.Errorf("Save with canceled context: err = %v", err)
	}
	if _, _, err := s.Open(ctx, "prod", FileID("docs", "x", []byte("x"))); !errors.Is(err, context.Canceled) {
		t.Errorf("Open with canceled context: err = %v", err)
	}
	if err := s.Delete(ctx, "prod", FileID("docs", "x", []byte("x"))); !errors.Is(err, context.Canceled) {
		t.Errorf("Delete with canceled context: err = %v", err)
	}
	if _, err := s.List(ctx, "prod", ""); !errors.Is(err, context.Canceled) {
		t.Errorf("List with canceled context: err = %v", err)
	}
}

func TestDiskLayout(t *testing.T) {
	root := t.TempDir()
	s := NewDisk(root)

	if s.Root() != root {
		t.Fatalf("Root() = %q, want %q", s.Root(), root)
	}
	meta := mustSave(t, s, "prod", "report.pdf", "q1 figures", false)

	object := filepath.Join(root, "prod", meta.FileID)
	if _, err := os.Stat(object); err != nil {
		t.Errorf("object file missing: %v", err)
	}
	if _, err := os.Stat(object + metaSuffix); err != nil {
		t.Errorf("metadata sidecar missing: %v", err)
	}
}

func TestDiskRejectsEscapingIDs(t *testing.T) {
	root := t.TempDir()
	s := NewDisk(root)
	ctx := context.Background()

	// A real file outside the env directory that a crafted id must not reach.
	secret := filepath.Join(root, "secret")
	if err := os.WriteFile(secret, []byte("keep out"), 0o600); err != nil {
		t.Fatal(err)
	}

	ids := []string{
		"../secret",
		"../../../../etc/passwd",
		strings.Repeat("a", FileIDLength-1),
		strings.Repeat("a", FileIDLength+1),
		strings.Repeat("a", FileIDLength-2) + "/.",
		strings.Repeat(".", FileIDLength),
		"",
	}
	for _, id := range ids {
		if _, _, err := s.Open(ctx, "prod", id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Open(%q) err = %v, want ErrNotFound", id, err)
		}
		if err := s.Delete(ctx, "prod", id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete(%q) err = %v, want ErrNotFound", id, err)
		}
	}
	if _, err := os.Stat(secret); err != nil {
		t.Fatalf("planted file was touched: %v", err)
	}
}

func TestDiskListSkipsUnreadableSidecars(t *testing.T) {
	root := t.TempDir()
	s := NewDisk(root)

	mustSave(t, s, "prod", "report.pdf", "q1 figures", false)

	dir := filepath.Join(root, "prod")
	if err := os.WriteFile(filepath.Join(dir, strings.Repeat("z", FileIDLength)+metaSuffix), []byte("{broken"), 0o640); err != nil {
		t.Fatal(err)
	}
	// Leftover temp files from interrupted uploads are not listed either.
	if err := os.WriteFile(filepath.Join(dir, ".upload-550871"), []byte("partial"), 0o640); err != nil {
		t.Fatal(err)
	}

	names := listNames(t, s, "prod", "")
	if len(names) != 1 || names[0] != "report.pdf" {
		t.Errorf("List = %v, want [report.pdf]", names)
	}
}

func TestDiskListMissingEnvironment(t *testing.T) {
	s := NewDisk(t.TempDir())
	metas, err := s.List(context.Background(), "never-written", "")
	if err != nil {
		t.Fatalf("List on missing directory failed: %v", err)
	}
	if len(metas) != 0 {
		t.Errorf("List on missing directory = %d entries, want 0", len(metas))
	}
}
