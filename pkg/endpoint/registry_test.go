package endpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func createTestTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeEndpoint(t, root, "items", `{"ObjectName": "Items", "AllowedColumns": ["Code"]}`)
	writeEndpoint(t, root, "Products", `{"ObjectName": "Products", "AllowedColumns": ["Id"]}`)
	writeEndpoint(t, root, "internal/reports", `{"TargetUrlTemplate": "https://reports/{env}"}`)
	writeEndpoint(t, root, "secrets", `{"ObjectName": "Secrets", "IsPrivate": true}`)

	return root
}

func TestRegistryLoad(t *testing.T) {
	reg, err := NewRegistry(createTestTree(t))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	snap := reg.Snapshot()
	if snap.Len() != 4 {
		t.Fatalf("Len = %d, expected 4", snap.Len())
	}
	if len(snap.Errors()) != 0 {
		t.Fatalf("unexpected load errors: %v", snap.Errors())
	}
	if snap.LoadedAt().IsZero() {
		t.Error("LoadedAt not set")
	}
}

func TestRegistryRecordsBrokenDescriptors(t *testing.T) {
	root := createTestTree(t)
	writeEndpoint(t, root, "broken", `{not json`)
	writeEndpoint(t, root, "halfbroken", `{"ObjectName": "X", "AllowedColumns": ["A"], "RequiredColumns": ["B"]}`)

	reg, err := NewRegistry(root)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	snap := reg.Snapshot()
	if snap.Len() != 4 {
		t.Errorf("Len = %d, healthy endpoints must survive broken siblings", snap.Len())
	}
	if len(snap.Errors()) != 2 {
		t.Fatalf("expected 2 load errors, got %v", snap.Errors())
	}
	for _, le := range snap.Errors() {
		if le.Path == "" || le.Err == nil {
			t.Errorf("load error missing path or cause: %+v", le)
		}
	}
	if _, ok := snap.Find("broken"); ok {
		t.Error("broken descriptor must not be registered")
	}
}

func TestRegistryRejectsMissingRoot(t *testing.T) {
	if _, err := NewRegistry(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestSnapshotFind(t *testing.T) {
	reg, err := NewRegistry(createTestTree(t))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	snap := reg.Snapshot()

	t.Run("ExactMatch", func(t *testing.T) {
		def, ok := snap.Find("items")
		if !ok || def.FullPath != "items" {
			t.Errorf("Find(items) = %v, %v", def, ok)
		}
	})

	t.Run("CaseInsensitiveFallback", func(t *testing.T) {
		def, ok := snap.Find("products")
		if !ok || def.FullPath != "Products" {
			t.Errorf("Find(products) = %v, %v", def, ok)
		}
	})

	t.Run("NamespacedExact", func(t *testing.T) {
		def, ok := snap.Find("internal/reports")
		if !ok || def.Kind != KindProxy {
			t.Errorf("Find(internal/reports) = %v, %v", def, ok)
		}
	})

	t.Run("NamespacedIsCaseSensitive", func(t *testing.T) {
		if _, ok := snap.Find("internal/REPORTS"); ok {
			t.Error("namespaced lookup must not fall back case-insensitively")
		}
		if _, ok := snap.Find("INTERNAL/reports"); ok {
			t.Error("namespace segment must match exactly")
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if _, ok := snap.Find("ghost"); ok {
			t.Error("unknown endpoint must not resolve")
		}
	})

	t.Run("FindsPrivateEndpoints", func(t *testing.T) {
		def, ok := snap.Find("secrets")
		if !ok || !def.IsPrivate {
			t.Error("Find must return private endpoints, callers decide exposure")
		}
	})
}

func TestSnapshotFindAmbiguous(t *testing.T) {
	root := t.TempDir()
	writeEndpoint(t, root, "Orders", `{"ObjectName": "A"}`)
	writeEndpoint(t, root, "orders", `{"ObjectName": "B"}`)

	reg, err := NewRegistry(root)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	snap := reg.Snapshot()
	if snap.Len() != 2 {
		t.Skip("filesystem folds case, cannot create ambiguous pair")
	}

	if _, ok := snap.Find("ORDERS"); ok {
		t.Error("ambiguous case-insensitive match must not resolve")
	}
	if def, ok := snap.Find("Orders"); !ok || def.SQL.ObjectName != "A" {
		t.Error("exact match must still win over ambiguity")
	}
}

func TestPublicDefinitions(t *testing.T) {
	reg, err := NewRegistry(createTestTree(t))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	for _, def := range reg.Snapshot().PublicDefinitions() {
		if def.IsPrivate {
			t.Errorf("private endpoint %q leaked into public listing", def.FullPath)
		}
	}
	if got := len(reg.Snapshot().PublicDefinitions()); got != 3 {
		t.Errorf("public definitions = %d, expected 3", got)
	}
}

func TestRegistryReload(t *testing.T) {
	root := createTestTree(t)
	reg, err := NewRegistry(root)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	before := reg.Snapshot()

	writeEndpoint(t, root, "orders", `{"ObjectName": "Orders"}`)
	if err := reg.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	after := reg.Snapshot()
	if _, ok := after.Find("orders"); !ok {
		t.Error("reload must pick up new endpoints")
	}
	if after.Len() != before.Len()+1 {
		t.Errorf("Len after reload = %d", after.Len())
	}

	// Callers holding the previous snapshot keep a consistent view.
	if _, ok := before.Find("orders"); ok {
		t.Error("old snapshot must not change after reload")
	}
	if before.Len() != 4 {
		t.Errorf("old snapshot Len = %d", before.Len())
	}
}

func TestRegistryReloadDropsRemovedEndpoints(t *testing.T) {
	root := createTestTree(t)
	reg, err := NewRegistry(root)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if err := os.RemoveAll(filepath.Join(root, "items")); err != nil {
		t.Fatalf("remove endpoint dir: %v", err)
	}
	if err := reg.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if _, ok := reg.Snapshot().Find("items"); ok {
		t.Error("removed endpoint still resolves after reload")
	}
}

func TestRegistryStartStop(t *testing.T) {
	reg, err := NewRegistry(createTestTree(t))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if err := reg.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	reg.Stop()
	reg.Stop() // stopping twice is fine
}
