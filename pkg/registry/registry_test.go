package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/zen-systems/taskroute/pkg/schema"
)

func TestBuildProfiles(t *testing.T) {
	profiles := BuildProfiles([]Entry{
		{ID: "b", State: "ready", Tags: []string{"Coding", " backend "}, ContextWindow: 8192, LatencyMillis: 120, Locality: "local", Model: "llama-3.1-8b", Version: "q4"},
		{ID: "a", State: "STARTING", Locality: "cloud", Fingerprint: "ff00"},
		{ID: "", State: "READY"},
	})

	if len(profiles) != 2 {
		t.Fatalf("expected blank-id entry dropped, got %d profiles", len(profiles))
	}
	if profiles[0].ID != "a" || profiles[1].ID != "b" {
		t.Fatalf("expected deterministic id order, got %v, %v", profiles[0].ID, profiles[1].ID)
	}

	a, b := profiles[0], profiles[1]
	if a.State != schema.StateStarting || a.Locality != schema.LocalityCloud {
		t.Fatalf("entry a parsed wrong: %+v", a)
	}
	if a.Fingerprint != "ff00" {
		t.Fatalf("explicit fingerprint dropped: %q", a.Fingerprint)
	}

	if b.State != schema.StateReady || b.Locality != schema.LocalityLocal {
		t.Fatalf("entry b parsed wrong: %+v", b)
	}
	if !b.HasTag(schema.TagCoding) || !b.HasTag(schema.TagBackend) {
		t.Fatalf("tags not normalized: %v", b.Tags)
	}
	if b.Fingerprint != schema.Fingerprint("llama-3.1-8b", "q4") {
		t.Fatalf("fingerprint not derived from model/version")
	}
}

func TestBuildProfilesEmpty(t *testing.T) {
	if got := BuildProfiles(nil); len(got) != 0 {
		t.Fatalf("expected empty profile list, got %v", got)
	}
}

func TestBuildProfilesUnknownState(t *testing.T) {
	profiles := BuildProfiles([]Entry{{ID: "x", State: "rebooting"}})
	if profiles[0].State != schema.StateUnavailable {
		t.Fatalf("unknown state should map to UNAVAILABLE, got %s", profiles[0].State)
	}
}

func TestFileRegistrySnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	content := `instances:
  - id: ollama-1
    state: READY
    tags: [coding, backend]
    context_window: 8192
    latency_ms: 90
    locality: LOCAL
    model: llama-3.1-8b
    version: q4_K_M
  - id: cloud-1
    state: STARTING
    locality: CLOUD
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := NewFileRegistry(path).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "ollama-1" || entries[0].ContextWindow != 8192 {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
}

func TestFileRegistryMissingFile(t *testing.T) {
	_, err := NewFileRegistry(filepath.Join(t.TempDir(), "nope.yaml")).Snapshot(context.Background())
	if err == nil {
		t.Fatalf("expected error for missing registry file")
	}
}

func TestStaticRegistrySetState(t *testing.T) {
	reg := NewStaticRegistry(Entry{ID: "a", State: "READY"})
	reg.SetState("a", "ERROR")

	entries, err := reg.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].State != "ERROR" {
		t.Fatalf("SetState not applied: %+v", entries[0])
	}
}
