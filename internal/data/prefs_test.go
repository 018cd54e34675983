package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskops/telegram-bridge/internal/biz/domain"
)

func TestPrefsRepo_MissingFileYieldsDefaults(t *testing.T) {
	r := NewPrefsRepo(t.TempDir(), "qwen2.5:7b")

	p := r.Load()
	if p.Model != "qwen2.5:7b" {
		t.Errorf("Expected default model, got %q", p.Model)
	}
}

func TestPrefsRepo_CorruptFileYieldsDefaults(t *testing.T) {
	stateDir := t.TempDir()
	path := filepath.Join(stateDir, "runtime-checkpoints", "prefs.json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := NewPrefsRepo(stateDir, "qwen2.5:7b")
	p := r.Load()
	if p.Model != "qwen2.5:7b" {
		t.Errorf("Expected defaults for corrupt file, got %q", p.Model)
	}
}

func TestPrefsRepo_SaveLoadRoundTrip(t *testing.T) {
	stateDir := t.TempDir()
	r := NewPrefsRepo(stateDir, "qwen2.5:7b")

	saved := domain.Preferences{Model: "llama3:8b", SavedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	if err := r.Save(saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	p := r.Load()
	if p.Model != "llama3:8b" {
		t.Errorf("Expected persisted model, got %q", p.Model)
	}
	if !p.SavedAt.Equal(saved.SavedAt) {
		t.Errorf("Expected persisted timestamp, got %v", p.SavedAt)
	}
}

func TestPrefsRepo_SaveLeavesNoTempFiles(t *testing.T) {
	stateDir := t.TempDir()
	r := NewPrefsRepo(stateDir, "qwen2.5:7b")

	if err := r.Save(domain.Preferences{Model: "llama3:8b"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(stateDir, "runtime-checkpoints"))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "prefs.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only prefs.json, got %v", names)
	}
}

func TestPrefsRepo_EmptyModelFallsBackToDefault(t *testing.T) {
	stateDir := t.TempDir()
	path := filepath.Join(stateDir, "runtime-checkpoints", "prefs.json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(`{"model":""}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := NewPrefsRepo(stateDir, "qwen2.5:7b")
	if p := r.Load(); p.Model != "qwen2.5:7b" {
		t.Errorf("Expected default for empty model, got %q", p.Model)
	}
}
