package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/taskops/telegram-bridge/internal/biz/domain"
	"github.com/taskops/telegram-bridge/internal/biz/repo"
)

// prefsRepo persists preferences to one small JSON file under the runtime
// checkpoints directory. Best-effort by contract: a missing or corrupt file
// yields defaults, write failures are logged and swallowed by callers.
type prefsRepo struct {
	path     string
	defaults domain.Preferences
}

// NewPrefsRepo creates a preference store rooted at stateDir.
func NewPrefsRepo(stateDir, defaultModel string) repo.Prefs {
	return &prefsRepo{
		path:     filepath.Join(stateDir, "runtime-checkpoints", "prefs.json"),
		defaults: domain.Preferences{Model: defaultModel},
	}
}

func (r *prefsRepo) Load() domain.Preferences {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return r.defaults
	}
	var p domain.Preferences
	if err := json.Unmarshal(raw, &p); err != nil {
		fmt.Printf("[Prefs] Corrupt preference file, using defaults: %v\n", err)
		return r.defaults
	}
	if p.Model == "" {
		p.Model = r.defaults.Model
	}
	return p
}

// Save writes the preferences atomically: temp file in the same directory,
// then rename.
func (r *prefsRepo) Save(p domain.Preferences) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create prefs directory: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, "prefs.json.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp prefs file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp prefs file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp prefs file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("rename prefs file: %w", err)
	}
	return nil
}
