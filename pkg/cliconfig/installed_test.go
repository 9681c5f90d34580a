package cliconfig

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "installed.json")

	want := InstalledSkillsDB{
		Version: CurrentVersion,
		Skills: []InstalledSkill{
			{
				Name:           "foo",
				Description:    "Does foo",
				Source:         "acme/widget",
				RegistrySlug:   "acme-widget-foo",
				UpdateStrategy: "auto",
				Agents:         []string{"claude", "cursor"},
				Global:         true,
				InstalledAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
				SHA:            "abc123",
				Path:           "skills/foo",
				ContentHash:    "sha256:deadbeef",
			},
		},
	}

	if err := Save(path, want); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if got.Version != want.Version {
		t.Errorf("Version = %d, want %d", got.Version, want.Version)
	}
	if len(got.Skills) != 1 {
		t.Fatalf("len(Skills) = %d, want 1", len(got.Skills))
	}
	if !reflect.DeepEqual(got.Skills[0], want.Skills[0]) {
		t.Errorf("Skills[0] = %+v, want %+v", got.Skills[0], want.Skills[0])
	}
}

func TestLoadUpgradesVersion1(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "installed.json")

	v1JSON := `{
		"version": 1,
		"skills": [
			{"name": "foo", "description": "Does foo", "source": "acme/widget",
			 "installedAt": "2026-01-02T03:04:05Z", "path": "skills/foo"}
		]
	}`
	if err := os.WriteFile(path, []byte(v1JSON), 0o644); err != nil {
		t.Fatal(err)
	}

	db, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if db.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", db.Version, CurrentVersion)
	}
	if len(db.Skills) != 1 {
		t.Fatalf("len(Skills) = %d, want 1", len(db.Skills))
	}
	s := db.Skills[0]
	if s.UpdateStrategy != defaultUpdateStrategy {
		t.Errorf("UpdateStrategy = %q, want %q", s.UpdateStrategy, defaultUpdateStrategy)
	}
	if s.Agents == nil || len(s.Agents) != 0 {
		t.Errorf("Agents = %v, want empty non-nil slice", s.Agents)
	}
	if s.Global {
		t.Error("Global should default to false")
	}
	if s.Name != "foo" || s.Path != "skills/foo" {
		t.Errorf("unexpected carried-over fields: %+v", s)
	}
}

func TestUpsertAndRemove(t *testing.T) {
	db := InstalledSkillsDB{Version: CurrentVersion}

	db.Upsert(InstalledSkill{Name: "foo", Source: "acme/widget", Path: "skills/foo"})
	db.Upsert(InstalledSkill{Name: "bar", Source: "acme/other", Path: "skills/bar"})
	if len(db.Skills) != 2 {
		t.Fatalf("len(Skills) = %d, want 2", len(db.Skills))
	}

	db.Upsert(InstalledSkill{Name: "foo", Source: "acme/widget", Path: "skills/foo-updated"})
	if len(db.Skills) != 2 {
		t.Fatalf("Upsert of existing key should not grow the slice, got len %d", len(db.Skills))
	}

	found := false
	for _, s := range db.Skills {
		if s.Name == "foo" && s.Path == "skills/foo-updated" {
			found = true
		}
	}
	if !found {
		t.Error("expected foo entry to be updated in place")
	}

	if !db.Remove("foo", "acme/widget") {
		t.Error("expected Remove to report true for existing entry")
	}
	if len(db.Skills) != 1 {
		t.Fatalf("len(Skills) after Remove = %d, want 1", len(db.Skills))
	}
	if db.Remove("missing", "nowhere") {
		t.Error("expected Remove to report false for missing entry")
	}
}
