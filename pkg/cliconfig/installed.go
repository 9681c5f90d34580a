// Package cliconfig implements the on-disk schema of installed.json, the
// CLI-side record of skills a user has installed. It exists so the
// registry's download contract (content hash, source coordinate, install
// metadata) stays consistent with what a client actually persists.
package cliconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// CurrentVersion is the schema version this package writes.
const CurrentVersion = 2

// defaultUpdateStrategy is filled in when upgrading a version-1 entry that
// predates the field.
const defaultUpdateStrategy = "manual"

// InstalledSkill is one entry in installed.json.
type InstalledSkill struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Source         string   `json:"source,omitempty"`
	RegistrySlug   string   `json:"registrySlug,omitempty"`
	UpdateStrategy string   `json:"updateStrategy"`
	Agents         []string `json:"agents"`
	Global         bool     `json:"global"`
	InstalledAt    time.Time `json:"installedAt"`
	SHA            string   `json:"sha,omitempty"`
	Path           string   `json:"path"`
	ContentHash    string   `json:"contentHash,omitempty"`
}

// key returns the (name, source) pair that uniquely identifies an entry.
func (s InstalledSkill) key() string {
	return s.Name + "\x00" + s.Source
}

// InstalledSkillsDB is the root shape of installed.json.
type InstalledSkillsDB struct {
	Version int              `json:"version"`
	Skills  []InstalledSkill `json:"skills"`
}

// versionOnlyEnvelope is used to sniff the schema version before deciding
// how to decode the skills array.
type versionOnlyEnvelope struct {
	Version int `json:"version"`
}

// v1InstalledSkill is the version-1 shape: no updateStrategy/agents/global.
type v1InstalledSkill struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Source      string    `json:"source,omitempty"`
	InstalledAt time.Time `json:"installedAt"`
	SHA         string    `json:"sha,omitempty"`
	Path        string    `json:"path"`
	ContentHash string    `json:"contentHash,omitempty"`
}

type v1DB struct {
	Version int                 `json:"version"`
	Skills  []v1InstalledSkill  `json:"skills"`
}

// Load reads and decodes installed.json from path. A version-1 document is
// upgraded to version 2 with documented defaults: UpdateStrategy "manual",
// Agents empty, Global false.
func Load(path string) (InstalledSkillsDB, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return InstalledSkillsDB{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var envelope versionOnlyEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return InstalledSkillsDB{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	switch envelope.Version {
	case CurrentVersion:
		var db InstalledSkillsDB
		if err := json.Unmarshal(raw, &db); err != nil {
			return InstalledSkillsDB{}, fmt.Errorf("parsing %s: %w", path, err)
		}
		return db, nil
	case 1:
		var old v1DB
		if err := json.Unmarshal(raw, &old); err != nil {
			return InstalledSkillsDB{}, fmt.Errorf("parsing version-1 %s: %w", path, err)
		}
		return upgradeV1(old), nil
	default:
		return InstalledSkillsDB{}, fmt.Errorf("unsupported installed.json version %d", envelope.Version)
	}
}

func upgradeV1(old v1DB) InstalledSkillsDB {
	skills := make([]InstalledSkill, len(old.Skills))
	for i, s := range old.Skills {
		skills[i] = InstalledSkill{
			Name:           s.Name,
			Description:    s.Description,
			Source:         s.Source,
			UpdateStrategy: defaultUpdateStrategy,
			Agents:         []string{},
			Global:         false,
			InstalledAt:    s.InstalledAt,
			SHA:            s.SHA,
			Path:           s.Path,
			ContentHash:    s.ContentHash,
		}
	}
	return InstalledSkillsDB{Version: CurrentVersion, Skills: skills}
}

// Save writes db to path atomically (write to a temp file, then rename).
func Save(path string, db InstalledSkillsDB) error {
	db.Version = CurrentVersion
	raw, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding installed.json: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("writing temp installed.json: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp installed.json: %w", err)
	}
	return nil
}

// Upsert inserts or replaces the entry keyed by (name, source).
func (db *InstalledSkillsDB) Upsert(entry InstalledSkill) {
	for i, existing := range db.Skills {
		if existing.key() == entry.key() {
			db.Skills[i] = entry
			return
		}
	}
	db.Skills = append(db.Skills, entry)
}

// Remove deletes the entry keyed by (name, source), reporting whether one was found.
func (db *InstalledSkillsDB) Remove(name, source string) bool {
	key := InstalledSkill{Name: name, Source: source}.key()
	for i, existing := range db.Skills {
		if existing.key() == key {
			db.Skills = append(db.Skills[:i], db.Skills[i+1:]...)
			return true
		}
	}
	return false
}
