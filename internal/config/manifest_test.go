package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testManifest() *Manifest {
	return &Manifest{
		Project:   "acme-app",
		BaseName:  "strings",
		Format:    "json",
		Languages: []string{"", "de", "fr"},
	}
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := testManifest()
	m.ServerURL = "https://loc.example.com"
	if err := m.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadManifest(dir)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if loaded.Project != "acme-app" || loaded.BaseName != "strings" {
		t.Errorf("manifest = %+v", loaded)
	}
	if loaded.ServerURL != "https://loc.example.com" {
		t.Errorf("ServerURL = %q", loaded.ServerURL)
	}
	if loaded.Dir() != dir {
		t.Errorf("Dir() = %q", loaded.Dir())
	}
}

func TestLoadManifestMissing(t *testing.T) {
	_, err := LoadManifest(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "locforge init") {
		t.Errorf("err = %v, want an init hint", err)
	}
}

func TestManifestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Manifest)
	}{
		{"missing project", func(m *Manifest) { m.Project = "" }},
		{"missing base name", func(m *Manifest) { m.BaseName = "" }},
		{"unknown format", func(m *Manifest) { m.Format = "ini" }},
		{"no languages", func(m *Manifest) { m.Languages = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			m := testManifest()
			tt.mutate(m)
			if err := m.Save(dir); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if _, err := LoadManifest(dir); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLanguageInfosDefaultFirst(t *testing.T) {
	dir := t.TempDir()
	m := testManifest()
	m.Languages = []string{"fr", "de", ""}
	if err := m.Save(dir); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}

	infos, err := loaded.LanguageInfos()
	if err != nil {
		t.Fatalf("LanguageInfos() error = %v", err)
	}
	if len(infos) != 3 || !infos[0].IsDefault {
		t.Fatalf("infos = %+v", infos)
	}
	if infos[1].Code != "de" || infos[2].Code != "fr" {
		t.Errorf("non-default languages should sort by code: %+v", infos)
	}
	if filepath.Base(infos[0].Path) != "strings.json" {
		t.Errorf("default path = %q", infos[0].Path)
	}
	if filepath.Base(infos[1].Path) != "strings.de.json" {
		t.Errorf("de path = %q", infos[1].Path)
	}
}

func TestReadFilesMissingAndMalformed(t *testing.T) {
	dir := t.TempDir()
	m := testManifest()
	m.Languages = []string{"", "de"}
	if err := m.Save(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "strings.json"), []byte(`{"Welcome":"Hello"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "strings.de.json"), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}

	files, errs := loaded.ReadFiles()
	if len(errs) != 1 {
		t.Fatalf("errs = %v", errs)
	}
	def, ok := files[""]
	if !ok || len(def.Entries) != 1 {
		t.Errorf("default file = %+v, %v", def, ok)
	}
	if _, ok := files["de"]; ok {
		t.Error("the malformed file must not be half-loaded")
	}
}
