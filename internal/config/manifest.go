package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/locforge/locforge/internal/format"
	"github.com/locforge/locforge/internal/model"
)

// ManifestFileName is the per-project manifest locforge looks for in
// the working directory.
const ManifestFileName = "locforge.toml"

// Manifest describes one localization project: its identity, resource
// file layout, and languages.
type Manifest struct {
	// Project is the project's id on the server.
	Project string `toml:"project"`

	// BaseName is the resource file stem; the default language lives in
	// <base_name>.<ext>, others in <base_name>.<code>.<ext>.
	BaseName string `toml:"base_name"`

	// Format is the resource file format identifier.
	Format string `toml:"format"`

	// Languages lists the tracked language codes; "" is the default
	// language.
	Languages []string `toml:"languages"`

	// ServerURL overrides the global server URL for this project.
	ServerURL string `toml:"server_url,omitempty"`

	dir string
}

// LoadManifest reads the manifest from dir.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFileName)
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no %s found in %s (run `locforge init`)", ManifestFileName, dir)
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.dir = dir
	return &m, nil
}

// Save writes the manifest into dir.
func (m *Manifest) Save(dir string) error {
	path := filepath.Join(dir, ManifestFileName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	m.dir = dir
	return nil
}

func (m *Manifest) validate() error {
	if m.Project == "" {
		return fmt.Errorf("project id is required")
	}
	if m.BaseName == "" {
		return fmt.Errorf("base_name is required")
	}
	if _, ok := format.ByName(m.Format); !ok {
		return fmt.Errorf("unknown format %q (known: %v)", m.Format, format.Names())
	}
	if len(m.Languages) == 0 {
		return fmt.Errorf("at least one language is required")
	}
	return nil
}

// Dir returns the directory the manifest was loaded from.
func (m *Manifest) Dir() string {
	return m.dir
}

// Extension returns the file extension for the manifest's format,
// including the leading dot.
func (m *Manifest) Extension() string {
	f, _ := format.ByName(m.Format)
	return f.Extensions()[0]
}

// LanguageInfos resolves the manifest's languages to concrete resource
// file paths under the project directory, sorted with the default
// language first.
func (m *Manifest) LanguageInfos() ([]model.LanguageInfo, error) {
	langs := append([]string(nil), m.Languages...)
	sort.Slice(langs, func(i, j int) bool {
		if (langs[i] == "") != (langs[j] == "") {
			return langs[i] == ""
		}
		return langs[i] < langs[j]
	})

	infos := make([]model.LanguageInfo, 0, len(langs))
	for _, code := range langs {
		info, err := model.NewLanguageInfo(m.BaseName, code, "")
		if err != nil {
			return nil, err
		}
		info.Path = filepath.Join(m.dir, info.FileName(m.Extension()))
		infos = append(infos, info)
	}
	return infos, nil
}

// ReadFiles parses every tracked resource file. Missing files yield
// empty resource files; malformed ones are reported per file so the
// rest of the set still loads.
func (m *Manifest) ReadFiles() (map[string]*model.ResourceFile, []error) {
	infos, err := m.LanguageInfos()
	if err != nil {
		return nil, []error{err}
	}
	files := make(map[string]*model.ResourceFile, len(infos))
	var errs []error
	for _, info := range infos {
		if _, err := os.Stat(info.Path); os.IsNotExist(err) {
			files[info.Code] = model.NewResourceFile(info)
			continue
		}
		rf, err := format.ReadFile(info)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		files[info.Code] = rf
	}
	return files, errs
}
