package model

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
)

// LanguageInfo identifies a single resource file within a project.
// An empty Code marks the default (source) language.
type LanguageInfo struct {
	BaseName    string `json:"base_name"`
	Code        string `json:"code"`
	DisplayName string `json:"display_name,omitempty"`
	IsDefault   bool   `json:"is_default,omitempty"`
	Path        string `json:"path"`
}

// NewLanguageInfo builds a LanguageInfo for a resource file path,
// validating the culture code when one is given.
func NewLanguageInfo(baseName, code, path string) (LanguageInfo, error) {
	info := LanguageInfo{
		BaseName:  baseName,
		Code:      code,
		IsDefault: code == "",
		Path:      path,
	}
	if code == "" {
		info.DisplayName = "default"
		return info, nil
	}
	tag, err := language.Parse(code)
	if err != nil {
		return LanguageInfo{}, fmt.Errorf("invalid language code %q: %w", code, err)
	}
	info.Code = tag.String()
	info.DisplayName = tag.String()
	return info, nil
}

// FileName returns the on-disk file name for this language given a
// format extension, e.g. strings.json / strings.de.json.
func (l LanguageInfo) FileName(ext string) string {
	if l.Code == "" {
		return l.BaseName + ext
	}
	return l.BaseName + "." + l.Code + ext
}

// ParseLanguageFromPath extracts the culture code from a resource file
// path following the base.code.ext convention. A path without a code
// segment is the default language.
func ParseLanguageFromPath(baseName, path string) (string, error) {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == baseName {
		return "", nil
	}
	prefix := baseName + "."
	if !strings.HasPrefix(stem, prefix) {
		return "", fmt.Errorf("file %q does not match base name %q", name, baseName)
	}
	code := strings.TrimPrefix(stem, prefix)
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("invalid language code %q in %q: %w", code, name, err)
	}
	return tag.String(), nil
}
