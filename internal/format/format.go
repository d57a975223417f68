// Package format reads and writes resource files. Formats register by
// file extension; parse failures carry the path and position so a bad
// file aborts only its own operation.
package format

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/locforge/locforge/internal/model"
)

// ParseError is a malformed-file failure with its location.
type ParseError struct {
	Path string
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Col, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// Format reads and writes one resource file syntax.
type Format interface {
	// Name is the format's short identifier (e.g. "json", "po").
	Name() string

	// Extensions lists the file extensions the format claims,
	// including the leading dot.
	Extensions() []string

	// Read parses data into a resource file for the given language.
	Read(info model.LanguageInfo, data []byte) (*model.ResourceFile, error)

	// Write serializes a resource file.
	Write(f *model.ResourceFile) ([]byte, error)
}

var registry = map[string]Format{}

// Register makes a format available by its extensions. Later
// registrations win.
func Register(f Format) {
	for _, ext := range f.Extensions() {
		registry[strings.ToLower(ext)] = f
	}
}

// ByName returns a registered format by identifier.
func ByName(name string) (Format, bool) {
	for _, f := range registry {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// ByPath returns the format claiming the path's extension.
func ByPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	f, ok := registry[ext]
	if !ok {
		return nil, fmt.Errorf("no format registered for %q files", ext)
	}
	return f, nil
}

// Names lists the registered format identifiers, sorted.
func Names() []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range registry {
		if !seen[f.Name()] {
			seen[f.Name()] = true
			out = append(out, f.Name())
		}
	}
	sort.Strings(out)
	return out
}

// ReadFile parses the resource file at info.Path.
func ReadFile(info model.LanguageInfo) (*model.ResourceFile, error) {
	f, err := ByPath(info.Path)
	if err != nil {
		return nil, err
	}
	// #nosec G304 - the path comes from project discovery
	data, err := os.ReadFile(info.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", info.Path, err)
	}
	return f.Read(info, data)
}

// WriteFile serializes rf and writes it to its language's path
// atomically.
func WriteFile(rf *model.ResourceFile) error {
	f, err := ByPath(rf.Language.Path)
	if err != nil {
		return err
	}
	data, err := f.Write(rf)
	if err != nil {
		return err
	}
	tmp := rf.Language.Path + ".tmp"
	// #nosec G306 - resource files are project content
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rf.Language.Path, err)
	}
	if err := os.Rename(tmp, rf.Language.Path); err != nil {
		return fmt.Errorf("replace %s: %w", rf.Language.Path, err)
	}
	return nil
}

// lineCol converts a byte offset into a 1-based line and column.
func lineCol(data []byte, offset int64) (line, col int) {
	line, col = 1, 1
	for i := int64(0); i < offset && i < int64(len(data)); i++ {
		if data[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
