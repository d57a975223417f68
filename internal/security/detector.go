// Package security scans resource values for leaked credentials
// before they are pushed to the cloud or committed to GitHub.
// Translators paste surrounding text into values often enough that
// this is worth a pass on every push.
package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/locforge/locforge/internal/model"
	"github.com/locforge/locforge/internal/sync"
)

// Severity classifies a finding. Errors block the push; warnings are
// reported and let it proceed.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Pattern is one detectable credential shape.
type Pattern struct {
	Name        string
	Pattern     *regexp.Regexp
	Description string
	Severity    Severity
}

// DefaultPatterns returns the built-in credential patterns.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:        "API Key",
			Pattern:     regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*['"]?[a-zA-Z0-9_\-]{16,}['"]?`),
			Description: "API key pattern detected",
			Severity:    SeverityWarning,
		},
		{
			Name:        "Token",
			Pattern:     regexp.MustCompile(`(?i)(token|access[_-]?token|auth[_-]?token)\s*[:=]\s*['"]?[a-zA-Z0-9_\-\.]{16,}['"]?`),
			Description: "Authentication token pattern detected",
			Severity:    SeverityWarning,
		},
		{
			Name:        "AWS Access Key",
			Pattern:     regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
			Description: "AWS access key detected",
			Severity:    SeverityError,
		},
		{
			Name:        "GitHub Token",
			Pattern:     regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{36,}`),
			Description: "GitHub access token detected",
			Severity:    SeverityError,
		},
		{
			Name:        "Private Key",
			Pattern:     regexp.MustCompile(`-----BEGIN\s+(RSA\s+)?PRIVATE\s+KEY-----`),
			Description: "Private key detected",
			Severity:    SeverityError,
		},
		{
			Name:        "Bearer Token",
			Pattern:     regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-\.]{20,}`),
			Description: "Bearer token detected",
			Severity:    SeverityWarning,
		},
		{
			Name:        "Connection String",
			Pattern:     regexp.MustCompile(`(?i)(postgres|mysql|mongodb|redis)://[^:\s]+:[^@\s]+@`),
			Description: "Connection string with credentials detected",
			Severity:    SeverityError,
		},
	}
}

// Finding is one match in one entry value.
type Finding struct {
	Ref         sync.EntryRef
	Pattern     string
	Description string
	Severity    Severity
	Excerpt     string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s in %s: %s", f.Description, f.Ref, f.Excerpt)
}

// Detector scans entry values against a pattern set.
type Detector struct {
	patterns []Pattern
}

// NewDetector creates a detector. A nil or empty pattern list uses
// DefaultPatterns.
func NewDetector(patterns []Pattern) *Detector {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	return &Detector{patterns: patterns}
}

// ScanValue checks one value and returns any findings.
func (d *Detector) ScanValue(ref sync.EntryRef, value string) []Finding {
	if value == "" || isPlaceholder(value) {
		return nil
	}
	var findings []Finding
	for _, p := range d.patterns {
		if p.Pattern.MatchString(value) {
			findings = append(findings, Finding{
				Ref:         ref,
				Pattern:     p.Name,
				Description: p.Description,
				Severity:    p.Severity,
				Excerpt:     truncate(value, 80),
			})
		}
	}
	return findings
}

// ScanEntry checks all plural forms of an entry.
func (d *Detector) ScanEntry(language string, e model.ResourceEntry) []Finding {
	var findings []Finding
	for _, form := range e.Forms() {
		ref := sync.EntryRef{Key: e.Key, Language: language, PluralForm: form.Category}
		findings = append(findings, d.ScanValue(ref, form.Value)...)
	}
	return findings
}

// ScanChangeSet checks the values of a change-set about to be pushed.
// Deletions carry no value and are skipped.
func (d *Detector) ScanChangeSet(cs *sync.ChangeSet) []Finding {
	var findings []Finding
	for _, ch := range cs.Changes {
		if ch.Kind == sync.ChangeDeleted {
			continue
		}
		findings = append(findings, d.ScanValue(ch.Ref, ch.Value)...)
	}
	return findings
}

// HasBlocking reports whether any finding is severe enough to stop
// the push.
func HasBlocking(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// isPlaceholder skips values that are documentation stand-ins rather
// than live credentials.
func isPlaceholder(value string) bool {
	lower := strings.ToLower(value)
	return strings.Contains(lower, "your_") ||
		strings.Contains(lower, "<your") ||
		strings.Contains(lower, "placeholder") ||
		strings.Contains(lower, "example_") ||
		strings.Contains(lower, "xxxxxxxx")
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
