package model

// Origin identifies which external source a sync-state record tracks.
// At most one record exists per (project, key, language, pluralForm,
// origin) tuple.
type Origin string

const (
	// OriginCloud tracks the authoritative cloud store.
	OriginCloud Origin = "cloud"

	// OriginGitHub tracks the GitHub repository copy.
	OriginGitHub Origin = "github"
)
