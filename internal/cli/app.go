package cli

import (
	"fmt"
	"os"
	"os/user"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/locforge/locforge/internal/client"
	"github.com/locforge/locforge/internal/config"
	"github.com/locforge/locforge/internal/model"
	"github.com/locforge/locforge/internal/state"
	"github.com/locforge/locforge/internal/ui"
)

// env bundles everything a project-scoped command needs: the global
// config, the project manifest, and the API client.
type env struct {
	cfg      *config.Config
	manifest *config.Manifest
	client   *client.Client
	dir      string
}

func loadEnv(cmd *cli.Command) (*env, error) {
	dir := cmd.String("dir")
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	m, err := config.LoadManifest(dir)
	if err != nil {
		return nil, err
	}

	serverURL := cfg.Server.URL
	if m.ServerURL != "" {
		serverURL = m.ServerURL
	}
	if serverURL == "" {
		return nil, fmt.Errorf("no server URL configured (set server.url in %s or server_url in %s)",
			config.FilePath(), config.ManifestFileName)
	}

	c := client.New(serverURL, cfg.Server.APIToken, cfg.Server.RequestTimeout).WithActor(actorName())
	return &env{cfg: cfg, manifest: m, client: c, dir: dir}, nil
}

// openState acquires the project's local sync state and lock.
func (e *env) openState() (*state.Store, error) {
	return state.Open(e.dir, e.manifest.Project)
}

// readFiles loads the working copy. A malformed file is reported and
// its language dropped from the set; the remaining files still sync.
func (e *env) readFiles() (map[string]*model.ResourceFile, error) {
	files, errs := e.manifest.ReadFiles()
	for _, err := range errs {
		fmt.Fprintln(os.Stderr, ui.StatusWarning(fmt.Sprintf("skipping malformed file: %v", err)))
	}
	if len(files) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("every resource file failed to parse")
	}
	return files, nil
}

// orderedFiles returns the working copy as a slice, default language
// first, the rest sorted by code.
func orderedFiles(files map[string]*model.ResourceFile) []*model.ResourceFile {
	codes := make([]string, 0, len(files))
	for code := range files {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if (codes[i] == "") != (codes[j] == "") {
			return codes[i] == ""
		}
		return codes[i] < codes[j]
	})
	out := make([]*model.ResourceFile, 0, len(codes))
	for _, code := range codes {
		out = append(out, files[code])
	}
	return out
}

// fileFor returns the working-copy file for a language code.
func fileFor(files map[string]*model.ResourceFile, code string) (*model.ResourceFile, error) {
	f, ok := files[code]
	if !ok {
		return nil, fmt.Errorf("language %q is not tracked by this project", displayLang(code))
	}
	return f, nil
}

func displayLang(code string) string {
	if code == "" {
		return "default"
	}
	return code
}

func actorName() string {
	if a := os.Getenv("LOCFORGE_ACTOR"); a != "" {
		return a
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "cli"
}
