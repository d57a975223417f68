package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/locforge/locforge/internal/format"
	"github.com/locforge/locforge/internal/state"
	"github.com/locforge/locforge/internal/sync"
	"github.com/locforge/locforge/internal/ui"
	"github.com/locforge/locforge/internal/ui/tui"
)

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve sync conflicts",
		Description: `Resolve conflicts interactively or in bulk.

   Without flags an interactive resolver opens for the project's local
   conflicts. With --github the server's pending GitHub conflicts are
   resolved instead.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "github",
				Usage: "Resolve the server's pending GitHub conflicts",
			},
			&cli.BoolFlag{
				Name:  "keep-local",
				Usage: "Resolve every conflict by keeping the local/cloud value",
			},
			&cli.BoolFlag{
				Name:  "keep-remote",
				Usage: "Resolve every conflict by taking the remote/GitHub value",
			},
			&cli.BoolFlag{
				Name:  "prompt",
				Usage: "Use the line-based prompt instead of the full-screen resolver",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}

			bulk, err := bulkChoice(cmd)
			if err != nil {
				return err
			}

			if cmd.Bool("github") {
				return resolveGitHub(ctx, e, cmd, bulk)
			}
			return resolveLocal(ctx, e, cmd, bulk)
		},
	}
}

func bulkChoice(cmd *cli.Command) (sync.ResolutionChoice, error) {
	if cmd.Bool("keep-local") && cmd.Bool("keep-remote") {
		return "", errors.New("--keep-local and --keep-remote are mutually exclusive")
	}
	if cmd.Bool("keep-local") {
		return sync.ResolutionKeepLocal, nil
	}
	if cmd.Bool("keep-remote") {
		return sync.ResolutionKeepRemote, nil
	}
	return "", nil
}

func resolveLocal(_ context.Context, e *env, cmd *cli.Command, bulk sync.ResolutionChoice) error {
	files, err := e.readFiles()
	if err != nil {
		return err
	}
	st, err := e.openState()
	if err != nil {
		return err
	}
	defer st.Close()

	conflicts := st.Conflicts()
	if len(conflicts) == 0 {
		fmt.Println(ui.StatusSuccess("no local conflicts"))
		return nil
	}

	resolutions, err := chooseResolutions(cmd, bulk, localConflictItems(conflicts))
	if err != nil {
		return err
	}
	if len(resolutions) == 0 {
		fmt.Println(ui.Dim("nothing resolved"))
		return nil
	}

	byRef := make(map[sync.EntryRef]state.Conflict, len(conflicts))
	for _, c := range conflicts {
		byRef[sync.EntryRef{Key: c.Key, Language: c.Language, PluralForm: c.PluralForm}] = c
	}

	for _, r := range resolutions {
		c, ok := byRef[r.Ref]
		if !ok {
			continue
		}
		if err := sync.ResolveLocal(files, st, c, r.Choice, r.ManualValue); err != nil {
			return err
		}
		fmt.Println(ui.StatusSuccess(fmt.Sprintf("%s resolved with %s", r.Ref, r.Choice)))
	}

	for _, f := range orderedFiles(files) {
		if err := format.WriteFile(f); err != nil {
			return fmt.Errorf("writing %s: %w", f.Language.Path, err)
		}
	}
	if err := st.Save(); err != nil {
		return fmt.Errorf("saving local state: %w", err)
	}
	fmt.Println(ui.Dim("run `locforge push` to sync the resolved values"))
	return nil
}

func resolveGitHub(ctx context.Context, e *env, cmd *cli.Command, bulk sync.ResolutionChoice) error {
	pending, err := e.client.Conflicts(ctx, e.manifest.Project)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println(ui.StatusSuccess("no pending GitHub conflicts"))
		return nil
	}

	items := make([]tui.ConflictItem, len(pending))
	ids := make(map[sync.EntryRef]int64, len(pending))
	for i, pc := range pending {
		items[i] = tui.ConflictItem{
			Ref:         pc.Ref,
			Kind:        string(pc.Kind),
			LocalValue:  pc.CloudValue,
			RemoteValue: pc.GitHubValue,
		}
		ids[pc.Ref] = pc.ID
	}

	resolutions, err := chooseResolutions(cmd, bulk, items)
	if err != nil {
		return err
	}
	for _, r := range resolutions {
		id, ok := ids[r.Ref]
		if !ok {
			continue
		}
		if _, err := e.client.Resolve(ctx, e.manifest.Project, id, r.Choice, r.ManualValue); err != nil {
			return fmt.Errorf("resolving %s: %w", r.Ref, err)
		}
		fmt.Println(ui.StatusSuccess(fmt.Sprintf("%s resolved with %s", r.Ref, r.Choice)))
	}
	return nil
}

// resolution is one chosen outcome, with the manual value when the
// choice is manual.
type resolution struct {
	Ref         sync.EntryRef
	Choice      sync.ResolutionChoice
	ManualValue string
}

// chooseResolutions picks resolutions for the given conflicts: a bulk
// flag applies one choice to all, an interactive terminal gets the
// full-screen resolver (or the line prompt with --prompt), and
// anything else is an error.
func chooseResolutions(cmd *cli.Command, bulk sync.ResolutionChoice, items []tui.ConflictItem) ([]resolution, error) {
	if bulk != "" {
		out := make([]resolution, len(items))
		for i, item := range items {
			out[i] = resolution{Ref: item.Ref, Choice: bulk}
		}
		return out, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("stdin is not a terminal; use --keep-local or --keep-remote")
	}

	if cmd.Bool("prompt") {
		return newConflictPrompt().run(items)
	}

	result, err := tui.RunConflictList(items)
	if err != nil {
		return nil, err
	}
	if result.Action != tui.ConflictActionApply {
		return nil, nil
	}
	out := make([]resolution, len(result.Resolutions))
	for i, r := range result.Resolutions {
		out[i] = resolution{Ref: r.Ref, Choice: r.Choice}
	}
	return out, nil
}

func localConflictItems(conflicts []state.Conflict) []tui.ConflictItem {
	items := make([]tui.ConflictItem, len(conflicts))
	for i, c := range conflicts {
		items[i] = tui.ConflictItem{
			Ref:         sync.EntryRef{Key: c.Key, Language: c.Language, PluralForm: c.PluralForm},
			Kind:        c.Kind,
			LocalValue:  c.LocalValue,
			RemoteValue: c.RemoteValue,
		}
	}
	return items
}
