package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/locforge/locforge/internal/format"
	"github.com/locforge/locforge/internal/sync"
	"github.com/locforge/locforge/internal/ui"
)

func pullCommand() *cli.Command {
	return &cli.Command{
		Name:  "pull",
		Usage: "Pull cloud changes into the working copy",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Preview incoming changes without touching files",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			files, err := e.readFiles()
			if err != nil {
				return err
			}
			st, err := e.openState()
			if err != nil {
				return err
			}
			defer st.Close()

			remote, err := e.client.Entries(ctx, e.manifest.Project)
			if err != nil {
				return fmt.Errorf("pull failed: %w", err)
			}

			plan := sync.NewPullPlanner().Plan(remote, files, st)

			if cmd.Bool("dry-run") {
				for _, re := range plan.Applies {
					fmt.Printf("  %s %s\n", ui.Changed("U"), re.Ref)
				}
				for _, rec := range plan.Deletes {
					ref := sync.EntryRef{Key: rec.Key, Language: rec.Language, PluralForm: rec.PluralForm}
					fmt.Printf("  %s %s\n", ui.Removed("D"), ref)
				}
				for _, c := range plan.Conflicts {
					fmt.Printf("  %s %s (%s)\n", ui.Warning(ui.SymbolConflict), c.Ref, c.Kind)
				}
				fmt.Printf("\n%d update(s), %d deletion(s), %d conflict(s)\n",
					len(plan.Applies), len(plan.Deletes), len(plan.Conflicts))
				fmt.Println(ui.Dim("dry run, nothing applied"))
				return nil
			}

			res := sync.Apply(plan, files, st)

			if res.Changed() > 0 {
				for _, f := range orderedFiles(files) {
					if err := format.WriteFile(f); err != nil {
						return fmt.Errorf("writing %s: %w", f.Language.Path, err)
					}
				}
			}
			if err := st.Save(); err != nil {
				return fmt.Errorf("pull applied but saving local state failed: %w", err)
			}

			fmt.Print(res.Summary())
			if res.HasConflicts() {
				fmt.Println(ui.Dim("run `locforge resolve` to resolve them"))
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}
