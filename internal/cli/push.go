package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/locforge/locforge/internal/security"
	"github.com/locforge/locforge/internal/sync"
	"github.com/locforge/locforge/internal/ui"
)

func pushCommand() *cli.Command {
	return &cli.Command{
		Name:  "push",
		Usage: "Push local changes to the cloud",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Preview the change-set without sending it",
			},
			&cli.BoolFlag{
				Name:  "skip-scan",
				Usage: "Skip the credential scan (not recommended)",
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

			cs, blocked := sync.NewPushPlanner().Plan(e.manifest.Project, orderedFiles(files), st)

			for _, ref := range blocked {
				fmt.Println(ui.StatusConflict(fmt.Sprintf("%s is blocked by an unresolved conflict", ref)))
			}
			if len(blocked) > 0 {
				fmt.Println(ui.Dim("run `locforge resolve` to unblock these entries"))
			}

			if cs.Empty() {
				fmt.Println(ui.StatusSuccess("nothing to push"))
				if len(blocked) > 0 {
					return cli.Exit("", 1)
				}
				return nil
			}

			if !cmd.Bool("skip-scan") {
				findings := security.NewDetector(nil).ScanChangeSet(cs)
				for _, f := range findings {
					switch f.Severity {
					case security.SeverityError:
						fmt.Println(ui.StatusError(f.String()))
					default:
						fmt.Println(ui.StatusWarning(f.String()))
					}
				}
				if security.HasBlocking(findings) {
					return cli.Exit(ui.Error("push blocked: remove the credential or use --skip-scan"), 1)
				}
			}

			added, modified, deleted := cs.Counts()
			fmt.Printf("Pushing %d change(s): %d added, %d modified, %d deleted\n",
				len(cs.Changes), added, modified, deleted)

			if cmd.Bool("dry-run") {
				for _, ch := range cs.Changes {
					fmt.Printf("  %s %s\n", ch.Kind, ch.Ref)
				}
				fmt.Println(ui.Dim("dry run, nothing sent"))
				return nil
			}

			outcome, err := e.client.Push(ctx, cs)
			if err != nil {
				return fmt.Errorf("push failed: %w", err)
			}

			sync.Commit(outcome, st)
			if err := st.Save(); err != nil {
				return fmt.Errorf("push applied but saving local state failed: %w", err)
			}

			fmt.Print(outcome.Summary())
			if outcome.HasConflicts() || len(blocked) > 0 {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}
