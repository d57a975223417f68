package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/locforge/locforge/internal/store"
	"github.com/locforge/locforge/internal/ui"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show the project's sync history",
		UsageText: "locforge history [options] [history-id]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of entries to show",
				Value:   20,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}

			if cmd.Args().Len() > 0 {
				entry, err := e.client.HistoryEntry(ctx, e.manifest.Project, cmd.Args().First())
				if err != nil {
					return err
				}
				printHistoryEntry(entry)
				return nil
			}

			entries, err := e.client.History(ctx, e.manifest.Project, int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println(ui.Dim("no history yet"))
				return nil
			}

			fmt.Printf("%s\n", ui.Header(fmt.Sprintf("%-10s %-8s %-8s %-24s %-14s %s",
				"ID", "OP", "SOURCE", "CHANGES", "BY", "WHEN")))
			for _, h := range entries {
				changes := fmt.Sprintf("+%d ~%d -%d", h.Added, h.Modified, h.Deleted)
				id := h.ID
				if h.RevertedFromID != "" {
					id += ui.Dim("*")
				}
				fmt.Printf("%-10s %-8s %-8s %-24s %-14s %s\n",
					id, h.Operation, h.Source, changes, h.CreatedBy, humanize.Time(h.CreatedAt))
			}
			return nil
		},
	}
}

func printHistoryEntry(h *store.HistoryEntry) {
	fmt.Printf("%s %s\n", ui.Header("History"), ui.Bold(h.ID))
	fmt.Printf("  Operation: %s (%s)\n", h.Operation, h.Source)
	fmt.Printf("  By:        %s\n", h.CreatedBy)
	fmt.Printf("  When:      %s (%s)\n", h.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(h.CreatedAt))
	if h.RevertedFromID != "" {
		fmt.Printf("  Reverts:   %s\n", h.RevertedFromID)
	}
	fmt.Printf("  Changes:   %d added, %d modified, %d deleted\n\n", h.Added, h.Modified, h.Deleted)

	for _, c := range h.Changes {
		switch {
		case c.Before == nil && c.After != nil:
			fmt.Printf("  %s %s = %q\n", ui.Added("A"), c.Ref, c.After.Value)
		case c.Before != nil && c.After == nil:
			fmt.Printf("  %s %s (was %q)\n", ui.Removed("D"), c.Ref, c.Before.Value)
		case c.Before != nil && c.After != nil:
			fmt.Printf("  %s %s: %q → %q\n", ui.Changed("M"), c.Ref, c.Before.Value, c.After.Value)
		}
	}
}

func revertCommand() *cli.Command {
	return &cli.Command{
		Name:      "revert",
		Usage:     "Revert a sync history entry",
		UsageText: "locforge revert <history-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("revert requires exactly 1 argument: <history-id>")
			}
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}

			entry, err := e.client.Revert(ctx, e.manifest.Project, cmd.Args().First())
			if err != nil {
				return err
			}
			fmt.Println(ui.StatusSuccess(fmt.Sprintf("reverted %s as %s (%d change(s))",
				entry.RevertedFromID, ui.Bold(entry.ID), len(entry.Changes))))
			fmt.Println(ui.Dim("run `locforge pull` to update the working copy"))
			return nil
		},
	}
}
