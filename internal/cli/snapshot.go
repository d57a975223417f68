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

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Manage cloud-state snapshots",
		Commands: []*cli.Command{
			snapshotCreateCommand(),
			snapshotListCommand(),
			snapshotRestoreCommand(),
			snapshotDeleteCommand(),
		},
	}
}

func snapshotCreateCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Take a manual snapshot of the project's cloud state",
		UsageText: "locforge snapshot create [description]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			description := ""
			if cmd.Args().Len() > 0 {
				description = cmd.Args().First()
			}
			snap, err := e.client.CreateSnapshot(ctx, e.manifest.Project, store.SnapshotManual, description)
			if err != nil {
				return err
			}
			fmt.Println(ui.StatusSuccess(fmt.Sprintf("snapshot %s created (%d entries)",
				ui.Bold(snap.ID), snap.EntryCount)))
			return nil
		},
	}
}

func snapshotListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the project's snapshots",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			snaps, err := e.client.Snapshots(ctx, e.manifest.Project)
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				fmt.Println(ui.Dim("no snapshots"))
				return nil
			}
			fmt.Printf("%s\n", ui.Header(fmt.Sprintf("%-38s %-8s %-8s %-16s %s",
				"ID", "TYPE", "ENTRIES", "WHEN", "DESCRIPTION")))
			for _, s := range snaps {
				fmt.Printf("%-38s %-8s %-8d %-16s %s\n",
					s.ID, s.Type, s.EntryCount, humanize.Time(s.CreatedAt), s.Description)
			}
			return nil
		},
	}
}

func snapshotRestoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Restore the cloud state from a snapshot",
		UsageText: "locforge snapshot restore <snapshot-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("restore requires exactly 1 argument: <snapshot-id>")
			}
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			entry, err := e.client.RestoreSnapshot(ctx, e.manifest.Project, cmd.Args().First())
			if err != nil {
				return err
			}
			if entry == nil || entry.ID == "" {
				fmt.Println(ui.StatusSuccess("cloud state already matches the snapshot"))
				return nil
			}
			fmt.Println(ui.StatusSuccess(fmt.Sprintf("restored as history %s (%d change(s))",
				ui.Bold(entry.ID), len(entry.Changes))))
			fmt.Println(ui.Dim("run `locforge pull` to update the working copy"))
			return nil
		},
	}
}

func snapshotDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a snapshot",
		UsageText: "locforge snapshot delete <snapshot-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("delete requires exactly 1 argument: <snapshot-id>")
			}
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			id := cmd.Args().First()
			if err := e.client.DeleteSnapshot(ctx, e.manifest.Project, id); err != nil {
				return err
			}
			fmt.Println(ui.StatusSuccess(fmt.Sprintf("snapshot %s deleted", id)))
			return nil
		},
	}
}
