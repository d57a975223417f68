package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/locforge/locforge/internal/config"
	"github.com/locforge/locforge/internal/format"
	"github.com/locforge/locforge/internal/model"
	"github.com/locforge/locforge/internal/sync"
	"github.com/locforge/locforge/internal/ui"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Initialize a localization project in the current directory",
		UsageText: "locforge init [options] <project-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "base",
				Usage: "Resource file base name",
				Value: "strings",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Resource file format",
				Value: "json",
			},
			&cli.StringSliceFlag{
				Name:    "lang",
				Aliases: []string{"l"},
				Usage:   "Tracked language code (repeatable); the default language is always tracked",
			},
			&cli.StringFlag{
				Name:  "server",
				Usage: "Server URL override for this project",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("init requires exactly 1 argument: <project-id>")
			}
			dir := cmd.String("dir")

			if _, err := config.LoadManifest(dir); err == nil {
				return fmt.Errorf("%s already exists in %s", config.ManifestFileName, dir)
			}

			languages := []string{""}
			for _, code := range cmd.StringSlice("lang") {
				if code != "" {
					languages = append(languages, code)
				}
			}

			m := &config.Manifest{
				Project:   cmd.Args().First(),
				BaseName:  cmd.String("base"),
				Format:    cmd.String("format"),
				Languages: languages,
				ServerURL: cmd.String("server"),
			}
			if _, ok := format.ByName(m.Format); !ok {
				return fmt.Errorf("unknown format %q (known: %v)", m.Format, format.Names())
			}
			if err := m.Save(dir); err != nil {
				return err
			}

			// Seed missing resource files so the layout is visible.
			infos, err := m.LanguageInfos()
			if err != nil {
				return err
			}
			created := 0
			for _, info := range infos {
				if _, err := os.Stat(info.Path); err == nil {
					continue
				}
				if err := format.WriteFile(model.NewResourceFile(info)); err != nil {
					return err
				}
				created++
			}

			fmt.Println(ui.StatusSuccess(fmt.Sprintf("initialized project %s (%d resource file(s) created)",
				ui.Bold(m.Project), created)))
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show local changes relative to the last sync",
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

			fmt.Printf("Project %s\n\n", ui.Bold(e.manifest.Project))
			if cs.Empty() && len(blocked) == 0 && len(st.Conflicts()) == 0 {
				fmt.Println(ui.StatusSuccess("working copy is in sync"))
				return nil
			}

			for _, ch := range cs.Changes {
				switch ch.Kind {
				case sync.ChangeAdded:
					fmt.Printf("  %s %s\n", ui.Added("A"), ch.Ref)
				case sync.ChangeModified:
					fmt.Printf("  %s %s\n", ui.Changed("M"), ch.Ref)
				case sync.ChangeDeleted:
					fmt.Printf("  %s %s\n", ui.Removed("D"), ch.Ref)
				}
			}

			added, modified, deleted := cs.Counts()
			fmt.Printf("\n%d added, %d modified, %d deleted\n", added, modified, deleted)

			if conflicts := st.Conflicts(); len(conflicts) > 0 {
				fmt.Printf("\n%s\n", ui.StatusConflict(fmt.Sprintf("%d unresolved conflict(s) blocking sync:", len(conflicts))))
				for _, c := range conflicts {
					ref := sync.EntryRef{Key: c.Key, Language: c.Language, PluralForm: c.PluralForm}
					fmt.Printf("  %s %s (%s)\n", ui.Warning(ui.SymbolConflict), ref, c.Kind)
				}
				fmt.Println(ui.Dim("\nrun `locforge resolve` to resolve them"))
			}

			// Server-side pending conflicts are informational here; the
			// server is the source of truth for GitHub divergences.
			if pending, err := e.client.Conflicts(ctx, e.manifest.Project); err == nil && len(pending) > 0 {
				fmt.Printf("\n%s\n", ui.StatusConflict(fmt.Sprintf("%d pending GitHub conflict(s) on the server", len(pending))))
				fmt.Println(ui.Dim("run `locforge resolve --github` to resolve them"))
			}
			return nil
		},
	}
}
