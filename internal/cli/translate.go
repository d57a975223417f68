package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/locforge/locforge/internal/format"
	"github.com/locforge/locforge/internal/logging"
	"github.com/locforge/locforge/internal/model"
	"github.com/locforge/locforge/internal/progress"
	"github.com/locforge/locforge/internal/store"
	"github.com/locforge/locforge/internal/translate"
	"github.com/locforge/locforge/internal/ui"
)

func translateCommand() *cli.Command {
	return &cli.Command{
		Name:  "translate",
		Usage: "Machine-translate missing entries from the default language",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "to",
				Aliases: []string{"t"},
				Usage:   "Target language code (repeatable; defaults to every tracked language)",
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "Source language code sent to the provider for the default language",
				Value: "en",
			},
			&cli.BoolFlag{
				Name:  "overwrite",
				Usage: "Retranslate entries that already have a value",
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "List what would be translated without calling the provider",
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
			source, ok := files[""]
			if !ok || len(source.Entries) == 0 {
				return errors.New("the default language file is empty; nothing to translate from")
			}

			targets := cmd.StringSlice("to")
			if len(targets) == 0 {
				for code := range files {
					if code != "" {
						targets = append(targets, code)
					}
				}
			}
			if len(targets) == 0 {
				return errors.New("no target languages (add them to the manifest or pass --to)")
			}

			jobs := collectTranslationJobs(source, files, targets, cmd.Bool("overwrite"))
			if len(jobs) == 0 {
				fmt.Println(ui.StatusSuccess("all target languages are complete"))
				return nil
			}

			if cmd.Bool("dry-run") {
				for _, j := range jobs {
					fmt.Printf("  %s → %s: %q\n", j.key, j.lang, j.text)
				}
				fmt.Printf("\n%d entr(ies) to translate\n", len(jobs))
				fmt.Println(ui.Dim("dry run, provider not called"))
				return nil
			}

			provider, err := translate.NewProvider(e.cfg.Translate)
			if err != nil {
				return err
			}
			translator := translate.NewTranslator(provider, e.cfg.Translate.MaxRetries)

			// A bulk rewrite warrants a restore point on the server.
			if e.cfg.Snapshots.AutoSnapshot {
				if _, err := e.client.CreateSnapshot(ctx, e.manifest.Project, store.SnapshotAuto, "before translate"); err != nil {
					logging.Warn("automatic snapshot failed", logging.Err(err))
				}
			}

			bar := progress.Simple(int64(len(jobs)), "Translating")
			translated, failed := 0, 0
			for _, j := range jobs {
				out, err := translator.Translate(ctx, j.text, cmd.String("source"), j.lang)
				if err != nil {
					failed++
					logging.Warn("translation failed",
						logging.Entry(j.key),
						logging.Language(j.lang),
						logging.Err(err),
					)
					_ = bar.Add(1)
					continue
				}
				j.apply(out)
				translated++
				_ = bar.Add(1)
			}
			_ = bar.Finish()

			for _, code := range targets {
				if f, ok := files[code]; ok {
					if err := format.WriteFile(f); err != nil {
						return fmt.Errorf("writing %s: %w", f.Language.Path, err)
					}
				}
			}

			if failed > 0 {
				fmt.Println(ui.StatusWarning(fmt.Sprintf("%d translated, %d failed", translated, failed)))
				return cli.Exit("", 1)
			}
			fmt.Println(ui.StatusSuccess(fmt.Sprintf("%d entr(ies) translated", translated)))
			fmt.Println(ui.Dim("review the results, then `locforge push`"))
			return nil
		},
	}
}

// translationJob is one value to translate and where to put the result.
type translationJob struct {
	key   string
	lang  string
	text  string
	apply func(string)
}

// collectTranslationJobs walks the default language and lists every
// missing (or, with overwrite, every) value in the target languages.
// Plural entries are translated per source form into the same category;
// refining categories for the target locale is left to the translator.
func collectTranslationJobs(source *model.ResourceFile, files map[string]*model.ResourceFile, targets []string, overwrite bool) []translationJob {
	var jobs []translationJob
	for _, lang := range targets {
		target, ok := files[lang]
		if !ok {
			continue
		}
		for _, se := range source.Entries {
			se := se
			existing, exists := target.First(se.Key)

			if !se.IsPlural {
				if exists && existing.Value != "" && !overwrite {
					continue
				}
				if se.Value == "" {
					continue
				}
				lang, key := lang, se.Key
				jobs = append(jobs, translationJob{
					key: key, lang: lang, text: se.Value,
					apply: func(out string) {
						entry, ok := target.First(key)
						if !ok {
							target.Add(model.ResourceEntry{Key: key, Value: out, Comment: se.Comment})
							return
						}
						entry.Value = out
						entry.IsPlural = false
						entry.Plurals = nil
					},
				})
				continue
			}

			for _, form := range se.Plurals {
				form := form
				if exists && existing.IsPlural && !overwrite {
					if v, ok := existing.Plurals.Get(form.Category); ok && v != "" {
						continue
					}
				}
				if form.Value == "" {
					continue
				}
				lang, key := lang, se.Key
				jobs = append(jobs, translationJob{
					key: key, lang: lang, text: form.Value,
					apply: func(out string) {
						entry, ok := target.First(key)
						if !ok {
							e := model.ResourceEntry{Key: key, Comment: se.Comment, IsPlural: true}
							e.Plurals = model.PluralForms{}.Set(form.Category, out)
							e.Normalize()
							target.Add(e)
							return
						}
						entry.IsPlural = true
						entry.Plurals = entry.Plurals.Set(form.Category, out)
						entry.Normalize()
					},
				})
			}
		}
	}
	return jobs
}
