package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/locforge/locforge/internal/format"
	"github.com/locforge/locforge/internal/model"
	"github.com/locforge/locforge/internal/ui"
)

func langFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "lang",
		Aliases: []string{"l"},
		Usage:   "Language code (empty for the default language)",
	}
}

func pluralFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "plural",
		Usage: "Plural category (zero, one, two, few, many, other)",
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add an entry to a resource file",
		UsageText: "locforge add [options] <key> <value>",
		Flags: []cli.Flag{
			langFlag(),
			pluralFlag(),
			&cli.StringFlag{
				Name:  "comment",
				Usage: "Translator comment",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return errors.New("add requires exactly 2 arguments: <key> <value>")
			}
			key, value := cmd.Args().Get(0), cmd.Args().Get(1)

			return editFile(cmd, func(f *model.ResourceFile) error {
				plural, err := parsePlural(cmd.String("plural"))
				if err != nil {
					return err
				}
				if plural != model.PluralNone {
					if existing, ok := f.First(key); ok && existing.IsPlural {
						existing.Plurals = existing.Plurals.Set(plural, value)
						existing.Normalize()
						fmt.Println(ui.StatusSuccess(fmt.Sprintf("added %s form to %s", plural, key)))
						return nil
					}
					f.Add(model.ResourceEntry{
						Key:      key,
						Comment:  cmd.String("comment"),
						IsPlural: true,
						Plurals:  model.PluralForms{}.Set(plural, value),
					})
					fmt.Println(ui.StatusSuccess(fmt.Sprintf("added plural entry %s", key)))
					return nil
				}

				f.Add(model.ResourceEntry{Key: key, Value: value, Comment: cmd.String("comment")})
				if n := len(f.Occurrences(key)); n > 1 {
					fmt.Println(ui.StatusWarning(fmt.Sprintf("added %s (occurrence %d of a duplicate key)", key, n)))
				} else {
					fmt.Println(ui.StatusSuccess(fmt.Sprintf("added %s", key)))
				}
				return nil
			})
		},
	}
}

func setCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Update an entry's value",
		UsageText: "locforge set [options] <key> <value>",
		Flags: []cli.Flag{
			langFlag(),
			pluralFlag(),
			&cli.StringFlag{
				Name:  "comment",
				Usage: "Translator comment (kept when omitted)",
			},
			&cli.IntFlag{
				Name:  "occurrence",
				Usage: "Which occurrence of a duplicate key to update (1-based)",
				Value: 1,
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return errors.New("set requires exactly 2 arguments: <key> <value>")
			}
			key, value := cmd.Args().Get(0), cmd.Args().Get(1)

			return editFile(cmd, func(f *model.ResourceFile) error {
				entry, err := f.Lookup(key, int(cmd.Int("occurrence")))
				if err != nil {
					if variants := f.CaseVariants(key); len(variants) > 0 {
						return fmt.Errorf("%w (did you mean %v?)", err, variants)
					}
					return err
				}
				plural, perr := parsePlural(cmd.String("plural"))
				if perr != nil {
					return perr
				}
				if plural != model.PluralNone {
					entry.IsPlural = true
					entry.Plurals = entry.Plurals.Set(plural, value)
				} else if entry.IsPlural {
					return fmt.Errorf("%q is a plural entry; pass --plural to pick the form", key)
				} else {
					entry.Value = value
				}
				if cmd.IsSet("comment") {
					entry.Comment = cmd.String("comment")
				}
				entry.Normalize()
				fmt.Println(ui.StatusSuccess(fmt.Sprintf("updated %s", key)))
				return nil
			})
		},
	}
}

func rmCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Remove an entry from a resource file",
		UsageText: "locforge rm [options] <key>",
		Flags: []cli.Flag{
			langFlag(),
			&cli.IntFlag{
				Name:  "occurrence",
				Usage: "Which occurrence of a duplicate key to remove (1-based)",
				Value: 0,
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Remove every occurrence of the key",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("rm requires exactly 1 argument: <key>")
			}
			key := cmd.Args().First()

			return editFile(cmd, func(f *model.ResourceFile) error {
				occurrences := f.Occurrences(key)
				switch {
				case len(occurrences) == 0:
					return fmt.Errorf("key %q not found", key)
				case cmd.Bool("all"):
					n := f.RemoveAll(key)
					fmt.Println(ui.StatusSuccess(fmt.Sprintf("removed %d occurrence(s) of %s", n, key)))
				case len(occurrences) > 1 && !cmd.IsSet("occurrence"):
					return fmt.Errorf("key %q has %d occurrences; pass --occurrence or --all", key, len(occurrences))
				default:
					occurrence := int(cmd.Int("occurrence"))
					if occurrence == 0 {
						occurrence = 1
					}
					if err := f.Remove(key, occurrence); err != nil {
						return err
					}
					fmt.Println(ui.StatusSuccess(fmt.Sprintf("removed %s", key)))
				}
				return nil
			})
		},
	}
}

// editFile loads the target language file, applies the edit, and
// writes the file back.
func editFile(cmd *cli.Command, edit func(*model.ResourceFile) error) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	files, err := e.readFiles()
	if err != nil {
		return err
	}
	f, err := fileFor(files, cmd.String("lang"))
	if err != nil {
		return err
	}
	if err := edit(f); err != nil {
		return err
	}
	return format.WriteFile(f)
}

func parsePlural(s string) (model.PluralCategory, error) {
	switch c := model.PluralCategory(s); c {
	case model.PluralNone, model.PluralZero, model.PluralOne, model.PluralTwo,
		model.PluralFew, model.PluralMany, model.PluralOther:
		return c, nil
	default:
		return model.PluralNone, fmt.Errorf("unknown plural category %q", s)
	}
}
