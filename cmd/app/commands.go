package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/journal/internal"
	"github.com/starford/journal/internal/journal"
	"github.com/starford/journal/internal/journalservice"
)

func openService(cmd *cli.Command) (*journalservice.Service, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return internal.OpenService(internal.WithConfig(cfg), internal.WithLogger(cliLogger(cfg)))
}

func out(cmd *cli.Command) io.Writer { return cmd.Root().Writer }

func optionalDate(s string) (journal.Date, error) {
	if s == "" {
		return journal.Date{}, nil
	}
	return journal.ParseDate(s)
}

func printItems(w io.Writer, items []journalservice.EntryListItem) {
	for _, it := range items {
		line := it.Date + "\t" + it.Path
		if len(it.Tags) > 0 {
			line += "\t" + strings.Join(it.Tags, ", ")
		}
		fmt.Fprintln(w, line)
	}
}

func tagsFlag(usage string) cli.Flag {
	return &cli.StringSliceFlag{Name: "tags", Aliases: []string{"t"}, Usage: usage}
}

// filesQuery builds a query from flags. With neither dates nor tags the
// whole tree is listed.
func filesQuery(cmd *cli.Command) (journalservice.Query, error) {
	var q journalservice.Query
	var err error
	if q.From, err = optionalDate(cmd.String("from")); err != nil {
		return q, fmt.Errorf("--from: %w", err)
	}
	if q.To, err = optionalDate(cmd.String("to")); err != nil {
		return q, fmt.Errorf("--to: %w", err)
	}
	q.Tags = cmd.StringSlice("tags")
	if q.Order, err = journal.ParseOrder(cmd.String("sort")); err != nil {
		return q, err
	}
	q.Limit = int(cmd.Int("limit"))
	return q, nil
}

func filesCommand() *cli.Command {
	return &cli.Command{
		Name:  "files",
		Usage: "List entries by date range and tags",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "First date (YYYY-MM-DD), inclusive"},
			&cli.StringFlag{Name: "to", Usage: "Last date (YYYY-MM-DD), inclusive; defaults to today when --from is set"},
			tagsFlag("Tag to match (repeatable, any may match)"),
			&cli.StringFlag{Name: "sort", Usage: "ascending or descending", Value: "descending"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum number of entries (0 = all)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			q, err := filesQuery(cmd)
			if err != nil {
				return err
			}
			items, err := svc.Query(ctx, q)
			if err != nil {
				return err
			}
			printItems(out(cmd), items)
			return nil
		},
	}
}

func recentCommand() *cli.Command {
	return &cli.Command{
		Name:  "recent",
		Usage: "Show the most recent entries",
		Flags: []cli.Flag{&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 10, Usage: "Number of entries"}},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			items, err := svc.Recent(ctx, int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			printItems(out(cmd), items)
			return nil
		},
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "new",
		Usage: "Create the entry for a date (today by default)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Entry date (YYYY-MM-DD)"},
			tagsFlag("Tag for the new entry (repeatable)"),
			&cli.StringFlag{Name: "readme", Usage: "Note to re-read later"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			d, err := optionalDate(cmd.String("date"))
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}
			entry, err := svc.CreateEntry(ctx, d, cmd.StringSlice("tags"), cmd.String("readme"))
			if err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), entry.Path)
			return nil
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print an entry",
		ArgsUsage: "[YYYY-MM-DD | path]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			arg := cmd.Args().First()
			var entry *journalservice.EntryDetail
			if d, dateErr := optionalDate(arg); dateErr == nil {
				if d.IsZero() {
					d = svc.Today()
				}
				entry, err = svc.GetEntryByDate(ctx, d)
			} else {
				entry, err = svc.GetEntry(ctx, arg)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(out(cmd), entry.Content)
			return nil
		},
	}
}

func renameTagCommand() *cli.Command {
	return &cli.Command{
		Name:      "rename-tag",
		Usage:     "Rename a tag in one entry or in every entry",
		ArgsUsage: "OLD NEW",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Only rewrite this entry"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 2 {
				return fmt.Errorf("rename-tag needs OLD and NEW")
			}
			oldTag, newTag := cmd.Args().Get(0), cmd.Args().Get(1)
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			if path := cmd.String("path"); path != "" {
				entry, err := svc.RenameTag(ctx, path, oldTag, newTag)
				if err != nil {
					return err
				}
				fmt.Fprintln(out(cmd), entry.Path)
				return nil
			}
			paths, err := svc.RenameTagEverywhere(ctx, oldTag, newTag)
			for _, p := range paths {
				fmt.Fprintln(out(cmd), p)
			}
			return err
		},
	}
}

func tagsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "List tags with entry counts",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			tags, err := svc.Tags(ctx)
			if err != nil {
				return err
			}
			for _, t := range tags {
				fmt.Fprintf(out(cmd), "%d\t%s\n", t.Count, t.Tag)
			}
			return nil
		},
	}
}

func readmeCommand() *cli.Command {
	return &cli.Command{
		Name:  "readme",
		Usage: "List entries that carry a readme note, oldest first",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			items, err := svc.Readme(ctx)
			if err != nil {
				return err
			}
			for _, it := range items {
				fmt.Fprintf(out(cmd), "%s\t%s\n", it.Date, it.Readme)
			}
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Rebuild the SQLite tag catalog from the journal tree",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			n, err := internal.SyncCatalog(ctx, internal.WithConfig(cfg), internal.WithLogger(cliLogger(cfg)))
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "cataloged %d entries in %s\n", n, cfg.SQLite.Path)
			return nil
		},
	}
}
