package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"tomes/pkg/config"
	"tomes/pkg/openlibrary"
	"tomes/pkg/shelf"
)

// ShelfCommand creates the shelf command with subcommands
func ShelfCommand() *cli.Command {
	return &cli.Command{
		Name:  "shelf",
		Usage: "Manage saved books",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saved books, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of books to show (0 for all)",
						Value: 50,
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Number of books to skip",
					},
					&cli.BoolFlag{
						Name:  "no-pager",
						Usage: "Disable pager and output directly to terminal",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return listShelf(c.String("config"), c.Int("limit"), c.Int("offset"), c.Bool("no-pager"))
				},
			},
			{
				Name:      "show",
				Usage:     "Show one saved book",
				ArgsUsage: "ID",
				Action: func(ctx context.Context, c *cli.Command) error {
					id := c.Args().First()
					if id == "" {
						return fmt.Errorf("show requires a book id")
					}
					return showShelfBook(c.String("config"), id)
				},
			},
			{
				Name:      "add",
				Usage:     "Search Open Library and save the first result",
				ArgsUsage: "TITLE...",
				Action: func(ctx context.Context, c *cli.Command) error {
					title := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
					if title == "" {
						return fmt.Errorf("add requires a book title")
					}
					return addShelfBook(ctx, c.String("config"), title)
				},
			},
			{
				Name:      "rm",
				Usage:     "Remove a saved book",
				ArgsUsage: "ID",
				Action: func(ctx context.Context, c *cli.Command) error {
					id := c.Args().First()
					if id == "" {
						return fmt.Errorf("rm requires a book id")
					}
					return removeShelfBook(c.String("config"), id)
				},
			},
			{
				Name:      "search",
				Usage:     "Full-text search saved books",
				ArgsUsage: "QUERY...",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 50,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
					if query == "" {
						return fmt.Errorf("search requires a query")
					}
					return searchShelf(c.String("config"), query, c.Int("limit"))
				},
			},
			{
				Name:      "export",
				Usage:     "Export saved books to a file",
				ArgsUsage: "PATH",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Export format: ndjson or yaml (default inferred from the path)",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					path := c.Args().First()
					if path == "" {
						return fmt.Errorf("export requires a target path")
					}
					return exportShelf(c.String("config"), path, c.String("format"))
				},
			},
			{
				Name:      "import",
				Usage:     "Import books from an export file",
				ArgsUsage: "PATH",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Import format: ndjson or yaml (default inferred from the path)",
					},
					&cli.BoolFlag{
						Name:  "no-progress",
						Usage: "Disable the progress bar",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					path := c.Args().First()
					if path == "" {
						return fmt.Errorf("import requires a source path")
					}
					return importShelf(c.String("config"), path, c.String("format"), c.Bool("no-progress"))
				},
			},
			{
				Name:  "stats",
				Usage: "Show shelf statistics",
				Action: func(ctx context.Context, c *cli.Command) error {
					return showShelfStats(c.String("config"))
				},
			},
		},
	}
}

// openShelf loads the configuration and opens the shelf database.
func openShelf(configPath string) (*shelf.Shelf, *config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	sh, err := shelf.New(cfg.ShelfPath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening shelf: %w", err)
	}

	return sh, cfg, nil
}

func closeShelf(sh *shelf.Shelf) {
	if err := sh.Close(); err != nil {
		fmt.Printf("Warning: failed to close shelf: %v\n", err)
	}
}

func listShelf(configPath string, limit, offset int, noPager bool) error {
	sh, _, err := openShelf(configPath)
	if err != nil {
		return err
	}
	defer closeShelf(sh)

	books, err := sh.List(limit, offset)
	if err != nil {
		return fmt.Errorf("listing books: %w", err)
	}

	count, err := sh.Count()
	if err != nil {
		return fmt.Errorf("counting books: %w", err)
	}

	var output strings.Builder
	output.WriteString(titleStyle.Render(fmt.Sprintf("Shelf - %s books", formatNumber(count))))
	output.WriteString("\n")

	if len(books) == 0 {
		output.WriteString(noDataStyle.Render("No books on the shelf yet. Try 'tomes shelf add TITLE'."))
		output.WriteString("\n")
		fmt.Print(output.String())
		return nil
	}

	for i, book := range books {
		output.WriteString(formatShelfBook(book, offset+i+1))
		output.WriteString("\n")
	}

	if noPager || !isTerminal() {
		fmt.Print(output.String())
		return nil
	}
	return displayWithPager(output.String())
}

func showShelfBook(configPath, id string) error {
	sh, _, err := openShelf(configPath)
	if err != nil {
		return err
	}
	defer closeShelf(sh)

	book, err := sh.Get(id)
	if err != nil {
		if errors.Is(err, shelf.ErrNotFound) {
			return fmt.Errorf("no book with id %s on the shelf", id)
		}
		return fmt.Errorf("getting book: %w", err)
	}

	fmt.Println(formatShelfBook(*book, 1))
	return nil
}

func addShelfBook(ctx context.Context, configPath, title string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := openlibrary.NewClient(cfg.ClientConfig())
	if err != nil {
		return fmt.Errorf("creating search client: %w", err)
	}

	result, err := client.Search(ctx, title, openlibrary.SearchOptions{Limit: 1})
	if err != nil {
		return fmt.Errorf("searching for %q: %w", title, err)
	}
	if len(result.Docs) == 0 {
		return fmt.Errorf("no results for %q", title)
	}

	return saveFirstDoc(cfg, result.Docs[0])
}

func removeShelfBook(configPath, id string) error {
	sh, _, err := openShelf(configPath)
	if err != nil {
		return err
	}
	defer closeShelf(sh)

	deleted, err := sh.Delete(id)
	if err != nil {
		return fmt.Errorf("deleting book: %w", err)
	}
	if !deleted {
		return fmt.Errorf("no book with id %s on the shelf", id)
	}

	fmt.Printf("Removed book %s from the shelf\n", id)
	return nil
}

func searchShelf(configPath, query string, limit int) error {
	sh, _, err := openShelf(configPath)
	if err != nil {
		return err
	}
	defer closeShelf(sh)

	books, err := sh.Search(query, limit)
	if err != nil {
		return fmt.Errorf("searching shelf: %w", err)
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Shelf Search - %s", query)))

	if len(books) == 0 {
		fmt.Println(noDataStyle.Render("No saved books match that query."))
		return nil
	}

	fmt.Println(summaryStyle.Render(fmt.Sprintf("%d matching books", len(books))))
	for i, book := range books {
		fmt.Println(formatShelfBook(book, i+1))
	}
	return nil
}

func exportShelf(configPath, path, format string) error {
	sh, _, err := openShelf(configPath)
	if err != nil {
		return err
	}
	defer closeShelf(sh)

	count, err := sh.ExportFile(path, format)
	if err != nil {
		return fmt.Errorf("exporting shelf: %w", err)
	}

	fmt.Printf("Exported %d books to %s\n", count, path)
	return nil
}

func importShelf(configPath, path, format string, noProgress bool) error {
	sh, _, err := openShelf(configPath)
	if err != nil {
		return err
	}
	defer closeShelf(sh)

	stats, err := sh.ImportFile(path, format, !noProgress)
	if err != nil {
		return fmt.Errorf("importing shelf: %w", err)
	}

	fmt.Printf("Imported %d new books, updated %d existing\n", stats.Imported, stats.Updated)
	return nil
}

func showShelfStats(configPath string) error {
	sh, _, err := openShelf(configPath)
	if err != nil {
		return err
	}
	defer closeShelf(sh)

	stats, err := sh.Stats()
	if err != nil {
		return fmt.Errorf("getting shelf stats: %w", err)
	}

	fmt.Println(titleStyle.Render("Shelf Statistics"))

	total, _ := stats["total_books"].(int)
	withYear, _ := stats["books_with_year"].(int)
	fmt.Printf("Total books: %s\n", formatNumber(total))
	fmt.Printf("Books with a publish year: %s\n", formatNumber(withYear))

	if first, ok := stats["first_added"].(time.Time); ok {
		fmt.Printf("First added: %s\n", formatTime(first))
	}
	if last, ok := stats["last_added"].(time.Time); ok {
		fmt.Printf("Last added:  %s\n", formatTime(last))
	}

	return nil
}
