package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"tomes/pkg/config"
	"tomes/pkg/openlibrary"
	"tomes/pkg/shelf"
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search Open Library for a book title",
		ArgsUsage: "TITLE...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "fields",
				Usage: "Comma-separated response fields to request",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results (0 uses the configured default)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the raw search response as JSON",
			},
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Save the first result to the shelf",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			title := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if title == "" {
				return fmt.Errorf("search requires a book title")
			}
			return searchBooks(ctx, c.String("config"), title, c.String("fields"), c.Int("limit"), c.Bool("json"), c.Bool("save"))
		},
	}
}

// searchBooks runs one search and renders or saves the results
func searchBooks(ctx context.Context, configPath, title, fields string, limit int, asJSON, save bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := openlibrary.NewClient(cfg.ClientConfig())
	if err != nil {
		return fmt.Errorf("creating search client: %w", err)
	}

	opts := openlibrary.SearchOptions{Limit: limit}
	if fields != "" {
		opts.Fields = splitFields(fields)
	}

	result, err := client.Search(ctx, title, opts)
	if err != nil {
		return fmt.Errorf("searching for %q: %w", title, err)
	}

	if asJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding results: %w", err)
		}
		fmt.Println(string(data))
	} else {
		printSearchResults(title, result)
	}

	if save {
		if len(result.Docs) == 0 {
			return fmt.Errorf("nothing to save: no results for %q", title)
		}
		return saveFirstDoc(cfg, result.Docs[0])
	}

	return nil
}

func printSearchResults(title string, result *openlibrary.SearchResult) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("Search Results - %s", title)))

	if len(result.Docs) == 0 {
		fmt.Println(noDataStyle.Render("No results found for that title."))
		return
	}

	summary := fmt.Sprintf("%s matches, showing %d", formatNumber(result.NumFound), len(result.Docs))
	fmt.Println(summaryStyle.Render(summary))

	for i, doc := range result.Docs {
		fmt.Println(formatDoc(doc, i+1))
	}
}

func saveFirstDoc(cfg *config.Config, doc openlibrary.Doc) error {
	sh, err := shelf.New(cfg.ShelfPath())
	if err != nil {
		return fmt.Errorf("opening shelf: %w", err)
	}
	defer func() {
		if err := sh.Close(); err != nil {
			fmt.Printf("Warning: failed to close shelf: %v\n", err)
		}
	}()

	book := shelf.BookFromDoc(doc)
	created, err := sh.Save(book)
	if err != nil {
		return fmt.Errorf("saving book: %w", err)
	}

	if created {
		fmt.Printf("Saved %q to the shelf (id %s)\n", book.Title, book.ID)
	} else {
		fmt.Printf("Updated %q on the shelf (id %s)\n", book.Title, book.ID)
	}
	return nil
}

// splitFields turns a comma-separated flag value into a field list,
// dropping empty pieces.
func splitFields(fields string) []string {
	parts := strings.Split(fields, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
