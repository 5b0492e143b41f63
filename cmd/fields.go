package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tomes/pkg/openlibrary"
)

// FieldsCommand creates the fields command
func FieldsCommand() *cli.Command {
	return &cli.Command{
		Name:  "fields",
		Usage: "List the search response fields tomes can request",
		Action: func(ctx context.Context, c *cli.Command) error {
			printFields()
			return nil
		},
	}
}

func printFields() {
	fmt.Println(titleStyle.Render("Open Library Search Fields"))

	titler := cases.Title(language.English)
	for _, field := range openlibrary.KnownFields {
		display := titler.String(strings.ReplaceAll(field.Name, "_", " "))
		fmt.Printf("%s (%s)\n", headerStyle.Render(display), field.Name)
		fmt.Printf("  %s\n", metaStyle.Render(field.Description))
	}

	fmt.Println()
	fmt.Println("Pass field names to search with --fields, e.g. --fields title,author_name,isbn")
}
