package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/urfave/cli/v3"

	"tomes/pkg/config"
	"tomes/pkg/openlibrary"
)

// lineReader is the prompt surface the interactive loop runs against. The
// production implementation is peterh/liner; tests script it.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

type linerReader struct {
	state *liner.State
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	return r.state.Prompt(prompt)
}

func (r *linerReader) AppendHistory(item string) {
	r.state.AppendHistory(item)
}

// ShellCommand creates the shell command
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Search Open Library interactively",
		Action: func(ctx context.Context, c *cli.Command) error {
			return RunShell(ctx, c.String("config"))
		},
	}
}

// RunShell wires the configured client to a liner-backed prompt and hands
// off to the loop. Running tomes with no arguments lands here too.
func RunShell(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := openlibrary.NewClient(cfg.ClientConfig())
	if err != nil {
		return fmt.Errorf("creating search client: %w", err)
	}

	state := liner.NewLiner()
	defer func() {
		if err := state.Close(); err != nil {
			fmt.Printf("Warning: failed to close line reader: %v\n", err)
		}
	}()
	state.SetCtrlCAborts(true)

	historyPath, err := config.GetHistoryPath()
	if err == nil {
		loadHistory(state, historyPath)
		defer saveHistory(state, historyPath)
	}

	return runShellLoop(ctx, client, &linerReader{state: state}, os.Stdout)
}

// runShellLoop drives the prompt until the user quits or input runs out.
// Search failures are reported and the loop keeps going; only prompt-level
// errors end the session.
func runShellLoop(ctx context.Context, client *openlibrary.Client, reader lineReader, out io.Writer) error {
	fmt.Fprintln(out, "Open Library Book Search")
	fmt.Fprintln(out, "-----------------------")

	for {
		fmt.Fprintln(out)
		input, err := reader.Prompt("Enter a book title (or 'q' to quit): ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "\nExiting...")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		title := strings.TrimSpace(input)
		if strings.EqualFold(title, "q") {
			fmt.Fprintln(out, "\nExiting...")
			return nil
		}
		if title == "" {
			fmt.Fprintln(out, "Please enter a valid book title")
			continue
		}
		reader.AppendHistory(title)

		result, err := client.Search(ctx, title, openlibrary.SearchOptions{})
		if err != nil {
			fmt.Fprintf(out, "An error occurred: %v\n", err)
			continue
		}

		if len(result.Docs) > 0 {
			fmt.Fprintln(out, "\nSearch Result:")
			fmt.Fprintln(out, openlibrary.FormatBook(result.Docs[0]))
		} else {
			fmt.Fprintln(out, "No results found for that title")
		}
	}
}

func loadHistory(state *liner.State, path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Printf("Warning: failed to close history file: %v\n", err)
		}
	}()
	if _, err := state.ReadHistory(f); err != nil {
		fmt.Printf("Warning: failed to read history: %v\n", err)
	}
}

func saveHistory(state *liner.State, path string) {
	f, err := os.Create(path)
	if err != nil {
		fmt.Printf("Warning: failed to save history: %v\n", err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Printf("Warning: failed to close history file: %v\n", err)
		}
	}()
	if _, err := state.WriteHistory(f); err != nil {
		fmt.Printf("Warning: failed to save history: %v\n", err)
	}
}
