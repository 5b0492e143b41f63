package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"

	"tomes/pkg/config"
	"tomes/pkg/openlibrary"
	"tomes/pkg/realtime"
	"tomes/pkg/shelf"
)

// WatchCommand creates a CLI command that tails a serve instance's firehose
// WebSocket and renders saved-book events as they arrive.
//
// Typical usage:
//
//	tomes watch
//	tomes watch --url ws://localhost:8080/api/firehose/ws
//	tomes watch --json | jq -r 'select(.type=="book") | .book.title'
//
// By default book events render as text. With --json the frames are
// reprinted as NDJSON, filtered to book and book_batch frames unless --all.
//
// The command auto-reconnects with exponential backoff if the server is not
// yet reachable or the connection drops, resuming from the newest book seen.
// It never exits unless:
//   - Context is cancelled (Ctrl+C / signal)
//   - A connection attempt or stream fails AND --no-retry is set.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Stream saved-book events from a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Firehose WebSocket URL (overrides listen_addr from the config)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "With --json, print all frame types instead of only book frames",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print raw NDJSON frames instead of rendered text",
			},
			&cli.BoolFlag{
				Name:  "no-retry",
				Usage: "Do not retry on failures; exit on first connection error",
			},
			&cli.DurationFlag{
				Name:  "initial-backoff",
				Usage: "Initial reconnect backoff",
				Value: 1 * time.Second,
			},
			&cli.DurationFlag{
				Name:  "max-backoff",
				Usage: "Maximum reconnect backoff",
				Value: 30 * time.Second,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			rawURL := c.String("url")
			if rawURL == "" {
				cfg, err := config.LoadConfig(c.String("config"))
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				rawURL = fmt.Sprintf("ws://%s/api/firehose/ws", cfg.ListenAddr)
			}

			opts := watchOptions{
				url:            rawURL,
				includeAll:     c.Bool("all"),
				asJSON:         c.Bool("json"),
				noRetry:        c.Bool("no-retry"),
				initialBackoff: c.Duration("initial-backoff"),
				maxBackoff:     c.Duration("max-backoff"),
				stdout:         os.Stdout,
				stderr:         os.Stderr,
			}
			return watchFirehose(ctx, opts)
		},
	}
}

type watchOptions struct {
	url            string
	includeAll     bool
	asJSON         bool
	noRetry        bool
	initialBackoff time.Duration
	maxBackoff     time.Duration
	stdout         io.Writer
	stderr         io.Writer
}

// watchFrame is the decoded shape of every frame the firehose endpoint
// sends. Only the fields relevant to the frame's type are populated.
type watchFrame struct {
	Type  string              `json:"type"`
	Mode  string              `json:"mode,omitempty"`
	Book  *realtime.BookEvent `json:"book,omitempty"`
	Books []shelf.Book        `json:"books,omitempty"`
	Count int                 `json:"count,omitempty"`
}

func watchFirehose(ctx context.Context, opts watchOptions) error {
	if opts.initialBackoff <= 0 {
		opts.initialBackoff = time.Second
	}
	if opts.maxBackoff < opts.initialBackoff {
		opts.maxBackoff = 30 * time.Second
	}

	base, err := url.Parse(opts.url)
	if err != nil {
		return fmt.Errorf("parsing firehose URL: %w", err)
	}

	_, _ = fmt.Fprintf(opts.stderr, "Firehose: connecting to %s\n", opts.url)
	backoff := opts.initialBackoff

	// lastSeen is the newest book timestamp observed; reconnects pass it as
	// the since parameter so nothing is missed across a drop.
	var lastSeen time.Time

	for {
		dialURL := *base
		if !lastSeen.IsZero() {
			q := dialURL.Query()
			q.Set("since", lastSeen.UTC().Format(time.RFC3339))
			dialURL.RawQuery = q.Encode()
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, dialURL.String(), nil)
		if err != nil {
			if opts.noRetry {
				return fmt.Errorf("dial: %w", err)
			}
			_, _ = fmt.Fprintf(opts.stderr, "Firehose: dial failed (%v), retrying in %s\n", err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > opts.maxBackoff {
				backoff = opts.maxBackoff
			}
			continue
		}

		_, _ = fmt.Fprintf(opts.stderr, "Firehose: connected (backoff reset)\n")
		backoff = opts.initialBackoff

		err = streamFirehoseFrames(ctx, conn, opts, &lastSeen)
		_ = conn.Close()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if opts.noRetry {
				return err
			}
			_, _ = fmt.Fprintf(opts.stderr, "Firehose: stream error (%v), reconnecting...\n", err)
			// Brief pause before immediate reconnect
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(250 * time.Millisecond):
			}
			continue
		}

		// Normal close. Respect no-retry or keep trying.
		if opts.noRetry {
			return nil
		}
		_, _ = fmt.Fprintf(opts.stderr, "Firehose: disconnected, attempting reconnect...\n")
	}
}

func streamFirehoseFrames(ctx context.Context, conn *websocket.Conn, opts watchOptions, lastSeen *time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		var frame watchFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			// Malformed frames only surface in raw mode with --all
			if opts.asJSON && opts.includeAll {
				_, _ = fmt.Fprintln(opts.stdout, strings.TrimSpace(string(payload)))
			}
			continue
		}

		advanceWatchCursor(lastSeen, frame)

		if opts.asJSON {
			if !opts.includeAll && frame.Type != "book" && frame.Type != "book_batch" {
				continue
			}
			_, _ = fmt.Fprintln(opts.stdout, strings.TrimSpace(string(payload)))
			continue
		}

		switch frame.Type {
		case "init":
			_, _ = fmt.Fprintf(opts.stderr, "Firehose: %d books in snapshot (mode %s)\n", frame.Count, frame.Mode)
			for _, book := range frame.Books {
				printWatchBook(opts.stdout, book.Metadata, book.AddedAt)
			}
		case "book":
			if frame.Book != nil {
				printWatchBook(opts.stdout, frame.Book.Metadata, frame.Book.SavedAt)
			}
		case "book_batch":
			for _, book := range frame.Books {
				printWatchBook(opts.stdout, book.Metadata, book.AddedAt)
			}
		}
		// Heartbeats only prove the connection is alive; nothing to print.
	}
}

// advanceWatchCursor moves the since cursor past every book in the frame.
func advanceWatchCursor(lastSeen *time.Time, frame watchFrame) {
	if frame.Book != nil && frame.Book.SavedAt.After(*lastSeen) {
		*lastSeen = frame.Book.SavedAt
	}
	for _, book := range frame.Books {
		if book.AddedAt.After(*lastSeen) {
			*lastSeen = book.AddedAt
		}
	}
}

func printWatchBook(out io.Writer, md map[string]any, savedAt time.Time) {
	_, _ = fmt.Fprintln(out, openlibrary.FormatBookMetadata(md))
	if !savedAt.IsZero() {
		_, _ = fmt.Fprintf(out, "Saved: %s\n", savedAt.Local().Format("2006-01-02 15:04:05"))
	}
	_, _ = fmt.Fprintln(out)
}
