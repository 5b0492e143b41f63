package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v3"

	"tomes/pkg/api"
	"tomes/pkg/config"
	"tomes/pkg/openlibrary"
	"tomes/pkg/realtime"
	"tomes/pkg/shelf"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on (overrides listen_addr from the config)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("listen"))
		},
	}
}

// serve hosts the API until interrupted. The config file is watched and
// SIGHUP handled so search defaults can change without dropping the
// listener; storage_dir and listen_addr changes still need a restart.
func serve(ctx context.Context, configPath, listenAddr string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if listenAddr == "" {
		listenAddr = cfg.ListenAddr
	}

	sh, err := shelf.New(cfg.ShelfPath())
	if err != nil {
		return fmt.Errorf("opening shelf: %w", err)
	}
	defer func() {
		if err := sh.Close(); err != nil {
			fmt.Printf("Warning: failed to close shelf: %v\n", err)
		}
	}()

	client, err := openlibrary.NewClient(cfg.ClientConfig())
	if err != nil {
		return fmt.Errorf("creating search client: %w", err)
	}

	hub := realtime.NewFirehoseHub(64)
	apiServer := api.NewServer(sh, client)
	apiServer.SetFirehoseHub(hub)

	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)
	handler := api.CorsMiddleware(mux)

	server := &http.Server{
		Addr:    listenAddr,
		Handler: handler,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting API server on http://%s", listenAddr)
		log.Printf("Available endpoints:")
		log.Printf("  GET /api/search - Search Open Library")
		log.Printf("  GET /api/books - List saved books")
		log.Printf("  POST /api/books - Save a book")
		log.Printf("  GET /api/books/{id} - Get a saved book")
		log.Printf("  DELETE /api/books/{id} - Remove a saved book")
		log.Printf("  GET /api/shelf/search - Search saved books")
		log.Printf("  GET /api/firehose/ws - WebSocket stream of saved books")
		log.Printf("  GET /health - Health check")
		log.Printf("  GET /metrics - Prometheus metrics")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Signal handling - includes SIGHUP for reload
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Set up filesystem watcher for config file. Nil channels block forever
	// in the select below, so a failed watcher just disables hot reload.
	var watchEvents chan fsnotify.Event
	var watchErrors chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("Warning: failed to create config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				log.Printf("Warning: failed to close config file watcher: %v", err)
			}
		}()

		if err := watcher.Add(configPath); err != nil {
			log.Printf("Warning: failed to watch config file %s: %v", configPath, err)
		} else {
			log.Printf("Watching config file for changes: %s", configPath)
		}
		watchEvents = watcher.Events
		watchErrors = watcher.Errors
	}

	fmt.Println("Server started. Press Ctrl+C to stop, send SIGHUP to reload, or modify config file for automatic reload.")

	// Main event handling loop
	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				log.Println("Received SIGHUP, reloading configuration...")
				if err := reloadConfiguration(configPath, apiServer); err != nil {
					log.Printf("Failed to reload configuration: %v", err)
				} else {
					log.Println("Configuration reloaded successfully")
				}
			case syscall.SIGINT, syscall.SIGTERM:
				fmt.Println("\nShutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			}
		case event, ok := <-watchEvents:
			if !ok {
				continue
			}
			// React to write, create, rename, and remove events (editors often use atomic writes)
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				log.Printf("Config file changed: %s (event: %s), reloading configuration...", event.Name, event.Op.String())

				// For rename/remove events, we need to re-add the file to the watcher since it was replaced
				if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					// Small delay to ensure the new file is fully written
					time.Sleep(200 * time.Millisecond)

					// Check if file was actually replaced (atomic write) or just removed
					if _, err := os.Stat(configPath); os.IsNotExist(err) {
						log.Printf("Config file was removed and not replaced, skipping reload")
						continue
					}

					// Re-add the config file to watcher in case it was replaced
					if err := watcher.Add(configPath); err != nil {
						log.Printf("Warning: failed to re-add config file to watcher after rename/remove: %v", err)
					}
				} else {
					// Add a small delay to ensure file write is complete
					time.Sleep(100 * time.Millisecond)
				}

				if err := reloadConfiguration(configPath, apiServer); err != nil {
					log.Printf("Failed to reload configuration after file change: %v", err)
				} else {
					log.Println("Configuration reloaded successfully after file change")
				}
			}
		case err, ok := <-watchErrors:
			if !ok {
				continue
			}
			log.Printf("Config file watcher error: %v", err)
		}
	}
}

// reloadConfiguration rebuilds the search client from the config file and
// swaps it into the running API server.
func reloadConfiguration(configPath string, apiServer *api.Server) error {
	newCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading new config: %w", err)
	}

	client, err := openlibrary.NewClient(newCfg.ClientConfig())
	if err != nil {
		return fmt.Errorf("creating search client: %w", err)
	}

	apiServer.SetClient(client)
	log.Printf("Search defaults now fields=%v limit=%d", client.Fields(), client.Limit())
	return nil
}
