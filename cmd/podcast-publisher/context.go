package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"podcast-publisher/internal/config"
	"podcast-publisher/internal/storage"
)

// commandContext carries the persistent flags and lazily built dependencies
// shared by all subcommands.
type commandContext struct {
	baseURL string
	dryRun  bool
	verbose bool

	log *log.Logger
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) logger() *log.Logger {
	if c.log == nil {
		out := io.Discard
		if c.verbose {
			out = os.Stderr
		}
		c.log = log.New(out, "", log.LstdFlags)
	}
	return c.log
}

func (c *commandContext) requireBaseURL() (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("--base-url is required")
	}
	return strings.TrimRight(c.baseURL, "/"), nil
}

// openStore returns the blob store backend plus a close function. Dry runs
// get an in-memory store so the full pipeline can be exercised without
// credentials.
func (c *commandContext) openStore(ctx context.Context) (storage.BlobStore, func() error, error) {
	if c.dryRun {
		return storage.NewMemoryStore(), func() error { return nil }, nil
	}

	cfg := config.ResolveStorage()
	if cfg.Host == "" {
		return nil, nil, fmt.Errorf("storage backend not configured: set PODCAST_STORAGE_HOST or use --dry-run")
	}

	store, err := storage.DialSFTP(ctx, storage.SFTPConfig{
		Host:      cfg.Host,
		Port:      cfg.Port,
		User:      cfg.User,
		Pass:      cfg.Pass,
		RemoteDir: cfg.RemoteDir,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// writeOutput emits a step output in the key=value form CI collects. When
// GITHUB_OUTPUT is set the pair is appended there; otherwise it goes to the
// command's stdout.
func writeOutput(cmd *cobra.Command, key, value string) {
	line := key + "=" + value + "\n"
	if path := strings.TrimSpace(os.Getenv("GITHUB_OUTPUT")); path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			defer f.Close()
			if _, err := f.WriteString(line); err == nil {
				return
			}
		}
	}
	fmt.Fprint(cmd.OutOrStdout(), line)
}

// annotate prints a CI error or warning annotation.
func annotate(cmd *cobra.Command, level, title, message string) {
	fmt.Fprintf(cmd.OutOrStdout(), "::%s title=%s::%s\n", level, title, message)
}
