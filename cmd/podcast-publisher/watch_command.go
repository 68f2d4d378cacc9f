package main

import (
	"fmt"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"podcast-publisher/internal/config"
	"podcast-publisher/internal/metadata"
	"podcast-publisher/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var (
		episodesDir string
		debounce    time.Duration
		commitSHA   string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch an episodes directory and preview resolved metadata as it changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, err := ctx.requireBaseURL()
			if err != nil {
				return err
			}

			resolver := metadata.NewResolver(baseURL, commitSHA, ctx.logger())
			watcher, err := watch.New(episodesDir, resolver, debounce, ctx.logger())
			if err != nil {
				return fmt.Errorf("start watcher: %w", err)
			}
			defer watcher.Close()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "watching %s (ctrl-c to stop)\n\n", episodesDir)

			var last []watch.Entry
			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()

			renderEntries(cmd, watcher.Entries())
			last = watcher.Entries()

			for {
				select {
				case <-sigCtx.Done():
					return nil
				case <-ticker.C:
					entries := watcher.Entries()
					if reflect.DeepEqual(entries, last) {
						continue
					}
					last = entries
					renderEntries(cmd, entries)
				}
			}
		},
	}

	cmd.Flags().StringVar(&episodesDir, "episodes-dir", "episodes", "Directory containing episode subdirectories")
	cmd.Flags().DurationVar(&debounce, "debounce", 400*time.Millisecond, "Delay before re-reading after a change")
	cmd.Flags().StringVar(&commitSHA, "commit-sha", config.CommitSHA(), "Commit SHA used for GUID generation")

	return cmd
}

func renderEntries(cmd *cobra.Command, entries []watch.Entry) {
	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.AppendHeader(table.Row{"Slug", "Title", "Date", "Duration", "Status"})

	for _, entry := range entries {
		status := "ok"
		switch {
		case len(entry.Validation.Errors) > 0:
			status = "invalid: " + strings.Join(entry.Validation.Errors, "; ")
		case len(entry.Validation.Warnings) > 0:
			status = "warning: " + strings.Join(entry.Validation.Warnings, "; ")
		}
		tw.AppendRow(table.Row{
			entry.Record.Slug,
			entry.Record.Title,
			entry.Record.PubDate.Format("2006-01-02"),
			formatSeconds(entry.Record.DurationSeconds),
			status,
		})
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no valid episodes found")
		return
	}
	tw.Render()
}

func formatSeconds(seconds int) string {
	if seconds <= 0 {
		return "-"
	}
	d := time.Duration(seconds) * time.Second
	return d.String()
}
