package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"podcast-publisher/internal/config"
	"podcast-publisher/internal/metadata"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var audioFile string
	var episodeDir string
	var commitSHA string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract episode metadata from an audio file or episode directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, err := ctx.requireBaseURL()
			if err != nil {
				return err
			}
			if (audioFile == "") == (episodeDir == "") {
				return fmt.Errorf("exactly one of --audio-file or --episode-dir is required")
			}
			if commitSHA == "" {
				commitSHA = config.CommitSHA()
			}

			resolver := metadata.NewResolver(baseURL, commitSHA, ctx.logger())

			src := metadata.FileSource(audioFile)
			if episodeDir != "" {
				src = metadata.DirectorySource(episodeDir)
			}

			record, err := resolver.Resolve(src)
			if err != nil {
				annotate(cmd, "error", "Metadata Extraction Error", err.Error())
				return err
			}

			encoded, err := json.Marshal(record)
			if err != nil {
				return err
			}

			writeOutput(cmd, "slug", record.Slug)
			writeOutput(cmd, "title", record.Title)
			writeOutput(cmd, "guid", record.GUID)
			writeOutput(cmd, "s3-key", record.S3Key)
			writeOutput(cmd, "metadata", string(encoded))

			ctx.logger().Printf("extracted %s (%d bytes, %ds)", record.Slug, record.FileSizeBytes, record.DurationSeconds)
			return nil
		},
	}

	cmd.Flags().StringVar(&audioFile, "audio-file", "", "Path to an MP3 or WAV episode file")
	cmd.Flags().StringVar(&episodeDir, "episode-dir", "", "Path to an episode directory")
	cmd.Flags().StringVar(&commitSHA, "commit-sha", "", "Commit SHA for GUID generation (defaults to GITHUB_SHA)")

	return cmd
}
