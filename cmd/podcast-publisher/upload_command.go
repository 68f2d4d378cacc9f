package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"podcast-publisher/internal/storage"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var audioFile string
	var objectKey string
	var episodeDir string
	var keyPrefix string
	var maxRetries int
	var metadataJSON string

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload an audio file or a whole episode directory to the object store",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, err := ctx.requireBaseURL()
			if err != nil {
				return err
			}
			if (audioFile == "") == (episodeDir == "") {
				return fmt.Errorf("exactly one of --audio-file or --episode-dir is required")
			}
			if audioFile != "" && objectKey == "" {
				return fmt.Errorf("--s3-key is required with --audio-file")
			}
			if episodeDir != "" && keyPrefix == "" {
				return fmt.Errorf("--prefix is required with --episode-dir")
			}

			var metadata map[string]string
			if metadataJSON != "" {
				if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
					annotate(cmd, "error", "Metadata JSON Error", err.Error())
					return fmt.Errorf("invalid metadata JSON: %w", err)
				}
			}

			store, closeStore, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			gateway := storage.NewGateway(store, baseURL, ctx.logger())
			if !gateway.BucketExists(cmd.Context()) {
				return fmt.Errorf("storage location is not accessible")
			}

			if audioFile != "" {
				result := gateway.UploadWithRetry(cmd.Context(), audioFile, objectKey, maxRetries, metadata)
				if !result.Success {
					annotate(cmd, "error", "Upload Error", result.Error)
					return fmt.Errorf("upload failed after %d attempt(s): %s", result.Attempts, result.Error)
				}

				writeOutput(cmd, "audio-url", result.URL)
				writeOutput(cmd, "duration", fmt.Sprintf("%.2f", result.Duration.Seconds()))
				writeOutput(cmd, "attempts", fmt.Sprintf("%d", result.Attempts))
				return nil
			}

			result, err := gateway.UploadDirectory(cmd.Context(), episodeDir, keyPrefix, metadata)
			if err != nil {
				return err
			}

			encoded, err := json.Marshal(result)
			if err != nil {
				return err
			}
			writeOutput(cmd, "result", string(encoded))

			if !result.Success {
				if result.Error != "" {
					annotate(cmd, "error", "Upload Error", result.Error)
					return fmt.Errorf("directory upload failed: %s", result.Error)
				}
				return fmt.Errorf("directory upload failed: %d of %d files", result.FailedFiles, result.TotalFiles)
			}
			if result.AudioFile != nil {
				writeOutput(cmd, "audio-url", result.AudioFile.URL)
			}
			if result.EpisodeImage != nil {
				writeOutput(cmd, "episode-image-url", result.EpisodeImage.URL)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&audioFile, "audio-file", "", "Path to an audio file to upload")
	cmd.Flags().StringVar(&objectKey, "s3-key", "", "Object key for the uploaded file")
	cmd.Flags().StringVar(&episodeDir, "episode-dir", "", "Episode directory to upload in full")
	cmd.Flags().StringVar(&keyPrefix, "prefix", "", "Key prefix for directory uploads, e.g. podcast/2025/slug")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 3, "Maximum upload attempts per file")
	cmd.Flags().StringVar(&metadataJSON, "metadata", "", "JSON object of metadata to attach to the audio object")

	return cmd
}
