package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"podcast-publisher/internal/validate"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var metadataJSON string
	var metadataFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate episode metadata before publishing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (metadataJSON == "") == (metadataFile == "") {
				return fmt.Errorf("exactly one of --metadata or --metadata-file is required")
			}

			raw := []byte(metadataJSON)
			if metadataFile != "" {
				data, err := os.ReadFile(metadataFile)
				if err != nil {
					return err
				}
				raw = data
			}

			var fields map[string]any
			if err := json.Unmarshal(raw, &fields); err != nil {
				annotate(cmd, "error", "JSON Parse Error", err.Error())
				return fmt.Errorf("invalid metadata JSON: %w", err)
			}

			result := validate.Validate(fields)
			for _, message := range result.Errors {
				annotate(cmd, "error", "Validation Error", message)
			}
			for _, message := range result.Warnings {
				annotate(cmd, "warning", "Validation Warning", message)
			}

			if !result.OK() {
				return fmt.Errorf("metadata validation failed with %d error(s)", len(result.Errors))
			}

			ctx.logger().Printf("metadata validation successful (%d warnings)", len(result.Warnings))
			return nil
		},
	}

	cmd.Flags().StringVar(&metadataJSON, "metadata", "", "Episode metadata as a JSON string")
	cmd.Flags().StringVar(&metadataFile, "metadata-file", "", "Path to a JSON metadata file")

	return cmd
}
