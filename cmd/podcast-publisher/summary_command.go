package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"podcast-publisher/internal/summary"
)

func newSummaryCommand(ctx *commandContext) *cobra.Command {
	report := summary.Report{}

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Render the deployment summary for the CI run page",
		RunE: func(cmd *cobra.Command, args []string) error {
			if report.EpisodeSlug == "" || report.EpisodeTitle == "" {
				return fmt.Errorf("--episode-slug and --episode-title are required")
			}
			if report.AudioURL == "" || report.RSSURL == "" {
				return fmt.Errorf("--audio-url and --rss-url are required")
			}

			content := report.Markdown(time.Now())
			return summary.Write(content, cmd.OutOrStdout(), ctx.logger())
		},
	}

	cmd.Flags().StringVar(&report.EpisodeSlug, "episode-slug", "", "Episode slug")
	cmd.Flags().StringVar(&report.EpisodeTitle, "episode-title", "", "Episode title")
	cmd.Flags().StringVar(&report.AudioURL, "audio-url", "", "Published audio file URL")
	cmd.Flags().StringVar(&report.RSSURL, "rss-url", "", "Published RSS feed URL")
	cmd.Flags().StringVar(&report.SpotifyURL, "spotify-url", "", "Spotify episode URL")
	cmd.Flags().StringVar(&report.VerificationStatus, "verification-status", "unknown", "Verification status: success, failed, or unknown")
	cmd.Flags().StringVar(&report.UploadDuration, "upload-duration", "", "Upload duration")
	cmd.Flags().StringVar(&report.RSSDuration, "rss-duration", "", "Feed generation duration")
	cmd.Flags().StringVar(&report.VerificationDuration, "verification-duration", "", "Verification duration")
	cmd.Flags().StringVar(&report.AttemptsMade, "attempts-made", "", "Verification attempts made")

	return cmd
}
