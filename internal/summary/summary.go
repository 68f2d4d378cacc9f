// Package summary renders the deployment report shown on CI run pages.
package summary

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Report holds everything the deployment summary displays. Duration and
// attempt fields are preformatted strings; empty means not available.
type Report struct {
	EpisodeSlug  string `json:"episode_slug"`
	EpisodeTitle string `json:"episode_title"`
	AudioURL     string `json:"audio_url"`
	RSSURL       string `json:"rss_url"`
	SpotifyURL   string `json:"spotify_url,omitempty"`

	// VerificationStatus is one of success, failed, or unknown.
	VerificationStatus string `json:"verification_status"`

	UploadDuration       string `json:"upload_duration,omitempty"`
	RSSDuration          string `json:"rss_duration,omitempty"`
	VerificationDuration string `json:"verification_duration,omitempty"`
	AttemptsMade         string `json:"attempts_made,omitempty"`

	Timestamp string `json:"timestamp"`
}

func (r Report) statusEmoji() string {
	switch r.VerificationStatus {
	case "success":
		return "✅"
	case "failed":
		return "❌"
	default:
		return "⚠️"
	}
}

func (r Report) statusText() string {
	switch r.VerificationStatus {
	case "success":
		return "Success"
	case "failed":
		return "Failed"
	default:
		return "Unknown"
	}
}

func orNA(value string) string {
	if value == "" {
		return "N/A"
	}
	return value
}

func kvTable(rows [][2]string) string {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Field", "Value"})
	for _, row := range rows {
		tw.AppendRow(table.Row{row[0], row[1]})
	}
	return tw.RenderMarkdown()
}

// Markdown renders the full deployment summary. now becomes the completion
// timestamp so callers control it in tests.
func (r Report) Markdown(now time.Time) string {
	r.Timestamp = now.UTC().Format("2006-01-02 15:04:05 UTC")

	var b strings.Builder
	fmt.Fprintf(&b, "# %s Podcast Episode Deployment Summary\n\n", r.statusEmoji())

	b.WriteString("## Episode Information\n\n")
	b.WriteString(kvTable([][2]string{
		{"Episode", r.EpisodeTitle},
		{"Slug", "`" + r.EpisodeSlug + "`"},
		{"Status", r.statusEmoji() + " " + r.statusText()},
		{"Completed", r.Timestamp},
	}))
	b.WriteString("\n\n## Deployment Results\n\n")

	b.WriteString("### Audio File Upload\n\n")
	b.WriteString(kvTable([][2]string{
		{"Audio URL", fmt.Sprintf("[open file](%s)", r.AudioURL)},
		{"Upload time", orNA(r.UploadDuration)},
	}))
	b.WriteString("\n\n### RSS Feed\n\n")
	b.WriteString(kvTable([][2]string{
		{"RSS URL", fmt.Sprintf("[open feed](%s)", r.RSSURL)},
		{"Generation time", orNA(r.RSSDuration)},
	}))

	b.WriteString("\n\n### Spotify Integration\n\n")
	spotifyLink := "not yet available"
	if r.SpotifyURL != "" {
		spotifyLink = fmt.Sprintf("[listen on Spotify](%s)", r.SpotifyURL)
	}
	b.WriteString(kvTable([][2]string{
		{"Verification", r.statusEmoji() + " " + r.statusText()},
		{"Verification time", orNA(r.VerificationDuration)},
		{"Attempts", orNA(r.AttemptsMade)},
		{"Spotify URL", spotifyLink},
	}))

	b.WriteString("\n\n## Next Steps\n\n")
	switch r.VerificationStatus {
	case "success":
		b.WriteString("The episode was published successfully. It is live on Spotify, the feed has been updated, and other platforms should pick it up within a few hours.\n")
	case "failed":
		fmt.Fprintf(&b, "Spotify verification failed. Check that the [feed](%s) contains the episode and the audio file is reachable, then request a manual index refresh in Spotify for Podcasters or re-run the workflow.\n", r.RSSURL)
	default:
		b.WriteString("The workflow finished but the Spotify verification result is unknown. Manual confirmation is recommended.\n")
	}

	b.WriteString("\n## Technical Details\n\n```json\n")
	details, err := json.MarshalIndent(r, "", "  ")
	if err == nil {
		b.Write(details)
	}
	b.WriteString("\n```\n")

	b.WriteString(workflowSection())
	return b.String()
}

func workflowSection() string {
	repository := os.Getenv("GITHUB_REPOSITORY")
	runID := os.Getenv("GITHUB_RUN_ID")
	if repository == "" || runID == "" {
		return ""
	}

	serverURL := os.Getenv("GITHUB_SERVER_URL")
	if serverURL == "" {
		serverURL = "https://github.com"
	}

	var b strings.Builder
	b.WriteString("\n## Workflow Information\n\n")
	fmt.Fprintf(&b, "- **Repository**: [%s](%s/%s)\n", repository, serverURL, repository)
	fmt.Fprintf(&b, "- **Run ID**: [%s](%s/%s/actions/runs/%s)\n", runID, serverURL, repository, runID)
	if actor := os.Getenv("GITHUB_ACTOR"); actor != "" {
		fmt.Fprintf(&b, "- **Triggered by**: %s\n", actor)
	}
	if event := os.Getenv("GITHUB_EVENT_NAME"); event != "" {
		fmt.Fprintf(&b, "- **Event**: %s\n", event)
	}
	return b.String()
}

// Write delivers the summary to the CI step summary file when
// GITHUB_STEP_SUMMARY is set; otherwise it prints to out.
func Write(content string, out io.Writer, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}

	if path := strings.TrimSpace(os.Getenv("GITHUB_STEP_SUMMARY")); path != "" {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("summary: write %s: %w", path, err)
		}
		logger.Printf("summary written to %s", path)
		return nil
	}

	divider := strings.Repeat("=", 80)
	fmt.Fprintln(out, divider)
	fmt.Fprintln(out, content)
	fmt.Fprintln(out, divider)
	return nil
}
