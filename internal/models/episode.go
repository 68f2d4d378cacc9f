package models

import "time"

// EpisodeRecord is the canonical metadata for a single published episode.
// Records are built once per publishing run and treated as immutable after
// resolution; only SpotifyURL is filled in later, after index verification.
type EpisodeRecord struct {
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	PubDate         time.Time `json:"pub_date"`
	DurationSeconds int       `json:"duration_seconds"`
	FileSizeBytes   int64     `json:"file_size_bytes"`
	AudioURL        string    `json:"audio_url"`
	GUID            string    `json:"guid"`
	S3Key           string    `json:"s3_key"`
	SpotifyURL      string    `json:"spotify_url,omitempty"`
	FileExtension   string    `json:"file_extension"`

	// iTunes extensions, all optional.
	EpisodeImageURL string   `json:"episode_image_url,omitempty"`
	Season          *int     `json:"season,omitempty"`
	EpisodeNumber   *int     `json:"episode_number,omitempty"`
	EpisodeType     string   `json:"episode_type,omitempty"`
	ITunesSummary   string   `json:"itunes_summary,omitempty"`
	ITunesSubtitle  string   `json:"itunes_subtitle,omitempty"`
	ITunesKeywords  []string `json:"itunes_keywords,omitempty"`
	ITunesExplicit  string   `json:"itunes_explicit,omitempty"`
}

// MIMEType returns the enclosure content type derived from the file extension.
func (e EpisodeRecord) MIMEType() string {
	if e.FileExtension == ".wav" {
		return "audio/wav"
	}
	return "audio/mpeg"
}

// Year returns the publication year used in all derived object keys.
func (e EpisodeRecord) Year() int {
	return e.PubDate.Year()
}

// VerificationResult captures the outcome of polling the indexing API
// for a published episode.
type VerificationResult struct {
	Success          bool   `json:"success"`
	EpisodeGUID      string `json:"episode_guid"`
	AttemptsMade     int    `json:"attempts_made"`
	TimeTakenSeconds int    `json:"time_taken_seconds"`
	EpisodeID        string `json:"spotify_episode_id,omitempty"`
	EpisodeURL       string `json:"spotify_url,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
}
