package feed

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"podcast-publisher/internal/models"
)

// Load parses a previously published feed document back into episode
// records, so a regeneration run can merge against what is already live
// even when object metadata has been lost.
func Load(r io.Reader) ([]models.EpisodeRecord, error) {
	parsed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("feed: parse: %w", err)
	}

	episodes := make([]models.EpisodeRecord, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		ep := models.EpisodeRecord{
			Title:       item.Title,
			Description: item.Description,
			GUID:        item.GUID,
		}
		if item.PublishedParsed != nil {
			ep.PubDate = item.PublishedParsed.UTC()
		}

		if len(item.Enclosures) > 0 {
			enc := item.Enclosures[0]
			ep.AudioURL = enc.URL
			if length, err := strconv.ParseInt(enc.Length, 10, 64); err == nil {
				ep.FileSizeBytes = length
			}

			filename := enclosureFilename(enc.URL)
			ep.FileExtension = strings.ToLower(path.Ext(filename))
			ep.Slug = slugFromEnclosure(enc.URL, filename)
		}

		if ext := item.ITunesExt; ext != nil {
			ep.DurationSeconds = ParseDuration(ext.Duration)
			ep.ITunesExplicit = ext.Explicit
			ep.ITunesSummary = ext.Summary
			ep.ITunesSubtitle = ext.Subtitle
			ep.EpisodeImageURL = ext.Image
			ep.EpisodeType = ext.EpisodeType
			if ext.Season != "" {
				if season, err := strconv.Atoi(ext.Season); err == nil {
					ep.Season = &season
				}
			}
			if ext.Episode != "" {
				if number, err := strconv.Atoi(ext.Episode); err == nil {
					ep.EpisodeNumber = &number
				}
			}
			if ext.Keywords != "" {
				for _, kw := range strings.Split(ext.Keywords, ",") {
					if kw = strings.TrimSpace(kw); kw != "" {
						ep.ITunesKeywords = append(ep.ITunesKeywords, kw)
					}
				}
			}
		}
		if ep.EpisodeType == "" {
			ep.EpisodeType = "full"
		}
		if ep.ITunesExplicit == "" {
			ep.ITunesExplicit = "no"
		}

		episodes = append(episodes, ep)
	}

	return episodes, nil
}

// ParseDuration converts an HH:MM:SS (or MM:SS, or plain seconds) duration
// string to seconds. Unparseable input yields zero.
func ParseDuration(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}

// slugFromEnclosure recovers the episode slug from the enclosure URL.
// Directory-layout URLs (podcast/{year}/{slug}/{file}) carry the slug in
// the parent directory segment; flat-layout URLs carry it in the filename
// stem.
func slugFromEnclosure(rawURL, filename string) string {
	stem := strings.TrimSuffix(filename, path.Ext(filename))

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return stem
	}
	parts := strings.Split(strings.TrimPrefix(path.Clean(parsed.Path), "/"), "/")
	if len(parts) == 4 && parts[0] == "podcast" {
		return parts[2]
	}
	return stem
}

func enclosureFilename(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return path.Base(rawURL)
	}
	return path.Base(parsed.Path)
}
