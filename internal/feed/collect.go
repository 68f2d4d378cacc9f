package feed

import (
	"context"
	"log"
	"path"
	"strconv"
	"strings"

	"podcast-publisher/internal/models"
	"podcast-publisher/internal/slug"
	"podcast-publisher/internal/storage"
)

// CollectStored rebuilds episode records from objects already published
// under the podcast/ prefix. Object metadata carries the fields that cannot
// be derived from the key; anything missing falls back to slug-derived
// defaults so a feed can always be regenerated from the store alone.
func CollectStored(ctx context.Context, store storage.BlobStore, baseURL string, logger *log.Logger) ([]models.EpisodeRecord, error) {
	if logger == nil {
		logger = log.Default()
	}
	baseURL = strings.TrimRight(baseURL, "/")

	objects, err := store.ListByPrefix(ctx, "podcast/")
	if err != nil {
		return nil, err
	}

	var episodes []models.EpisodeRecord
	for _, obj := range objects {
		if !storage.IsAudioFilename(obj.Key) {
			continue
		}

		filename := path.Base(obj.Key)
		ext := strings.ToLower(path.Ext(filename))

		// Flat layout: podcast/{year}/{slug}.mp3. Directory layout:
		// podcast/{year}/{slug}/audio.mp3, where the slug is the directory.
		epSlug := strings.TrimSuffix(filename, path.Ext(filename))
		if parts := strings.Split(obj.Key, "/"); len(parts) == 4 {
			epSlug = parts[2]
		}

		meta := obj.Metadata
		ep := models.EpisodeRecord{
			Slug:            epSlug,
			Title:           metaOr(meta, "title", slug.TitleOf(epSlug)),
			Description:     metaOr(meta, "description", "Episode: "+epSlug),
			FileSizeBytes:   obj.Size,
			AudioURL:        baseURL + "/" + obj.Key,
			GUID:            metaOr(meta, "guid", "episode-"+epSlug),
			S3Key:           obj.Key,
			SpotifyURL:      meta["spotify_url"],
			FileExtension:   ext,
			EpisodeType:     metaOr(meta, "episode_type", "full"),
			ITunesExplicit:  metaOr(meta, "itunes_explicit", "no"),
			EpisodeImageURL: meta["episode_image_url"],
		}

		pubDate, err := slug.DateOf(epSlug)
		if err != nil {
			logger.Printf("stored episode %s: no date in slug, using object mtime", obj.Key)
			pubDate = obj.LastModified.UTC()
		}
		ep.PubDate = pubDate

		if value := meta["duration"]; value != "" {
			if seconds, err := strconv.Atoi(value); err == nil {
				ep.DurationSeconds = seconds
			}
		}
		if value := meta["season"]; value != "" {
			if season, err := strconv.Atoi(value); err == nil {
				ep.Season = &season
			}
		}
		if value := meta["episode_number"]; value != "" {
			if number, err := strconv.Atoi(value); err == nil {
				ep.EpisodeNumber = &number
			}
		}

		episodes = append(episodes, ep)
	}

	logger.Printf("collected %d stored episodes", len(episodes))
	return episodes, nil
}

func metaOr(meta map[string]string, key, fallback string) string {
	if value := meta[key]; value != "" {
		return value
	}
	return fallback
}
