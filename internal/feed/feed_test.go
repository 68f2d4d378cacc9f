package feed

import (
	"bytes"
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-publisher/internal/config"
	"podcast-publisher/internal/models"
	"podcast-publisher/internal/storage"
)

var testChannel = config.Channel{
	Title:       "Night Shift Radio",
	Description: "A show about building things after hours",
	Author:      "Rei Tanaka",
	Email:       "rei@example.com",
	Language:    "ja",
	Category:    "Technology",
	Subcategory: "Software Engineering",
	Explicit:    "no",
	ImageURL:    "https://cdn.example.com/podcast-cover.jpg",
}

func intPtr(n int) *int { return &n }

func sampleEpisode() models.EpisodeRecord {
	return models.EpisodeRecord{
		Slug:            "20250618-test-episode",
		Title:           "Test Episode",
		Description:     "An episode for the tests",
		PubDate:         time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC),
		DurationSeconds: 1830,
		FileSizeBytes:   52428800,
		AudioURL:        "https://cdn.example.com/podcast/2025/20250618-test-episode/audio.mp3",
		GUID:            "repo-abcdef1-20250618-test-episode",
		S3Key:           "podcast/2025/20250618-test-episode/audio.mp3",
		FileExtension:   ".mp3",
		EpisodeType:     "full",
		ITunesExplicit:  "no",
		ITunesKeywords:  []string{"go", "infrastructure"},
		Season:          intPtr(2),
		EpisodeNumber:   intPtr(14),
	}
}

func buildSample(t *testing.T, episodes ...models.EpisodeRecord) string {
	t.Helper()
	b := NewBuilder(testChannel, "https://cdn.example.com")
	out, err := b.Build(episodes, time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return string(out)
}

func TestBuildIsDeterministic(t *testing.T) {
	first := buildSample(t, sampleEpisode())
	second := buildSample(t, sampleEpisode())
	assert.Equal(t, first, second, "same inputs must produce byte-identical documents")
}

func TestBuildChannelStructure(t *testing.T) {
	out := buildSample(t, sampleEpisode())

	assert.Contains(t, out, `<rss version="2.0"`)
	assert.Contains(t, out, `xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd"`)
	assert.Contains(t, out, "<title>Night Shift Radio</title>")
	assert.Contains(t, out, "<language>ja</language>")
	assert.Contains(t, out, `<atom:link href="https://cdn.example.com/rss.xml" rel="self" type="application/rss+xml">`)
	assert.Contains(t, out, `<itunes:category text="Technology">`)
	assert.Contains(t, out, `<itunes:category text="Software Engineering">`)
	assert.Contains(t, out, "<itunes:name>Rei Tanaka</itunes:name>")
	assert.Contains(t, out, "<itunes:email>rei@example.com</itunes:email>")
	assert.Contains(t, out, `<itunes:image href="https://cdn.example.com/podcast-cover.jpg">`)
	assert.Contains(t, out, "<lastBuildDate>Tue, 01 Jul 2025 12:00:00 +0000</lastBuildDate>")
}

func TestBuildItemStructure(t *testing.T) {
	out := buildSample(t, sampleEpisode())

	assert.Contains(t, out, `<guid isPermaLink="false">repo-abcdef1-20250618-test-episode</guid>`)
	assert.Contains(t, out, "<pubDate>Wed, 18 Jun 2025 00:00:00 +0000</pubDate>")
	assert.Contains(t, out, `<enclosure url="https://cdn.example.com/podcast/2025/20250618-test-episode/audio.mp3" length="52428800" type="audio/mpeg">`)
	assert.Contains(t, out, "<itunes:duration>00:30:30</itunes:duration>")
	assert.Contains(t, out, "<itunes:season>2</itunes:season>")
	assert.Contains(t, out, "<itunes:episode>14</itunes:episode>")
	// "full" is the default and is not emitted.
	assert.NotContains(t, out, "itunes:episodeType")
}

func TestBuildKeywordsRenderLastInItem(t *testing.T) {
	out := buildSample(t, sampleEpisode())

	item := out[strings.Index(out, "<item>"):strings.Index(out, "</item>")]
	keywordsAt := strings.Index(item, "<itunes:keywords>go,infrastructure</itunes:keywords>")
	require.GreaterOrEqual(t, keywordsAt, 0)

	// Nothing but whitespace may follow the keywords element inside the item.
	rest := item[keywordsAt+len("<itunes:keywords>go,infrastructure</itunes:keywords>"):]
	assert.Empty(t, strings.TrimSpace(rest))
}

func TestBuildOmitsDurationWhenUnknown(t *testing.T) {
	ep := sampleEpisode()
	ep.DurationSeconds = 0
	out := buildSample(t, ep)
	assert.NotContains(t, out, "itunes:duration")
}

func TestBuildWavEnclosureType(t *testing.T) {
	ep := sampleEpisode()
	ep.FileExtension = ".wav"
	ep.AudioURL = "https://cdn.example.com/podcast/2025/20250618-test-episode/audio.wav"
	out := buildSample(t, ep)
	assert.Contains(t, out, `type="audio/wav"`)
}

func TestBuildTrailerEpisodeType(t *testing.T) {
	ep := sampleEpisode()
	ep.EpisodeType = "trailer"
	out := buildSample(t, ep)
	assert.Contains(t, out, "<itunes:episodeType>trailer</itunes:episodeType>")
}

func TestMergeDeduplicatesByGUIDFirstWins(t *testing.T) {
	first := sampleEpisode()
	first.Title = "Original Title"

	duplicate := sampleEpisode()
	duplicate.Title = "Replacement Title"

	merged := Merge([]models.EpisodeRecord{first}, []models.EpisodeRecord{duplicate})
	require.Len(t, merged, 1)
	assert.Equal(t, "Original Title", merged[0].Title)
}

func TestMergeSortsNewestFirst(t *testing.T) {
	older := sampleEpisode()
	older.GUID = "repo-abcdef1-20250101-older"
	older.PubDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	newer := sampleEpisode()
	newer.GUID = "repo-abcdef1-20250618-newer"

	merged := Merge([]models.EpisodeRecord{older}, []models.EpisodeRecord{newer})
	require.Len(t, merged, 2)
	assert.Equal(t, "repo-abcdef1-20250618-newer", merged[0].GUID)
	assert.Equal(t, "repo-abcdef1-20250101-older", merged[1].GUID)
}

func TestMergeIsIdempotent(t *testing.T) {
	episodes := []models.EpisodeRecord{sampleEpisode()}
	once := Merge(episodes)
	twice := Merge(once, episodes)
	assert.Equal(t, once, twice)
}

func TestMergeStableForEqualPubDates(t *testing.T) {
	a := sampleEpisode()
	a.GUID = "repo-abcdef1-20250618-a"
	b := sampleEpisode()
	b.GUID = "repo-abcdef1-20250618-b"

	merged := Merge([]models.EpisodeRecord{a, b})
	require.Len(t, merged, 2)
	assert.Equal(t, "repo-abcdef1-20250618-a", merged[0].GUID)
	assert.Equal(t, "repo-abcdef1-20250618-b", merged[1].GUID)
}

func TestLoadRoundTrip(t *testing.T) {
	ep := sampleEpisode()
	ep.ITunesSubtitle = "short version"
	ep.EpisodeImageURL = "https://cdn.example.com/podcast/2025/20250618-test-episode/episode_image.jpg"
	out := buildSample(t, ep)

	loaded, err := Load(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, ep.Title, got.Title)
	assert.Equal(t, ep.GUID, got.GUID)
	assert.Equal(t, ep.PubDate, got.PubDate)
	assert.Equal(t, ep.AudioURL, got.AudioURL)
	assert.Equal(t, ep.FileSizeBytes, got.FileSizeBytes)
	assert.Equal(t, ep.DurationSeconds, got.DurationSeconds)
	assert.Equal(t, ".mp3", got.FileExtension)
	assert.Equal(t, "20250618-test-episode", got.Slug)
	assert.Equal(t, "short version", got.ITunesSubtitle)
	assert.Equal(t, []string{"go", "infrastructure"}, got.ITunesKeywords)
	require.NotNil(t, got.Season)
	assert.Equal(t, 2, *got.Season)
	require.NotNil(t, got.EpisodeNumber)
	assert.Equal(t, 14, *got.EpisodeNumber)
	assert.Equal(t, "full", got.EpisodeType)
}

func TestLoadFlatLayoutSlugFromFilename(t *testing.T) {
	ep := sampleEpisode()
	ep.Slug = "20240101-new-year"
	ep.GUID = "episode-20240101-new-year"
	ep.FileExtension = ".wav"
	ep.AudioURL = "https://cdn.example.com/podcast/2024/20240101-new-year.wav"
	ep.S3Key = "podcast/2024/20240101-new-year.wav"
	out := buildSample(t, ep)

	loaded, err := Load(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "20240101-new-year", loaded[0].Slug)
	assert.Equal(t, ".wav", loaded[0].FileExtension)
}

func TestLoadRejectsGarbage(t *testing.T) {
	_, err := Load(strings.NewReader("not xml at all"))
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 1830, ParseDuration("00:30:30"))
	assert.Equal(t, 150, ParseDuration("02:30"))
	assert.Equal(t, 90, ParseDuration("90"))
	assert.Equal(t, 0, ParseDuration(""))
	assert.Equal(t, 0, ParseDuration("abc"))
	assert.Equal(t, 0, ParseDuration("1:2:3:4"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatDuration(0))
	assert.Equal(t, "00:00:00", FormatDuration(-5))
	assert.Equal(t, "00:30:30", FormatDuration(1830))
	assert.Equal(t, "04:00:00", FormatDuration(14400))
}

func TestCollectStored(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	require.NoError(t, store.Put(ctx, "podcast/2025/20250618-test-episode/audio.mp3", bytes.Repeat([]byte("a"), 128), storage.PutOptions{
		Metadata: map[string]string{
			"title":       "Test Episode",
			"description": "Stored description",
			"guid":        "repo-abcdef1-20250618-test-episode",
			"duration":    "1830",
			"season":      "2",
			"spotify_url": "https://open.spotify.com/episode/abc",
		},
	}))
	// Metadata-less legacy object: all fields come from the key.
	require.NoError(t, store.Put(ctx, "podcast/2024/20240101-new-year.wav", []byte("wav"), storage.PutOptions{}))
	// Non-audio objects are not episodes.
	require.NoError(t, store.Put(ctx, "podcast/2025/20250618-test-episode/episode_image.jpg", []byte("jpg"), storage.PutOptions{}))
	require.NoError(t, store.Put(ctx, "rss.xml", []byte("<rss/>"), storage.PutOptions{}))

	logger := log.New(io.Discard, "", 0)
	episodes, err := CollectStored(ctx, store, "https://cdn.example.com", logger)
	require.NoError(t, err)
	require.Len(t, episodes, 2)

	byGUID := make(map[string]models.EpisodeRecord)
	for _, ep := range episodes {
		byGUID[ep.GUID] = ep
	}

	rich, ok := byGUID["repo-abcdef1-20250618-test-episode"]
	require.True(t, ok)
	assert.Equal(t, "Test Episode", rich.Title)
	assert.Equal(t, "Stored description", rich.Description)
	assert.Equal(t, 1830, rich.DurationSeconds)
	assert.Equal(t, int64(128), rich.FileSizeBytes)
	assert.Equal(t, "https://cdn.example.com/podcast/2025/20250618-test-episode/audio.mp3", rich.AudioURL)
	assert.Equal(t, "https://open.spotify.com/episode/abc", rich.SpotifyURL)
	require.NotNil(t, rich.Season)
	assert.Equal(t, 2, *rich.Season)
	// Directory-layout keys take the slug from the directory segment.
	assert.Equal(t, "20250618-test-episode", rich.Slug)
	assert.Equal(t, time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC), rich.PubDate)

	legacy, ok := byGUID["episode-20240101-new-year"]
	require.True(t, ok)
	assert.Equal(t, "New Year", legacy.Title)
	assert.Equal(t, "Episode: 20240101-new-year", legacy.Description)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), legacy.PubDate)
	assert.Equal(t, ".wav", legacy.FileExtension)
	assert.Equal(t, "full", legacy.EpisodeType)
}
