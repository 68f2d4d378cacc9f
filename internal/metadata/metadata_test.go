package metadata

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBaseURL = "https://cdn.example.com"
	testSHA     = "abcdef1234567890"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(testBaseURL+"/", testSHA, log.New(os.Stderr, "", 0))
}

func writeEpisodeDir(t *testing.T, slug, audioName string, sidecarJSON string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), slug)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, audioName), []byte("audio bytes"), 0o644))
	if sidecarJSON != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, SidecarFilename), []byte(sidecarJSON), 0o644))
	}
	return dir
}

func TestResolveDirectoryWithoutSidecar(t *testing.T) {
	dir := writeEpisodeDir(t, "20250618-test-episode", "audio.wav", "")

	record, err := newTestResolver(t).Resolve(DirectorySource(dir))
	require.NoError(t, err)

	assert.Equal(t, "20250618-test-episode", record.Slug)
	assert.Equal(t, "Test Episode", record.Title)
	assert.Equal(t, "Episode: Test Episode", record.Description)
	assert.Equal(t, 0, record.DurationSeconds)
	assert.Equal(t, ".wav", record.FileExtension)
	assert.True(t, strings.HasSuffix(record.AudioURL, "/20250618-test-episode/audio.wav"), "got %s", record.AudioURL)
	assert.Equal(t, "podcast/2025/20250618-test-episode/audio.wav", record.S3Key)
	assert.Equal(t, "repo-abcdef1-20250618-test-episode", record.GUID)
	assert.Equal(t, time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC), record.PubDate)
	assert.Equal(t, "full", record.EpisodeType)
	assert.Equal(t, "no", record.ITunesExplicit)
	assert.Equal(t, int64(len("audio bytes")), record.FileSizeBytes)
}

func TestResolveDirectorySidecarOverridesDerivedValues(t *testing.T) {
	sidecar := `{
		"title": "Override Title",
		"description": "Override description with enough length.",
		"pub_date": "2024-12-31T09:30:00+00:00",
		"duration_seconds": 1800,
		"guid": "repo-1234567-custom",
		"season": 2,
		"episode_number": 14,
		"episode_type": "bonus",
		"itunes_summary": "Hand-written summary",
		"itunes_subtitle": "Short subtitle",
		"itunes_keywords": ["go", "podcasting"],
		"itunes_explicit": "clean",
		"spotify_url": "https://open.spotify.com/episode/xyz"
	}`
	dir := writeEpisodeDir(t, "20250618-test-episode", "episode.mp3", sidecar)

	record, err := newTestResolver(t).Resolve(DirectorySource(dir))
	require.NoError(t, err)

	assert.Equal(t, "Override Title", record.Title)
	assert.Equal(t, "Override description with enough length.", record.Description)
	assert.Equal(t, 1800, record.DurationSeconds)
	assert.Equal(t, "repo-1234567-custom", record.GUID)
	require.NotNil(t, record.Season)
	assert.Equal(t, 2, *record.Season)
	require.NotNil(t, record.EpisodeNumber)
	assert.Equal(t, 14, *record.EpisodeNumber)
	assert.Equal(t, "bonus", record.EpisodeType)
	assert.Equal(t, []string{"go", "podcasting"}, record.ITunesKeywords)
	assert.Equal(t, "clean", record.ITunesExplicit)
	assert.Equal(t, "https://open.spotify.com/episode/xyz", record.SpotifyURL)

	// Year in derived paths follows the overridden pub_date.
	assert.Equal(t, 2024, record.PubDate.Year())
	assert.Equal(t, "podcast/2024/20250618-test-episode/episode.mp3", record.S3Key)
}

func TestResolveDirectoryMalformedSidecarIsRecoverable(t *testing.T) {
	dir := writeEpisodeDir(t, "20250618-test-episode", "audio.mp3", "{not json")

	record, err := newTestResolver(t).Resolve(DirectorySource(dir))
	require.NoError(t, err)
	assert.Equal(t, "Test Episode", record.Title)
	assert.Equal(t, "repo-abcdef1-20250618-test-episode", record.GUID)
}

func TestResolveDirectoryEpisodeImage(t *testing.T) {
	dir := writeEpisodeDir(t, "20250618-test-episode", "audio.mp3", `{"episode_image": "cover.jpg"}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("img"), 0o644))

	record, err := newTestResolver(t).Resolve(DirectorySource(dir))
	require.NoError(t, err)
	assert.Equal(t, testBaseURL+"/podcast/2025/20250618-test-episode/cover.jpg", record.EpisodeImageURL)
}

func TestResolveDirectoryMissingImageFallsBackToURLOverride(t *testing.T) {
	sidecar := `{"episode_image": "missing.jpg", "episode_image_url": "https://cdn.example.com/alt.jpg"}`
	dir := writeEpisodeDir(t, "20250618-test-episode", "audio.mp3", sidecar)

	record, err := newTestResolver(t).Resolve(DirectorySource(dir))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/alt.jpg", record.EpisodeImageURL)
}

func TestResolveDirectoryNoAudio(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "20250618-test-episode")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	_, err := newTestResolver(t).Resolve(DirectorySource(dir))
	assert.True(t, errors.Is(err, ErrMissingAudio))
}

func TestResolveDirectoryInvalidSlug(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Not A Slug")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "audio.mp3"), []byte("x"), 0o644))

	_, err := newTestResolver(t).Resolve(DirectorySource(dir))
	assert.True(t, errors.Is(err, ErrInvalidSlug))
}

func TestResolveDirectoryMultipleAudioFilesFirstWins(t *testing.T) {
	dir := writeEpisodeDir(t, "20250618-test-episode", "a-first.mp3", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b-second.wav"), []byte("other"), 0o644))

	record, err := newTestResolver(t).Resolve(DirectorySource(dir))
	require.NoError(t, err)
	assert.Equal(t, ".mp3", record.FileExtension)
	assert.True(t, strings.HasSuffix(record.AudioURL, "/a-first.mp3"))
}

func TestResolveFileFallsBackToSlugMetadata(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "20250618-solo-file.mp3")
	require.NoError(t, os.WriteFile(path, []byte("not really an mp3"), 0o644))

	record, err := newTestResolver(t).Resolve(FileSource(path))
	require.NoError(t, err)

	assert.Equal(t, "20250618-solo-file", record.Slug)
	assert.Equal(t, "Solo File", record.Title)
	assert.Equal(t, "Episode: Solo File", record.Description)
	assert.Equal(t, 0, record.DurationSeconds)
	assert.Equal(t, "podcast/2025/20250618-solo-file.mp3", record.S3Key)
	assert.Equal(t, testBaseURL+"/podcast/2025/20250618-solo-file.mp3", record.AudioURL)
	assert.Equal(t, "repo-abcdef1-20250618-solo-file", record.GUID)
}

func TestResolveFileInvalidSlug(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "not-a-valid-slug.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := newTestResolver(t).Resolve(FileSource(path))
	assert.True(t, errors.Is(err, ErrInvalidSlug))
}

func TestResolveFileWithoutCommitSHAUsesEpisodeGUID(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "20250618-no-sha.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	resolver := NewResolver(testBaseURL, "", log.New(os.Stderr, "", 0))
	record, err := resolver.Resolve(FileSource(path))
	require.NoError(t, err)
	assert.Equal(t, "episode-20250618-no-sha", record.GUID)
}

func TestCollectDirectoriesSkipsBrokenEntries(t *testing.T) {
	root := t.TempDir()

	good := filepath.Join(root, "20250618-good-episode")
	require.NoError(t, os.MkdirAll(good, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(good, "audio.mp3"), []byte("x"), 0o644))

	empty := filepath.Join(root, "20250619-empty-episode")
	require.NoError(t, os.MkdirAll(empty, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(root, "20250620-legacy.mp3"), []byte("x"), 0o644))

	records := newTestResolver(t).CollectDirectories(root)
	require.Len(t, records, 1)
	assert.Equal(t, "20250618-good-episode", records[0].Slug)
}
