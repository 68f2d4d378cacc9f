package validate

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-publisher/internal/metadata"
)

func validMetadata() map[string]any {
	return map[string]any{
		"slug":             "20250618-test-episode",
		"title":            "Test Episode",
		"description":      "A perfectly reasonable episode description.",
		"pub_date":         "2025-06-18T00:00:00+00:00",
		"duration_seconds": float64(1800),
		"file_size_bytes":  float64(25 * 1024 * 1024),
		"audio_url":        "https://cdn.example.com/podcast/2025/20250618-test-episode.mp3",
		"guid":             "repo-abcdef1-20250618-test-episode",
		"s3_key":           "podcast/2025/20250618-test-episode.mp3",
	}
}

var fixedNow = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func TestValidMetadataPasses(t *testing.T) {
	result := ValidateAt(validMetadata(), fixedNow)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.True(t, result.OK())
}

func TestMissingAndNullRequiredFields(t *testing.T) {
	meta := validMetadata()
	delete(meta, "guid")
	meta["title"] = nil

	result := ValidateAt(meta, fixedNow)
	assert.Contains(t, result.Errors, "Missing required field: guid")
	assert.Contains(t, result.Errors, "Required field is null: title")
	assert.False(t, result.OK())
}

func TestSlugRules(t *testing.T) {
	cases := []struct {
		slug    string
		errPart string
	}{
		{"20250618-x", "Slug too short"},
		{"2025x618-episode", "not numeric"},
		{"20251350-episode", "Invalid date in slug"},
		{"20250618_episodes", "Missing separator"},
		{"20250618-Bad-Case", "kebab-case"},
	}
	for _, tc := range cases {
		meta := validMetadata()
		meta["slug"] = tc.slug
		result := ValidateAt(meta, fixedNow)
		require.NotEmpty(t, result.Errors, "slug %q", tc.slug)
		assert.Contains(t, strings.Join(result.Errors, "\n"), tc.errPart)
	}
}

func TestTitleRules(t *testing.T) {
	meta := validMetadata()
	meta["title"] = "ab"
	result := ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "Title too short")

	meta["title"] = strings.Repeat("a", 256)
	result = ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "Title too long")

	meta["title"] = "  padded title  "
	result = ValidateAt(meta, fixedNow)
	assert.Empty(t, result.Errors)
	assert.Contains(t, strings.Join(result.Warnings, "\n"), "whitespace")

	meta["title"] = "SHOUTING EPISODE TITLE"
	result = ValidateAt(meta, fixedNow)
	assert.Empty(t, result.Errors)
	assert.Contains(t, strings.Join(result.Warnings, "\n"), "uppercase")
}

func TestPubDateRules(t *testing.T) {
	meta := validMetadata()
	meta["pub_date"] = "2025-06-18"
	result := ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "time component")

	meta["pub_date"] = "2025-06-18Tnot-a-time"
	result = ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "Invalid publication date")

	meta["pub_date"] = "2025-07-10T00:00:00+00:00"
	result = ValidateAt(meta, fixedNow)
	assert.Empty(t, result.Errors)
	assert.Contains(t, strings.Join(result.Warnings, "\n"), "future")

	meta["pub_date"] = "2010-01-01T00:00:00+00:00"
	result = ValidateAt(meta, fixedNow)
	assert.Empty(t, result.Errors)
	assert.Contains(t, strings.Join(result.Warnings, "\n"), "very old")
}

func TestDurationRules(t *testing.T) {
	meta := validMetadata()

	meta["duration_seconds"] = float64(-5)
	result := ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "negative")

	meta["duration_seconds"] = float64(0)
	result = ValidateAt(meta, fixedNow)
	assert.Empty(t, result.Errors)
	assert.Contains(t, strings.Join(result.Warnings, "\n"), "0 seconds")

	meta["duration_seconds"] = float64(30)
	result = ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Warnings, "\n"), "very short")

	meta["duration_seconds"] = float64(20000)
	result = ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Warnings, "\n"), "very long")

	meta["duration_seconds"] = "not-a-number"
	result = ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "not a valid integer")
}

func TestFileSizeRules(t *testing.T) {
	meta := validMetadata()

	meta["file_size_bytes"] = float64(0)
	result := ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "must be positive")

	meta["file_size_bytes"] = float64(512 * 1024)
	result = ValidateAt(meta, fixedNow)
	assert.Empty(t, result.Errors)
	assert.Contains(t, strings.Join(result.Warnings, "\n"), "very small")

	meta["file_size_bytes"] = float64(600 * 1024 * 1024)
	result = ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Warnings, "\n"), "very large")
}

func TestAudioURLRules(t *testing.T) {
	meta := validMetadata()

	meta["audio_url"] = "ftp://cdn.example.com/file.mp3"
	result := ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "http:// or https://")

	meta["audio_url"] = "https://cdn.example.com/file.ogg"
	result = ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Errors, "\n"), ".mp3 or .wav")

	meta["audio_url"] = "https://cdn.example.com/my file.mp3"
	result = ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "spaces")
}

func TestGUIDRules(t *testing.T) {
	meta := validMetadata()

	meta["guid"] = "episode-20250618-test-episode"
	result := ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "repo-")

	meta["guid"] = "repo-nosegments"
	result = ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "repo-{sha}-{slug}")

	meta["guid"] = "repo-abcd-20250618-test-episode"
	result = ValidateAt(meta, fixedNow)
	assert.Empty(t, result.Errors)
	assert.Contains(t, strings.Join(result.Warnings, "\n"), "7 characters")
}

func TestS3KeyRules(t *testing.T) {
	meta := validMetadata()

	meta["s3_key"] = "audio/2025/20250618-test-episode.mp3"
	result := ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "start with 'podcast/'")

	meta["s3_key"] = "podcast/2025/20250618-test-episode.ogg"
	result = ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "'.mp3' or '.wav'")

	meta["s3_key"] = "podcast/25/20250618-test-episode.mp3"
	result = ValidateAt(meta, fixedNow)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "4 digits")

	// Directory-layout keys carry one extra path level and are accepted.
	meta["s3_key"] = "podcast/2025/20250618-test-episode/audio.wav"
	result = ValidateAt(meta, fixedNow)
	assert.Empty(t, result.Errors)
}

func TestOldYearInKeyWarnsOnly(t *testing.T) {
	meta := validMetadata()
	meta["slug"] = "19991231-old-episode"
	meta["pub_date"] = "1999-12-31T00:00:00+00:00"
	meta["guid"] = "repo-abcdef1-19991231-old-episode"
	meta["audio_url"] = "https://cdn.example.com/podcast/1999/19991231-old.mp3"
	meta["s3_key"] = "podcast/1999/19991231-old.mp3"

	result := ValidateAt(meta, fixedNow)
	assert.Empty(t, result.Errors)

	joined := strings.Join(result.Warnings, "\n")
	assert.Contains(t, joined, "Year in S3 key seems unreasonable")
}

func TestResolvedDirectoryRecordValidatesCleanly(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "20250618-round-trip")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "audio.mp3"), make([]byte, 2*1024*1024), 0o644))
	sidecar := `{"description": "Round trip episode with a long enough description.", "duration_seconds": 900}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "episode_data.json"), []byte(sidecar), 0o644))

	resolver := metadata.NewResolver("https://cdn.example.com", "abcdef1234567890", log.New(os.Stderr, "", 0))
	record, err := resolver.Resolve(metadata.DirectorySource(dir))
	require.NoError(t, err)

	result, err := Record(record)
	require.NoError(t, err)
	assert.Empty(t, result.Errors, "errors: %v", result.Errors)
}
