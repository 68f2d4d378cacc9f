// Package validate runs schema and sanity checks over a serialized episode
// record. The input is a field-name-to-value mapping rather than a typed
// record because this stage also validates externally supplied JSON.
package validate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"podcast-publisher/internal/models"
	"podcast-publisher/internal/slug"
)

var requiredFields = []string{
	"slug", "title", "description", "pub_date",
	"duration_seconds", "file_size_bytes", "audio_url",
	"guid", "s3_key",
}

// Result separates hard failures from advisory findings. Warnings never
// block publishing.
type Result struct {
	Errors   []string
	Warnings []string
}

// OK reports whether the record passed with no hard errors.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Validate checks metadata against the episode schema using the current time
// for date-window rules.
func Validate(metadata map[string]any) Result {
	return ValidateAt(metadata, time.Now())
}

// ValidateAt is Validate with an explicit "now", for deterministic checks.
func ValidateAt(metadata map[string]any, now time.Time) Result {
	v := &validator{now: now}

	v.checkRequired(metadata)
	v.checkSlug(stringField(metadata, "slug"))
	v.checkTitle(stringField(metadata, "title"))
	v.checkDescription(stringField(metadata, "description"))
	v.checkPubDate(stringField(metadata, "pub_date"))
	v.checkDuration(metadata["duration_seconds"])
	v.checkFileSize(metadata["file_size_bytes"])
	v.checkAudioURL(stringField(metadata, "audio_url"))
	v.checkGUID(stringField(metadata, "guid"))
	v.checkS3Key(stringField(metadata, "s3_key"))

	return Result{Errors: v.errors, Warnings: v.warnings}
}

// Record validates a typed record by round-tripping it through its JSON
// representation, the same shape external callers submit.
func Record(rec models.EpisodeRecord) (Result, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return Result{}, fmt.Errorf("validate: marshal record: %w", err)
	}
	var metadata map[string]any
	if err := json.Unmarshal(data, &metadata); err != nil {
		return Result{}, fmt.Errorf("validate: unmarshal record: %w", err)
	}
	return Validate(metadata), nil
}

type validator struct {
	now      time.Time
	errors   []string
	warnings []string
}

func (v *validator) errorf(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) warnf(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) checkRequired(metadata map[string]any) {
	for _, field := range requiredFields {
		value, present := metadata[field]
		if !present {
			v.errorf("Missing required field: %s", field)
		} else if value == nil {
			v.errorf("Required field is null: %s", field)
		}
	}
}

func (v *validator) checkSlug(s string) {
	if s == "" {
		return // already caught by the required-fields check
	}

	if len(s) < 11 { // YYYYMMDD-xx minimum
		v.errorf("Slug too short: %s", s)
		return
	}

	datePart := s[:8]
	if !allDigits(datePart) {
		v.errorf("Slug date part is not numeric: %s", datePart)
		return
	}

	if _, err := time.Parse("20060102", datePart); err != nil {
		v.errorf("Invalid date in slug: %s", datePart)
		return
	}

	if s[8] != '-' {
		v.errorf("Missing separator after date in slug: %s", s)
		return
	}

	titlePart := s[9:]
	if titlePart == "" {
		v.errorf("Slug missing title part after date")
		return
	}

	if !slug.ValidKebab(titlePart) {
		v.errorf("Slug title part is not valid kebab-case: %s", titlePart)
	}
}

func (v *validator) checkTitle(title string) {
	if title == "" {
		return
	}

	if len(title) < 3 {
		v.errorf("Title too short: %s", title)
	} else if len(title) > 255 {
		v.errorf("Title too long (%d chars, max 255)", len(title))
	}

	if strings.TrimSpace(title) != title {
		v.warnf("Title has leading or trailing whitespace")
	}

	if isAllUpper(title) && len(title) > 10 {
		v.warnf("Title is all uppercase, consider proper case")
	}
}

func (v *validator) checkDescription(description string) {
	if description == "" {
		return
	}

	if len(description) < 10 {
		v.warnf("Description is quite short: %d chars", len(description))
	} else if len(description) > 4000 {
		v.warnf("Description is very long (%d chars)", len(description))
	}

	if strings.TrimSpace(description) != description {
		v.warnf("Description has leading or trailing whitespace")
	}
}

func (v *validator) checkPubDate(pubDate string) {
	if pubDate == "" {
		return
	}

	if !strings.Contains(pubDate, "T") {
		v.errorf("Publication date must include time component: %s", pubDate)
		return
	}

	parsed, err := parseISO(pubDate)
	if err != nil {
		v.errorf("Invalid publication date format: %s", pubDate)
		return
	}

	if parsed.Sub(v.now) > 24*time.Hour {
		v.warnf("Publication date is in the future: %s", pubDate)
	}

	if v.now.Sub(parsed) > 3650*24*time.Hour {
		v.warnf("Publication date is very old: %s", pubDate)
	}
}

func (v *validator) checkDuration(value any) {
	if value == nil {
		return
	}

	duration, ok := asInt(value)
	if !ok {
		v.errorf("Duration is not a valid integer: %v", value)
		return
	}

	switch {
	case duration < 0:
		v.errorf("Duration cannot be negative: %d", duration)
	case duration == 0:
		v.warnf("Duration is 0 seconds (metadata may be missing)")
	case duration < 60:
		v.warnf("Episode is very short: %d seconds", duration)
	case duration > 14400: // 4 hours
		v.warnf("Episode is very long: %.1f hours", float64(duration)/3600)
	}
}

func (v *validator) checkFileSize(value any) {
	if value == nil {
		return
	}

	size, ok := asInt(value)
	if !ok {
		v.errorf("File size is not a valid integer: %v", value)
		return
	}

	switch {
	case size <= 0:
		v.errorf("File size must be positive: %d", size)
	case size < 1024*1024:
		v.warnf("File size is very small: %.1f KB", float64(size)/1024)
	case size > 500*1024*1024:
		v.warnf("File size is very large: %.1f MB", float64(size)/(1024*1024))
	}
}

func (v *validator) checkAudioURL(audioURL string) {
	if audioURL == "" {
		return
	}

	switch {
	case !strings.HasPrefix(audioURL, "http://") && !strings.HasPrefix(audioURL, "https://"):
		v.errorf("Audio URL must start with http:// or https://: %s", audioURL)
	case !strings.HasSuffix(audioURL, ".mp3") && !strings.HasSuffix(audioURL, ".wav"):
		v.errorf("Audio URL must end with .mp3 or .wav: %s", audioURL)
	case strings.Contains(audioURL, " "):
		v.errorf("Audio URL contains spaces: %s", audioURL)
	}
}

func (v *validator) checkGUID(guid string) {
	if guid == "" {
		return
	}

	if !strings.HasPrefix(guid, "repo-") {
		v.errorf("GUID should start with 'repo-': %s", guid)
	}

	parts := strings.SplitN(guid, "-", 3)
	if len(parts) < 3 {
		v.errorf("GUID should have format 'repo-{sha}-{slug}': %s", guid)
	} else if len(parts[1]) != 7 {
		v.warnf("GUID SHA part should be 7 characters: %s", parts[1])
	}
}

func (v *validator) checkS3Key(key string) {
	if key == "" {
		return
	}

	if !strings.HasPrefix(key, "podcast/") {
		v.errorf("S3 key should start with 'podcast/': %s", key)
		return
	}

	if !strings.HasSuffix(key, ".mp3") && !strings.HasSuffix(key, ".wav") {
		v.errorf("S3 key should end with '.mp3' or '.wav': %s", key)
		return
	}

	// Single-file episodes use podcast/{year}/{slug}.{ext}; directory
	// episodes add one level: podcast/{year}/{slug}/{filename}.
	parts := strings.Split(key, "/")
	if len(parts) != 3 && len(parts) != 4 {
		v.errorf("S3 key should have format 'podcast/YYYY/slug.{mp3|wav}': %s", key)
		return
	}

	yearPart := parts[1]
	if !allDigits(yearPart) || len(yearPart) != 4 {
		v.errorf("Year in S3 key should be 4 digits: %s", yearPart)
		return
	}

	year, _ := strconv.Atoi(yearPart)
	if year < 2000 || year > v.now.Year()+1 {
		v.warnf("Year in S3 key seems unreasonable: %d", year)
	}
}

func stringField(metadata map[string]any, field string) string {
	value, ok := metadata[field].(string)
	if !ok {
		return ""
	}
	return value
}

// asInt coerces JSON number representations to int64. JSON decoding yields
// float64; callers may also hand in native ints or numeric strings.
func asInt(value any) (int64, bool) {
	switch n := value.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		parsed, err := n.Int64()
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func parseISO(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", value); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02T15:04:05-07:00", strings.Replace(value, "Z", "+00:00", 1))
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

func isAllUpper(s string) bool {
	return strings.ToUpper(s) == s && strings.ToLower(s) != s
}
