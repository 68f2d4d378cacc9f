// Package metadata resolves canonical episode records from audio sources.
// A source is either a bare audio file whose name carries the slug, or an
// episode directory (audio file plus optional sidecar overrides and image).
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"

	"podcast-publisher/internal/models"
	"podcast-publisher/internal/slug"
)

// SidecarFilename is the override document read from an episode directory.
const SidecarFilename = "episode_data.json"

var (
	// ErrInvalidSlug means the filename or directory name does not follow
	// the YYYYMMDD-kebab-title convention. Fatal to the run.
	ErrInvalidSlug = errors.New("metadata: invalid slug")

	// ErrMissingAudio means an episode directory contains no audio file.
	// Fatal to the run.
	ErrMissingAudio = errors.New("metadata: no audio file found")
)

var audioExtensions = []string{".mp3", ".wav"}

// SourceKind discriminates the two supported episode layouts.
type SourceKind int

const (
	SourceFile SourceKind = iota
	SourceDirectory
)

// Source identifies where an episode's data comes from.
type Source struct {
	Kind SourceKind
	Path string
}

// FileSource builds a Source for a bare audio file.
func FileSource(path string) Source {
	return Source{Kind: SourceFile, Path: path}
}

// DirectorySource builds a Source for an episode directory.
func DirectorySource(path string) Source {
	return Source{Kind: SourceDirectory, Path: path}
}

// Resolver builds EpisodeRecords from sources. BaseURL and CommitSHA feed
// the derived audio URL and GUID.
type Resolver struct {
	baseURL   string
	commitSHA string
	logger    *log.Logger
}

// NewResolver creates a Resolver. A nil logger falls back to log.Default().
func NewResolver(baseURL, commitSHA string, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{
		baseURL:   strings.TrimRight(baseURL, "/"),
		commitSHA: commitSHA,
		logger:    logger,
	}
}

// Resolve builds the canonical record for a source. Field precedence for
// everything overridable: sidecar override > embedded tag > slug-derived
// default.
func (r *Resolver) Resolve(src Source) (models.EpisodeRecord, error) {
	switch src.Kind {
	case SourceFile:
		return r.fromFile(src.Path)
	case SourceDirectory:
		return r.fromDirectory(src.Path)
	default:
		return models.EpisodeRecord{}, fmt.Errorf("metadata: unknown source kind %d", src.Kind)
	}
}

func (r *Resolver) fromFile(audioPath string) (models.EpisodeRecord, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return models.EpisodeRecord{}, fmt.Errorf("metadata: stat %s: %w", audioPath, err)
	}

	ext := strings.ToLower(filepath.Ext(audioPath))
	if !isAudioExt(ext) {
		return models.EpisodeRecord{}, fmt.Errorf("metadata: %s is not an audio file", audioPath)
	}

	s := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	if !slug.Validate(s) {
		return models.EpisodeRecord{}, fmt.Errorf("%w: %q (expected YYYYMMDD-title-kebab)", ErrInvalidSlug, s)
	}

	pubDate, err := slug.DateOf(s)
	if err != nil {
		return models.EpisodeRecord{}, err
	}

	tags := r.readAudio(audioPath, ext)

	title := tags.title
	if title == "" {
		title = slug.TitleOf(s)
	}
	description := tags.description
	if description == "" {
		description = "Episode: " + slug.TitleOf(s)
	}

	year := pubDate.Year()
	key := fmt.Sprintf("podcast/%d/%s%s", year, s, ext)

	return models.EpisodeRecord{
		Slug:            s,
		Title:           title,
		Description:     description,
		PubDate:         pubDate,
		DurationSeconds: tags.durationSeconds,
		FileSizeBytes:   info.Size(),
		AudioURL:        r.baseURL + "/" + key,
		GUID:            r.guidFor(s),
		S3Key:           key,
		FileExtension:   ext,
		EpisodeType:     "full",
		ITunesExplicit:  "no",
	}, nil
}

func (r *Resolver) fromDirectory(dirPath string) (models.EpisodeRecord, error) {
	s := filepath.Base(filepath.Clean(dirPath))
	if !slug.Validate(s) {
		return models.EpisodeRecord{}, fmt.Errorf("%w: %q (expected YYYYMMDD-title-kebab)", ErrInvalidSlug, s)
	}

	audioPath, err := r.locateAudio(dirPath)
	if err != nil {
		return models.EpisodeRecord{}, err
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return models.EpisodeRecord{}, fmt.Errorf("metadata: stat %s: %w", audioPath, err)
	}

	ext := strings.ToLower(filepath.Ext(audioPath))
	tags := r.readAudio(audioPath, ext)
	override := r.loadSidecar(dirPath)

	pubDate, err := slug.DateOf(s)
	if err != nil {
		return models.EpisodeRecord{}, err
	}
	if override.PubDate != "" {
		if parsed, perr := parseISODate(override.PubDate); perr == nil {
			pubDate = parsed
		} else {
			r.logger.Printf("ignoring unparseable pub_date override %q: %v", override.PubDate, perr)
		}
	}

	title := firstNonEmpty(override.Title, tags.title, slug.TitleOf(s))
	description := firstNonEmpty(override.Description, tags.description, "Episode: "+slug.TitleOf(s))

	duration := tags.durationSeconds
	if override.DurationSeconds != nil {
		duration = *override.DurationSeconds
	}

	year := pubDate.Year()
	audioFilename := filepath.Base(audioPath)
	key := fmt.Sprintf("podcast/%d/%s/%s", year, s, audioFilename)

	guid := override.GUID
	if guid == "" {
		guid = r.guidFor(s)
	}

	record := models.EpisodeRecord{
		Slug:            s,
		Title:           title,
		Description:     description,
		PubDate:         pubDate,
		DurationSeconds: duration,
		FileSizeBytes:   info.Size(),
		AudioURL:        r.baseURL + "/" + key,
		GUID:            guid,
		S3Key:           key,
		SpotifyURL:      override.SpotifyURL,
		FileExtension:   ext,
		Season:          override.Season,
		EpisodeNumber:   override.EpisodeNumber,
		EpisodeType:     firstNonEmpty(override.EpisodeType, "full"),
		ITunesSummary:   override.ITunesSummary,
		ITunesSubtitle:  override.ITunesSubtitle,
		ITunesKeywords:  override.ITunesKeywords,
		ITunesExplicit:  firstNonEmpty(override.ITunesExplicit, "no"),
	}

	record.EpisodeImageURL = r.resolveImage(dirPath, year, s, override)

	return record, nil
}

// CollectDirectories resolves every episode directory under episodesDir,
// skipping entries that fail with a logged event. The result preserves
// the sorted directory order.
func (r *Resolver) CollectDirectories(episodesDir string) []models.EpisodeRecord {
	entries, err := os.ReadDir(episodesDir)
	if err != nil {
		r.logger.Printf("episodes directory not readable: %v", err)
		return nil
	}

	var records []models.EpisodeRecord
	for _, entry := range entries {
		if !entry.IsDir() {
			if isAudioExt(strings.ToLower(filepath.Ext(entry.Name()))) {
				r.logger.Printf("legacy audio file %s found, consider migrating to a directory", entry.Name())
			}
			continue
		}

		record, err := r.fromDirectory(filepath.Join(episodesDir, entry.Name()))
		if err != nil {
			r.logger.Printf("skipping episode directory %s: %v", entry.Name(), err)
			continue
		}
		records = append(records, record)
	}
	return records
}

func (r *Resolver) guidFor(s string) string {
	if r.commitSHA == "" {
		return "episode-" + s
	}
	sha := r.commitSHA
	if len(sha) > 7 {
		sha = sha[:7]
	}
	return "repo-" + sha + "-" + s
}

func (r *Resolver) locateAudio(dirPath string) (string, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return "", fmt.Errorf("metadata: read directory %s: %w", dirPath, err)
	}

	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isAudioExt(strings.ToLower(filepath.Ext(entry.Name()))) {
			candidates = append(candidates, filepath.Join(dirPath, entry.Name()))
		}
	}
	sort.Strings(candidates)

	if len(candidates) == 0 {
		return "", fmt.Errorf("%w in %s", ErrMissingAudio, dirPath)
	}
	if len(candidates) > 1 {
		r.logger.Printf("multiple audio files in %s, using %s", dirPath, filepath.Base(candidates[0]))
	}
	return candidates[0], nil
}

// sidecar mirrors the recognized keys of episode_data.json. Pointer fields
// distinguish "absent" from zero values.
type sidecar struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	PubDate         string   `json:"pub_date"`
	DurationSeconds *int     `json:"duration_seconds"`
	GUID            string   `json:"guid"`
	SpotifyURL      string   `json:"spotify_url"`
	EpisodeImage    string   `json:"episode_image"`
	EpisodeImageURL string   `json:"episode_image_url"`
	Season          *int     `json:"season"`
	EpisodeNumber   *int     `json:"episode_number"`
	EpisodeType     string   `json:"episode_type"`
	ITunesSummary   string   `json:"itunes_summary"`
	ITunesSubtitle  string   `json:"itunes_subtitle"`
	ITunesKeywords  []string `json:"itunes_keywords"`
	ITunesExplicit  string   `json:"itunes_explicit"`
}

// loadSidecar reads the override document. Missing or malformed sidecars
// are recoverable: the zero sidecar is returned and resolution proceeds
// with derived defaults.
func (r *Resolver) loadSidecar(dirPath string) sidecar {
	var sc sidecar

	data, err := os.ReadFile(filepath.Join(dirPath, SidecarFilename))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger.Printf("failed to read %s: %v", SidecarFilename, err)
		}
		return sidecar{}
	}

	if err := json.Unmarshal(data, &sc); err != nil {
		r.logger.Printf("failed to parse %s: %v", SidecarFilename, err)
		return sidecar{}
	}
	return sc
}

// resolveImage turns an episode_image filename into a derived URL when the
// file exists on disk, otherwise falls back to an explicit URL override.
func (r *Resolver) resolveImage(dirPath string, year int, s string, override sidecar) string {
	if override.EpisodeImage != "" {
		imagePath := filepath.Join(dirPath, override.EpisodeImage)
		if _, err := os.Stat(imagePath); err == nil {
			return fmt.Sprintf("%s/podcast/%d/%s/%s", r.baseURL, year, s, override.EpisodeImage)
		}
		r.logger.Printf("episode image %s not found in %s", override.EpisodeImage, dirPath)
	}
	return override.EpisodeImageURL
}

type audioInfo struct {
	title           string
	description     string
	durationSeconds int
}

// readAudio extracts embedded tags and, for mp3, walks frames for the
// duration. Unreadable tag data is recoverable and yields zero values.
func (r *Resolver) readAudio(path, ext string) audioInfo {
	var result audioInfo

	f, err := os.Open(path)
	if err != nil {
		r.logger.Printf("could not open %s for tag reading: %v", path, err)
		return result
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		r.logger.Printf("could not read tags from %s: %v", path, err)
	} else {
		result.title = strings.TrimSpace(meta.Title())
		result.description = strings.TrimSpace(meta.Comment())
		if result.description == "" {
			result.description = strings.TrimSpace(meta.Album())
		}
	}

	if ext == ".mp3" {
		if dur, err := computeMP3Duration(path); err == nil && dur > 0 {
			result.durationSeconds = int(dur)
		} else if err != nil {
			r.logger.Printf("could not compute duration for %s: %v", path, err)
		}
	}

	return result
}

func computeMP3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var frame mp3.Frame
	var skipped int
	var total float64

	for {
		err := decoder.Decode(&frame, &skipped)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration().Seconds()
	}

	return total, nil
}

func parseISODate(value string) (time.Time, error) {
	normalized := strings.Replace(value, "Z", "+00:00", 1)
	if t, err := time.Parse("2006-01-02T15:04:05-07:00", normalized); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", value); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.RFC3339, value)
}

func isAudioExt(ext string) bool {
	for _, allowed := range audioExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
