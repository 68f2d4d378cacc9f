package storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	feedKey     = "rss.xml"
	feedTempKey = "rss.xml.new"

	defaultCacheControl = "public, max-age=300"
	defaultACL          = "public-read"
)

// Sleeper is the delay primitive used between retry attempts. Tests and
// future non-blocking implementations can substitute it without changing
// the backoff schedule.
type Sleeper func(time.Duration)

// Gateway wraps a BlobStore with upload retry, metadata updates, and the
// atomic feed publish protocol.
type Gateway struct {
	store   BlobStore
	baseURL string
	logger  *log.Logger
	sleep   Sleeper
	now     func() time.Time
}

// NewGateway creates a Gateway. A nil logger falls back to log.Default().
func NewGateway(store BlobStore, baseURL string, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.Default()
	}
	return &Gateway{
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

// SetSleeper replaces the inter-attempt delay primitive.
func (g *Gateway) SetSleeper(sleep Sleeper) {
	g.sleep = sleep
}

// URLFor returns the public URL for a stored key.
func (g *Gateway) URLFor(key string) string {
	return g.baseURL + "/" + key
}

// BucketExists is the preflight accessibility check.
func (g *Gateway) BucketExists(ctx context.Context) bool {
	ok, err := g.store.BucketExists(ctx)
	if err != nil {
		g.logger.Printf("bucket check failed: %v", err)
		return false
	}
	return ok
}

// UploadResult is the structured outcome of UploadWithRetry. Failures are
// reported here, never raised past this boundary.
type UploadResult struct {
	Success  bool          `json:"success"`
	Key      string        `json:"s3_key,omitempty"`
	Size     int64         `json:"file_size,omitempty"`
	Duration time.Duration `json:"-"`
	Attempts int           `json:"attempts"`
	URL      string        `json:"url,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// UploadWithRetry uploads localFile to key with up to maxRetries attempts.
// Each attempt uploads then verifies via a size-equality head check; any
// mismatch or transport error counts as a failed attempt. Attempt n waits
// 2^(n-1) seconds before the next try.
func (g *Gateway) UploadWithRetry(ctx context.Context, localFile, key string, maxRetries int, metadata map[string]string) UploadResult {
	body, err := os.ReadFile(localFile)
	if err != nil {
		return UploadResult{Success: false, Error: fmt.Sprintf("read local file: %v", err), Attempts: 0}
	}

	expectedSize := int64(len(body))
	opts := PutOptions{
		ContentType:  ContentTypeFor(localFile),
		CacheControl: defaultCacheControl,
		ACL:          defaultACL,
		Metadata:     metadata,
	}

	g.logger.Printf("starting upload: %s -> %s (%d bytes)", localFile, key, expectedSize)

	var lastErr string
	for attempt := 1; attempt <= maxRetries; attempt++ {
		start := g.now()
		g.logger.Printf("upload attempt %d/%d", attempt, maxRetries)

		err := g.store.Put(ctx, key, body, opts)
		if err == nil {
			err = g.verifyUpload(ctx, key, expectedSize)
		}
		if err == nil {
			elapsed := g.now().Sub(start)
			g.logger.Printf("upload successful in %s", elapsed)
			return UploadResult{
				Success:  true,
				Key:      key,
				Size:     expectedSize,
				Duration: elapsed,
				Attempts: attempt,
				URL:      g.URLFor(key),
			}
		}

		lastErr = err.Error()
		g.logger.Printf("upload attempt %d failed: %v", attempt, err)

		if attempt < maxRetries {
			wait := time.Duration(1<<(attempt-1)) * time.Second
			g.logger.Printf("waiting %s before retry", wait)
			g.sleep(wait)
		}
	}

	g.logger.Printf("all %d upload attempts failed", maxRetries)
	return UploadResult{Success: false, Error: lastErr, Attempts: maxRetries}
}

func (g *Gateway) verifyUpload(ctx context.Context, key string, expectedSize int64) error {
	info, err := g.store.Head(ctx, key)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	if info.Size != expectedSize {
		return fmt.Errorf("size mismatch: expected %d, got %d", expectedSize, info.Size)
	}
	return nil
}

// UpdateMetadataOnly replaces an object's metadata via copy-in-place
// without re-uploading bytes. Best-effort: failures are logged, never
// propagated.
func (g *Gateway) UpdateMetadataOnly(ctx context.Context, key string, metadata map[string]string) bool {
	opts := PutOptions{
		ContentType:  ContentTypeFor(key),
		CacheControl: defaultCacheControl,
		ACL:          defaultACL,
		Metadata:     metadata,
	}

	if err := g.store.Copy(ctx, key, key, DirectiveReplace, opts); err != nil {
		g.logger.Printf("failed to update metadata for %s: %v", key, err)
		return false
	}
	g.logger.Printf("updated metadata for %s", key)
	return true
}

// PublishAtomic deploys the feed document via write-temp, copy, delete so
// readers never observe a partially written rss.xml. Assumes single-writer
// semantics; callers hold the publish lock.
func (g *Gateway) PublishAtomic(ctx context.Context, content []byte) (string, error) {
	opts := PutOptions{
		ContentType:  "application/rss+xml; charset=utf-8",
		CacheControl: defaultCacheControl,
		ACL:          defaultACL,
		Metadata: map[string]string{
			"generated_at": g.now().UTC().Format(time.RFC3339),
			"generator":    "podcast-publisher",
		},
	}

	if err := g.store.Put(ctx, feedTempKey, content, opts); err != nil {
		g.cleanupTemp(ctx)
		return "", fmt.Errorf("storage: stage feed at %s: %w", feedTempKey, err)
	}
	g.logger.Printf("feed staged at %s", feedTempKey)

	if err := g.store.Copy(ctx, feedTempKey, feedKey, DirectiveCopy, PutOptions{ACL: defaultACL}); err != nil {
		g.cleanupTemp(ctx)
		return "", fmt.Errorf("storage: promote feed to %s: %w", feedKey, err)
	}

	if err := g.store.Delete(ctx, feedTempKey); err != nil {
		g.logger.Printf("failed to remove temp key %s: %v", feedTempKey, err)
	}

	info, err := g.store.Head(ctx, feedKey)
	if err != nil {
		return "", fmt.Errorf("storage: verify published feed: %w", err)
	}

	url := g.URLFor(feedKey)
	g.logger.Printf("feed published to %s (%d bytes)", url, info.Size)
	return url, nil
}

func (g *Gateway) cleanupTemp(ctx context.Context) {
	if err := g.store.Delete(ctx, feedTempKey); err != nil {
		g.logger.Printf("temp cleanup failed for %s: %v", feedTempKey, err)
	}
}

// FileUpload is the per-file outcome within a directory upload.
type FileUpload struct {
	Filename string `json:"filename"`
	Key      string `json:"s3_key"`
	URL      string `json:"url,omitempty"`
	Size     int64  `json:"file_size,omitempty"`
	Success  bool   `json:"success"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// DirectoryUploadResult aggregates per-file outcomes. AudioFile and
// EpisodeImage track the first audio and first image successfully uploaded.
type DirectoryUploadResult struct {
	Success      bool                  `json:"success"`
	TotalFiles   int                   `json:"total_files"`
	FailedFiles  int                   `json:"failed_files"`
	Files        map[string]FileUpload `json:"files"`
	AudioFile    *FileUpload           `json:"audio_file,omitempty"`
	EpisodeImage *FileUpload           `json:"episode_image,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// GenerateEpisodePath builds the directory-layout key prefix for an episode.
func GenerateEpisodePath(slug string, pubDate time.Time) string {
	return fmt.Sprintf("podcast/%d/%s", pubDate.Year(), slug)
}

// UploadDirectory uploads every regular file under dirPath to
// {basePrefix}/{filename}. sharedMetadata is attached only to audio files.
// One file's failure does not block the others.
func (g *Gateway) UploadDirectory(ctx context.Context, dirPath, basePrefix string, sharedMetadata map[string]string) (DirectoryUploadResult, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		return DirectoryUploadResult{}, fmt.Errorf("storage: episode directory: %w", err)
	}
	if !info.IsDir() {
		return DirectoryUploadResult{}, fmt.Errorf("storage: %s is not a directory", dirPath)
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return DirectoryUploadResult{}, fmt.Errorf("storage: read episode directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	result := DirectoryUploadResult{Files: make(map[string]FileUpload, len(names))}
	if len(names) == 0 {
		result.Error = fmt.Sprintf("no files found in %s", dirPath)
		return result, nil
	}
	prefix := strings.TrimRight(basePrefix, "/")

	for _, name := range names {
		key := prefix + "/" + name

		var metadata map[string]string
		if IsAudioFilename(name) {
			metadata = sharedMetadata
		}

		upload := g.UploadWithRetry(ctx, filepath.Join(dirPath, name), key, 3, metadata)
		file := FileUpload{
			Filename: name,
			Key:      key,
			URL:      upload.URL,
			Size:     upload.Size,
			Success:  upload.Success,
			Attempts: upload.Attempts,
			Error:    upload.Error,
		}
		result.Files[name] = file
		result.TotalFiles++
		if !upload.Success {
			result.FailedFiles++
			g.logger.Printf("directory upload: %s failed: %s", name, upload.Error)
			continue
		}

		if result.AudioFile == nil && IsAudioFilename(name) {
			tracked := file
			result.AudioFile = &tracked
		}
		if result.EpisodeImage == nil && IsImageFilename(name) {
			tracked := file
			result.EpisodeImage = &tracked
		}
	}

	result.Success = result.FailedFiles == 0
	return result, nil
}
