package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"podcast-publisher/internal/config"
	"podcast-publisher/internal/feed"
	"podcast-publisher/internal/metadata"
	"podcast-publisher/internal/models"
	"podcast-publisher/internal/storage"
)

func newFeedCommand(ctx *commandContext) *cobra.Command {
	var episodesDir string
	var useDirectories bool
	var episodeMetadata string
	var commitSHA string
	var lockFile string

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Regenerate the RSS feed and publish it atomically",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, err := ctx.requireBaseURL()
			if err != nil {
				return err
			}

			channel, err := config.ResolveChannel(baseURL)
			if err != nil {
				return err
			}

			store, closeStore, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			logger := ctx.logger()

			var episodes []models.EpisodeRecord
			if useDirectories {
				if commitSHA == "" {
					commitSHA = config.CommitSHA()
				}
				resolver := metadata.NewResolver(baseURL, commitSHA, logger)
				episodes = resolver.CollectDirectories(episodesDir)
			} else {
				stored, err := feed.CollectStored(cmd.Context(), store, baseURL, logger)
				if err != nil {
					return err
				}

				var incoming []models.EpisodeRecord
				if episodeMetadata != "" {
					var newEpisode models.EpisodeRecord
					if err := json.Unmarshal([]byte(episodeMetadata), &newEpisode); err != nil {
						annotate(cmd, "error", "Episode Metadata Error", err.Error())
						return fmt.Errorf("invalid episode metadata JSON: %w", err)
					}
					incoming = append(incoming, newEpisode)
				}
				episodes = mergeForPublish(stored, incoming)
			}
			episodes = feed.Merge(episodes)

			document, err := feed.NewBuilder(channel, baseURL).Build(episodes, time.Now())
			if err != nil {
				return err
			}

			// Single-writer guard: two publish runs racing the copy step
			// could interleave temp writes.
			publishLock := flock.New(lockFile)
			locked, err := publishLock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire publish lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another publish is in progress (lock held on %s)", lockFile)
			}
			defer publishLock.Unlock()

			gateway := storage.NewGateway(store, baseURL, logger)
			rssURL, err := gateway.PublishAtomic(cmd.Context(), document)
			if err != nil {
				annotate(cmd, "error", "Feed Publish Error", err.Error())
				return err
			}

			writeOutput(cmd, "rss-url", rssURL)
			writeOutput(cmd, "episode-count", fmt.Sprintf("%d", len(episodes)))
			logger.Printf("feed published with %d episodes", len(episodes))
			return nil
		},
	}

	cmd.Flags().StringVar(&episodesDir, "episodes-dir", "episodes", "Path to the episodes directory")
	cmd.Flags().BoolVar(&useDirectories, "use-episode-directories", false, "Collect episodes from the local directory tree instead of the store")
	cmd.Flags().StringVar(&episodeMetadata, "episode-metadata", "", "JSON metadata for a newly published episode")
	cmd.Flags().StringVar(&commitSHA, "commit-sha", "", "Commit SHA for GUID generation (defaults to GITHUB_SHA)")
	cmd.Flags().StringVar(&lockFile, "lock-file", ".podcast-publish.lock", "Path to the publish lock file")

	return cmd
}

// mergeForPublish combines already-stored episodes with a newly published
// record. On a GUID collision the stored record wins; a republish must not
// overwrite feed history.
func mergeForPublish(stored, incoming []models.EpisodeRecord) []models.EpisodeRecord {
	return feed.Merge(stored, incoming)
}
