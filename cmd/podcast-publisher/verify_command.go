package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"podcast-publisher/internal/config"
	"podcast-publisher/internal/storage"
	"podcast-publisher/internal/verify"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	var episodeGUID string
	var showID string
	var clientID string
	var clientSecret string
	var refreshToken string
	var maxAttempts int
	var pollInterval int
	var objectKey string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Poll the Spotify index until the episode appears",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds := config.ResolveSpotify()
			if clientID == "" {
				clientID = creds.ClientID
			}
			if clientSecret == "" {
				clientSecret = creds.ClientSecret
			}
			if refreshToken == "" {
				refreshToken = creds.RefreshToken
			}
			if showID == "" {
				showID = creds.ShowID
			}

			if episodeGUID == "" {
				return fmt.Errorf("--episode-guid is required")
			}
			if clientID == "" || clientSecret == "" || refreshToken == "" || showID == "" {
				return fmt.Errorf("spotify credentials and show ID are required (flags or SPOTIFY_* environment)")
			}

			client := verify.NewClient(clientID, clientSecret, refreshToken, ctx.logger())

			show, err := client.ShowInfo(cmd.Context(), showID)
			if err != nil {
				annotate(cmd, "error", "Show Validation Error", err.Error())
				return fmt.Errorf("could not validate show %s: %w", showID, err)
			}
			ctx.logger().Printf("validating show: %s", show.Name)

			result := client.VerifyWithPolling(cmd.Context(), showID, episodeGUID, maxAttempts, time.Duration(pollInterval)*time.Second)

			encoded, err := json.Marshal(result)
			if err != nil {
				return err
			}
			writeOutput(cmd, "result", string(encoded))
			writeOutput(cmd, "verification-status", statusWord(result.Success))
			writeOutput(cmd, "attempts", fmt.Sprintf("%d", result.AttemptsMade))

			if !result.Success {
				annotate(cmd, "error", "Verification Failed", result.ErrorMessage)
				return fmt.Errorf("episode %s not indexed: %s", episodeGUID, result.ErrorMessage)
			}

			writeOutput(cmd, "spotify-episode-id", result.EpisodeID)
			writeOutput(cmd, "spotify-url", result.EpisodeURL)

			// Record the Spotify URL on the stored audio object so future
			// feed regenerations from storage carry it. Best-effort.
			if objectKey != "" {
				updateStoredSpotifyURL(cmd, ctx, objectKey, result.EpisodeURL)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&episodeGUID, "episode-guid", "", "Episode GUID to verify")
	cmd.Flags().StringVar(&showID, "show-id", "", "Spotify show ID")
	cmd.Flags().StringVar(&clientID, "client-id", "", "Spotify client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "Spotify client secret")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "Spotify refresh token")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 10, "Maximum polling attempts")
	cmd.Flags().IntVar(&pollInterval, "poll-interval", 30, "Polling interval in seconds")
	cmd.Flags().StringVar(&objectKey, "s3-key", "", "Stored audio object to tag with the Spotify URL after verification")

	return cmd
}

func updateStoredSpotifyURL(cmd *cobra.Command, ctx *commandContext, key, spotifyURL string) {
	baseURL, err := ctx.requireBaseURL()
	if err != nil {
		ctx.logger().Printf("skipping metadata update: %v", err)
		return
	}

	store, closeStore, err := ctx.openStore(cmd.Context())
	if err != nil {
		ctx.logger().Printf("skipping metadata update: %v", err)
		return
	}
	defer closeStore()

	info, err := store.Head(cmd.Context(), key)
	if err != nil {
		ctx.logger().Printf("skipping metadata update for %s: %v", key, err)
		return
	}

	metadata := make(map[string]string, len(info.Metadata)+1)
	for k, v := range info.Metadata {
		metadata[k] = v
	}
	metadata["spotify_url"] = spotifyURL

	storage.NewGateway(store, baseURL, ctx.logger()).UpdateMetadataOnly(cmd.Context(), key, metadata)
}

func statusWord(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
