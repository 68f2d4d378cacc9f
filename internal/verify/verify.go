// Package verify polls the Spotify Web API until a freshly published
// episode shows up in the show's index.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"podcast-publisher/internal/httpx"
	"podcast-publisher/internal/models"
)

const (
	defaultAuthURL    = "https://accounts.spotify.com/api/token"
	defaultAPIBaseURL = "https://api.spotify.com/v1"

	// The episodes endpoint caps page size at 50; searching stops after
	// 1000 episodes to bound worst-case polling cost.
	pageLimit    = 50
	searchCeil   = 1000
	tokenRenewal = 5 * time.Minute
)

// ErrNotFound is returned when the episode is absent from the index.
var ErrNotFound = errors.New("verify: episode not found")

// Episode is the subset of the episode object the verifier inspects.
type Episode struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	ReleaseDate  string `json:"release_date"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

// Show is the subset of the show object used for preflight validation.
type Show struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Publisher     string `json:"publisher"`
	TotalEpisodes int    `json:"total_episodes"`
}

// EpisodesPage is one page of a show's episode listing.
type EpisodesPage struct {
	Items []Episode `json:"items"`
	Next  string    `json:"next"`
	Total int       `json:"total"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Client talks to the Spotify Web API using refresh-token OAuth. It is not
// safe for concurrent use; the publishing pipeline verifies one episode at
// a time.
type Client struct {
	clientID     string
	clientSecret string
	refreshToken string

	authURL    string
	apiBaseURL string

	httpClient *http.Client
	logger     *log.Logger
	sleep      func(time.Duration)
	now        func() time.Time

	accessToken    string
	tokenExpiresAt time.Time
}

// NewClient creates a verification client. A nil logger falls back to
// log.Default().
func NewClient(clientID, clientSecret, refreshToken string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		authURL:      defaultAuthURL,
		apiBaseURL:   defaultAPIBaseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
		sleep:        time.Sleep,
		now:          time.Now,
	}
}

// SetEndpoints overrides the API endpoints. Used by tests.
func (c *Client) SetEndpoints(authURL, apiBaseURL string) {
	c.authURL = strings.TrimRight(authURL, "/")
	c.apiBaseURL = strings.TrimRight(apiBaseURL, "/")
}

// SetSleeper replaces the polling delay primitive.
func (c *Client) SetSleeper(sleep func(time.Duration)) {
	c.sleep = sleep
}

// SetClock replaces the time source. Used by tests.
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

// Authenticate exchanges the refresh token for a fresh access token.
func (c *Client) Authenticate(ctx context.Context) error {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.refreshToken},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	encoded := form.Encode()

	var token tokenResponse
	err := httpx.DoJSON(ctx, c.httpClient, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, &token, httpx.DefaultRetryConfig())
	if err != nil {
		return fmt.Errorf("verify: authenticate: %w", err)
	}
	if token.AccessToken == "" {
		return errors.New("verify: authenticate: empty access token")
	}

	expiresIn := token.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	c.accessToken = token.AccessToken
	c.tokenExpiresAt = c.now().Add(time.Duration(expiresIn) * time.Second)

	c.logger.Printf("authenticated, token valid for %ds", expiresIn)
	return nil
}

func (c *Client) ensureToken(ctx context.Context) error {
	if c.accessToken == "" {
		return c.Authenticate(ctx)
	}
	if c.now().After(c.tokenExpiresAt.Add(-tokenRenewal)) {
		return c.Authenticate(ctx)
	}
	return nil
}

// apiGet performs an authenticated GET. A 401 response triggers exactly one
// re-authentication and retry before the error is surfaced.
func (c *Client) apiGet(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.ensureToken(ctx); err != nil {
		return err
	}

	for pass := 0; ; pass++ {
		requestURL := c.apiBaseURL + path
		if len(query) > 0 {
			requestURL += "?" + query.Encode()
		}

		err := httpx.DoJSON(ctx, c.httpClient, func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+c.accessToken)
			req.Header.Set("Content-Type", "application/json")
			return req, nil
		}, out, httpx.DefaultRetryConfig())
		if err == nil {
			return nil
		}

		var herr *httpx.HTTPError
		if pass == 0 && errors.As(err, &herr) && herr.StatusCode == http.StatusUnauthorized {
			c.logger.Printf("access token rejected, re-authenticating")
			if authErr := c.Authenticate(ctx); authErr != nil {
				return authErr
			}
			continue
		}
		return err
	}
}

// ShowEpisodes fetches one page of the show's episode list.
func (c *Client) ShowEpisodes(ctx context.Context, showID string, limit, offset int) (*EpisodesPage, error) {
	if limit <= 0 || limit > pageLimit {
		limit = pageLimit
	}

	query := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
		"market": {"US"},
	}

	var page EpisodesPage
	if err := c.apiGet(ctx, "/shows/"+showID+"/episodes", query, &page); err != nil {
		return nil, fmt.Errorf("verify: show episodes: %w", err)
	}
	return &page, nil
}

// ShowInfo fetches the show object, used to validate the show ID before
// polling begins.
func (c *Client) ShowInfo(ctx context.Context, showID string) (*Show, error) {
	var show Show
	if err := c.apiGet(ctx, "/shows/"+showID, url.Values{"market": {"US"}}, &show); err != nil {
		return nil, fmt.Errorf("verify: show info: %w", err)
	}
	return &show, nil
}

// FindByGUID scans the show's episodes for one whose name or description
// contains the GUID, or whose ID equals it. The index strips custom GUIDs,
// so substring matching against the visible fields is the only recovery.
func (c *Client) FindByGUID(ctx context.Context, showID, guid string) (*Episode, error) {
	offset := 0
	for {
		page, err := c.ShowEpisodes(ctx, showID, pageLimit, offset)
		if err != nil {
			return nil, err
		}
		if len(page.Items) == 0 {
			return nil, ErrNotFound
		}

		for i := range page.Items {
			ep := &page.Items[i]
			if strings.Contains(ep.Name, guid) || strings.Contains(ep.Description, guid) || ep.ID == guid {
				c.logger.Printf("episode found: id=%s name=%q", ep.ID, ep.Name)
				return ep, nil
			}
		}

		if page.Next == "" {
			return nil, ErrNotFound
		}
		offset += pageLimit
		if offset >= searchCeil {
			c.logger.Printf("search ceiling reached at offset %d", offset)
			return nil, ErrNotFound
		}
	}
}

// VerifyWithPolling polls FindByGUID until the episode appears or
// maxAttempts are exhausted, sleeping pollInterval between attempts (never
// after the last one). Failures are reported in the result, not as errors.
func (c *Client) VerifyWithPolling(ctx context.Context, showID, guid string, maxAttempts int, pollInterval time.Duration) models.VerificationResult {
	start := c.now()
	c.logger.Printf("verification start: guid=%s max_attempts=%d poll_interval=%s", guid, maxAttempts, pollInterval)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c.logger.Printf("verification attempt %d/%d", attempt, maxAttempts)

		ep, err := c.FindByGUID(ctx, showID, guid)
		if err == nil {
			taken := int(c.now().Sub(start).Seconds())
			c.logger.Printf("verification success: id=%s after %d attempts", ep.ID, attempt)
			return models.VerificationResult{
				Success:          true,
				EpisodeGUID:      guid,
				AttemptsMade:     attempt,
				TimeTakenSeconds: taken,
				EpisodeID:        ep.ID,
				EpisodeURL:       ep.ExternalURLs.Spotify,
			}
		}
		if !errors.Is(err, ErrNotFound) {
			c.logger.Printf("verification attempt %d errored: %v", attempt, err)
		}

		if attempt < maxAttempts {
			c.sleep(pollInterval)
		}
	}

	taken := int(c.now().Sub(start).Seconds())
	return models.VerificationResult{
		Success:          false,
		EpisodeGUID:      guid,
		AttemptsMade:     maxAttempts,
		TimeTakenSeconds: taken,
		ErrorMessage:     fmt.Sprintf("Episode not found after %d attempts over %d seconds", maxAttempts, taken),
	}
}
