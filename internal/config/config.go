package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultChannelTitle       = "Your Podcast Title"
	defaultChannelDescription = "Your podcast description"
	defaultChannelAuthor      = "Your Name"
	defaultChannelEmail       = "your.email@example.com"
	defaultChannelLanguage    = "ja"
	defaultChannelCategory    = "Technology"
	defaultChannelSubcategory = "Software Engineering"

	defaultSFTPPort = 22
)

// Channel represents the static channel-level metadata used to render the
// podcast RSS feed.
type Channel struct {
	Title       string
	Description string
	Author      string
	Email       string
	Language    string
	Category    string
	Subcategory string
	Explicit    string
	ImageURL    string
}

type channelYAML struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
	Email       string `yaml:"email"`
	Language    string `yaml:"language"`
	Category    string `yaml:"category"`
	Subcategory string `yaml:"subcategory"`
	Explicit    *bool  `yaml:"explicit"`
	ImageURL    string `yaml:"image_url"`
}

// ResolveChannel returns the channel metadata after applying defaults, YAML
// configuration (when PODCAST_FEED_CONFIG points at a file), and environment
// variable overrides. baseURL seeds the default cover image URL.
func ResolveChannel(baseURL string) (Channel, error) {
	ch := Channel{
		Title:       defaultChannelTitle,
		Description: defaultChannelDescription,
		Author:      defaultChannelAuthor,
		Email:       defaultChannelEmail,
		Language:    defaultChannelLanguage,
		Category:    defaultChannelCategory,
		Subcategory: defaultChannelSubcategory,
		Explicit:    "no",
		ImageURL:    strings.TrimRight(baseURL, "/") + "/podcast-cover.jpg",
	}

	configPath := strings.TrimSpace(os.Getenv("PODCAST_FEED_CONFIG"))
	if configPath != "" {
		resolved, err := resolveConfigPath(configPath)
		if err != nil {
			return Channel{}, err
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return Channel{}, err
		}
		var yamlConfig channelYAML
		if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
			return Channel{}, err
		}
		applyString(&ch.Title, yamlConfig.Title)
		applyString(&ch.Description, yamlConfig.Description)
		applyString(&ch.Author, yamlConfig.Author)
		applyString(&ch.Email, yamlConfig.Email)
		applyString(&ch.Language, yamlConfig.Language)
		applyString(&ch.Category, yamlConfig.Category)
		applyString(&ch.Subcategory, yamlConfig.Subcategory)
		applyString(&ch.ImageURL, yamlConfig.ImageURL)
		if yamlConfig.Explicit != nil {
			ch.Explicit = explicitValue(*yamlConfig.Explicit)
		}
	}

	applyString(&ch.Title, os.Getenv("PODCAST_TITLE"))
	applyString(&ch.Description, os.Getenv("PODCAST_DESCRIPTION"))
	applyString(&ch.Author, os.Getenv("PODCAST_AUTHOR"))
	applyString(&ch.Email, os.Getenv("PODCAST_EMAIL"))
	applyString(&ch.Language, os.Getenv("PODCAST_LANGUAGE"))
	applyString(&ch.Category, os.Getenv("PODCAST_CATEGORY"))
	applyString(&ch.Subcategory, os.Getenv("PODCAST_SUBCATEGORY"))
	applyString(&ch.ImageURL, os.Getenv("PODCAST_IMAGE_URL"))
	if value := strings.TrimSpace(os.Getenv("PODCAST_EXPLICIT")); value != "" {
		ch.Explicit = explicitValue(strings.EqualFold(value, "true"))
	}

	return ch, nil
}

func explicitValue(explicit bool) string {
	if explicit {
		return "yes"
	}
	return "no"
}

func applyString(dst *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*dst = trimmed
	}
}

// Storage describes the SFTP-backed object store connection.
type Storage struct {
	Host      string
	Port      int
	User      string
	Pass      string
	RemoteDir string
}

// ResolveStorage reads the storage connection settings from the environment.
func ResolveStorage() Storage {
	st := Storage{
		Host:      strings.TrimSpace(os.Getenv("PODCAST_STORAGE_HOST")),
		Port:      defaultSFTPPort,
		User:      strings.TrimSpace(os.Getenv("PODCAST_STORAGE_USER")),
		Pass:      os.Getenv("PODCAST_STORAGE_PASS"),
		RemoteDir: strings.TrimSpace(os.Getenv("PODCAST_STORAGE_DIR")),
	}
	if value := strings.TrimSpace(os.Getenv("PODCAST_STORAGE_PORT")); value != "" {
		if port, err := strconv.Atoi(value); err == nil && port > 0 {
			st.Port = port
		}
	}
	return st
}

// Spotify holds the OAuth credentials and show identifier used for index
// verification. Values are read from the environment; CLI flags override
// them at the command layer.
type Spotify struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	ShowID       string
}

// ResolveSpotify reads the Spotify credentials from the environment.
func ResolveSpotify() Spotify {
	return Spotify{
		ClientID:     strings.TrimSpace(os.Getenv("SPOTIFY_CLIENT_ID")),
		ClientSecret: strings.TrimSpace(os.Getenv("SPOTIFY_CLIENT_SECRET")),
		RefreshToken: strings.TrimSpace(os.Getenv("SPOTIFY_REFRESH_TOKEN")),
		ShowID:       strings.TrimSpace(os.Getenv("SPOTIFY_SHOW_ID")),
	}
}

// CommitSHA returns the current build commit, if running under CI.
func CommitSHA() string {
	return strings.TrimSpace(os.Getenv("GITHUB_SHA"))
}

func resolveConfigPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}

	return filepath.Abs(path)
}
