package feed

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"podcast-publisher/internal/config"
	"podcast-publisher/internal/models"
)

const generatorName = "podcast-publisher"

// Builder renders the RSS 2.0 document for a channel. Rendering is a pure
// function of the channel config, the episode list, and the supplied build
// time, so two builds from the same inputs are byte-identical.
type Builder struct {
	channel config.Channel
	baseURL string
}

// NewBuilder creates a Builder publishing under baseURL.
func NewBuilder(channel config.Channel, baseURL string) *Builder {
	return &Builder{channel: channel, baseURL: strings.TrimRight(baseURL, "/")}
}

// Build renders the feed document for episodes. Episodes are emitted in the
// order given; callers sort via Merge first. now becomes lastBuildDate.
func (b *Builder) Build(episodes []models.EpisodeRecord, now time.Time) ([]byte, error) {
	rss := rssFeed{
		Version:  "2.0",
		AtomNS:   "http://www.w3.org/2005/Atom",
		ITunesNS: "http://www.itunes.com/dtds/podcast-1.0.dtd",
		Channel: rssChannel{
			Title:         b.channel.Title,
			Link:          b.baseURL,
			Description:   b.channel.Description,
			Language:      b.channel.Language,
			LastBuildDate: now.UTC().Format(time.RFC1123Z),
			Generator:     generatorName,
			ManagingEd:    b.channel.Email,
			WebMaster:     b.channel.Email,
			AtomLink: rssAtomLink{
				Href: b.baseURL + "/rss.xml",
				Rel:  "self",
				Type: "application/rss+xml",
			},
			ITunesAuthor:   b.channel.Author,
			ITunesExplicit: b.channel.Explicit,
			ITunesSummary:  b.channel.Description,
			ITunesOwner: &rssOwner{
				Name:  b.channel.Author,
				Email: b.channel.Email,
			},
		},
	}

	if b.channel.Category != "" {
		category := &rssCategory{Text: b.channel.Category}
		if b.channel.Subcategory != "" {
			category.Subcategory = &rssCategory{Text: b.channel.Subcategory}
		}
		rss.Channel.ITunesCategory = category
	}

	if b.channel.ImageURL != "" {
		rss.Channel.Image = &rssImage{
			URL:   b.channel.ImageURL,
			Title: b.channel.Title,
			Link:  b.baseURL,
		}
		rss.Channel.ITunesImage = &rssITunesImage{Href: b.channel.ImageURL}
	}

	for _, ep := range episodes {
		rss.Channel.Items = append(rss.Channel.Items, b.buildItem(ep))
	}

	output, err := xml.MarshalIndent(rss, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("feed: marshal: %w", err)
	}

	return append([]byte(xml.Header), output...), nil
}

func (b *Builder) buildItem(ep models.EpisodeRecord) rssItem {
	item := rssItem{
		Title:       ep.Title,
		Description: ep.Description,
		GUID: rssGUID{
			IsPermaLink: "false",
			Value:       ep.GUID,
		},
		PubDate: ep.PubDate.UTC().Format(time.RFC1123Z),
		Link:    ep.AudioURL,
		Enclosure: rssEnclosure{
			URL:    ep.AudioURL,
			Length: ep.FileSizeBytes,
			Type:   ep.MIMEType(),
		},
		ITunesExplicit: firstNonEmpty(ep.ITunesExplicit, "no"),
		ITunesSummary:  firstNonEmpty(ep.ITunesSummary, ep.Description),
	}

	if ep.DurationSeconds > 0 {
		item.ITunesDuration = FormatDuration(ep.DurationSeconds)
	}
	if ep.ITunesSubtitle != "" {
		item.ITunesSubtitle = ep.ITunesSubtitle
	}
	if ep.EpisodeImageURL != "" {
		item.ITunesImage = &rssITunesImage{Href: ep.EpisodeImageURL}
	}
	if ep.Season != nil {
		item.ITunesSeason = fmt.Sprintf("%d", *ep.Season)
	}
	if ep.EpisodeNumber != nil {
		item.ITunesEpisode = fmt.Sprintf("%d", *ep.EpisodeNumber)
	}
	if ep.EpisodeType != "" && ep.EpisodeType != "full" {
		item.ITunesEpisodeType = ep.EpisodeType
	}
	if len(ep.ITunesKeywords) > 0 {
		item.ITunesKeywords = strings.Join(ep.ITunesKeywords, ",")
	}

	return item
}

// FormatDuration converts seconds to the HH:MM:SS form used by the
// itunes:duration tag.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "00:00:00"
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type rssFeed struct {
	XMLName  xml.Name   `xml:"rss"`
	Version  string     `xml:"version,attr"`
	AtomNS   string     `xml:"xmlns:atom,attr"`
	ITunesNS string     `xml:"xmlns:itunes,attr"`
	Channel  rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title          string          `xml:"title"`
	Link           string          `xml:"link"`
	Description    string          `xml:"description"`
	Language       string          `xml:"language,omitempty"`
	LastBuildDate  string          `xml:"lastBuildDate"`
	Generator      string          `xml:"generator"`
	ManagingEd     string          `xml:"managingEditor,omitempty"`
	WebMaster      string          `xml:"webMaster,omitempty"`
	AtomLink       rssAtomLink     `xml:"atom:link"`
	Image          *rssImage       `xml:"image,omitempty"`
	ITunesAuthor   string          `xml:"itunes:author,omitempty"`
	ITunesCategory *rssCategory    `xml:"itunes:category,omitempty"`
	ITunesExplicit string          `xml:"itunes:explicit,omitempty"`
	ITunesSummary  string          `xml:"itunes:summary,omitempty"`
	ITunesOwner    *rssOwner       `xml:"itunes:owner,omitempty"`
	ITunesImage    *rssITunesImage `xml:"itunes:image,omitempty"`
	Items          []rssItem       `xml:"item"`
}

type rssAtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssImage struct {
	URL   string `xml:"url"`
	Title string `xml:"title"`
	Link  string `xml:"link"`
}

type rssCategory struct {
	Text        string       `xml:"text,attr"`
	Subcategory *rssCategory `xml:"itunes:category,omitempty"`
}

type rssOwner struct {
	Name  string `xml:"itunes:name"`
	Email string `xml:"itunes:email"`
}

type rssITunesImage struct {
	Href string `xml:"href,attr"`
}

// rssItem field order is load-bearing: encoding/xml emits elements in
// declaration order, and keywords must land immediately before the closing
// item tag for downstream index parsers.
type rssItem struct {
	Title             string          `xml:"title"`
	Description       string          `xml:"description"`
	GUID              rssGUID         `xml:"guid"`
	PubDate           string          `xml:"pubDate"`
	Link              string          `xml:"link"`
	Enclosure         rssEnclosure    `xml:"enclosure"`
	ITunesDuration    string          `xml:"itunes:duration,omitempty"`
	ITunesExplicit    string          `xml:"itunes:explicit"`
	ITunesSummary     string          `xml:"itunes:summary,omitempty"`
	ITunesSubtitle    string          `xml:"itunes:subtitle,omitempty"`
	ITunesImage       *rssITunesImage `xml:"itunes:image,omitempty"`
	ITunesSeason      string          `xml:"itunes:season,omitempty"`
	ITunesEpisode     string          `xml:"itunes:episode,omitempty"`
	ITunesEpisodeType string          `xml:"itunes:episodeType,omitempty"`
	ITunesKeywords    string          `xml:"itunes:keywords,omitempty"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}
