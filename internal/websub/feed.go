package websub

import (
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// FeedUpdate is the payload of one push notification after validation.
type FeedUpdate struct {
	VideoID   string
	ChannelID string
	Link      string
	UpdatedAt time.Time
}

// IsShort reports whether the entry links to a YouTube short.
func (u FeedUpdate) IsShort() bool {
	return strings.Contains(u.Link, "https://www.youtube.com/shorts/")
}

// ErrDeletedEntry marks feed documents announcing a deleted video; callers
// acknowledge and ignore them.
var ErrDeletedEntry = errors.New("websub: deleted entry")

var (
	channelIDPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]{24}$`)
	topicPattern     = regexp.MustCompile(`^https://www\.youtube\.com/xml/feeds/videos\.xml\?channel_id=[a-zA-Z0-9\-_]{24}$`)
	linkPattern      = regexp.MustCompile(`^https://www\.youtube\.com/`)
)

// ValidChannelID reports whether id has the canonical 24-character shape.
func ValidChannelID(id string) bool {
	return channelIDPattern.MatchString(id)
}

// ValidTopic reports whether topic is a YouTube video-feed topic URL.
func ValidTopic(topic string) bool {
	return topicPattern.MatchString(topic)
}

type feedDocument struct {
	XMLName      xml.Name       `xml:"feed"`
	DeletedEntry *struct{}      `xml:"deleted-entry"`
	Entry        *documentEntry `xml:"entry"`
}

type documentEntry struct {
	VideoID   string      `xml:"videoId"`
	ChannelID string      `xml:"channelId"`
	Updated   string      `xml:"updated"`
	Links     []entryLink `xml:"link"`
}

type entryLink struct {
	Href string `xml:"href,attr"`
}

// ParseFeed decodes one Atom feed document delivered by the hub and
// validates the extracted identifiers. Deleted-entry documents return
// ErrDeletedEntry.
func ParseFeed(body []byte) (*FeedUpdate, error) {
	var doc feedDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode feed xml: %w", err)
	}

	if doc.DeletedEntry != nil {
		return nil, ErrDeletedEntry
	}
	if doc.Entry == nil {
		return nil, errors.New("feed has no entry")
	}

	entry := doc.Entry
	if !ValidChannelID(entry.ChannelID) {
		return nil, fmt.Errorf("invalid channel id %q", entry.ChannelID)
	}
	if strings.TrimSpace(entry.VideoID) == "" {
		return nil, errors.New("feed entry has no video id")
	}

	var link string
	for _, l := range entry.Links {
		if l.Href != "" {
			link = l.Href
			break
		}
	}
	if !linkPattern.MatchString(link) {
		return nil, fmt.Errorf("invalid video link %q", link)
	}

	updated, err := time.Parse(time.RFC3339, strings.TrimSpace(entry.Updated))
	if err != nil {
		return nil, fmt.Errorf("invalid updated time %q: %w", entry.Updated, err)
	}

	return &FeedUpdate{
		VideoID:   strings.TrimSpace(entry.VideoID),
		ChannelID: entry.ChannelID,
		Link:      link,
		UpdatedAt: updated,
	}, nil
}
