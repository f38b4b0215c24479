package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates the requested video or channel does not exist
	// (or is no longer visible to the API key).
	ErrNotFound = errors.New("youtube: not found")
	// ErrRateLimited indicates the API rejected the call for quota or rate
	// reasons; the caller should retry later.
	ErrRateLimited = errors.New("youtube: rate limited")
)

// Service defines the YouTube operations the notifier core consumes.
// The production implementation is Client; tests substitute fakes.
type Service interface {
	FetchSnapshot(ctx context.Context, videoID string) (*Snapshot, error)
	WatchedChannels(ctx context.Context) ([]Channel, error)
	RecentUploadIDs(ctx context.Context, channelID string) ([]string, error)
}

// Client calls the YouTube Data API v3 with API-key authentication.
type Client struct {
	apiKey           string
	baseURL          string
	watcherChannelID string
	httpClient       *http.Client
}

var _ Service = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a YouTube Data API client. watcherChannelID names the channel
// whose public subscription list defines the watched set; it may be empty
// when only FetchSnapshot is used.
func New(apiKey, baseURL, watcherChannelID string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("youtube api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("youtube base url required")
	}
	client := &Client{
		apiKey:           apiKey,
		baseURL:          strings.TrimRight(baseURL, "/"),
		watcherChannelID: strings.TrimSpace(watcherChannelID),
		httpClient:       &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// FetchSnapshot retrieves the current metadata of one video.
func (c *Client) FetchSnapshot(ctx context.Context, videoID string) (*Snapshot, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, errors.New("video id must not be empty")
	}

	params := url.Values{}
	params.Set("part", "snippet,contentDetails,liveStreamingDetails,status")
	params.Set("id", videoID)

	var payload videoListResponse
	if err := c.get(ctx, "/videos", params, &payload); err != nil {
		return nil, err
	}
	if len(payload.Items) == 0 {
		return nil, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	return payload.Items[0].snapshot(), nil
}

// WatchedChannels lists the channels the watcher channel is subscribed to,
// following pagination until the API is exhausted.
func (c *Client) WatchedChannels(ctx context.Context) ([]Channel, error) {
	if c.watcherChannelID == "" {
		return nil, errors.New("youtube watcher channel id not configured")
	}

	var channels []Channel
	pageToken := ""
	for {
		params := url.Values{}
		params.Set("part", "snippet")
		params.Set("channelId", c.watcherChannelID)
		params.Set("maxResults", "50")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var payload subscriptionListResponse
		if err := c.get(ctx, "/subscriptions", params, &payload); err != nil {
			return nil, err
		}
		for _, item := range payload.Items {
			channels = append(channels, Channel{
				ID:    item.Snippet.ResourceID.ChannelID,
				Title: item.Snippet.Title,
			})
		}
		if payload.NextPageToken == "" {
			return channels, nil
		}
		pageToken = payload.NextPageToken
	}
}

// RecentUploadIDs returns the video ids of the channel's recent public
// upload activity, newest first. Used as the members-only visibility proof.
func (c *Client) RecentUploadIDs(ctx context.Context, channelID string) ([]string, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, errors.New("channel id must not be empty")
	}

	params := url.Values{}
	params.Set("part", "snippet,contentDetails")
	params.Set("channelId", channelID)
	params.Set("maxResults", "10")

	var payload activityListResponse
	if err := c.get(ctx, "/activities", params, &payload); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.Snippet.Type != "upload" {
			continue
		}
		if id := item.ContentDetails.Upload.VideoID; id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse youtube url: %w", err)
	}
	params.Set("key", c.apiKey)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build youtube request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("youtube request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
		// 403 is how the API reports quota exhaustion.
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("youtube returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode youtube response: %w", err)
	}
	return nil
}
