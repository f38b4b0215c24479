package websub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrRateLimited is returned when the hub answers 429.
var ErrRateLimited = errors.New("websub: hub rate limited")

// TopicURL builds the canonical feed topic for a channel.
func TopicURL(channelID string) string {
	return "https://www.youtube.com/xml/feeds/videos.xml?channel_id=" + channelID
}

// Hub sends subscribe and unsubscribe requests to a WebSub hub.
type Hub struct {
	hubURL       string
	callbackURL  string
	secret       string
	leaseSeconds int
	httpClient   *http.Client
}

// HubOption adjusts hub client construction.
type HubOption func(*Hub)

// WithHubHTTPClient overrides the HTTP client, mainly for tests.
func WithHubHTTPClient(client *http.Client) HubOption {
	return func(h *Hub) {
		h.httpClient = client
	}
}

// NewHub builds a hub client. callbackURL is the externally reachable
// base callback; the per-channel channel_id query parameter is appended
// on each request.
func NewHub(hubURL, callbackURL, secret string, leaseSeconds int, opts ...HubOption) *Hub {
	h := &Hub{
		hubURL:       hubURL,
		callbackURL:  callbackURL,
		secret:       secret,
		leaseSeconds: leaseSeconds,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe asks the hub to start pushing feed updates for the channel.
func (h *Hub) Subscribe(ctx context.Context, channelID string) error {
	return h.send(ctx, "subscribe", channelID)
}

// Unsubscribe asks the hub to stop pushing feed updates for the channel.
func (h *Hub) Unsubscribe(ctx context.Context, channelID string) error {
	return h.send(ctx, "unsubscribe", channelID)
}

func (h *Hub) send(ctx context.Context, mode, channelID string) error {
	if !ValidChannelID(channelID) {
		return fmt.Errorf("invalid channel id %q", channelID)
	}

	callback, err := callbackFor(h.callbackURL, channelID)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("hub.mode", mode)
	form.Set("hub.topic", TopicURL(channelID))
	form.Set("hub.callback", callback)
	if h.secret != "" {
		form.Set("hub.secret", h.secret)
	}
	if mode == "subscribe" {
		form.Set("hub.lease_seconds", strconv.Itoa(h.leaseSeconds))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.hubURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build hub request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", mode, channelID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		io.Copy(io.Discard, resp.Body)
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s %s: %w", mode, channelID, ErrRateLimited)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: hub returned %d: %s", mode, channelID, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

func callbackFor(base, channelID string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse callback url: %w", err)
	}
	query := parsed.Query()
	query.Set("channel_id", channelID)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
