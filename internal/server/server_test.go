package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tubewatch/internal/config"
	"tubewatch/internal/metrics"
	"tubewatch/internal/storage"
	"tubewatch/internal/websub"
)

const (
	testChannelID = "UCuAXFkgsw1L7xaCfnd5JJOw"
	testVideoID   = "dQw4w9WgXcQ"
	testSecret    = "s3cret"
)

type fakeEngine struct {
	mu   sync.Mutex
	runs []string
	err  error
}

func (f *fakeEngine) Run(_ context.Context, videoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, videoID)
	return f.err
}

func (f *fakeEngine) ranFor(videoID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.runs {
		if id == videoID {
			return true
		}
	}
	return false
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *fakeEngine, *storage.Store) {
	t.Helper()

	store, err := storage.OpenPath(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.Hub.Secret = testSecret
	if mutate != nil {
		mutate(&cfg)
	}

	engine := &fakeEngine{}
	srv, err := New(&cfg, store, engine, metrics.New(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, engine, store
}

func verificationURL(mode, channelID, challenge string) string {
	query := url.Values{}
	query.Set("hub.mode", mode)
	query.Set("hub.topic", websub.TopicURL(channelID))
	query.Set("hub.challenge", challenge)
	query.Set("hub.lease_seconds", "600")
	query.Set("channel_id", channelID)
	return "/callback?" + query.Encode()
}

func TestVerificationSubscribeRecordsLease(t *testing.T) {
	srv, _, store := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, verificationURL("subscribe", testChannelID, "challenge-token"), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "challenge-token" {
		t.Errorf("body = %q, want the challenge echoed", rec.Body.String())
	}

	sub, err := store.GetSubscription(context.Background(), testChannelID)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if sub == nil {
		t.Fatal("subscription record not created")
	}
	if until := time.Until(sub.ExpiresAt); until < 9*time.Minute || until > 11*time.Minute {
		t.Errorf("lease expiry = %v from now, want about 10m", until)
	}
}

func TestVerificationUnsubscribeRemovesRecord(t *testing.T) {
	srv, _, store := newTestServer(t, nil)
	if err := store.UpsertSubscription(context.Background(), testChannelID, "Example", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, verificationURL("unsubscribe", testChannelID, "bye"), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	sub, err := store.GetSubscription(context.Background(), testChannelID)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if sub != nil {
		t.Fatal("subscription record still present after unsubscribe")
	}
}

func TestVerificationRefusesMismatchedTopic(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	query := url.Values{}
	query.Set("hub.mode", "subscribe")
	query.Set("hub.topic", "https://example.com/other-feed")
	query.Set("hub.challenge", "nope")
	query.Set("channel_id", testChannelID)

	req := httptest.NewRequest(http.MethodGet, "/callback?"+query.Encode(), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func feedBody(videoID, channelID, link, updated string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <yt:videoId>` + videoID + `</yt:videoId>
    <yt:channelId>` + channelID + `</yt:channelId>
    <title>Example Video</title>
    <link rel="alternate" href="` + link + `"/>
    <updated>` + updated + `</updated>
  </entry>
</feed>`)
}

func signedPush(t *testing.T, body []byte, secret string) *http.Request {
	t.Helper()
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	req := httptest.NewRequest(http.MethodPost, "/callback", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature", "sha1="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func TestPushRunsEngine(t *testing.T) {
	srv, engine, _ := newTestServer(t, nil)

	body := feedBody(testVideoID, testChannelID, "https://www.youtube.com/watch?v="+testVideoID, "2026-04-01T09:05:10+00:00")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedPush(t, body, testSecret))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	if !engine.ranFor(testVideoID) {
		t.Fatal("engine did not run for the pushed video")
	}
}

func TestPushRejectsInvalidSignature(t *testing.T) {
	srv, engine, _ := newTestServer(t, nil)

	body := feedBody(testVideoID, testChannelID, "https://www.youtube.com/watch?v="+testVideoID, "2026-04-01T09:05:10+00:00")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedPush(t, body, "wrong-secret"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 so the hub does not retry", rec.Code)
	}
	if len(engine.runs) != 0 {
		t.Fatal("engine ran on a forged push")
	}
}

func TestPushIgnoresDeletedEntry(t *testing.T) {
	srv, engine, _ := newTestServer(t, nil)

	body := []byte(`<feed xmlns:at="http://purl.org/atompub/tombstones/1.0" xmlns="http://www.w3.org/2005/Atom"><at:deleted-entry ref="yt:video:gone" when="2026-04-02T00:00:00+00:00"/></feed>`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedPush(t, body, testSecret))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(engine.runs) != 0 {
		t.Fatal("engine ran on a deleted entry")
	}
}

func TestPushExcludesShorts(t *testing.T) {
	srv, engine, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Notifier.ExcludeShorts = true
	})

	body := feedBody(testVideoID, testChannelID, "https://www.youtube.com/shorts/"+testVideoID, "2026-04-01T09:05:10+00:00")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedPush(t, body, testSecret))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(engine.runs) != 0 {
		t.Fatal("engine ran on an excluded short")
	}
}

func TestPushIgnoresReplayedUpdate(t *testing.T) {
	srv, engine, store := newTestServer(t, nil)
	ctx := context.Background()

	if err := store.UpsertSubscription(ctx, testChannelID, "Example", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	if err := store.AdvanceWatermark(ctx, testChannelID, time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("seed watermark: %v", err)
	}

	body := feedBody(testVideoID, testChannelID, "https://www.youtube.com/watch?v="+testVideoID, "2026-04-01T09:05:10+00:00")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedPush(t, body, testSecret))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(engine.runs) != 0 {
		t.Fatal("engine ran on a replayed update")
	}
}

func TestPushAdvancesWatermark(t *testing.T) {
	srv, _, store := newTestServer(t, nil)
	ctx := context.Background()

	if err := store.UpsertSubscription(ctx, testChannelID, "Example", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	body := feedBody(testVideoID, testChannelID, "https://www.youtube.com/watch?v="+testVideoID, "2026-04-01T09:05:10+00:00")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedPush(t, body, testSecret))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}

	sub, err := store.GetSubscription(ctx, testChannelID)
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if sub == nil || sub.LastSeenUpdateAt == nil {
		t.Fatal("watermark not advanced")
	}
	want := time.Date(2026, 4, 1, 9, 5, 10, 0, time.UTC)
	if !sub.LastSeenUpdateAt.Equal(want) {
		t.Errorf("watermark = %v, want %v", sub.LastSeenUpdateAt, want)
	}
}

func TestPushEngineFailureAsksForRedelivery(t *testing.T) {
	srv, engine, _ := newTestServer(t, nil)
	engine.err = errors.New("upstream down")

	body := feedBody(testVideoID, testChannelID, "https://www.youtube.com/watch?v="+testVideoID, "2026-04-01T09:05:10+00:00")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedPush(t, body, testSecret))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 so the hub redelivers", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("content type = %q", got)
	}
}

func TestAllowListBlocksForeignNetworks(t *testing.T) {
	srv, _, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.AllowedCIDRs = []string{"10.0.0.0/8"}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.RemoteAddr = "192.0.2.1:4711"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.RemoteAddr = "10.1.2.3:4711"
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for allowed network", rec.Code)
	}

	// The hub callback sits behind the same allow list.
	req = httptest.NewRequest(http.MethodGet, verificationURL("subscribe", testChannelID, "ping"), nil)
	req.RemoteAddr = "192.0.2.1:4711"
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("callback status = %d, want 403", rec.Code)
	}

	body := feedBody(testVideoID, testChannelID, "https://www.youtube.com/watch?v="+testVideoID, "2026-04-01T09:05:10+00:00")
	preq := signedPush(t, body, testSecret)
	preq.RemoteAddr = "192.0.2.1:4711"
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, preq)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("push status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, verificationURL("subscribe", testChannelID, "ping"), nil)
	req.RemoteAddr = "10.1.2.3:4711"
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("callback status = %d, want 200 for allowed network", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
