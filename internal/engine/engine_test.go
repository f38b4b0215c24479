package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tubewatch/internal/classify"
	"tubewatch/internal/config"
	"tubewatch/internal/metrics"
	"tubewatch/internal/youtube"
)

type fakeVideos struct {
	snapshots map[string]*youtube.Snapshot
	uploads   map[string][]string
	fetchErr  error
}

func (f *fakeVideos) FetchSnapshot(_ context.Context, videoID string) (*youtube.Snapshot, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	snap, ok := f.snapshots[videoID]
	if !ok {
		return nil, youtube.ErrNotFound
	}
	return snap, nil
}

func (f *fakeVideos) WatchedChannels(context.Context) ([]youtube.Channel, error) {
	return nil, nil
}

func (f *fakeVideos) RecentUploadIDs(_ context.Context, channelID string) ([]string, error) {
	return f.uploads[channelID], nil
}

type acquireCall struct {
	videoID   string
	status    classify.Status
	expiresAt time.Time
}

type fakeRecords struct {
	mu       sync.Mutex
	calls    []acquireCall
	acquired bool
	err      error
}

func (f *fakeRecords) TryAcquireNotification(_ context.Context, videoID string, status classify.Status, expiresAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, acquireCall{videoID, status, expiresAt})
	return f.acquired, f.err
}

type fakeNotifier struct {
	delivered []string
	err       error
}

func (f *fakeNotifier) Deliver(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, text)
	return nil
}

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

func newTestEngine(t *testing.T, videos *fakeVideos, records *fakeRecords, notifier *fakeNotifier, mutate func(*config.Config)) *Engine {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	eng, err := New(&cfg, videos, records, notifier, metrics.New(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eng.now = func() time.Time { return testNow }
	return eng
}

func uploadSnapshot() *youtube.Snapshot {
	return &youtube.Snapshot{
		VideoID:      "vid00000001",
		Title:        "Fresh Upload",
		ChannelID:    "UCuAXFkgsw1L7xaCfnd5JJOw",
		ChannelTitle: "Example Channel",
		PublishedAt:  testNow.Add(-time.Hour),
	}
}

func TestRunDeliversUpload(t *testing.T) {
	videos := &fakeVideos{snapshots: map[string]*youtube.Snapshot{"vid00000001": uploadSnapshot()}}
	records := &fakeRecords{acquired: true}
	notifier := &fakeNotifier{}

	eng := newTestEngine(t, videos, records, notifier, nil)
	if err := eng.Run(context.Background(), "vid00000001"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(notifier.delivered) != 1 {
		t.Fatalf("delivered %d messages, want 1", len(notifier.delivered))
	}
	if len(records.calls) != 1 {
		t.Fatalf("acquire calls = %d, want 1", len(records.calls))
	}
	call := records.calls[0]
	if call.status != classify.StatusUploaded {
		t.Errorf("acquired status = %q", call.status)
	}
	if !call.expiresAt.Equal(testNow.Add(recordTTL)) {
		t.Errorf("record expiry = %v, want now+24h", call.expiresAt)
	}
}

func TestRunSuppressesDuplicate(t *testing.T) {
	videos := &fakeVideos{snapshots: map[string]*youtube.Snapshot{"vid00000001": uploadSnapshot()}}
	records := &fakeRecords{acquired: false}
	notifier := &fakeNotifier{}

	eng := newTestEngine(t, videos, records, notifier, nil)
	if err := eng.Run(context.Background(), "vid00000001"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.delivered) != 0 {
		t.Fatalf("duplicate still delivered %d messages", len(notifier.delivered))
	}
}

func TestRunSkipsMissingVideo(t *testing.T) {
	videos := &fakeVideos{snapshots: map[string]*youtube.Snapshot{}}
	records := &fakeRecords{acquired: true}
	notifier := &fakeNotifier{}

	eng := newTestEngine(t, videos, records, notifier, nil)
	if err := eng.Run(context.Background(), "gone"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records.calls) != 0 {
		t.Fatal("missing video still touched the record store")
	}
}

func TestRunPropagatesFetchErrors(t *testing.T) {
	videos := &fakeVideos{fetchErr: errors.New("upstream down")}
	eng := newTestEngine(t, videos, &fakeRecords{}, &fakeNotifier{}, nil)
	if err := eng.Run(context.Background(), "vid00000001"); err == nil {
		t.Fatal("expected fetch error to propagate")
	}
}

func TestRunDropsOldUpload(t *testing.T) {
	snap := uploadSnapshot()
	snap.PublishedAt = testNow.Add(-25 * time.Hour)
	videos := &fakeVideos{snapshots: map[string]*youtube.Snapshot{snap.VideoID: snap}}
	records := &fakeRecords{acquired: true}
	notifier := &fakeNotifier{}

	eng := newTestEngine(t, videos, records, notifier, nil)
	if err := eng.Run(context.Background(), snap.VideoID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records.calls) != 0 || len(notifier.delivered) != 0 {
		t.Fatal("old upload was not dropped")
	}
}

func TestRunRecordsEndedWithoutNotifying(t *testing.T) {
	snap := uploadSnapshot()
	snap.Live = &youtube.LiveDetails{
		ScheduledStart: timePtr(testNow.Add(-2 * time.Hour)),
		ActualStart:    timePtr(testNow.Add(-90 * time.Minute)),
		ActualEnd:      timePtr(testNow.Add(-time.Hour)),
	}
	videos := &fakeVideos{snapshots: map[string]*youtube.Snapshot{snap.VideoID: snap}}
	records := &fakeRecords{acquired: true}
	notifier := &fakeNotifier{}

	eng := newTestEngine(t, videos, records, notifier, nil)
	if err := eng.Run(context.Background(), snap.VideoID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records.calls) != 1 || records.calls[0].status != classify.StatusEnded {
		t.Fatalf("ended record not acquired: %+v", records.calls)
	}
	if len(notifier.delivered) != 0 {
		t.Fatal("ended video was announced")
	}
}

func TestRunSuppressesStaleLive(t *testing.T) {
	snap := uploadSnapshot()
	snap.Live = &youtube.LiveDetails{ActualStart: timePtr(testNow.Add(-20 * time.Minute))}
	videos := &fakeVideos{snapshots: map[string]*youtube.Snapshot{snap.VideoID: snap}}
	records := &fakeRecords{acquired: true}
	notifier := &fakeNotifier{}

	eng := newTestEngine(t, videos, records, notifier, nil)
	if err := eng.Run(context.Background(), snap.VideoID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.delivered) != 0 {
		t.Fatal("stale live session was announced")
	}
	if len(records.calls) != 1 || records.calls[0].status != classify.StatusEnded {
		t.Fatalf("stale live not recorded as ended: %+v", records.calls)
	}
}

func TestRunAnchorsUpcomingExpiryToSchedule(t *testing.T) {
	scheduled := testNow.Add(3 * time.Hour)
	snap := uploadSnapshot()
	snap.Live = &youtube.LiveDetails{ScheduledStart: timePtr(scheduled)}
	videos := &fakeVideos{snapshots: map[string]*youtube.Snapshot{snap.VideoID: snap}}
	records := &fakeRecords{acquired: true}
	notifier := &fakeNotifier{}

	eng := newTestEngine(t, videos, records, notifier, nil)
	if err := eng.Run(context.Background(), snap.VideoID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records.calls) != 1 {
		t.Fatalf("acquire calls = %d", len(records.calls))
	}
	if !records.calls[0].expiresAt.Equal(scheduled.Add(recordTTL)) {
		t.Errorf("record expiry = %v, want scheduled+24h", records.calls[0].expiresAt)
	}
}

func TestRunMembersPolicyNone(t *testing.T) {
	snap := uploadSnapshot()
	snap.IsMembersOnly = true
	videos := &fakeVideos{snapshots: map[string]*youtube.Snapshot{snap.VideoID: snap}}
	records := &fakeRecords{acquired: true}
	notifier := &fakeNotifier{}

	eng := newTestEngine(t, videos, records, notifier, func(cfg *config.Config) {
		cfg.Notifier.MembersOnlyPolicy = config.MembersPolicyNone
	})
	if err := eng.Run(context.Background(), snap.VideoID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records.calls) != 0 || len(notifier.delivered) != 0 {
		t.Fatal("members-only video was not dropped under policy none")
	}
}

func TestRunMembersPolicySubscribedOnly(t *testing.T) {
	snap := uploadSnapshot()
	snap.IsMembersOnly = true

	for _, tc := range []struct {
		name    string
		uploads []string
		want    int
	}{
		{"visible in activity feed", []string{snap.VideoID}, 1},
		{"absent from activity feed", []string{"other0000001"}, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			videos := &fakeVideos{
				snapshots: map[string]*youtube.Snapshot{snap.VideoID: snap},
				uploads:   map[string][]string{snap.ChannelID: tc.uploads},
			}
			records := &fakeRecords{acquired: true}
			notifier := &fakeNotifier{}

			eng := newTestEngine(t, videos, records, notifier, func(cfg *config.Config) {
				cfg.Notifier.MembersOnlyPolicy = config.MembersPolicySubscribedOnly
			})
			if err := eng.Run(context.Background(), snap.VideoID); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(notifier.delivered) != tc.want {
				t.Fatalf("delivered %d messages, want %d", len(notifier.delivered), tc.want)
			}
		})
	}
}

func TestRunAcceptsDeliveryFailure(t *testing.T) {
	videos := &fakeVideos{snapshots: map[string]*youtube.Snapshot{"vid00000001": uploadSnapshot()}}
	records := &fakeRecords{acquired: true}
	notifier := &fakeNotifier{err: errors.New("webhook 500")}

	eng := newTestEngine(t, videos, records, notifier, nil)
	if err := eng.Run(context.Background(), "vid00000001"); err != nil {
		t.Fatalf("delivery failure must not propagate, got %v", err)
	}
}

func TestRunPropagatesStorageErrors(t *testing.T) {
	videos := &fakeVideos{snapshots: map[string]*youtube.Snapshot{"vid00000001": uploadSnapshot()}}
	records := &fakeRecords{err: errors.New("database locked")}

	eng := newTestEngine(t, videos, records, &fakeNotifier{}, nil)
	if err := eng.Run(context.Background(), "vid00000001"); err == nil {
		t.Fatal("expected storage error to propagate")
	}
}
