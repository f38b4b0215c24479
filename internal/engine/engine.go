package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tubewatch/internal/classify"
	"tubewatch/internal/config"
	"tubewatch/internal/logging"
	"tubewatch/internal/metrics"
	"tubewatch/internal/notifications"
	"tubewatch/internal/youtube"
)

// recordTTL keeps a notification record alive for a day past its anchor
// time so flapping upstream data cannot re-fire the same announcement.
const recordTTL = 24 * time.Hour

// Records is the slice of the storage layer the engine depends on.
type Records interface {
	TryAcquireNotification(ctx context.Context, videoID string, status classify.Status, expiresAt time.Time) (bool, error)
}

// Engine turns one video id into zero or one delivered notification.
type Engine struct {
	videos   youtube.Service
	records  Records
	notifier notifications.Service
	metrics  *metrics.Metrics
	logger   *slog.Logger

	location        *time.Location
	staleLive       time.Duration
	uploadRetention time.Duration
	membersPolicy   string
	now             func() time.Time
}

// New wires an engine from configuration and collaborators. The
// configured timezone must already have passed validation.
func New(cfg *config.Config, videos youtube.Service, records Records, notifier notifications.Service, m *metrics.Metrics, logger *slog.Logger) (*Engine, error) {
	loc, err := time.LoadLocation(cfg.Notifier.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Notifier.Timezone, err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		videos:          videos,
		records:         records,
		notifier:        notifier,
		metrics:         m,
		logger:          logger,
		location:        loc,
		staleLive:       time.Duration(cfg.Notifier.StaleLiveMinutes) * time.Minute,
		uploadRetention: time.Duration(cfg.Notifier.UploadRetentionHours) * time.Hour,
		membersPolicy:   cfg.Notifier.MembersOnlyPolicy,
		now:             time.Now,
	}, nil
}

// Run processes a single video. Fetch and storage errors propagate so
// the trigger's retry envelope can re-run the invocation; delivery
// failures are logged and accepted, because duplicate suppression has
// already been recorded by then.
func (e *Engine) Run(ctx context.Context, videoID string) error {
	log := e.logger.With(logging.VideoID(videoID))

	snap, err := e.videos.FetchSnapshot(ctx, videoID)
	if errors.Is(err, youtube.ErrNotFound) {
		log.Info("video no longer exists, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	now := e.now()
	status := classify.Classify(snap, now, e.staleLive)
	log = log.With(logging.Status(string(status)))

	if e.outsideRetention(snap, status, now) {
		log.Info("outside retention horizon, skipping")
		return nil
	}

	target, err := e.audienceAllowed(ctx, snap)
	if err != nil {
		return err
	}
	if !target {
		log.Info("restricted-audience content filtered by policy")
		return nil
	}

	acquired, err := e.records.TryAcquireNotification(ctx, videoID, status, e.recordExpiry(snap, status, now))
	if err != nil {
		return fmt.Errorf("acquire notification record: %w", err)
	}
	if !acquired {
		e.metrics.IncDuplicatesSuppressed()
		log.Info("notification already recorded for this status")
		return nil
	}

	// Ended videos only pin a record so stale "started" replays from
	// flapping upstream data cannot fire later. Never announced.
	if status == classify.StatusEnded {
		log.Info("ended video recorded without notification")
		return nil
	}

	text, err := notifications.Compose(snap, status, now, e.location)
	if err != nil {
		if errors.Is(err, notifications.ErrInvariant) {
			log.Error("composer received terminal status", logging.Error(err))
			return nil
		}
		return fmt.Errorf("compose notification: %w", err)
	}

	if err := e.notifier.Deliver(ctx, text); err != nil {
		e.metrics.IncDeliveryFailures()
		log.Error("notification delivery failed", logging.Error(err))
		return nil
	}

	e.metrics.IncNotificationsSent()
	log.Info("notification sent", logging.ChannelID(snap.ChannelID))
	return nil
}

// outsideRetention drops stale first-seen items: uploads published
// before the retention horizon, and ended sessions whose schedule is
// older than it. Both would otherwise replay ancient backlog.
func (e *Engine) outsideRetention(snap *youtube.Snapshot, status classify.Status, now time.Time) bool {
	horizon := now.Add(-e.uploadRetention)
	switch status {
	case classify.StatusUploaded:
		return !snap.PublishedAt.IsZero() && snap.PublishedAt.Before(horizon)
	case classify.StatusEnded:
		if snap.Live != nil && snap.Live.ScheduledStart != nil {
			return snap.Live.ScheduledStart.Before(horizon)
		}
	}
	return false
}

// audienceAllowed applies the members-only policy. The upstream flag is
// unreliable for members-only uploads, so the subscribed_only policy
// additionally demands the video appear in the channel's public recent
// activity feed before it is announced.
func (e *Engine) audienceAllowed(ctx context.Context, snap *youtube.Snapshot) (bool, error) {
	if !snap.IsMembersOnly {
		return true, nil
	}
	switch e.membersPolicy {
	case config.MembersPolicyNone:
		return false, nil
	case config.MembersPolicySubscribedOnly:
		ids, err := e.videos.RecentUploadIDs(ctx, snap.ChannelID)
		if err != nil {
			return false, fmt.Errorf("check recent activity: %w", err)
		}
		for _, id := range ids {
			if id == snap.VideoID {
				return true, nil
			}
		}
		return false, nil
	default:
		return true, nil
	}
}

// recordExpiry anchors the dedup record's lifetime to the scheduled
// start when one is known, so an upcoming record survives until a day
// after the stream actually begins.
func (e *Engine) recordExpiry(snap *youtube.Snapshot, status classify.Status, now time.Time) time.Time {
	if status == classify.StatusUpcoming && snap.Live != nil && snap.Live.ScheduledStart != nil {
		return snap.Live.ScheduledStart.Add(recordTTL)
	}
	return now.Add(recordTTL)
}
