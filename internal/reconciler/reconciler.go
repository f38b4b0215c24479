package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"tubewatch/internal/config"
	"tubewatch/internal/logging"
	"tubewatch/internal/metrics"
	"tubewatch/internal/retry"
	"tubewatch/internal/storage"
	"tubewatch/internal/websub"
	"tubewatch/internal/youtube"
)

// Plan is the per-cycle action set derived from the desired and active
// channel sets. New and Expiring channels get subscribe requests
// (subscribe doubles as renew), Stale ones get unsubscribes.
type Plan struct {
	New      []string
	Expiring []string
	Stale    []string
}

// Empty reports whether the plan requires no hub traffic.
func (p Plan) Empty() bool {
	return len(p.New) == 0 && len(p.Expiring) == 0 && len(p.Stale) == 0
}

// Diff computes the plan from the desired channel ids and the active
// subscription records. A subscription whose lease expires within
// window counts as expiring.
func Diff(desired []string, active []storage.SubscriptionRecord, now time.Time, window time.Duration) Plan {
	desiredSet := make(map[string]struct{}, len(desired))
	for _, id := range desired {
		desiredSet[id] = struct{}{}
	}

	var plan Plan
	activeSet := make(map[string]struct{}, len(active))
	for _, sub := range active {
		activeSet[sub.ChannelID] = struct{}{}
		if _, wanted := desiredSet[sub.ChannelID]; !wanted {
			plan.Stale = append(plan.Stale, sub.ChannelID)
			continue
		}
		if sub.ExpiresAt.Sub(now) < window {
			plan.Expiring = append(plan.Expiring, sub.ChannelID)
		}
	}
	for _, id := range desired {
		if _, exists := activeSet[id]; !exists {
			plan.New = append(plan.New, id)
		}
	}

	sort.Strings(plan.New)
	sort.Strings(plan.Expiring)
	sort.Strings(plan.Stale)
	return plan
}

// Subscriptions is the slice of the storage layer the reconciler reads.
type Subscriptions interface {
	ListSubscriptions(ctx context.Context) ([]storage.SubscriptionRecord, error)
}

// HubClient sends the subscription protocol requests.
type HubClient interface {
	Subscribe(ctx context.Context, channelID string) error
	Unsubscribe(ctx context.Context, channelID string) error
}

// Reconciler drives one alignment cycle at a time.
type Reconciler struct {
	videos  youtube.Service
	subs    Subscriptions
	hub     HubClient
	metrics *metrics.Metrics
	logger  *slog.Logger

	window time.Duration
	policy retry.Policy
	now    func() time.Time
}

// New builds a reconciler from configuration and collaborators.
func New(cfg *config.Config, videos youtube.Service, subs Subscriptions, hub HubClient, m *metrics.Metrics, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reconciler{
		videos:  videos,
		subs:    subs,
		hub:     hub,
		metrics: m,
		logger:  logger,
		window:  time.Duration(cfg.Hub.RenewalWindowDays) * 24 * time.Hour,
		policy: retry.Policy{
			BaseDelay:   time.Duration(cfg.Reconciler.BackoffBaseMS) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Reconciler.BackoffCapMS) * time.Millisecond,
			MaxAttempts: cfg.Reconciler.MaxAttempts,
		},
		now: time.Now,
	}
}

// Run executes one reconcile cycle. Subscribes run before unsubscribes
// because losing push delivery for an active channel is worse than
// briefly over-subscribing to an abandoned one. Rate-limit exhaustion
// abandons the remaining plan and returns success-so-far; the next
// scheduled cycle picks up whatever was left, since unprocessed state
// is unchanged. Any other failure propagates.
func (r *Reconciler) Run(ctx context.Context) error {
	channels, err := r.videos.WatchedChannels(ctx)
	if err != nil {
		return fmt.Errorf("list watched channels: %w", err)
	}
	desired := make([]string, 0, len(channels))
	for _, ch := range channels {
		desired = append(desired, ch.ID)
	}

	active, err := r.subs.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	plan := Diff(desired, active, r.now(), r.window)
	r.logger.Info("reconcile plan computed",
		logging.Int("new", len(plan.New)),
		logging.Int("expiring", len(plan.Expiring)),
		logging.Int("stale", len(plan.Stale)))
	if plan.Empty() {
		return nil
	}

	subscribe := append(append([]string{}, plan.New...), plan.Expiring...)
	for _, channelID := range subscribe {
		done, err := r.execute(ctx, channelID, "subscribe", r.hub.Subscribe)
		if err != nil {
			return err
		}
		if !done {
			return nil
		}
		r.metrics.IncSubscribes()
	}

	for _, channelID := range plan.Stale {
		done, err := r.execute(ctx, channelID, "unsubscribe", r.hub.Unsubscribe)
		if err != nil {
			return err
		}
		if !done {
			return nil
		}
		r.metrics.IncUnsubscribes()
	}
	return nil
}

// execute runs one hub action under the backoff policy. It returns
// done=false when rate limiting exhausted the attempts, which ends the
// cycle without error.
func (r *Reconciler) execute(ctx context.Context, channelID, action string, fn func(context.Context, string) error) (bool, error) {
	log := r.logger.With(logging.ChannelID(channelID), logging.String("action", action))

	err := retry.Do(ctx, r.policy, isRateLimited, func() error {
		return fn(ctx, channelID)
	})
	if err == nil {
		log.Info("hub request accepted")
		return true, nil
	}

	var exhausted *retry.ErrExhausted
	if errors.As(err, &exhausted) {
		r.metrics.IncReconcileAborts()
		log.Warn("hub kept rate limiting, abandoning remaining plan",
			logging.Int("attempts", exhausted.Attempts))
		return false, nil
	}
	return false, fmt.Errorf("%s %s: %w", action, channelID, err)
}

func isRateLimited(err error) bool {
	return errors.Is(err, websub.ErrRateLimited)
}
