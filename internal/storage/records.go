package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tubewatch/internal/classify"
)

// TryAcquireNotification attempts the idempotence write for one
// (video, status) pair. It returns true exactly once per live record: the
// conditional insert succeeds when no record exists for the key, or when the
// existing record has already expired and is reclaimed in the same statement.
// A false return is the duplicate signal, not an error.
func (s *Store) TryAcquireNotification(ctx context.Context, videoID string, status classify.Status, expiresAt time.Time) (bool, error) {
	if videoID == "" {
		return false, errors.New("video id must not be empty")
	}
	if !status.Valid() {
		return false, fmt.Errorf("invalid status %q", status)
	}

	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO notification_records (video_id, status, created_at, expires_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (video_id, status) DO UPDATE
            SET created_at = excluded.created_at, expires_at = excluded.expires_at
            WHERE notification_records.expires_at <= ?`,
		videoID,
		string(status),
		formatTime(now),
		formatTime(expiresAt),
		formatTime(now),
	)
	if err != nil {
		return false, fmt.Errorf("acquire notification record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// AcquireDeliveryLock takes the short-lived per-video lock that serializes
// concurrent webhook pushes for the same video. Same conditional-write
// semantics as TryAcquireNotification.
func (s *Store) AcquireDeliveryLock(ctx context.Context, videoID string, ttl time.Duration) (bool, error) {
	if videoID == "" {
		return false, errors.New("video id must not be empty")
	}

	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO delivery_locks (video_id, created_at, expires_at)
         VALUES (?, ?, ?)
         ON CONFLICT (video_id) DO UPDATE
            SET created_at = excluded.created_at, expires_at = excluded.expires_at
            WHERE delivery_locks.expires_at <= ?`,
		videoID,
		formatTime(now),
		formatTime(now.Add(ttl)),
		formatTime(now),
	)
	if err != nil {
		return false, fmt.Errorf("acquire delivery lock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ReleaseDeliveryLock removes the per-video lock. Missing locks are not an
// error; expiry may have beaten the caller to it.
func (s *Store) ReleaseDeliveryLock(ctx context.Context, videoID string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM delivery_locks WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("release delivery lock: %w", err)
	}
	return nil
}

// NotificationRecorded reports whether a live record exists for the key.
func (s *Store) NotificationRecorded(ctx context.Context, videoID string, status classify.Status) (bool, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM notification_records
         WHERE video_id = ? AND status = ? AND expires_at > ?`,
		videoID,
		string(status),
		formatTime(time.Now()),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check notification record: %w", err)
	}
	return count > 0, nil
}

// PurgeExpired removes expired notification records and delivery locks.
// Returns the number of rows removed.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	cutoff := formatTime(now)
	var total int64
	for _, table := range []string{"notification_records", "delivery_locks"} {
		res, err := s.execWithRetry(ctx, `DELETE FROM `+table+` WHERE expires_at <= ?`, cutoff)
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", table, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += affected
	}
	return total, nil
}

// RecordCounts returns the live record totals used by the status endpoint.
func (s *Store) RecordCounts(ctx context.Context) (notifications, subscriptions int64, err error) {
	cutoff := formatTime(time.Now())
	if err = s.db.QueryRowContext(
		ctx, `SELECT COUNT(1) FROM notification_records WHERE expires_at > ?`, cutoff,
	).Scan(&notifications); err != nil {
		return 0, 0, fmt.Errorf("count notification records: %w", err)
	}
	if err = s.db.QueryRowContext(
		ctx, `SELECT COUNT(1) FROM subscriptions`,
	).Scan(&subscriptions); err != nil {
		return 0, 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return notifications, subscriptions, nil
}
