package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"
)

// SubscriptionRecord tracks the WebSub lease state of one channel.
type SubscriptionRecord struct {
	ChannelID        string
	Title            string
	ExpiresAt        time.Time
	LastSeenUpdateAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UpsertSubscription creates or refreshes the record for channelID with a new
// lease expiry. The watermark is preserved across renewals. An empty title
// keeps any previously stored one.
func (s *Store) UpsertSubscription(ctx context.Context, channelID, title string, expiresAt time.Time) error {
	if channelID == "" {
		return errors.New("channel id must not be empty")
	}
	now := formatTime(time.Now())
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO subscriptions (channel_id, title, expires_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (channel_id) DO UPDATE SET
            title = CASE WHEN excluded.title != '' THEN excluded.title ELSE subscriptions.title END,
            expires_at = excluded.expires_at,
            updated_at = excluded.updated_at`,
		channelID,
		title,
		formatTime(expiresAt),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// DeleteSubscription removes the record for channelID. Deleting a missing
// record is not an error.
func (s *Store) DeleteSubscription(ctx context.Context, channelID string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM subscriptions WHERE channel_id = ?`, channelID); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// GetSubscription fetches one record. Returns nil when the channel is not
// tracked.
func (s *Store) GetSubscription(ctx context.Context, channelID string) (*SubscriptionRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT channel_id, title, expires_at, last_seen_update_at, created_at, updated_at
         FROM subscriptions WHERE channel_id = ?`,
		channelID,
	)
	record, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return record, nil
}

// ListSubscriptions returns every tracked channel ordered by channel id.
func (s *Store) ListSubscriptions(ctx context.Context) ([]SubscriptionRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT channel_id, title, expires_at, last_seen_update_at, created_at, updated_at
         FROM subscriptions`,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var records []SubscriptionRecord
	for rows.Next() {
		record, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ChannelID < records[j].ChannelID })
	return records, nil
}

// AdvanceWatermark records the newest feed update timestamp seen for a
// channel. Older timestamps never move the watermark backwards, and unknown
// channels are ignored (the hub can deliver after an unsubscribe).
func (s *Store) AdvanceWatermark(ctx context.Context, channelID string, seenAt time.Time) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE subscriptions
         SET last_seen_update_at = ?, updated_at = ?
         WHERE channel_id = ?
           AND (last_seen_update_at IS NULL OR last_seen_update_at < ?)`,
		formatTime(seenAt),
		formatTime(time.Now()),
		channelID,
		formatTime(seenAt),
	)
	if err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*SubscriptionRecord, error) {
	var (
		record    SubscriptionRecord
		expiresAt string
		watermark sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&record.ChannelID, &record.Title, &expiresAt, &watermark, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if record.ExpiresAt, err = parseStoredTime(expiresAt); err != nil {
		return nil, err
	}
	if record.CreatedAt, err = parseStoredTime(createdAt); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = parseStoredTime(updatedAt); err != nil {
		return nil, err
	}
	if watermark.Valid {
		parsed, err := parseStoredTime(watermark.String)
		if err != nil {
			return nil, err
		}
		record.LastSeenUpdateAt = &parsed
	}
	return &record, nil
}
