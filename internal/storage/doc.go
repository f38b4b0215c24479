// Package storage persists notification records, delivery locks, and
// subscription records in SQLite.
//
// The notification-record table is the idempotence mechanism for the whole
// system: TryAcquireNotification performs a single atomic conditional write
// keyed by (video_id, status), so at most one of any number of concurrent or
// retried invocations observes an acquisition. Records carry an expiry and
// are removed by PurgeExpired, which the daemon runs on a timer; no component
// ever updates or deletes a live record.
//
// Subscription records track the WebSub lease per channel and drive the
// reconciler's diff. They are written only from hub verification callbacks.
package storage
