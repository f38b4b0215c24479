// Package engine drives the notification pipeline for a single video:
// fetch the current snapshot, classify its lifecycle status, filter by
// retention and audience policy, acquire the idempotency record, and
// deliver at most one message per (video, status) pair.
package engine
