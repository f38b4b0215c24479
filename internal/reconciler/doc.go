// Package reconciler keeps hub subscriptions aligned with the watched
// channel list: it subscribes new and expiring channels, unsubscribes
// abandoned ones, and backs off when the hub rate limits.
package reconciler
