// Package notifications composes status announcements for videos and
// delivers them to a Slack-compatible incoming webhook.
package notifications
