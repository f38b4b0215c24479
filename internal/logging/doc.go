// Package logging builds the slog loggers used across tubewatch.
//
// It supports a human-readable console format and a JSON format, both driven
// by the [logging] section of the configuration file. Helpers standardize the
// attribute keys (component, video_id, channel_id, status, correlation_id) so
// log lines stay greppable across the daemon, the callback server, and the
// CLI.
package logging
