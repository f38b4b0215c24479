package notifications

import (
	"errors"
	"fmt"
	"time"

	"tubewatch/internal/classify"
	"tubewatch/internal/youtube"
)

// ErrInvariant signals that a terminal status reached the composer.
// Ended videos are filtered before composition; seeing one here is a
// caller defect and must fail loudly.
var ErrInvariant = errors.New("notifications: ended status must not be composed")

// Compose renders the announcement text for a video in the given status.
// The result is deterministic for fixed inputs: now only influences the
// relative-time phrase for upcoming videos, and loc the local timestamp.
func Compose(snap *youtube.Snapshot, status classify.Status, now time.Time, loc *time.Location) (string, error) {
	line, err := headline(snap, status, now, loc)
	if err != nil {
		return "", err
	}
	return line + "\n" + snap.Title + "\n" + snap.WatchURL(), nil
}

func headline(snap *youtube.Snapshot, status classify.Status, now time.Time, loc *time.Location) (string, error) {
	switch status {
	case classify.StatusUploaded:
		return fmt.Sprintf(":clapper: %s uploaded a new video.", snap.ChannelTitle), nil
	case classify.StatusStarted:
		if snap.IsPremiere {
			return fmt.Sprintf(":circus_tent: %s starts a premiere!", snap.ChannelTitle), nil
		}
		return fmt.Sprintf(":microphone: %s is now live!", snap.ChannelTitle), nil
	case classify.StatusUpcoming:
		return upcomingHeadline(snap, now, loc), nil
	case classify.StatusEnded:
		return "", ErrInvariant
	default:
		return "", fmt.Errorf("unknown status %q", status)
	}
}

func upcomingHeadline(snap *youtube.Snapshot, now time.Time, loc *time.Location) string {
	localTime := "unknown time"
	relative := "unknown"
	if snap.Live != nil && snap.Live.ScheduledStart != nil {
		scheduled := *snap.Live.ScheduledStart
		localTime = scheduled.In(loc).Format("2006/01/02 15:04")
		relative = relativeTime(now, scheduled)
	}

	kind := "live stream"
	if snap.IsPremiere {
		kind = "premiere"
	}
	return fmt.Sprintf(":alarm_clock: %s plans to start %s at %s (%s).", snap.ChannelTitle, kind, localTime, relative)
}

// relativeTime renders the delta until the scheduled start, dropping
// leading zero units ("5m later", "2h5m later", "1d2h5m later").
func relativeTime(now, scheduled time.Time) string {
	delta := scheduled.Sub(now)
	if delta <= 0 {
		return "starting soon"
	}

	days := int(delta / (24 * time.Hour))
	delta -= time.Duration(days) * 24 * time.Hour
	hours := int(delta / time.Hour)
	delta -= time.Duration(hours) * time.Hour
	minutes := int(delta / time.Minute)

	switch {
	case days == 0 && hours == 0:
		return fmt.Sprintf("%dm later", minutes)
	case days == 0:
		return fmt.Sprintf("%dh%dm later", hours, minutes)
	default:
		return fmt.Sprintf("%dd%dh%dm later", days, hours, minutes)
	}
}
