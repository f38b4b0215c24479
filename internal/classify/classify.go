package classify

import (
	"time"

	"tubewatch/internal/youtube"
)

// Status is the lifecycle classification of a video.
type Status string

const (
	StatusUploaded Status = "uploaded"
	StatusUpcoming Status = "upcoming"
	StatusStarted  Status = "started"
	StatusEnded    Status = "ended"
)

var allStatuses = []Status{StatusUploaded, StatusUpcoming, StatusStarted, StatusEnded}

// All returns every defined status, in lifecycle order.
func All() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Valid reports whether s is a defined status value.
func (s Status) Valid() bool {
	switch s {
	case StatusUploaded, StatusUpcoming, StatusStarted, StatusEnded:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// DefaultStaleLiveThreshold treats a live session with no end timestamp as
// ended once its start is this old. Upstream data sometimes never records
// actualEnd for short sessions.
const DefaultStaleLiveThreshold = 10 * time.Minute

// Classify derives the lifecycle status of snap at the reference time now.
// staleLive <= 0 disables the stale-live heuristic.
//
// Priority order: plain upload, explicit end, stale start, explicit start,
// implicitly started premiere, upcoming.
func Classify(snap *youtube.Snapshot, now time.Time, staleLive time.Duration) Status {
	if snap == nil || snap.Live == nil {
		return StatusUploaded
	}
	live := snap.Live

	if live.ActualEnd != nil {
		return StatusEnded
	}
	if live.ActualStart != nil {
		if staleLive > 0 && now.Sub(*live.ActualStart) > staleLive {
			return StatusEnded
		}
		return StatusStarted
	}
	// Premieres that are fully processed begin at their scheduled time
	// without an explicit start event.
	if snap.Processed && live.ScheduledStart != nil && live.ScheduledStart.Before(now) {
		return StatusStarted
	}
	return StatusUpcoming
}
