package youtube

import "time"

// LiveDetails carries the live-streaming timestamps of a video. Every field
// is optional; upstream data can be stale or internally inconsistent, so
// consumers must not assume scheduled <= start <= end even though that is the
// usual shape.
type LiveDetails struct {
	ScheduledStart *time.Time
	ActualStart    *time.Time
	ActualEnd      *time.Time
}

// Snapshot is an immutable point-in-time view of one video's metadata.
// A nil Live field means the video is a plain upload.
type Snapshot struct {
	VideoID       string
	Title         string
	ChannelID     string
	ChannelTitle  string
	PublishedAt   time.Time
	Live          *LiveDetails
	IsPremiere    bool
	IsMembersOnly bool
	Processed     bool
}

// WatchURL returns the public link for the snapshot's video.
func (s Snapshot) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + s.VideoID
}

// Channel identifies one watched channel.
type Channel struct {
	ID    string
	Title string
}
