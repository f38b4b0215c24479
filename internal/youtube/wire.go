package youtube

import (
	"strings"
	"time"
)

// Wire types mirror the subset of the Data API v3 payloads the client reads.

type videoListResponse struct {
	Items []videoResource `json:"items"`
}

type videoResource struct {
	ID      string `json:"id"`
	Snippet struct {
		Title                string `json:"title"`
		ChannelID            string `json:"channelId"`
		ChannelTitle         string `json:"channelTitle"`
		PublishedAt          string `json:"publishedAt"`
		LiveBroadcastContent string `json:"liveBroadcastContent"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
	LiveStreamingDetails *struct {
		ScheduledStartTime string `json:"scheduledStartTime"`
		ActualStartTime    string `json:"actualStartTime"`
		ActualEndTime      string `json:"actualEndTime"`
	} `json:"liveStreamingDetails"`
	Status struct {
		UploadStatus string `json:"uploadStatus"`
		MembersOnly  bool   `json:"membersOnly"`
	} `json:"status"`
}

func (v videoResource) snapshot() *Snapshot {
	snap := &Snapshot{
		VideoID:       v.ID,
		Title:         v.Snippet.Title,
		ChannelID:     v.Snippet.ChannelID,
		ChannelTitle:  v.Snippet.ChannelTitle,
		PublishedAt:   parseTime(v.Snippet.PublishedAt),
		IsMembersOnly: v.Status.MembersOnly,
		Processed:     strings.EqualFold(v.Status.UploadStatus, "processed"),
	}
	if v.LiveStreamingDetails != nil {
		snap.Live = &LiveDetails{
			ScheduledStart: parseTimePtr(v.LiveStreamingDetails.ScheduledStartTime),
			ActualStart:    parseTimePtr(v.LiveStreamingDetails.ActualStartTime),
			ActualEnd:      parseTimePtr(v.LiveStreamingDetails.ActualEndTime),
		}
		// Premieres carry a fixed duration; true live streams report P0D.
		duration := strings.TrimSpace(v.ContentDetails.Duration)
		snap.IsPremiere = duration != "" && duration != "P0D"
	}
	return snap
}

type subscriptionListResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		Snippet struct {
			Title      string `json:"title"`
			ResourceID struct {
				ChannelID string `json:"channelId"`
			} `json:"resourceId"`
		} `json:"snippet"`
	} `json:"items"`
}

type activityListResponse struct {
	Items []struct {
		Snippet struct {
			Type string `json:"type"`
		} `json:"snippet"`
		ContentDetails struct {
			Upload struct {
				VideoID string `json:"videoId"`
			} `json:"upload"`
		} `json:"contentDetails"`
	} `json:"items"`
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func parseTimePtr(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &parsed
}
