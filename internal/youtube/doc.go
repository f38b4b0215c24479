// Package youtube provides the Snapshot data model and a thin client for the
// YouTube Data API v3.
//
// The client covers the three calls the notifier needs: videos.list to fetch
// a point-in-time Snapshot of a video, subscriptions.list to enumerate the
// watched channels, and activities.list for the members-only visibility
// fallback. All methods take a context and return typed errors; rate limits
// and quota errors surface as ErrRateLimited so callers can back off.
package youtube
