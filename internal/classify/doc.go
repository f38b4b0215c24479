// Package classify derives the canonical lifecycle status of a video from a
// snapshot of its metadata.
//
// Classification is a pure function of the snapshot, the reference time, and
// the stale-live threshold. It never fails: when the upstream data is
// inconsistent (a live session that never received an end timestamp, a
// premiere without a schedule) the most conservative status wins.
package classify
