// Package sync implements the pull/resolve/push cycle between the
// local store and the remote authority.
//
// The wire format groups record payloads per table into created,
// updated, and deleted buckets. Pull returns every remote change since
// the client's watermark plus a server timestamp; push sends the
// client's dirty records the same way. Conflicts resolve whole-record
// by change marker: the later marker wins outright, no field merging.
package sync

import "liftlog/internal/store"

// TableChanges buckets the changed records of one table.
type TableChanges struct {
	Created []store.Record `json:"created"`
	Updated []store.Record `json:"updated"`
	Deleted []string       `json:"deleted"`
}

// Empty reports whether the bucket carries no changes.
func (tc TableChanges) Empty() bool {
	return len(tc.Created) == 0 && len(tc.Updated) == 0 && len(tc.Deleted) == 0
}

// Changes maps table name to that table's change buckets.
type Changes map[string]TableChanges

// Empty reports whether no table carries changes.
func (c Changes) Empty() bool {
	for _, tc := range c {
		if !tc.Empty() {
			return false
		}
	}
	return true
}

// Count returns the total number of record changes across all tables.
func (c Changes) Count() int {
	n := 0
	for _, tc := range c {
		n += len(tc.Created) + len(tc.Updated) + len(tc.Deleted)
	}
	return n
}

// PullRequest asks the remote for everything changed after
// LastPulledAt (unix milliseconds; zero means first sync, send all).
type PullRequest struct {
	LastPulledAt  int64 `json:"last_pulled_at"`
	SchemaVersion int   `json:"schema_version"`
}

// PullResponse carries the remote changes and the server timestamp the
// client persists as its next watermark after a full cycle.
type PullResponse struct {
	Changes   Changes `json:"changes"`
	Timestamp int64   `json:"timestamp"`
}

// PushRequest carries the client's dirty records. LastPulledAt lets
// the remote detect a push based on a stale view.
type PushRequest struct {
	Changes      Changes `json:"changes"`
	LastPulledAt int64   `json:"last_pulled_at"`
}

// PushResponse acknowledges an applied push.
type PushResponse struct {
	Timestamp int64 `json:"timestamp"`
}
