package server

import (
	gosync "sync"
	"time"

	"liftlog/internal/store"
	"liftlog/internal/sync"
)

// state is the server's in-memory authority: per user, per table, the
// live records and the tombstones of deleted ones. Every applied
// record is stamped with a server timestamp so pulls can filter by
// watermark. Suitable for development and tests; a durable deployment
// would put the same interface over a database.
type state struct {
	mu    gosync.Mutex
	users map[string]*userState
}

type userState struct {
	// tables maps table -> id -> stored record.
	tables map[string]map[string]storedRecord
	// tombstones maps table -> id -> server time of deletion.
	tombstones map[string]map[string]int64
}

type storedRecord struct {
	rec store.Record
	// serverAt is when the server applied this version, used for
	// watermark filtering. Distinct from the record's own marker,
	// which orders client edits.
	serverAt int64
}

func newState() *state {
	return &state{users: make(map[string]*userState)}
}

func (s *state) user(userID string) *userState {
	us, ok := s.users[userID]
	if !ok {
		us = &userState{
			tables:     make(map[string]map[string]storedRecord),
			tombstones: make(map[string]map[string]int64),
		}
		s.users[userID] = us
	}
	return us
}

// now returns the server clock in unix milliseconds.
func now() int64 { return time.Now().UnixMilli() }

// changesSince collects everything applied after since into wire
// buckets. since == 0 returns the full dataset.
func (s *state) changesSince(userID string, since int64) (sync.Changes, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := now()
	us := s.user(userID)
	changes := make(sync.Changes)
	for _, table := range sync.Tables {
		var tc sync.TableChanges
		for _, sr := range us.tables[table] {
			if sr.serverAt > since {
				tc.Created = append(tc.Created, sr.rec.Clone())
			}
		}
		for id, deletedAt := range us.tombstones[table] {
			if deletedAt > since {
				tc.Deleted = append(tc.Deleted, id)
			}
		}
		if !tc.Empty() {
			changes[table] = tc
		}
	}
	return changes, ts
}

// apply folds a pushed change set into the state with whole-record
// last-write-wins on the change marker.
func (s *state) apply(userID string, changes sync.Changes) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := now()
	us := s.user(userID)
	for table, tc := range changes {
		rows := us.tables[table]
		if rows == nil {
			rows = make(map[string]storedRecord)
			us.tables[table] = rows
		}
		graves := us.tombstones[table]
		if graves == nil {
			graves = make(map[string]int64)
			us.tombstones[table] = graves
		}
		for _, rec := range append(append([]store.Record{}, tc.Created...), tc.Updated...) {
			id := rec.ID()
			if cur, ok := rows[id]; ok && cur.rec.Marker() >= rec.Marker() {
				continue
			}
			rows[id] = storedRecord{rec: rec.Clone(), serverAt: ts}
			delete(graves, id)
		}
		for _, id := range tc.Deleted {
			delete(rows, id)
			graves[id] = ts
		}
	}
	return ts
}

// recordCount returns how many live records the user has, for the
// monitor's stats frames.
func (s *state) recordCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rows := range s.user(userID).tables {
		n += len(rows)
	}
	return n
}
