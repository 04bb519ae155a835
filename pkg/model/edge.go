package model

import "time"

// IndexSeq identifies one of the indices declared on a label. The first
// index (IndexSeq 0) is the one the degree counter lives on.
type IndexSeq int32

// IndexEdge is one row of a label's declared index: it places an edge into
// a sorted adjacency list and carries its own property payload plus,
// on the first index only, the degree counter.
type IndexEdge struct {
	Identity   EdgeIdentity
	Index      IndexSeq
	Ts         time.Time
	Op         Op
	Properties Properties

	// Tombstoned marks a logically-deleted index row: still physically
	// present until compaction, but excluded from degree counting.
	Tombstoned bool
}

// Clone returns a deep-enough copy for safe mutation.
func (e *IndexEdge) Clone() *IndexEdge {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Properties = e.Properties.Clone()
	return &clone
}

// SnapshotEdge is the single authoritative row per edge identity: current
// property state plus an optional lock sentinel.
//
// The KV row's own timestamp (not a field here — it lives on the KV cell,
// see pkg/codec) is the edge's logical version; SnapshotEdge.Ts mirrors it
// once decoded so callers don't need to thread the KV timestamp separately.
type SnapshotEdge struct {
	Identity   EdgeIdentity
	Ts         time.Time
	Op         Op
	Properties Properties

	// LockTs is non-zero while a strong-consistency writer holds the lock.
	LockTs time.Time
}

// Locked reports whether the snapshot currently carries a lock sentinel.
func (s *SnapshotEdge) Locked() bool {
	return s != nil && !s.LockTs.IsZero()
}

// AsLockEdge returns a copy of s with LockTs set to at, representing the
// lock-edge written during acquireLock: a snapshot-edge value identical to
// the current one except for its lock timestamp.
func (s *SnapshotEdge) AsLockEdge(identity EdgeIdentity, at time.Time) *SnapshotEdge {
	if s == nil {
		return &SnapshotEdge{Identity: identity, LockTs: at}
	}
	clone := *s
	clone.Properties = s.Properties.Clone()
	clone.LockTs = at
	return &clone
}

// Unlocked returns a copy of s with LockTs cleared, used by releaseLock.
func (s *SnapshotEdge) Unlocked() *SnapshotEdge {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Properties = s.Properties.Clone()
	clone.LockTs = time.Time{}
	return &clone
}

// Clone returns a deep-enough copy for safe mutation.
func (s *SnapshotEdge) Clone() *SnapshotEdge {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Properties = s.Properties.Clone()
	return &clone
}
