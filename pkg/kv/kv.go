// Package kv is the KV store abstraction the rest of edgestore is built on:
// a connection pool, request batching, a CAS primitive, and async
// callbacks, concretized here on top of Badger because its MVCC
// transactions are the closest idiomatic-Go stand-in for a wide-column
// store's per-cell compare-and-set.
//
// Every operation returns a Future rather than blocking the caller's
// goroutine, so suspensions only happen at explicit Await points.
package kv

import "time"

// Row, Family, and Qualifier are the physical coordinates of a KV cell.
// Qualifier is opaque bytes so codecs can pack schema-version-specific
// widths into it.
type (
	Row       []byte
	Family    []byte
	Qualifier []byte
)

// Cell is one physical KV triple plus its timestamp: every logical entity
// a codec encodes decomposes into an ordered list of these.
type Cell struct {
	Row       Row
	Family    Family
	Qualifier Qualifier
	Value     []byte
	Ts        time.Time
}

// GetRequest describes a physical read: a row/family and, optionally, a
// specific set of qualifiers (nil = whole family). VersionCount is always 1
// since nothing in this system reads historical versions of a cell.
type GetRequest struct {
	Row        Row
	Family     Family
	Qualifiers []Qualifier // nil = all qualifiers in the family (range read)

	// OffsetN and LimitN bound a range read (0 LimitN = unbounded).
	OffsetN int
	LimitN  int

	// ColMin/ColMax optionally bound the qualifier range scanned, applied
	// lexicographically.
	ColMin Qualifier
	ColMax Qualifier

	MinTs        time.Time
	MaxTs        time.Time
	RPCTimeout   time.Duration
	VersionCount int
}

// Offset returns the configured offset, defaulting to 0.
func (r GetRequest) Offset() int { return r.OffsetN }

// Limit returns the configured limit, 0 meaning unbounded.
func (r GetRequest) Limit() int { return r.LimitN }

// GetResult is the decoded-free result of a GetRequest: the raw cells the
// store returned, newest version first within each qualifier.
type GetResult struct {
	Cells []Cell
}

// IncrementKind distinguishes the two atomic-increment use cases so a
// single counter column can serve both without the callers colliding:
// degree increments track live adjacency-set size; count increments track
// a monotonic historical event count.
type IncrementKind uint8

const (
	IncrementDegree IncrementKind = 0
	IncrementCount  IncrementKind = 1
)

// Store is the interface pkg/mutate, pkg/query, and pkg/commit program
// against. Buffered controls which of the two write paths an operation
// uses: a buffered-flush connection batched on an interval, or an
// immediate, wait-for-durability connection when the caller needs the
// write acknowledged before proceeding.
type Store interface {
	// Get performs a point or range read per req.
	Get(req GetRequest) *Future[GetResult]

	// Put writes value at (row, family, qualifier) with the given
	// server-side timestamp. Buffered selects the connection.
	Put(row Row, family Family, qualifier Qualifier, value []byte, ts time.Time, buffered bool) *Future[struct{}]

	// Delete removes (row, family, qualifier) as of ts (a tombstone, not a
	// physical removal — compaction handles reclamation).
	Delete(row Row, family Family, qualifier Qualifier, ts time.Time, buffered bool) *Future[struct{}]

	// AtomicIncrement adds amount to the counter stored at a fixed offset
	// in the value field of (row, family, qualifier): an 8-byte big-endian
	// signed integer following a caller-owned one-byte marker prefix that
	// distinguishes count increments from degree increments. If the cell is
	// absent it is created with prefix followed by amount. prefix may be nil.
	AtomicIncrement(row Row, family Family, qualifier Qualifier, prefix []byte, amount int64, buffered bool) *Future[int64]

	// CompareAndSet sets (row, family, qualifier) to newValue iff the cell's
	// current value bytes equal expected exactly (expected == nil means "no
	// cell present"). This is the single serializing primitive the Commit
	// Engine's lock protocol depends on.
	CompareAndSet(row Row, family Family, qualifier Qualifier, expected, newValue []byte, ts time.Time) *Future[bool]

	// Flush forces any buffered writes out, resolving once they are
	// durable. Used by with_wait=true callers and by tests.
	Flush() *Future[struct{}]

	// Close releases underlying resources.
	Close() error
}
