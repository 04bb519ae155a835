// Package qparam defines QueryParam, the single struct both pkg/query (to
// build KV requests) and pkg/codec (to decode results back into entities)
// depend on. It is its own package so those two packages can reference the
// same shape without importing each other.
package qparam

import (
	"time"

	"github.com/arcgraph/edgestore/pkg/model"
	"github.com/arcgraph/edgestore/pkg/schema"
)

// QueryParam is the caller-facing description of a single adjacency or
// point read.
type QueryParam struct {
	Label     model.LabelID
	Src       model.VertexID
	Tgt       *model.VertexID // non-nil => point Get of one edge
	Direction model.Direction
	Index     model.IndexSeq

	Offset int
	Limit  int

	MinTs, MaxTs time.Time

	// ColumnRangeMin/Max optionally bound the qualifier range scanned.
	ColumnRangeMin []byte
	ColumnRangeMax []byte

	RPCTimeout time.Duration

	// CacheTTLMs opts this query into the result cache when > 0.
	CacheTTLMs int64

	SchemaVersion schema.SchemaVersion
}

// IsPointGet reports whether this QueryParam names a single target vertex.
func (q QueryParam) IsPointGet() bool { return q.Tgt != nil }

// CacheEnabled reports whether the result cache should be consulted.
func (q QueryParam) CacheEnabled() bool { return q.CacheTTLMs > 0 }

// CacheTTL returns CacheTTLMs as a time.Duration.
func (q QueryParam) CacheTTL() time.Duration {
	return time.Duration(q.CacheTTLMs) * time.Millisecond
}
