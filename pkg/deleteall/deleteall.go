// Package deleteall implements the DeleteAll traversal: a bounded sweep
// that fetches adjacency in batches and tombstones every edge on (src,
// label, direction) older than a request timestamp, leaving newer edges
// (and anything a concurrent insert adds mid-sweep) untouched. The loop
// terminates once a pass finds no eligible edge rather than after a fixed
// edge count, so it keeps going as long as each pass retires at least one
// edge.
package deleteall

import (
	"context"
	"fmt"
	"time"

	"github.com/arcgraph/edgestore/pkg/codec"
	"github.com/arcgraph/edgestore/pkg/commit"
	"github.com/arcgraph/edgestore/pkg/kv"
	"github.com/arcgraph/edgestore/pkg/logx"
	"github.com/arcgraph/edgestore/pkg/metricsx"
	"github.com/arcgraph/edgestore/pkg/model"
	"github.com/arcgraph/edgestore/pkg/mutate"
	"github.com/arcgraph/edgestore/pkg/qparam"
	"github.com/arcgraph/edgestore/pkg/query"
	"github.com/arcgraph/edgestore/pkg/schema"
)

var log = logx.Component("deleteall")

// Traversal runs DeleteAll sweeps for one schema version's worth of labels.
type Traversal struct {
	store    kv.Store
	codec    *codec.Codec
	fetcher  *query.Fetcher
	builder  *mutate.Builder
	engine   *commit.Engine
	fetchSz  int
	maxRetry int
}

// Options configures a Traversal. FetchSize bounds each adjacency fetch;
// MaxRetry bounds the outer loop so a pathological never-dry traversal
// cannot run forever.
type Options struct {
	FetchSize int
	MaxRetry  int
}

// New wires a Traversal. The engine is used for labels at ConsistencyStrong;
// other labels take the legacy direct-write path.
func New(store kv.Store, c *codec.Codec, fetcher *query.Fetcher, builder *mutate.Builder, engine *commit.Engine, opts Options) *Traversal {
	if opts.FetchSize <= 0 {
		opts.FetchSize = 1000
	}
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = 10
	}
	return &Traversal{store: store, codec: c, fetcher: fetcher, builder: builder, engine: engine, fetchSz: opts.FetchSize, maxRetry: opts.MaxRetry}
}

// Request describes one DeleteAll invocation: the source vertices, labels,
// and direction to sweep, tombstoning everything older than RequestTs.
type Request struct {
	SrcVertices []model.VertexID
	Labels      []schema.Label
	Direction   model.Direction
	RequestTs   time.Time
}

// Run executes the bounded traversal to completion (or exhaustion of
// MaxRetry), returning the count of edges retired.
func (tr *Traversal) Run(ctx context.Context, req Request) (int, error) {
	retired := 0
	for iteration := 0; iteration < tr.maxRetry; iteration++ {
		progressed := 0
		for _, src := range req.SrcVertices {
			for _, label := range req.Labels {
				n, err := tr.sweepOne(ctx, src, label, req.Direction, req.RequestTs)
				if err != nil {
					return retired, err
				}
				progressed += n
				retired += n
			}
		}
		if progressed == 0 {
			return retired, nil
		}
	}
	log.Warn().Int("max_retry", tr.maxRetry).Int("retired", retired).Msg("deleteAll traversal exhausted max_retry without reaching a dry fetch")
	return retired, nil
}

// sweepOne fetches one bounded batch of adjacency for (src, label,
// direction), filters to eligible edges, and retires them. It returns the
// number of edges retired this batch; the caller keeps iterating while that
// stays positive.
func (tr *Traversal) sweepOne(ctx context.Context, src model.VertexID, label schema.Label, dir model.Direction, requestTs time.Time) (int, error) {
	firstIndex, ok := label.FirstIndex()
	if !ok {
		return 0, fmt.Errorf("deleteall: label %d declares no indices", label.ID)
	}

	qp := qparam.QueryParam{
		Label:         label.ID,
		Src:           src,
		Direction:     dir,
		Index:         firstIndex.Seq,
		Limit:         tr.fetchSz,
		SchemaVersion: label.SchemaVersion,
	}
	// Read the store directly rather than through the fetcher's coalescing
	// cache: a later pass must see the deletes an earlier pass just made,
	// not a cached pre-delete result.
	result, err := tr.store.Get(query.BuildRequest(tr.codec, qp)).Await(ctx)
	if err != nil {
		return 0, err
	}

	eligible := make([]*model.IndexEdge, 0, len(result.Cells))
	for _, cell := range result.Cells {
		// Degree/count counters share the row but a distinct qualifier
		// ("__degree__"/"__count__"); DecodeIndexEdge would misparse them
		// as edges, so skip any cell whose qualifier isn't a target
		// encoding. The marker qualifiers are shorter than every real
		// vertex-id qualifier in V2/V3 and collide with no real target.
		if string(cell.Qualifier) == "__degree__" || string(cell.Qualifier) == "__count__" {
			continue
		}
		edge, err := tr.codec.DecodeIndexEdge(qp, cell)
		if err != nil {
			return 0, err
		}
		if edge.Tombstoned {
			continue
		}
		if !edge.Ts.Before(requestTs) {
			continue // edges as new as or newer than the request are left alone
		}
		eligible = append(eligible, edge)
	}

	for _, edge := range eligible {
		if err := tr.retire(ctx, edge, label, requestTs); err != nil {
			return 0, err
		}
	}
	metricsx.DeleteAllEdgesRetiredTotal.Add(float64(len(eligible)))
	return len(eligible), nil
}

// retire tombstones a single edge at requestTs, through the Commit Engine
// for strong-consistency labels or the legacy direct-write path otherwise.
// A strong label gets one Commit attempt per edge; a non-success outcome is
// returned as an error without retrying.
func (tr *Traversal) retire(ctx context.Context, edge *model.IndexEdge, label schema.Label, requestTs time.Time) error {
	identity := edge.Identity

	if label.ConsistencyLevel == schema.ConsistencyStrong {
		buildOp := func(current *model.SnapshotEdge) (*model.SnapshotEdge, mutate.EdgeMutate, error) {
			tombstone := &model.SnapshotEdge{Identity: identity, Ts: requestTs, Op: model.OpDelete}
			m := mutate.EdgeMutate{
				EdgesToDelete:   []*model.IndexEdge{{Identity: identity, Index: edge.Index, Ts: requestTs, Op: model.OpDelete, Tombstoned: true}},
				NewSnapshotEdge: tombstone,
			}
			return tombstone, m, nil
		}
		outcome, err := tr.engine.Commit(ctx, identity, requestTs, buildOp, false)
		if err != nil {
			return err
		}
		if outcome != commit.OutcomeSuccess {
			return fmt.Errorf("deleteall: commit for edge %s returned %s", identity, outcome)
		}
		return nil
	}

	return tr.legacyRetire(ctx, edge, identity, requestTs)
}

// legacyRetire issues the direct-write sequence for non-strong labels:
// reverse-direction index-edge deletes + decrement, reverse snapshot-edge
// delete, forward index-edge deletes + decrement, forward snapshot-edge
// delete. No locking; labels at
// this consistency level tolerate reordering by construction.
func (tr *Traversal) legacyRetire(ctx context.Context, edge *model.IndexEdge, identity model.EdgeIdentity, requestTs time.Time) error {
	mirror := identity.Mirror()

	forwardDelete := &model.IndexEdge{Identity: identity, Index: edge.Index, Ts: requestTs, Op: model.OpDelete, Tombstoned: true}
	reverseDelete := &model.IndexEdge{Identity: mirror, Index: edge.Index, Ts: requestTs, Op: model.OpDelete, Tombstoned: true}

	m := mutate.EdgeMutate{EdgesToDelete: []*model.IndexEdge{forwardDelete}}
	ops, err := tr.builder.ApplyEdgeMutate(m, requestTs, false)
	if err != nil {
		return err
	}
	reverseOps, err := tr.builder.ApplyEdgeMutate(mutate.EdgeMutate{EdgesToDelete: []*model.IndexEdge{reverseDelete}}, requestTs, false)
	if err != nil {
		return err
	}
	ops = append(ops, reverseOps...)

	row, family, qualifier := tr.codec.SnapshotRow(mirror)
	ops = append(ops, mutate.KVOp{Kind: mutate.OpDelete, Row: row, Family: family, Qualifier: qualifier, Ts: requestTs})

	fwdRow, fwdFamily, fwdQualifier := tr.codec.SnapshotRow(identity)
	ops = append(ops, mutate.KVOp{Kind: mutate.OpDelete, Row: fwdRow, Family: fwdFamily, Qualifier: fwdQualifier, Ts: requestTs})

	ops = append(ops,
		tr.builder.DegreeIncrementOp(identity.Src, identity.LabelID, identity.Direction, -1, false),
		tr.builder.DegreeIncrementOp(mirror.Src, mirror.LabelID, mirror.Direction, -1, false),
	)

	return mutate.DispatchAll(ctx, tr.store, ops)
}
