package commit

import (
	"bytes"
	"context"
	"time"

	"github.com/arcgraph/edgestore/pkg/codec"
	"github.com/arcgraph/edgestore/pkg/kv"
	"github.com/arcgraph/edgestore/pkg/logx"
	"github.com/arcgraph/edgestore/pkg/metricsx"
	"github.com/arcgraph/edgestore/pkg/model"
	"github.com/arcgraph/edgestore/pkg/mutate"
)

var log = logx.Component("commit")

// OperationBuilder computes, from the observed snapshot-edge (nil if none
// exists), the new authoritative snapshot and the index/degree delta that
// gets it there. The pending edges themselves are closed over by the
// caller's builder rather than threaded through the engine, since only the
// caller knows how to collapse a batch sharing one identity.
type OperationBuilder func(current *model.SnapshotEdge) (*model.SnapshotEdge, mutate.EdgeMutate, error)

// Engine drives the strong-consistency protocol for one schema version's
// worth of edges.
type Engine struct {
	store   kv.Store
	codec   *codec.Codec
	builder *mutate.Builder
}

// NewEngine wires an Engine around store, codec, and builder. All three
// must agree on schema version.
func NewEngine(store kv.Store, c *codec.Codec, b *mutate.Builder) *Engine {
	return &Engine{store: store, codec: c, builder: b}
}

// Commit runs one attempt of the strong-consistency protocol — acquireLock,
// mutateIndexEdges, releaseLock, incrementDegree — for identity at
// timestamp t. A single attempt never retries internally; Outcome.Retryable
// reports whether a caller may retry the outcome.
func (e *Engine) Commit(ctx context.Context, identity model.EdgeIdentity, t time.Time, buildOp OperationBuilder, buffered bool) (Outcome, error) {
	row, family, qualifier := e.codec.SnapshotRow(identity)

	current, err := e.fetchCurrent(ctx, identity, row, family, qualifier)
	if err != nil {
		return e.record(OutcomeMutateFailed), err
	}

	if current.Locked() {
		return e.handleObservedLock(ctx, identity, row, family, qualifier, current, t, buildOp, buffered)
	}

	newEdge, m, err := buildOp(current)
	if err != nil {
		return e.record(OutcomeMutateFailed), err
	}

	lockEdge := current.AsLockEdge(identity, t)
	prevBytes, err := e.codec.SnapshotValueBytes(current)
	if err != nil {
		return e.record(OutcomeMutateFailed), err
	}
	lockBytes, err := e.codec.SnapshotValueBytes(lockEdge)
	if err != nil {
		return e.record(OutcomeMutateFailed), err
	}

	acquired, err := e.store.CompareAndSet(row, family, qualifier, prevBytes, lockBytes, t).Await(ctx)
	if err != nil {
		return e.record(OutcomeMutateFailed), err
	}
	if !acquired {
		log.Debug().Str("edge", identity.String()).Msg("acquireLock CAS lost the race")
		return e.record(OutcomeLockContended), nil
	}

	return e.finishFrom(ctx, identity, row, family, qualifier, current, lockEdge, newEdge, m, t, buffered)
}

// handleObservedLock implements the self-retry rule: a snapshot already
// carrying a lock_ts is either this same caller resuming after a crash
// (identical bytes to what it would itself have written) or another
// writer's in-flight commit.
func (e *Engine) handleObservedLock(
	ctx context.Context,
	identity model.EdgeIdentity,
	row kv.Row, family kv.Family, qualifier kv.Qualifier,
	current *model.SnapshotEdge,
	t time.Time,
	buildOp OperationBuilder,
	buffered bool,
) (Outcome, error) {
	if !current.LockTs.Equal(t) {
		log.Debug().Str("edge", identity.String()).Msg("lock held by another writer")
		return e.record(OutcomeLockHeldByOther), nil
	}

	baseline := current.Unlocked()
	myLockEdge := baseline.AsLockEdge(identity, t)
	myBytes, err := e.codec.SnapshotValueBytes(myLockEdge)
	if err != nil {
		return e.record(OutcomeMutateFailed), err
	}
	curBytes, err := e.codec.SnapshotValueBytes(current)
	if err != nil {
		return e.record(OutcomeMutateFailed), err
	}
	if !bytes.Equal(myBytes, curBytes) {
		return e.record(OutcomeLockContended), nil
	}

	log.Debug().Str("edge", identity.String()).Msg("self-retry resuming after observed own lock")
	newEdge, m, err := buildOp(baseline)
	if err != nil {
		return e.record(OutcomeMutateFailed), err
	}
	return e.finishFrom(ctx, identity, row, family, qualifier, baseline, myLockEdge, newEdge, m, t, buffered)
}

// finishFrom runs steps 2-4: mutateIndexEdges, releaseLock, incrementDegree.
func (e *Engine) finishFrom(
	ctx context.Context,
	identity model.EdgeIdentity,
	row kv.Row, family kv.Family, qualifier kv.Qualifier,
	preLock *model.SnapshotEdge,
	lockEdge *model.SnapshotEdge,
	newEdge *model.SnapshotEdge,
	m mutate.EdgeMutate,
	t time.Time,
	buffered bool,
) (Outcome, error) {
	ops, err := e.builder.ApplyEdgeMutate(m, t, buffered)
	if err != nil {
		return e.record(OutcomeMutateFailed), err
	}
	if err := mutate.DispatchAll(ctx, e.store, ops); err != nil {
		log.Warn().Str("edge", identity.String()).Err(err).Msg("mutateIndexEdges failed, leaving lock for self-retry")
		return e.record(OutcomeMutateFailed), err
	}

	finalEdge := m.NewSnapshotEdge
	if finalEdge == nil {
		// No new snapshot means this commit only touched index edges (e.g.
		// a pure delete): revert to the previous snapshot's exact value
		// bytes with the lock cleared, rather than an empty value, so the
		// row's edge count and existence stay consistent with its index
		// rows.
		finalEdge = preLock.Unlocked()
	}

	lockBytes, err := e.codec.SnapshotValueBytes(lockEdge)
	if err != nil {
		return e.record(OutcomeMutateFailed), err
	}
	finalBytes, err := e.codec.SnapshotValueBytes(finalEdge)
	if err != nil {
		return e.record(OutcomeMutateFailed), err
	}
	finalTs := t
	if finalEdge != nil && !finalEdge.Ts.IsZero() {
		finalTs = finalEdge.Ts
	}

	released, err := e.store.CompareAndSet(row, family, qualifier, lockBytes, finalBytes, finalTs).Await(ctx)
	if err != nil {
		return e.record(OutcomeReleaseFailed), err
	}
	if !released {
		log.Warn().Str("edge", identity.String()).Msg("releaseLock CAS failed; another writer observed a different lock value")
		return e.record(OutcomeReleaseFailed), nil
	}

	if delta := m.DegreeDelta(); delta != 0 {
		incOp := e.builder.DegreeIncrementOp(identity.Src, identity.LabelID, identity.Direction, delta, buffered)
		if _, err := mutate.Dispatch(e.store, incOp).Await(ctx); err != nil {
			return e.record(OutcomeIncrementFailed), err
		}
	}

	return e.record(OutcomeSuccess), nil
}

// CommitEventual implements the eventual-consistency path: for labels with
// consistencyLevel != strong, skip acquireLock/releaseLock entirely and
// write the index mutations, the new snapshot, and the degree delta
// directly.
func (e *Engine) CommitEventual(ctx context.Context, identity model.EdgeIdentity, newEdge *model.SnapshotEdge, m mutate.EdgeMutate, buffered bool) error {
	ts := time.Now()
	if newEdge != nil {
		ts = newEdge.Ts
	}
	ops, err := e.builder.ApplyEdgeMutate(m, ts, buffered)
	if err != nil {
		return err
	}
	if newEdge != nil {
		snapshotOp, err := e.builder.PutSnapshotEdge(newEdge, buffered)
		if err != nil {
			return err
		}
		ops = append(ops, snapshotOp)
	}
	if delta := m.DegreeDelta(); delta != 0 {
		ops = append(ops, e.builder.DegreeIncrementOp(identity.Src, identity.LabelID, identity.Direction, delta, buffered))
	}
	return mutate.DispatchAll(ctx, e.store, ops)
}

func (e *Engine) fetchCurrent(ctx context.Context, identity model.EdgeIdentity, row kv.Row, family kv.Family, qualifier kv.Qualifier) (*model.SnapshotEdge, error) {
	res, err := e.store.Get(kv.GetRequest{
		Row: row, Family: family, Qualifiers: []kv.Qualifier{qualifier}, VersionCount: 1,
	}).Await(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Cells) == 0 {
		return nil, nil
	}
	return e.codec.DecodeSnapshotEdge(identity, res.Cells[0])
}

func (e *Engine) record(o Outcome) Outcome {
	metricsx.CommitOutcomesTotal.WithLabelValues(o.String()).Inc()
	return o
}
