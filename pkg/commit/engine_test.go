package commit

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcgraph/edgestore/pkg/codec"
	"github.com/arcgraph/edgestore/pkg/kv"
	"github.com/arcgraph/edgestore/pkg/model"
	"github.com/arcgraph/edgestore/pkg/mutate"
	"github.com/arcgraph/edgestore/pkg/schema"
)

func newTestEngine(t *testing.T) (*Engine, kv.Store, *codec.Codec) {
	t.Helper()
	store, err := kv.Open(kv.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c := codec.New(schema.V3)
	return NewEngine(store, c, mutate.NewBuilder(c)), store, c
}

func testIdentity() model.EdgeIdentity {
	return model.EdgeIdentity{
		Src:       model.VertexID{ColumnID: 1, InnerID: model.Long(1)},
		Tgt:       model.VertexID{ColumnID: 1, InnerID: model.Long(2)},
		LabelID:   7,
		Direction: model.DirOut,
	}
}

// insertOneBuilder always proposes inserting a fresh index-edge and setting
// the snapshot to props, regardless of what's currently there.
func insertOneBuilder(identity model.EdgeIdentity, ts time.Time, props model.Properties) OperationBuilder {
	return func(current *model.SnapshotEdge) (*model.SnapshotEdge, mutate.EdgeMutate, error) {
		newEdge := &model.SnapshotEdge{Identity: identity, Ts: ts, Op: model.OpInsert, Properties: props}
		m := mutate.EdgeMutate{
			EdgesToInsert:   []*model.IndexEdge{{Identity: identity, Ts: ts, Op: model.OpInsert}},
			NewSnapshotEdge: newEdge,
		}
		return newEdge, m, nil
	}
}

func readDegree(t *testing.T, store kv.Store, c *codec.Codec, identity model.EdgeIdentity) int64 {
	t.Helper()
	row, family, qualifier := c.DegreeCounterCoord(identity.Src, identity.LabelID, identity.Direction)
	res, err := store.Get(kv.GetRequest{Row: row, Family: family, Qualifiers: []kv.Qualifier{qualifier}}).Await(context.Background())
	require.NoError(t, err)
	if len(res.Cells) == 0 {
		return 0
	}
	val := res.Cells[0].Value
	require.True(t, len(val) >= 9)
	return int64(binary.BigEndian.Uint64(val[1:9]))
}

// TestCommitFreshInsertSucceeds covers scenario 2's first half: a fresh
// edge commit succeeds and the degree counter reflects +1.
func TestCommitFreshInsertSucceeds(t *testing.T) {
	e, store, c := newTestEngine(t)
	identity := testIdentity()
	ts := time.Unix(1700000000, 0)

	outcome, err := e.Commit(context.Background(), identity, ts, insertOneBuilder(identity, ts, model.Properties{1: "friend"}), false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)
	assert.EqualValues(t, 1, readDegree(t, store, c, identity))
}

// TestCommitDeleteAfterInsertDecrementsDegree covers the rest of scenario 2.
func TestCommitDeleteAfterInsertDecrementsDegree(t *testing.T) {
	e, store, c := newTestEngine(t)
	identity := testIdentity()
	ts1 := time.Unix(1700000000, 0)
	ts2 := time.Unix(1700000010, 0)

	_, err := e.Commit(context.Background(), identity, ts1, insertOneBuilder(identity, ts1, nil), false)
	require.NoError(t, err)

	deleteBuilder := func(current *model.SnapshotEdge) (*model.SnapshotEdge, mutate.EdgeMutate, error) {
		tombstone := &model.SnapshotEdge{Identity: identity, Ts: ts2, Op: model.OpDelete}
		m := mutate.EdgeMutate{
			EdgesToDelete:   []*model.IndexEdge{{Identity: identity, Ts: ts1, Op: model.OpDelete}},
			NewSnapshotEdge: tombstone,
		}
		return tombstone, m, nil
	}

	outcome, err := e.Commit(context.Background(), identity, ts2, deleteBuilder, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)
	assert.EqualValues(t, 0, readDegree(t, store, c, identity))
}

// TestCommitLockHeldByOtherWriter covers step 1's contention branch: a
// snapshot locked at a different timestamp than the caller's own blocks
// the attempt outright.
func TestCommitLockHeldByOtherWriter(t *testing.T) {
	e, store, c := newTestEngine(t)
	identity := testIdentity()
	otherTs := time.Unix(1700000000, 0)

	row, family, qualifier := c.SnapshotRow(identity)
	lockEdge := (&model.SnapshotEdge{Identity: identity}).AsLockEdge(identity, otherTs)
	lockBytes, err := c.SnapshotValueBytes(lockEdge)
	require.NoError(t, err)
	ok, err := store.CompareAndSet(row, family, qualifier, nil, lockBytes, otherTs).Await(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	myTs := time.Unix(1700000005, 0)
	outcome, err := e.Commit(context.Background(), identity, myTs, insertOneBuilder(identity, myTs, nil), false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLockHeldByOther, outcome)
}

// TestCommitSelfRetryResumesAfterOwnLock covers scenario 5: a process
// crashes after acquireLock but before release; a later attempt at the
// identical timestamp observes its own lock bytes and completes from step 2.
func TestCommitSelfRetryResumesAfterOwnLock(t *testing.T) {
	e, store, c := newTestEngine(t)
	identity := testIdentity()
	ts := time.Unix(1700000000, 0)

	row, family, qualifier := c.SnapshotRow(identity)
	lockEdge := (&model.SnapshotEdge{Identity: identity}).AsLockEdge(identity, ts)
	lockBytes, err := c.SnapshotValueBytes(lockEdge)
	require.NoError(t, err)
	ok, err := store.CompareAndSet(row, family, qualifier, nil, lockBytes, ts).Await(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	outcome, err := e.Commit(context.Background(), identity, ts, insertOneBuilder(identity, ts, model.Properties{1: "recovered"}), false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)
	assert.EqualValues(t, 1, readDegree(t, store, c, identity))
}

// TestCommitReleaseRevertsToPreviousSnapshotWhenAbsent pins the behavior
// when the operation builder's EdgeMutate carries no NewSnapshotEdge:
// releaseLock reverts to the previous snapshot's value with lock_ts
// cleared rather than writing empty bytes.
func TestCommitReleaseRevertsToPreviousSnapshotWhenAbsent(t *testing.T) {
	e, store, c := newTestEngine(t)
	identity := testIdentity()
	ts1 := time.Unix(1700000000, 0)

	_, err := e.Commit(context.Background(), identity, ts1, insertOneBuilder(identity, ts1, model.Properties{1: "v1"}), false)
	require.NoError(t, err)

	ts2 := time.Unix(1700000020, 0)
	noopBuilder := func(current *model.SnapshotEdge) (*model.SnapshotEdge, mutate.EdgeMutate, error) {
		return nil, mutate.EdgeMutate{}, nil
	}
	outcome, err := e.Commit(context.Background(), identity, ts2, noopBuilder, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)

	row, family, qualifier := c.SnapshotRow(identity)
	res, err := store.Get(kv.GetRequest{Row: row, Family: family, Qualifiers: []kv.Qualifier{qualifier}}).Await(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Cells, 1)
	got, err := c.DecodeSnapshotEdge(identity, res.Cells[0])
	require.NoError(t, err)
	assert.False(t, got.Locked())
	assert.Equal(t, model.Properties{1: "v1"}, got.Properties)
}

// TestCommitConcurrentWritersLockSafety is R4: of several concurrent
// strong-consistency attempts on the same identity, no two both report
// success with distinct new_snapshot_edge values — the CAS on the
// snapshot cell admits only one first-round winner.
func TestCommitConcurrentWritersLockSafety(t *testing.T) {
	e, _, _ := newTestEngine(t)
	identity := testIdentity()

	const writers = 6
	var successes int64
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ts := time.Unix(int64(1700000000+i), 0)
			outcome, err := e.Commit(context.Background(), identity, ts, insertOneBuilder(identity, ts, nil), false)
			require.NoError(t, err)
			if outcome == OutcomeSuccess {
				atomic.AddInt64(&successes, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt64(&successes), "exactly one concurrent attempt should win the CAS race")
}

// TestCommitEventualDirectWritesAlwaysSucceed covers scenario 6: under a
// weak-consistency label, concurrent direct writes never contend (there is
// no lock to contend over).
func TestCommitEventualDirectWritesAlwaysSucceed(t *testing.T) {
	e, _, _ := newTestEngine(t)
	identity := testIdentity()
	ts := time.Unix(1700000000, 0)

	newEdge := &model.SnapshotEdge{Identity: identity, Ts: ts, Op: model.OpDelete}
	m := mutate.EdgeMutate{EdgesToDelete: []*model.IndexEdge{{Identity: identity, Ts: ts, Op: model.OpDelete}}, NewSnapshotEdge: newEdge}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := e.CommitEventual(context.Background(), identity, newEdge, m, false)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestOutcomeRetryable(t *testing.T) {
	assert.False(t, OutcomeSuccess.Retryable())
	assert.True(t, OutcomeLockContended.Retryable())
	assert.True(t, OutcomeLockHeldByOther.Retryable())
}
