package mutate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcgraph/edgestore/pkg/codec"
	"github.com/arcgraph/edgestore/pkg/model"
	"github.com/arcgraph/edgestore/pkg/schema"
)

func TestEdgeMutateDegreeDelta(t *testing.T) {
	insert := []*model.IndexEdge{{}}
	del := []*model.IndexEdge{{}}

	assert.EqualValues(t, 1, EdgeMutate{EdgesToInsert: insert}.DegreeDelta())
	assert.EqualValues(t, -1, EdgeMutate{EdgesToDelete: del}.DegreeDelta())
	assert.EqualValues(t, 0, EdgeMutate{EdgesToInsert: insert, EdgesToDelete: del}.DegreeDelta())
	assert.EqualValues(t, 0, EdgeMutate{}.DegreeDelta())
}

func TestBuilderPutVertex(t *testing.T) {
	b := NewBuilder(codec.New(schema.V3))
	v := &model.Vertex{
		ID:         model.VertexID{ColumnID: 1, InnerID: model.Long(7000)},
		Ts:         time.Unix(1700000000, 0),
		Op:         model.OpInsert,
		Properties: model.Properties{1: float64(30)},
		BelongsTo:  []model.LabelID{2},
	}

	ops, err := b.PutVertex(v, true)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	for _, op := range ops {
		assert.Equal(t, OpPut, op.Kind)
		assert.True(t, op.Buffered)
	}
}

func TestBuilderDeleteVertex(t *testing.T) {
	b := NewBuilder(codec.New(schema.V3))
	v := &model.Vertex{
		ID:         model.VertexID{ColumnID: 1, InnerID: model.Str("x")},
		Properties: model.Properties{1: "a", 2: "b"},
		BelongsTo:  []model.LabelID{9},
	}

	ops, err := b.DeleteVertex(v, time.Unix(10, 0), false)
	require.NoError(t, err)
	assert.Len(t, ops, 3)
	for _, op := range ops {
		assert.Equal(t, OpDelete, op.Kind)
	}
}

func TestBuilderDeleteBelongsTo(t *testing.T) {
	b := NewBuilder(codec.New(schema.V2))
	id := model.VertexID{ColumnID: 1, InnerID: model.Long(5)}

	ops := b.DeleteBelongsTo(id, 9, time.Unix(1, 0), false)
	require.Len(t, ops, 1)
	assert.Equal(t, OpDelete, ops[0].Kind)
	assert.Equal(t, codec.FamilyVertex, ops[0].Family)
}

func testEdgeIdentity() model.EdgeIdentity {
	return model.EdgeIdentity{
		Src:       model.VertexID{ColumnID: 1, InnerID: model.Long(1)},
		Tgt:       model.VertexID{ColumnID: 1, InnerID: model.Long(2)},
		LabelID:   3,
		Direction: model.DirOut,
	}
}

func TestBuilderApplyEdgeMutate(t *testing.T) {
	b := NewBuilder(codec.New(schema.V3))
	identity := testEdgeIdentity()

	insertEdge := &model.IndexEdge{Identity: identity, Op: model.OpInsert}
	deleteEdge := &model.IndexEdge{Identity: identity, Op: model.OpDelete}

	m := EdgeMutate{EdgesToInsert: []*model.IndexEdge{insertEdge}, EdgesToDelete: []*model.IndexEdge{deleteEdge}}
	ops, err := b.ApplyEdgeMutate(m, time.Unix(5, 0), false)
	require.NoError(t, err)
	require.Len(t, ops, 2)

	var kinds []OpKind
	for _, op := range ops {
		kinds = append(kinds, op.Kind)
	}
	assert.Contains(t, kinds, OpDelete)
	assert.Contains(t, kinds, OpPut)
}

func TestBuilderDegreeIncrementOp(t *testing.T) {
	b := NewBuilder(codec.New(schema.V3))
	id := testEdgeIdentity()

	op := b.DegreeIncrementOp(id.Src, id.LabelID, id.Direction, 1, true)
	assert.Equal(t, OpIncrement, op.Kind)
	assert.Equal(t, DegreeMarker, op.IncrementPrefix)
	assert.EqualValues(t, 1, op.IncrementAmount)

	countOp := b.CountIncrementOp(id.Src, id.LabelID, id.Direction, 1, true)
	assert.Equal(t, CountMarker, countOp.IncrementPrefix)
	assert.Equal(t, op.Row, countOp.Row)
	assert.NotEqual(t, op.Qualifier, countOp.Qualifier)
}

func TestDispatchUnknownKind(t *testing.T) {
	_, err := Dispatch(nil, KVOp{Kind: OpKind(99)}).Await(context.Background())
	require.Error(t, err)
}
