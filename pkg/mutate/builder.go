package mutate

import (
	"time"

	"github.com/arcgraph/edgestore/pkg/codec"
	"github.com/arcgraph/edgestore/pkg/model"
)

// EdgeMutate is the delta an operation builder computes from the current
// snapshot (if any) and the pending edges: what to insert into the index,
// what to retire, and the new authoritative snapshot.
type EdgeMutate struct {
	EdgesToInsert   []*model.IndexEdge
	EdgesToDelete   []*model.IndexEdge
	NewSnapshotEdge *model.SnapshotEdge
}

// DegreeDelta selects the degree-counter delta for this mutation:
// insert-only (edges to insert, none to delete) -> +1; delete-only (edges
// to delete, none to insert) -> -1; anything else (both or neither) -> 0,
// since a pure update neither grows nor shrinks the adjacency set.
func (m EdgeMutate) DegreeDelta() int64 {
	switch {
	case len(m.EdgesToInsert) > 0 && len(m.EdgesToDelete) == 0:
		return 1
	case len(m.EdgesToDelete) > 0 && len(m.EdgesToInsert) == 0:
		return -1
	default:
		return 0
	}
}

// Builder translates logical intents into KVOp lists using a fixed codec
// (one schema version — callers pick the builder matching the edge's
// label's schema_version).
type Builder struct {
	codec *codec.Codec
}

// NewBuilder returns a Builder bound to c.
func NewBuilder(c *codec.Codec) *Builder {
	return &Builder{codec: c}
}

// PutVertex builds the ops for an insert/update of v.
func (b *Builder) PutVertex(v *model.Vertex, buffered bool) ([]KVOp, error) {
	cells, err := b.codec.EncodeVertex(v)
	if err != nil {
		return nil, err
	}
	ops := make([]KVOp, 0, len(cells))
	for _, cell := range cells {
		ops = append(ops, KVOp{
			Kind: OpPut, Row: cell.Row, Family: cell.Family, Qualifier: cell.Qualifier,
			Value: cell.Value, Ts: cell.Ts, Buffered: buffered,
		})
	}
	return ops, nil
}

// DeleteVertex removes the whole vertex row. Since the KV interface only
// deletes one qualifier at a time, the caller supplies the currently-stored
// vertex (as read by pkg/query) so every qualifier it owns — properties and
// belongs-to markers alike — gets its own Delete op.
func (b *Builder) DeleteVertex(existing *model.Vertex, ts time.Time, buffered bool) ([]KVOp, error) {
	cells, err := b.codec.EncodeVertex(existing)
	if err != nil {
		return nil, err
	}
	ops := make([]KVOp, 0, len(cells))
	for _, cell := range cells {
		ops = append(ops, KVOp{Kind: OpDelete, Row: cell.Row, Family: cell.Family, Qualifier: cell.Qualifier, Ts: ts, Buffered: buffered})
	}
	return ops, nil
}

// DeleteBelongsTo removes exactly the qualifier carrying labelID's
// membership marker, leaving every other property on the vertex row
// untouched.
func (b *Builder) DeleteBelongsTo(id model.VertexID, labelID model.LabelID, ts time.Time, buffered bool) []KVOp {
	row := b.codec.VertexRow(id)
	qualifier := b.codec.LabelMembershipQualifier(labelID)
	return []KVOp{{Kind: OpDelete, Row: row, Family: codec.FamilyVertex, Qualifier: qualifier, Ts: ts, Buffered: buffered}}
}

// ApplyEdgeMutate builds the index-edge Put/Delete ops for m — the
// mutateIndexEdges step of the Commit Engine's protocol, and also the
// direct-write path's index maintenance under eventual consistency. It
// does not touch the snapshot-edge cell or the degree counter; callers
// issue those separately (PutSnapshotEdge / DegreeIncrementOp) since
// those steps are serialized differently under strong vs weak consistency.
func (b *Builder) ApplyEdgeMutate(m EdgeMutate, ts time.Time, buffered bool) ([]KVOp, error) {
	ops := make([]KVOp, 0, len(m.EdgesToInsert)+len(m.EdgesToDelete))
	for _, e := range m.EdgesToDelete {
		tombstone := e.Clone()
		tombstone.Tombstoned = true
		tombstone.Op = model.OpDelete
		cell, err := b.codec.EncodeIndexEdge(tombstone)
		if err != nil {
			return nil, err
		}
		ops = append(ops, KVOp{
			Kind: OpDelete, Row: cell.Row, Family: cell.Family, Qualifier: cell.Qualifier,
			Ts: ts, Buffered: buffered,
		})
	}
	for _, e := range m.EdgesToInsert {
		cell, err := b.codec.EncodeIndexEdge(e)
		if err != nil {
			return nil, err
		}
		ops = append(ops, KVOp{
			Kind: OpPut, Row: cell.Row, Family: cell.Family, Qualifier: cell.Qualifier,
			Value: cell.Value, Ts: ts, Buffered: buffered,
		})
	}
	return ops, nil
}

// PutSnapshotEdge builds the single Put op that writes e's physical cell
// directly (the eventual-consistency path; the strong path uses
// pkg/commit's CAS-based lock protocol instead of a bare Put).
func (b *Builder) PutSnapshotEdge(e *model.SnapshotEdge, buffered bool) (KVOp, error) {
	cell, err := b.codec.EncodeSnapshotEdge(e)
	if err != nil {
		return KVOp{}, err
	}
	return KVOp{
		Kind: OpPut, Row: cell.Row, Family: cell.Family, Qualifier: cell.Qualifier,
		Value: cell.Value, Ts: e.Ts, Buffered: buffered,
	}, nil
}

// DegreeIncrementOp builds the ±1 atomic-increment op for an edge's first
// index row, marked as a degree increment so it shares the row with the
// occurrence counter without colliding.
func (b *Builder) DegreeIncrementOp(src model.VertexID, labelID model.LabelID, dir model.Direction, delta int64, buffered bool) KVOp {
	row, family, qualifier := b.codec.DegreeCounterCoord(src, labelID, dir)
	return KVOp{
		Kind: OpIncrement, Row: row, Family: family, Qualifier: qualifier,
		IncrementPrefix: DegreeMarker, IncrementAmount: delta, Buffered: buffered,
	}
}

// CountIncrementOp builds the monotonic occurrence-counter increment,
// distinguished from DegreeIncrementOp only by its marker byte and
// qualifier.
func (b *Builder) CountIncrementOp(src model.VertexID, labelID model.LabelID, dir model.Direction, delta int64, buffered bool) KVOp {
	row, family, qualifier := b.codec.CountCounterCoord(src, labelID, dir)
	return KVOp{
		Kind: OpIncrement, Row: row, Family: family, Qualifier: qualifier,
		IncrementPrefix: CountMarker, IncrementAmount: delta, Buffered: buffered,
	}
}
