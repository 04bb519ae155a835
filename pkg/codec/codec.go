package codec

import (
	"fmt"
	"time"

	"github.com/arcgraph/edgestore/pkg/kv"
	"github.com/arcgraph/edgestore/pkg/model"
	"github.com/arcgraph/edgestore/pkg/qparam"
	"github.com/arcgraph/edgestore/pkg/schema"
)

// Families partition the physical keyspace by entity kind. A single Badger
// instance stands in for what an HBase deployment would spread across
// column families within one table. A label's configured HBase table name
// is not part of any key: all labels share this one keyspace.
var (
	FamilyVertex   = kv.Family("v")
	FamilyIndex    = kv.Family("i")
	FamilySnapshot = kv.Family("s")
)

// Codec packs and unpacks the logical vertex/edge model into physical KV
// cells for one schema version. Schema-version branching is a single
// variant dispatched on v.version, with the vertex layout and the property
// sub-codec (pkg/codec/properties.go) shared unchanged across versions —
// only the edge row-key/qualifier split changes per version, since that is
// the one layout decision later schema versions revised.
type Codec struct {
	version schema.SchemaVersion
}

// New returns the Codec for the given schema version.
func New(version schema.SchemaVersion) *Codec {
	return &Codec{version: version}
}

func (c *Codec) Version() schema.SchemaVersion { return c.version }

// --- Vertex -----------------------------------------------------------

// EncodeVertex produces the KV cells for v: one cell per regular property
// (qualifier = PropKey) plus one cell per belongs-to label (qualifier =
// LabelPropKeyBase+labelID), all under FamilyVertex at a row keyed by v's
// identity. Identical across schema versions.
func (c *Codec) EncodeVertex(v *model.Vertex) ([]kv.Cell, error) {
	if v == nil {
		return nil, fmt.Errorf("codec: nil vertex")
	}
	row := encodeVertexID(nil, v.ID)

	if v.Op == model.OpDelete {
		// A vertex delete removes the row: pkg/mutate's DeleteVertex issues
		// one Delete op per stored qualifier of the row; Encode still returns a
		// single tombstone marker cell so the value field records the op
		// tag for anyone reading through the codec directly.
		val, err := encodeVertexValue(v.Op, nil)
		if err != nil {
			return nil, err
		}
		return []kv.Cell{{Row: row, Family: FamilyVertex, Qualifier: kv.Qualifier{0}, Value: val, Ts: v.Ts}}, nil
	}

	cells := make([]kv.Cell, 0, len(v.Properties)+len(v.BelongsTo)+1)
	for key, value := range v.Properties {
		val, err := encodeProperties(model.Properties{key: value})
		if err != nil {
			return nil, err
		}
		cells = append(cells, kv.Cell{
			Row: row, Family: FamilyVertex, Qualifier: kv.Qualifier{byte(key)}, Value: val, Ts: v.Ts,
		})
	}
	for _, labelID := range v.BelongsTo {
		q := qualifierBytes(model.LabelMembershipQualifier(labelID))
		cells = append(cells, kv.Cell{Row: row, Family: FamilyVertex, Qualifier: q, Value: []byte{1}, Ts: v.Ts})
	}
	return cells, nil
}

// VertexRow returns the physical row key for a vertex identity, exported so
// pkg/mutate can address a whole vertex row (e.g. for a delete) without
// duplicating row-key packing outside the codec.
func (c *Codec) VertexRow(id model.VertexID) kv.Row {
	return encodeVertexID(nil, id)
}

// LabelMembershipQualifier returns the physical qualifier bytes for the
// belongs-to marker of labelID on a vertex row.
func (c *Codec) LabelMembershipQualifier(labelID model.LabelID) kv.Qualifier {
	return qualifierBytes(model.LabelMembershipQualifier(labelID))
}

func qualifierBytes(q uint16) kv.Qualifier {
	return kv.Qualifier{byte(q >> 8), byte(q)}
}

func encodeVertexValue(op model.Op, props []byte) ([]byte, error) {
	buf := []byte{byte(op)}
	return append(buf, props...), nil
}

// DecodeVertex reconstructs a Vertex from all cells belonging to its row.
// The row itself encodes the VertexID so cells is never expected to be
// empty for a successful lookup.
func (c *Codec) DecodeVertex(row model.VertexID, cells []kv.Cell) (*model.Vertex, error) {
	v := &model.Vertex{ID: row, Properties: make(model.Properties)}
	for _, cell := range cells {
		if len(cell.Qualifier) == 0 {
			continue
		}
		if v.Ts.Before(cell.Ts) {
			v.Ts = cell.Ts
		}
		if len(cell.Qualifier) == 2 {
			q := uint16(cell.Qualifier[0])<<8 | uint16(cell.Qualifier[1])
			if q >= model.LabelPropKeyBase {
				v.BelongsTo = append(v.BelongsTo, model.LabelID(q-model.LabelPropKeyBase))
				continue
			}
		}
		if len(cell.Qualifier) == 1 && cell.Qualifier[0] == 0 && len(cell.Value) >= 1 && model.Op(cell.Value[0]) == model.OpDelete {
			v.Op = model.OpDelete
			continue
		}
		props, err := decodeProperties(cell.Value)
		if err != nil {
			return nil, fmt.Errorf("codec: decoding vertex property: %w", err)
		}
		for k, val := range props {
			v.Properties[k] = val
		}
	}
	return v, nil
}

// --- Snapshot-edge ------------------------------------------------------

// SnapshotRow returns the physical coordinates of the single authoritative
// row for an edge identity — identical across schema versions, since the
// snapshot-edge is always addressed directly by identity rather than
// scanned.
func (c *Codec) SnapshotRow(id model.EdgeIdentity) (row kv.Row, family kv.Family, qualifier kv.Qualifier) {
	buf := encodeVertexID(nil, id.Src)
	buf = encodeLabelID(buf, id.LabelID)
	buf = encodeDirection(buf, id.Direction)
	buf = encodeVertexID(buf, id.Tgt)
	return buf, FamilySnapshot, kv.Qualifier{0}
}

// snapshotValue layout: [op byte][lock_ts unixnano, 8 bytes][properties blob].
func (c *Codec) EncodeSnapshotEdge(e *model.SnapshotEdge) (kv.Cell, error) {
	row, family, qualifier := c.SnapshotRow(e.Identity)
	propBytes, err := encodeProperties(e.Properties)
	if err != nil {
		return kv.Cell{}, err
	}
	var lockBuf [8]byte
	if !e.LockTs.IsZero() {
		putUnixNano(lockBuf[:], e.LockTs)
	}
	val := make([]byte, 0, 1+8+len(propBytes))
	val = append(val, byte(e.Op))
	val = append(val, lockBuf[:]...)
	val = append(val, propBytes...)
	return kv.Cell{Row: row, Family: family, Qualifier: qualifier, Value: val, Ts: e.Ts}, nil
}

func (c *Codec) DecodeSnapshotEdge(id model.EdgeIdentity, cell kv.Cell) (*model.SnapshotEdge, error) {
	if len(cell.Value) < 9 {
		return nil, fmt.Errorf("codec: truncated snapshot-edge value")
	}
	op := model.Op(cell.Value[0])
	lockTs := readUnixNano(cell.Value[1:9])
	props, err := decodeProperties(cell.Value[9:])
	if err != nil {
		return nil, fmt.Errorf("codec: decoding snapshot-edge properties: %w", err)
	}
	return &model.SnapshotEdge{Identity: id, Ts: cell.Ts, Op: op, Properties: props, LockTs: lockTs}, nil
}

// SnapshotValueBytes returns exactly the bytes EncodeSnapshotEdge would place
// in the cell's value field, for CAS comparisons where only the byte
// identity (not cell metadata) matters: the Commit Engine conditions its
// compare-and-set on the previous snapshot's exact value bytes.
func (c *Codec) SnapshotValueBytes(e *model.SnapshotEdge) ([]byte, error) {
	if e == nil {
		return nil, nil
	}
	cell, err := c.EncodeSnapshotEdge(e)
	if err != nil {
		return nil, err
	}
	return cell.Value, nil
}

// --- Index-edge -----------------------------------------------------------

// IndexEdgeRow returns the (row, family) an index-edge's adjacency list
// lives under, and the qualifier identifying one particular edge within it.
// The row/qualifier split is the one piece of layout that genuinely differs
// by schema version:
//
//   - V1: row = src only; qualifier = label || dir || tgt (no per-index
//     row, "index" is always treated as index 0).
//   - V2: row = src || label || dir; qualifier = tgt (still index 0 only).
//   - V3: row = src || label || dir || index_seq; qualifier = tgt.
func (c *Codec) IndexEdgeRow(id model.EdgeIdentity, index model.IndexSeq) (row kv.Row, family kv.Family, qualifier kv.Qualifier) {
	switch c.version {
	case schema.V1:
		row = encodeVertexID(nil, id.Src)
		q := encodeLabelID(nil, id.LabelID)
		q = encodeDirection(q, id.Direction)
		q = encodeVertexID(q, id.Tgt)
		return row, FamilyIndex, q
	case schema.V2:
		row = encodeVertexID(nil, id.Src)
		row = encodeLabelID(row, id.LabelID)
		row = encodeDirection(row, id.Direction)
		return row, FamilyIndex, encodeVertexID(nil, id.Tgt)
	default: // V3 and later
		row = encodeVertexID(nil, id.Src)
		row = encodeLabelID(row, id.LabelID)
		row = encodeDirection(row, id.Direction)
		row = encodeIndexSeq(row, index)
		return row, FamilyIndex, encodeVertexID(nil, id.Tgt)
	}
}

// IndexEdgeScanBounds returns the (row, family) to scan plus optional
// qualifier bounds for a QueryParam that does not name a target vertex
// (i.e. an adjacency range read rather than a point lookup).
func (c *Codec) IndexEdgeScanBounds(qp qparam.QueryParam) (row kv.Row, family kv.Family, colMin, colMax kv.Qualifier) {
	switch c.version {
	case schema.V1:
		row = encodeVertexID(nil, qp.Src)
		prefix := encodeLabelID(nil, qp.Label)
		prefix = encodeDirection(prefix, qp.Direction)
		return row, FamilyIndex, prefix, append(append(kv.Qualifier{}, prefix...), 0xFF)
	case schema.V2:
		row = encodeVertexID(nil, qp.Src)
		row = encodeLabelID(row, qp.Label)
		row = encodeDirection(row, qp.Direction)
		return row, FamilyIndex, nil, nil
	default:
		row = encodeVertexID(nil, qp.Src)
		row = encodeLabelID(row, qp.Label)
		row = encodeDirection(row, qp.Direction)
		row = encodeIndexSeq(row, qp.Index)
		return row, FamilyIndex, nil, nil
	}
}

// indexEdgeValue layout: [op byte][tombstoned byte][properties blob].
func (c *Codec) EncodeIndexEdge(e *model.IndexEdge) (kv.Cell, error) {
	row, family, qualifier := c.IndexEdgeRow(e.Identity, e.Index)
	propBytes, err := encodeProperties(e.Properties)
	if err != nil {
		return kv.Cell{}, err
	}
	val := make([]byte, 0, 2+len(propBytes))
	val = append(val, byte(e.Op))
	if e.Tombstoned {
		val = append(val, 1)
	} else {
		val = append(val, 0)
	}
	val = append(val, propBytes...)
	return kv.Cell{Row: row, Family: family, Qualifier: qualifier, Value: val, Ts: e.Ts}, nil
}

// DecodeIndexEdge reconstructs an IndexEdge. Because the qualifier alone
// carries the target vertex in V2/V3 (or label||dir||target in V1), the
// caller's QueryParam supplies the src/label/direction/index context the
// physical row doesn't re-derive on its own for V1.
func (c *Codec) DecodeIndexEdge(qp qparam.QueryParam, cell kv.Cell) (*model.IndexEdge, error) {
	if len(cell.Value) < 2 {
		return nil, fmt.Errorf("codec: truncated index-edge value")
	}
	var tgt model.VertexID
	switch c.version {
	case schema.V1:
		buf := []byte(cell.Qualifier)
		_, n, err := decodeLabelID(buf)
		if err != nil {
			return nil, err
		}
		_, m, err := decodeDirection(buf[n:])
		if err != nil {
			return nil, err
		}
		t, _, err := decodeVertexID(buf[n+m:])
		if err != nil {
			return nil, err
		}
		tgt = t
	default:
		t, _, err := decodeVertexID(cell.Qualifier)
		if err != nil {
			return nil, err
		}
		tgt = t
	}

	identity := model.EdgeIdentity{Src: qp.Src, Tgt: tgt, LabelID: qp.Label, Direction: qp.Direction}
	props, err := decodeProperties(cell.Value[2:])
	if err != nil {
		return nil, fmt.Errorf("codec: decoding index-edge properties: %w", err)
	}
	return &model.IndexEdge{
		Identity:   identity,
		Index:      qp.Index,
		Ts:         cell.Ts,
		Op:         model.Op(cell.Value[0]),
		Properties: props,
		Tombstoned: cell.Value[1] == 1,
	}, nil
}

// --- Degree counter -------------------------------------------------------

// DegreeCounterCoord returns the physical coordinates of the degree counter
// cell, which always lives on the first index-edge row for (src, label,
// dir).
func (c *Codec) DegreeCounterCoord(src model.VertexID, label model.LabelID, dir model.Direction) (row kv.Row, family kv.Family, qualifier kv.Qualifier) {
	id := model.EdgeIdentity{Src: src, LabelID: label, Direction: dir}
	row, family, _ = c.IndexEdgeRow(id, 0)
	return row, family, kv.Qualifier("__degree__")
}

// CountCounterCoord returns the coordinates of the monotonic occurrence
// counter, distinguished from DegreeCounterCoord only by its qualifier so
// the two can share a row without colliding.
func (c *Codec) CountCounterCoord(src model.VertexID, label model.LabelID, dir model.Direction) (row kv.Row, family kv.Family, qualifier kv.Qualifier) {
	id := model.EdgeIdentity{Src: src, LabelID: label, Direction: dir}
	row, family, _ = c.IndexEdgeRow(id, 0)
	return row, family, kv.Qualifier("__count__")
}

func putUnixNano(b []byte, t time.Time) {
	n := t.UnixNano()
	for i := 7; i >= 0; i-- {
		b[i] = byte(n)
		n >>= 8
	}
}

func readUnixNano(b []byte) time.Time {
	var n int64
	for i := 0; i < 8; i++ {
		n = n<<8 | int64(b[i])
	}
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
