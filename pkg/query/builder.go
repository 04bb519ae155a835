package query

import (
	"github.com/arcgraph/edgestore/pkg/codec"
	"github.com/arcgraph/edgestore/pkg/kv"
	"github.com/arcgraph/edgestore/pkg/model"
	"github.com/arcgraph/edgestore/pkg/qparam"
)

// BuildRequest synthesizes a physical KV read from qp: a point Get of the
// snapshot-edge when a target vertex is named, otherwise a range Get over
// an index-edge adjacency row. Version count is always 1.
func BuildRequest(c *codec.Codec, qp qparam.QueryParam) kv.GetRequest {
	if qp.IsPointGet() {
		identity := model.EdgeIdentity{Src: qp.Src, Tgt: *qp.Tgt, LabelID: qp.Label, Direction: qp.Direction}
		row, family, qualifier := c.SnapshotRow(identity)
		return kv.GetRequest{
			Row:          row,
			Family:       family,
			Qualifiers:   []kv.Qualifier{qualifier},
			MinTs:        qp.MinTs,
			MaxTs:        qp.MaxTs,
			RPCTimeout:   qp.RPCTimeout,
			VersionCount: 1,
		}
	}

	row, family, colMin, colMax := c.IndexEdgeScanBounds(qp)
	if len(qp.ColumnRangeMin) > 0 {
		colMin = qp.ColumnRangeMin
	}
	if len(qp.ColumnRangeMax) > 0 {
		colMax = qp.ColumnRangeMax
	}
	return kv.GetRequest{
		Row:          row,
		Family:       family,
		ColMin:       colMin,
		ColMax:       colMax,
		OffsetN:      qp.Offset,
		LimitN:       qp.Limit,
		MinTs:        qp.MinTs,
		MaxTs:        qp.MaxTs,
		RPCTimeout:   qp.RPCTimeout,
		VersionCount: 1,
	}
}
