// Package codec is the only component allowed to know physical layout.
// Everything else in edgestore operates on kv.Cell triples; codec is where
// row-key packing, qualifier packing, and property-blob encoding live.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/arcgraph/edgestore/pkg/model"
)

// innerValKindTag mirrors model.InnerValKind on the wire; kept distinct
// from the in-memory enum so wire format changes never ripple into model.
const (
	tagLong      byte = 0
	tagString    byte = 1
	tagComposite byte = 2
)

// encodeInnerVal appends v's byte-lexicographically-sortable encoding to buf.
func encodeInnerVal(buf []byte, v model.InnerVal) []byte {
	switch v.Kind() {
	case model.KindLong:
		n, _ := v.AsLong()
		buf = append(buf, tagLong)
		var b [8]byte
		// Flip the sign bit so two's-complement int64 values sort
		// byte-lexicographically in the same order as their numeric value
		// (the standard "sortable signed integer" trick).
		binary.BigEndian.PutUint64(b[:], uint64(n)^0x8000000000000000)
		return append(buf, b[:]...)
	case model.KindString:
		s, _ := v.AsString()
		buf = append(buf, tagString)
		var lb [2]byte
		binary.BigEndian.PutUint16(lb[:], uint16(len(s)))
		buf = append(buf, lb[:]...)
		return append(buf, s...)
	case model.KindComposite:
		c, _ := v.AsComposite()
		buf = append(buf, tagComposite)
		var lb [2]byte
		binary.BigEndian.PutUint16(lb[:], uint16(len(c)))
		buf = append(buf, lb[:]...)
		return append(buf, c...)
	default:
		return buf
	}
}

// decodeInnerVal reads one InnerVal from the front of buf and returns it
// plus the number of bytes consumed.
func decodeInnerVal(buf []byte) (model.InnerVal, int, error) {
	if len(buf) < 1 {
		return model.InnerVal{}, 0, fmt.Errorf("codec: empty buffer for inner val")
	}
	switch buf[0] {
	case tagLong:
		if len(buf) < 9 {
			return model.InnerVal{}, 0, fmt.Errorf("codec: truncated long inner val")
		}
		u := binary.BigEndian.Uint64(buf[1:9])
		n := int64(u ^ 0x8000000000000000)
		return model.Long(n), 9, nil
	case tagString:
		if len(buf) < 3 {
			return model.InnerVal{}, 0, fmt.Errorf("codec: truncated string inner val")
		}
		n := int(binary.BigEndian.Uint16(buf[1:3]))
		if len(buf) < 3+n {
			return model.InnerVal{}, 0, fmt.Errorf("codec: truncated string inner val body")
		}
		return model.Str(string(buf[3 : 3+n])), 3 + n, nil
	case tagComposite:
		if len(buf) < 3 {
			return model.InnerVal{}, 0, fmt.Errorf("codec: truncated composite inner val")
		}
		n := int(binary.BigEndian.Uint16(buf[1:3]))
		if len(buf) < 3+n {
			return model.InnerVal{}, 0, fmt.Errorf("codec: truncated composite inner val body")
		}
		return model.Composite(buf[3 : 3+n]), 3 + n, nil
	default:
		return model.InnerVal{}, 0, fmt.Errorf("codec: unknown inner val tag %d", buf[0])
	}
}

func encodeColumnID(buf []byte, id model.ColumnID) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(id))
	return append(buf, b[:]...)
}

func decodeColumnID(buf []byte) (model.ColumnID, int, error) {
	if len(buf) < 4 {
		return 0, 0, fmt.Errorf("codec: truncated column id")
	}
	return model.ColumnID(binary.BigEndian.Uint32(buf[:4])), 4, nil
}

func encodeVertexID(buf []byte, id model.VertexID) []byte {
	buf = encodeColumnID(buf, id.ColumnID)
	return encodeInnerVal(buf, id.InnerID)
}

func decodeVertexID(buf []byte) (model.VertexID, int, error) {
	col, n, err := decodeColumnID(buf)
	if err != nil {
		return model.VertexID{}, 0, err
	}
	inner, m, err := decodeInnerVal(buf[n:])
	if err != nil {
		return model.VertexID{}, 0, err
	}
	return model.VertexID{ColumnID: col, InnerID: inner}, n + m, nil
}

func encodeLabelID(buf []byte, id model.LabelID) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(id))
	return append(buf, b[:]...)
}

func decodeLabelID(buf []byte) (model.LabelID, int, error) {
	if len(buf) < 4 {
		return 0, 0, fmt.Errorf("codec: truncated label id")
	}
	return model.LabelID(binary.BigEndian.Uint32(buf[:4])), 4, nil
}

func encodeDirection(buf []byte, d model.Direction) []byte {
	return append(buf, byte(d))
}

func decodeDirection(buf []byte) (model.Direction, int, error) {
	if len(buf) < 1 {
		return 0, 0, fmt.Errorf("codec: truncated direction")
	}
	return model.Direction(buf[0]), 1, nil
}

func encodeIndexSeq(buf []byte, seq model.IndexSeq) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(seq))
	return append(buf, b[:]...)
}

func decodeIndexSeq(buf []byte) (model.IndexSeq, int, error) {
	if len(buf) < 4 {
		return 0, 0, fmt.Errorf("codec: truncated index seq")
	}
	return model.IndexSeq(binary.BigEndian.Uint32(buf[:4])), 4, nil
}
