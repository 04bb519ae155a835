package codec

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/arcgraph/edgestore/pkg/model"
)

// encodeProperties serializes a Properties bag as a length-prefixed,
// key-sorted sequence of (PropKey, JSON value) pairs. Shared unchanged
// across V1/V2/V3: property encoding never depended on the edge row-key
// layout that actually changed between schema versions.
func encodeProperties(props model.Properties) ([]byte, error) {
	keys := make([]model.PropKey, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	buf := make([]byte, 0, 64)
	var countBuf [2]byte
	binary.BigEndian.PutUint16(countBuf[:], uint16(len(keys)))
	buf = append(buf, countBuf[:]...)

	for _, k := range keys {
		valBytes, err := json.Marshal(props[k])
		if err != nil {
			return nil, fmt.Errorf("codec: encoding property %d: %w", k, err)
		}
		buf = append(buf, byte(k))
		var lb [4]byte
		binary.BigEndian.PutUint32(lb[:], uint32(len(valBytes)))
		buf = append(buf, lb[:]...)
		buf = append(buf, valBytes...)
	}
	return buf, nil
}

func decodeProperties(buf []byte) (model.Properties, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("codec: truncated property count")
	}
	n := int(binary.BigEndian.Uint16(buf[:2]))
	pos := 2
	props := make(model.Properties, n)
	for i := 0; i < n; i++ {
		if pos+1+4 > len(buf) {
			return nil, fmt.Errorf("codec: truncated property header at %d", i)
		}
		key := model.PropKey(buf[pos])
		pos++
		length := int(binary.BigEndian.Uint32(buf[pos : pos+4]))
		pos += 4
		if pos+length > len(buf) {
			return nil, fmt.Errorf("codec: truncated property value at %d", i)
		}
		var v any
		if err := json.Unmarshal(buf[pos:pos+length], &v); err != nil {
			return nil, fmt.Errorf("codec: decoding property %d: %w", key, err)
		}
		props[key] = v
		pos += length
	}
	return props, nil
}
