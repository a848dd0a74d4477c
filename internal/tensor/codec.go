package tensor

import (
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire layout of a tensor, compatible with the protobuf message
//
//	message Tensor {
//	  uint32 rows  = 1;
//	  uint32 cols  = 2;
//	  uint32 dtype = 3;
//	  repeated double data = 4 [packed = true];
//	}
const (
	fieldRows  protowire.Number = 1
	fieldCols  protowire.Number = 2
	fieldDType protowire.Number = 3
	fieldData  protowire.Number = 4
)

// ProtoContentType is the media type of MarshalProto output.
const ProtoContentType = "application/x-protobuf"

// MarshalProto encodes t in protobuf wire format.
func (t *Tensor) MarshalProto() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldRows, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.rows))
	b = protowire.AppendTag(b, fieldCols, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.cols))
	b = protowire.AppendTag(b, fieldDType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.dtype))
	if len(t.data) > 0 {
		packed := make([]byte, 0, 8*len(t.data))
		for _, v := range t.data {
			packed = protowire.AppendFixed64(packed, math.Float64bits(v))
		}
		b = protowire.AppendTag(b, fieldData, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	return b
}

// UnmarshalProto decodes a tensor produced by MarshalProto. Unknown fields
// are skipped; both packed and unpacked data encodings are accepted.
func UnmarshalProto(b []byte) (*Tensor, error) {
	var (
		rows, cols uint64
		dt         uint64
		data       []float64
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("tensor: decode tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldRows && typ == protowire.VarintType:
			rows, n = protowire.ConsumeVarint(b)
		case num == fieldCols && typ == protowire.VarintType:
			cols, n = protowire.ConsumeVarint(b)
		case num == fieldDType && typ == protowire.VarintType:
			dt, n = protowire.ConsumeVarint(b)
		case num == fieldData && typ == protowire.BytesType:
			var packed []byte
			packed, n = protowire.ConsumeBytes(b)
			for len(packed) > 0 && n >= 0 {
				v, m := protowire.ConsumeFixed64(packed)
				if m < 0 {
					n = m
					break
				}
				data = append(data, math.Float64frombits(v))
				packed = packed[m:]
			}
		case num == fieldData && typ == protowire.Fixed64Type:
			var v uint64
			v, n = protowire.ConsumeFixed64(b)
			data = append(data, math.Float64frombits(v))
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("tensor: decode field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	if uint64(len(data)) != rows*cols {
		return nil, Shapef("decode", "%d values for a %dx%d tensor", len(data), rows, cols)
	}
	if dt >= uint64(len(dtypeNames)) {
		return nil, fmt.Errorf("tensor: decode: unknown dtype %d", dt)
	}
	return &Tensor{rows: int(rows), cols: int(cols), dtype: DType(dt), data: data}, nil
}

// MarshalJSON renders the tensor as an array of rows. Boolean tensors render
// true/false, integral tensors render integers.
func (t *Tensor) MarshalJSON() ([]byte, error) {
	b := []byte{'['}
	for i := 0; i < t.rows; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '[')
		for j, v := range t.Row(i) {
			if j > 0 {
				b = append(b, ',')
			}
			b = t.appendValue(b, v)
		}
		b = append(b, ']')
	}
	return append(b, ']'), nil
}

func (t *Tensor) appendValue(b []byte, v float64) []byte {
	switch {
	case t.dtype == Bool:
		return strconv.AppendBool(b, v != 0)
	case t.dtype.Integral():
		return strconv.AppendInt(b, int64(v), 10)
	case math.IsNaN(v) || math.IsInf(v, 0):
		return append(b, "null"...)
	default:
		return strconv.AppendFloat(b, v, 'g', -1, 64)
	}
}
