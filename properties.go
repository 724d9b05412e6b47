package csvtogeo

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
)

// fgbColumnType returns the FlatGeobuf column type for a datatype.
func fgbColumnType(dt Datatype) flattypes.ColumnType {
	switch dt {
	case TypeInteger:
		return flattypes.ColumnTypeLong
	case TypeReal:
		return flattypes.ColumnTypeDouble
	default:
		return flattypes.ColumnTypeString
	}
}

// buildColumns creates the FlatGeobuf column schema from the key file
// columns. Names are identifiers and titles are display names.
func buildColumns(specs []ColumnSpec, builder *flatbuffers.Builder) []*writer.Column {
	columns := make([]*writer.Column, 0, len(specs))
	for _, c := range specs {
		col := writer.NewColumn(builder)
		col.SetName(c.Identifier)
		col.SetTitle(c.Title())
		if d := c.Description(); d != "" {
			col.SetDescription(d)
		}
		col.SetType(fgbColumnType(c.Datatype))
		col.SetNullable(c.Datatype != TypeString)
		columns = append(columns, col)
	}
	return columns
}

// encodeProperties encodes a feature's properties in column order.
// The format is: [2-byte column index][value bytes]... for each non-null
// value. Strings carry a 4-byte length prefix.
func encodeProperties(props map[string]any, specs []ColumnSpec) []byte {
	if len(props) == 0 || len(specs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for i, c := range specs {
		value, ok := props[c.Identifier]
		if !ok || value == nil {
			continue
		}

		var idx [2]byte
		binary.LittleEndian.PutUint16(idx[:], uint16(i))
		buf.Write(idx[:])
		writePropertyValue(&buf, value, fgbColumnType(c.Datatype))
	}
	return buf.Bytes()
}

// writePropertyValue writes a single property value to the buffer.
func writePropertyValue(buf *bytes.Buffer, value any, colType flattypes.ColumnType) {
	switch colType {
	case flattypes.ColumnTypeLong:
		v, _ := toInt64(value)
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(v))
		buf.Write(b)

	case flattypes.ColumnTypeDouble:
		v, _ := toFloat64(value)
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		buf.Write(b)

	default:
		s := toString(value)
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(len(s)))
		buf.Write(b)
		buf.WriteString(s)
	}
}

// decodeProperties decodes FlatGeobuf binary properties. Columns without a
// value are reported as nil.
func decodeProperties(data []byte, header *flattypes.Header) (map[string]any, error) {
	if header == nil {
		return nil, nil
	}

	n := header.ColumnsLength()
	props := make(map[string]any, n)
	for i := 0; i < n; i++ {
		var col flattypes.Column
		if header.Columns(&col, i) {
			props[string(col.Name())] = nil
		}
	}

	offset := 0
	for offset < len(data) {
		if offset+2 > len(data) {
			return nil, ErrInvalidData
		}
		colIndex := int(binary.LittleEndian.Uint16(data[offset : offset+2]))
		offset += 2

		var col flattypes.Column
		if colIndex >= n || !header.Columns(&col, colIndex) {
			return nil, ErrInvalidData
		}

		value, bytesRead := readPropertyValue(data[offset:], col.Type())
		if bytesRead == 0 {
			return nil, ErrInvalidData
		}
		offset += bytesRead
		props[string(col.Name())] = value
	}

	return props, nil
}

// readPropertyValue reads a property value from the buffer.
// Returns the value and number of bytes read, 0 when data is short.
func readPropertyValue(data []byte, colType flattypes.ColumnType) (any, int) {
	switch colType {
	case flattypes.ColumnTypeBool:
		if len(data) < 1 {
			return nil, 0
		}
		return data[0] != 0, 1

	case flattypes.ColumnTypeInt:
		if len(data) < 4 {
			return nil, 0
		}
		return int64(int32(binary.LittleEndian.Uint32(data[:4]))), 4

	case flattypes.ColumnTypeLong:
		if len(data) < 8 {
			return nil, 0
		}
		return int64(binary.LittleEndian.Uint64(data[:8])), 8

	case flattypes.ColumnTypeFloat:
		if len(data) < 4 {
			return nil, 0
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[:4]))), 4

	case flattypes.ColumnTypeDouble:
		if len(data) < 8 {
			return nil, 0
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(data[:8])), 8

	case flattypes.ColumnTypeString, flattypes.ColumnTypeDateTime, flattypes.ColumnTypeJson:
		if len(data) < 4 {
			return nil, 0
		}
		length := int(binary.LittleEndian.Uint32(data[:4]))
		if len(data) < 4+length {
			return nil, 0
		}
		s := string(data[4 : 4+length])
		if colType == flattypes.ColumnTypeJson {
			var v any
			if err := json.Unmarshal([]byte(s), &v); err == nil {
				return v, 4 + length
			}
		}
		return s, 4 + length

	default:
		return nil, 0
	}
}

// Type conversion helpers

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case float64:
		return int64(val), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	}
	return 0, false
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
