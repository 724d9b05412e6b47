package csvtogeo

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/Valentin-Kaiser/go-dbase/dbase"
)

// ESRI shapefile constants.
const (
	shpFileCode     = 9994
	shpVersion      = 1000
	shpTypePoint    = 1
	shpHeaderLen    = 100
	shpRecHeaderLen = 8
	shpPointLen     = 20 // shape type + x + y
)

// dBase attribute table limits.
const (
	dbfMaxCharLen   = 254
	dbfStringPad    = 5
	dbfIntegerLen   = 18
	dbfRealLen      = 20
	dbfRealDecimals = 8
)

// fidColumn is added when a layer has no attribute columns, since a
// .dbf needs at least one field.
const fidColumn = "FID"

// utf8Converter stores text in the .dbf as UTF-8; the .cpg file names the
// encoding.
type utf8Converter struct{}

func (utf8Converter) Decode(in []byte) ([]byte, error) { return in, nil }
func (utf8Converter) Encode(in []byte) ([]byte, error) { return in, nil }
func (utf8Converter) CodePage() byte                   { return 0x00 }

// WriteShapefile writes an ESRI point shapefile: base.shp, base.shx,
// base.dbf, base.cpg and, for EPSG codes with a known definition,
// base.prj. It returns the paths written.
func WriteShapefile(base string, features []*Feature, s *Schema, opts *Options) ([]string, error) {
	if s == nil {
		return nil, ErrNilSchema
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	features, code, err := prepare(features, s, opts)
	if err != nil {
		return nil, err
	}

	specs := s.Columns()
	if err := checkFieldNames(specs); err != nil {
		return nil, err
	}

	shp, shx := encodeShapes(features)
	var written []string
	write := func(ext string, data []byte) error {
		path := base + ext
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if err := write(".shp", shp); err != nil {
		return written, err
	}
	if err := write(".shx", shx); err != nil {
		return written, err
	}
	if err := writeDBF(base+".dbf", features, specs); err != nil {
		return written, err
	}
	written = append(written, base+".dbf")
	if err := write(".cpg", []byte("UTF-8")); err != nil {
		return written, err
	}
	wkt := LookupCRS(code).WKT
	if wkt == "" {
		// Drop a .prj left by an earlier run so it cannot mislabel this one.
		if err := os.Remove(base + ".prj"); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return written, err
		}
		return written, nil
	}
	if err := write(".prj", []byte(wkt)); err != nil {
		return written, err
	}
	return written, nil
}

// checkFieldNames rejects identifiers that collide once uppercased, as
// .dbf field names are.
func checkFieldNames(specs []ColumnSpec) error {
	seen := make(map[string]string, len(specs))
	for _, c := range specs {
		name := strings.ToUpper(c.Identifier)
		if prev, dup := seen[name]; dup {
			return fmt.Errorf("csvtogeo: identifiers %q and %q are the same shapefile field %s", prev, c.Identifier, name)
		}
		seen[name] = c.Identifier
	}
	return nil
}

// encodeShapes builds the .shp and .shx contents for points.
func encodeShapes(features []*Feature) (shp, shx []byte) {
	recLen := shpRecHeaderLen + shpPointLen
	shpLen := shpHeaderLen + recLen*len(features)
	shxLen := shpHeaderLen + shpRecHeaderLen*len(features)

	var bound [4]float64
	if b, ok := featureBound(features); ok {
		bound = envelope(b)
	}

	var shpBuf, shxBuf bytes.Buffer
	writeShapeHeader(&shpBuf, shpLen, bound)
	writeShapeHeader(&shxBuf, shxLen, bound)

	for i, f := range features {
		offset := shpHeaderLen + recLen*i

		binary.Write(&shxBuf, binary.BigEndian, int32(offset/2))
		binary.Write(&shxBuf, binary.BigEndian, int32(shpPointLen/2))

		binary.Write(&shpBuf, binary.BigEndian, int32(i+1))
		binary.Write(&shpBuf, binary.BigEndian, int32(shpPointLen/2))
		binary.Write(&shpBuf, binary.LittleEndian, int32(shpTypePoint))
		binary.Write(&shpBuf, binary.LittleEndian, f.Point[0])
		binary.Write(&shpBuf, binary.LittleEndian, f.Point[1])
	}
	return shpBuf.Bytes(), shxBuf.Bytes()
}

// writeShapeHeader writes the 100 byte header shared by .shp and .shx.
// Lengths are in bytes and stored in 16-bit words.
func writeShapeHeader(buf *bytes.Buffer, length int, bound [4]float64) {
	binary.Write(buf, binary.BigEndian, int32(shpFileCode))
	buf.Write(make([]byte, 20))
	binary.Write(buf, binary.BigEndian, int32(length/2))
	binary.Write(buf, binary.LittleEndian, int32(shpVersion))
	binary.Write(buf, binary.LittleEndian, int32(shpTypePoint))
	for _, v := range bound {
		binary.Write(buf, binary.LittleEndian, v)
	}
	// Z and M ranges
	buf.Write(make([]byte, 32))
}

// dbfStringWidths returns the character column widths: the longest value
// plus padding, capped at the dBase limit.
func dbfStringWidths(features []*Feature, specs []ColumnSpec) map[string]int {
	widths := make(map[string]int)
	for _, c := range specs {
		if c.Datatype != TypeString {
			continue
		}
		longest := 0
		for _, f := range features {
			if s, ok := f.Properties[c.Identifier].(string); ok && len(s) > longest {
				longest = len(s)
			}
		}
		widths[c.Identifier] = min(longest+dbfStringPad, dbfMaxCharLen)
	}
	return widths
}

func dbfColumns(features []*Feature, specs []ColumnSpec) ([]*dbase.Column, error) {
	if len(specs) == 0 {
		col, err := dbase.NewColumn(fidColumn, dbase.Numeric, 10, 0, false)
		if err != nil {
			return nil, err
		}
		return []*dbase.Column{col}, nil
	}

	widths := dbfStringWidths(features, specs)
	columns := make([]*dbase.Column, 0, len(specs))
	for _, c := range specs {
		var (
			col *dbase.Column
			err error
		)
		switch c.Datatype {
		case TypeInteger:
			col, err = dbase.NewColumn(c.Identifier, dbase.Numeric, dbfIntegerLen, 0, false)
		case TypeReal:
			col, err = dbase.NewColumn(c.Identifier, dbase.Numeric, dbfRealLen, dbfRealDecimals, false)
		default:
			col, err = dbase.NewColumn(c.Identifier, dbase.Character, uint8(widths[c.Identifier]), 0, false)
		}
		if err != nil {
			return nil, fmt.Errorf("csvtogeo: dbf column %s: %w", c.Identifier, err)
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// writeDBF writes the attribute table, one record per feature in order.
func writeDBF(path string, features []*Feature, specs []ColumnSpec) error {
	columns, err := dbfColumns(features, specs)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	table, err := dbase.NewTable(
		dbase.FoxBasePlus,
		&dbase.Config{
			Filename:   path,
			Converter:  utf8Converter{},
			TrimSpaces: true,
		},
		columns,
		64,
		nil,
	)
	if err != nil {
		return fmt.Errorf("csvtogeo: creating %s: %w", path, err)
	}

	for i, f := range features {
		row := table.NewRow()
		if len(specs) == 0 {
			err = row.FieldByName(fidColumn).SetValue(int64(i))
		}
		for _, c := range specs {
			if err != nil {
				break
			}
			err = row.FieldByName(strings.ToUpper(c.Identifier)).SetValue(dbfValue(f.Properties[c.Identifier]))
		}
		if err == nil {
			err = row.Add()
		}
		if err != nil {
			table.Close()
			return fmt.Errorf("csvtogeo: writing record for line %d: %w", f.Line, err)
		}
	}
	return table.Close()
}

// dbfValue adapts a property value for go-dbase. Strings are cut to the
// dBase field limit on a rune boundary.
func dbfValue(v any) any {
	switch val := v.(type) {
	case string:
		if len(val) <= dbfMaxCharLen {
			return val
		}
		cut := dbfMaxCharLen
		for cut > 0 && !utf8.RuneStart(val[cut]) {
			cut--
		}
		return val[:cut]
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return val
	default:
		return v
	}
}
