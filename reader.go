package csvtogeo

import (
	"encoding/binary"
	"fmt"
	"os"

	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb/geojson"
)

// fgbMagicLen is the length of the FlatGeobuf magic bytes.
const fgbMagicLen = 8

// nodeItemLen is the size of a packed R-tree node on disk.
const nodeItemLen = 40

// Reader provides read access to a FlatGeobuf file written by
// WriteFlatGeobuf.
type Reader struct {
	fgb  *flatgeobuf.FlatGeoBuf
	data []byte
}

// NewReader creates a reader from a file path.
func NewReader(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewReaderFromData(data)
}

// NewReaderFromData creates a reader from byte data.
func NewReaderFromData(data []byte) (*Reader, error) {
	fgb, err := flatgeobuf.NewWithData(data)
	if err != nil {
		return nil, err
	}

	return &Reader{fgb: fgb, data: data}, nil
}

// Header returns metadata about the FlatGeobuf file.
func (r *Reader) Header() *Header {
	h := r.fgb.Header()
	if h == nil {
		return nil
	}

	header := &Header{
		Name:          string(h.Name()),
		Description:   string(h.Description()),
		FeaturesCount: h.FeaturesCount(),
		HasIndex:      h.IndexNodeSize() > 0,
		GeometryType:  flattypes.EnumNamesGeometryType[h.GeometryType()],
	}

	if h.EnvelopeLength() >= 4 {
		header.Envelope = [4]float64{
			h.Envelope(0),
			h.Envelope(1),
			h.Envelope(2),
			h.Envelope(3),
		}
	}

	var crs flattypes.Crs
	if h.Crs(&crs) != nil {
		header.CRS = &CRS{
			Code:        int(crs.Code()),
			Name:        string(crs.Name()),
			Description: string(crs.Description()),
		}
		if known, ok := knownCRS[header.CRS.Code]; ok && known.WKT == header.CRS.Description {
			header.CRS.WKT = known.WKT
			header.CRS.Description = ""
		}
	}

	if n := h.ColumnsLength(); n > 0 {
		header.Columns = make([]ColumnInfo, 0, n)
		for i := 0; i < n; i++ {
			var col flattypes.Column
			if h.Columns(&col, i) {
				header.Columns = append(header.Columns, ColumnInfo{
					Name:        string(col.Name()),
					Type:        flattypes.EnumNamesColumnType[col.Type()],
					Title:       string(col.Title()),
					Description: string(col.Description()),
					Nullable:    col.Nullable(),
				})
			}
		}
	}

	return header
}

// ReadAll reads every feature in file order. Features of an indexed file
// are in the index's Hilbert order, not the order they were written in.
// A features count of 0 means unknown: features are read until the data
// ends.
func (r *Reader) ReadAll() ([]*Feature, error) {
	h := r.fgb.Header()
	count := h.FeaturesCount()

	if len(r.data) < fgbMagicLen+4 {
		return nil, ErrInvalidData
	}
	headerLen := uint64(binary.LittleEndian.Uint32(r.data[fgbMagicLen:]))
	offset := uint64(fgbMagicLen+4) + headerLen
	if nodeSize := h.IndexNodeSize(); nodeSize > 0 && count > 0 {
		offset += packedTreeSize(count, nodeSize)
	}
	end := uint64(len(r.data))
	if offset > end {
		return nil, fmt.Errorf("%w: header is past the end of the file", ErrInvalidData)
	}

	features := make([]*Feature, 0, count)
	for i := uint64(0); count == 0 || i < count; i++ {
		if count == 0 && offset == end {
			break
		}
		if offset+4 > end {
			return nil, fmt.Errorf("%w: feature %d is past the end of the file", ErrInvalidData, i)
		}
		size := uint64(binary.LittleEndian.Uint32(r.data[offset:]))
		offset += 4
		if offset+size > end {
			return nil, fmt.Errorf("%w: feature %d is truncated", ErrInvalidData, i)
		}

		fgbFeature := flattypes.GetRootAsFeature(r.data[offset:offset+size], 0)
		offset += size

		f, err := convertFeature(fgbFeature, h)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		f.Line = int(i) + 1
		features = append(features, f)
	}

	return features, nil
}

// ReadGeoJSON reads every feature as a FeatureCollection.
func (r *Reader) ReadGeoJSON() (*geojson.FeatureCollection, error) {
	features, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.Append(f.GeoJSON())
	}
	return fc, nil
}

// Close releases the file data.
func (r *Reader) Close() error {
	r.fgb = nil
	r.data = nil
	return nil
}

// packedTreeSize returns the byte size of a packed Hilbert R-tree over
// count items.
func packedTreeSize(count uint64, nodeSize uint16) uint64 {
	if nodeSize < 2 {
		nodeSize = 2
	}
	n := count
	nodes := n
	// At least one level above the leaves, even for a single item.
	for {
		n = (n + uint64(nodeSize) - 1) / uint64(nodeSize)
		nodes += n
		if n == 1 {
			break
		}
	}
	return nodes * nodeItemLen
}

// convertFeature converts a FlatGeobuf feature to a Feature.
func convertFeature(fgbFeature *flattypes.Feature, header *flattypes.Header) (*Feature, error) {
	var geomObj flattypes.Geometry
	pt, ok := pointFromFGB(fgbFeature.Geometry(&geomObj), header.GeometryType())
	if !ok {
		return nil, fmt.Errorf("%w: not a point geometry", ErrInvalidData)
	}

	data := make([]byte, fgbFeature.PropertiesLength())
	for i := range data {
		data[i] = byte(fgbFeature.Properties(i))
	}
	props, err := decodeProperties(data, header)
	if err != nil {
		return nil, err
	}

	return &Feature{Point: pt, Properties: props}, nil
}
