package csvtogeo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const byteOrderMark = "\ufeff"

// LookupEncoding returns the charset named by name. IANA names and aliases
// are accepted, as are the WHATWG labels (such as "cp1252") and "utf-8-sig",
// which drops a leading byte-order mark. An empty name means UTF-8.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	case "utf-8-sig", "utf_8_sig":
		return unicode.UTF8BOM, nil
	}

	if enc, err := ianaindex.IANA.Encoding(name); err == nil && enc != nil {
		return enc, nil
	}
	if enc, err := htmlindex.Get(name); err == nil {
		return enc, nil
	}
	return nil, fmt.Errorf("csvtogeo: encoding %q is not supported", name)
}

// CSVSource reads data rows from a CSV file. It implements RowSource.
type CSVSource struct {
	r      *csv.Reader
	header []string
	index  map[string]int
}

// NewCSVSource decodes r from the schema's encoding, reads the header row
// and checks that every header the schema needs is present. Header names
// must match exactly; a missing one is reported as *ColumnNotFoundError.
func NewCSVSource(r io.Reader, s *Schema) (*CSVSource, error) {
	if s == nil {
		return nil, ErrNilSchema
	}
	enc, err := LookupEncoding(s.Globals().Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(transform.NewReader(r, enc.NewDecoder()))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csvtogeo: reading data file header: %w", err)
	}

	src := &CSVSource{
		r:      cr,
		header: header,
		index:  make(map[string]int, len(header)),
	}
	for i, h := range header {
		if _, dup := src.index[h]; !dup {
			src.index[h] = i
		}
	}

	for _, h := range s.RequiredHeaders() {
		if _, ok := src.index[h]; !ok {
			return nil, &ColumnNotFoundError{
				Column:    h,
				Available: append([]string(nil), header...),
				BOM:       len(header) > 0 && strings.HasPrefix(header[0], byteOrderMark),
			}
		}
	}
	return src, nil
}

// Header returns the data file's header row.
func (c *CSVSource) Header() []string {
	return append([]string(nil), c.header...)
}

// Next returns the next record. Short records are padded with blanks and
// cells beyond the header are dropped. Empty lines are not records.
func (c *CSVSource) Next() (Row, error) {
	rec, err := c.r.Read()
	if errors.Is(err, io.EOF) {
		return Row{}, io.EOF
	}
	if err != nil {
		return Row{}, fmt.Errorf("csvtogeo: reading data file: %w", err)
	}
	line, _ := c.r.FieldPos(0)

	fields := make(map[string]string, len(c.index))
	for h, i := range c.index {
		if i < len(rec) {
			fields[h] = rec[i]
		} else {
			fields[h] = ""
		}
	}
	return Row{Line: line, Fields: fields}, nil
}
