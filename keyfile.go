package csvtogeo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Header section keys.
const (
	keySource     = "source"
	keyEPSGCode   = "epsg_code"
	keyLatColumn  = "dlatcol"
	keyLonColumn  = "dloncol"
	keyLLColumn   = "dllcol"
	keyLLPattern  = "dllre"
	keyEncoding   = "encoding"
	keyMaxSkipPct = "maxskippct"
)

// Column section row labels.
const (
	labelCSVHeader   = "csv_header"
	labelIdentifier  = "identifier"
	labelDatatype    = "datatype"
	labelShortName   = "shortname"
	labelDescription = "description"
)

// keyRow is one record of a key file with the line it starts on.
type keyRow struct {
	line  int
	cells []string
}

func (r keyRow) cell(i int) string {
	if i < len(r.cells) {
		return r.cells[i]
	}
	return ""
}

func (r keyRow) blank() bool {
	for _, c := range r.cells {
		if c != "" {
			return false
		}
	}
	return true
}

// ReadKeyFile reads the key file at path. The file is decoded from encoding
// first; an empty encoding means UTF-8.
func ReadKeyFile(path, encoding string) (*Schema, error) {
	enc, err := LookupEncoding(encoding)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseKeyFile(transform.NewReader(f, enc.NewDecoder()))
}

// ParseKeyFile reads a UTF-8 key file and builds a Schema. A leading
// byte-order mark is ignored.
func ParseKeyFile(r io.Reader) (*Schema, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(transform.Nop)))
	cr.FieldsPerRecord = -1

	var (
		rows    []keyRow
		endLine int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvtogeo: reading key file: %w", err)
		}
		line, _ := cr.FieldPos(0)

		// encoding/csv drops empty lines, but an empty line is the
		// section separator.
		if endLine > 0 && line > endLine+1 {
			rows = append(rows, keyRow{line: endLine + 1})
		}
		last := len(rec) - 1
		lastLine, _ := cr.FieldPos(last)
		endLine = lastLine + strings.Count(rec[last], "\n")

		rows = append(rows, keyRow{line: line, cells: rec})
	}
	return parseKeyRows(rows)
}

// ParseKeyFileRows builds a Schema from already split key file rows. Row i
// is reported as line i+1.
func ParseKeyFileRows(rows [][]string) (*Schema, error) {
	krs := make([]keyRow, len(rows))
	for i, r := range rows {
		krs[i] = keyRow{line: i + 1, cells: r}
	}
	return parseKeyRows(krs)
}

// keyParser collects the violations and warnings of one key file.
type keyParser struct {
	serr     SchemaError
	warnings []string
}

func (p *keyParser) warnf(line int, format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf("line %d: ", line)+fmt.Sprintf(format, args...))
}

func parseKeyRows(rows []keyRow) (*Schema, error) {
	for i := range rows {
		cells := make([]string, len(rows[i].cells))
		for j, c := range rows[i].cells {
			cells[j] = strings.TrimSpace(c)
		}
		rows[i].cells = cells
	}

	split := -1
	for i, r := range rows {
		if r.blank() {
			split = i
			break
		}
	}
	if split < 0 {
		return nil, &SchemaError{Violations: []Violation{{
			Message: "no blank row separates the header section from the column section",
		}}}
	}

	p := &keyParser{}
	globals := p.parseHeader(rows[:split])
	columns := p.parseColumns(globals, rows[split+1:])
	if err := p.serr.err(); err != nil {
		return nil, err
	}

	s, err := NewSchema(globals, columns)
	if err != nil {
		return nil, err
	}
	s.warnings = p.warnings
	return s, nil
}

func (p *keyParser) parseHeader(rows []keyRow) GlobalSettings {
	var (
		g          GlobalSettings
		seen       = make(map[string]int)
		badEPSG    bool
		badPattern bool
	)
	for _, r := range rows {
		key, value := r.cell(0), r.cell(1)
		if key == "" {
			p.serr.addf(r.line, "A", "", "value %q has no key", value)
			continue
		}
		if prev, dup := seen[key]; dup {
			p.serr.addf(r.line, "A", key, "key is already set on line %d", prev)
			continue
		}
		seen[key] = r.line
		if value == "" {
			continue
		}

		switch key {
		case keySource:
			g.Source = value
		case keyEPSGCode:
			code, err := strconv.Atoi(value)
			if err != nil || code <= 0 {
				badEPSG = true
				p.serr.addf(r.line, "B", key, "EPSG code %q is not a positive integer", value)
				continue
			}
			g.EPSGCode = code
		case keyLatColumn:
			g.LatColumn = value
		case keyLonColumn:
			g.LonColumn = value
		case keyLLColumn:
			g.CombinedColumn = value
		case keyLLPattern:
			pat, err := CompilePattern(value)
			if err != nil {
				badPattern = true
				p.serr.addf(r.line, "B", key, "%s", errorText(err))
				continue
			}
			g.CombinedPattern = pat
		case keyEncoding:
			if _, err := LookupEncoding(value); err != nil {
				p.serr.addf(r.line, "B", key, "%s", errorText(err))
				continue
			}
			g.Encoding = value
		case keyMaxSkipPct:
			pct, err := strconv.Atoi(value)
			if err != nil {
				p.serr.addf(r.line, "B", key, "max skip percentage %q is not an integer", value)
				continue
			}
			if pct < 0 || pct > 99 {
				p.serr.addf(r.line, "B", key, "max skip percentage %d is not between 0 and 99", pct)
				continue
			}
			g.MaxSkipPercent = pct
		default:
			p.warnf(r.line, "unrecognized header key %q ignored", key)
		}
	}

	if g.EPSGCode == 0 && !badEPSG {
		p.serr.addf(0, "", keyEPSGCode, "required epsg_code is missing")
	}
	if !badPattern {
		for _, msg := range checkMode(g) {
			p.serr.addf(0, "", "", "%s", msg)
		}
	}
	return g
}

// columnRows holds the labelled rows of the column section.
type columnRows struct {
	header       *keyRow
	identifier   *keyRow
	datatype     *keyRow
	shortNames   map[string]*keyRow
	descriptions map[string]*keyRow
	langs        []string // Short name languages in file order
	descLangs    []string // Description languages in file order
	width        int
}

func (p *keyParser) parseColumns(g GlobalSettings, rows []keyRow) []ColumnSpec {
	cr := columnRows{
		shortNames:   make(map[string]*keyRow),
		descriptions: make(map[string]*keyRow),
	}
	seen := make(map[string]int)

	for i := range rows {
		r := &rows[i]
		if r.blank() {
			continue
		}
		if len(r.cells) > cr.width {
			cr.width = len(r.cells)
		}

		label := r.cell(0)
		if label == "" {
			p.serr.addf(r.line, "A", "", "row has values but no label")
			continue
		}
		if prev, dup := seen[label]; dup {
			p.serr.addf(r.line, "A", label, "label is already used on line %d", prev)
			continue
		}
		seen[label] = r.line

		name, lang, hasLang := strings.Cut(label, ":")
		switch {
		case label == labelCSVHeader:
			cr.header = r
		case label == labelIdentifier:
			cr.identifier = r
		case label == labelDatatype:
			cr.datatype = r
		case name == labelShortName || name == labelDescription:
			lang = strings.TrimSpace(lang)
			if !hasLang || lang == "" {
				p.serr.addf(r.line, "A", label, "%s needs a language, as in %s:English", name, name)
				continue
			}
			if name == labelShortName {
				cr.shortNames[lang] = r
				cr.langs = append(cr.langs, lang)
			} else {
				cr.descriptions[lang] = r
				cr.descLangs = append(cr.descLangs, lang)
			}
		default:
			p.warnf(r.line, "unrecognized column section label %q ignored", label)
		}
	}

	missing := false
	for _, req := range []struct {
		label string
		row   *keyRow
	}{
		{labelCSVHeader, cr.header},
		{labelIdentifier, cr.identifier},
		{labelDatatype, cr.datatype},
	} {
		if req.row == nil {
			p.serr.addf(0, "", req.label, "required row %s is missing", req.label)
			missing = true
		}
	}
	if missing {
		return nil
	}

	var (
		columns []ColumnSpec
		ids     = make(map[string]string)
	)
	for pos := 1; pos < cr.width; pos++ {
		id := cr.identifier.cell(pos)
		if id == "" {
			continue
		}
		letter := columnLetter(pos)
		c := ColumnSpec{
			CSVHeader:    cr.header.cell(pos),
			Identifier:   id,
			Datatype:     Datatype(cr.datatype.cell(pos)),
			ShortNames:   make(map[string]string),
			Descriptions: make(map[string]string),
		}
		if c.CSVHeader == "" {
			c.CSVHeader = id
		}

		violation := func(r *keyRow, label, msg string) {
			p.serr.add(Violation{Line: r.line, Column: letter, Key: label, Header: c.CSVHeader, Message: msg})
		}
		for _, msg := range checkIdentifier(id) {
			violation(cr.identifier, labelIdentifier, msg)
		}
		if prev, dup := ids[id]; dup {
			violation(cr.identifier, labelIdentifier, fmt.Sprintf("identifier %q is already used in column %s", id, prev))
		} else {
			ids[id] = letter
		}
		if msg := checkDatatype(c); msg != "" {
			violation(cr.datatype, labelDatatype, msg)
		}
		if msg := checkReserved(g, c); msg != "" {
			violation(cr.identifier, labelIdentifier, msg)
		}

		for _, lang := range cr.langs {
			if v := cr.shortNames[lang].cell(pos); v != "" {
				c.ShortNames[lang] = v
			}
		}
		for _, lang := range cr.descLangs {
			if v := cr.descriptions[lang].cell(pos); v != "" {
				c.Descriptions[lang] = v
			}
		}
		columns = append(columns, c)
	}
	return columns
}

// columnLetter returns the spreadsheet name of a zero-based column index.
func columnLetter(i int) string {
	var b []byte
	for i++; i > 0; i = (i - 1) / 26 {
		b = append([]byte{byte('A' + (i-1)%26)}, b...)
	}
	return string(b)
}
