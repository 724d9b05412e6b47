package csvtogeo

import (
	"fmt"
	"regexp"
	"sort"
)

// Datatype is the type of an output property.
type Datatype string

const (
	TypeString  Datatype = "string"
	TypeInteger Datatype = "integer"
	TypeReal    Datatype = "real"
)

// ParseDatatype maps a key file datatype cell to a Datatype.
func ParseDatatype(s string) (Datatype, bool) {
	switch Datatype(s) {
	case TypeString, TypeInteger, TypeReal:
		return Datatype(s), true
	}
	return "", false
}

// Reserved identifiers for the geometry coordinates.
const (
	LatIdentifier = "dlat"
	LonIdentifier = "dlon"
)

// MaxIdentifierLength is the longest identifier an ESRI shapefile accepts.
const MaxIdentifierLength = 10

var identifierRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// CoordinateMode selects where a row's position comes from.
type CoordinateMode int

const (
	// ModeDirect reads two columns holding decimal degrees.
	ModeDirect CoordinateMode = iota
	// ModePattern splits one column with a capture pattern.
	ModePattern
)

func (m CoordinateMode) String() string {
	if m == ModePattern {
		return "pattern"
	}
	return "direct"
}

// Pattern is a compiled combined-column pattern. It always matches a whole
// cell and "." also matches newlines.
type Pattern struct {
	expr     string
	re       *regexp.Regexp
	latIdx   int
	lonIdx   int
	captures []string
}

// CompilePattern compiles a capture pattern. The pattern must name a dlat and
// a dlon group; any other named group becomes an extra capture.
func CompilePattern(expr string) (*Pattern, error) {
	re, err := regexp.Compile("(?s)^(?:" + expr + ")$")
	if err != nil {
		return nil, fmt.Errorf("csvtogeo: pattern %q does not compile: %w", expr, err)
	}
	p := &Pattern{expr: expr, re: re, latIdx: -1, lonIdx: -1}
	for i, name := range re.SubexpNames() {
		switch name {
		case "":
		case LatIdentifier:
			p.latIdx = i
		case LonIdentifier:
			p.lonIdx = i
		default:
			p.captures = append(p.captures, name)
		}
	}
	if p.latIdx < 0 {
		return nil, fmt.Errorf("csvtogeo: pattern %q does not have a capture for %s", expr, LatIdentifier)
	}
	if p.lonIdx < 0 {
		return nil, fmt.Errorf("csvtogeo: pattern %q does not have a capture for %s", expr, LonIdentifier)
	}
	return p, nil
}

// MustCompilePattern is like CompilePattern but panics on error.
func MustCompilePattern(expr string) *Pattern {
	p, err := CompilePattern(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the pattern as written in the key file.
func (p *Pattern) String() string {
	return p.expr
}

// Captures returns the names of the extra captures, in pattern order.
func (p *Pattern) Captures() []string {
	return append([]string(nil), p.captures...)
}

// HasCapture reports whether name is a named group of the pattern,
// including dlat and dlon.
func (p *Pattern) HasCapture(name string) bool {
	if name == LatIdentifier || name == LonIdentifier {
		return true
	}
	for _, c := range p.captures {
		if c == name {
			return true
		}
	}
	return false
}

// GlobalSettings holds the key file's header section.
type GlobalSettings struct {
	Source          string   // Documentation only
	EPSGCode        int      // Required
	LatColumn       string   // Direct mode
	LonColumn       string   // Direct mode
	CombinedColumn  string   // Pattern mode
	CombinedPattern *Pattern // Pattern mode
	Encoding        string   // Data file charset, default utf-8
	MaxSkipPercent  int      // 0..99, default 0
}

// DefaultEncoding is used when the key file names no encoding.
const DefaultEncoding = "utf-8"

// Mode returns the coordinate mode the settings select. It is only
// meaningful for settings that passed validation.
func (g GlobalSettings) Mode() CoordinateMode {
	if g.CombinedColumn != "" {
		return ModePattern
	}
	return ModeDirect
}

// ColumnSpec describes one CSV column copied into the output.
type ColumnSpec struct {
	CSVHeader    string
	Identifier   string
	Datatype     Datatype
	ShortNames   map[string]string // language tag -> display name
	Descriptions map[string]string // language tag -> description
}

// ShortName returns the short name for lang, or "".
func (c ColumnSpec) ShortName(lang string) string {
	return c.ShortNames[lang]
}

// Title returns a display name for the column: the English short name, else
// the short name of the alphabetically first language, else the identifier.
func (c ColumnSpec) Title() string {
	return pickLanguage(c.ShortNames, c.Identifier)
}

// Description returns the English description, else the first by language.
func (c ColumnSpec) Description() string {
	return pickLanguage(c.Descriptions, "")
}

func pickLanguage(m map[string]string, fallback string) string {
	for _, lang := range []string{"English", "english", "en"} {
		if v, ok := m[lang]; ok {
			return v
		}
	}
	if len(m) == 0 {
		return fallback
	}
	langs := make([]string, 0, len(m))
	for lang := range m {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return m[langs[0]]
}

// Schema is a validated key file: global settings plus the ordered output
// columns. A Schema is immutable once built.
type Schema struct {
	globals  GlobalSettings
	columns  []ColumnSpec
	byID     map[string]int
	warnings []string
}

// NewSchema validates globals and columns and builds a Schema. Every
// violation is reported in the returned *SchemaError.
func NewSchema(globals GlobalSettings, columns []ColumnSpec) (*Schema, error) {
	if globals.Encoding == "" {
		globals.Encoding = DefaultEncoding
	}

	serr := &SchemaError{}
	for _, msg := range checkGlobals(globals) {
		serr.add(Violation{Message: msg})
	}

	s := &Schema{
		globals: globals,
		columns: make([]ColumnSpec, 0, len(columns)),
		byID:    make(map[string]int, len(columns)),
	}
	for _, c := range columns {
		if c.CSVHeader == "" {
			c.CSVHeader = c.Identifier
		}
		for _, msg := range checkColumn(globals, c) {
			serr.add(Violation{Header: c.CSVHeader, Key: "identifier", Message: msg})
		}
		if _, dup := s.byID[c.Identifier]; dup {
			serr.add(Violation{Header: c.CSVHeader, Key: "identifier", Message: fmt.Sprintf("identifier %q is used by more than one column", c.Identifier)})
			continue
		}
		c.ShortNames = copyStrings(c.ShortNames)
		c.Descriptions = copyStrings(c.Descriptions)
		s.byID[c.Identifier] = len(s.columns)
		s.columns = append(s.columns, c)
	}
	if err := serr.err(); err != nil {
		return nil, err
	}
	return s, nil
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// checkGlobals returns the problems with a header section, without
// location context.
func checkGlobals(g GlobalSettings) []string {
	var msgs []string
	if g.EPSGCode <= 0 {
		msgs = append(msgs, "required epsg_code is missing")
	}
	if g.MaxSkipPercent < 0 || g.MaxSkipPercent > 99 {
		msgs = append(msgs, fmt.Sprintf("maxskippct %d is not between 0 and 99", g.MaxSkipPercent))
	}
	if _, err := LookupEncoding(g.Encoding); err != nil {
		msgs = append(msgs, errorText(err))
	}
	return append(msgs, checkMode(g)...)
}

// checkMode enforces that exactly one of (dlatcol, dloncol) and
// (dllcol, dllre) is given.
func checkMode(g GlobalSettings) []string {
	direct := g.LatColumn != "" || g.LonColumn != ""
	pattern := g.CombinedColumn != "" || g.CombinedPattern != nil

	var msgs []string
	switch {
	case direct && pattern:
		msgs = append(msgs, "only one of (dlatcol, dloncol) or (dllcol, dllre) may be specified")
	case !direct && !pattern:
		msgs = append(msgs, "either dlatcol and dloncol, or dllcol and dllre, are required")
	case direct:
		if g.LatColumn == "" {
			msgs = append(msgs, "if dloncol is present, dlatcol is required")
		}
		if g.LonColumn == "" {
			msgs = append(msgs, "if dlatcol is present, dloncol is required")
		}
	default:
		if g.CombinedColumn == "" {
			msgs = append(msgs, "if dllre is present, dllcol is required")
		}
		if g.CombinedPattern == nil {
			msgs = append(msgs, "if dllcol is present, dllre is required")
		}
	}
	return msgs
}

// checkIdentifier returns the problems with an identifier's shape.
func checkIdentifier(id string) []string {
	var msgs []string
	if !identifierRegex.MatchString(id) {
		msgs = append(msgs, fmt.Sprintf("identifier %q is not valid; identifiers must start with a letter and contain only letters, numbers and underscores", id))
	}
	if len(id) > MaxIdentifierLength {
		msgs = append(msgs, fmt.Sprintf("identifier %q is longer than %d characters, which is too long for an ESRI shapefile", id, MaxIdentifierLength))
	}
	return msgs
}

// checkColumn returns the problems with one column spec.
func checkColumn(g GlobalSettings, c ColumnSpec) []string {
	msgs := checkIdentifier(c.Identifier)
	if msg := checkDatatype(c); msg != "" {
		msgs = append(msgs, msg)
	}
	if msg := checkReserved(g, c); msg != "" {
		msgs = append(msgs, msg)
	}
	return msgs
}

func checkDatatype(c ColumnSpec) string {
	if _, ok := ParseDatatype(string(c.Datatype)); ok {
		return ""
	}
	if c.Datatype == "" {
		return fmt.Sprintf("data type for identifier %q cannot be blank", c.Identifier)
	}
	return fmt.Sprintf("data type for identifier %q is %q but must be one of string, real or integer", c.Identifier, c.Datatype)
}

// checkReserved enforces that dlat and dlon only name the geometry source.
func checkReserved(g GlobalSettings, c ColumnSpec) string {
	if c.Identifier != LatIdentifier && c.Identifier != LonIdentifier {
		return ""
	}
	source := c.Identifier
	if g.Mode() == ModeDirect {
		source = g.LatColumn
		if c.Identifier == LonIdentifier {
			source = g.LonColumn
		}
	}
	if c.CSVHeader != source {
		return fmt.Sprintf("identifier %q is reserved for the geometry column %q", c.Identifier, source)
	}
	if c.Datatype != TypeReal {
		return fmt.Sprintf("identifier %q is a coordinate and must have data type real", c.Identifier)
	}
	return ""
}

// Globals returns the header section settings.
func (s *Schema) Globals() GlobalSettings {
	return s.globals
}

// Mode returns the coordinate mode.
func (s *Schema) Mode() CoordinateMode {
	return s.globals.Mode()
}

// EPSGCode returns the EPSG code of the coordinates.
func (s *Schema) EPSGCode() int {
	return s.globals.EPSGCode
}

// Columns returns the output columns in key file order.
func (s *Schema) Columns() []ColumnSpec {
	return append([]ColumnSpec(nil), s.columns...)
}

// Column returns the column with the given identifier.
func (s *Schema) Column(identifier string) (ColumnSpec, bool) {
	i, ok := s.byID[identifier]
	if !ok {
		return ColumnSpec{}, false
	}
	return s.columns[i], true
}

// Identifiers returns the output identifiers in key file order.
func (s *Schema) Identifiers() []string {
	ids := make([]string, len(s.columns))
	for i, c := range s.columns {
		ids[i] = c.Identifier
	}
	return ids
}

// Warnings returns non-fatal notes collected while parsing the key file.
func (s *Schema) Warnings() []string {
	return append([]string(nil), s.warnings...)
}

// RequiredHeaders returns the data file headers the schema reads: the
// coordinate column(s) followed by every column header that is not served
// by a pattern capture.
func (s *Schema) RequiredHeaders() []string {
	g := s.globals
	var headers []string
	seen := make(map[string]bool)
	add := func(h string) {
		if h != "" && !seen[h] {
			seen[h] = true
			headers = append(headers, h)
		}
	}

	if g.Mode() == ModePattern {
		add(g.CombinedColumn)
	} else {
		add(g.LatColumn)
		add(g.LonColumn)
	}
	for _, c := range s.columns {
		if g.Mode() == ModePattern && g.CombinedPattern.HasCapture(c.CSVHeader) {
			continue
		}
		add(c.CSVHeader)
	}
	return headers
}
