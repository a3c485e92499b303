package datasette

import (
	"net/url"
	"strconv"
	"strings"
)

// Shape selects the row encoding requested from the upstream JSON API.
type Shape string

const (
	// ShapeDefault leaves the choice to the upstream service.
	ShapeDefault Shape = ""

	// ShapeObjects requests rows as JSON objects keyed by column name.
	ShapeObjects Shape = "objects"

	// ShapeArrays requests rows as positional arrays plus a column list.
	ShapeArrays Shape = "arrays"

	// ShapeArray requests a bare JSON array with no envelope.
	ShapeArray Shape = "array"
)

func (s Shape) validate() error {
	switch s {
	case ShapeDefault, ShapeObjects, ShapeArrays, ShapeArray:
		return nil
	default:
		return newError(KindInvalidArgument,
			"invalid shape %q: must be one of objects, arrays, array", string(s))
	}
}

// DefaultMaxSize caps the page size forwarded upstream when no explicit
// maximum is configured.
const DefaultMaxSize = 1000

// Limits holds the request construction limits shared by all tools.
type Limits struct {
	// MaxSize is the largest page size forwarded upstream. Larger requests
	// are clamped, not rejected. Zero means DefaultMaxSize.
	MaxSize int
}

func (l Limits) maxSize() int {
	if l.MaxSize > 0 {
		return l.MaxSize
	}
	return DefaultMaxSize
}

// clampSize validates an optional page size. nil means "not requested".
func (l Limits) clampSize(size *int) (int, error) {
	if size == nil {
		return 0, nil
	}
	if *size <= 0 {
		return 0, newError(KindInvalidArgument, "size must be a positive integer, got %d", *size)
	}
	if max := l.maxSize(); *size > max {
		return max, nil
	}
	return *size, nil
}

// SQLSpec describes one SQL execution request.
type SQLSpec struct {
	Database    string
	SQL         string
	Shape       Shape
	JSONColumns []string
	Trace       bool
	TimeLimitMS int
	Size        *int
	NextToken   string
}

// Request builds the upstream path and query parameters. SQL is passed
// through verbatim; the upstream service enforces its read-only restriction.
func (s SQLSpec) Request(limits Limits) (string, url.Values, error) {
	if s.Database == "" {
		return "", nil, newError(KindInvalidArgument, "database is required")
	}
	if strings.TrimSpace(s.SQL) == "" {
		return "", nil, newError(KindInvalidArgument, "sql is required")
	}
	if err := s.Shape.validate(); err != nil {
		return "", nil, err
	}
	if s.TimeLimitMS < 0 {
		return "", nil, newError(KindInvalidArgument, "timelimit must be a positive number of milliseconds, got %d", s.TimeLimitMS)
	}
	size, err := limits.clampSize(s.Size)
	if err != nil {
		return "", nil, err
	}

	params := url.Values{}
	params.Set("sql", s.SQL)
	if s.Shape != ShapeDefault {
		params.Set("_shape", string(s.Shape))
	}
	for _, col := range s.JSONColumns {
		params.Add("_json", col)
	}
	if s.Trace {
		params.Set("_trace", "on")
	}
	if s.TimeLimitMS > 0 {
		params.Set("_timelimit", strconv.Itoa(s.TimeLimitMS))
	}
	if size > 0 {
		params.Set("_size", strconv.Itoa(size))
	}
	if s.NextToken != "" {
		params.Set("_next", s.NextToken)
	}
	return databasePath(s.Database), params, nil
}

// SearchSpec describes one full-text search request.
type SearchSpec struct {
	Database    string
	Table       string
	Term        string
	Column      string
	Columns     []string
	RawMode     bool
	Shape       Shape
	Size        *int
	JSONColumns []string
	NextToken   string
}

// Request builds the upstream path and query parameters. The search mode is
// always pinned to raw so escaping is owned here: with RawMode the term
// passes through untouched for boolean FTS expressions, otherwise it is
// escaped into a literal phrase first.
func (s SearchSpec) Request(limits Limits) (string, url.Values, error) {
	if s.Database == "" {
		return "", nil, newError(KindInvalidArgument, "database is required")
	}
	if s.Table == "" {
		return "", nil, newError(KindInvalidArgument, "table is required")
	}
	if strings.TrimSpace(s.Term) == "" {
		return "", nil, newError(KindInvalidArgument, "search_term is required")
	}
	if err := s.Shape.validate(); err != nil {
		return "", nil, err
	}
	size, err := limits.clampSize(s.Size)
	if err != nil {
		return "", nil, err
	}

	term := s.Term
	if !s.RawMode {
		term = EscapeFTS(term)
	}

	params := url.Values{}
	if s.Column != "" {
		params.Set("_search_"+s.Column, term)
	} else {
		params.Set("_search", term)
	}
	for _, col := range s.Columns {
		params.Add("_col", col)
	}
	params.Set("_searchmode", "raw")
	if s.Shape != ShapeDefault {
		params.Set("_shape", string(s.Shape))
	}
	if size > 0 {
		params.Set("_size", strconv.Itoa(size))
	}
	for _, col := range s.JSONColumns {
		params.Add("_json", col)
	}
	if s.NextToken != "" {
		params.Set("_next", s.NextToken)
	}
	return tablePath(s.Database, s.Table), params, nil
}

// EscapeFTS turns free text into a literal FTS phrase: each whitespace
// separated token is double-quoted with embedded quotes doubled, so boolean
// operators like AND or NEAR lose their special meaning.
func EscapeFTS(term string) string {
	fields := strings.Fields(term)
	if len(fields) == 0 {
		return `""`
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// SchemaSpec describes a database metadata request, used by both
// describe_database and list_tables.
type SchemaSpec struct {
	Database  string
	Size      *int
	NextToken string
}

// Request builds the upstream path and query parameters.
func (s SchemaSpec) Request(limits Limits) (string, url.Values, error) {
	if s.Database == "" {
		return "", nil, newError(KindInvalidArgument, "database is required")
	}
	size, err := limits.clampSize(s.Size)
	if err != nil {
		return "", nil, err
	}

	params := url.Values{}
	if size > 0 {
		params.Set("_size", strconv.Itoa(size))
	}
	if s.NextToken != "" {
		params.Set("_next", s.NextToken)
	}
	return databasePath(s.Database), params, nil
}

// TableSpec describes a table metadata request. The zero _size keeps the
// response to schema and metadata without data rows.
type TableSpec struct {
	Database string
	Table    string
}

// Request builds the upstream path and query parameters.
func (s TableSpec) Request() (string, url.Values, error) {
	if s.Database == "" {
		return "", nil, newError(KindInvalidArgument, "database is required")
	}
	if s.Table == "" {
		return "", nil, newError(KindInvalidArgument, "table is required")
	}
	params := url.Values{}
	params.Set("_size", "0")
	return tablePath(s.Database, s.Table), params, nil
}

// InstanceIndexRequest builds the request enumerating an instance's databases.
func InstanceIndexRequest() (string, url.Values) {
	return "/.json", url.Values{}
}

func databasePath(database string) string {
	return "/" + url.PathEscape(database) + ".json"
}

func tablePath(database, table string) string {
	return "/" + url.PathEscape(database) + "/" + url.PathEscape(table) + ".json"
}
