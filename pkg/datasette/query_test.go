package datasette

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestSQLSpecRequest(t *testing.T) {
	spec := SQLSpec{
		Database:    "fixtures",
		SQL:         "select * from facetable",
		Shape:       ShapeObjects,
		JSONColumns: []string{"tags", "meta"},
		Trace:       true,
		TimeLimitMS: 2000,
		Size:        intPtr(50),
		NextToken:   "0,20",
	}

	path, params, err := spec.Request(Limits{})
	require.NoError(t, err)

	assert.Equal(t, "/fixtures.json", path)
	assert.Equal(t, "select * from facetable", params.Get("sql"))
	assert.Equal(t, "objects", params.Get("_shape"))
	assert.Equal(t, []string{"tags", "meta"}, params["_json"], "repeated in caller order")
	assert.Equal(t, "on", params.Get("_trace"))
	assert.Equal(t, "2000", params.Get("_timelimit"))
	assert.Equal(t, "50", params.Get("_size"))
	assert.Equal(t, "0,20", params.Get("_next"), "cursor forwarded verbatim")
}

func TestSQLSpecRequestMinimal(t *testing.T) {
	path, params, err := SQLSpec{Database: "db", SQL: "select 1"}.Request(Limits{})
	require.NoError(t, err)

	assert.Equal(t, "/db.json", path)
	assert.Equal(t, "sql=select+1", params.Encode(), "no optional parameters leak in")
}

func TestSQLSpecRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		spec SQLSpec
	}{
		{"missing database", SQLSpec{SQL: "select 1"}},
		{"missing sql", SQLSpec{Database: "db"}},
		{"blank sql", SQLSpec{Database: "db", SQL: "   "}},
		{"bad shape", SQLSpec{Database: "db", SQL: "select 1", Shape: "tuples"}},
		{"negative timelimit", SQLSpec{Database: "db", SQL: "select 1", TimeLimitMS: -1}},
		{"zero size", SQLSpec{Database: "db", SQL: "select 1", Size: intPtr(0)}},
		{"negative size", SQLSpec{Database: "db", SQL: "select 1", Size: intPtr(-5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.spec.Request(Limits{})
			require.Error(t, err)
			assert.Equal(t, KindInvalidArgument, KindOf(err))
		})
	}
}

func TestClampSize(t *testing.T) {
	limits := Limits{MaxSize: 100}

	size, err := limits.clampSize(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, size, "absent size is forwarded as absent")

	size, err = limits.clampSize(intPtr(40))
	require.NoError(t, err)
	assert.Equal(t, 40, size)

	size, err = limits.clampSize(intPtr(5000))
	require.NoError(t, err)
	assert.Equal(t, 100, size, "oversized requests clamp to the cap")

	size, err = Limits{}.clampSize(intPtr(5000))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSize, size)
}

func TestSearchSpecRequest(t *testing.T) {
	spec := SearchSpec{
		Database: "content",
		Table:    "articles",
		Term:     "climate change",
		Columns:  []string{"title", "body"},
		Size:     intPtr(10),
	}

	path, params, err := spec.Request(Limits{})
	require.NoError(t, err)

	assert.Equal(t, "/content/articles.json", path)
	assert.Equal(t, `"climate" "change"`, params.Get("_search"), "term escaped to a literal phrase")
	assert.Equal(t, "raw", params.Get("_searchmode"), "search mode pinned so escaping is owned here")
	assert.Equal(t, []string{"title", "body"}, params["_col"])
	assert.Equal(t, "10", params.Get("_size"))
}

func TestSearchSpecRawMode(t *testing.T) {
	spec := SearchSpec{
		Database: "content",
		Table:    "articles",
		Term:     "climate AND policy NOT opinion",
		RawMode:  true,
	}

	_, params, err := spec.Request(Limits{})
	require.NoError(t, err)
	assert.Equal(t, "climate AND policy NOT opinion", params.Get("_search"), "raw mode passes the term through")
	assert.Equal(t, "raw", params.Get("_searchmode"))
}

func TestSearchSpecColumnScoped(t *testing.T) {
	spec := SearchSpec{
		Database: "content",
		Table:    "articles",
		Term:     "ocean",
		Column:   "title",
	}

	_, params, err := spec.Request(Limits{})
	require.NoError(t, err)
	assert.Equal(t, `"ocean"`, params.Get("_search_title"))
	assert.Empty(t, params.Get("_search"))
}

func TestSearchSpecValidation(t *testing.T) {
	tests := []struct {
		name string
		spec SearchSpec
	}{
		{"missing database", SearchSpec{Table: "t", Term: "x"}},
		{"missing table", SearchSpec{Database: "db", Term: "x"}},
		{"blank term", SearchSpec{Database: "db", Table: "t", Term: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.spec.Request(Limits{})
			require.Error(t, err)
			assert.Equal(t, KindInvalidArgument, KindOf(err))
		})
	}
}

func TestEscapeFTS(t *testing.T) {
	tests := []struct {
		term string
		want string
	}{
		{"hello", `"hello"`},
		{"hello world", `"hello" "world"`},
		{"  spaced   out  ", `"spaced" "out"`},
		{`say "hi"`, `"say" """hi"""`},
		{"", `""`},
		{"AND", `"AND"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EscapeFTS(tt.term), "term %q", tt.term)
	}
}

func TestSchemaSpecRequest(t *testing.T) {
	path, params, err := SchemaSpec{Database: "fixtures"}.Request(Limits{})
	require.NoError(t, err)
	assert.Equal(t, "/fixtures.json", path)
	assert.Empty(t, params.Encode())

	_, _, err = SchemaSpec{}.Request(Limits{})
	require.Error(t, err)
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestTableSpecRequest(t *testing.T) {
	path, params, err := TableSpec{Database: "fixtures", Table: "facetable"}.Request()
	require.NoError(t, err)
	assert.Equal(t, "/fixtures/facetable.json", path)
	assert.Equal(t, "0", params.Get("_size"), "schema only, no data rows")

	_, _, err = TableSpec{Database: "fixtures"}.Request()
	require.Error(t, err)
}

func TestPathEscaping(t *testing.T) {
	path, _, err := TableSpec{Database: "my db", Table: "odd/table"}.Request()
	require.NoError(t, err)
	assert.Equal(t, "/my%20db/odd%2Ftable.json", path)
}
