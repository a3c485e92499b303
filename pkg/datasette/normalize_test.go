package datasette

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeObjectRows(t *testing.T) {
	raw := []byte(`{
		"ok": true,
		"rows": [
			{"id": 1, "name": "alpha"},
			{"id": 2, "name": "beta"}
		],
		"truncated": false
	}`)

	res, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name"}, res.Columns, "column order recovered from the first row")
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "alpha", res.Rows[0]["name"])
	assert.Equal(t, float64(2), res.Rows[1]["id"])
	assert.False(t, res.Truncated)
	assert.Empty(t, res.NextToken)
}

func TestNormalizePositionalRows(t *testing.T) {
	raw := []byte(`{
		"columns": ["id", "name"],
		"rows": [[1, "alpha"], [2, "beta"]]
	}`)

	res, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "beta", res.Rows[1]["name"])
	assert.Equal(t, float64(1), res.Rows[0]["id"])
}

func TestNormalizeShapesAgree(t *testing.T) {
	objects := []byte(`{"rows": [{"id": 1, "name": "alpha"}], "columns": ["id", "name"]}`)
	arrays := []byte(`{"rows": [[1, "alpha"]], "columns": ["id", "name"]}`)

	fromObjects, err := Normalize(objects)
	require.NoError(t, err)
	fromArrays, err := Normalize(arrays)
	require.NoError(t, err)

	assert.Equal(t, fromObjects.Rows, fromArrays.Rows)
	assert.Equal(t, fromObjects.Columns, fromArrays.Columns)
}

func TestNormalizeScalarRows(t *testing.T) {
	// Single-column results can come back as bare scalars per row.
	raw := []byte(`{"rows": [[1]], "columns": ["1"]}`)
	res, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, float64(1), res.Rows[0]["1"])

	raw = []byte(`{"rows": [42, 43], "columns": ["answer"]}`)
	res, err = Normalize(raw)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, float64(43), res.Rows[1]["answer"])
}

func TestNormalizeBareArray(t *testing.T) {
	raw := []byte(`[{"id": 7, "name": "solo"}]`)
	res, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name"}, res.Columns)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "solo", res.Rows[0]["name"])
	assert.False(t, res.Truncated, "bare arrays carry no cursor")
}

func TestNormalizeBareScalarArray(t *testing.T) {
	res, err := Normalize([]byte(`[1, 2, 3]`))
	require.NoError(t, err)

	assert.Equal(t, []string{"value"}, res.Columns)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, float64(2), res.Rows[1]["value"])
}

func TestNormalizePagination(t *testing.T) {
	raw := []byte(`{"rows": [{"id": 1}], "next": "0,100"}`)
	res, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "0,100", res.NextToken, "cursor preserved byte for byte")
	assert.True(t, res.Truncated, "a cursor always implies truncation")

	raw = []byte(`{"rows": [{"id": 1}], "next": null}`)
	res, err = Normalize(raw)
	require.NoError(t, err)
	assert.Empty(t, res.NextToken)
	assert.False(t, res.Truncated)
}

func TestNormalizeTruncatedWithoutCursor(t *testing.T) {
	raw := []byte(`{"rows": [{"id": 1}], "truncated": true}`)
	res, err := Normalize(raw)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Empty(t, res.NextToken)
}

func TestNormalizeUpstreamError(t *testing.T) {
	raw := []byte(`{"ok": false, "error": "no such table: missing", "status": 400}`)
	_, err := Normalize(raw)
	require.Error(t, err)
	assert.Equal(t, KindQuery, KindOf(err))
	assert.Contains(t, err.Error(), "no such table: missing")
}

func TestNormalizeEmptyResult(t *testing.T) {
	res, err := Normalize([]byte(`{"rows": [], "columns": ["id"]}`))
	require.NoError(t, err)
	assert.NotNil(t, res.Rows, "rows render as [] not null")
	assert.Empty(t, res.Rows)
	assert.Equal(t, []string{"id"}, res.Columns)
}

func TestNormalizeTrace(t *testing.T) {
	raw := []byte(`{"rows": [], "_trace": {"request_duration_ms": 1.5}}`)
	res, err := Normalize(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"request_duration_ms": 1.5}`, string(res.Trace))
}

func TestNormalizeGarbage(t *testing.T) {
	_, err := Normalize([]byte(``))
	require.Error(t, err)
	assert.Equal(t, KindUpstreamUnavailable, KindOf(err))

	_, err = Normalize([]byte(`[not json`))
	require.Error(t, err)
	assert.Equal(t, KindUpstreamUnavailable, KindOf(err))
}

func TestObjectKeys(t *testing.T) {
	keys, err := ObjectKeys([]byte(`{"zeta": 1, "alpha": {"nested": true}, "mid": [1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, keys, "document order, not sorted")

	_, err = ObjectKeys([]byte(`[1, 2]`))
	require.Error(t, err)
}
