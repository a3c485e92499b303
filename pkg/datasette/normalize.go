package datasette

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Result is the uniform tool-facing query result. Whatever row encoding the
// upstream returned, rows are maps keyed by column name and columns preserve
// upstream order.
type Result struct {
	Rows      []map[string]any `json:"rows"`
	Columns   []string         `json:"columns"`
	Truncated bool             `json:"truncated"`
	NextToken string           `json:"next_token,omitempty"`
	Trace     json.RawMessage  `json:"trace,omitempty"`
}

// envelope mirrors the fields of the upstream response wrapper we consume.
type envelope struct {
	Rows      json.RawMessage `json:"rows"`
	Columns   []string        `json:"columns"`
	Next      *string         `json:"next"`
	Truncated bool            `json:"truncated"`
	OK        *bool           `json:"ok"`
	Error     string          `json:"error"`
	Trace     json.RawMessage `json:"_trace"`
}

// Normalize reshapes an upstream result payload into a Result. It accepts
// the three row encodings the service produces: an envelope with rows as
// objects, an envelope with positional rows plus a column list (including
// bare scalar rows for single-column results), and a bare top-level array
// with no envelope. The variant never leaks past this function.
func Normalize(raw []byte) (*Result, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, newError(KindUpstreamUnavailable, "empty response body")
	}
	if trimmed[0] == '[' {
		return normalizeBareArray(trimmed)
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, wrapError(KindUpstreamUnavailable, err, "unexpected response structure")
	}
	if env.OK != nil && !*env.OK && env.Error != "" {
		return nil, newError(KindQuery, "datasette rejected the query: %s", env.Error)
	}

	res := &Result{
		Rows:    []map[string]any{},
		Columns: env.Columns,
		Trace:   env.Trace,
	}

	if len(env.Rows) > 0 && !bytes.Equal(bytes.TrimSpace(env.Rows), []byte("null")) {
		var rawRows []json.RawMessage
		if err := json.Unmarshal(env.Rows, &rawRows); err != nil {
			return nil, wrapError(KindUpstreamUnavailable, err, "unexpected rows structure")
		}
		for i, rawRow := range rawRows {
			row, err := normalizeRow(rawRow, env.Columns, res, i == 0)
			if err != nil {
				return nil, err
			}
			res.Rows = append(res.Rows, row)
		}
	}

	if env.Next != nil && *env.Next != "" {
		res.NextToken = *env.Next
		res.Truncated = true
	}
	if env.Truncated {
		res.Truncated = true
	}
	return res, nil
}

// normalizeRow converts one upstream row into a column-keyed map. For the
// first object-encoded row it also recovers column order from the document
// when the envelope carried no column list.
func normalizeRow(rawRow json.RawMessage, columns []string, res *Result, first bool) (map[string]any, error) {
	trimmed := bytes.TrimSpace(rawRow)
	if len(trimmed) == 0 {
		return nil, newError(KindUpstreamUnavailable, "empty row in response")
	}

	switch trimmed[0] {
	case '{':
		var row map[string]any
		if err := json.Unmarshal(trimmed, &row); err != nil {
			return nil, wrapError(KindUpstreamUnavailable, err, "unexpected row structure")
		}
		if first && len(res.Columns) == 0 {
			keys, err := ObjectKeys(trimmed)
			if err != nil {
				return nil, wrapError(KindUpstreamUnavailable, err, "unexpected row structure")
			}
			res.Columns = keys
		}
		return row, nil
	case '[':
		var values []any
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return nil, wrapError(KindUpstreamUnavailable, err, "unexpected row structure")
		}
		row := make(map[string]any, len(values))
		for i, v := range values {
			row[positionalColumn(columns, i)] = v
		}
		return row, nil
	default:
		// Bare scalar row: single-column result.
		var v any
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil, wrapError(KindUpstreamUnavailable, err, "unexpected row structure")
		}
		return map[string]any{positionalColumn(columns, 0): v}, nil
	}
}

// normalizeBareArray handles responses with no envelope: either an array of
// row objects or an array of scalar values. Such responses carry no
// pagination cursor.
func normalizeBareArray(raw []byte) (*Result, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, wrapError(KindUpstreamUnavailable, err, "unexpected response structure")
	}

	res := &Result{Rows: []map[string]any{}}
	for i, item := range items {
		row, err := normalizeRow(item, nil, res, i == 0)
		if err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, row)
	}
	if len(res.Columns) == 0 && len(res.Rows) > 0 {
		res.Columns = []string{positionalColumn(nil, 0)}
	}
	return res, nil
}

// positionalColumn names the i-th column, inventing a stable name when the
// upstream column list is missing or short.
func positionalColumn(columns []string, i int) string {
	if i < len(columns) {
		return columns[i]
	}
	if len(columns) == 0 && i == 0 {
		return "value"
	}
	return fmt.Sprintf("column_%d", i)
}

// ObjectKeys returns the keys of a JSON object in document order, which the
// standard map decoding discards.
func ObjectKeys(raw []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("not a JSON object")
	}

	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in object", keyTok)
		}
		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
