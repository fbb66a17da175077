// Package json reads product records stored as JSON into a table.
//
// Accepted layouts:
//   - a root array of objects
//   - a root object holding an array of objects in one of its fields (envelope);
//     the first such field is used and the fields after it are skipped
//   - a single root object (one record)
//   - newline-delimited objects, alone or trailing any of the above
//
// Columns follow the order in which keys are first seen. Scalars are kept as
// their text form so the cleaner treats JSON and CSV input alike.
package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"productprep/internal/config"
	"productprep/internal/table"
)

type ReaderOptions struct {
	// HeaderMap renames keys before they become columns.
	HeaderMap map[string]string
	// ArrayJoinSeparator flattens arrays of scalars into one cell.
	ArrayJoinSeparator string
}

// OptionsFrom reads ReaderOptions out of a config option bag.
func OptionsFrom(opt config.Options) ReaderOptions {
	sep := opt.String("array_join_separator", ",")
	if sep == "" {
		sep = ","
	}
	return ReaderOptions{
		HeaderMap:          opt.StringMap("header_map"),
		ArrayJoinSeparator: sep,
	}
}

// record keeps an object's keys in document order.
type record struct {
	keys   []string
	values map[string]any
}

type collector struct {
	opt     ReaderOptions
	columns []string
	index   map[string]int
	rows    []record
}

func (c *collector) add(r record) {
	for i, k := range r.keys {
		if mapped, ok := c.opt.HeaderMap[k]; ok && mapped != "" {
			r.values[mapped] = r.values[k]
			delete(r.values, k)
			k = mapped
			r.keys[i] = k
		}
		if _, seen := c.index[k]; !seen {
			c.index[k] = len(c.columns)
			c.columns = append(c.columns, k)
		}
	}
	c.rows = append(c.rows, r)
}

func (c *collector) table() *table.Table {
	t := table.New(c.columns)
	for _, r := range c.rows {
		row := make([]any, len(c.columns))
		for _, k := range r.keys {
			row[c.index[k]] = cell(r.values[k], c.opt.ArrayJoinSeparator)
		}
		t.Append(row)
	}
	return t
}

// ReadTable decodes r into a table. Cancellation is checked per record.
func ReadTable(ctx context.Context, r io.Reader, opt ReaderOptions) (*table.Table, error) {
	if opt.ArrayJoinSeparator == "" {
		opt.ArrayJoinSeparator = ","
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	c := &collector{opt: opt, index: map[string]int{}}

	tok, err := dec.Token()
	if err == io.EOF {
		return nil, errors.New("json: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("json: read first token: %w", err)
	}

	switch tok {
	case json.Delim('['):
		if err := readArray(ctx, dec, c); err != nil {
			return nil, err
		}
	case json.Delim('{'):
		if err := readRootObject(ctx, dec, c); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("json: unsupported root token %v (want object or array)", tok)
	}

	// Trailing newline-delimited objects.
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("json: record %d: %w", len(c.rows)+1, err)
		}
		if tok != json.Delim('{') {
			return nil, fmt.Errorf("json: record %d: want object, got %v", len(c.rows)+1, tok)
		}
		rec, err := readObjectBody(dec)
		if err != nil {
			return nil, fmt.Errorf("json: record %d: %w", len(c.rows)+1, err)
		}
		c.add(rec)
	}

	if len(c.columns) == 0 {
		return nil, errors.New("json: no records")
	}
	return c.table(), nil
}

// ReadFile opens path and decodes it with ReadTable.
func ReadFile(ctx context.Context, path string, opt ReaderOptions) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTable(ctx, f, opt)
}

// readArray consumes the elements and the closing ']' of an array of
// objects. Null elements are skipped.
func readArray(ctx context.Context, dec *json.Decoder, c *collector) error {
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return err
		}
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: record %d: %w", len(c.rows)+1, err)
		}
		if tok == nil {
			continue
		}
		if tok != json.Delim('{') {
			return fmt.Errorf("json: record %d: array element is not an object", len(c.rows)+1)
		}
		rec, err := readObjectBody(dec)
		if err != nil {
			return fmt.Errorf("json: record %d: %w", len(c.rows)+1, err)
		}
		c.add(rec)
	}
	return expectDelim(dec, ']')
}

// readRootObject handles the envelope and single-record layouts. The
// opening '{' has been consumed.
func readRootObject(ctx context.Context, dec *json.Decoder, c *collector) error {
	single := record{values: map[string]any{}}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return err
		}
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: value of %q: %w", key, err)
		}
		if tok == json.Delim('[') {
			arr, n, err := readMaybeRecords(ctx, dec, c)
			if err != nil {
				return err
			}
			if n > 0 {
				// Envelope: skip the remaining fields.
				for dec.More() {
					if _, err := readKey(dec); err != nil {
						return err
					}
					if _, err := readValue(dec); err != nil {
						return err
					}
				}
				return expectDelim(dec, '}')
			}
			single.keys = append(single.keys, key)
			single.values[key] = arr
			continue
		}
		v, err := valueFrom(dec, tok)
		if err != nil {
			return fmt.Errorf("json: value of %q: %w", key, err)
		}
		single.keys = append(single.keys, key)
		single.values[key] = v
	}
	if err := expectDelim(dec, '}'); err != nil {
		return err
	}
	c.add(single)
	return nil
}

// readMaybeRecords reads an array inside the root object. An array of
// objects is collected as records and their count returned; any other array
// is returned as a value. Mixing both is an error.
func readMaybeRecords(ctx context.Context, dec *json.Decoder, c *collector) ([]any, int, error) {
	var (
		arr []any
		n   int
	)
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		tok, err := dec.Token()
		if err != nil {
			return nil, 0, fmt.Errorf("json: read array element: %w", err)
		}
		if tok == nil {
			continue
		}
		if tok == json.Delim('{') {
			if len(arr) > 0 {
				return nil, 0, errors.New("json: array mixes objects and values")
			}
			rec, err := readObjectBody(dec)
			if err != nil {
				return nil, 0, fmt.Errorf("json: record %d: %w", len(c.rows)+1, err)
			}
			c.add(rec)
			n++
			continue
		}
		if n > 0 {
			return nil, 0, errors.New("json: array mixes objects and values")
		}
		v, err := valueFrom(dec, tok)
		if err != nil {
			return nil, 0, err
		}
		arr = append(arr, v)
	}
	return arr, n, expectDelim(dec, ']')
}

// readObjectBody reads the fields and the closing '}' of an object whose
// opening '{' has been consumed.
func readObjectBody(dec *json.Decoder) (record, error) {
	rec := record{values: map[string]any{}}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return record{}, err
		}
		v, err := readValue(dec)
		if err != nil {
			return record{}, fmt.Errorf("value of %q: %w", key, err)
		}
		if _, dup := rec.values[key]; !dup {
			rec.keys = append(rec.keys, key)
		}
		rec.values[key] = v
	}
	if err := expectDelim(dec, '}'); err != nil {
		return record{}, err
	}
	return rec, nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("json: read key: %w", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("json: object key not a string (got %T)", tok)
	}
	return key, nil
}

func readValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return valueFrom(dec, tok)
}

// valueFrom materializes the value starting with tok.
func valueFrom(dec *json.Decoder, tok json.Token) (any, error) {
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '{':
		rec, err := readObjectBody(dec)
		if err != nil {
			return nil, err
		}
		return rec.values, nil
	case '[':
		var arr []any
		for dec.More() {
			v, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if err := expectDelim(dec, ']'); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", d)
	}
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("json: read %q: %w", want, err)
	}
	if tok != want {
		return fmt.Errorf("json: expected %q, got %v", want, tok)
	}
	return nil
}

// cell converts a decoded JSON value into a table cell: nil and empty
// strings become nil, scalars their text, arrays of scalars a joined
// string and objects compact JSON.
func cell(v any, sep string) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if x == "" {
			return nil
		}
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	case []any:
		parts := make([]string, 0, len(x))
		for _, it := range x {
			switch it.(type) {
			case nil:
				continue
			case []any, map[string]any:
				return compact(x)
			}
			if c := cell(it, sep); c != nil {
				parts = append(parts, fmt.Sprint(c))
			}
		}
		if len(parts) == 0 {
			return nil
		}
		return strings.Join(parts, sep)
	default:
		return compact(x)
	}
}

func compact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
