package output

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"slices"
	"strings"
	"text/tabwriter"
	"time"
)

// Tabular is implemented by CLI result types that know their own columns.
type Tabular interface {
	Table() *Table
}

// TableFormatter formats data as aligned columns.
type TableFormatter struct {
	NoHeaders bool
}

// Format renders data. Supported inputs are Table, Tabular, string maps
// (one row per key, sorted), string slices (one line each) and scalars.
// Anything else is rendered as YAML.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch v := data.(type) {
	case nil:
		return nil
	case *Table:
		return v.RenderWithOptions(w, f.NoHeaders)
	case Table:
		return v.RenderWithOptions(w, f.NoHeaders)
	case Tabular:
		return v.Table().RenderWithOptions(w, f.NoHeaders)
	case map[string]any:
		return mapTable(v).RenderWithOptions(w, f.NoHeaders)
	case []string:
		for _, s := range v {
			if _, err := fmt.Fprintln(w, s); err != nil {
				return err
			}
		}
		return nil
	}

	if s, ok := scalar(data); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	return (&YAMLFormatter{}).Format(w, data)
}

func mapTable(m map[string]any) *Table {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	t := &Table{Headers: []string{"KEY", "VALUE"}}
	for _, k := range keys {
		t.AddRow(k, Cell(m[k]))
	}
	return t
}

// scalar renders values that fit on one line without quoting.
func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(x), true
	case time.Time:
		return x.Format(time.RFC3339Nano), true
	case *big.Int:
		return x.String(), true
	case fmt.Stringer:
		return x.String(), true
	default:
		return "", false
	}
}

// Cell formats a value for a table cell. Nested values are rendered as
// compact JSON; absent values as "-".
func Cell(v any) string {
	if v == nil {
		return "-"
	}
	if t, ok := v.(time.Time); ok && t.IsZero() {
		return "-"
	}
	if s, ok := scalar(v); ok {
		if s == "" {
			return "-"
		}
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table with options.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if !noHeaders && len(t.Headers) > 0 {
		if _, err := fmt.Fprintln(tw, strings.Join(t.Headers, "\t")); err != nil {
			return err
		}
	}
	for _, row := range t.Rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// SetHeaders sets the table headers.
func (t *Table) SetHeaders(headers ...string) {
	t.Headers = headers
}
