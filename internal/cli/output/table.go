package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"
)

// Tabler is implemented by results with their own table layout.
type Tabler interface {
	Table() *Table
}

// TableFormatter formats data as an aligned table.
type TableFormatter struct {
	NoHeaders bool
}

// Format renders data. Lists become one column, App stores become
// KEY/VALUE rows, App dumps PERSONA/KEY/VALUE rows. Anything else is
// printed as a single value.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch v := data.(type) {
	case *Table:
		return v.RenderWithOptions(w, f.NoHeaders)
	case Tabler:
		return v.Table().RenderWithOptions(w, f.NoHeaders)
	case []string:
		t := &Table{Headers: []string{"NAME"}}
		for _, s := range v {
			t.AddRow(s)
		}
		return t.RenderWithOptions(w, f.NoHeaders)
	case map[string]any:
		t := &Table{Headers: []string{"KEY", "VALUE"}}
		for _, k := range sortedKeys(v) {
			t.AddRow(k, Cell(v[k]))
		}
		return t.RenderWithOptions(w, f.NoHeaders)
	case map[string]map[string]any:
		t := &Table{Headers: []string{"PERSONA", "KEY", "VALUE"}}
		for _, p := range sortedKeys(v) {
			for _, k := range sortedKeys(v[p]) {
				t.AddRow(p, k, Cell(v[p][k]))
			}
		}
		return t.RenderWithOptions(w, f.NoHeaders)
	default:
		_, err := fmt.Fprintln(w, Cell(data))
		return err
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Cell renders one value: strings as-is, numbers without exponent
// where possible, everything else as compact JSON.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	}
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
		writeRow(tw, t.Headers)
	}
	for _, row := range t.Rows {
		writeRow(tw, row)
	}
	return tw.Flush()
}

func writeRow(w io.Writer, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			io.WriteString(w, "\t")
		}
		io.WriteString(w, cell)
	}
	io.WriteString(w, "\n")
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}
