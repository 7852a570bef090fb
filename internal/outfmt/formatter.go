package outfmt

import (
	"io"
	"strings"
	"text/tabwriter"
)

// Table writes aligned text columns.
type Table struct {
	tw *tabwriter.Writer
}

// NewTable starts a table on out with the given headers.
func NewTable(out io.Writer, headers ...string) *Table {
	t := &Table{tw: tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)}
	if len(headers) > 0 {
		t.Row(headers...)
	}
	return t
}

// Row writes one row. Tabs and newlines inside cells are flattened.
func (t *Table) Row(columns ...string) {
	cleaned := make([]string, len(columns))
	for i, col := range columns {
		cleaned[i] = strings.NewReplacer("\t", " ", "\n", " ").Replace(col)
	}
	_, _ = io.WriteString(t.tw, strings.Join(cleaned, "\t")+"\n")
}

// Flush writes buffered rows.
func (t *Table) Flush() error {
	return t.tw.Flush()
}
