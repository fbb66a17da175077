package table

import (
	"fmt"
	"io"
	"text/tabwriter"
	"unicode/utf8"
)

const previewCellWidth = 32

// WriteHead prints the first n rows as an aligned text grid, followed by the
// table shape. Long cells are cut to keep the grid readable.
func WriteHead(w io.Writer, t *Table, n int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprint(tw, "#")
	for _, c := range t.Columns {
		fmt.Fprintf(tw, "\t%s", c)
	}
	fmt.Fprintln(tw)

	for i, r := range t.Rows {
		if i >= n {
			break
		}
		fmt.Fprintf(tw, "%d", i)
		for _, v := range r {
			s := Format(v)
			if v == nil {
				s = "NaN"
			}
			fmt.Fprintf(tw, "\t%s", cut(s, previewCellWidth))
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "[%d rows x %d columns]\n", len(t.Rows), len(t.Columns))
	return err
}

func cut(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
