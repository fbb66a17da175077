package cleaner

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"productprep/internal/table"
)

// StripHTML returns the rendered text of an HTML fragment with runs of
// whitespace collapsed. Plain text comes back unchanged apart from spacing.
func StripHTML(s string) (string, error) {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " "), nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return "", err
	}
	doc.Find("script,style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

func stripHTMLColumn(t *table.Table, col string) error {
	idx := t.Index(col)
	for i, row := range t.Rows {
		s, ok := row[idx].(string)
		if !ok {
			continue
		}
		out, err := StripHTML(s)
		if err != nil {
			return fmt.Errorf("strip_html %s row %d: %w", col, i, err)
		}
		if out == "" {
			row[idx] = nil
			continue
		}
		row[idx] = out
	}
	return nil
}
