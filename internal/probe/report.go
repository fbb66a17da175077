package probe

import (
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"productprep/internal/config"
)

// WriteReport prints one line per column followed by the guesses.
func WriteReport(w io.Writer, r Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tNORMALIZED\tTYPE\tNON-EMPTY\tEXAMPLE")
	for _, c := range r.Columns {
		name := c.Name
		if c.Placeholder {
			name = "(dropped)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\n", c.Raw, name, c.Type, c.NonEmpty, r.Rows, clip(c.Example, 40))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	suffix := ""
	if r.Truncated {
		suffix = " (sample truncated)"
	}
	_, err := fmt.Fprintf(w, "\n%d rows sampled%s\nname column:   %s\nprice column:  %s\nrating column: %s\n",
		r.Rows, suffix, orNone(r.NameColumn), orNone(r.PriceColumn), orNone(r.RatingColumn))
	return err
}

// WriteSuggestion writes the clean and enrich config sections for r as YAML.
func WriteSuggestion(w io.Writer, r Result) error {
	p := config.Pipeline{}
	p.ApplyDefaults()
	p = r.Suggest(p)

	doc := struct {
		Clean  config.Clean  `yaml:"clean"`
		Enrich config.Enrich `yaml:"enrich"`
	}{p.Clean, p.Enrich}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("probe: encode suggestion: %w", err)
	}
	return enc.Close()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
