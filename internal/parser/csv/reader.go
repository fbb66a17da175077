package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"productprep/internal/config"
	"productprep/internal/table"
)

// ReaderOptions mirrors the parser.options keys of the pipeline config.
type ReaderOptions struct {
	Comma      rune
	LazyQuotes bool
	TrimSpace  bool
	// Encoding names the source charset: "utf-8" (default), "latin1",
	// "iso-8859-1", "windows-1252", "utf-16".
	Encoding string
	// HeaderMap renames raw header cells before any other processing.
	HeaderMap map[string]string
}

// OptionsFrom reads ReaderOptions out of a config option bag.
func OptionsFrom(opt config.Options) ReaderOptions {
	return ReaderOptions{
		Comma:      opt.Rune("comma", ','),
		LazyQuotes: opt.Bool("lazy_quotes", true),
		TrimSpace:  opt.Bool("trim_space", true),
		Encoding:   opt.String("encoding", "utf-8"),
		HeaderMap:  opt.StringMap("header_map"),
	}
}

// ReadTable parses a CSV with a header row into a table.
//
// Header cells keep their original spelling (the cleaner normalizes them),
// except that a UTF-8 BOM is stripped and empty cells are named
// "Unnamed: <i>". Empty data cells become nil. Rows shorter or longer than
// the header are padded or truncated. Cancellation is checked per record.
func ReadTable(ctx context.Context, src io.Reader, opt ReaderOptions) (*table.Table, error) {
	dec, err := decoderFor(opt.Encoding)
	if err != nil {
		return nil, err
	}
	if dec != nil {
		src = transform.NewReader(src, dec.NewDecoder())
	}

	cr := csv.NewReader(src)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	line := 1
	hdr, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("csv: empty input")
		}
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	cols := make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		if mapped, ok := opt.HeaderMap[h]; ok {
			h = mapped
		}
		if strings.TrimSpace(h) == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		cols[i] = h
	}

	t := table.New(cols)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := cr.Read()
		line++
		if err == io.EOF {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}

		row := make([]any, len(cols))
		for i := range cols {
			if i >= len(rec) {
				break
			}
			v := rec[i]
			if opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			if v != "" {
				row[i] = v
			}
		}
		t.Append(row)
	}
}

func decoderFor(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin1", "latin-1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "utf-16", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	default:
		return nil, fmt.Errorf("csv: unsupported encoding %q", name)
	}
}
