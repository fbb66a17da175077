package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"productprep/internal/config"
	"productprep/internal/table"
)

func (r *Runner) printf(format string, args ...any) {
	if r.Stdout == nil {
		return
	}
	_, _ = fmt.Fprintf(r.Stdout, format, args...)
}

func (r *Runner) preview(cfg config.Pipeline, t *table.Table) {
	if r.Stdout == nil {
		return
	}
	if err := table.WriteHead(r.Stdout, t, cfg.Output.PreviewRows); err != nil {
		r.Logger.Warn("preview failed", zap.Error(err))
	}
}

// printInfo prints per-column kind and non-null counts.
func (r *Runner) printInfo(t *table.Table) {
	kinds := table.InferKinds(t)
	r.printf("\nColumns (%d rows):\n", t.Len())
	for j, c := range t.Columns {
		nonNull := 0
		for _, row := range t.Rows {
			if row[j] != nil {
				nonNull++
			}
		}
		r.printf("  %-24s %-8s %d non-null\n", c, kinds[j], nonNull)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
