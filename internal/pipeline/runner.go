// Package pipeline runs the product preparation stages in their fixed order:
// load, clean, index, enrich, export, sales, customers, persist.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"productprep/internal/cleaner"
	"productprep/internal/config"
	"productprep/internal/enricher"
	"productprep/internal/metrics"
	csvio "productprep/internal/parser/csv"
	jsonio "productprep/internal/parser/json"
	"productprep/internal/sales"
	"productprep/internal/source"
	"productprep/internal/storage"
	"productprep/internal/table"
)

// Resolver turns a configured source into a local CSV path.
type Resolver interface {
	Resolve(ctx context.Context, src config.Source) (string, error)
}

type Runner struct {
	// storage-agnostic factory seam
	NewRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)

	// NewResolver builds the dataset resolver for a run.
	NewResolver func(cfg config.Pipeline, logger *zap.Logger) Resolver

	// Stdout receives the human-readable previews and summaries.
	Stdout io.Writer
	Logger *zap.Logger
}

func NewDefaultRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		NewRepository: func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
			return storage.New(ctx, cfg)
		},
		NewResolver: func(cfg config.Pipeline, logger *zap.Logger) Resolver {
			return source.NewLoader(cfg.DownloadTimeout(), logger)
		},
		Stdout: os.Stdout,
		Logger: logger,
	}
}

// Result holds what a run produced.
type Result struct {
	Products    *table.Table
	Sales       *table.Table
	Customers   *table.Table
	CleanReport cleaner.Report
	EnrichStats enricher.Stats
	// Files lists the exported CSV paths in write order.
	Files []string
	// Loaded maps table name to the row count verified after loading.
	Loaded map[string]int64
}

// Run executes every enabled stage once. The first failing stage aborts the
// run and its error is returned with the stage name.
func (r *Runner) Run(ctx context.Context, cfg config.Pipeline) (Result, error) {
	res := Result{Loaded: map[string]int64{}}

	if issues := config.ValidatePipeline(cfg); config.HasErrors(issues) {
		var msgs []string
		for _, is := range issues {
			if is.Severity == config.SeverityError {
				msgs = append(msgs, is.String())
			}
		}
		return res, fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}

	st := cfg.Stages
	steps := []struct {
		name    string
		enabled bool
		run     func(context.Context) error
	}{
		{"load", true, func(ctx context.Context) error { return r.load(ctx, cfg, &res) }},
		{"clean", st.CleanEnabled(), func(context.Context) error { return r.clean(cfg, &res) }},
		{"index", st.IndexEnabled(), func(context.Context) error { return r.index(&res) }},
		{"enrich", st.EnrichEnabled(), func(ctx context.Context) error { return r.enrich(ctx, cfg, &res) }},
		{"export", st.ExportEnabled(), func(context.Context) error { return r.export(cfg, &res) }},
		{"sales", st.SalesEnabled(), func(context.Context) error { return r.sales(cfg, &res) }},
		{"customers", st.CustomersEnabled(), func(ctx context.Context) error { return r.customers(ctx, cfg, &res) }},
		{"persist", st.PersistEnabled(), func(ctx context.Context) error { return r.persist(ctx, cfg, &res) }},
	}

	for _, s := range steps {
		if !s.enabled {
			r.Logger.Debug("stage skipped", zap.String("stage", s.name))
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		start := time.Now()
		err := s.run(ctx)
		took := time.Since(start)
		metrics.RecordStep(s.name, err, took)
		if err != nil {
			r.Logger.Error("stage failed", zap.String("stage", s.name), zap.Error(err))
			return res, fmt.Errorf("%s: %w", s.name, err)
		}
		r.Logger.Info("stage done", zap.String("stage", s.name), zap.Duration("took", took.Truncate(time.Millisecond)))
	}
	return res, nil
}

func (r *Runner) load(ctx context.Context, cfg config.Pipeline, res *Result) error {
	path, err := r.NewResolver(cfg, r.Logger).Resolve(ctx, cfg.Source)
	if err != nil {
		return err
	}
	t, err := readDataset(ctx, cfg.Parser, path)
	if err != nil {
		return err
	}
	res.Products = t
	metrics.RecordRows("read", t.Len())
	r.Logger.Info("dataset loaded", zap.String("path", path), zap.Int("rows", t.Len()), zap.Int("columns", len(t.Columns)))

	r.printf("\nData preview:\n")
	r.preview(cfg, t)
	r.printInfo(t)
	return nil
}

func readDataset(ctx context.Context, p config.Parser, path string) (*table.Table, error) {
	switch p.Kind {
	case "json":
		return jsonio.ReadFile(ctx, path, jsonio.OptionsFrom(p.Options))
	default:
		return csvio.ReadFile(ctx, path, csvio.OptionsFrom(p.Options))
	}
}

func (r *Runner) clean(cfg config.Pipeline, res *Result) error {
	out, rep, err := cleaner.Clean(res.Products, cleaner.Options{
		PriceColumn:  cfg.Clean.PriceColumn,
		RatingColumn: cfg.Clean.RatingColumn,
		PriceErrors:  cleaner.PricePolicy(cfg.Clean.PriceErrors),
		StripHTML:    cfg.Clean.StripHTML,
	})
	if err != nil {
		return err
	}
	res.Products = out
	res.CleanReport = rep
	metrics.RecordRows("duplicates", rep.Duplicates)
	metrics.RecordRows("cleaned", out.Len())
	if err := rep.Print(r.Stdout); err != nil {
		return err
	}

	if cfg.Stages.ExportEnabled() {
		return r.writeCSV(cfg, cfg.Output.CleanedFile, out, res)
	}
	return nil
}

func (r *Runner) index(res *Result) error {
	return table.Reindex(res.Products, "id")
}

func (r *Runner) enrich(ctx context.Context, cfg config.Pipeline, res *Result) error {
	out, st, err := enricher.Enrich(ctx, res.Products, cfg.Enrich.NameColumn, cfg.Runtime.EnrichWorkers)
	if err != nil {
		return err
	}
	res.Products = out
	res.EnrichStats = st
	metrics.RecordRows("enriched", st.Rows)

	r.printf("\nCategory distribution:\n")
	for _, c := range enricher.Sorted(st.Categories) {
		r.printf("  %-24s %d\n", c.Label, c.N)
	}
	r.printf("\nPractice distribution:\n")
	for _, c := range enricher.Sorted(st.Practices) {
		r.printf("  %-24s %d\n", c.Label, c.N)
	}
	r.printf("\nEnriched products:\n")
	r.preview(cfg, out)
	return nil
}

// export writes the enriched product table. The cleaned table is written
// by the clean stage, before indexing adds the id column.
func (r *Runner) export(cfg config.Pipeline, res *Result) error {
	if !cfg.Stages.EnrichEnabled() {
		return nil
	}
	return r.writeCSV(cfg, cfg.Output.EnrichedFile, res.Products, res)
}

func (r *Runner) sales(cfg config.Pipeline, res *Result) error {
	ids, err := sales.ProductIDs(res.Products, "id")
	if err != nil {
		return err
	}
	start, err := cfg.SalesStart()
	if err != nil {
		return fmt.Errorf("start_date: %w", err)
	}
	syn := sales.Synthesizer{
		Seed:    cfg.Sales.Seed,
		Count:   cfg.Sales.Count,
		Clients: cfg.Sales.Clients,
		Start:   start,
		Days:    cfg.Sales.Days,
	}
	generated, err := syn.Generate(ids)
	if err != nil {
		return err
	}
	res.Sales = sales.Table(generated)
	metrics.RecordRows("sales", res.Sales.Len())

	r.printf("\nSynthetic sales:\n")
	r.preview(cfg, res.Sales)
	if cfg.Stages.ExportEnabled() {
		return r.writeCSV(cfg, cfg.Output.SalesFile, res.Sales, res)
	}
	return nil
}

// customers reads the passthrough customer file and, when exporting,
// copies it byte-for-byte into the output directory.
func (r *Runner) customers(ctx context.Context, cfg config.Pipeline, res *Result) error {
	t, err := csvio.ReadFile(ctx, cfg.Customers.Path, csvio.ReaderOptions{Comma: ',', LazyQuotes: true})
	if err != nil {
		return err
	}
	res.Customers = t
	metrics.RecordRows("customers", t.Len())

	r.printf("\nCustomers:\n")
	r.preview(cfg, t)
	if !cfg.Stages.ExportEnabled() {
		return nil
	}
	dst := filepath.Join(cfg.Output.Dir, cfg.Output.ClientsFile)
	if err := copyFile(cfg.Customers.Path, dst); err != nil {
		return err
	}
	res.Files = append(res.Files, dst)
	r.printf("Customers copied to: %s\n", dst)
	return nil
}

func (r *Runner) persist(ctx context.Context, cfg config.Pipeline, res *Result) error {
	scfg, err := StorageConfig(cfg)
	if err != nil {
		return err
	}
	repo, err := r.NewRepository(ctx, scfg)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Storage.Kind, err)
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	type load struct {
		spec storage.TableSpec
		t    *table.Table
	}
	var loads []load
	if res.Products != nil {
		loads = append(loads, load{storage.SpecFor(cfg.Storage.Tables.Products, cfg.Storage.DB.Schema, res.Products), res.Products})
	}
	if res.Sales != nil {
		loads = append(loads, load{storage.SpecFor(cfg.Storage.Tables.Sales, cfg.Storage.DB.Schema, res.Sales), res.Sales})
	}
	if res.Customers != nil {
		loads = append(loads, load{storage.TextSpec(cfg.Storage.Tables.Customers, cfg.Storage.DB.Schema, res.Customers), res.Customers})
	}

	for _, l := range loads {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := repo.ReplaceTable(ctx, l.spec, storage.Rows(l.spec, l.t))
		if err != nil {
			return err
		}
		count, err := repo.CountRows(ctx, l.spec.Name)
		if err != nil {
			return err
		}
		if count != int64(l.t.Len()) {
			return fmt.Errorf("table %s: loaded %d rows, found %d", l.spec.Name, l.t.Len(), count)
		}
		res.Loaded[l.spec.Name] = count
		metrics.RecordRows("loaded", int(n))
		r.Logger.Info("table loaded", zap.String("table", l.spec.Name), zap.Int64("rows", count))
		r.printf("Table %s loaded: %d rows\n", l.spec.Name, count)
	}
	return nil
}

// StorageConfig assembles the storage.Config for cfg, building the DSN from
// its parts when no explicit DSN is given.
func StorageConfig(cfg config.Pipeline) (storage.Config, error) {
	db := cfg.Storage.DB
	if cfg.Storage.Kind == "sqlite" && db.DSN == "" && db.Path == "" {
		return storage.Config{}, fmt.Errorf("storage.db.path is required for sqlite")
	}
	dsn, err := config.BuildDSN(cfg.Storage.Kind, db)
	if err != nil {
		return storage.Config{}, err
	}
	sc := storage.Config{
		Kind:      cfg.Storage.Kind,
		DSN:       dsn,
		Schema:    db.Schema,
		BatchSize: cfg.Runtime.BatchSize,
	}
	if db.CreateDatabase && cfg.Storage.Kind != "sqlite" {
		admin, err := config.AdminDSN(cfg.Storage.Kind, db)
		if err != nil {
			return storage.Config{}, err
		}
		sc.CreateDatabase = true
		sc.AdminDSN = admin
		sc.Database = config.DatabaseName(cfg.Storage.Kind, db)
	}
	return sc, nil
}

func (r *Runner) writeCSV(cfg config.Pipeline, name string, t *table.Table, res *Result) error {
	path := filepath.Join(cfg.Output.Dir, name)
	if err := csvio.WriteFile(path, t); err != nil {
		return err
	}
	res.Files = append(res.Files, path)
	r.printf("Exported %d rows to: %s\n", t.Len(), path)
	return nil
}
