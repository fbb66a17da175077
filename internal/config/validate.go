package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is a dotted config path such as
// "storage.db.host".
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var (
	datasetRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
	identRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
)

// ValidatePipeline checks a defaulted pipeline and returns every issue found.
// It never stops at the first problem.
func ValidatePipeline(p Pipeline) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, a ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	switch p.Source.Kind {
	case "file":
		if p.Source.File == nil || strings.TrimSpace(p.Source.File.Path) == "" {
			add(SeverityError, "source.file.path", "required when source.kind=file")
		}
	case "http":
		if p.Source.HTTP == nil || strings.TrimSpace(p.Source.HTTP.URL) == "" {
			add(SeverityError, "source.http.url", "required when source.kind=http")
		}
	case "kaggle":
		if p.Source.Kaggle == nil || !datasetRe.MatchString(p.Source.Kaggle.Dataset) {
			add(SeverityError, "source.kaggle.dataset", "must look like <owner>/<name>")
		}
	default:
		add(SeverityError, "source.kind", "unsupported kind %q (want file, http or kaggle)", p.Source.Kind)
	}
	if p.Source.Timeout != "" {
		if _, err := time.ParseDuration(p.Source.Timeout); err != nil {
			add(SeverityError, "source.timeout", "invalid duration %q", p.Source.Timeout)
		}
	}

	switch p.Parser.Kind {
	case "csv", "json":
	default:
		add(SeverityError, "parser.kind", "unsupported kind %q (want csv or json)", p.Parser.Kind)
	}

	switch p.Clean.PriceErrors {
	case "fail", "null":
	default:
		add(SeverityError, "clean.price_errors", "must be fail or null, got %q", p.Clean.PriceErrors)
	}

	if p.Stages.EnrichEnabled() && strings.TrimSpace(p.Enrich.NameColumn) == "" {
		add(SeverityError, "enrich.name_column", "required when the enrich stage is enabled")
	}

	if p.Stages.SalesEnabled() {
		if !p.Stages.IndexEnabled() {
			add(SeverityError, "stages.index", "the sales stage needs product identifiers; enable index")
		}
		if p.Sales.Count < 0 {
			add(SeverityError, "sales.count", "must be >= 0")
		}
		if p.Sales.Clients <= 0 {
			add(SeverityError, "sales.clients", "must be > 0")
		}
		if p.Sales.Days <= 0 {
			add(SeverityError, "sales.days", "must be > 0")
		}
		if _, err := p.SalesStart(); err != nil {
			add(SeverityError, "sales.start_date", "must be YYYY-MM-DD, got %q", p.Sales.StartDate)
		}
	}

	if p.Stages.CustomersEnabled() && strings.TrimSpace(p.Customers.Path) == "" {
		add(SeverityError, "customers.path", "required when the customers stage is enabled")
	}

	if p.Runtime.EnrichWorkers > 64 {
		add(SeverityWarning, "runtime.enrich_workers", "%d workers is far more than a classifier needs", p.Runtime.EnrichWorkers)
	}

	if p.Stages.PersistEnabled() {
		out = append(out, validateStorage(p.Storage)...)
	}
	return out
}

func validateStorage(s Storage) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, a ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	switch s.Kind {
	case "postgres", "mssql":
		if s.DB.DSN == "" {
			if s.DB.Host == "" {
				add(SeverityError, "storage.db.host", "required when storage.db.dsn is empty")
			}
			if s.DB.Name == "" {
				add(SeverityError, "storage.db.name", "required when storage.db.dsn is empty")
			}
			if s.DB.User == "" {
				add(SeverityWarning, "storage.db.user", "empty; relying on driver defaults")
			}
		}
	case "sqlite":
		if s.DB.DSN == "" && s.DB.Path == "" {
			add(SeverityError, "storage.db.path", "required for sqlite when storage.db.dsn is empty")
		}
		if s.DB.CreateDatabase {
			add(SeverityWarning, "storage.db.create_database", "ignored for sqlite; the file is created on open")
		}
	default:
		add(SeverityError, "storage.kind", "unsupported kind %q (want postgres, mssql or sqlite)", s.Kind)
	}

	if s.DB.Schema != "" && !identRe.MatchString(s.DB.Schema) {
		add(SeverityError, "storage.db.schema", "invalid identifier %q", s.DB.Schema)
	}
	for _, t := range []struct{ path, name string }{
		{"storage.tables.products", s.Tables.Products},
		{"storage.tables.sales", s.Tables.Sales},
		{"storage.tables.customers", s.Tables.Customers},
	} {
		if !identRe.MatchString(t.name) {
			add(SeverityError, t.path, "invalid table name %q", t.name)
		}
	}
	return out
}
