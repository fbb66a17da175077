// Package config defines the pipeline configuration, its defaults, loading
// and validation.
package config

import (
	"time"
)

// Pipeline is the full description of one pipeline run.
type Pipeline struct {
	Job       string        `json:"job" yaml:"job"`
	Source    Source        `json:"source" yaml:"source"`
	Parser    Parser        `json:"parser" yaml:"parser"`
	Stages    Stages        `json:"stages" yaml:"stages"`
	Clean     Clean         `json:"clean" yaml:"clean"`
	Enrich    Enrich        `json:"enrich" yaml:"enrich"`
	Sales     Sales         `json:"sales" yaml:"sales"`
	Customers Customers     `json:"customers" yaml:"customers"`
	Output    Output        `json:"output" yaml:"output"`
	Storage   Storage       `json:"storage" yaml:"storage"`
	Runtime   RuntimeConfig `json:"runtime" yaml:"runtime"`
}

// Source describes where the raw product dataset comes from.
type Source struct {
	// Kind: "file" | "http" | "kaggle"
	Kind   string        `json:"kind" yaml:"kind"`
	File   *FileSource   `json:"file,omitempty" yaml:"file,omitempty"`
	HTTP   *HTTPSource   `json:"http,omitempty" yaml:"http,omitempty"`
	Kaggle *KaggleSource `json:"kaggle,omitempty" yaml:"kaggle,omitempty"`

	// CSVFile names the CSV inside a resolved dataset directory.
	CSVFile string `json:"csv_file" yaml:"csv_file"`
	// CacheDir receives downloads and extracted archives.
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`
	// Force re-downloads even when the cache is populated.
	Force bool `json:"force" yaml:"force"`
	// Timeout bounds a single download; Go duration syntax ("2m").
	Timeout string `json:"timeout" yaml:"timeout"`
}

type FileSource struct {
	Path string `json:"path" yaml:"path"`
}

type HTTPSource struct {
	URL string `json:"url" yaml:"url"`
}

type KaggleSource struct {
	// Dataset is "<owner>/<name>".
	Dataset  string `json:"dataset" yaml:"dataset"`
	Username string `json:"username" yaml:"username"`
	Key      string `json:"key" yaml:"key"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
}

type Parser struct {
	Kind    string  `json:"kind" yaml:"kind"`
	Options Options `json:"options" yaml:"options"`
}

// Stages toggles each pipeline stage. A nil pointer means "enabled".
type Stages struct {
	Clean     *bool `json:"clean,omitempty" yaml:"clean,omitempty"`
	Index     *bool `json:"index,omitempty" yaml:"index,omitempty"`
	Enrich    *bool `json:"enrich,omitempty" yaml:"enrich,omitempty"`
	Sales     *bool `json:"sales,omitempty" yaml:"sales,omitempty"`
	Customers *bool `json:"customers,omitempty" yaml:"customers,omitempty"`
	Export    *bool `json:"export,omitempty" yaml:"export,omitempty"`
	Persist   *bool `json:"persist,omitempty" yaml:"persist,omitempty"`
}

func enabled(b *bool) bool { return b == nil || *b }

func (s Stages) CleanEnabled() bool     { return enabled(s.Clean) }
func (s Stages) IndexEnabled() bool     { return enabled(s.Index) }
func (s Stages) EnrichEnabled() bool    { return enabled(s.Enrich) }
func (s Stages) SalesEnabled() bool     { return enabled(s.Sales) }
func (s Stages) CustomersEnabled() bool { return enabled(s.Customers) }
func (s Stages) ExportEnabled() bool    { return enabled(s.Export) }
func (s Stages) PersistEnabled() bool   { return enabled(s.Persist) }

type Clean struct {
	PriceColumn  string `json:"price_column" yaml:"price_column"`
	RatingColumn string `json:"rating_column" yaml:"rating_column"`
	// PriceErrors: "fail" (default) | "null"
	PriceErrors string   `json:"price_errors" yaml:"price_errors"`
	StripHTML   []string `json:"strip_html" yaml:"strip_html"`
}

type Enrich struct {
	NameColumn string `json:"name_column" yaml:"name_column"`
}

type Sales struct {
	Seed    int64 `json:"seed" yaml:"seed"`
	Count   int   `json:"count" yaml:"count"`
	Clients int   `json:"clients" yaml:"clients"`
	// StartDate is YYYY-MM-DD, inclusive.
	StartDate string `json:"start_date" yaml:"start_date"`
	Days      int    `json:"days" yaml:"days"`
}

type Customers struct {
	Path string `json:"path" yaml:"path"`
}

type Output struct {
	Dir          string `json:"dir" yaml:"dir"`
	CleanedFile  string `json:"cleaned_file" yaml:"cleaned_file"`
	EnrichedFile string `json:"enriched_file" yaml:"enriched_file"`
	SalesFile    string `json:"sales_file" yaml:"sales_file"`
	ClientsFile  string `json:"clients_file" yaml:"clients_file"`
	PreviewRows  int    `json:"preview_rows" yaml:"preview_rows"`
}

type Storage struct {
	// Kind: "postgres" | "mssql" | "sqlite"
	Kind   string   `json:"kind" yaml:"kind"`
	DB     DBConfig `json:"db" yaml:"db"`
	Tables Tables   `json:"tables" yaml:"tables"`
}

// DBConfig holds connection parameters. DSN, when set, wins over the parts.
// Every string is ${VAR}-expanded at load time.
type DBConfig struct {
	DSN            string `json:"dsn" yaml:"dsn"`
	Host           string `json:"host" yaml:"host"`
	Port           int    `json:"port" yaml:"port"`
	User           string `json:"user" yaml:"user"`
	Password       string `json:"password" yaml:"password"`
	Name           string `json:"name" yaml:"name"`
	Schema         string `json:"schema" yaml:"schema"`
	SSLMode        string `json:"sslmode" yaml:"sslmode"`
	Path           string `json:"path" yaml:"path"`
	CreateDatabase bool   `json:"create_database" yaml:"create_database"`
}

type Tables struct {
	Products  string `json:"products" yaml:"products"`
	Sales     string `json:"sales" yaml:"sales"`
	Customers string `json:"customers" yaml:"customers"`
}

// RuntimeConfig controls execution behavior.
type RuntimeConfig struct {
	EnrichWorkers int `json:"enrich_workers" yaml:"enrich_workers"`
	BatchSize     int `json:"batch_size" yaml:"batch_size"`
}

const (
	DefaultDataset   = "nikhilchadha1537/decathlon-web-scraped"
	DefaultCSVFile   = "Decathlon Apparel Data.csv"
	DefaultStartDate = "2023-01-01"
)

// ApplyDefaults fills every unset field with its default.
func (p *Pipeline) ApplyDefaults() {
	if p.Job == "" {
		p.Job = "productprep"
	}
	if p.Source.Kind == "" {
		p.Source.Kind = "kaggle"
	}
	if p.Source.Kind == "kaggle" && p.Source.Kaggle == nil {
		p.Source.Kaggle = &KaggleSource{}
	}
	if p.Source.Kaggle != nil && p.Source.Kaggle.Dataset == "" {
		p.Source.Kaggle.Dataset = DefaultDataset
	}
	if p.Source.CSVFile == "" {
		p.Source.CSVFile = DefaultCSVFile
	}
	if p.Source.CacheDir == "" {
		p.Source.CacheDir = ".cache/datasets"
	}
	if p.Parser.Kind == "" {
		p.Parser.Kind = "csv"
	}

	if p.Clean.PriceColumn == "" {
		p.Clean.PriceColumn = "sale_price"
	}
	if p.Clean.RatingColumn == "" {
		p.Clean.RatingColumn = "star_rating"
	}
	if p.Clean.PriceErrors == "" {
		p.Clean.PriceErrors = "fail"
	}
	if p.Enrich.NameColumn == "" {
		p.Enrich.NameColumn = "product_name"
	}

	if p.Sales.Seed == 0 {
		p.Sales.Seed = 42
	}
	if p.Sales.Count == 0 {
		p.Sales.Count = 1000
	}
	if p.Sales.Clients == 0 {
		p.Sales.Clients = 100
	}
	if p.Sales.StartDate == "" {
		p.Sales.StartDate = DefaultStartDate
	}
	if p.Sales.Days == 0 {
		p.Sales.Days = 365
	}

	if p.Customers.Path == "" {
		p.Customers.Path = "data/clients.csv"
	}

	if p.Output.Dir == "" {
		p.Output.Dir = "output"
	}
	if p.Output.CleanedFile == "" {
		p.Output.CleanedFile = "decathlon_cleaned.csv"
	}
	if p.Output.EnrichedFile == "" {
		p.Output.EnrichedFile = "decathlon_enriched.csv"
	}
	if p.Output.SalesFile == "" {
		p.Output.SalesFile = "ventes.csv"
	}
	if p.Output.ClientsFile == "" {
		p.Output.ClientsFile = "clients.csv"
	}
	if p.Output.PreviewRows == 0 {
		p.Output.PreviewRows = 5
	}

	if p.Storage.Kind == "" {
		p.Storage.Kind = "postgres"
	}
	if p.Storage.Tables.Products == "" {
		p.Storage.Tables.Products = "products"
	}
	if p.Storage.Tables.Sales == "" {
		p.Storage.Tables.Sales = "ventes"
	}
	if p.Storage.Tables.Customers == "" {
		p.Storage.Tables.Customers = "clients"
	}

	if p.Runtime.EnrichWorkers <= 0 {
		p.Runtime.EnrichWorkers = 1
	}
	if p.Runtime.BatchSize <= 0 {
		p.Runtime.BatchSize = 500
	}
}

// SalesStart parses Sales.StartDate as a UTC day.
func (p Pipeline) SalesStart() (time.Time, error) {
	return time.Parse("2006-01-02", p.Sales.StartDate)
}

// DownloadTimeout parses Source.Timeout, defaulting to five minutes.
func (p Pipeline) DownloadTimeout() time.Duration {
	if d, err := time.ParseDuration(p.Source.Timeout); err == nil && d > 0 {
		return d
	}
	return 5 * time.Minute
}
