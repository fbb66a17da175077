// Package sales generates a reproducible synthetic sales history over a
// product catalogue.
package sales

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"productprep/internal/table"
)

// ErrNoProducts is returned when sales are requested for an empty catalogue.
var ErrNoProducts = errors.New("no products to sell")

const (
	DefaultSeed    int64 = 42
	DefaultCount         = 1000
	DefaultClients       = 100
	DefaultDays          = 365

	ColumnProductID = "product_id"
	ColumnClientID  = "client_id"
	ColumnSaleDate  = "sale_date"

	DateLayout = "2006-01-02"
)

// DefaultStart is the first day of the default sales window.
var DefaultStart = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

type Sale struct {
	ProductID int64
	ClientID  string
	Date      time.Time
}

// Synthesizer draws Count sales from a single source seeded with Seed.
// Every sale picks a product and a client uniformly with replacement and a
// day uniformly in [Start, Start+Days).
type Synthesizer struct {
	Seed    int64
	Count   int
	Clients int
	Start   time.Time
	Days    int
}

// Generate returns Count sales. The client pool is drawn first, then the
// sales, all from the same seeded source, so equal inputs give equal output.
func (s Synthesizer) Generate(productIDs []int64) ([]Sale, error) {
	switch {
	case s.Count < 0:
		return nil, fmt.Errorf("count must be >= 0, got %d", s.Count)
	case s.Count == 0:
		return []Sale{}, nil
	case len(productIDs) == 0:
		return nil, ErrNoProducts
	case s.Clients <= 0:
		return nil, fmt.Errorf("clients must be > 0, got %d", s.Clients)
	case s.Days <= 0:
		return nil, fmt.Errorf("days must be > 0, got %d", s.Days)
	}

	rng := rand.New(rand.NewSource(s.Seed))

	clients := make([]string, s.Clients)
	for i := range clients {
		id, err := uuid.NewRandomFromReader(rng)
		if err != nil {
			return nil, fmt.Errorf("client id: %w", err)
		}
		clients[i] = id.String()
	}

	start := truncateDay(s.Start)
	out := make([]Sale, s.Count)
	for i := range out {
		out[i] = Sale{
			ProductID: productIDs[rng.Intn(len(productIDs))],
			ClientID:  clients[rng.Intn(len(clients))],
			Date:      start.AddDate(0, 0, rng.Intn(s.Days)),
		}
	}
	return out, nil
}

// Table converts sales to a table with product_id, client_id and sale_date
// (YYYY-MM-DD) columns.
func Table(sales []Sale) *table.Table {
	t := table.New([]string{ColumnProductID, ColumnClientID, ColumnSaleDate})
	t.Rows = make([][]any, 0, len(sales))
	for _, s := range sales {
		t.Rows = append(t.Rows, []any{s.ProductID, s.ClientID, s.Date.Format(DateLayout)})
	}
	return t
}

// ProductIDs extracts the int64 values of column from t.
func ProductIDs(t *table.Table, column string) ([]int64, error) {
	vals, ok := t.Column(column)
	if !ok {
		return nil, fmt.Errorf("product id column %q not found", column)
	}
	ids := make([]int64, 0, len(vals))
	for i, v := range vals {
		id, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("row %d: product id %v is %T, want int64", i, v, v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
