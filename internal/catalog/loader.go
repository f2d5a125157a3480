// Package catalog loads the product price list from a CSV export. It is an
// administrative one-shot operation, idempotent across runs by SKU.
package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"consumo/internal/core"
)

// Required header columns of the price-list export.
var requiredColumns = []string{"SKU", "SKU Description", "Term", "Unit of Measure", "List Price"}

// Store is the narrow storage surface the loader needs.
type Store interface {
	ImportProducts(ctx context.Context, products []core.Product) (created, skipped int, err error)
}

type Loader struct {
	store Store
}

func NewLoader(store Store) *Loader {
	return &Loader{store: store}
}

// Result reports the outcome of one loader run.
type Result struct {
	Created int
	Skipped int
}

// LoadFile parses the CSV at path and imports its products in one batch.
// A missing file or any malformed row aborts the run before anything is
// written; rows committed by earlier runs are untouched either way.
func (l *Loader) LoadFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()

	products, err := parseCatalog(f)
	if err != nil {
		return Result{}, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	created, skipped, err := l.store.ImportProducts(ctx, products)
	if err != nil {
		return Result{}, fmt.Errorf("import products: %w", err)
	}

	slog.InfoContext(ctx, "Catalog loaded", "file", path, "created", created, "skipped", skipped)
	return Result{Created: created, Skipped: skipped}, nil
}

func parseCatalog(r io.Reader) ([]core.Product, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var products []core.Product
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		price, err := strconv.ParseFloat(strings.TrimSpace(record[cols["List Price"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid list price %q", line, record[cols["List Price"]])
		}

		p := core.Product{
			SKU:           strings.TrimSpace(record[cols["SKU"]]),
			Description:   strings.TrimSpace(record[cols["SKU Description"]]),
			Term:          strings.TrimSpace(record[cols["Term"]]),
			UnitOfMeasure: strings.TrimSpace(record[cols["Unit of Measure"]]),
			ListPrice:     price,
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		products = append(products, p)
	}

	return products, nil
}
