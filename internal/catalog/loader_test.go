package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"consumo/internal/core"
)

type fakeStore struct {
	batches [][]core.Product
}

func (f *fakeStore) ImportProducts(ctx context.Context, products []core.Product) (int, int, error) {
	f.batches = append(f.batches, products)
	return len(products), 0, nil
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

const header = "SKU,SKU Description,Term,Unit of Measure,List Price\n"

func TestLoadFile(t *testing.T) {
	store := &fakeStore{}
	loader := NewLoader(store)

	path := writeCSV(t, header+
		"RH001,Support,12mo,Each,100.50\n"+
		"RH002,Platform,36mo,Core,2500\n")

	res, err := loader.LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Created != 2 || res.Skipped != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(store.batches) != 1 {
		t.Fatalf("expected a single batch commit, got %d", len(store.batches))
	}

	p := store.batches[0][0]
	if p.SKU != "RH001" || p.Description != "Support" || p.Term != "12mo" ||
		p.UnitOfMeasure != "Each" || p.ListPrice != 100.50 {
		t.Fatalf("unexpected product: %+v", p)
	}
}

func TestLoadFileMissing(t *testing.T) {
	loader := NewLoader(&fakeStore{})
	if _, err := loader.LoadFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadFileMalformedPriceAborts(t *testing.T) {
	store := &fakeStore{}
	loader := NewLoader(store)

	path := writeCSV(t, header+
		"RH001,Support,12mo,Each,100.50\n"+
		"RH002,Platform,36mo,Core,not-a-number\n")

	if _, err := loader.LoadFile(context.Background(), path); err == nil {
		t.Fatalf("expected error for malformed price")
	}
	// Nothing reaches the store when any row is malformed.
	if len(store.batches) != 0 {
		t.Fatalf("expected no import, got %d batches", len(store.batches))
	}
}

func TestLoadFileMissingColumn(t *testing.T) {
	store := &fakeStore{}
	loader := NewLoader(store)

	path := writeCSV(t, "SKU,SKU Description,Term,Unit of Measure\nRH001,Support,12mo,Each\n")
	if _, err := loader.LoadFile(context.Background(), path); err == nil {
		t.Fatalf("expected error for missing column")
	}
}

func TestLoadFileEmptySKUAborts(t *testing.T) {
	store := &fakeStore{}
	loader := NewLoader(store)

	path := writeCSV(t, header+",Support,12mo,Each,100.50\n")
	if _, err := loader.LoadFile(context.Background(), path); err == nil {
		t.Fatalf("expected error for empty sku")
	}
}
