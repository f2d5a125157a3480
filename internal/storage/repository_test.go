package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"consumo/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ccsp_data.db")
	if err := RunMigrations(dbPath); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	repo, err := NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestCreateAndListClients(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	c, err := repo.CreateClient(ctx, "Acme")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if c.ID == 0 {
		t.Fatalf("expected generated id")
	}

	clients, err := repo.ListClients(ctx)
	if err != nil {
		t.Fatalf("list clients: %v", err)
	}
	if len(clients) != 1 || clients[0].Name != "Acme" {
		t.Fatalf("unexpected clients: %+v", clients)
	}
}

func TestDuplicateClientNameRejected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateClient(ctx, "Acme"); err != nil {
		t.Fatalf("create client: %v", err)
	}
	if _, err := repo.CreateClient(ctx, "Acme"); err == nil {
		t.Fatalf("expected unique constraint error for duplicate name")
	}

	clients, err := repo.ListClients(ctx)
	if err != nil {
		t.Fatalf("list clients: %v", err)
	}
	if len(clients) != 1 {
		t.Fatalf("duplicate insert must not add a row, got %d", len(clients))
	}
}

func TestImportProductsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	batch := []core.Product{
		{SKU: "RH001", Description: "Support", Term: "12mo", UnitOfMeasure: "Each", ListPrice: 100.50},
		{SKU: "RH002", Description: "Platform", Term: "36mo", UnitOfMeasure: "Core", ListPrice: 2500},
	}

	created, skipped, err := repo.ImportProducts(ctx, batch)
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if created != 2 || skipped != 0 {
		t.Fatalf("first import created=%d skipped=%d", created, skipped)
	}

	created, skipped, err = repo.ImportProducts(ctx, batch)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if created != 0 || skipped != 2 {
		t.Fatalf("second import created=%d skipped=%d", created, skipped)
	}

	products, err := repo.ListProducts(ctx)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products after re-import, got %d", len(products))
	}

	p, err := repo.GetProductBySKU(ctx, "RH001")
	if err != nil {
		t.Fatalf("get by sku: %v", err)
	}
	if p.ListPrice != 100.50 || p.Description != "Support" {
		t.Fatalf("unexpected product: %+v", p)
	}

	if _, err := repo.GetProductBySKU(ctx, "NOPE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReplaceServiceClients(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	acme, _ := repo.CreateClient(ctx, "Acme")
	globex, _ := repo.CreateClient(ctx, "Globex")
	svc, err := repo.CreateService(ctx, "Gold", "premium")
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	// Unknown ids are skipped silently; duplicates collapse.
	ids := []int64{acme.ID, globex.ID, acme.ID, 9999}
	if err := repo.ReplaceServiceClients(ctx, svc.ID, ids); err != nil {
		t.Fatalf("replace membership: %v", err)
	}

	members, err := repo.ListServiceClients(ctx, svc.ID)
	if err != nil {
		t.Fatalf("list membership: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d: %+v", len(members), members)
	}

	// Re-running the same submission is idempotent.
	if err := repo.ReplaceServiceClients(ctx, svc.ID, ids); err != nil {
		t.Fatalf("replace membership again: %v", err)
	}
	members, _ = repo.ListServiceClients(ctx, svc.ID)
	if len(members) != 2 {
		t.Fatalf("idempotent replace changed membership: %+v", members)
	}

	// Shrinking to a single client replaces, not appends.
	if err := repo.ReplaceServiceClients(ctx, svc.ID, []int64{globex.ID}); err != nil {
		t.Fatalf("shrink membership: %v", err)
	}
	members, _ = repo.ListServiceClients(ctx, svc.ID)
	if len(members) != 1 || members[0].Name != "Globex" {
		t.Fatalf("expected only Globex, got %+v", members)
	}

	// Empty set clears membership entirely.
	if err := repo.ReplaceServiceClients(ctx, svc.ID, nil); err != nil {
		t.Fatalf("clear membership: %v", err)
	}
	members, _ = repo.ListServiceClients(ctx, svc.ID)
	if len(members) != 0 {
		t.Fatalf("expected empty membership, got %+v", members)
	}

	if err := repo.ReplaceServiceClients(ctx, 4242, ids); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown service, got %v", err)
	}
}

func TestGetServiceNotFound(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.GetService(context.Background(), 77); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConsumptionLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	acme, _ := repo.CreateClient(ctx, "Acme")
	if _, _, err := repo.ImportProducts(ctx, []core.Product{
		{SKU: "RH001", Description: "Support", Term: "12mo", UnitOfMeasure: "Each", ListPrice: 100.50},
	}); err != nil {
		t.Fatalf("import products: %v", err)
	}
	product, _ := repo.GetProductBySKU(ctx, "RH001")
	svc, _ := repo.CreateService(ctx, "Gold", "")

	first, err := repo.CreateConsumption(ctx, core.Consumption{
		Month: "2024-12", Quantity: 3, ClientID: acme.ID, ProductID: product.ID,
	})
	if err != nil {
		t.Fatalf("create consumption: %v", err)
	}

	second, err := repo.CreateConsumption(ctx, core.Consumption{
		Month: "2025-01", Quantity: 5, ClientID: acme.ID, ProductID: product.ID, ServiceID: &svc.ID,
	})
	if err != nil {
		t.Fatalf("create consumption with service: %v", err)
	}

	latest, err := repo.ListLatestConsumptions(ctx, 10)
	if err != nil {
		t.Fatalf("list latest: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(latest))
	}
	// Descending by id: the newest row comes first.
	if latest[0].ID != second.ID || latest[1].ID != first.ID {
		t.Fatalf("unexpected order: %+v", latest)
	}
	got := latest[0]
	if got.ClientName != "Acme" || got.ProductSKU != "RH001" || got.ServiceName != "Gold" ||
		got.Month != "2025-01" || got.Quantity != 5 {
		t.Fatalf("unexpected detail row: %+v", got)
	}
	if latest[1].ServiceName != "" || latest[1].ServiceID != nil {
		t.Fatalf("expected no service on first row: %+v", latest[1])
	}

	// Limit applies after descending sort.
	top, err := repo.ListLatestConsumptions(ctx, 1)
	if err != nil {
		t.Fatalf("list latest limit 1: %v", err)
	}
	if len(top) != 1 || top[0].ID != second.ID {
		t.Fatalf("unexpected limited listing: %+v", top)
	}

	forClient, err := repo.ListConsumptionsForClient(ctx, acme.ID)
	if err != nil {
		t.Fatalf("list for client: %v", err)
	}
	if len(forClient) != 2 || forClient[0].ID != first.ID {
		t.Fatalf("unexpected client listing: %+v", forClient)
	}
}

func TestConsumptionForeignKeysEnforced(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.CreateConsumption(ctx, core.Consumption{
		Month: "2025-01", Quantity: 1, ClientID: 123, ProductID: 456,
	})
	if err == nil {
		t.Fatalf("expected foreign key violation")
	}

	rows, err := repo.ListLatestConsumptions(ctx, 10)
	if err != nil {
		t.Fatalf("list latest: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("failed insert must leave table unchanged, got %+v", rows)
	}
}

func TestRunMigrationsIsRepeatable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ccsp_data.db")
	if err := RunMigrations(dbPath); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		t.Fatalf("second run: %v", err)
	}
}
