package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"consumo/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a point lookup matches no row.
var ErrNotFound = errors.New("not found")

// SQLiteRepository is the single storage client for the application. It is
// constructed explicitly at process startup and closed on shutdown; it does
// not run migrations (see RunMigrations).
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- Clients ---

func (r *SQLiteRepository) CreateClient(ctx context.Context, name string) (core.Client, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO clients (name) VALUES (?)`, name)
	if err != nil {
		return core.Client{}, fmt.Errorf("create client: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Client{}, fmt.Errorf("client insert id: %w", err)
	}

	slog.InfoContext(ctx, "Client created", "id", id, "name", name)
	return core.Client{ID: id, Name: name}, nil
}

func (r *SQLiteRepository) ListClients(ctx context.Context) ([]core.Client, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []core.Client
	for rows.Next() {
		var c core.Client
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return clients, nil
}

// --- Products ---

func (r *SQLiteRepository) ListProducts(ctx context.Context) ([]core.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sku, description, term, unit_of_measure, list_price FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []core.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (r *SQLiteRepository) GetProductBySKU(ctx context.Context, sku string) (core.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, sku, description, term, unit_of_measure, list_price FROM products WHERE sku = ?`, sku)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Product{}, ErrNotFound
	}
	if err != nil {
		return core.Product{}, err
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (core.Product, error) {
	var p core.Product
	var term, uom sql.NullString
	var price sql.NullFloat64
	if err := row.Scan(&p.ID, &p.SKU, &p.Description, &term, &uom, &price); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Product{}, err
		}
		return core.Product{}, fmt.Errorf("scan product: %w", err)
	}
	p.Term = term.String
	p.UnitOfMeasure = uom.String
	p.ListPrice = price.Float64
	return p, nil
}

// ImportProducts inserts every product whose SKU is not already present,
// in a single transaction committed once at the end. Re-running the same
// import is a no-op for existing SKUs.
func (r *SQLiteRepository) ImportProducts(ctx context.Context, products []core.Product) (created, skipped int, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for _, p := range products {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM products WHERE sku = ?)`, p.SKU).Scan(&exists); err != nil {
			return 0, 0, fmt.Errorf("check sku %s: %w", p.SKU, err)
		}
		if exists {
			skipped++
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO products (sku, description, term, unit_of_measure, list_price) VALUES (?, ?, ?, ?, ?)`,
			p.SKU, p.Description, p.Term, p.UnitOfMeasure, p.ListPrice); err != nil {
			return 0, 0, fmt.Errorf("insert product %s: %w", p.SKU, err)
		}
		created++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Products imported", "created", created, "skipped", skipped)
	return created, skipped, nil
}

// --- Services ---

func (r *SQLiteRepository) CreateService(ctx context.Context, name, serviceType string) (core.Service, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO services (name, service_type) VALUES (?, ?)`, name, serviceType)
	if err != nil {
		return core.Service{}, fmt.Errorf("create service: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Service{}, fmt.Errorf("service insert id: %w", err)
	}

	slog.InfoContext(ctx, "Service created", "id", id, "name", name, "service_type", serviceType)
	return core.Service{ID: id, Name: name, ServiceType: serviceType}, nil
}

func (r *SQLiteRepository) ListServices(ctx context.Context) ([]core.Service, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(service_type, '') FROM services ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var services []core.Service
	for rows.Next() {
		var s core.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.ServiceType); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return services, nil
}

func (r *SQLiteRepository) GetService(ctx context.Context, id int64) (core.Service, error) {
	var s core.Service
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(service_type, '') FROM services WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.ServiceType)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Service{}, ErrNotFound
	}
	if err != nil {
		return core.Service{}, fmt.Errorf("get service %d: %w", id, err)
	}
	return s, nil
}

func (r *SQLiteRepository) ListServiceClients(ctx context.Context, serviceID int64) ([]core.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name
		FROM service_clients sc
		JOIN clients c ON c.id = sc.client_id
		WHERE sc.service_id = ?
		ORDER BY c.id`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list service clients: %w", err)
	}
	defer rows.Close()

	var clients []core.Client
	for rows.Next() {
		var c core.Client
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan service client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service clients: %w", err)
	}
	return clients, nil
}

// ReplaceServiceClients swaps the service's entire membership for the
// submitted set in one transaction: delete all rows, then re-insert.
// Submitted ids that match no client are skipped silently.
func (r *SQLiteRepository) ReplaceServiceClients(ctx context.Context, serviceID int64, clientIDs []int64) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM services WHERE id = ?)`, serviceID).Scan(&exists); err != nil {
		return fmt.Errorf("check service %d: %w", serviceID, err)
	}
	if !exists {
		return ErrNotFound
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin membership replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM service_clients WHERE service_id = ?`, serviceID); err != nil {
		return fmt.Errorf("clear membership: %w", err)
	}

	for _, clientID := range clientIDs {
		// INSERT ... SELECT skips ids with no matching client; OR IGNORE
		// collapses duplicates in the submission.
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO service_clients (service_id, client_id)
			SELECT ?, id FROM clients WHERE id = ?`, serviceID, clientID); err != nil {
			return fmt.Errorf("add client %d to service %d: %w", clientID, serviceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit membership replace: %w", err)
	}

	slog.InfoContext(ctx, "Service membership replaced", "service_id", serviceID, "submitted", len(clientIDs))
	return nil
}

// --- Consumptions ---

func (r *SQLiteRepository) CreateConsumption(ctx context.Context, c core.Consumption) (core.Consumption, error) {
	var serviceID sql.NullInt64
	if c.ServiceID != nil {
		serviceID = sql.NullInt64{Int64: *c.ServiceID, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO consumptions (month, quantity, client_id, product_id, service_id)
		VALUES (?, ?, ?, ?, ?)`,
		c.Month, c.Quantity, c.ClientID, c.ProductID, serviceID)
	if err != nil {
		return core.Consumption{}, fmt.Errorf("create consumption: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Consumption{}, fmt.Errorf("consumption insert id: %w", err)
	}
	c.ID = id

	slog.InfoContext(ctx, "Consumption recorded",
		"id", id, "month", c.Month, "quantity", c.Quantity,
		"client_id", c.ClientID, "product_id", c.ProductID)
	return c, nil
}

// ListLatestConsumptions returns the most recent rows by id descending,
// joined with the names the home page renders.
func (r *SQLiteRepository) ListLatestConsumptions(ctx context.Context, limit int) ([]core.ConsumptionDetail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT co.id, co.month, co.quantity, co.client_id, co.product_id, co.service_id,
		       cl.name, p.sku, COALESCE(s.name, '')
		FROM consumptions co
		JOIN clients cl ON cl.id = co.client_id
		JOIN products p ON p.id = co.product_id
		LEFT JOIN services s ON s.id = co.service_id
		ORDER BY co.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list latest consumptions: %w", err)
	}
	defer rows.Close()

	return collectConsumptionDetails(rows)
}

// ListConsumptionsForClient is the explicit replacement for lazy
// client->consumptions traversal.
func (r *SQLiteRepository) ListConsumptionsForClient(ctx context.Context, clientID int64) ([]core.ConsumptionDetail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT co.id, co.month, co.quantity, co.client_id, co.product_id, co.service_id,
		       cl.name, p.sku, COALESCE(s.name, '')
		FROM consumptions co
		JOIN clients cl ON cl.id = co.client_id
		JOIN products p ON p.id = co.product_id
		LEFT JOIN services s ON s.id = co.service_id
		WHERE co.client_id = ?
		ORDER BY co.id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list consumptions for client %d: %w", clientID, err)
	}
	defer rows.Close()

	return collectConsumptionDetails(rows)
}

func collectConsumptionDetails(rows *sql.Rows) ([]core.ConsumptionDetail, error) {
	var details []core.ConsumptionDetail
	for rows.Next() {
		var d core.ConsumptionDetail
		var serviceID sql.NullInt64
		if err := rows.Scan(&d.ID, &d.Month, &d.Quantity, &d.ClientID, &d.ProductID,
			&serviceID, &d.ClientName, &d.ProductSKU, &d.ServiceName); err != nil {
			return nil, fmt.Errorf("scan consumption: %w", err)
		}
		if serviceID.Valid {
			id := serviceID.Int64
			d.ServiceID = &id
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consumptions: %w", err)
	}
	return details, nil
}
