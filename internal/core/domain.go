package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Client is an organization consuming products, tracked by a unique name.
	Client struct {
		ID   int64
		Name string
	}

	// Product is a catalog item identified by its SKU. Products are created
	// only by the catalog loader, never through the web surface.
	Product struct {
		ID            int64
		SKU           string
		Description   string
		Term          string
		UnitOfMeasure string
		ListPrice     float64
	}

	// Service is a named grouping of clients, independent of products.
	Service struct {
		ID          int64
		Name        string
		ServiceType string
	}

	// Consumption records monthly usage of a product by a client, optionally
	// tagged with a service. ServiceID is nil when no service applies.
	Consumption struct {
		ID        int64
		Month     string // YYYY-MM
		Quantity  int64
		ClientID  int64
		ProductID int64
		ServiceID *int64
	}

	// ConsumptionDetail is a consumption row joined with the names the
	// listing pages render. ServiceName is empty when no service is set.
	ConsumptionDetail struct {
		Consumption
		ClientName  string
		ProductSKU  string
		ServiceName string
	}
)

var (
	ErrInvalidMonth = errors.New("month must be formatted YYYY-MM")
	ErrInvalidRef   = errors.New("invalid reference id")
	ErrEmptyName    = errors.New("empty name")
	ErrEmptySKU     = errors.New("empty sku")
)

func (c Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.SKU) == "" {
		return ErrEmptySKU
	}
	if strings.TrimSpace(p.Description) == "" {
		return errors.New("empty description")
	}
	return nil
}

func (s Service) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (c Consumption) Validate() error {
	if err := ValidateMonth(c.Month); err != nil {
		return err
	}
	if c.ClientID <= 0 || c.ProductID <= 0 {
		return ErrInvalidRef
	}
	if c.ServiceID != nil && *c.ServiceID <= 0 {
		return ErrInvalidRef
	}
	return nil
}

// ValidateMonth checks the YYYY-MM format used by consumption records.
func ValidateMonth(month string) error {
	if _, err := time.Parse("2006-01", month); err != nil {
		return ErrInvalidMonth
	}
	return nil
}
