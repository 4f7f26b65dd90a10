package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNilProduct = errors.New("product is nil")
)

// Product represents the product entity
type Product struct {
	ID          int64           `db:"id" json:"id"`
	BarcodeID   string          `db:"barcode_id" json:"barcode_id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// IsNew reports whether the product has not been assigned an id by a store yet
func (p *Product) IsNew() bool {
	return p.ID == 0
}

// Clone returns a copy detached from the receiver
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Touch stamps the audit timestamps the way every store does on save.
// CreatedAt is kept when already set.
func (p *Product) Touch(now time.Time) {
	now = now.UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}
