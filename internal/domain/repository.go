package domain

import (
	"context"
)

// ProductRepository defines the contract for product storage.
//
// Lookups report absence through the boolean result instead of an error.
// Returned products are copies; mutating them never changes the store.
type ProductRepository interface {
	// Save inserts the product when its ID is zero and upserts it by ID otherwise.
	Save(ctx context.Context, product *Product) (*Product, error)
	// FindAll returns every stored product ordered by ID.
	FindAll(ctx context.Context) ([]*Product, error)
	FindOne(ctx context.Context, id int64) (*Product, bool, error)
	FindOneByBarcodeID(ctx context.Context, barcodeID string) (*Product, bool, error)
	// Delete removes the product. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id int64) error
}
