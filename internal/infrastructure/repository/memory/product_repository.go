package memory

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mrops-br/products-service/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ domain.ProductRepository = (*ProductRepository)(nil)

// ProductRepository is an in-memory implementation of domain.ProductRepository
type ProductRepository struct {
	mu       sync.RWMutex
	products map[int64]*domain.Product
	nextID   int64
	now      func() time.Time
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewProductRepository creates a new in-memory product repository
func NewProductRepository(tracer trace.Tracer, logger *slog.Logger) *ProductRepository {
	return &ProductRepository{
		products: make(map[int64]*domain.Product),
		nextID:   1,
		now:      time.Now,
		tracer:   tracer,
		logger:   logger,
	}
}

// Save stores a copy of the product, assigning the next id to new products
func (r *ProductRepository) Save(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Save")
	defer span.End()

	if product == nil {
		span.RecordError(domain.ErrNilProduct)
		span.SetStatus(codes.Error, "Nil product")
		return nil, domain.ErrNilProduct
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := product.Clone()
	if stored.IsNew() {
		stored.ID = r.nextID
	} else if existing, ok := r.products[stored.ID]; ok && stored.CreatedAt.IsZero() {
		stored.CreatedAt = existing.CreatedAt
	}
	if stored.ID >= r.nextID {
		r.nextID = stored.ID + 1
	}
	stored.Touch(r.now())

	r.products[stored.ID] = stored

	span.SetAttributes(
		attribute.Int64("product.id", stored.ID),
		attribute.String("product.barcode_id", stored.BarcodeID),
	)

	r.logger.DebugContext(ctx, "Product saved in repository",
		slog.Int64("product_id", stored.ID),
		slog.String("barcode_id", stored.BarcodeID),
	)

	span.SetStatus(codes.Ok, "Product saved")
	return stored.Clone(), nil
}

// FindAll retrieves all products ordered by id
func (r *ProductRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.FindAll")
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	products := make([]*domain.Product, 0, len(r.products))
	for _, id := range r.sortedIDs() {
		products = append(products, r.products[id].Clone())
	}

	span.SetAttributes(attribute.Int("product.count", len(products)))

	r.logger.DebugContext(ctx, "Products retrieved from repository",
		slog.Int("count", len(products)),
	)

	span.SetStatus(codes.Ok, "Products retrieved")
	return products, nil
}

// FindOne retrieves a product by id
func (r *ProductRepository) FindOne(ctx context.Context, id int64) (*domain.Product, bool, error) {
	_, span := r.tracer.Start(ctx, "ProductRepository.FindOne")
	defer span.End()

	span.SetAttributes(attribute.Int64("product.id", id))

	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	span.SetAttributes(attribute.Bool("product.found", ok))
	if !ok {
		span.SetStatus(codes.Ok, "Product not found")
		return nil, false, nil
	}

	span.SetStatus(codes.Ok, "Product retrieved")
	return product.Clone(), true, nil
}

// FindOneByBarcodeID retrieves the product with the given barcode. When more
// than one product shares a barcode the lowest id wins.
func (r *ProductRepository) FindOneByBarcodeID(ctx context.Context, barcodeID string) (*domain.Product, bool, error) {
	_, span := r.tracer.Start(ctx, "ProductRepository.FindOneByBarcodeID")
	defer span.End()

	span.SetAttributes(attribute.String("product.barcode_id", barcodeID))

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.sortedIDs() {
		if p := r.products[id]; p.BarcodeID == barcodeID {
			span.SetAttributes(attribute.Bool("product.found", true))
			span.SetStatus(codes.Ok, "Product retrieved")
			return p.Clone(), true, nil
		}
	}

	span.SetAttributes(attribute.Bool("product.found", false))
	span.SetStatus(codes.Ok, "Product not found")
	return nil, false, nil
}

// Delete removes a product by id
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Delete")
	defer span.End()

	span.SetAttributes(attribute.Int64("product.id", id))

	r.mu.Lock()
	defer r.mu.Unlock()

	_, existed := r.products[id]
	delete(r.products, id)

	r.logger.DebugContext(ctx, "Product deleted from repository",
		slog.Int64("product_id", id),
		slog.Bool("existed", existed),
	)

	span.SetStatus(codes.Ok, "Product deleted")
	return nil
}

// sortedIDs must be called with mu held
func (r *ProductRepository) sortedIDs() []int64 {
	ids := make([]int64, 0, len(r.products))
	for id := range r.products {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
