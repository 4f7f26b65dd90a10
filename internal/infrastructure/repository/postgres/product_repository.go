package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mrops-br/products-service/internal/domain"
)

// The repository expects:
//
//	products(id bigserial primary key, barcode_id text, name text,
//	         description text, price numeric, created_at timestamptz,
//	         updated_at timestamptz)
const productsTable = "products"

var productColumns = []string{"id", "barcode_id", "name", "description", "price", "created_at", "updated_at"}

var _ domain.ProductRepository = (*ProductRepository)(nil)

// ProductRepository implements domain.ProductRepository on PostgreSQL.
type ProductRepository struct {
	txm *TxManager
	now func() time.Time
}

// NewProductRepository creates a new PostgreSQL product repository.
func NewProductRepository(txm *TxManager) *ProductRepository {
	return &ProductRepository{txm: txm, now: time.Now}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func returning() string {
	return "RETURNING " + strings.Join(productColumns, ", ")
}

// saveQuery inserts new products and upserts by id otherwise. created_at is
// never overwritten on conflict.
func saveQuery(p *domain.Product) squirrel.InsertBuilder {
	if p.IsNew() {
		return builder().
			Insert(productsTable).
			Columns(productColumns[1:]...).
			Values(p.BarcodeID, p.Name, p.Description, p.Price, p.CreatedAt, p.UpdatedAt).
			Suffix(returning())
	}

	return builder().
		Insert(productsTable).
		Columns(productColumns...).
		Values(p.ID, p.BarcodeID, p.Name, p.Description, p.Price, p.CreatedAt, p.UpdatedAt).
		Suffix("ON CONFLICT (id) DO UPDATE SET " +
			"barcode_id = EXCLUDED.barcode_id, " +
			"name = EXCLUDED.name, " +
			"description = EXCLUDED.description, " +
			"price = EXCLUDED.price, " +
			"updated_at = EXCLUDED.updated_at " +
			returning())
}

func selectQuery() squirrel.SelectBuilder {
	return builder().Select(productColumns...).From(productsTable)
}

func findOneQuery(id int64) squirrel.SelectBuilder {
	return selectQuery().Where(squirrel.Eq{"id": id}).Limit(1)
}

func findOneByBarcodeQuery(barcodeID string) squirrel.SelectBuilder {
	return selectQuery().Where(squirrel.Eq{"barcode_id": barcodeID}).OrderBy("id ASC").Limit(1)
}

func findAllQuery() squirrel.SelectBuilder {
	return selectQuery().OrderBy("id ASC")
}

func deleteQuery(id int64) squirrel.DeleteBuilder {
	return builder().Delete(productsTable).Where(squirrel.Eq{"id": id})
}

// Save inserts or upserts the product and returns the stored row.
func (r *ProductRepository) Save(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "ProductRepository.Save")
	defer span.End()

	if product == nil {
		return nil, domain.ErrNilProduct
	}

	p := product.Clone()
	p.Touch(r.now())

	sql, args, err := saveQuery(p).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var saved domain.Product
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &saved, sql, args...); err != nil {
		fail(span, err)
		return nil, fmt.Errorf("save product: %w", err)
	}

	span.SetAttributes(attribute.Int64("product.id", saved.ID))
	return &saved, nil
}

// FindAll retrieves all products ordered by id.
func (r *ProductRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "ProductRepository.FindAll")
	defer span.End()

	sql, args, err := findAllQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	products := make([]*domain.Product, 0)
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &products, sql, args...); err != nil {
		fail(span, err)
		return nil, fmt.Errorf("list products: %w", err)
	}

	span.SetAttributes(attribute.Int("product.count", len(products)))
	return products, nil
}

// FindOne retrieves a product by id.
func (r *ProductRepository) FindOne(ctx context.Context, id int64) (*domain.Product, bool, error) {
	ctx, span := tracer.Start(ctx, "ProductRepository.FindOne")
	defer span.End()

	span.SetAttributes(attribute.Int64("product.id", id))
	return r.getOne(ctx, span, findOneQuery(id))
}

// FindOneByBarcodeID retrieves the lowest-id product carrying barcodeID.
func (r *ProductRepository) FindOneByBarcodeID(ctx context.Context, barcodeID string) (*domain.Product, bool, error) {
	ctx, span := tracer.Start(ctx, "ProductRepository.FindOneByBarcodeID")
	defer span.End()

	span.SetAttributes(attribute.String("product.barcode_id", barcodeID))
	return r.getOne(ctx, span, findOneByBarcodeQuery(barcodeID))
}

// Delete removes a product by id. Zero affected rows is not an error.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "ProductRepository.Delete")
	defer span.End()

	span.SetAttributes(attribute.Int64("product.id", id))

	sql, args, err := deleteQuery(id).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		fail(span, err)
		return fmt.Errorf("delete product: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))
	return nil
}

func (r *ProductRepository) getOne(ctx context.Context, span trace.Span, q squirrel.SelectBuilder) (*domain.Product, bool, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build query: %w", err)
	}

	var p domain.Product
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			span.SetAttributes(attribute.Bool("product.found", false))
			return nil, false, nil
		}
		fail(span, err)
		return nil, false, fmt.Errorf("find product: %w", err)
	}

	span.SetAttributes(attribute.Bool("product.found", true))
	return &p, true, nil
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
