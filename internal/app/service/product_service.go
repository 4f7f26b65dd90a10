package service

import (
	"context"
	"log/slog"

	"github.com/mrops-br/products-service/internal/app/dto"
	"github.com/mrops-br/products-service/internal/core/tx"
	"github.com/mrops-br/products-service/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	resultSuccess  = "success"
	resultFailure  = "failure"
	resultNotFound = "not_found"
)

// ProductService handles product use cases
type ProductService struct {
	repo                  domain.ProductRepository
	txm                   tx.Manager
	tracer                trace.Tracer
	logger                *slog.Logger
	productSavedCounter   metric.Int64Counter
	productDeletedCounter metric.Int64Counter
	productOperations     metric.Int64Counter
}

// NewProductService creates a new product service
func NewProductService(
	repo domain.ProductRepository,
	txm tx.Manager,
	tracer trace.Tracer,
	meter metric.Meter,
	logger *slog.Logger,
) *ProductService {
	productSavedCounter, _ := meter.Int64Counter(
		"products.saved.total",
		metric.WithDescription("Total number of products saved"),
	)

	productDeletedCounter, _ := meter.Int64Counter(
		"products.deleted.total",
		metric.WithDescription("Total number of product delete requests"),
	)

	productOperations, _ := meter.Int64Counter(
		"products.operations",
		metric.WithDescription("Total number of product operations"),
	)

	return &ProductService{
		repo:                  repo,
		txm:                   txm,
		tracer:                tracer,
		logger:                logger,
		productSavedCounter:   productSavedCounter,
		productDeletedCounter: productDeletedCounter,
		productOperations:     productOperations,
	}
}

// Save persists a product. Insert or update is decided by the repository.
func (s *ProductService) Save(ctx context.Context, in dto.ProductDTO) (dto.ProductDTO, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Save")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product.id", in.ID),
		attribute.String("product.barcode_id", in.BarcodeID),
	)

	s.logger.DebugContext(ctx, "Request to save product",
		slog.Int64("product_id", in.ID),
		slog.String("barcode_id", in.BarcodeID),
		slog.String("name", in.Name),
	)

	var saved *domain.Product
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		saved, err = s.repo.Save(ctx, dto.ToProduct(in))
		return err
	})
	if err != nil {
		s.fail(ctx, span, "save", "Failed to save product", err)
		return dto.ProductDTO{}, err
	}

	span.SetAttributes(attribute.Int64("product.id", saved.ID))

	s.productSavedCounter.Add(ctx, 1)
	s.record(ctx, "save", resultSuccess)

	s.logger.InfoContext(ctx, "Product saved",
		slog.Int64("product_id", saved.ID),
	)

	span.SetStatus(codes.Ok, "Product saved")
	return dto.ToProductDTO(saved), nil
}

// FindAll returns every stored product in repository order
func (s *ProductService) FindAll(ctx context.Context) ([]dto.ProductDTO, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.FindAll")
	defer span.End()

	s.logger.DebugContext(ctx, "Request to get all products")

	var products []*domain.Product
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		products, err = s.repo.FindAll(ctx)
		return err
	})
	if err != nil {
		s.fail(ctx, span, "list", "Failed to list products", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("product.count", len(products)))
	s.record(ctx, "list", resultSuccess)

	span.SetStatus(codes.Ok, "Products listed")
	return dto.ToProductDTOList(products), nil
}

// FindOne looks a product up by id. The boolean result is false when no
// product has that id.
func (s *ProductService) FindOne(ctx context.Context, id int64) (dto.ProductDTO, bool, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.FindOne")
	defer span.End()

	span.SetAttributes(attribute.Int64("product.id", id))

	s.logger.DebugContext(ctx, "Request to get product",
		slog.Int64("product_id", id),
	)

	return s.findOne(ctx, span, "read", func(ctx context.Context) (*domain.Product, bool, error) {
		return s.repo.FindOne(ctx, id)
	})
}

// FindOneByBarcodeID looks a product up by its barcode. The boolean result is
// false when no product carries that barcode.
func (s *ProductService) FindOneByBarcodeID(ctx context.Context, barcodeID string) (dto.ProductDTO, bool, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.FindOneByBarcodeID")
	defer span.End()

	span.SetAttributes(attribute.String("product.barcode_id", barcodeID))

	s.logger.DebugContext(ctx, "Request to get product by barcode",
		slog.String("barcode_id", barcodeID),
	)

	return s.findOne(ctx, span, "read_by_barcode", func(ctx context.Context) (*domain.Product, bool, error) {
		return s.repo.FindOneByBarcodeID(ctx, barcodeID)
	})
}

// Delete removes a product by id
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "ProductService.Delete")
	defer span.End()

	span.SetAttributes(attribute.Int64("product.id", id))

	s.logger.DebugContext(ctx, "Request to delete product",
		slog.Int64("product_id", id),
	)

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		s.fail(ctx, span, "delete", "Failed to delete product", err)
		return err
	}

	s.productDeletedCounter.Add(ctx, 1)
	s.record(ctx, "delete", resultSuccess)

	span.SetStatus(codes.Ok, "Product deleted")
	return nil
}

func (s *ProductService) findOne(
	ctx context.Context,
	span trace.Span,
	operation string,
	lookup func(ctx context.Context) (*domain.Product, bool, error),
) (dto.ProductDTO, bool, error) {
	var (
		product *domain.Product
		found   bool
	)
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		product, found, err = lookup(ctx)
		return err
	})
	if err != nil {
		s.fail(ctx, span, operation, "Failed to get product", err)
		return dto.ProductDTO{}, false, err
	}

	span.SetAttributes(attribute.Bool("product.found", found))

	if !found {
		s.record(ctx, operation, resultNotFound)
		span.SetStatus(codes.Ok, "Product not found")
		return dto.ProductDTO{}, false, nil
	}

	s.record(ctx, operation, resultSuccess)
	span.SetStatus(codes.Ok, "Product retrieved")
	return dto.ToProductDTO(product), true, nil
}

func (s *ProductService) fail(ctx context.Context, span trace.Span, operation, msg string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	s.logger.ErrorContext(ctx, msg,
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
	s.record(ctx, operation, resultFailure)
}

func (s *ProductService) record(ctx context.Context, operation, result string) {
	s.productOperations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("result", result),
		),
	)
}
