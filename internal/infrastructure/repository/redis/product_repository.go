package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mrops-br/products-service/internal/domain"
)

var tracer = otel.Tracer("products-service/redis")

var _ domain.ProductRepository = (*ProductRepository)(nil)

// DefaultKeyPrefix namespaces every key the repository writes.
const DefaultKeyPrefix = "products:"

const maxWatchAttempts = 10

// raiseSequence moves the id counter up to ARGV[1] and never down.
var raiseSequence = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current < tonumber(ARGV[1]) then
	redis.call('SET', KEYS[1], ARGV[1])
end
return current
`)

// ProductRepository implements domain.ProductRepository on Redis.
//
// Layout under the prefix:
//
//	seq            id counter (INCR)
//	id:<id>        product JSON
//	ids            sorted set of every id, score = id
//	barcode:<code> sorted set of ids carrying the barcode, score = id
type ProductRepository struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

// NewProductRepository creates a Redis product repository. An empty prefix
// falls back to DefaultKeyPrefix.
func NewProductRepository(client redis.UniversalClient, prefix string, logger *slog.Logger) *ProductRepository {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &ProductRepository{
		client: client,
		prefix: prefix,
		now:    time.Now,
		logger: logger,
	}
}

func (r *ProductRepository) seqKey() string { return r.prefix + "seq" }
func (r *ProductRepository) idsKey() string { return r.prefix + "ids" }

func (r *ProductRepository) productKey(id int64) string {
	return r.prefix + "id:" + member(id)
}

func (r *ProductRepository) barcodeKey(barcodeID string) string {
	return r.prefix + "barcode:" + barcodeID
}

func member(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Save stores the product, drawing a new id from the counter for new
// products. Updating an id keeps its original created_at. The read of the
// previous record and the write are guarded by WATCH on the product key.
func (r *ProductRepository) Save(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "ProductRepository.Save")
	defer span.End()

	if product == nil {
		fail(span, domain.ErrNilProduct)
		return nil, domain.ErrNilProduct
	}

	p := product.Clone()
	if p.IsNew() {
		id, err := r.client.Incr(ctx, r.seqKey()).Result()
		if err != nil {
			fail(span, err)
			return nil, fmt.Errorf("next product id: %w", err)
		}
		p.ID = id
	} else if err := raiseSequence.Run(ctx, r.client, []string{r.seqKey()}, p.ID).Err(); err != nil {
		fail(span, err)
		return nil, fmt.Errorf("advance product id: %w", err)
	}

	var (
		saved   *domain.Product
		updated bool
	)
	err := r.watch(ctx, r.productKey(p.ID), func(txn *redis.Tx) error {
		var err error
		saved, updated, err = r.write(ctx, txn, p)
		return err
	})
	if err != nil {
		fail(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("product.id", saved.ID),
		attribute.String("product.barcode_id", saved.BarcodeID),
	)
	r.logger.DebugContext(ctx, "Product saved in redis",
		slog.Int64("product_id", saved.ID),
		slog.Bool("updated", updated),
	)
	return saved, nil
}

// write runs inside a WATCH on the product key. It never mutates in.
func (r *ProductRepository) write(ctx context.Context, txn *redis.Tx, in *domain.Product) (*domain.Product, bool, error) {
	p := in.Clone()

	previous, found, err := r.get(ctx, txn, p.ID)
	if err != nil {
		return nil, false, err
	}
	if found && p.CreatedAt.IsZero() {
		p.CreatedAt = previous.CreatedAt
	}
	p.Touch(r.now())

	data, err := json.Marshal(p)
	if err != nil {
		return nil, false, fmt.Errorf("marshal product: %w", err)
	}

	score := redis.Z{Score: float64(p.ID), Member: member(p.ID)}
	_, err = txn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.productKey(p.ID), data, 0)
		pipe.ZAdd(ctx, r.idsKey(), score)
		if found && previous.BarcodeID != p.BarcodeID {
			pipe.ZRem(ctx, r.barcodeKey(previous.BarcodeID), member(p.ID))
		}
		pipe.ZAdd(ctx, r.barcodeKey(p.BarcodeID), score)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return p, found, nil
}

// watch runs fn under WATCH key, retrying when a concurrent writer touched key.
func (r *ProductRepository) watch(ctx context.Context, key string, fn func(txn *redis.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		err = r.client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// FindAll retrieves all products ordered by id.
func (r *ProductRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	ctx, span := tracer.Start(ctx, "ProductRepository.FindAll")
	defer span.End()

	ids, err := r.client.ZRange(ctx, r.idsKey(), 0, -1).Result()
	if err != nil {
		fail(span, err)
		return nil, fmt.Errorf("list product ids: %w", err)
	}

	products, err := r.load(ctx, ids)
	if err != nil {
		fail(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("product.count", len(products)))
	return products, nil
}

// FindOne retrieves a product by id.
func (r *ProductRepository) FindOne(ctx context.Context, id int64) (*domain.Product, bool, error) {
	ctx, span := tracer.Start(ctx, "ProductRepository.FindOne")
	defer span.End()

	span.SetAttributes(attribute.Int64("product.id", id))

	p, found, err := r.get(ctx, r.client, id)
	if err != nil {
		fail(span, err)
		return nil, false, err
	}
	span.SetAttributes(attribute.Bool("product.found", found))
	return p, found, nil
}

// FindOneByBarcodeID retrieves the lowest-id product carrying barcodeID.
// Index entries whose record is gone or carries another barcode are skipped.
func (r *ProductRepository) FindOneByBarcodeID(ctx context.Context, barcodeID string) (*domain.Product, bool, error) {
	ctx, span := tracer.Start(ctx, "ProductRepository.FindOneByBarcodeID")
	defer span.End()

	span.SetAttributes(attribute.String("product.barcode_id", barcodeID))

	ids, err := r.client.ZRange(ctx, r.barcodeKey(barcodeID), 0, -1).Result()
	if err != nil {
		fail(span, err)
		return nil, false, fmt.Errorf("lookup barcode: %w", err)
	}

	products, err := r.load(ctx, ids)
	if err != nil {
		fail(span, err)
		return nil, false, err
	}

	for _, p := range products {
		if p.BarcodeID == barcodeID {
			span.SetAttributes(attribute.Bool("product.found", true))
			return p, true, nil
		}
	}

	span.SetAttributes(attribute.Bool("product.found", false))
	return nil, false, nil
}

// Delete removes a product and its index entries. Missing ids are a no-op.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "ProductRepository.Delete")
	defer span.End()

	span.SetAttributes(attribute.Int64("product.id", id))

	var found bool
	err := r.watch(ctx, r.productKey(id), func(txn *redis.Tx) error {
		existing, ok, err := r.get(ctx, txn, id)
		if err != nil || !ok {
			return err
		}
		found = true

		_, err = txn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, r.productKey(id))
			pipe.ZRem(ctx, r.idsKey(), member(id))
			pipe.ZRem(ctx, r.barcodeKey(existing.BarcodeID), member(id))
			return nil
		})
		return err
	})
	if err != nil {
		fail(span, err)
		return err
	}
	if !found {
		r.logger.DebugContext(ctx, "Product not in redis, nothing to delete", slog.Int64("product_id", id))
		return nil
	}

	r.logger.DebugContext(ctx, "Product deleted from redis", slog.Int64("product_id", id))
	return nil
}

// getter is satisfied by both the client and a watched *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *ProductRepository) get(ctx context.Context, c getter, id int64) (*domain.Product, bool, error) {
	data, err := c.Get(ctx, r.productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get product: %w", err)
	}

	p, err := decode(data)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// load fetches the records for ids in order, skipping ids without a record.
func (r *ProductRepository) load(ctx context.Context, ids []string) ([]*domain.Product, error) {
	products := make([]*domain.Product, 0, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.prefix + "id:" + id
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		p, err := decode([]byte(s))
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

func decode(data []byte) (*domain.Product, error) {
	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
