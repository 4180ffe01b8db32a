package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	pkgkafka "github.com/utafrali/CatalogGo/pkg/kafka"
	"github.com/utafrali/CatalogGo/pkg/logger"
)

// Aggregate type constant.
const AggregateTypeProduct = "product"

// Source identifier for events originating from the catalog service.
const SourceCatalogService = "catalog-service"

// TopicProductViewed receives one event per successful product detail read.
var TopicProductViewed = pkgkafka.Topic("product", "viewed")

const (
	publishTimeout     = 5 * time.Second
	defaultMaxInFlight = 64
)

// ProductViewedData is the payload for a catalog.product.viewed event.
type ProductViewedData struct {
	TenantID  int64     `json:"tenant_id"`
	ProductID int64     `json:"product_id"`
	ViewedAt  time.Time `json:"viewed_at"`
}

// Publisher is the subset of *pkgkafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes catalog events in the background. Publishing is best
// effort: failures are logged and never reach the caller.
type Producer struct {
	kafka    Publisher
	logger   *slog.Logger
	inflight chan struct{}
	wg       sync.WaitGroup
}

// NewProducer creates a new event producer for the catalog service.
// maxInFlight bounds concurrent publishes; events beyond it are dropped.
func NewProducer(kafka Publisher, maxInFlight int, logger *slog.Logger) *Producer {
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	return &Producer{
		kafka:    kafka,
		logger:   logger,
		inflight: make(chan struct{}, maxInFlight),
	}
}

// ProductViewed schedules a catalog.product.viewed event and returns
// immediately.
func (p *Producer) ProductViewed(ctx context.Context, tenantID, productID int64) {
	select {
	case p.inflight <- struct{}{}:
	default:
		p.logger.WarnContext(ctx, "dropping product.viewed event, publisher saturated",
			slog.Int64("product_id", productID),
		)
		return
	}

	// Detach from the request so the publish outlives the response.
	ctx = context.WithoutCancel(ctx)
	viewedAt := time.Now().UTC()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.inflight }()

		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		if err := p.publishViewed(ctx, tenantID, productID, viewedAt); err != nil {
			p.logger.WarnContext(ctx, "product.viewed event not published",
				slog.Int64("product_id", productID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (p *Producer) publishViewed(ctx context.Context, tenantID, productID int64, viewedAt time.Time) error {
	data := ProductViewedData{
		TenantID:  tenantID,
		ProductID: productID,
		ViewedAt:  viewedAt,
	}

	event, err := pkgkafka.NewEvent(TopicProductViewed, strconv.FormatInt(productID, 10), AggregateTypeProduct, SourceCatalogService, data)
	if err != nil {
		return fmt.Errorf("create product.viewed event: %w", err)
	}
	event.WithTenantID(tenantID).WithMetadata("surface", "product_detail")
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, TopicProductViewed, event); err != nil {
		return fmt.Errorf("publish product.viewed event: %w", err)
	}
	return nil
}

// Wait blocks until every scheduled publish has finished or ctx is done.
func (p *Producer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
