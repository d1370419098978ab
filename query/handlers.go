package query

import (
	"context"

	"github.com/goliatone/go-topup/core"
)

type OrderReader interface {
	GetOrder(ctx context.Context, reference string) (core.Order, error)
}

type ProductReader interface {
	ListProducts(ctx context.Context) ([]core.Product, error)
}

// OrderStatusLister is implemented by stores that can scan orders by status.
type OrderStatusLister interface {
	ListByStatus(ctx context.Context, status core.OrderStatus, limit int) ([]core.Order, error)
}

type GetOrderQuery struct {
	reader OrderReader
}

func NewGetOrderQuery(reader OrderReader) *GetOrderQuery {
	return &GetOrderQuery{reader: reader}
}

func (q *GetOrderQuery) Query(ctx context.Context, msg GetOrderMessage) (core.Order, error) {
	if q == nil || q.reader == nil {
		return core.Order{}, queryDependencyError("query: order reader is required")
	}
	return q.reader.GetOrder(ctx, msg.Reference)
}

type ListProductsQuery struct {
	reader ProductReader
}

func NewListProductsQuery(reader ProductReader) *ListProductsQuery {
	return &ListProductsQuery{reader: reader}
}

func (q *ListProductsQuery) Query(ctx context.Context, _ ListProductsMessage) ([]core.Product, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: product reader is required")
	}
	return q.reader.ListProducts(ctx)
}

type ListOrdersByStatusQuery struct {
	lister OrderStatusLister
}

func NewListOrdersByStatusQuery(lister OrderStatusLister) *ListOrdersByStatusQuery {
	return &ListOrdersByStatusQuery{lister: lister}
}

func (q *ListOrdersByStatusQuery) Query(ctx context.Context, msg ListOrdersByStatusMessage) ([]core.Order, error) {
	if q == nil || q.lister == nil {
		return nil, queryDependencyError("query: order status lister is required")
	}
	return q.lister.ListByStatus(ctx, msg.Status, msg.Limit)
}
