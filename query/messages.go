package query

import (
	"strings"

	"github.com/goliatone/go-topup/core"
)

const (
	TypeGetOrder           = "topup.query.order.get"
	TypeListProducts       = "topup.query.products.list"
	TypeListOrdersByStatus = "topup.query.orders.by_status"
)

type GetOrderMessage struct {
	Reference string
}

func (GetOrderMessage) Type() string { return TypeGetOrder }

func (m GetOrderMessage) Validate() error {
	if strings.TrimSpace(m.Reference) == "" {
		return queryValidationError("reference", "reference is required")
	}
	return nil
}

type ListProductsMessage struct{}

func (ListProductsMessage) Type() string { return TypeListProducts }

func (ListProductsMessage) Validate() error { return nil }

type ListOrdersByStatusMessage struct {
	Status core.OrderStatus
	Limit  int
}

func (ListOrdersByStatusMessage) Type() string { return TypeListOrdersByStatus }

func (m ListOrdersByStatusMessage) Validate() error {
	if !m.Status.Valid() {
		return queryValidationError("status", "status must be a known order status")
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}
