package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-topup/core"
)

var (
	_ gocmd.Querier[GetOrderMessage, core.Order]             = (*GetOrderQuery)(nil)
	_ gocmd.Querier[ListProductsMessage, []core.Product]     = (*ListProductsQuery)(nil)
	_ gocmd.Querier[ListOrdersByStatusMessage, []core.Order] = (*ListOrdersByStatusQuery)(nil)
)
