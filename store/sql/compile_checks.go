package sqlstore

import "github.com/goliatone/go-topup/core"

var (
	_ core.OrderStore  = (*OrderStore)(nil)
	_ core.OrderStore  = (*CachedOrderStore)(nil)
	_ core.OrderReader = (*CachedOrderStore)(nil)
)
