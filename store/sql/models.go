package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type orderRecord struct {
	bun.BaseModel `bun:"table:topup_orders,alias:tor"`

	ID          string    `bun:"id,pk"`
	Reference   string    `bun:"reference,notnull"`
	UserID      string    `bun:"user_id,notnull"`
	ZoneID      string    `bun:"zone_id,notnull"`
	ProductSKU  string    `bun:"product_sku,notnull"`
	Amount      int64     `bun:"amount,notnull"`
	CustomerNo  string    `bun:"customer_no,notnull"`
	ProviderRef string    `bun:"provider_ref,notnull"`
	PaymentURL  string    `bun:"payment_url,notnull"`
	Status      string    `bun:"status,notnull"`
	Version     int64     `bun:"version,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type orderEventRecord struct {
	bun.BaseModel `bun:"table:topup_order_events,alias:toe"`

	ID          string    `bun:"id,pk"`
	OrderID     string    `bun:"order_id,notnull"`
	Reference   string    `bun:"reference,notnull"`
	EventID     string    `bun:"event_id,notnull"`
	StatusAfter string    `bun:"status_after,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
