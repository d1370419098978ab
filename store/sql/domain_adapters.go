package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-topup/core"
	"github.com/google/uuid"
)

func newOrderRecord(order core.Order, now time.Time) *orderRecord {
	createdAt := order.CreatedAt.UTC()
	if order.CreatedAt.IsZero() {
		createdAt = now
	}
	updatedAt := order.UpdatedAt.UTC()
	if order.UpdatedAt.IsZero() {
		updatedAt = createdAt
	}
	version := order.Version
	if version <= 0 {
		version = 1
	}
	customerNo := strings.TrimSpace(order.CustomerNo)
	if customerNo == "" {
		customerNo = order.Buyer.CustomerNo()
	}
	return &orderRecord{
		ID:          uuid.NewString(),
		Reference:   strings.TrimSpace(order.Reference),
		UserID:      strings.TrimSpace(order.Buyer.UserID),
		ZoneID:      strings.TrimSpace(order.Buyer.ZoneID),
		ProductSKU:  strings.TrimSpace(order.ProductSKU),
		Amount:      order.Amount,
		CustomerNo:  customerNo,
		ProviderRef: strings.TrimSpace(order.ProviderRef),
		PaymentURL:  strings.TrimSpace(order.PaymentURL),
		Status:      string(order.Status),
		Version:     version,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

func (r *orderRecord) toDomain(events []orderEventRecord) core.Order {
	if r == nil {
		return core.Order{}
	}
	order := core.Order{
		Reference:   r.Reference,
		Buyer:       core.BuyerAccount{UserID: r.UserID, ZoneID: r.ZoneID},
		ProductSKU:  r.ProductSKU,
		Amount:      r.Amount,
		CustomerNo:  r.CustomerNo,
		ProviderRef: r.ProviderRef,
		PaymentURL:  r.PaymentURL,
		Status:      core.OrderStatus(r.Status),
		Version:     r.Version,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	for _, event := range events {
		order.RecordEvent(event.EventID)
	}
	return order
}

// applyMutable copies the fields an update may change onto the record.
func (r *orderRecord) applyMutable(order core.Order, now time.Time) {
	r.ProviderRef = strings.TrimSpace(order.ProviderRef)
	r.PaymentURL = strings.TrimSpace(order.PaymentURL)
	r.Status = string(order.Status)
	r.UpdatedAt = order.UpdatedAt.UTC()
	if order.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
}

func newOrderEventRecord(order *orderRecord, eventID string, now time.Time) *orderEventRecord {
	return &orderEventRecord{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		Reference:   order.Reference,
		EventID:     eventID,
		StatusAfter: order.Status,
		CreatedAt:   now,
	}
}
