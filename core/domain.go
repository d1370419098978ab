package core

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusPaid            OrderStatus = "PAID"
	OrderStatusFailed          OrderStatus = "FAILED"
	OrderStatusProvisioned     OrderStatus = "PROVISIONED"
	OrderStatusProvisionFailed OrderStatus = "PROVISION_FAILED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending,
		OrderStatusPaid,
		OrderStatusFailed,
		OrderStatusProvisioned,
		OrderStatusProvisionFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no outgoing transition exists from the status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFailed, OrderStatusProvisioned, OrderStatusProvisionFailed:
		return true
	default:
		return false
	}
}

func (s OrderStatus) String() string {
	return string(s)
}

type BuyerAccount struct {
	UserID string
	ZoneID string
}

func (b BuyerAccount) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return newInvalidInputError("user id is required", "user_id")
	}
	if strings.TrimSpace(b.ZoneID) == "" {
		return newInvalidInputError("zone id is required", "zone_id")
	}
	return nil
}

// CustomerNo is the destination identifier sent to the provisioning provider.
func (b BuyerAccount) CustomerNo() string {
	return strings.TrimSpace(b.UserID) + strings.TrimSpace(b.ZoneID)
}

type Order struct {
	Reference         string
	Buyer             BuyerAccount
	ProductSKU        string
	Amount            int64
	CustomerNo        string
	ProviderRef       string
	PaymentURL        string
	Status            OrderStatus
	WebhookEventsSeen map[string]struct{}
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (o Order) Clone() Order {
	out := o
	out.WebhookEventsSeen = make(map[string]struct{}, len(o.WebhookEventsSeen))
	for id := range o.WebhookEventsSeen {
		out.WebhookEventsSeen[id] = struct{}{}
	}
	return out
}

func (o Order) HasSeenEvent(eventID string) bool {
	if len(o.WebhookEventsSeen) == 0 {
		return false
	}
	_, ok := o.WebhookEventsSeen[strings.TrimSpace(eventID)]
	return ok
}

func (o *Order) RecordEvent(eventID string) {
	if o == nil {
		return
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return
	}
	if o.WebhookEventsSeen == nil {
		o.WebhookEventsSeen = map[string]struct{}{}
	}
	o.WebhookEventsSeen[eventID] = struct{}{}
}

// SeenEventIDs returns the recorded event ids in lexical order.
func (o Order) SeenEventIDs() []string {
	ids := make([]string, 0, len(o.WebhookEventsSeen))
	for id := range o.WebhookEventsSeen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type CreateOrderRequest struct {
	Buyer      BuyerAccount
	ProductSKU string
}

func (r CreateOrderRequest) Validate() error {
	if err := r.Buyer.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.ProductSKU) == "" {
		return newInvalidInputError("product sku is required", "product_sku")
	}
	return nil
}

type PaymentNotification struct {
	EventID        string
	Reference      string
	ReportedStatus string
	Amount         int64
	Signature      string
}

// CanonicalPayload is the byte sequence the gateway signs:
// reference, reported status and base-10 amount concatenated.
func (n PaymentNotification) CanonicalPayload() []byte {
	return []byte(n.Reference + n.ReportedStatus + strconv.FormatInt(n.Amount, 10))
}

type ProvisioningResult struct {
	Reference   string
	EventID     string
	Succeeded   bool
	ProviderRef string
}

type CheckoutRequest struct {
	UserID     string
	ZoneID     string
	ProductSKU string
}

type CheckoutResult struct {
	Reference  string
	PaymentURL string
	Amount     int64
	Status     OrderStatus
}

type Product struct {
	SKU      string
	Name     string
	Category string
	Price    int64
}
