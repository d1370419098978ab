package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// OrderMutator edits a private copy of an order inside the store's atomic
// update. Returning an error discards the copy; ErrOrderUnchanged discards it
// without failing the update.
type OrderMutator func(order *Order) error

type OrderStore interface {
	Put(ctx context.Context, order Order) error
	Get(ctx context.Context, reference string) (Order, error)
	Update(ctx context.Context, reference string, mutate OrderMutator) (Order, error)
}

type OrderReader interface {
	Get(ctx context.Context, reference string) (Order, error)
}

type SignatureVerifier interface {
	Verify(payload []byte, providedSignature string, secret string) bool
}

type RequestSigner interface {
	Sign(username string, apiKey string, reference string) string
}

type ProvisioningRequest struct {
	ProductSKU         string
	CustomerIdentifier string
	Reference          string
	Signature          string
}

type ProvisioningState string

const (
	ProvisioningStatePending ProvisioningState = "PENDING"
	ProvisioningStateSuccess ProvisioningState = "SUCCESS"
	ProvisioningStateFailed  ProvisioningState = "FAILED"
)

type ProvisioningStatus struct {
	Reference   string
	ProviderRef string
	State       ProvisioningState
	Message     string
}

type ProvisioningProvider interface {
	Submit(ctx context.Context, req ProvisioningRequest) (ProvisioningStatus, error)
	CheckStatus(ctx context.Context, req ProvisioningRequest) (ProvisioningStatus, error)
}

type PaymentRequest struct {
	Reference string
	Amount    int64
}

type PaymentSession struct {
	Reference  string
	PaymentURL string
}

type PaymentGateway interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (PaymentSession, error)
}

type ProvisioningJob struct {
	Reference  string
	ProductSKU string
	CustomerNo string
	Attempt    int
}

// ProvisioningDispatcher hands the provisioning confirmation for a freshly
// paid order to background execution.
type ProvisioningDispatcher interface {
	DispatchProvisioning(ctx context.Context, job ProvisioningJob) error
}

type Catalog interface {
	Lookup(sku string) (Product, bool)
	Products() []Product
}

type ReferenceGenerator interface {
	NewReference(now time.Time) string
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type OrderLifecycle interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error)
	Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error)
	ApplyPaymentNotification(ctx context.Context, notification PaymentNotification) (Order, error)
	ConfirmProvisioning(ctx context.Context, reference string) (Order, error)
	ApplyProvisioningResult(ctx context.Context, result ProvisioningResult) (Order, error)
	GetOrder(ctx context.Context, reference string) (Order, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
