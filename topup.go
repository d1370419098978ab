package topup

import "github.com/goliatone/go-topup/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type OrderStore = core.OrderStore
type ProvisioningProvider = core.ProvisioningProvider
type PaymentGateway = core.PaymentGateway
type ProvisioningDispatcher = core.ProvisioningDispatcher
type SignatureVerifier = core.SignatureVerifier
type RequestSigner = core.RequestSigner

type Order = core.Order
type OrderStatus = core.OrderStatus
type BuyerAccount = core.BuyerAccount
type Product = core.Product

type CreateOrderRequest = core.CreateOrderRequest
type CheckoutRequest = core.CheckoutRequest
type CheckoutResult = core.CheckoutResult
type PaymentNotification = core.PaymentNotification
type ProvisioningResult = core.ProvisioningResult

var (
	WithLogger                 = core.WithLogger
	WithLoggerProvider         = core.WithLoggerProvider
	WithMetricsRecorder        = core.WithMetricsRecorder
	WithErrorMapper            = core.WithErrorMapper
	WithConfigProvider         = core.WithConfigProvider
	WithOptionsResolver        = core.WithOptionsResolver
	WithOrderStore             = core.WithOrderStore
	WithSignatureVerifier      = core.WithSignatureVerifier
	WithRequestSigner          = core.WithRequestSigner
	WithProvisioningProvider   = core.WithProvisioningProvider
	WithPaymentGateway         = core.WithPaymentGateway
	WithProvisioningDispatcher = core.WithProvisioningDispatcher
	WithCatalog                = core.WithCatalog
	WithReferenceGenerator     = core.WithReferenceGenerator
	WithClock                  = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
