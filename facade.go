package topup

import (
	"fmt"

	topupcommand "github.com/goliatone/go-topup/command"
	"github.com/goliatone/go-topup/core"
	topupquery "github.com/goliatone/go-topup/query"
)

type CommandQueryService interface {
	topupcommand.MutatingService
	topupquery.OrderReader
	topupquery.ProductReader
}

type Commands struct {
	CreateOrder              *topupcommand.CreateOrderCommand
	Checkout                 *topupcommand.CheckoutCommand
	ApplyPaymentNotification *topupcommand.ApplyPaymentNotificationCommand
	ConfirmProvisioning      *topupcommand.ConfirmProvisioningCommand
	ApplyProvisioningResult  *topupcommand.ApplyProvisioningResultCommand
}

type Queries struct {
	GetOrder           *topupquery.GetOrderQuery
	ListProducts       *topupquery.ListProductsQuery
	ListOrdersByStatus *topupquery.ListOrdersByStatusQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	statusLister topupquery.OrderStatusLister
}

func WithOrderStatusLister(lister topupquery.OrderStatusLister) FacadeOption {
	return func(options *facadeOptions) {
		options.statusLister = lister
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("topup: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	lister := cfg.statusLister
	if lister == nil {
		lister = resolveStatusLister(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		CreateOrder:              topupcommand.NewCreateOrderCommand(service),
		Checkout:                 topupcommand.NewCheckoutCommand(service),
		ApplyPaymentNotification: topupcommand.NewApplyPaymentNotificationCommand(service),
		ConfirmProvisioning:      topupcommand.NewConfirmProvisioningCommand(service),
		ApplyProvisioningResult:  topupcommand.NewApplyProvisioningResultCommand(service),
	}
	facade.queries = Queries{
		GetOrder:           topupquery.NewGetOrderQuery(service),
		ListProducts:       topupquery.NewListProductsQuery(service),
		ListOrdersByStatus: topupquery.NewListOrdersByStatusQuery(lister),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// resolveStatusLister falls back to the service's order store when it can
// scan by status.
func resolveStatusLister(service CommandQueryService) topupquery.OrderStatusLister {
	if lister, ok := service.(topupquery.OrderStatusLister); ok {
		return lister
	}
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return nil
	}
	lister, ok := provider.Dependencies().OrderStore.(topupquery.OrderStatusLister)
	if !ok {
		return nil
	}
	return lister
}
