package gocommand

import (
	"context"

	"github.com/goliatone/go-command"
	"github.com/goliatone/go-topup/adapters/gojob"
	topupcommand "github.com/goliatone/go-topup/command"
	"github.com/goliatone/go-topup/core"
	topupquery "github.com/goliatone/go-topup/query"
)

// ProvisioningDispatch drives provisioning through the dispatcher, so the
// commanders and queriers RegisterFacade subscribed do the work. It serves
// the provisioning worker and the paid-order reconcile scan.
type ProvisioningDispatch struct{}

func NewProvisioningDispatch() ProvisioningDispatch {
	return ProvisioningDispatch{}
}

// ConfirmProvisioning dispatches ConfirmProvisioningMessage and returns the
// order the commander stored. The service error is preferred over the
// dispatcher's envelope so its kind survives.
func (ProvisioningDispatch) ConfirmProvisioning(ctx context.Context, reference string) (core.Order, error) {
	result := command.NewResult[core.Order]()
	err := Dispatch(command.ContextWithResult(ctx, result), topupcommand.ConfirmProvisioningMessage{Reference: reference})
	if serviceErr := result.Error(); serviceErr != nil {
		return core.Order{}, serviceErr
	}
	if err != nil {
		return core.Order{}, err
	}
	order, ok := result.Load()
	if !ok {
		return core.Order{}, core.NewInternalError("gocommand: confirm provisioning stored no order", nil)
	}
	return order, nil
}

func (ProvisioningDispatch) ListByStatus(ctx context.Context, status core.OrderStatus, limit int) ([]core.Order, error) {
	return Query[topupquery.ListOrdersByStatusMessage, []core.Order](ctx, topupquery.ListOrdersByStatusMessage{
		Status: status,
		Limit:  limit,
	})
}

var (
	_ gojob.ProvisioningConfirmer = ProvisioningDispatch{}
	_ gojob.OrderStatusLister     = ProvisioningDispatch{}
)
