package gojob

import (
	"context"

	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-topup/core"
)

// ProvisioningDispatcher enqueues provisioning confirmations on a go-job queue.
type ProvisioningDispatcher struct {
	enqueuer queue.Enqueuer
}

func NewProvisioningDispatcher(enqueuer queue.Enqueuer) *ProvisioningDispatcher {
	return &ProvisioningDispatcher{enqueuer: enqueuer}
}

func (d *ProvisioningDispatcher) DispatchProvisioning(ctx context.Context, provisioning core.ProvisioningJob) error {
	if d == nil || d.enqueuer == nil {
		return core.NewInternalError("gojob: enqueuer is not configured", nil)
	}
	if provisioning.Reference == "" {
		return core.NewError(core.ErrorKindInvalidInput, "gojob: provisioning reference is required", nil)
	}
	if err := d.enqueuer.Enqueue(ctx, ToExecutionMessage(provisioning)); err != nil {
		return core.NewInternalError("gojob: enqueue provisioning confirmation", err)
	}
	return nil
}

// OrderStatusLister scans orders by status.
type OrderStatusLister interface {
	ListByStatus(ctx context.Context, status core.OrderStatus, limit int) ([]core.Order, error)
}

// ReconcilePaidOrders re-dispatches confirmation for orders left in PAID,
// typically after a restart lost in-memory queue state. It returns how many
// jobs were dispatched.
func ReconcilePaidOrders(
	ctx context.Context,
	lister OrderStatusLister,
	dispatcher core.ProvisioningDispatcher,
	limit int,
) (int, error) {
	if lister == nil || dispatcher == nil {
		return 0, core.NewInternalError("gojob: reconcile requires a lister and a dispatcher", nil)
	}
	orders, err := lister.ListByStatus(ctx, core.OrderStatusPaid, limit)
	if err != nil {
		return 0, err
	}
	dispatched := 0
	for _, order := range orders {
		if err := dispatcher.DispatchProvisioning(ctx, core.ProvisioningJob{
			Reference:  order.Reference,
			ProductSKU: order.ProductSKU,
			CustomerNo: order.CustomerNo,
			Attempt:    1,
		}); err != nil {
			return dispatched, err
		}
		dispatched++
	}
	return dispatched, nil
}

var _ core.ProvisioningDispatcher = (*ProvisioningDispatcher)(nil)
