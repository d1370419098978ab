package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-topup/core"
)

// MutatingService is the write side of the order lifecycle.
type MutatingService interface {
	CreateOrder(ctx context.Context, req core.CreateOrderRequest) (core.Order, error)
	Checkout(ctx context.Context, req core.CheckoutRequest) (core.CheckoutResult, error)
	ApplyPaymentNotification(ctx context.Context, notification core.PaymentNotification) (core.Order, error)
	ConfirmProvisioning(ctx context.Context, reference string) (core.Order, error)
	ApplyProvisioningResult(ctx context.Context, result core.ProvisioningResult) (core.Order, error)
}

type CreateOrderCommand struct {
	service MutatingService
}

func NewCreateOrderCommand(service MutatingService) *CreateOrderCommand {
	return &CreateOrderCommand{service: service}
}

func (c *CreateOrderCommand) Execute(ctx context.Context, msg CreateOrderMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: create order service is required")
	}
	out, err := c.service.CreateOrder(ctx, msg.Request)
	if err != nil {
		storeError[core.Order](ctx, err)
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CheckoutCommand struct {
	service MutatingService
}

func NewCheckoutCommand(service MutatingService) *CheckoutCommand {
	return &CheckoutCommand{service: service}
}

func (c *CheckoutCommand) Execute(ctx context.Context, msg CheckoutMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: checkout service is required")
	}
	out, err := c.service.Checkout(ctx, msg.Request)
	if err != nil {
		storeError[core.CheckoutResult](ctx, err)
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ApplyPaymentNotificationCommand struct {
	service MutatingService
}

func NewApplyPaymentNotificationCommand(service MutatingService) *ApplyPaymentNotificationCommand {
	return &ApplyPaymentNotificationCommand{service: service}
}

func (c *ApplyPaymentNotificationCommand) Execute(ctx context.Context, msg ApplyPaymentNotificationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: payment notification service is required")
	}
	out, err := c.service.ApplyPaymentNotification(ctx, msg.Notification)
	if err != nil {
		storeError[core.Order](ctx, err)
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ConfirmProvisioningCommand struct {
	service MutatingService
}

func NewConfirmProvisioningCommand(service MutatingService) *ConfirmProvisioningCommand {
	return &ConfirmProvisioningCommand{service: service}
}

func (c *ConfirmProvisioningCommand) Execute(ctx context.Context, msg ConfirmProvisioningMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: provisioning service is required")
	}
	out, err := c.service.ConfirmProvisioning(ctx, msg.Reference)
	if err != nil {
		storeError[core.Order](ctx, err)
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ApplyProvisioningResultCommand struct {
	service MutatingService
}

func NewApplyProvisioningResultCommand(service MutatingService) *ApplyProvisioningResultCommand {
	return &ApplyProvisioningResultCommand{service: service}
}

func (c *ApplyProvisioningResultCommand) Execute(ctx context.Context, msg ApplyProvisioningResultMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: provisioning result service is required")
	}
	out, err := c.service.ApplyProvisioningResult(ctx, msg.Result)
	if err != nil {
		storeError[core.Order](ctx, err)
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

// storeError keeps the service error on the collector so dispatchers can
// classify it without unwrapping the dispatcher's envelope.
func storeError[T any](ctx context.Context, err error) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.StoreError(err)
}
