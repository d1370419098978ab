package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	topup "github.com/goliatone/go-topup"
	topupcommand "github.com/goliatone/go-topup/command"
	"github.com/goliatone/go-topup/core"
	topupquery "github.com/goliatone/go-topup/query"
)

type okMessage struct{}

func (okMessage) Type() string { return "topup.command.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "topup.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "topup.command.test" }

type queueMessage struct{}

func (queueMessage) Type() string { return "topup.command.queue" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	if _, err := RegisterAndSubscribe(adapter, cmd); err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestQueueResolverHookWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("topup.command.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

func TestRegisterFacadeRoutesDispatchAndQuery(t *testing.T) {
	svc := &stubLifecycle{}
	facade, err := topup.NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	subscriptions, err := RegisterFacade(NewRegistryAdapter(command.NewRegistry()), facade)
	if err != nil {
		t.Fatalf("register facade: %v", err)
	}
	defer subscriptions.Unsubscribe()
	if len(subscriptions) != 8 {
		t.Fatalf("expected 8 subscriptions, got %d", len(subscriptions))
	}

	if err := Dispatch(context.Background(), topupcommand.ConfirmProvisioningMessage{Reference: "INV-1"}); err != nil {
		t.Fatalf("dispatch confirm provisioning: %v", err)
	}
	if svc.confirmed != "INV-1" {
		t.Fatalf("expected dispatch to reach the service, got %q", svc.confirmed)
	}

	order, err := Query[topupquery.GetOrderMessage, core.Order](context.Background(), topupquery.GetOrderMessage{Reference: "INV-1"})
	if err != nil {
		t.Fatalf("query order: %v", err)
	}
	if order.Reference != "INV-1" || order.Status != core.OrderStatusPaid {
		t.Fatalf("unexpected order %#v", order)
	}
}

func TestRegisterFacadeRequiresFacade(t *testing.T) {
	if _, err := RegisterFacade(NewRegistryAdapter(nil), nil); err == nil {
		t.Fatalf("expected nil facade to fail")
	}
}

type stubLifecycle struct {
	confirmed  string
	confirmErr error
	listed     core.OrderStatus
}

func (s *stubLifecycle) CreateOrder(context.Context, core.CreateOrderRequest) (core.Order, error) {
	return core.Order{}, nil
}

func (s *stubLifecycle) Checkout(context.Context, core.CheckoutRequest) (core.CheckoutResult, error) {
	return core.CheckoutResult{}, nil
}

func (s *stubLifecycle) ApplyPaymentNotification(context.Context, core.PaymentNotification) (core.Order, error) {
	return core.Order{}, nil
}

func (s *stubLifecycle) ConfirmProvisioning(_ context.Context, reference string) (core.Order, error) {
	s.confirmed = reference
	if s.confirmErr != nil {
		return core.Order{}, s.confirmErr
	}
	return core.Order{Reference: reference, Status: core.OrderStatusProvisioned}, nil
}

func (s *stubLifecycle) ApplyProvisioningResult(context.Context, core.ProvisioningResult) (core.Order, error) {
	return core.Order{}, nil
}

func (s *stubLifecycle) GetOrder(_ context.Context, reference string) (core.Order, error) {
	return core.Order{Reference: reference, Status: core.OrderStatusPaid}, nil
}

func (s *stubLifecycle) ListProducts(context.Context) ([]core.Product, error) {
	return nil, nil
}

func (s *stubLifecycle) ListByStatus(_ context.Context, status core.OrderStatus, limit int) ([]core.Order, error) {
	s.listed = status
	orders := []core.Order{{Reference: "INV-1", Status: status}, {Reference: "INV-2", Status: status}}
	if limit > 0 && limit < len(orders) {
		orders = orders[:limit]
	}
	return orders, nil
}
