package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const provisioningEventPrefix = "provision:"

func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (order Order, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"product_sku": strings.TrimSpace(req.ProductSKU),
		"user_id":     strings.TrimSpace(req.Buyer.UserID),
	}
	defer func() {
		if order.Reference != "" {
			fields["reference"] = order.Reference
		}
		s.observeOperation(ctx, startedAt, "create_order", err, fields)
	}()

	order, err = s.createOrder(ctx, req)
	return order, err
}

func (s *Service) createOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	if err := req.Validate(); err != nil {
		return Order{}, err
	}
	buyer := BuyerAccount{
		UserID: strings.TrimSpace(req.Buyer.UserID),
		ZoneID: strings.TrimSpace(req.Buyer.ZoneID),
	}
	sku := strings.TrimSpace(req.ProductSKU)
	product, ok := s.catalog.Lookup(sku)
	if !ok {
		return Order{}, newInvalidInputError(fmt.Sprintf("unknown product sku %q", sku), "product_sku")
	}
	if s.provider == nil {
		return Order{}, NewInternalError("provisioning provider is not configured", nil)
	}

	now := s.timestamp()
	reference := s.references.NewReference(now)
	customerNo := buyer.CustomerNo()

	callCtx, cancel := context.WithTimeout(ctx, s.config.providerTimeout())
	defer cancel()
	submitted, err := s.provider.Submit(callCtx, ProvisioningRequest{
		ProductSKU:         product.SKU,
		CustomerIdentifier: customerNo,
		Reference:          reference,
		Signature:          s.signProvisioning(reference),
	})
	if err != nil {
		return Order{}, classifyProviderError(callCtx, "provisioning submit", err)
	}
	if submitted.State == ProvisioningStateFailed {
		return Order{}, newProviderError("provisioning submit", errors.New(submitted.Message))
	}

	order := Order{
		Reference:         reference,
		Buyer:             buyer,
		ProductSKU:        product.SKU,
		Amount:            product.Price,
		CustomerNo:        customerNo,
		ProviderRef:       strings.TrimSpace(submitted.ProviderRef),
		Status:            OrderStatusPending,
		WebhookEventsSeen: map[string]struct{}{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Put(ctx, order); err != nil {
		return Order{}, s.mapError(err)
	}
	return order.Clone(), nil
}

// Checkout creates the order and asks the payment gateway for the URL the
// buyer is redirected to.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (result CheckoutResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"product_sku": strings.TrimSpace(req.ProductSKU),
		"user_id":     strings.TrimSpace(req.UserID),
	}
	defer func() {
		if result.Reference != "" {
			fields["reference"] = result.Reference
		}
		s.observeOperation(ctx, startedAt, "checkout", err, fields)
	}()

	if s.gateway == nil {
		err = NewInternalError("payment gateway is not configured", nil)
		return CheckoutResult{}, err
	}
	order, err := s.createOrder(ctx, CreateOrderRequest{
		Buyer:      BuyerAccount{UserID: req.UserID, ZoneID: req.ZoneID},
		ProductSKU: req.ProductSKU,
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.providerTimeout())
	defer cancel()
	session, err := s.gateway.CreatePayment(callCtx, PaymentRequest{
		Reference: order.Reference,
		Amount:    order.Amount,
	})
	if err != nil {
		fields["reference"] = order.Reference
		err = classifyProviderError(callCtx, "payment session", err)
		return CheckoutResult{}, err
	}
	paymentURL := strings.TrimSpace(session.PaymentURL)

	order, err = s.store.Update(ctx, order.Reference, func(current *Order) error {
		if current.PaymentURL == paymentURL {
			return ErrOrderUnchanged
		}
		current.PaymentURL = paymentURL
		current.UpdatedAt = s.timestamp()
		return nil
	})
	if err != nil {
		err = s.mapError(err)
		return CheckoutResult{}, err
	}

	return CheckoutResult{
		Reference:  order.Reference,
		PaymentURL: order.PaymentURL,
		Amount:     order.Amount,
		Status:     order.Status,
	}, nil
}

func (s *Service) ApplyPaymentNotification(ctx context.Context, notification PaymentNotification) (order Order, err error) {
	startedAt := time.Now().UTC()
	reference := strings.TrimSpace(notification.Reference)
	eventID := strings.TrimSpace(notification.EventID)
	fields := map[string]any{
		"reference":       reference,
		"event_id":        eventID,
		"reported_status": notification.ReportedStatus,
	}
	transitioned := false
	defer func() {
		fields["transitioned"] = transitioned
		if order.Status != "" {
			fields["order_status"] = string(order.Status)
		}
		s.observeOperation(ctx, startedAt, "apply_payment_notification", err, fields)
	}()

	if !s.verifier.Verify(notification.CanonicalPayload(), notification.Signature, s.config.PaymentSecret) {
		err = newUnauthorizedError(reference)
		return Order{}, err
	}
	if eventID == "" {
		err = newInvalidInputError("event id is required", "event_id")
		return Order{}, err
	}
	if _, err = s.store.Get(ctx, reference); err != nil {
		err = s.unknownOrder(reference, err)
		return Order{}, err
	}

	order, err = s.store.Update(ctx, reference, func(current *Order) error {
		transitioned = false
		if current.HasSeenEvent(eventID) {
			return ErrOrderUnchanged
		}
		target, mapErr := MapReportedStatus(notification.ReportedStatus)
		if mapErr != nil {
			return mapErr
		}
		if current.Amount > 0 && notification.Amount != current.Amount {
			return newInvalidInputError(
				fmt.Sprintf("notified amount %d does not match order amount %d", notification.Amount, current.Amount),
				"amount",
			)
		}
		if target == current.Status && !current.Status.Terminal() {
			current.RecordEvent(eventID)
			current.UpdatedAt = s.timestamp()
			return nil
		}
		if transitionErr := current.TransitionTo(target); transitionErr != nil {
			return transitionErr
		}
		current.RecordEvent(eventID)
		current.UpdatedAt = s.timestamp()
		transitioned = true
		return nil
	})
	if err != nil {
		err = s.unknownOrder(reference, err)
		return Order{}, err
	}

	if transitioned && order.Status == OrderStatusPaid {
		s.dispatchProvisioning(ctx, order)
	}
	return order, nil
}

// ConfirmProvisioning asks the provider for the outcome of a paid order's
// top-up and applies it.
func (s *Service) ConfirmProvisioning(ctx context.Context, reference string) (order Order, err error) {
	startedAt := time.Now().UTC()
	reference = strings.TrimSpace(reference)
	fields := map[string]any{"reference": reference}
	defer func() {
		if order.Status != "" {
			fields["order_status"] = string(order.Status)
		}
		s.observeOperation(ctx, startedAt, "confirm_provisioning", err, fields)
	}()

	current, err := s.committedOrder(ctx, reference)
	if err != nil {
		err = s.mapError(err)
		return Order{}, err
	}
	switch current.Status {
	case OrderStatusProvisioned, OrderStatusProvisionFailed:
		return current, nil
	case OrderStatusPaid:
	default:
		err = newInvalidTransitionError(reference, current.Status, OrderStatusProvisioned)
		return Order{}, err
	}
	if s.provider == nil {
		err = NewInternalError("provisioning provider is not configured", nil)
		return Order{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.providerTimeout())
	defer cancel()
	status, err := s.provider.CheckStatus(callCtx, ProvisioningRequest{
		ProductSKU:         current.ProductSKU,
		CustomerIdentifier: current.CustomerNo,
		Reference:          current.Reference,
		Signature:          s.signProvisioning(current.Reference),
	})
	if err != nil {
		err = classifyProviderError(callCtx, "provisioning status", err)
		return Order{}, err
	}
	fields["provisioning_state"] = string(status.State)

	switch status.State {
	case ProvisioningStateSuccess, ProvisioningStateFailed:
		order, err = s.applyProvisioningResult(ctx, ProvisioningResult{
			Reference:   reference,
			Succeeded:   status.State == ProvisioningStateSuccess,
			ProviderRef: status.ProviderRef,
		})
		return order, err
	default:
		err = newProvisioningPendingError(reference)
		return Order{}, err
	}
}

// committedOrder reads the order inside the store's atomic update. Plain Get
// may be served from a read cache, and the provisioning gate must see the
// last committed status.
func (s *Service) committedOrder(ctx context.Context, reference string) (Order, error) {
	var current Order
	_, err := s.store.Update(ctx, reference, func(order *Order) error {
		current = order.Clone()
		return ErrOrderUnchanged
	})
	if err != nil {
		return Order{}, err
	}
	return current, nil
}

func (s *Service) ApplyProvisioningResult(ctx context.Context, result ProvisioningResult) (order Order, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"reference": strings.TrimSpace(result.Reference),
		"event_id":  provisioningEventID(result),
		"succeeded": result.Succeeded,
	}
	defer func() {
		if order.Status != "" {
			fields["order_status"] = string(order.Status)
		}
		s.observeOperation(ctx, startedAt, "apply_provisioning_result", err, fields)
	}()

	order, err = s.applyProvisioningResult(ctx, result)
	return order, err
}

func (s *Service) applyProvisioningResult(ctx context.Context, result ProvisioningResult) (Order, error) {
	reference := strings.TrimSpace(result.Reference)
	if reference == "" {
		return Order{}, newInvalidInputError("reference is required", "reference")
	}
	eventID := provisioningEventID(result)
	target := OrderStatusProvisionFailed
	if result.Succeeded {
		target = OrderStatusProvisioned
	}

	order, err := s.store.Update(ctx, reference, func(current *Order) error {
		if current.HasSeenEvent(eventID) {
			return ErrOrderUnchanged
		}
		if err := current.TransitionTo(target); err != nil {
			return err
		}
		if ref := strings.TrimSpace(result.ProviderRef); ref != "" {
			current.ProviderRef = ref
		}
		current.RecordEvent(eventID)
		current.UpdatedAt = s.timestamp()
		return nil
	})
	if err != nil {
		return Order{}, s.mapError(err)
	}
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, reference string) (order Order, err error) {
	startedAt := time.Now().UTC()
	reference = strings.TrimSpace(reference)
	fields := map[string]any{"reference": reference}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_order", err, fields)
	}()

	order, err = s.store.Get(ctx, reference)
	if err != nil {
		err = s.mapError(err)
		return Order{}, err
	}
	return order, nil
}

func (s *Service) ListProducts(context.Context) ([]Product, error) {
	if s == nil || s.catalog == nil {
		return []Product{}, nil
	}
	return s.catalog.Products(), nil
}

func (s *Service) dispatchProvisioning(ctx context.Context, order Order) {
	if s.dispatcher == nil {
		return
	}
	job := ProvisioningJob{
		Reference:  order.Reference,
		ProductSKU: order.ProductSKU,
		CustomerNo: order.CustomerNo,
		Attempt:    1,
	}
	if err := s.dispatcher.DispatchProvisioning(ctx, job); err != nil {
		s.logWithLevel(ctx, "warn", "provisioning dispatch failed", map[string]any{
			"reference":  order.Reference,
			"error":      err.Error(),
			"error_kind": string(KindOf(err)),
		})
	}
}

func (s *Service) signProvisioning(reference string) string {
	if s.requestSigner == nil {
		return ""
	}
	return s.requestSigner.Sign(s.config.Provider.Username, s.config.Provider.APIKey, reference)
}

func (s *Service) unknownOrder(reference string, err error) error {
	if IsKind(err, ErrorKindNotFound) {
		return newUnknownOrderError(reference)
	}
	return s.mapError(err)
}

func classifyProviderError(callCtx context.Context, operation string, err error) error {
	if callCtx != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return NewError(ErrorKindProviderTimeout, operation+" timed out", map[string]any{
			"operation": operation,
			"cause":     err.Error(),
		})
	}
	return newProviderError(operation, err)
}

func provisioningEventID(result ProvisioningResult) string {
	if id := strings.TrimSpace(result.EventID); id != "" {
		return id
	}
	return provisioningEventPrefix + strings.TrimSpace(result.Reference)
}
