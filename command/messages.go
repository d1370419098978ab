package command

import (
	"strings"

	"github.com/goliatone/go-topup/core"
)

const (
	TypeCreateOrder              = "topup.command.order.create"
	TypeCheckout                 = "topup.command.checkout"
	TypeApplyPaymentNotification = "topup.command.payment_notification.apply"
	TypeConfirmProvisioning      = "topup.command.provisioning.confirm"
	TypeApplyProvisioningResult  = "topup.command.provisioning.apply_result"
)

type CreateOrderMessage struct {
	Request core.CreateOrderRequest
}

func (CreateOrderMessage) Type() string { return TypeCreateOrder }

func (m CreateOrderMessage) Validate() error {
	return validateOrderInput(m.Request.Buyer.UserID, m.Request.Buyer.ZoneID, m.Request.ProductSKU)
}

type CheckoutMessage struct {
	Request core.CheckoutRequest
}

func (CheckoutMessage) Type() string { return TypeCheckout }

func (m CheckoutMessage) Validate() error {
	return validateOrderInput(m.Request.UserID, m.Request.ZoneID, m.Request.ProductSKU)
}

// ApplyPaymentNotificationMessage carries a gateway notification. The
// signature is checked by the service, not here.
type ApplyPaymentNotificationMessage struct {
	Notification core.PaymentNotification
}

func (ApplyPaymentNotificationMessage) Type() string { return TypeApplyPaymentNotification }

func (m ApplyPaymentNotificationMessage) Validate() error {
	if strings.TrimSpace(m.Notification.Reference) == "" {
		return commandValidationError("reference", "reference is required")
	}
	if strings.TrimSpace(m.Notification.EventID) == "" {
		return commandValidationError("event_id", "event id is required")
	}
	return nil
}

type ConfirmProvisioningMessage struct {
	Reference string
}

func (ConfirmProvisioningMessage) Type() string { return TypeConfirmProvisioning }

func (m ConfirmProvisioningMessage) Validate() error {
	if strings.TrimSpace(m.Reference) == "" {
		return commandValidationError("reference", "reference is required")
	}
	return nil
}

type ApplyProvisioningResultMessage struct {
	Result core.ProvisioningResult
}

func (ApplyProvisioningResultMessage) Type() string { return TypeApplyProvisioningResult }

func (m ApplyProvisioningResultMessage) Validate() error {
	if strings.TrimSpace(m.Result.Reference) == "" {
		return commandValidationError("reference", "reference is required")
	}
	return nil
}

func validateOrderInput(userID string, zoneID string, sku string) error {
	if strings.TrimSpace(userID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(zoneID) == "" {
		return commandValidationError("zone_id", "zone id is required")
	}
	if strings.TrimSpace(sku) == "" {
		return commandValidationError("product_sku", "product sku is required")
	}
	return nil
}
