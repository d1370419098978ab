package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CreateOrderMessage]              = (*CreateOrderCommand)(nil)
	_ gocmd.Commander[CheckoutMessage]                 = (*CheckoutCommand)(nil)
	_ gocmd.Commander[ApplyPaymentNotificationMessage] = (*ApplyPaymentNotificationCommand)(nil)
	_ gocmd.Commander[ConfirmProvisioningMessage]      = (*ConfirmProvisioningCommand)(nil)
	_ gocmd.Commander[ApplyProvisioningResultMessage]  = (*ApplyProvisioningResultCommand)(nil)
)
