package paygate

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-topup/core"
	"github.com/goliatone/go-topup/security"
	"github.com/goliatone/go-topup/transport"
)

const (
	GatewayID          = "paygate"
	CheckoutURL        = "https://checkout.gate.com/pay/"
	TransactionsPath   = "/transactions"
	defaultCallTimeout = 10 * time.Second
)

// HostedCheckout builds the payment page URL from the order reference
// without calling the gateway.
type HostedCheckout struct {
	CheckoutURL string
}

func NewHostedCheckout(checkoutURL string) HostedCheckout {
	checkoutURL = strings.TrimSpace(checkoutURL)
	if checkoutURL == "" {
		checkoutURL = CheckoutURL
	}
	return HostedCheckout{CheckoutURL: checkoutURL}
}

func (h HostedCheckout) CreatePayment(ctx context.Context, req core.PaymentRequest) (core.PaymentSession, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return core.PaymentSession{}, err
		}
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return core.PaymentSession{}, core.NewError(core.ErrorKindInvalidInput, "reference is required", nil)
	}
	base := h.CheckoutURL
	if strings.TrimSpace(base) == "" {
		base = CheckoutURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return core.PaymentSession{
		Reference:  reference,
		PaymentURL: base + url.PathEscape(reference),
	}, nil
}

type Config struct {
	BaseURL   string
	ServerKey string
	Timeout   time.Duration
}

// Client creates payment sessions through the gateway's transaction API.
type Client struct {
	config  Config
	adapter *transport.RESTAdapter
}

func New(cfg Config, adapter *transport.RESTAdapter) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.ServerKey = strings.TrimSpace(cfg.ServerKey)
	if cfg.BaseURL == "" || cfg.ServerKey == "" {
		return nil, fmt.Errorf("providers/paygate: base url and server key are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCallTimeout
	}
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	authorized := *adapter
	authorized.DefaultHeaders = map[string]string{}
	for key, value := range adapter.DefaultHeaders {
		authorized.DefaultHeaders[key] = value
	}
	authorized.DefaultHeaders["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.ServerKey+":"))
	return &Client{config: cfg, adapter: &authorized}, nil
}

type transactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type createTransactionRequest struct {
	TransactionDetails transactionDetails `json:"transaction_details"`
}

type createTransactionResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

func (c *Client) CreatePayment(ctx context.Context, req core.PaymentRequest) (core.PaymentSession, error) {
	if c == nil || c.adapter == nil {
		return core.PaymentSession{}, core.NewInternalError("paygate client is not configured", nil)
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" || req.Amount <= 0 {
		return core.PaymentSession{}, core.NewError(core.ErrorKindInvalidInput, "reference and positive amount are required", nil)
	}
	res, err := c.adapter.PostJSON(ctx, c.config.BaseURL+TransactionsPath, createTransactionRequest{
		TransactionDetails: transactionDetails{OrderID: reference, GrossAmount: req.Amount},
	}, c.config.Timeout)
	if err != nil {
		return core.PaymentSession{}, err
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return core.PaymentSession{}, core.NewError(
			core.ErrorKindProviderRequestFailed,
			fmt.Sprintf("providers/paygate: create transaction returned status %d", res.StatusCode),
			map[string]any{"gateway_id": GatewayID, "status_code": res.StatusCode, "reference": reference},
		)
	}
	payload := createTransactionResponse{}
	if err := res.Decode(&payload); err != nil {
		return core.PaymentSession{}, err
	}
	if strings.TrimSpace(payload.RedirectURL) == "" {
		return core.PaymentSession{}, core.NewError(
			core.ErrorKindProviderRequestFailed,
			"providers/paygate: response has no redirect_url",
			map[string]any{"gateway_id": GatewayID, "reference": reference},
		)
	}
	return core.PaymentSession{Reference: reference, PaymentURL: strings.TrimSpace(payload.RedirectURL)}, nil
}

// SignNotification fills in the signature a gateway holding secret would
// attach to the notification.
func SignNotification(notification core.PaymentNotification, secret string) core.PaymentNotification {
	notification.Signature = security.Sign(notification.CanonicalPayload(), secret)
	return notification
}

var (
	_ core.PaymentGateway = HostedCheckout{}
	_ core.PaymentGateway = (*Client)(nil)
)
