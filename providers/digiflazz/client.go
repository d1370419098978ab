package digiflazz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-topup/core"
	"github.com/goliatone/go-topup/security"
	"github.com/goliatone/go-topup/transport"
)

const (
	ProviderID         = "digiflazz"
	BaseURL            = "https://api.digiflazz.com/v1"
	TransactionPath    = "/transaction"
	defaultCallTimeout = 10 * time.Second
)

// Provider status strings as returned in data.status.
const (
	StatusPending = "Pending"
	StatusSuccess = "Sukses"
	StatusFailed  = "Gagal"
)

type Config struct {
	Username string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	// Testing flags requests as sandbox transactions.
	Testing bool
}

func DefaultConfig() Config {
	return Config{
		BaseURL: BaseURL,
		Timeout: defaultCallTimeout,
	}
}

type Client struct {
	config    Config
	transport transport.Adapter
	signer    core.RequestSigner
}

type Option func(*Client)

func WithTransport(adapter transport.Adapter) Option {
	return func(c *Client) {
		if adapter != nil {
			c.transport = adapter
		}
	}
}

func WithRequestSigner(signer core.RequestSigner) Option {
	return func(c *Client) {
		if signer != nil {
			c.signer = signer
		}
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	defaults := DefaultConfig()
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.Username == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("providers/digiflazz: username and api key are required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	client := &Client{
		config:    cfg,
		transport: transport.NewRESTAdapter(nil),
		signer:    security.MD5RequestSigner{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type transactionRequest struct {
	Username     string `json:"username"`
	BuyerSKUCode string `json:"buyer_sku_code"`
	CustomerNo   string `json:"customer_no"`
	RefID        string `json:"ref_id"`
	Sign         string `json:"sign"`
	Testing      bool   `json:"testing,omitempty"`
}

type transactionData struct {
	RefID        string `json:"ref_id"`
	CustomerNo   string `json:"customer_no"`
	BuyerSKUCode string `json:"buyer_sku_code"`
	Message      string `json:"message"`
	Status       string `json:"status"`
	RC           string `json:"rc"`
	SN           string `json:"sn"`
}

type transactionResponse struct {
	Data transactionData `json:"data"`
}

// Submit registers a top-up transaction.
func (c *Client) Submit(ctx context.Context, req core.ProvisioningRequest) (core.ProvisioningStatus, error) {
	return c.transaction(ctx, req)
}

// CheckStatus re-posts the transaction with the same ref_id, which the
// provider answers with the current state instead of creating a new one.
func (c *Client) CheckStatus(ctx context.Context, req core.ProvisioningRequest) (core.ProvisioningStatus, error) {
	return c.transaction(ctx, req)
}

func (c *Client) transaction(ctx context.Context, req core.ProvisioningRequest) (core.ProvisioningStatus, error) {
	if c == nil || c.transport == nil {
		return core.ProvisioningStatus{}, core.NewInternalError("digiflazz client is not configured", nil)
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return core.ProvisioningStatus{}, core.NewError(core.ErrorKindInvalidInput, "ref_id is required", nil)
	}
	signature := strings.TrimSpace(req.Signature)
	if signature == "" {
		signature = c.signer.Sign(c.config.Username, c.config.APIKey, reference)
	}

	res, err := c.postJSON(ctx, transactionRequest{
		Username:     c.config.Username,
		BuyerSKUCode: strings.TrimSpace(req.ProductSKU),
		CustomerNo:   strings.TrimSpace(req.CustomerIdentifier),
		RefID:        reference,
		Sign:         signature,
		Testing:      c.config.Testing,
	})
	if err != nil {
		return core.ProvisioningStatus{}, err
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return core.ProvisioningStatus{}, providerError(
			fmt.Sprintf("providers/digiflazz: transaction returned status %d", res.StatusCode),
			res.StatusCode,
			reference,
		)
	}

	payload := transactionResponse{}
	if err := res.Decode(&payload); err != nil {
		return core.ProvisioningStatus{}, err
	}
	if ref := strings.TrimSpace(payload.Data.RefID); ref != "" && ref != reference {
		return core.ProvisioningStatus{}, providerError(
			fmt.Sprintf("providers/digiflazz: response ref_id %q does not match %q", ref, reference),
			res.StatusCode,
			reference,
		)
	}

	return core.ProvisioningStatus{
		Reference:   reference,
		ProviderRef: strings.TrimSpace(payload.Data.SN),
		State:       MapStatus(payload.Data.Status),
		Message:     strings.TrimSpace(payload.Data.Message),
	}, nil
}

func (c *Client) postJSON(ctx context.Context, payload transactionRequest) (transport.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return transport.Response{}, core.NewInternalError("providers/digiflazz: encode transaction", err)
	}
	return c.transport.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     c.config.BaseURL + TransactionPath,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
		Timeout: c.config.Timeout,
	})
}

// MapStatus maps data.status onto a provisioning state. Anything the
// provider has not settled is treated as pending.
func MapStatus(status string) core.ProvisioningState {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "sukses", "success":
		return core.ProvisioningStateSuccess
	case "gagal", "failed":
		return core.ProvisioningStateFailed
	default:
		return core.ProvisioningStatePending
	}
}

func providerError(message string, statusCode int, reference string) error {
	return core.NewError(core.ErrorKindProviderRequestFailed, message, map[string]any{
		"provider_id": ProviderID,
		"status_code": statusCode,
		"reference":   reference,
	})
}

var _ core.ProvisioningProvider = (*Client)(nil)
