package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-topup/core"
	"github.com/goliatone/go-topup/webhooks"
)

type checkoutBody struct {
	UserID     string `json:"userId"`
	ZoneID     string `json:"zoneId"`
	ProductID  string `json:"productId"`
	ProductSKU string `json:"productSku"`
}

func (b checkoutBody) sku() string {
	if sku := strings.TrimSpace(b.ProductSKU); sku != "" {
		return sku
	}
	return strings.TrimSpace(b.ProductID)
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type checkoutResponse struct {
	Success    bool             `json:"success"`
	OrderID    string           `json:"orderId"`
	Reference  string           `json:"reference"`
	PaymentURL string           `json:"paymentUrl"`
	Amount     int64            `json:"amount"`
	Status     core.OrderStatus `json:"status"`
}

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// OrderView is the wire shape of an order.
type OrderView struct {
	OrderID     string           `json:"orderId"`
	UserID      string           `json:"userId"`
	ZoneID      string           `json:"zoneId"`
	ProductSKU  string           `json:"productSku"`
	Amount      int64            `json:"amount"`
	Status      core.OrderStatus `json:"status"`
	PaymentURL  string           `json:"paymentUrl,omitempty"`
	ProviderRef string           `json:"providerRef,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func NewOrderView(order core.Order) OrderView {
	return OrderView{
		OrderID:     order.Reference,
		UserID:      order.Buyer.UserID,
		ZoneID:      order.Buyer.ZoneID,
		ProductSKU:  order.ProductSKU,
		Amount:      order.Amount,
		Status:      order.Status,
		PaymentURL:  order.PaymentURL,
		ProviderRef: order.ProviderRef,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}

type ProductView struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Price    int64  `json:"price"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	body := checkoutBody{}
	if err := s.decode(w, r, &body); err != nil {
		s.fail(w, r, "checkout", core.NewError(core.ErrorKindInvalidInput, "decode checkout body", map[string]any{"cause": err.Error()}))
		return
	}
	result, err := s.service.Checkout(r.Context(), core.CheckoutRequest{
		UserID:     strings.TrimSpace(body.UserID),
		ZoneID:     strings.TrimSpace(body.ZoneID),
		ProductSKU: body.sku(),
	})
	if err != nil {
		s.fail(w, r, "checkout", err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{
		Success:    true,
		OrderID:    result.Reference,
		Reference:  result.Reference,
		PaymentURL: result.PaymentURL,
		Amount:     result.Amount,
		Status:     result.Status,
	})
}

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		s.logger.WithContext(r.Context()).Warn("payment webhook body rejected", "error", err.Error())
		writeJSON(w, http.StatusForbidden, envelope{Message: "invalid notification"})
		return
	}
	result, err := s.webhook.Process(r.Context(), webhooks.Request{
		Headers: flattenHeaders(r.Header),
		Body:    raw,
	})
	status := result.StatusCode
	if status == 0 {
		status = http.StatusOK
		if err != nil {
			status = http.StatusInternalServerError
		}
	}
	switch {
	case status == http.StatusForbidden:
		writeJSON(w, status, envelope{Message: "invalid signature"})
	case status >= http.StatusInternalServerError:
		s.logger.WithContext(r.Context()).Error("payment webhook failed", "error_kind", string(core.KindOf(err)))
		writeJSON(w, status, envelope{Message: "internal server error"})
	default:
		writeJSON(w, status, envelope{Success: true, Message: "notification received"})
	}
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimSpace(r.PathValue("reference"))
	order, err := s.service.GetOrder(r.Context(), reference)
	if err != nil {
		s.fail(w, r, "get_order", err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: NewOrderView(order)})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.service.ListProducts(r.Context())
	if err != nil {
		s.fail(w, r, "list_products", err)
		return
	}
	views := make([]ProductView, 0, len(products))
	for _, product := range products {
		views = append(views, ProductView{
			SKU:      product.SKU,
			Name:     product.Name,
			Category: product.Category,
			Price:    product.Price,
		})
	}
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: views})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.WithContext(r.Context()).Warn("health check failed", "error", err.Error())
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	return nil
}

// fail answers with the status mapped from the error kind and a generic
// message. The kind and cause are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := core.HTTPStatus(err)
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	kind := core.KindOf(err)
	logger := s.logger.WithContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error(operation+" request failed", "status", status, "error_kind", string(kind), "error", err.Error())
	} else {
		logger.Warn(operation+" request rejected", "status", status, "error_kind", string(kind), "error", err.Error())
	}
	writeJSON(w, status, envelope{Message: publicMessage(kind)})
}

func publicMessage(kind core.ErrorKind) string {
	switch kind {
	case core.ErrorKindInvalidInput:
		return "invalid request"
	case core.ErrorKindNotFound, core.ErrorKindUnknownOrder:
		return "order not found"
	case core.ErrorKindProviderRequestFailed:
		return "provider request failed"
	case core.ErrorKindProviderTimeout:
		return "provider timed out"
	case core.ErrorKindUnauthorized:
		return "forbidden"
	case core.ErrorKindDuplicateReference, core.ErrorKindInvalidTransition:
		return "conflict"
	default:
		return "internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func flattenHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for key := range headers {
		out[key] = headers.Get(key)
	}
	return out
}
