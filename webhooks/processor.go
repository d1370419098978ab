package webhooks

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-topup/core"
)

const EventIDHeader = "X-Event-Id"

// Request is one inbound gateway delivery.
type Request struct {
	Headers map[string]string
	Body    []byte
}

// Result is what the gateway is answered with. Metadata carries the outcome
// for logs and callers; it is not part of the response contract.
type Result struct {
	StatusCode int
	Accepted   bool
	Order      *core.Order
	Metadata   map[string]any
}

type NotificationApplier interface {
	ApplyPaymentNotification(ctx context.Context, notification core.PaymentNotification) (core.Order, error)
}

type EventIDExtractor func(req Request, payload Payload) string

// Payload is the notification body posted by the payment gateway.
type Payload struct {
	Reference      string      `json:"reference"`
	Status         string      `json:"status"`
	ReportedStatus string      `json:"reportedStatus"`
	Amount         json.Number `json:"amount"`
	Signature      string      `json:"signature"`
	EventID        string      `json:"eventId"`
}

type Processor struct {
	Applier   NotificationApplier
	ExtractID EventIDExtractor
	// RetryOnInternalError answers 500 for faults on our side so the gateway
	// redelivers. Default (false): every verified delivery is acknowledged.
	RetryOnInternalError bool
	Logger               core.Logger
}

func NewProcessor(applier NotificationApplier, logger core.Logger) *Processor {
	return &Processor{
		Applier:   applier,
		ExtractID: DefaultEventIDExtractor,
		Logger:    glog.Ensure(logger),
	}
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if p == nil || p.Applier == nil {
		return Result{StatusCode: http.StatusInternalServerError}, fmt.Errorf("webhooks: processor requires a notification applier")
	}

	payload, notification, err := decodeNotification(req.Body)
	if err != nil {
		p.log(ctx).Warn("payment notification rejected", "reason", "malformed", "error", err.Error())
		return Result{
			StatusCode: http.StatusForbidden,
			Metadata:   map[string]any{"rejected": true, "error_kind": string(core.KindOf(err))},
		}, err
	}

	extractor := p.ExtractID
	if extractor == nil {
		extractor = DefaultEventIDExtractor
	}
	notification.EventID = extractor(req, payload)

	metadata := map[string]any{
		"reference":       notification.Reference,
		"event_id":        notification.EventID,
		"reported_status": notification.ReportedStatus,
	}

	order, err := p.Applier.ApplyPaymentNotification(ctx, notification)
	if err != nil {
		kind := core.KindOf(err)
		metadata["error_kind"] = string(kind)
		switch {
		case kind == core.ErrorKindUnauthorized:
			metadata["rejected"] = true
			p.log(ctx).Warn("payment notification rejected", "reference", notification.Reference, "reason", "signature")
			return Result{StatusCode: http.StatusForbidden, Metadata: metadata}, err
		case p.RetryOnInternalError && retryable(kind):
			p.log(ctx).Error("payment notification failed", "reference", notification.Reference, "error_kind", string(kind), "error", err.Error())
			return Result{StatusCode: http.StatusInternalServerError, Metadata: metadata}, err
		default:
			metadata["ignored"] = true
			p.log(ctx).Info("payment notification ignored", "reference", notification.Reference, "event_id", notification.EventID, "error_kind", string(kind))
			return Result{StatusCode: http.StatusOK, Accepted: true, Metadata: metadata}, nil
		}
	}

	metadata["order_status"] = order.Status.String()
	return Result{StatusCode: http.StatusOK, Accepted: true, Order: &order, Metadata: metadata}, nil
}

// DefaultEventIDExtractor prefers the body's eventId, then the event id
// header, then a digest of the raw body so byte-identical redeliveries dedupe.
func DefaultEventIDExtractor(req Request, payload Payload) string {
	if value := strings.TrimSpace(payload.EventID); value != "" {
		return value
	}
	if value := headerValue(req.Headers, EventIDHeader); value != "" {
		return value
	}
	sum := sha256.Sum256(req.Body)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func decodeNotification(body []byte) (Payload, core.PaymentNotification, error) {
	payload := Payload{}
	if len(bytes.TrimSpace(body)) == 0 {
		return payload, core.PaymentNotification{}, core.NewError(core.ErrorKindInvalidInput, "notification body is required", nil)
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return payload, core.PaymentNotification{}, core.NewError(core.ErrorKindInvalidInput, "decode notification body", map[string]any{
			"cause": err.Error(),
		})
	}
	status := strings.TrimSpace(payload.Status)
	if status == "" {
		status = strings.TrimSpace(payload.ReportedStatus)
	}
	amount, err := strconv.ParseInt(strings.TrimSpace(payload.Amount.String()), 10, 64)
	if err != nil {
		return payload, core.PaymentNotification{}, core.NewError(core.ErrorKindInvalidInput, "amount must be an integer", map[string]any{
			"amount": payload.Amount.String(),
		})
	}
	return payload, core.PaymentNotification{
		Reference:      strings.TrimSpace(payload.Reference),
		ReportedStatus: status,
		Amount:         amount,
		Signature:      strings.TrimSpace(payload.Signature),
	}, nil
}

func retryable(kind core.ErrorKind) bool {
	switch kind {
	case core.ErrorKindInternal, core.ErrorKindProviderTimeout, core.ErrorKindProviderRequestFailed:
		return true
	default:
		return false
	}
}

func (p *Processor) log(ctx context.Context) core.Logger {
	logger := glog.Ensure(p.Logger)
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	return logger
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
