package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-topup/core"
	"github.com/goliatone/go-topup/webhooks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTracerName   = "github.com/goliatone/go-topup/httpapi"
	DefaultMaxBodyBytes = 1 << 20
)

// OrderService is the slice of the lifecycle the HTTP edge calls.
type OrderService interface {
	Checkout(ctx context.Context, req core.CheckoutRequest) (core.CheckoutResult, error)
	GetOrder(ctx context.Context, reference string) (core.Order, error)
	ListProducts(ctx context.Context) ([]core.Product, error)
}

type WebhookProcessor interface {
	Process(ctx context.Context, req webhooks.Request) (webhooks.Result, error)
}

type HealthCheck func(ctx context.Context) error

type Option func(*Server)

func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		s.logger = glog.Ensure(logger)
	}
}

// WithMetricsHandler mounts handler on GET /metrics.
func WithMetricsHandler(handler http.Handler) Option {
	return func(s *Server) {
		s.metrics = handler
	}
}

func WithHealthCheck(check HealthCheck) Option {
	return func(s *Server) {
		s.health = check
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func WithMaxBodyBytes(limit int64) Option {
	return func(s *Server) {
		if limit > 0 {
			s.maxBodyBytes = limit
		}
	}
}

type Server struct {
	service      OrderService
	webhook      WebhookProcessor
	metrics      http.Handler
	health       HealthCheck
	logger       core.Logger
	tracer       trace.Tracer
	maxBodyBytes int64
	now          func() time.Time
}

func NewServer(service OrderService, webhook WebhookProcessor, opts ...Option) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("httpapi: order service is required")
	}
	if webhook == nil {
		return nil, fmt.Errorf("httpapi: webhook processor is required")
	}
	s := &Server{
		service:      service,
		webhook:      webhook,
		logger:       glog.Nop(),
		maxBodyBytes: DefaultMaxBodyBytes,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(DefaultTracerName)
	}
	return s, nil
}

// Routes registers every endpoint on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	s.handle(mux, "POST /api/v1/checkout", s.handleCheckout)
	s.handle(mux, "POST /api/v1/webhook/payment", s.handlePaymentWebhook)
	s.handle(mux, "GET /api/v1/order/{reference}", s.handleGetOrder)
	s.handle(mux, "GET /api/v1/products", s.handleListProducts)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Routes(mux)
	return mux
}
