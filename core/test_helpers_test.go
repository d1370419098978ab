package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-topup/security"
)

const testPaymentSecret = "rahasia123"

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type fakeProvisioningProvider struct {
	mu          sync.Mutex
	delay       time.Duration
	submitErr   error
	submitState ProvisioningState
	checkErr    error
	checkStatus ProvisioningStatus
	submits     []ProvisioningRequest
	checks      []ProvisioningRequest
}

func (p *fakeProvisioningProvider) Submit(ctx context.Context, req ProvisioningRequest) (ProvisioningStatus, error) {
	p.mu.Lock()
	p.submits = append(p.submits, req)
	delay, err, state := p.delay, p.submitErr, p.submitState
	p.mu.Unlock()

	if err := wait(ctx, delay); err != nil {
		return ProvisioningStatus{}, err
	}
	if err != nil {
		return ProvisioningStatus{}, err
	}
	if state == "" {
		state = ProvisioningStatePending
	}
	return ProvisioningStatus{Reference: req.Reference, ProviderRef: "DF-" + req.Reference, State: state}, nil
}

func (p *fakeProvisioningProvider) CheckStatus(ctx context.Context, req ProvisioningRequest) (ProvisioningStatus, error) {
	p.mu.Lock()
	p.checks = append(p.checks, req)
	delay, err, status := p.delay, p.checkErr, p.checkStatus
	p.mu.Unlock()

	if err := wait(ctx, delay); err != nil {
		return ProvisioningStatus{}, err
	}
	if err != nil {
		return ProvisioningStatus{}, err
	}
	status.Reference = req.Reference
	return status, nil
}

func (p *fakeProvisioningProvider) submitCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.submits)
}

func (p *fakeProvisioningProvider) lastSubmit() ProvisioningRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.submits) == 0 {
		return ProvisioningRequest{}
	}
	return p.submits[len(p.submits)-1]
}

func wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type fakePaymentGateway struct {
	mu       sync.Mutex
	err      error
	requests []PaymentRequest
}

func (g *fakePaymentGateway) CreatePayment(_ context.Context, req PaymentRequest) (PaymentSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return PaymentSession{}, g.err
	}
	return PaymentSession{Reference: req.Reference, PaymentURL: "https://checkout.gate.com/pay/" + req.Reference}, nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	err  error
	jobs []ProvisioningJob
}

func (d *recordingDispatcher) DispatchProvisioning(_ context.Context, job ProvisioningJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return d.err
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}

type testHarness struct {
	service    *Service
	store      *MemoryOrderStore
	provider   *fakeProvisioningProvider
	gateway    *fakePaymentGateway
	dispatcher *recordingDispatcher
}

func newTestHarness(t *testing.T, opts ...Option) *testHarness {
	t.Helper()
	h := &testHarness{
		store:      NewMemoryOrderStore(),
		provider:   &fakeProvisioningProvider{},
		gateway:    &fakePaymentGateway{},
		dispatcher: &recordingDispatcher{},
	}
	cfg := Config{PaymentSecret: testPaymentSecret}
	base := []Option{
		WithLogger(stubLogger{}),
		WithOrderStore(h.store),
		WithSignatureVerifier(security.HMACVerifier{}),
		WithRequestSigner(security.MD5RequestSigner{}),
		WithProvisioningProvider(h.provider),
		WithPaymentGateway(h.gateway),
		WithProvisioningDispatcher(h.dispatcher),
	}
	svc, err := NewService(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h.service = svc
	return h
}

func (h *testHarness) createOrder(t *testing.T, sku string) Order {
	t.Helper()
	order, err := h.service.CreateOrder(context.Background(), CreateOrderRequest{
		Buyer:      BuyerAccount{UserID: "12345678", ZoneID: "1234"},
		ProductSKU: sku,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func signedNotification(eventID string, reference string, status string, amount int64) PaymentNotification {
	notification := PaymentNotification{
		EventID:        eventID,
		Reference:      reference,
		ReportedStatus: status,
		Amount:         amount,
	}
	notification.Signature = security.Sign(notification.CanonicalPayload(), testPaymentSecret)
	return notification
}
