package core

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deps := svc.Dependencies()
	if deps.Logger == nil {
		t.Fatalf("expected default logger")
	}
	if deps.LoggerProvider == nil {
		t.Fatalf("expected default logger provider")
	}
	if deps.ErrorMapper == nil {
		t.Fatalf("expected default error mapper")
	}
	if deps.ConfigProvider == nil || deps.OptionsResolver == nil {
		t.Fatalf("expected default config provider and options resolver")
	}
	if _, ok := deps.OrderStore.(*MemoryOrderStore); !ok {
		t.Fatalf("expected in-memory order store by default, got %T", deps.OrderStore)
	}
	if _, ok := deps.SignatureVerifier.(RejectAllVerifier); !ok {
		t.Fatalf("expected fail-closed verifier by default, got %T", deps.SignatureVerifier)
	}
	if _, ok := deps.ProvisioningDispatcher.(NopProvisioningDispatcher); !ok {
		t.Fatalf("expected nop dispatcher by default, got %T", deps.ProvisioningDispatcher)
	}
	if deps.Catalog == nil || deps.ReferenceGenerator == nil {
		t.Fatalf("expected default catalog and reference generator")
	}

	cfg := svc.Config()
	if cfg.ServiceName != "topup" {
		t.Fatalf("expected default service_name=topup, got %q", cfg.ServiceName)
	}
	if cfg.ProviderTimeout != 10*time.Second {
		t.Fatalf("expected default provider timeout 10s, got %s", cfg.ProviderTimeout)
	}
	if cfg.Provider.BaseURL != "https://api.digiflazz.com/v1" {
		t.Fatalf("unexpected provider base url %q", cfg.Provider.BaseURL)
	}
}

func TestNewService_WithXOverrides(t *testing.T) {
	customLogger := stubLogger{}
	customProvider := stubLoggerProvider{logger: customLogger}
	sentinel := errors.New("sentinel")
	customMapper := func(error) *goerrors.Error {
		return goerrors.Wrap(sentinel, goerrors.CategoryOperation, "mapped")
	}
	configProvider := &fixedConfigProvider{cfg: Config{ServiceName: "from-provider"}}
	optionsResolver := &fixedOptionsResolver{cfg: Config{ServiceName: "resolved"}}
	store := NewMemoryOrderStore()
	catalog := NewStaticCatalog(Product{SKU: "X1", Price: 1})

	svc, err := NewService(Config{ServiceName: "runtime"},
		WithLogger(customLogger),
		WithLoggerProvider(customProvider),
		WithErrorMapper(customMapper),
		WithConfigProvider(configProvider),
		WithOptionsResolver(optionsResolver),
		WithOrderStore(store),
		WithCatalog(catalog),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := svc.Dependencies()
	if deps.Logger != customLogger {
		t.Fatalf("expected custom logger override")
	}
	if resolved := deps.LoggerProvider.GetLogger("topup.override"); resolved != customLogger {
		t.Fatalf("expected logger provider to resolve custom logger")
	}
	if deps.ConfigProvider != configProvider {
		t.Fatalf("expected custom config provider override")
	}
	if deps.OptionsResolver != optionsResolver {
		t.Fatalf("expected custom options resolver override")
	}
	if deps.OrderStore != store {
		t.Fatalf("expected custom order store override")
	}
	if deps.Catalog != catalog {
		t.Fatalf("expected custom catalog override")
	}
	if got := svc.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected options resolver output config, got %q", got)
	}

	mapped := svc.mapError(errors.New("boom"))
	if !errors.Is(mapped, sentinel) {
		t.Fatalf("expected custom error mapper to be used")
	}
}

func TestNewService_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name":   "from-config",
		"payment_secret": "config-secret",
		"provider": map[string]any{
			"username": "config-user",
			"api_key":  "config-key",
		},
	}})

	svc, err := NewService(Config{ServiceName: "from-runtime"}, WithConfigProvider(provider))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cfg := svc.Config()
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime value to override config/default, got %q", cfg.ServiceName)
	}
	if cfg.PaymentSecret != "config-secret" {
		t.Fatalf("expected config layer payment secret, got %q", cfg.PaymentSecret)
	}
	if cfg.Provider.Username != "config-user" || cfg.Provider.APIKey != "config-key" {
		t.Fatalf("expected config layer provider credentials, got %+v", cfg.Provider)
	}
	if cfg.Provider.BaseURL != "https://api.digiflazz.com/v1" {
		t.Fatalf("expected default base url to survive layering, got %q", cfg.Provider.BaseURL)
	}
	if cfg.Gateway.CheckoutURL != "https://checkout.gate.com/pay/" {
		t.Fatalf("expected default checkout url, got %q", cfg.Gateway.CheckoutURL)
	}
}

func TestNewService_RejectsInvalidConfig(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"provider": map[string]any{"base_url": "not a url"},
	}})
	if _, err := NewService(Config{}, WithConfigProvider(provider)); err == nil {
		t.Fatalf("expected invalid provider base url to fail service construction")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}
	cfg.ServiceName = " "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected empty service name to fail validation")
	}
	cfg = DefaultConfig()
	cfg.ProviderTimeout = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative timeout to fail validation")
	}
}
