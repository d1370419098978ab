package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	store           OrderStore
	verifier        SignatureVerifier
	requestSigner   RequestSigner
	provider        ProvisioningProvider
	gateway         PaymentGateway
	dispatcher      ProvisioningDispatcher
	catalog         Catalog
	references      ReferenceGenerator
	now             func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithOrderStore(store OrderStore) Option {
	return func(b *serviceBuilder) {
		b.store = store
	}
}

func WithSignatureVerifier(verifier SignatureVerifier) Option {
	return func(b *serviceBuilder) {
		b.verifier = verifier
	}
}

func WithRequestSigner(signer RequestSigner) Option {
	return func(b *serviceBuilder) {
		b.requestSigner = signer
	}
}

func WithProvisioningProvider(provider ProvisioningProvider) Option {
	return func(b *serviceBuilder) {
		b.provider = provider
	}
}

func WithPaymentGateway(gateway PaymentGateway) Option {
	return func(b *serviceBuilder) {
		b.gateway = gateway
	}
}

func WithProvisioningDispatcher(dispatcher ProvisioningDispatcher) Option {
	return func(b *serviceBuilder) {
		b.dispatcher = dispatcher
	}
}

func WithCatalog(catalog Catalog) Option {
	return func(b *serviceBuilder) {
		b.catalog = catalog
	}
}

func WithReferenceGenerator(generator ReferenceGenerator) Option {
	return func(b *serviceBuilder) {
		b.references = generator
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve(defaultServiceName, nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		dispatcher:      NopProvisioningDispatcher{},
		catalog:         DefaultCatalog(),
		references:      NewReferenceGenerator(),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// defaultErrorMapper keeps classified errors as they are and wraps anything
// else as an internal envelope.
func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && strings.TrimSpace(rich.TextCode) != "" {
		return rich
	}
	kind := KindOf(err)
	mapped := NewError(kind, err.Error(), nil)
	if kind == ErrorKindInternal {
		mapped.Source = err
	}
	return mapped
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// StaticConfigLoader serves a fixed raw map, typically assembled from the
// environment by the server binary.
func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || strings.TrimSpace(cfg.PaymentSecret) != "" {
		layer["payment_secret"] = cfg.PaymentSecret
	}
	if includeZero || cfg.ProviderTimeout > 0 {
		layer["provider_timeout"] = cfg.ProviderTimeout
	}

	provider := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Provider.Username) != "" {
		provider["username"] = cfg.Provider.Username
	}
	if includeZero || strings.TrimSpace(cfg.Provider.APIKey) != "" {
		provider["api_key"] = cfg.Provider.APIKey
	}
	if includeZero || strings.TrimSpace(cfg.Provider.BaseURL) != "" {
		provider["base_url"] = cfg.Provider.BaseURL
	}
	if len(provider) > 0 {
		layer["provider"] = provider
	}

	if includeZero || strings.TrimSpace(cfg.Gateway.CheckoutURL) != "" {
		layer["gateway"] = map[string]any{
			"checkout_url": cfg.Gateway.CheckoutURL,
		}
	}
	return layer
}
