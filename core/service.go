package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config          Config
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

type ServiceDependencies struct {
	Logger                 Logger
	LoggerProvider         LoggerProvider
	MetricsRecorder        MetricsRecorder
	ErrorMapper            ErrorMapper
	ConfigProvider         ConfigProvider
	OptionsResolver        OptionsResolver
	OrderStore             OrderStore
	SignatureVerifier      SignatureVerifier
	RequestSigner          RequestSigner
	ProvisioningProvider   ProvisioningProvider
	PaymentGateway         PaymentGateway
	ProvisioningDispatcher ProvisioningDispatcher
	Catalog                Catalog
	ReferenceGenerator     ReferenceGenerator
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve(defaultServiceName, builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger(defaultServiceName); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.store == nil {
		builder.store = NewMemoryOrderStore()
	}
	if builder.verifier == nil {
		builder.verifier = RejectAllVerifier{}
	}
	if builder.dispatcher == nil {
		builder.dispatcher = NopProvisioningDispatcher{}
	}
	if builder.catalog == nil {
		builder.catalog = DefaultCatalog()
	}
	if builder.references == nil {
		builder.references = NewReferenceGenerator()
	}
	if builder.now == nil {
		builder.now = func() time.Time {
			return time.Now().UTC()
		}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if finalConfig.PaymentSecret == "" {
		logger.Warn("payment_secret is empty; every payment notification will be rejected")
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		store:           builder.store,
		verifier:        builder.verifier,
		requestSigner:   builder.requestSigner,
		provider:        builder.provider,
		gateway:         builder.gateway,
		dispatcher:      builder.dispatcher,
		catalog:         builder.catalog,
		references:      builder.references,
		now:             builder.now,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:                 s.logger,
		LoggerProvider:         s.loggerProvider,
		MetricsRecorder:        s.metricsRecorder,
		ErrorMapper:            s.errorMapper,
		ConfigProvider:         s.configProvider,
		OptionsResolver:        s.optionsResolver,
		OrderStore:             s.store,
		SignatureVerifier:      s.verifier,
		RequestSigner:          s.requestSigner,
		ProvisioningProvider:   s.provider,
		PaymentGateway:         s.gateway,
		ProvisioningDispatcher: s.dispatcher,
		Catalog:                s.catalog,
		ReferenceGenerator:     s.references,
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) timestamp() time.Time {
	if s != nil && s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

// RejectAllVerifier is the fallback verifier when none is configured.
type RejectAllVerifier struct{}

func (RejectAllVerifier) Verify([]byte, string, string) bool {
	return false
}

type NopProvisioningDispatcher struct{}

func (NopProvisioningDispatcher) DispatchProvisioning(context.Context, ProvisioningJob) error {
	return nil
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}
