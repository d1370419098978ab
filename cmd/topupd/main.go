// Command topupd serves the game top-up storefront API: checkout, the payment
// gateway webhook, order lookup and the provisioning confirmation worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-command"
	topup "github.com/goliatone/go-topup"
	"github.com/goliatone/go-topup/adapters/gocommand"
	"github.com/goliatone/go-topup/adapters/gojob"
	"github.com/goliatone/go-topup/adapters/gologger"
	"github.com/goliatone/go-topup/adapters/prommetrics"
	"github.com/goliatone/go-topup/core"
	"github.com/goliatone/go-topup/httpapi"
	"github.com/goliatone/go-topup/providers/digiflazz"
	"github.com/goliatone/go-topup/ratelimit"
	"github.com/goliatone/go-topup/transport"
	"github.com/goliatone/go-topup/webhooks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.LookupEnv, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "topupd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, lookup lookupFunc, out io.Writer) error {
	srvCfg, err := loadServerConfig(lookup)
	if err != nil {
		return err
	}
	rawService, err := rawFromEnv(lookup, serviceEnv)
	if err != nil {
		return err
	}
	if err := unsealSecrets(rawService, lookup); err != nil {
		return err
	}
	configProvider := core.NewCfgxConfigProvider(core.StaticConfigLoader(rawService))
	coreCfg, err := configProvider.Load(ctx, topup.DefaultConfig())
	if err != nil {
		return fmt.Errorf("load service config: %w", err)
	}

	logger := gologger.NewZerologLogger(out, coreCfg.ServiceName, srvCfg.logLevel())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := prommetrics.NewRecorder(registry)

	orders, err := openOrderStore(ctx, srvCfg.Database, logger)
	if err != nil {
		return err
	}
	defer orders.Close()

	provider, err := buildProvider(srvCfg.Provisioning, coreCfg)
	if err != nil {
		return err
	}

	jobs := gojob.NewMemoryQueue()
	dispatcher := gojob.NewProvisioningDispatcher(jobs)

	opts := append(topup.DefaultSecurityOptions(),
		topup.WithLogger(logger),
		topup.WithMetricsRecorder(metrics),
		topup.WithConfigProvider(configProvider),
		topup.WithOrderStore(orders.store),
		topup.WithProvisioningProvider(provider),
		topup.WithPaymentGateway(topup.HostedCheckoutGateway(coreCfg.Gateway.CheckoutURL)),
		topup.WithProvisioningDispatcher(dispatcher),
	)
	service, err := topup.NewService(coreCfg, opts...)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	facade, err := topup.NewFacade(service)
	if err != nil {
		return err
	}
	subscriptions, err := gocommand.RegisterFacade(gocommand.NewRegistryAdapter(command.NewRegistry()), facade)
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	defer subscriptions.Unsubscribe()

	provisioning := gocommand.NewProvisioningDispatch()
	dispatched, err := gojob.ReconcilePaidOrders(ctx, provisioning, dispatcher, srvCfg.Provisioning.ReconcileLimit)
	if err != nil {
		logger.Warn("reconcile paid orders failed", "error", err.Error())
	} else if dispatched > 0 {
		logger.Info("reconciled paid orders", "dispatched", dispatched)
	}

	serverOpts := []httpapi.Option{
		httpapi.WithLogger(logger),
		httpapi.WithMetricsHandler(metrics.Handler()),
		httpapi.WithHealthCheck(orders.ping),
	}
	api, err := httpapi.NewServer(service, webhooks.NewProcessor(service, logger), serverOpts...)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              srvCfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	worker := gojob.NewProvisioningWorker(jobs, provisioning,
		gojob.WithWorkerLogger(gologger.WorkerLogger(nil, logger)),
		gojob.WithWorkerHook(gojob.NewLoggingHook(logger)),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return worker.Run(groupCtx)
	})
	group.Go(func() error {
		logger.Info("http server listening", "addr", srvCfg.HTTP.Addr, "database", srvCfg.Database.Driver, "provisioning", srvCfg.Provisioning.Mode)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), srvCfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

// buildProvider returns the Digiflazz client behind the throttling transport,
// or the in-process simulator.
func buildProvider(cfg provisioningConfig, coreCfg core.Config) (core.ProvisioningProvider, error) {
	switch cfg.Mode {
	case providerDigiflazz:
		throttle := ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
		guarded := ratelimit.NewTransport(
			transport.NewRESTAdapter(nil),
			throttle,
			ratelimit.Key{Provider: digiflazz.ProviderID, Bucket: "transaction"},
		)
		provider, err := topup.DigiflazzProvider(digiflazz.Config{
			Username: coreCfg.Provider.Username,
			APIKey:   coreCfg.Provider.APIKey,
			BaseURL:  coreCfg.Provider.BaseURL,
			Timeout:  coreCfg.ProviderTimeout,
		}, digiflazz.WithTransport(guarded))
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		return topup.SimulatedProvider(cfg.SimulatedLatency), nil
	}
}
