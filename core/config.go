package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	defaultServiceName     = "topup"
	defaultProviderTimeout = 10 * time.Second
	defaultProviderBaseURL = "https://api.digiflazz.com/v1"
	defaultCheckoutURL     = "https://checkout.gate.com/pay/"
)

type ProviderConfig struct {
	Username string `koanf:"username" mapstructure:"username"`
	APIKey   string `koanf:"api_key" mapstructure:"api_key"`
	BaseURL  string `koanf:"base_url" mapstructure:"base_url"`
}

type GatewayConfig struct {
	CheckoutURL string `koanf:"checkout_url" mapstructure:"checkout_url"`
}

type Config struct {
	ServiceName     string         `koanf:"service_name" mapstructure:"service_name"`
	PaymentSecret   string         `koanf:"payment_secret" mapstructure:"payment_secret"`
	ProviderTimeout time.Duration  `koanf:"provider_timeout" mapstructure:"provider_timeout"`
	Provider        ProviderConfig `koanf:"provider" mapstructure:"provider"`
	Gateway         GatewayConfig  `koanf:"gateway" mapstructure:"gateway"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:     defaultServiceName,
		ProviderTimeout: defaultProviderTimeout,
		Provider: ProviderConfig{
			Username: "mock_username",
			APIKey:   "mock_apikey",
			BaseURL:  defaultProviderBaseURL,
		},
		Gateway: GatewayConfig{
			CheckoutURL: defaultCheckoutURL,
		},
	}
}

// Validate checks structural settings. An empty payment secret is accepted:
// notification verification fails closed without one.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.ProviderTimeout < 0 {
		return fmt.Errorf("core: provider_timeout must not be negative")
	}
	if base := strings.TrimSpace(c.Provider.BaseURL); base != "" {
		if _, err := url.ParseRequestURI(base); err != nil {
			return fmt.Errorf("core: provider.base_url is invalid: %w", err)
		}
	}
	if checkout := strings.TrimSpace(c.Gateway.CheckoutURL); checkout != "" {
		if _, err := url.ParseRequestURI(checkout); err != nil {
			return fmt.Errorf("core: gateway.checkout_url is invalid: %w", err)
		}
	}
	return nil
}

func (c Config) providerTimeout() time.Duration {
	if c.ProviderTimeout > 0 {
		return c.ProviderTimeout
	}
	return defaultProviderTimeout
}
