package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	"github.com/goliatone/go-topup/security"
	"github.com/rs/zerolog"
)

const (
	driverMemory   = "memory"
	driverSQLite   = "sqlite3"
	driverPostgres = "postgres"

	providerSimulator = "simulator"
	providerDigiflazz = "digiflazz"
)

type httpConfig struct {
	Addr            string        `koanf:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

type databaseConfig struct {
	Driver      string        `koanf:"driver" mapstructure:"driver"`
	DSN         string        `koanf:"dsn" mapstructure:"dsn"`
	Debug       bool          `koanf:"debug" mapstructure:"debug"`
	PingTimeout time.Duration `koanf:"ping_timeout" mapstructure:"ping_timeout"`
	CacheTTL    time.Duration `koanf:"cache_ttl" mapstructure:"cache_ttl"`
}

type provisioningConfig struct {
	Mode             string        `koanf:"mode" mapstructure:"mode"`
	SimulatedLatency time.Duration `koanf:"simulated_latency" mapstructure:"simulated_latency"`
	ReconcileLimit   int           `koanf:"reconcile_limit" mapstructure:"reconcile_limit"`
}

// serverConfig holds the process settings that sit outside core.Config.
type serverConfig struct {
	HTTP         httpConfig         `koanf:"http" mapstructure:"http"`
	Database     databaseConfig     `koanf:"database" mapstructure:"database"`
	Provisioning provisioningConfig `koanf:"provisioning" mapstructure:"provisioning"`
	LogLevel     string             `koanf:"log_level" mapstructure:"log_level"`
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		HTTP: httpConfig{
			Addr:            ":3000",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: databaseConfig{
			Driver:      driverSQLite,
			DSN:         "file:topup.db?cache=shared&_foreign_keys=on",
			PingTimeout: 5 * time.Second,
			CacheTTL:    30 * time.Second,
		},
		Provisioning: provisioningConfig{
			Mode:             providerSimulator,
			SimulatedLatency: 800 * time.Millisecond,
			ReconcileLimit:   100,
		},
		LogLevel: "info",
	}
}

func (c *serverConfig) Validate() error {
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("topupd: http.addr is required")
	}
	switch c.Database.Driver {
	case driverMemory:
	case driverSQLite, driverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("topupd: database.dsn is required for %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("topupd: unsupported database.driver %q", c.Database.Driver)
	}
	switch c.Provisioning.Mode {
	case providerSimulator, providerDigiflazz:
	default:
		return fmt.Errorf("topupd: unsupported provisioning.mode %q", c.Provisioning.Mode)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("topupd: log_level: %w", err)
	}
	return nil
}

func (c serverConfig) logLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

type lookupFunc func(key string) (string, bool)

// envBinding maps an environment variable onto a dotted config key.
type envBinding struct {
	env   string
	key   string
	parse func(string) (any, error)
}

var serverEnv = []envBinding{
	{env: "PORT", key: "http.addr", parse: parsePort},
	{env: "TOPUP_HTTP_ADDR", key: "http.addr"},
	{env: "TOPUP_SHUTDOWN_TIMEOUT", key: "http.shutdown_timeout", parse: parseDuration},
	{env: "TOPUP_DB_DRIVER", key: "database.driver"},
	{env: "TOPUP_DB_DSN", key: "database.dsn"},
	{env: "TOPUP_DB_DEBUG", key: "database.debug", parse: parseBool},
	{env: "TOPUP_CACHE_TTL", key: "database.cache_ttl", parse: parseDuration},
	{env: "TOPUP_PROVISIONING_MODE", key: "provisioning.mode"},
	{env: "TOPUP_SIMULATED_LATENCY", key: "provisioning.simulated_latency", parse: parseDuration},
	{env: "TOPUP_RECONCILE_LIMIT", key: "provisioning.reconcile_limit", parse: parseInt},
	{env: "TOPUP_LOG_LEVEL", key: "log_level"},
}

var serviceEnv = []envBinding{
	{env: "TOPUP_SERVICE_NAME", key: "service_name"},
	{env: "PAYMENT_SECRET_KEY", key: "payment_secret"},
	{env: "TOPUP_PAYMENT_SECRET", key: "payment_secret"},
	{env: "TOPUP_PROVIDER_TIMEOUT", key: "provider_timeout", parse: parseDuration},
	{env: "DIGIFLAZZ_USERNAME", key: "provider.username"},
	{env: "DIGIFLAZZ_API_KEY", key: "provider.api_key"},
	{env: "DIGIFLAZZ_BASE_URL", key: "provider.base_url"},
	{env: "TOPUP_CHECKOUT_URL", key: "gateway.checkout_url"},
}

// rawFromEnv builds a nested raw map from the bindings. Later bindings for the
// same key win.
func rawFromEnv(lookup lookupFunc, bindings []envBinding) (map[string]any, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	raw := map[string]any{}
	for _, binding := range bindings {
		value, ok := lookup(binding.env)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		var parsed any = strings.TrimSpace(value)
		if binding.parse != nil {
			converted, err := binding.parse(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("topupd: %s: %w", binding.env, err)
			}
			parsed = converted
		}
		setPath(raw, binding.key, parsed)
	}
	return raw, nil
}

func loadServerConfig(lookup lookupFunc) (serverConfig, error) {
	raw, err := rawFromEnv(lookup, serverEnv)
	if err != nil {
		return serverConfig{}, err
	}
	return cfgx.Build[serverConfig](raw,
		cfgx.WithDefaults(defaultServerConfig()),
		cfgx.WithValidator[serverConfig]((*serverConfig).Validate),
	)
}

func setPath(raw map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	current := raw
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

func parseDuration(value string) (any, error) {
	return time.ParseDuration(value)
}

func parseBool(value string) (any, error) {
	return strconv.ParseBool(value)
}

func parseInt(value string) (any, error) {
	return strconv.Atoi(value)
}

func parsePort(value string) (any, error) {
	if _, err := strconv.Atoi(value); err != nil {
		return nil, fmt.Errorf("port must be numeric")
	}
	return ":" + value, nil
}

// sealedKeys are the service settings that may be given sealed.
var sealedKeys = []string{"payment_secret", "provider.api_key"}

// unsealSecrets opens sealed values in raw with the TOPUP_APP_KEY secret box.
func unsealSecrets(raw map[string]any, lookup lookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var box *security.SecretBox
	if appKey, ok := lookup("TOPUP_APP_KEY"); ok && strings.TrimSpace(appKey) != "" {
		opened, err := security.NewSecretBox([]byte(appKey))
		if err != nil {
			return fmt.Errorf("topupd: TOPUP_APP_KEY: %w", err)
		}
		box = opened
	}
	for _, key := range sealedKeys {
		value, ok := getPath(raw, key).(string)
		if !ok || !security.IsSealed(value) {
			continue
		}
		plaintext, err := box.Open(value)
		if err != nil {
			return fmt.Errorf("topupd: %s: %w", key, err)
		}
		setPath(raw, key, plaintext)
	}
	return nil
}

func getPath(raw map[string]any, key string) any {
	parts := strings.Split(key, ".")
	current := raw
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return current[parts[len(parts)-1]]
}
