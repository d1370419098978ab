package topup

import (
	"time"

	"github.com/goliatone/go-topup/core"
	"github.com/goliatone/go-topup/providers/digiflazz"
	"github.com/goliatone/go-topup/providers/paygate"
	"github.com/goliatone/go-topup/security"
	"github.com/goliatone/go-topup/transport"
)

func DigiflazzProvider(cfg digiflazz.Config, opts ...digiflazz.Option) (core.ProvisioningProvider, error) {
	client, err := digiflazz.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// SimulatedProvider returns the in-process provider used for development and
// tests. A zero latency uses the default simulated delay.
func SimulatedProvider(latency time.Duration) *digiflazz.Simulator {
	if latency == 0 {
		latency = digiflazz.DefaultSimulatedLatency
	}
	return digiflazz.NewSimulator(latency)
}

func HostedCheckoutGateway(checkoutURL string) core.PaymentGateway {
	return paygate.NewHostedCheckout(checkoutURL)
}

func PaygateGateway(cfg paygate.Config, adapter *transport.RESTAdapter) (core.PaymentGateway, error) {
	client, err := paygate.New(cfg, adapter)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// DefaultSecurityOptions installs the HMAC notification verifier and the MD5
// provider request signer.
func DefaultSecurityOptions() []Option {
	return []Option{
		core.WithSignatureVerifier(security.HMACVerifier{}),
		core.WithRequestSigner(security.MD5RequestSigner{}),
	}
}
