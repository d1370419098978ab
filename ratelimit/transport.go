package ratelimit

import (
	"context"
	"errors"

	"github.com/goliatone/go-topup/core"
	"github.com/goliatone/go-topup/transport"
)

// Transport guards a transport.Adapter with an AdaptivePolicy. Calls made
// while the bucket is throttled fail without reaching the provider.
type Transport struct {
	Next   transport.Adapter
	Policy *AdaptivePolicy
	Key    Key
}

func NewTransport(next transport.Adapter, policy *AdaptivePolicy, key Key) *Transport {
	return &Transport{Next: next, Policy: policy, Key: key}
}

func (t *Transport) Do(ctx context.Context, req transport.Request) (transport.Response, error) {
	if t == nil || t.Next == nil {
		return transport.Response{}, core.NewInternalError("ratelimit: transport has no next adapter", nil)
	}
	if err := t.Policy.BeforeCall(ctx, t.Key); err != nil {
		var throttled ThrottledError
		if errors.As(err, &throttled) {
			return transport.Response{}, throttled.ToServiceError()
		}
		return transport.Response{}, err
	}
	res, err := t.Next.Do(ctx, req)
	if err != nil {
		return res, err
	}
	if err := t.Policy.AfterCall(ctx, t.Key, res); err != nil {
		return res, err
	}
	return res, nil
}

var _ transport.Adapter = (*Transport)(nil)
