package devkit

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/goliatone/go-topup/transport"
)

// TransportScript is one scripted reply. Scripts are consumed in order and
// the last one repeats once exhausted.
type TransportScript struct {
	Response transport.Response
	Err      error
}

// JSONReply scripts a response carrying body with the given status.
func JSONReply(status int, body string) TransportScript {
	return TransportScript{Response: transport.Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
	}}
}

type FakeTransportAdapter struct {
	mu       sync.Mutex
	scripts  []TransportScript
	requests []transport.Request
}

func NewFakeTransportAdapter(scripts ...TransportScript) *FakeTransportAdapter {
	return &FakeTransportAdapter{scripts: append([]TransportScript(nil), scripts...)}
}

func (a *FakeTransportAdapter) Do(ctx context.Context, req transport.Request) (transport.Response, error) {
	if a == nil {
		return transport.Response{}, fmt.Errorf("devkit: fake transport adapter is nil")
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return transport.Response{}, err
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, cloneRequest(req))
	index := len(a.requests) - 1
	if index < len(a.scripts) {
		script := a.scripts[index]
		return cloneResponse(script.Response), script.Err
	}
	if len(a.scripts) > 0 {
		last := a.scripts[len(a.scripts)-1]
		return cloneResponse(last.Response), last.Err
	}
	return transport.Response{StatusCode: http.StatusOK, Headers: map[string]string{}}, nil
}

func (a *FakeTransportAdapter) Requests() []transport.Request {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]transport.Request, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneRequest(item))
	}
	return out
}

func cloneRequest(in transport.Request) transport.Request {
	out := transport.Request{
		Method:               in.Method,
		URL:                  in.URL,
		Headers:              map[string]string{},
		Query:                map[string]string{},
		Body:                 append([]byte(nil), in.Body...),
		Timeout:              in.Timeout,
		MaxResponseBodyBytes: in.MaxResponseBodyBytes,
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Query {
		out.Query[key] = value
	}
	return out
}

func cloneResponse(in transport.Response) transport.Response {
	out := transport.Response{
		StatusCode: in.StatusCode,
		Headers:    map[string]string{},
		Body:       append([]byte(nil), in.Body...),
		Metadata:   map[string]any{},
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

var _ transport.Adapter = (*FakeTransportAdapter)(nil)
