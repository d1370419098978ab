package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-topup/core"
)

func TestRESTAdapter_ResponseLimitReturnsRichError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 4

	_, err := adapter.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatalf("expected response body limit error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorKindProviderRequestFailed.String() {
		t.Fatalf("expected %q text code, got %q", core.ErrorKindProviderRequestFailed, rich.TextCode)
	}
	if rich.Code != http.StatusBadGateway {
		t.Fatalf("expected %d code, got %d", http.StatusBadGateway, rich.Code)
	}
}

func TestRESTAdapter_NilReturnsRichError(t *testing.T) {
	var adapter *RESTAdapter
	_, err := adapter.Do(context.Background(), Request{})
	if err == nil {
		t.Fatalf("expected rest adapter nil error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.Code != http.StatusInternalServerError {
		t.Fatalf("expected %d code, got %d", http.StatusInternalServerError, rich.Code)
	}
}

func TestRESTAdapter_TimeoutClassifiesAsProviderTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	adapter := NewRESTAdapter(server.Client())
	_, err := adapter.Do(context.Background(), Request{
		Method:  http.MethodPost,
		URL:     server.URL,
		Body:    []byte(`{}`),
		Timeout: 20 * time.Millisecond,
	})
	if core.KindOf(err) != core.ErrorKindProviderTimeout {
		t.Fatalf("expected provider timeout kind, got %s (%v)", core.KindOf(err), err)
	}
	if core.HTTPStatus(err) != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", core.HTTPStatus(err))
	}
}

func TestRESTAdapter_PostJSONSendsBodyAndHeaders(t *testing.T) {
	var gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"status":"Sukses"}}`))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	res, err := adapter.PostJSON(context.Background(), server.URL, map[string]string{"ref_id": "INV-1"}, time.Second)
	if err != nil {
		t.Fatalf("post json: %v", err)
	}
	if gotContentType != "application/json" {
		t.Fatalf("expected json content type, got %q", gotContentType)
	}
	if gotBody != `{"ref_id":"INV-1"}` {
		t.Fatalf("unexpected request body %q", gotBody)
	}

	var decoded struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := res.Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Data.Status != "Sukses" {
		t.Fatalf("unexpected decoded status %q", decoded.Data.Status)
	}
}
