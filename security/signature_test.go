package security

import (
	"strings"
	"testing"
)

func TestVerify_AcceptsMatchingSignature(t *testing.T) {
	payload := []byte("INV-1700000000000-ABCDEF12PAID20100")
	signature := Sign(payload, "rahasia123")

	if !Verify(payload, signature, "rahasia123") {
		t.Fatalf("expected signature to verify")
	}
	if !Verify(payload, strings.ToUpper(signature), "rahasia123") {
		t.Fatalf("expected uppercase hex signature to verify")
	}
	if !(HMACVerifier{}).Verify(payload, signature, "rahasia123") {
		t.Fatalf("expected verifier type to delegate to Verify")
	}
}

func TestSign_KnownVector(t *testing.T) {
	got := Sign([]byte("INV-1PAID20100"), "rahasia123")
	if got != "c033b37b3c94ce014f90d807d3d7cb599bbb71dfa04f5b486b1bc8582ba3724c" {
		t.Fatalf("unexpected digest %q", got)
	}
}

func TestVerify_RejectsTamperedPayload(t *testing.T) {
	signature := Sign([]byte("INV-1PAID20100"), "rahasia123")

	if Verify([]byte("INV-1PAID1"), signature, "rahasia123") {
		t.Fatalf("expected tampered amount to be rejected")
	}
	if Verify([]byte("INV-1SETTLED20100"), signature, "rahasia123") {
		t.Fatalf("expected tampered status to be rejected")
	}
	if Verify([]byte("INV-1PAID20100"), signature, "other-secret") {
		t.Fatalf("expected wrong secret to be rejected")
	}
}

func TestVerify_FailsClosedOnMalformedInput(t *testing.T) {
	payload := []byte("INV-1PAID20100")
	valid := Sign(payload, "rahasia123")

	cases := map[string]struct {
		signature string
		secret    string
	}{
		"empty secret":        {signature: valid, secret: ""},
		"empty signature":     {signature: "", secret: "rahasia123"},
		"whitespace":          {signature: "   ", secret: "rahasia123"},
		"not hex":             {signature: "zz" + valid[2:], secret: "rahasia123"},
		"odd length":          {signature: valid[:63], secret: "rahasia123"},
		"truncated digest":    {signature: valid[:32], secret: "rahasia123"},
		"digest with padding": {signature: valid + "00", secret: "rahasia123"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if Verify(payload, tc.signature, tc.secret) {
				t.Fatalf("expected %s to be rejected", name)
			}
		})
	}
}

func TestProviderSign_MatchesDocumentedScheme(t *testing.T) {
	got := ProviderSign("mock_username", "mock_apikey", "INV-1")
	if got != "2ea8e96311ecfcada18a9e539d1cf822" {
		t.Fatalf("unexpected provider signature %q", got)
	}
	if got != (MD5RequestSigner{}).Sign("mock_username", "mock_apikey", "INV-1") {
		t.Fatalf("expected signer type to match ProviderSign")
	}
	if got == ProviderSign("mock_username", "mock_apikey", "INV-2") {
		t.Fatalf("expected signature to depend on reference")
	}
}
