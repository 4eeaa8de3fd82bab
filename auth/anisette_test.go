package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchAnisetteFirstUsableWins(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Apple-I-MD-M", "machine-id")
		w.Header().Set("X-Apple-I-MD", "attestation")
		w.Write([]byte(`{"X-Apple-I-MD-M":"machine-id","X-Apple-I-MD":"attestation"}`))
	}))
	defer good.Close()

	hc := newHTTPClient()
	headers, err := fetchAnisette(context.Background(), hc, []string{bad.URL, good.URL})
	if err != nil {
		t.Fatalf("fetchAnisette: %v", err)
	}
	if headers["X-Apple-I-Md-M"] == "" && headers["X-Apple-I-MD-M"] == "" {
		t.Errorf("expected machine identifier header to be preserved, got %v", headers)
	}
}

func TestFetchAnisetteAllUnusable(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer bad.Close()

	hc := newHTTPClient()
	_, err := fetchAnisette(context.Background(), hc, []string{bad.URL})
	if err == nil {
		t.Fatal("expected KindAnisetteUnavailable error")
	}
}
