package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSourceIgnoresNonPositiveRates(t *testing.T) {
	src := NewSource(context.Background(), decimal.NewFromInt(36), nil)

	src.Set(context.Background(), decimal.Zero)
	if !src.Current().Equal(decimal.NewFromInt(36)) {
		t.Fatalf("zero rate must be ignored, got %s", src.Current())
	}

	src.Set(context.Background(), decimal.NewFromInt(-5))
	if !src.Current().Equal(decimal.NewFromInt(36)) {
		t.Fatalf("negative rate must be ignored, got %s", src.Current())
	}

	src.Set(context.Background(), decimal.RequireFromString("40.25"))
	if !src.Current().Equal(decimal.RequireFromString("40.25")) {
		t.Fatalf("positive rate must be applied, got %s", src.Current())
	}
}

type fakePersister struct {
	saved decimal.Decimal
	has   bool
}

func (f *fakePersister) Load(_ context.Context) (decimal.Decimal, bool, error) {
	return f.saved, f.has, nil
}

func (f *fakePersister) Save(_ context.Context, rate decimal.Decimal) error {
	f.saved = rate
	f.has = true
	return nil
}

func TestSourceRestoresPersistedRate(t *testing.T) {
	persister := &fakePersister{saved: decimal.RequireFromString("38.50"), has: true}
	src := NewSource(context.Background(), decimal.NewFromInt(36), persister)

	if !src.Current().Equal(decimal.RequireFromString("38.50")) {
		t.Fatalf("persisted rate must win over the default, got %s", src.Current())
	}

	src.Set(context.Background(), decimal.NewFromInt(39))
	if !persister.saved.Equal(decimal.NewFromInt(39)) {
		t.Fatalf("set must persist the new rate, got %s", persister.saved)
	}
}

func TestAPIFetcherParsesQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"promedio": 36.58}`))
	}))
	defer server.Close()

	fetcher := NewAPIFetcher(server.URL)
	rate, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("36.58")) {
		t.Fatalf("expected 36.58, got %s", rate)
	}
}

func TestAPIFetcherRejectsUnusableQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"promedio": 0}`))
	}))
	defer server.Close()

	fetcher := NewAPIFetcher(server.URL)
	if _, err := fetcher.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for zero quote")
	}
}

func TestAPIFetcherReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	fetcher := NewAPIFetcher(server.URL)
	if _, err := fetcher.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for 502 response")
	}
}
