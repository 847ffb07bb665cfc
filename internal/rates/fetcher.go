package rates

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Fetcher pulls the official rate from an external API.
type Fetcher interface {
	Fetch(ctx context.Context) (decimal.Decimal, error)
}

// apiQuote covers the common field names used by the public VE rate APIs
// (pydolarve-style "promedio", generic "price"/"precio").
type apiQuote struct {
	Promedio decimal.Decimal `json:"promedio"`
	Precio   decimal.Decimal `json:"precio"`
	Price    decimal.Decimal `json:"price"`
}

func (q apiQuote) rate() decimal.Decimal {
	for _, candidate := range []decimal.Decimal{q.Promedio, q.Precio, q.Price} {
		if candidate.Sign() > 0 {
			return candidate
		}
	}
	return decimal.Zero
}

// APIFetcher is a resty-backed Fetcher against a configured endpoint.
type APIFetcher struct {
	httpClient *resty.Client
	url        string
}

func NewAPIFetcher(url string) *APIFetcher {
	restyClient := resty.New()
	restyClient.
		SetHeader("Accept", "application/json").
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)

	return &APIFetcher{httpClient: restyClient, url: url}
}

func (f *APIFetcher) Fetch(ctx context.Context) (decimal.Decimal, error) {
	var quote apiQuote
	resp, err := f.httpClient.R().
		SetContext(ctx).
		SetResult(&quote).
		Get(f.url)
	if err != nil {
		return decimal.Zero, err
	}
	if resp.IsError() {
		return decimal.Zero, fmt.Errorf("rate api returned status %d", resp.StatusCode())
	}

	rate := quote.rate()
	if rate.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("rate api returned no usable rate")
	}
	return rate, nil
}
