package catalogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roboshop-devops-v1/cart/internal/domain"
	"github.com/roboshop-devops-v1/cart/pkg/circuitbreaker"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

// ErrUnavailable wraps every lookup failure other than "not found".
var ErrUnavailable = errors.New("catalogue unavailable")

type productDTO struct {
	SKU     string          `json:"sku"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	InStock int             `json:"instock"`
}

// Client looks products up in the catalogue service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.Breaker[*domain.Product]
	sfg     singleflight.Group // collapses concurrent lookups of one sku
	logger  *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New[*domain.Product](circuitbreaker.DefaultConfig("catalogue"), logger, nil),
		logger:  logger,
	}
}

// GetProduct returns the product for sku, or nil when the catalogue does
// not know it. The shared fetch is detached from any single caller's
// cancellation and bounded by the client timeout; a caller that gives up
// returns its own context error.
func (c *Client) GetProduct(ctx context.Context, sku string) (*domain.Product, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.sfg.DoChan(sku, func() (interface{}, error) {
		p, err := c.breaker.Execute(func() (*domain.Product, error) {
			return c.fetch(fetchCtx, sku)
		})
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return p, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.logger.ErrorContext(ctx, "product lookup failed", "sku", sku, "error", res.Err)
			return nil, res.Err
		}
		return res.Val.(*domain.Product), nil
	}
}

func (c *Client) fetch(ctx context.Context, sku string) (*domain.Product, error) {
	endpoint := fmt.Sprintf("%s/product/%s", c.baseURL, url.PathEscape(sku))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var dto productDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("%w: decode product: %w", ErrUnavailable, err)
	}
	if dto.SKU == "" {
		dto.SKU = sku
	}

	return &domain.Product{
		SKU:     dto.SKU,
		Name:    dto.Name,
		Price:   dto.Price,
		InStock: dto.InStock,
	}, nil
}
