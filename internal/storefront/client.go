// Package storefront wraps the external catalog API behind a retrying,
// rate-aware gateway.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Field filter sets understood by the catalog's appdetails endpoint.
const (
	// FiltersPricing requests only the price block; used by both scanners.
	FiltersPricing = "price_overview"
	// FiltersBasic requests title, short description and cover image.
	FiltersBasic = "basic"
	// FiltersMedia requests screenshots and the developer list.
	FiltersMedia = "screenshots,developers"
)

const (
	appDetailsPath     = "/api/appdetails"
	httpTooManyRequest = 429
)

// PriceOverview is the pricing block of a catalog entry. Initial is in minor
// currency units as the API reports it.
type PriceOverview struct {
	Initial         int64 `json:"initial"`
	DiscountPercent int   `json:"discount_percent"`
}

// Details is the decoded catalog entry for one identifier. Available=false
// means the entity does not exist or is not sold in the configured region;
// that is a business outcome, not an error. Price is nil for entities that
// carry no pricing payload (free or unpriced).
type Details struct {
	Available        bool
	Price            *PriceOverview
	Name             string
	ShortDescription string
	HeaderImage      string
	Screenshots      []string
	Developers       []string
}

type appData struct {
	Name             string         `json:"name"`
	ShortDescription string         `json:"short_description"`
	HeaderImage      string         `json:"header_image"`
	PriceOverview    *PriceOverview `json:"price_overview"`
	Screenshots      []screenshot   `json:"screenshots"`
	Developers       []string       `json:"developers"`
}

type screenshot struct {
	Path string `json:"path"`
}

type appEnvelope struct {
	Success bool     `json:"success"`
	Data    *appData `json:"data"`
}

// Client is the HTTP client for the catalog's appdetails endpoint.
type Client struct {
	http   *resty.Client
	region string
}

// NewClient creates a catalog API client for one region.
func NewClient(baseURL, region string, timeout time.Duration) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "dealwatch")
	return &Client{http: http, region: region}
}

// AppDetails looks up one identifier with the given field filters and decodes
// the response into Details. A null or empty body, and HTTP 429, report
// ErrRateLimited; a structurally broken body reports ErrMalformed.
func (c *Client) AppDetails(ctx context.Context, appID int64, filters string) (*Details, error) {
	id := strconv.FormatInt(appID, 10)

	resp, err := c.http.R().SetContext(ctx).
		SetQueryParam("appids", id).
		SetQueryParam("cc", c.region).
		SetQueryParam("filters", filters).
		Get(appDetailsPath)
	if err != nil {
		return nil, fmt.Errorf("appdetails request: %w", err)
	}

	if resp.StatusCode() == httpTooManyRequest {
		return nil, ErrRateLimited
	}
	if resp.IsError() {
		return nil, fmt.Errorf("appdetails HTTP %d", resp.StatusCode())
	}

	return decodeDetails(resp.Body(), id)
}

// decodeDetails classifies a raw appdetails body for one identifier.
func decodeDetails(body []byte, id string) (*Details, error) {
	trimmed := bytes.TrimSpace(body)
	// The API degrades to a bare null body when its rate budget is spent.
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrRateLimited
	}

	var envelopes map[string]appEnvelope
	if err := json.Unmarshal(trimmed, &envelopes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	envelope, ok := envelopes[id]
	if !ok {
		return nil, fmt.Errorf("%w: response missing key %q", ErrMalformed, id)
	}

	if !envelope.Success {
		return &Details{Available: false}, nil
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("%w: success without data for id %q", ErrMalformed, id)
	}

	d := &Details{
		Available:        true,
		Price:            envelope.Data.PriceOverview,
		Name:             envelope.Data.Name,
		ShortDescription: envelope.Data.ShortDescription,
		HeaderImage:      envelope.Data.HeaderImage,
		Developers:       envelope.Data.Developers,
	}
	for _, s := range envelope.Data.Screenshots {
		d.Screenshots = append(d.Screenshots, s.Path)
	}
	return d, nil
}
