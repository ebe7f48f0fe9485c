// Package geocoder is a forward-geocoding client for Mapbox-compatible
// place search APIs.
package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
)

// Config configures a Client.
type Config struct {
	BaseURL     string
	AccessToken string
	Country     string // ISO 3166 alpha-2, empty for worldwide
	Limit       int
	Timeout     time.Duration
	Dial        fasthttp.DialFunc // optional, for tests
}

// Client implements ports.Geocoder over fasthttp.
type Client struct {
	cfg  Config
	http *fasthttp.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &Client{
		cfg: cfg,
		http: &fasthttp.Client{
			Name:                "mapdir-geocoder",
			Dial:                cfg.Dial,
			MaxConnsPerHost:     32,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

type placesResponse struct {
	Features []struct {
		Text      string    `json:"text"`
		PlaceName string    `json:"place_name"`
		Center    []float64 `json:"center"` // [lng, lat]
	} `json:"features"`
}

// ForwardGeocode resolves query to places.
func (c *Client) ForwardGeocode(ctx context.Context, query string) ([]domain.GeocodeResult, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.requestURL(query))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(c.cfg.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		return nil, fmt.Errorf("geocode request: unexpected status %d", code)
	}

	var body placesResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode geocode response: %w", err)
	}

	out := make([]domain.GeocodeResult, 0, len(body.Features))
	for _, f := range body.Features {
		if len(f.Center) != 2 {
			continue
		}
		coord := domain.Coordinate{Latitude: f.Center[1], Longitude: f.Center[0]}
		if !coord.Valid() {
			continue
		}
		out = append(out, domain.GeocodeResult{
			Title:      f.Text,
			Address:    f.PlaceName,
			Coordinate: coord,
			Source:     domain.GeocodeExternal,
		})
	}
	return out, nil
}

func (c *Client) requestURL(query string) string {
	q := url.Values{}
	q.Set("access_token", c.cfg.AccessToken)
	q.Set("limit", strconv.Itoa(c.cfg.Limit))
	q.Set("autocomplete", "true")
	if c.cfg.Country != "" {
		q.Set("country", c.cfg.Country)
	}
	return c.cfg.BaseURL + "/" + url.PathEscape(query) + ".json?" + q.Encode()
}
