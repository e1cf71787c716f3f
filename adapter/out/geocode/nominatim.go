// Package geocode implements the outbound geocoding adapters.
package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"crisislens_server/core/domain"
	"crisislens_server/core/port/out"
	"crisislens_server/pkg/httputil"
)

// DefaultBaseURL is the public Nominatim endpoint.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// NominatimClient resolves place names through the OSM Nominatim search
// API. The public instance allows at most one request per second, enforced
// here with a rate limiter; a circuit breaker keeps a flapping upstream
// from stalling every location stage on the limiter queue.
type NominatimClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	log        zerolog.Logger
}

// NominatimConfig configures the Nominatim client.
type NominatimConfig struct {
	BaseURL   string
	UserAgent string
	// RequestsPerSec throttles outbound calls; the public instance requires 1.
	RequestsPerSec float64
}

// NewNominatimClient creates a Nominatim geocoding client.
func NewNominatimClient(cfg NominatimConfig, log zerolog.Logger) *NominatimClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "crisislens/1.0"
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 1
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nominatim",
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &NominatimClient{
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		httpClient: httputil.GeocodeClient(),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		breaker:    breaker,
		log:        log.With().Str("component", "nominatim").Logger(),
	}
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Resolve looks up a place name. Returns (nil, nil) when Nominatim knows
// no such place; an error means the lookup itself failed.
func (c *NominatimClient) Resolve(ctx context.Context, name string) (*domain.Coordinate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.search(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Coordinate), nil
}

func (c *NominatimClient) search(ctx context.Context, name string) (*domain.Coordinate, error) {
	query := url.Values{}
	query.Set("q", name)
	query.Set("format", "json")
	query.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return (*domain.Coordinate)(nil), nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("bad latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("bad longitude %q: %w", results[0].Lon, err)
	}
	return &domain.Coordinate{Latitude: lat, Longitude: lon}, nil
}

var _ out.GeocodeProvider = (*NominatimClient)(nil)
