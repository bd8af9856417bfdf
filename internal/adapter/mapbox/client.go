package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/lunch-locator-service/internal/domain"
	"github.com/couchcryptid/lunch-locator-service/internal/observability"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client implements domain.PlaceSearcher and domain.ReverseGeocoder using the
// Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	limit      int
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox client returning at most limit places per search
// and issuing at most ratePerMinute requests per minute. A ratePerMinute of
// zero or less disables the client-side limit.
func NewClient(token string, timeout time.Duration, limit, ratePerMinute int, logger *slog.Logger, metrics *observability.Metrics) *Client {
	var limiter *rate.Limiter
	if ratePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMinute)), ratePerMinute)
	}
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		limit:   limit,
		limiter: limiter,
		metrics: metrics,
		logger:  logger,
	}
}

// SearchPlaces finds points of interest matching query, biased toward origin.
func (c *Client) SearchPlaces(ctx context.Context, query domain.SearchQuery, origin domain.Point) ([]domain.Place, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(string(query)))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {strconv.Itoa(c.limit)},
		"types":        {"poi"},
		// Mapbox uses lon,lat order.
		"proximity": {fmt.Sprintf("%.6f,%.6f", origin.Lon, origin.Lat)},
	}

	resp, err := c.doRequest(ctx, u+"?"+params.Encode(), "search")
	if err != nil {
		return nil, err
	}

	places := make([]domain.Place, 0, len(resp.Features))
	for _, f := range resp.Features {
		places = append(places, f.place())
	}
	return places, nil
}

// ReverseGeocode returns the name of the place at p, or "" when Mapbox has none.
func (c *Client) ReverseGeocode(ctx context.Context, p domain.Point) (string, error) {
	coord := fmt.Sprintf("%.6f,%.6f", p.Lon, p.Lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
	}

	resp, err := c.doRequest(ctx, u+"?"+params.Encode(), "reverse")
	if err != nil {
		return "", err
	}
	if len(resp.Features) == 0 {
		return "", nil
	}
	return resp.Features[0].PlaceName, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, method string) (*response, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		c.observe(method, "throttled")
		return nil, fmt.Errorf("mapbox %s: %w: client rate limit reached", method, domain.ErrQueryLimit)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.SearchAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.observe(method, "error")
		return nil, fmt.Errorf("mapbox %s request: %w: %w", method, domain.ErrInternetConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.observe(method, "error")
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, statusError(method, resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		c.observe(method, "error")
		return nil, fmt.Errorf("decode response: %w", err)
	}

	outcome := "success"
	if len(mapboxResp.Features) == 0 {
		outcome = "empty"
	}
	c.observe(method, outcome)
	c.logger.Debug("mapbox request complete", "method", method, "features", len(mapboxResp.Features))
	return &mapboxResp, nil
}

func statusError(method string, status int, body []byte) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("mapbox %s: %w: status %d: %s", method, domain.ErrInvalidConfig, status, body)
	case http.StatusTooManyRequests:
		return fmt.Errorf("mapbox %s: %w: status %d", method, domain.ErrQueryLimit, status)
	default:
		return fmt.Errorf("mapbox API error: status %d: %s", status, body)
	}
}

func (c *Client) observe(method, outcome string) {
	if c.metrics != nil {
		c.metrics.SearchRequests.WithLabelValues(method, outcome).Inc()
	}
}

// Unconfigured stands in for Client when no access token is configured, so
// searches fail with INVALID_CONFIG instead of reaching Mapbox.
type Unconfigured struct{}

func (Unconfigured) SearchPlaces(context.Context, domain.SearchQuery, domain.Point) ([]domain.Place, error) {
	return nil, fmt.Errorf("mapbox: %w: MAPBOX_TOKEN is not set", domain.ErrInvalidConfig)
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID         string     `json:"id"`
	Center     []float64  `json:"center"` // [lon, lat]
	PlaceName  string     `json:"place_name"`
	Text       string     `json:"text"`
	Relevance  float64    `json:"relevance"`
	Properties properties `json:"properties"`
}

type properties struct {
	Address  string `json:"address"`
	Category string `json:"category"` // comma separated, e.g. "sushi, japanese, restaurant"
}

func (f feature) place() domain.Place {
	p := domain.Place{
		ID:        f.ID,
		Name:      f.Text,
		Address:   f.Properties.Address,
		Relevance: f.Relevance,
	}
	if p.Address == "" {
		p.Address = f.PlaceName
	}
	if len(f.Center) == 2 {
		p.Point = domain.Point{Lat: f.Center[1], Lon: f.Center[0]}
	}
	for c := range strings.SplitSeq(f.Properties.Category, ",") {
		if c = strings.TrimSpace(c); c != "" {
			p.Categories = append(p.Categories, c)
		}
	}
	return p
}
