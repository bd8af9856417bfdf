// Package location provides domain.LocationSource implementations.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/lunch-locator-service/internal/domain"
)

// ipAccuracyMeters is the accuracy reported for IP geolocation fixes, which
// resolve to a city at best.
const ipAccuracyMeters = 5000

// IPAPI locates the caller by public IP address using the ip-api.com JSON API.
type IPAPI struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewIPAPI creates an IP geolocation source against baseURL, for example
// "http://ip-api.com/json/".
func NewIPAPI(baseURL string, timeout time.Duration, logger *slog.Logger) *IPAPI {
	return &IPAPI{
		url:        baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type ipAPIResponse struct {
	Status     string  `json:"status"` // "success" or "fail"
	Message    string  `json:"message"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	City       string  `json:"city"`
	RegionName string  `json:"regionName"`
	Country    string  `json:"country"`
}

// CurrentLocation implements domain.LocationSource.
func (s *IPAPI) CurrentLocation(ctx context.Context) (*domain.LocationSnapshot, error) {
	params := url.Values{"fields": {"status,message,lat,lon,city,regionName,country"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ip geolocation request: %w: %w", domain.ErrInternetConnection, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("ip geolocation: %w: status %d", domain.ErrQueryLimit, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ip geolocation: %w: status %d: %s", domain.ErrCurrentLocation, resp.StatusCode, body)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if body.Status != "success" {
		// Private and reserved ranges have no location; that is an
		// unavailable fix, not a transport problem.
		return nil, fmt.Errorf("ip geolocation: %w: %s", domain.ErrCurrentLocation, body.Message)
	}

	snap := domain.NewLocationSnapshot(body.Lat, body.Lon, ipAccuracyMeters, domain.SourceIP)
	snap.Label = joinNonEmpty(body.City, body.RegionName, body.Country)
	s.logger.Debug("ip geolocation resolved", "lat", body.Lat, "lon", body.Lon, "label", snap.Label)
	return &snap, nil
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
