//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/lunch-locator-service/internal/domain"
	"github.com/couchcryptid/lunch-locator-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(token, 10*time.Second, 5, 60,
		slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func TestSmoke_SearchPlaces(t *testing.T) {
	c := smokeClient(t)

	places, err := c.SearchPlaces(context.Background(), "coffee", austin)
	require.NoError(t, err)
	require.NotEmpty(t, places)

	ranked := domain.RankPlaces(places, austin, domain.RankByDistance)
	assert.NotEmpty(t, ranked[0].Name)
	assert.Less(t, ranked[0].DistanceMeters, 50_000.0, "proximity should bias results toward Austin")
}

func TestSmoke_ReverseGeocode(t *testing.T) {
	c := smokeClient(t)

	label, err := c.ReverseGeocode(context.Background(), austin)
	require.NoError(t, err)
	assert.Contains(t, label, "Austin")
}

func TestSmoke_SearchPlaces_Nonsense(t *testing.T) {
	c := smokeClient(t)

	// Mapbox's fuzzy matching may still return results for nonsense queries,
	// so we verify the client handles any response gracefully (no error).
	_, err := c.SearchPlaces(context.Background(), "XYZNONEXISTENT99", austin)
	require.NoError(t, err)
}

func TestSmoke_CachedSearcher(t *testing.T) {
	c := smokeClient(t)
	cached := NewCachedSearcher(c, 10, time.Minute, clockwork.NewRealClock(), observability.NewMetricsForTesting())

	// First call: cache miss, real API call.
	p1, err := cached.SearchPlaces(context.Background(), "tacos", austin)
	require.NoError(t, err)

	// Second call: cache hit, no API call.
	p2, err := cached.SearchPlaces(context.Background(), "tacos", austin)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}
