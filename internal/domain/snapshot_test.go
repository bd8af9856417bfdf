package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_EncodeDecode(t *testing.T) {
	now := time.Date(2024, time.April, 26, 12, 30, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { SetClock(nil) })

	state := GeoState{}.
		WithLocation(Succeeded[Unit](Unit{}, NewLocationSnapshot(30.2672, -97.7431, 25, "fixed"))).
		WithPlaces(Failed[SearchQuery, []Place]("tacos", KindQueryLimit))

	snap := NewSnapshot(state)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, SnapshotVersion, snap.Version)
	assert.Equal(t, now, snap.SavedAt)

	data, err := EncodeSnapshot(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"error":"QUERY_LIMIT"`)

	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, decoded.ID)
	assert.True(t, decoded.State.UpdatedAt.Equal(now))
	require.NotNil(t, decoded.State.CurrentLocation)
	assert.Equal(t, PhaseSuccess, decoded.State.CurrentLocation.Phase)
	assert.Equal(t, 30.2672, decoded.State.CurrentLocation.Result.Point.Lat)
	assert.True(t, decoded.State.CurrentLocation.Result.FixedAt.Equal(now))
	require.NotNil(t, decoded.State.LunchPlaces)
	assert.Equal(t, SearchQuery("tacos"), decoded.State.LunchPlaces.Arg)
	assert.Equal(t, KindQueryLimit, decoded.State.LunchPlaces.Kind)
}

func TestDecodeSnapshot_Invalid(t *testing.T) {
	_, err := DecodeSnapshot([]byte("not json"))
	require.Error(t, err)

	_, err = DecodeSnapshot([]byte(`{"version":99}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version")
}
