package tilemath

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClampToWebMercator(t *testing.T) {
	clamped := BoundingBox{MinLon: -180, MaxLon: 180, MinLat: -90, MaxLat: 90}.ClampToWebMercator()
	require.Equal(t, WorldBoundingBox(), clamped)

	untouched := BoundingBox{MinLon: -10, MaxLon: 10, MinLat: -10, MaxLat: 10}
	require.Equal(t, untouched, untouched.ClampToWebMercator())
}

func TestUnion(t *testing.T) {
	a := BoundingBox{MinLon: -10, MaxLon: 10, MinLat: -10, MaxLat: 10}
	b := BoundingBox{MinLon: -20, MaxLon: 5, MinLat: 0, MaxLat: 20}
	want := BoundingBox{MinLon: -20, MaxLon: 10, MinLat: -10, MaxLat: 20}
	require.Equal(t, want, Union(a, b))
	require.Equal(t, want, Union(b, a))
	require.Equal(t, a, Union(a, a))
}

func TestToWebMercator(t *testing.T) {
	world := ToWebMercator(WorldBoundingBox())
	require.InDelta(t, -WebMercatorHalfWorld, world[0], 1e-6)
	require.InDelta(t, -WebMercatorHalfWorld, world[1], 1e-6)
	require.InDelta(t, WebMercatorHalfWorld, world[2], 1e-6)
	require.InDelta(t, WebMercatorHalfWorld, world[3], 1e-6)

	// equator and prime meridian land at the origin
	origin := ToWebMercator(BoundingBox{MinLon: 0, MaxLon: 0, MinLat: 0, MaxLat: 0})
	require.InDelta(t, 0, origin[0], 1e-6)
	require.InDelta(t, 0, origin[1], 1e-6)
}

func TestToWGS84RoundTrip(t *testing.T) {
	boxes := []BoundingBox{
		{MinLon: -10, MaxLon: 10, MinLat: -10, MaxLat: 10},
		{MinLon: 4.5, MaxLon: 6.8, MinLat: 51.9, MaxLat: 53.2},
		WorldBoundingBox(),
	}
	for _, box := range boxes {
		back := ToWGS84(ToWebMercator(box))
		require.InDelta(t, box.MinLon, back.MinLon, 1e-9)
		require.InDelta(t, box.MaxLon, back.MaxLon, 1e-9)
		require.InDelta(t, box.MinLat, back.MinLat, 1e-9)
		require.InDelta(t, box.MaxLat, back.MaxLat, 1e-9)
	}
}

func TestTileGridCount(t *testing.T) {
	require.EqualValues(t, 1, TileGrid{}.Count())
	require.EqualValues(t, 4, TileGrid{MinX: 1, MinY: 1, MaxX: 2, MaxY: 2}.Count())
	require.EqualValues(t, 6, TileGrid{MinX: 0, MinY: 1, MaxX: 2, MaxY: 2}.Count())
	require.True(t, TileGrid{MinX: 1, MinY: 1, MaxX: 2, MaxY: 2}.Contains(2, 1))
	require.False(t, TileGrid{MinX: 1, MinY: 1, MaxX: 2, MaxY: 2}.Contains(0, 1))
}
