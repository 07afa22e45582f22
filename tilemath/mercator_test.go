package tilemath

import (
	"fmt"
	"testing"

	"github.com/go-spatial/geom"
	"github.com/stretchr/testify/require"
)

func TestTilesPerSide(t *testing.T) {
	require.EqualValues(t, 1, TilesPerSide(0))
	require.EqualValues(t, 2, TilesPerSide(1))
	require.EqualValues(t, 4, TilesPerSide(2))
	require.EqualValues(t, 1<<22, TilesPerSide(22))
}

func TestTileGridAtZoom(t *testing.T) {
	world := ToWebMercator(WorldBoundingBox())
	tests := []struct {
		name   string
		extent geom.Extent
		zoom   int
		want   TileGrid
	}{
		{name: "world zoom 0", extent: world, zoom: 0,
			want: TileGrid{MinX: 0, MinY: 0, MaxX: 0, MaxY: 0}},
		{name: "world zoom 1", extent: world, zoom: 1,
			want: TileGrid{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}},
		{name: "world zoom 2", extent: world, zoom: 2,
			want: TileGrid{MinX: 0, MinY: 0, MaxX: 3, MaxY: 3}},
		{name: "box straddling origin zoom 2",
			extent: ToWebMercator(BoundingBox{MinLon: -10, MaxLon: 10, MinLat: -10, MaxLat: 10}), zoom: 2,
			want: TileGrid{MinX: 1, MinY: 1, MaxX: 2, MaxY: 2}},
		{name: "box inside one tile zoom 2",
			extent: ToWebMercator(BoundingBox{MinLon: 5, MaxLon: 10, MinLat: 5, MaxLat: 10}), zoom: 2,
			want: TileGrid{MinX: 2, MinY: 1, MaxX: 2, MaxY: 1}},
		{name: "edge exactly on tile boundary takes the lower tile",
			// 90 degrees is the column boundary between tiles 2 and 3 at zoom 2
			extent: geom.Extent{0, 0, WebMercatorHalfWorld / 2, WebMercatorHalfWorld / 2}, zoom: 2,
			want: TileGrid{MinX: 2, MinY: 1, MaxX: 2, MaxY: 1}},
		{name: "far world edge not double counted",
			extent: geom.Extent{WebMercatorHalfWorld / 2, 0, WebMercatorHalfWorld, WebMercatorHalfWorld}, zoom: 2,
			want: TileGrid{MinX: 3, MinY: 0, MaxX: 3, MaxY: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, TileGridAtZoom(tt.extent, tt.zoom))
		})
	}
}

func TestTileGridRoundTrip(t *testing.T) {
	// a single tile's exact extent must map back to exactly that tile
	for zoom := 0; zoom <= 22; zoom++ {
		max := TilesPerSide(zoom) - 1
		candidates := []TileGrid{
			{MinX: 0, MinY: 0, MaxX: 0, MaxY: 0},
			{MinX: max, MinY: max, MaxX: max, MaxY: max},
			{MinX: max / 2, MinY: max / 3, MaxX: max / 2, MaxY: max / 3},
			{MinX: max / 3, MinY: max, MaxX: max / 3, MaxY: max},
		}
		for _, tile := range candidates {
			t.Run(fmt.Sprintf("z%d_%d_%d", zoom, tile.MinX, tile.MinY), func(t *testing.T) {
				extent := ExtentOfTileGrid(tile, zoom)
				require.Equal(t, tile, TileGridAtZoom(extent, zoom))
			})
		}
	}
}

func TestExtentOfTileGrid(t *testing.T) {
	extent := ExtentOfTileGrid(TileGrid{MinX: 1, MinY: 1, MaxX: 2, MaxY: 2}, 2)
	require.InDelta(t, -WebMercatorHalfWorld/2, extent[0], 1e-6)
	require.InDelta(t, -WebMercatorHalfWorld/2, extent[1], 1e-6)
	require.InDelta(t, WebMercatorHalfWorld/2, extent[2], 1e-6)
	require.InDelta(t, WebMercatorHalfWorld/2, extent[3], 1e-6)

	world := ExtentOfTileGrid(TileGrid{MinX: 0, MinY: 0, MaxX: 0, MaxY: 0}, 0)
	require.InDelta(t, -WebMercatorHalfWorld, world[0], 1e-6)
	require.InDelta(t, WebMercatorHalfWorld, world[3], 1e-6)
}

func TestTileColumnAndRow(t *testing.T) {
	total := geom.Extent{-100, -100, 100, 100}

	t.Run("column", func(t *testing.T) {
		require.EqualValues(t, -1, TileColumn(total, 4, -100.5))
		require.EqualValues(t, 0, TileColumn(total, 4, -100))
		require.EqualValues(t, 0, TileColumn(total, 4, -51))
		require.EqualValues(t, 1, TileColumn(total, 4, -50))
		require.EqualValues(t, 3, TileColumn(total, 4, 99))
		require.EqualValues(t, 4, TileColumn(total, 4, 100))
		require.EqualValues(t, 4, TileColumn(total, 4, 150))
	})

	t.Run("row counts down from the top", func(t *testing.T) {
		require.EqualValues(t, -1, TileRow(total, 4, 100))
		require.EqualValues(t, 0, TileRow(total, 4, 99))
		require.EqualValues(t, 1, TileRow(total, 4, 50))
		require.EqualValues(t, 3, TileRow(total, 4, -99))
		require.EqualValues(t, 4, TileRow(total, 4, -100.5))
	})
}

func TestTileGridInExtent(t *testing.T) {
	total := geom.Extent{-100, -100, 100, 100}
	tests := []struct {
		name    string
		request geom.Extent
		want    TileGrid
	}{
		{name: "centered", request: geom.Extent{-10, -10, 10, 10},
			want: TileGrid{MinX: 1, MinY: 1, MaxX: 2, MaxY: 2}},
		{name: "full", request: total,
			want: TileGrid{MinX: 0, MinY: 0, MaxX: 3, MaxY: 3}},
		{name: "request reaching outside clamps", request: geom.Extent{-200, -200, 0, 0},
			// the far edge at exactly 0 still touches cell 2
			want: TileGrid{MinX: 0, MinY: 2, MaxX: 2, MaxY: 3}},
		{name: "single cell", request: geom.Extent{60, 60, 70, 70},
			want: TileGrid{MinX: 3, MinY: 0, MaxX: 3, MaxY: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, TileGridInExtent(total, 4, 4, tt.request))
		})
	}
}

func TestExtentOfLocalTile(t *testing.T) {
	total := geom.Extent{-100, -100, 100, 100}

	topLeft := ExtentOfLocalTile(total, 4, 4, 0, 0)
	require.InDelta(t, -100, topLeft[0], 1e-9)
	require.InDelta(t, 50, topLeft[1], 1e-9)
	require.InDelta(t, -50, topLeft[2], 1e-9)
	require.InDelta(t, 100, topLeft[3], 1e-9)

	bottomRight := ExtentOfLocalTile(total, 4, 4, 3, 3)
	require.InDelta(t, 50, bottomRight[0], 1e-9)
	require.InDelta(t, -100, bottomRight[1], 1e-9)
	require.InDelta(t, 100, bottomRight[2], 1e-9)
	require.InDelta(t, -50, bottomRight[3], 1e-9)

	// a cell's centroid must map back to the same cell
	for col := int64(0); col < 4; col++ {
		for row := int64(0); row < 4; row++ {
			cell := ExtentOfLocalTile(total, 4, 4, col, row)
			midX := cell[0] + (cell[2]-cell[0])/2
			midY := cell[1] + (cell[3]-cell[1])/2
			require.Equal(t, col, TileColumn(total, 4, midX))
			require.Equal(t, row, TileRow(total, 4, midY))
		}
	}
}
