package tiles

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdok/tilepyramid/gpkg"
)

// stubSource serves the same blob for every tile, or nothing when the blob is nil.
type stubSource struct {
	data  []byte
	mu    sync.Mutex
	calls int
}

func (s *stubSource) Tile(_ context.Context, _ int, _, _ int64) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.data == nil {
		return nil, nil
	}
	return s.data, nil
}

// countingProgress deactivates itself after a fixed number of AddProgress calls.
type countingProgress struct {
	max             int
	progress        int
	deactivateAfter int
	cleanup         bool
}

func (p *countingProgress) SetMax(max int)  { p.max = max }
func (p *countingProgress) AddProgress(n int) {
	p.progress += n
}
func (p *countingProgress) IsActive() bool {
	return p.deactivateAfter <= 0 || p.progress < p.deactivateAfter
}
func (p *countingProgress) CleanupOnCancel() bool { return p.cleanup }

func pngTile(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func openTestGeoPackage(t *testing.T) *gpkg.GeoPackage {
	t.Helper()
	g, err := gpkg.Open(filepath.Join(t.TempDir(), "test.gpkg"))
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

// assertPixelSizes verifies that every persisted tile matrix satisfies
// pixel_size * matrix_size * tile_size == matrix set span.
func assertPixelSizes(t *testing.T, geoPackage *gpkg.GeoPackage, table string) {
	t.Helper()
	dao, err := geoPackage.TileDao(table)
	require.NoError(t, err)
	tileMatrixSet := dao.TileMatrixSet()
	for _, zoom := range dao.Zooms() {
		matrix := dao.TileMatrixAt(zoom)
		require.InDelta(t, tileMatrixSet.MaxX-tileMatrixSet.MinX,
			matrix.PixelXSize*float64(matrix.MatrixWidth)*float64(matrix.TileWidth), 1e-6, "zoom %d x", zoom)
		require.InDelta(t, tileMatrixSet.MaxY-tileMatrixSet.MinY,
			matrix.PixelYSize*float64(matrix.MatrixHeight)*float64(matrix.TileHeight), 1e-6, "zoom %d y", zoom)
	}
}
