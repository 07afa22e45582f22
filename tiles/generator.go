package tiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-spatial/geom"
	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pdok/tilepyramid/gpkg"
	"github.com/pdok/tilepyramid/tilemath"
)

var (
	// ErrFormatConflict is returned when standard web mercator tiles are
	// requested for a table that already holds fitted format tiles.
	ErrFormatConflict = errors.New("tile format conflict")

	// ErrGenerationInProgress is returned when the generator is reconfigured
	// or restarted while a Generate call is running.
	ErrGenerationInProgress = errors.New("generation in progress")
)

// Generator materializes a tile pyramid for one tile table. Configure it
// with the setters, then run Generate once; the configuration is frozen
// while a generation runs.
type Generator struct {
	geoPackage *gpkg.GeoPackage
	table      string
	minZoom    int
	maxZoom    int
	source     TileSource
	log        *logrus.Entry

	boundingBox     tilemath.BoundingBox
	compressFormat  string
	compressQuality *float64
	progress        Progress
	googleTiles     bool

	tileCount *int
	tileGrids *orderedmap.OrderedMap[int, tilemath.TileGrid]

	tileMatrixSetBoundingBox tilemath.BoundingBox
	webMercatorBoundingBox   geom.Extent
	matrixWidth              int64
	matrixHeight             int64

	generating bool
}

// New creates a generator for the given tile table and inclusive zoom range.
// The request bounding box defaults to the whole world.
func New(geoPackage *gpkg.GeoPackage, table string, minZoom, maxZoom int, source TileSource) (*Generator, error) {
	if geoPackage == nil {
		return nil, errors.New("geopackage is required")
	}
	if table == "" {
		return nil, errors.New("table name is required")
	}
	if source == nil {
		return nil, errors.New("tile source is required")
	}
	if minZoom < 0 || minZoom > maxZoom {
		return nil, fmt.Errorf("invalid zoom range %d..%d", minZoom, maxZoom)
	}
	return &Generator{
		geoPackage:  geoPackage,
		table:       table,
		minZoom:     minZoom,
		maxZoom:     maxZoom,
		source:      source,
		log:         logrus.WithField("table", table),
		boundingBox: tilemath.WorldBoundingBox(),
		progress:    nopProgress{},
	}, nil
}

func (g *Generator) mutable() error {
	if g.generating {
		return ErrGenerationInProgress
	}
	return nil
}

// SetTileBoundingBox sets the request box in WGS84. Latitudes are clamped to
// the web mercator range.
func (g *Generator) SetTileBoundingBox(boundingBox tilemath.BoundingBox) error {
	if err := g.mutable(); err != nil {
		return err
	}
	g.boundingBox = boundingBox.ClampToWebMercator()
	g.tileCount = nil
	g.tileGrids = nil
	return nil
}

// SetTileBoundingBoxInSRS sets the request box given in another supported
// coordinate reference system.
func (g *Generator) SetTileBoundingBoxInSRS(box geom.Extent, srsID int64) error {
	wgs84, err := boundingBoxInWGS84(box, srsID)
	if err != nil {
		return err
	}
	return g.SetTileBoundingBox(wgs84)
}

func (g *Generator) TileBoundingBox() tilemath.BoundingBox {
	return g.boundingBox
}

func (g *Generator) SetCompressFormat(format string) error {
	if err := g.mutable(); err != nil {
		return err
	}
	switch format {
	case "", FormatPNG, FormatJPEG, FormatJPG:
		g.compressFormat = format
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

func (g *Generator) CompressFormat() string {
	return g.compressFormat
}

// SetCompressQuality sets the compression quality between 0.0 and 1.0. It
// only applies when a compress format is set.
func (g *Generator) SetCompressQuality(quality *float64) error {
	if err := g.mutable(); err != nil {
		return err
	}
	if quality != nil && (*quality < 0.0 || *quality > 1.0) {
		return fmt.Errorf("compress quality must be between 0.0 and 1.0, not: %v", *quality)
	}
	g.compressQuality = quality
	return nil
}

func (g *Generator) CompressQuality() *float64 {
	return g.compressQuality
}

// SetGoogleTiles switches to the standard web mercator addressing scheme
// where (column, row) equal the global tile (x, y).
func (g *Generator) SetGoogleTiles(googleTiles bool) error {
	if err := g.mutable(); err != nil {
		return err
	}
	g.googleTiles = googleTiles
	return nil
}

func (g *Generator) GoogleTiles() bool {
	return g.googleTiles
}

func (g *Generator) SetProgress(progress Progress) error {
	if err := g.mutable(); err != nil {
		return err
	}
	if progress == nil {
		progress = nopProgress{}
	}
	g.progress = progress
	return nil
}

func (g *Generator) Progress() Progress {
	return g.progress
}

func (g *Generator) SetLogger(logger *logrus.Logger) error {
	if err := g.mutable(); err != nil {
		return err
	}
	g.log = logger.WithField("table", g.table)
	return nil
}

// Close closes the underlying container.
func (g *Generator) Close() error {
	return g.geoPackage.Close()
}

func (g *Generator) Table() string {
	return g.table
}

func (g *Generator) MinZoom() int {
	return g.minZoom
}

func (g *Generator) MaxZoom() int {
	return g.maxZoom
}

// TileCount is the number of tiles the current request would cover over all
// zoom levels. The per zoom grids are computed once and reused by Generate.
func (g *Generator) TileCount() int {
	if g.tileCount == nil {
		grids := orderedmap.New[int, tilemath.TileGrid]()
		requestExtent := tilemath.ToWebMercator(g.boundingBox)
		count := 0
		for zoom := g.minZoom; zoom <= g.maxZoom; zoom++ {
			grid := tilemath.TileGridAtZoom(requestExtent, zoom)
			count += int(grid.Count())
			grids.Set(zoom, grid)
		}
		g.tileGrids = grids
		g.tileCount = &count
	}
	return *g.tileCount
}

// Generate creates or updates the tile table and returns the number of tiles
// committed. A fatal failure drops the target table before the error is
// returned; a format conflict leaves the table untouched.
func (g *Generator) Generate(ctx context.Context) (int, error) {
	if err := g.mutable(); err != nil {
		return 0, err
	}
	g.generating = true
	defer func() { g.generating = false }()

	totalCount := g.TileCount()
	g.progress.SetMax(totalCount)
	for pair := g.tileGrids.Oldest(); pair != nil; pair = pair.Next() {
		g.log.Debugf("zoom %d: %d tiles planned", pair.Key, pair.Value.Count())
	}

	requestExtent := tilemath.ToWebMercator(g.boundingBox)
	g.adjustBounds(requestExtent, g.minZoom)

	update := false
	var tileMatrixSet *gpkg.TileMatrixSet
	tableExists, err := g.geoPackage.TileMatrixSets().TableExists()
	if err != nil {
		return 0, err
	}
	idExists := false
	if tableExists {
		if idExists, err = g.geoPackage.TileMatrixSets().IDExists(g.table); err != nil {
			return 0, err
		}
	}
	if !tableExists || !idExists {
		if _, err = g.geoPackage.SpatialReferenceSystems().GetOrCreate(tilemath.EPSGWebMercator); err != nil {
			return 0, err
		}
		if tileMatrixSet, err = g.geoPackage.CreateTileTableWithMetadata(
			g.table, g.boundingBox, g.webMercatorBoundingBox); err != nil {
			g.geoPackage.DeleteTableQuietly(g.table)
			return 0, err
		}
	} else {
		update = true
		if tileMatrixSet, err = g.geoPackage.TileMatrixSets().QueryForID(g.table); err != nil {
			return 0, err
		}
	}

	count, err := g.generateToTable(ctx, tileMatrixSet, requestExtent, update)
	if err != nil {
		// compensate partial writes, except on a format conflict which
		// happens before anything is touched
		if !errors.Is(err, ErrFormatConflict) {
			g.geoPackage.DeleteTableQuietly(g.table)
		}
		return 0, err
	}
	return count, nil
}

// generateToTable runs the merge, per zoom generation and finalization
// phases. Any error out of here, except a format conflict, makes the caller
// drop the table.
func (g *Generator) generateToTable(ctx context.Context, tileMatrixSet *gpkg.TileMatrixSet,
	requestExtent geom.Extent, update bool) (int, error) {

	if update {
		if err := g.updateTileBounds(tileMatrixSet); err != nil {
			return 0, err
		}
	}

	contents, err := g.geoPackage.Contents().QueryByID(g.table)
	if err != nil {
		return 0, err
	}
	if contents == nil {
		return 0, fmt.Errorf("no contents row for %s", g.table)
	}
	tileDao, err := g.geoPackage.TileDao(g.table)
	if err != nil {
		return 0, err
	}

	count := 0
	for zoom := g.minZoom; zoom <= g.maxZoom && g.progress.IsActive(); zoom++ {
		var localTileGrid *tilemath.TileGrid
		if g.googleTiles {
			g.matrixWidth = tilemath.TilesPerSide(zoom)
			g.matrixHeight = g.matrixWidth
		} else {
			local := tilemath.TileGridInExtent(g.webMercatorBoundingBox, g.matrixWidth, g.matrixHeight, requestExtent)
			localTileGrid = &local
		}

		tileGrid, _ := g.tileGrids.Get(zoom)
		zoomCount, err := g.generateZoom(ctx, tileDao, zoom, tileGrid, localTileGrid, update)
		if err != nil {
			return 0, err
		}
		count += zoomCount

		if !g.googleTiles {
			// fitted matrices double per level
			g.matrixWidth *= 2
			g.matrixHeight *= 2
		}
	}

	if !g.progress.IsActive() && g.progress.CleanupOnCancel() {
		g.geoPackage.DeleteTableQuietly(g.table)
		return 0, nil
	}

	contents.LastChange = time.Now().UTC()
	if err = g.geoPackage.Contents().Update(contents); err != nil {
		return 0, err
	}
	return count, nil
}

func (g *Generator) adjustBounds(requestExtent geom.Extent, zoom int) {
	if g.googleTiles {
		g.adjustGoogleBounds()
	} else {
		g.adjustFittedBounds(requestExtent, zoom)
	}
}

// adjustGoogleBounds pins the matrix set to the whole world.
func (g *Generator) adjustGoogleBounds() {
	g.tileMatrixSetBoundingBox = tilemath.WorldBoundingBox()
	g.webMercatorBoundingBox = tilemath.ToWebMercator(g.tileMatrixSetBoundingBox)
}

// adjustFittedBounds fits a tight tile grid around the request at the given
// zoom; its exact extent becomes the matrix set bounds.
func (g *Generator) adjustFittedBounds(requestExtent geom.Extent, zoom int) {
	tileGrid := tilemath.TileGridAtZoom(requestExtent, zoom)
	g.webMercatorBoundingBox = tilemath.ExtentOfTileGrid(tileGrid, zoom)
	g.tileMatrixSetBoundingBox = tilemath.ToWGS84(g.webMercatorBoundingBox)
	g.matrixWidth = tileGrid.Width()
	g.matrixHeight = tileGrid.Height()
}

// generateZoom produces all tiles of one zoom level.
func (g *Generator) generateZoom(ctx context.Context, tileDao *gpkg.TileDao, zoom int,
	tileGrid tilemath.TileGrid, localTileGrid *tilemath.TileGrid, update bool) (int, error) {

	count := 0
	var tileWidth, tileHeight int64

	for x := tileGrid.MinX; x <= tileGrid.MaxX; x++ {
		if !g.progress.IsActive() {
			break
		}
		for y := tileGrid.MinY; y <= tileGrid.MaxY; y++ {
			if !g.progress.IsActive() {
				break
			}

			created, width, height := g.generateTile(ctx, tileDao, zoom, x, y, tileGrid, localTileGrid, update)
			if created {
				count++
				if tileWidth == 0 && width > 0 {
					tileWidth = width
					tileHeight = height
				}
			}

			// progress advances on failures and absent tiles too
			g.progress.AddProgress(1)
		}
	}

	if tileWidth == 0 || tileHeight == 0 {
		// no tile at this level could be decoded, the matrix can not be
		// sized: remove whatever was stored, at the coordinates the tiles
		// were stored under
		count = 0
		deleteGrid := tileGrid
		if localTileGrid != nil {
			deleteGrid = tilemath.TileGrid{
				MinX: localTileGrid.MinX,
				MinY: localTileGrid.MinY,
				MaxX: localTileGrid.MinX + tileGrid.Width() - 1,
				MaxY: localTileGrid.MinY + tileGrid.Height() - 1,
			}
		}
		if err := tileDao.DeleteRange(zoom, deleteGrid); err != nil {
			return 0, err
		}
		return count, nil
	}

	create := true
	if update {
		exists, err := g.geoPackage.TileMatrices().IDExists(g.table, zoom)
		if err != nil {
			return 0, err
		}
		create = !exists
	}
	if create {
		pixelXSize := (g.webMercatorBoundingBox[2] - g.webMercatorBoundingBox[0]) /
			float64(g.matrixWidth) / float64(tileWidth)
		pixelYSize := (g.webMercatorBoundingBox[3] - g.webMercatorBoundingBox[1]) /
			float64(g.matrixHeight) / float64(tileHeight)
		err := tileDao.CreateTileMatrix(&gpkg.TileMatrix{
			TableName:    g.table,
			ZoomLevel:    zoom,
			MatrixWidth:  g.matrixWidth,
			MatrixHeight: g.matrixHeight,
			TileWidth:    tileWidth,
			TileHeight:   tileHeight,
			PixelXSize:   pixelXSize,
			PixelYSize:   pixelYSize,
		})
		if err != nil {
			return 0, err
		}
	}
	return count, nil
}

// generateTile fetches, optionally transcodes and stores a single tile. Tile
// level failures are logged and swallowed, the tile is skipped.
func (g *Generator) generateTile(ctx context.Context, tileDao *gpkg.TileDao, zoom int, x, y int64,
	tileGrid tilemath.TileGrid, localTileGrid *tilemath.TileGrid, update bool) (created bool, width, height int64) {

	tileColumn, tileRow := x, y
	if localTileGrid != nil {
		tileColumn = (x - tileGrid.MinX) + localTileGrid.MinX
		tileRow = (y - tileGrid.MinY) + localTileGrid.MinY
	}

	err := func() error {
		if update {
			if err := tileDao.DeleteTile(tileColumn, tileRow, zoom); err != nil {
				return err
			}
		}

		data, err := g.source.Tile(ctx, zoom, x, y)
		if err != nil {
			return err
		}
		if data == nil {
			return nil
		}

		probedWidth, probedHeight := 0, 0
		if g.compressFormat != "" {
			if w, h, probeErr := imageSize(data); probeErr == nil {
				probedWidth, probedHeight = w, h
				encoded, encodeErr := encodeImage(data, g.compressFormat, g.compressQuality)
				if encodeErr != nil {
					return encodeErr
				}
				data = encoded
			}
			// undecodable bytes are stored as delivered
		}

		if err = tileDao.Create(&gpkg.TileRow{Zoom: zoom, Column: tileColumn, Row: tileRow, Data: data}); err != nil {
			return err
		}
		created = true

		if probedWidth == 0 {
			if w, h, probeErr := imageSize(data); probeErr == nil {
				probedWidth, probedHeight = w, h
			}
		}
		width, height = int64(probedWidth), int64(probedHeight)
		return nil
	}()
	if err != nil {
		created = false
		width, height = 0, 0
		g.log.WithError(err).Warnf("failed to create tile, zoom: %d, x: %d, y: %d", zoom, x, y)
	}
	return created, width, height
}
