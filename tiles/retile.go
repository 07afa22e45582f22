package tiles

import (
	"fmt"

	"github.com/go-spatial/geom"

	"github.com/pdok/tilepyramid/gpkg"
	"github.com/pdok/tilepyramid/mathhelp"
	"github.com/pdok/tilepyramid/tilemath"
)

// updateTileBounds merges the request into an existing tile table: it unions
// the stored and requested bounds and, for fitted format tables, regrids
// every stored tile into the grown matrix set.
func (g *Generator) updateTileBounds(tileMatrixSet *gpkg.TileMatrixSet) error {
	tileDao, err := g.geoPackage.TileDao(g.table)
	if err != nil {
		return err
	}

	if tileDao.IsStandardWebMercatorFormat() {
		if !g.googleTiles {
			// fitted tiles land in a standard format table as standard tiles
			g.googleTiles = true
			g.adjustGoogleBounds()
		}
	} else if g.googleTiles {
		return fmt.Errorf("%w: can not add standard web mercator tiles to %s which holds fitted format tiles",
			ErrFormatConflict, g.table)
	}

	contents, err := g.geoPackage.Contents().QueryByID(g.table)
	if err != nil {
		return err
	}
	if contents == nil {
		return fmt.Errorf("no contents row for %s", g.table)
	}
	contentsBox, err := boundingBoxInWGS84(
		geom.Extent{contents.MinX, contents.MinY, contents.MaxX, contents.MaxY}, contents.SrsID)
	if err != nil {
		return err
	}

	g.boundingBox = tilemath.Union(contentsBox, g.boundingBox)
	if !contentsBox.Equal(g.boundingBox) {
		contentsExtent, err := wgs84ToSRS(g.boundingBox, contents.SrsID)
		if err != nil {
			return err
		}
		contents.MinX, contents.MinY, contents.MaxX, contents.MaxY =
			contentsExtent[0], contentsExtent[1], contentsExtent[2], contentsExtent[3]
		if err = g.geoPackage.Contents().Update(contents); err != nil {
			return err
		}
	}

	if g.googleTiles {
		return nil
	}

	previousBox, err := boundingBoxInWGS84(tileMatrixSet.Extent(), tileMatrixSet.SrsID)
	if err != nil {
		return err
	}

	// refit the matrix set around the union at the lowest involved zoom
	totalExtent := tilemath.ToWebMercator(g.boundingBox)
	minNewOrUpdateZoom := g.minZoom
	if existingMinZoom, ok := tileDao.MinZoom(); ok {
		minNewOrUpdateZoom = mathhelp.MinInt(minNewOrUpdateZoom, existingMinZoom)
	}
	g.adjustFittedBounds(totalExtent, minNewOrUpdateZoom)

	if !previousBox.Equal(g.tileMatrixSetBoundingBox) {
		matrixSetExtent, err := wgs84ToSRS(g.tileMatrixSetBoundingBox, tileMatrixSet.SrsID)
		if err != nil {
			return err
		}
		tileMatrixSet.SetExtent(matrixSetExtent)
		if err = g.geoPackage.TileMatrixSets().Update(tileMatrixSet); err != nil {
			return err
		}
	}

	previousExtent := tilemath.ToWebMercator(previousBox)
	newExtent := tilemath.ToWebMercator(g.tileMatrixSetBoundingBox)

	for _, zoom := range tileDao.Zooms() {
		tileMatrix := tileDao.TileMatrixAt(zoom)

		adjustment := mathhelp.Pow2(uint(zoom - minNewOrUpdateZoom))
		zoomMatrixWidth := g.matrixWidth * adjustment
		zoomMatrixHeight := g.matrixHeight * adjustment

		// Walk the level in descending (column, row) order. Tiles only move
		// towards higher indices when the box grows, so this order never
		// produces a transient (zoom, column, row) collision. Do not replace
		// with a set based bulk update.
		rows, err := tileDao.QueryDescending(zoom)
		if err != nil {
			return err
		}
		for _, row := range rows {
			oldExtent := tilemath.ExtentOfLocalTile(previousExtent,
				tileMatrix.MatrixWidth, tileMatrix.MatrixHeight, row.Column, row.Row)
			midX := oldExtent[0] + (oldExtent[2]-oldExtent[0])/2.0
			midY := oldExtent[1] + (oldExtent[3]-oldExtent[1])/2.0

			newRow := tilemath.TileRow(newExtent, zoomMatrixHeight, midY)
			newColumn := tilemath.TileColumn(newExtent, zoomMatrixWidth, midX)
			if err = tileDao.UpdateLocation(row.ID, newColumn, newRow); err != nil {
				return err
			}
		}

		tileMatrix.MatrixWidth = zoomMatrixWidth
		tileMatrix.MatrixHeight = zoomMatrixHeight
		tileMatrix.PixelXSize = (g.webMercatorBoundingBox[2] - g.webMercatorBoundingBox[0]) /
			float64(zoomMatrixWidth) / float64(tileMatrix.TileWidth)
		tileMatrix.PixelYSize = (g.webMercatorBoundingBox[3] - g.webMercatorBoundingBox[1]) /
			float64(zoomMatrixHeight) / float64(tileMatrix.TileHeight)
		if err = tileDao.UpdateTileMatrix(tileMatrix); err != nil {
			return err
		}
	}

	// when the request starts above the lowest stored level, scale the
	// dimensions up to the request min zoom for the generation phase
	if minNewOrUpdateZoom < g.minZoom {
		adjustment := mathhelp.Pow2(uint(g.minZoom - minNewOrUpdateZoom))
		g.matrixWidth *= adjustment
		g.matrixHeight *= adjustment
	}

	return nil
}

// boundingBoxInWGS84 interprets a stored extent in the given srs as a WGS84 box.
func boundingBoxInWGS84(e geom.Extent, srsID int64) (tilemath.BoundingBox, error) {
	switch srsID {
	case tilemath.EPSGWGS84:
		return tilemath.BoundingBox{MinLon: e[0], MinLat: e[1], MaxLon: e[2], MaxLat: e[3]}, nil
	case tilemath.EPSGWebMercator:
		return tilemath.ToWGS84(e), nil
	default:
		return tilemath.BoundingBox{}, fmt.Errorf("unsupported srs %d", srsID)
	}
}

// wgs84ToSRS transforms a WGS84 box to an extent in the given srs.
func wgs84ToSRS(b tilemath.BoundingBox, srsID int64) (geom.Extent, error) {
	switch srsID {
	case tilemath.EPSGWGS84:
		return geom.Extent{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat}, nil
	case tilemath.EPSGWebMercator:
		return tilemath.ToWebMercator(b), nil
	default:
		return geom.Extent{}, fmt.Errorf("unsupported srs %d", srsID)
	}
}
