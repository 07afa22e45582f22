package tilemath

import (
	"math"

	"github.com/go-spatial/geom"

	"github.com/pdok/tilepyramid/mathhelp"
)

// TilesPerSide is the number of tiles per axis of the global grid at a zoom level.
func TilesPerSide(zoom int) int64 {
	return mathhelp.Pow2(uint(zoom))
}

// tileSize is the span in meters of a single global tile at the given tiles per side.
func tileSize(tilesPerSide int64) float64 {
	return (2 * WebMercatorHalfWorld) / float64(tilesPerSide)
}

// boundaryPrecision is the distance, in tiles, within which a box edge counts
// as lying on a tile boundary; it absorbs floating point round-off.
const boundaryPrecision = 1e-6

// TileGridAtZoom identifies the inclusive range of global web mercator tiles
// whose extents intersect the given web mercator box. A box edge on a tile
// boundary (within boundaryPrecision) selects the lower tile, the far edge is
// not double counted.
func TileGridAtZoom(e geom.Extent, zoom int) TileGrid {
	perSide := TilesPerSide(zoom)
	size := tileSize(perSide)

	minX := int64((e[0]+WebMercatorHalfWorld)/size + boundaryPrecision)
	tempMaxX := (e[2] + WebMercatorHalfWorld) / size
	maxX := int64(tempMaxX)
	if tempMaxX-math.Trunc(tempMaxX) < boundaryPrecision {
		maxX--
	}
	if maxX > perSide-1 {
		maxX = perSide - 1
	}

	minY := int64(-(e[3]-WebMercatorHalfWorld)/size + boundaryPrecision)
	tempMaxY := -(e[1] - WebMercatorHalfWorld) / size
	maxY := int64(tempMaxY)
	if tempMaxY-math.Trunc(tempMaxY) < boundaryPrecision {
		maxY--
	}
	if maxY > perSide-1 {
		maxY = perSide - 1
	}

	return TileGrid{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// ExtentOfTileGrid is the exact web mercator extent of a global tile grid at a zoom level.
func ExtentOfTileGrid(g TileGrid, zoom int) geom.Extent {
	size := tileSize(TilesPerSide(zoom))
	return geom.Extent{
		-WebMercatorHalfWorld + float64(g.MinX)*size,
		WebMercatorHalfWorld - float64(g.MaxY+1)*size,
		-WebMercatorHalfWorld + float64(g.MaxX+1)*size,
		WebMercatorHalfWorld - float64(g.MinY)*size,
	}
}

// TileGridInExtent finds the inclusive cell range of a fitted matrix covering
// the request box. The outer box total is divided into matrixWidth by
// matrixHeight equal cells. A request reaching outside the outer box clamps
// to the matrix edges.
func TileGridInExtent(total geom.Extent, matrixWidth, matrixHeight int64, e geom.Extent) TileGrid {
	minColumn := TileColumn(total, matrixWidth, e[0])
	maxColumn := TileColumn(total, matrixWidth, e[2])
	if minColumn < matrixWidth && maxColumn >= 0 {
		if minColumn < 0 {
			minColumn = 0
		}
		if maxColumn >= matrixWidth {
			maxColumn = matrixWidth - 1
		}
	}

	minRow := TileRow(total, matrixHeight, e[3])
	maxRow := TileRow(total, matrixHeight, e[1])
	if minRow < matrixHeight && maxRow >= 0 {
		if minRow < 0 {
			minRow = 0
		}
		if maxRow >= matrixHeight {
			maxRow = matrixHeight - 1
		}
	}

	return TileGrid{MinX: minColumn, MinY: minRow, MaxX: maxColumn, MaxY: maxRow}
}

// TileColumn locates the matrix column containing the x coordinate, -1 when
// left of the box and matrixWidth when at or right of the max edge.
func TileColumn(total geom.Extent, matrixWidth int64, x float64) int64 {
	minX := total[0]
	maxX := total[2]
	if x < minX {
		return -1
	}
	if x >= maxX {
		return matrixWidth
	}
	matrixWidthMeters := maxX - minX
	width := matrixWidthMeters / float64(matrixWidth)
	return int64((x - minX) / width)
}

// TileRow locates the matrix row containing the y coordinate, -1 when at or
// above the max edge and matrixHeight when below the min edge. Rows count
// down from the top of the box.
func TileRow(total geom.Extent, matrixHeight int64, y float64) int64 {
	minY := total[1]
	maxY := total[3]
	if y < minY {
		return matrixHeight
	}
	if y >= maxY {
		return -1
	}
	matrixHeightMeters := maxY - minY
	height := matrixHeightMeters / float64(matrixHeight)
	return int64((maxY - y) / height)
}

// ExtentOfLocalTile is the web mercator extent of a single cell of a fitted
// matrix laid out inside the outer box.
func ExtentOfLocalTile(total geom.Extent, matrixWidth, matrixHeight, col, row int64) geom.Extent {
	spanX := (total[2] - total[0]) / float64(matrixWidth)
	spanY := (total[3] - total[1]) / float64(matrixHeight)

	minX := total[0] + spanX*float64(col)
	maxY := total[3] - spanY*float64(row)
	return geom.Extent{minX, maxY - spanY, minX + spanX, maxY}
}
