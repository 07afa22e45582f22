package gpkg

import (
	"fmt"
	"math"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/pdok/tilepyramid/tilemath"
)

// TileRow is a single stored tile.
type TileRow struct {
	ID     int64
	Zoom   int
	Column int64
	Row    int64
	Data   []byte
}

// TileDao reads and mutates one tile table. It caches the table's tile matrix
// set and tile matrices; the caches are refreshed by the mutators on this dao.
type TileDao struct {
	g             *GeoPackage
	table         string
	tileMatrixSet *TileMatrixSet
	tileMatrices  map[int]*TileMatrix
}

// TileDao opens a dao for an existing tile table. The table must have a
// contents row of type tiles and a tile matrix set.
func (g *GeoPackage) TileDao(table string) (*TileDao, error) {
	contents, err := g.Contents().QueryByID(table)
	if err != nil {
		return nil, err
	}
	if contents == nil || contents.DataType != ContentsDataTypeTiles {
		return nil, fmt.Errorf("%s is not a tiles table", table)
	}
	tileMatrixSet, err := g.TileMatrixSets().QueryForID(table)
	if err != nil {
		return nil, err
	}
	if tileMatrixSet == nil {
		return nil, fmt.Errorf("no tile matrix set for %s", table)
	}
	tileMatrices, err := g.TileMatrices().QueryForTable(table)
	if err != nil {
		return nil, err
	}
	return &TileDao{g: g, table: table, tileMatrixSet: tileMatrixSet, tileMatrices: tileMatrices}, nil
}

func (d *TileDao) TableName() string {
	return d.table
}

func (d *TileDao) TileMatrixSet() *TileMatrixSet {
	return d.tileMatrixSet
}

// TileMatrixAt returns the cached matrix for a zoom level or nil.
func (d *TileDao) TileMatrixAt(zoom int) *TileMatrix {
	return d.tileMatrices[zoom]
}

// Zooms returns the zoom levels holding a tile matrix, ascending.
func (d *TileDao) Zooms() []int {
	zooms := maps.Keys(d.tileMatrices)
	slices.Sort(zooms)
	return zooms
}

// MinZoom returns the lowest zoom level with a tile matrix. The second result
// is false when the table holds no matrices yet.
func (d *TileDao) MinZoom() (int, bool) {
	zooms := d.Zooms()
	if len(zooms) == 0 {
		return 0, false
	}
	return zooms[0], true
}

// MaxZoom returns the highest zoom level with a tile matrix.
func (d *TileDao) MaxZoom() (int, bool) {
	zooms := d.Zooms()
	if len(zooms) == 0 {
		return 0, false
	}
	return zooms[len(zooms)-1], true
}

// UpdateTileMatrix persists a matrix row and refreshes the dao cache.
func (d *TileDao) UpdateTileMatrix(m *TileMatrix) error {
	if err := d.g.TileMatrices().Update(m); err != nil {
		return err
	}
	d.tileMatrices[m.ZoomLevel] = m
	return nil
}

// CreateTileMatrix persists a new matrix row and refreshes the dao cache.
func (d *TileDao) CreateTileMatrix(m *TileMatrix) error {
	if err := d.g.TileMatrices().Create(m); err != nil {
		return err
	}
	d.tileMatrices[m.ZoomLevel] = m
	return nil
}

// IsStandardWebMercatorFormat reports whether the table stores tiles in the
// global web mercator addressing scheme: the matrix set covers the whole
// world and every matrix is 2^zoom tiles per side.
func (d *TileDao) IsStandardWebMercatorFormat() bool {
	var wgs84 tilemath.BoundingBox
	switch d.tileMatrixSet.SrsID {
	case tilemath.EPSGWebMercator:
		wgs84 = tilemath.ToWGS84(d.tileMatrixSet.Extent())
	case tilemath.EPSGWGS84:
		wgs84 = tilemath.BoundingBox{
			MinLon: d.tileMatrixSet.MinX, MinLat: d.tileMatrixSet.MinY,
			MaxLon: d.tileMatrixSet.MaxX, MaxLat: d.tileMatrixSet.MaxY,
		}
	default:
		return false
	}

	const epsilon = 0.001
	world := tilemath.WorldBoundingBox()
	if math.Abs(wgs84.MinLon-world.MinLon) > epsilon ||
		math.Abs(wgs84.MaxLon-world.MaxLon) > epsilon ||
		math.Abs(wgs84.MinLat-world.MinLat) > epsilon ||
		math.Abs(wgs84.MaxLat-world.MaxLat) > epsilon {
		return false
	}
	for zoom, m := range d.tileMatrices {
		perSide := tilemath.TilesPerSide(zoom)
		if m.MatrixWidth != perSide || m.MatrixHeight != perSide {
			return false
		}
	}
	return true
}

// Create inserts a tile row.
func (d *TileDao) Create(row *TileRow) error {
	res, err := d.g.db.Exec(
		fmt.Sprintf(`INSERT INTO "%s" (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)`, d.table),
		row.Zoom, row.Column, row.Row, row.Data)
	if err != nil {
		return fmt.Errorf("inserting tile %d/%d/%d into %s: %w", row.Zoom, row.Column, row.Row, d.table, err)
	}
	row.ID, _ = res.LastInsertId()
	return nil
}

// UpdateLocation moves a tile row to a new column and row.
func (d *TileDao) UpdateLocation(id, column, row int64) error {
	_, err := d.g.db.Exec(
		fmt.Sprintf(`UPDATE "%s" SET tile_column = ?, tile_row = ? WHERE id = ?`, d.table),
		column, row, id)
	if err != nil {
		return fmt.Errorf("relocating tile id %d in %s: %w", id, d.table, err)
	}
	return nil
}

// DeleteTile removes the tile at (column, row, zoom) when present.
func (d *TileDao) DeleteTile(column, row int64, zoom int) error {
	_, err := d.g.db.Exec(
		fmt.Sprintf(`DELETE FROM "%s" WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?`, d.table),
		zoom, column, row)
	if err != nil {
		return fmt.Errorf("deleting tile %d/%d/%d from %s: %w", zoom, column, row, d.table, err)
	}
	return nil
}

// DeleteRange removes all tiles of a zoom level inside the grid bounds.
func (d *TileDao) DeleteRange(zoom int, grid tilemath.TileGrid) error {
	_, err := d.g.db.Exec(
		fmt.Sprintf(`DELETE FROM "%s" WHERE zoom_level = ?
			AND tile_column >= ? AND tile_column <= ?
			AND tile_row >= ? AND tile_row <= ?`, d.table),
		zoom, grid.MinX, grid.MaxX, grid.MinY, grid.MaxY)
	if err != nil {
		return fmt.Errorf("deleting tile range %v at zoom %d from %s: %w", grid, zoom, d.table, err)
	}
	return nil
}

// QueryDescending returns all tile rows of a zoom level ordered by descending
// (column, row). The result is fully materialized so callers can mutate the
// table while walking it; the relocation pass depends on both the ordering
// and the closed cursor.
func (d *TileDao) QueryDescending(zoom int) ([]TileRow, error) {
	rows, err := d.g.db.Query(
		fmt.Sprintf(`SELECT id, zoom_level, tile_column, tile_row, tile_data FROM "%s"
			WHERE zoom_level = ? ORDER BY tile_column DESC, tile_row DESC`, d.table),
		zoom)
	if err != nil {
		return nil, fmt.Errorf("querying tiles of %s at zoom %d: %w", d.table, zoom, err)
	}
	defer rows.Close()

	var result []TileRow
	for rows.Next() {
		var r TileRow
		if err = rows.Scan(&r.ID, &r.Zoom, &r.Column, &r.Row, &r.Data); err != nil {
			return nil, fmt.Errorf("scanning tile row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// QueryTile returns the tile at (column, row, zoom) or nil.
func (d *TileDao) QueryTile(column, row int64, zoom int) (*TileRow, error) {
	rows, err := d.g.db.Query(
		fmt.Sprintf(`SELECT id, zoom_level, tile_column, tile_row, tile_data FROM "%s"
			WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?`, d.table),
		zoom, column, row)
	if err != nil {
		return nil, fmt.Errorf("querying tile %d/%d/%d of %s: %w", zoom, column, row, d.table, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var r TileRow
	if err = rows.Scan(&r.ID, &r.Zoom, &r.Column, &r.Row, &r.Data); err != nil {
		return nil, fmt.Errorf("scanning tile row: %w", err)
	}
	return &r, nil
}

// CountTiles returns the number of stored tiles over all zoom levels.
func (d *TileDao) CountTiles() (int64, error) {
	var n int64
	err := d.g.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, d.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting tiles of %s: %w", d.table, err)
	}
	return n, nil
}
