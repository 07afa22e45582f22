package gpkg

import (
	"fmt"
)

// TileMatrix is a row of gpkg_tile_matrix, describing the tile grid of one
// tile table at one zoom level.
type TileMatrix struct {
	TableName    string
	ZoomLevel    int
	MatrixWidth  int64
	MatrixHeight int64
	TileWidth    int64
	TileHeight   int64
	PixelXSize   float64
	PixelYSize   float64
}

type TileMatrixDao struct {
	g *GeoPackage
}

// IDExists reports whether a matrix row exists for (table, zoom).
func (d *TileMatrixDao) IDExists(table string, zoom int) (bool, error) {
	var n int
	err := d.g.db.QueryRow(`SELECT COUNT(*) FROM gpkg_tile_matrix WHERE table_name = ? AND zoom_level = ?`,
		table, zoom).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying tile matrix for %s zoom %d: %w", table, zoom, err)
	}
	return n > 0, nil
}

func (d *TileMatrixDao) Create(m *TileMatrix) error {
	_, err := d.g.db.Exec(`INSERT INTO gpkg_tile_matrix
		(table_name, zoom_level, matrix_width, matrix_height, tile_width, tile_height, pixel_x_size, pixel_y_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.TableName, m.ZoomLevel, m.MatrixWidth, m.MatrixHeight, m.TileWidth, m.TileHeight,
		m.PixelXSize, m.PixelYSize)
	if err != nil {
		return fmt.Errorf("creating tile matrix for %s zoom %d: %w", m.TableName, m.ZoomLevel, err)
	}
	return nil
}

func (d *TileMatrixDao) Update(m *TileMatrix) error {
	_, err := d.g.db.Exec(`UPDATE gpkg_tile_matrix SET matrix_width = ?, matrix_height = ?,
		tile_width = ?, tile_height = ?, pixel_x_size = ?, pixel_y_size = ?
		WHERE table_name = ? AND zoom_level = ?`,
		m.MatrixWidth, m.MatrixHeight, m.TileWidth, m.TileHeight, m.PixelXSize, m.PixelYSize,
		m.TableName, m.ZoomLevel)
	if err != nil {
		return fmt.Errorf("updating tile matrix for %s zoom %d: %w", m.TableName, m.ZoomLevel, err)
	}
	return nil
}

// QueryForTable returns all matrix rows of a tile table keyed by zoom level.
func (d *TileMatrixDao) QueryForTable(table string) (map[int]*TileMatrix, error) {
	rows, err := d.g.db.Query(`SELECT table_name, zoom_level, matrix_width, matrix_height,
		tile_width, tile_height, pixel_x_size, pixel_y_size
		FROM gpkg_tile_matrix WHERE table_name = ?`, table)
	if err != nil {
		return nil, fmt.Errorf("querying tile matrices for %s: %w", table, err)
	}
	defer rows.Close()

	matrices := make(map[int]*TileMatrix)
	for rows.Next() {
		var m TileMatrix
		err = rows.Scan(&m.TableName, &m.ZoomLevel, &m.MatrixWidth, &m.MatrixHeight,
			&m.TileWidth, &m.TileHeight, &m.PixelXSize, &m.PixelYSize)
		if err != nil {
			return nil, fmt.Errorf("scanning tile matrix row: %w", err)
		}
		matrices[m.ZoomLevel] = &m
	}
	return matrices, rows.Err()
}
