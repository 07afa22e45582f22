package gpkg

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-spatial/geom"
)

// TileMatrixSet is a row of gpkg_tile_matrix_set, the outer extent within
// which a tile table's per zoom matrices are laid out.
type TileMatrixSet struct {
	TableName string
	SrsID     int64
	MinX      float64
	MinY      float64
	MaxX      float64
	MaxY      float64
}

// Extent is the matrix set bounds as an extent in its own srs.
func (s *TileMatrixSet) Extent() geom.Extent {
	return geom.Extent{s.MinX, s.MinY, s.MaxX, s.MaxY}
}

func (s *TileMatrixSet) SetExtent(e geom.Extent) {
	s.MinX, s.MinY, s.MaxX, s.MaxY = e[0], e[1], e[2], e[3]
}

type TileMatrixSetDao struct {
	g *GeoPackage
}

// TableExists reports whether the gpkg_tile_matrix_set table itself exists.
func (d *TileMatrixSetDao) TableExists() (bool, error) {
	return d.g.TableExists("gpkg_tile_matrix_set")
}

// IDExists reports whether a matrix set row exists for the tile table.
func (d *TileMatrixSetDao) IDExists(table string) (bool, error) {
	var n int
	err := d.g.db.QueryRow(`SELECT COUNT(*) FROM gpkg_tile_matrix_set WHERE table_name = ?`, table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying tile matrix set for %s: %w", table, err)
	}
	return n > 0, nil
}

// QueryForID returns the matrix set row for a tile table or nil when absent.
func (d *TileMatrixSetDao) QueryForID(table string) (*TileMatrixSet, error) {
	var s TileMatrixSet
	err := d.g.db.QueryRow(`SELECT table_name, srs_id, min_x, min_y, max_x, max_y
		FROM gpkg_tile_matrix_set WHERE table_name = ?`, table).
		Scan(&s.TableName, &s.SrsID, &s.MinX, &s.MinY, &s.MaxX, &s.MaxY)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying tile matrix set for %s: %w", table, err)
	}
	return &s, nil
}

func (d *TileMatrixSetDao) Create(s *TileMatrixSet) error {
	_, err := d.g.db.Exec(`INSERT INTO gpkg_tile_matrix_set
		(table_name, srs_id, min_x, min_y, max_x, max_y) VALUES (?, ?, ?, ?, ?, ?)`,
		s.TableName, s.SrsID, s.MinX, s.MinY, s.MaxX, s.MaxY)
	if err != nil {
		return fmt.Errorf("creating tile matrix set for %s: %w", s.TableName, err)
	}
	return nil
}

func (d *TileMatrixSetDao) Update(s *TileMatrixSet) error {
	_, err := d.g.db.Exec(`UPDATE gpkg_tile_matrix_set SET srs_id = ?, min_x = ?, min_y = ?, max_x = ?, max_y = ?
		WHERE table_name = ?`,
		s.SrsID, s.MinX, s.MinY, s.MaxX, s.MaxY, s.TableName)
	if err != nil {
		return fmt.Errorf("updating tile matrix set for %s: %w", s.TableName, err)
	}
	return nil
}
