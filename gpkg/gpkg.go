// Package gpkg is a minimal GeoPackage container for raster tile pyramids.
// It maintains the core metadata tables (spatial reference systems, contents,
// tile matrix sets and tile matrices) and the per-table tile stores.
package gpkg

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-spatial/geom"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdok/tilepyramid/tilemath"
)

const (
	// ApplicationID marks a sqlite file as a GeoPackage ("GPKG")
	ApplicationID = 0x47504B47
	UserVersion   = 10300

	// TimeLayout is the canonical GeoPackage datetime format
	TimeLayout = "2006-01-02T15:04:05.000Z"
)

var initialSQL = fmt.Sprintf(`
	PRAGMA application_id = %d;
	PRAGMA user_version = %d;
	PRAGMA foreign_keys = ON;
`, ApplicationID, UserVersion)

const coreDDL = `
CREATE TABLE IF NOT EXISTS gpkg_spatial_ref_sys (
	srs_name TEXT NOT NULL,
	srs_id INTEGER NOT NULL PRIMARY KEY,
	organization TEXT NOT NULL,
	organization_coordsys_id INTEGER NOT NULL,
	definition TEXT NOT NULL,
	description TEXT
);
CREATE TABLE IF NOT EXISTS gpkg_contents (
	table_name TEXT NOT NULL PRIMARY KEY,
	data_type TEXT NOT NULL,
	identifier TEXT UNIQUE,
	description TEXT DEFAULT '',
	last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	min_x DOUBLE,
	min_y DOUBLE,
	max_x DOUBLE,
	max_y DOUBLE,
	srs_id INTEGER,
	CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);
CREATE TABLE IF NOT EXISTS gpkg_tile_matrix_set (
	table_name TEXT NOT NULL PRIMARY KEY,
	srs_id INTEGER NOT NULL,
	min_x DOUBLE NOT NULL,
	min_y DOUBLE NOT NULL,
	max_x DOUBLE NOT NULL,
	max_y DOUBLE NOT NULL,
	CONSTRAINT fk_gtms_table_name FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
	CONSTRAINT fk_gtms_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);
CREATE TABLE IF NOT EXISTS gpkg_tile_matrix (
	table_name TEXT NOT NULL,
	zoom_level INTEGER NOT NULL,
	matrix_width INTEGER NOT NULL,
	matrix_height INTEGER NOT NULL,
	tile_width INTEGER NOT NULL,
	tile_height INTEGER NOT NULL,
	pixel_x_size DOUBLE NOT NULL,
	pixel_y_size DOUBLE NOT NULL,
	CONSTRAINT pk_ttm PRIMARY KEY (table_name, zoom_level),
	CONSTRAINT fk_tmm_table_name FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name)
);
`

// GeoPackage wraps a sqlite database holding the GeoPackage metadata tables.
type GeoPackage struct {
	db   *sql.DB
	path string
}

// Open opens or creates a GeoPackage file and ensures the core metadata
// tables and baseline spatial reference systems exist.
func Open(path string) (*GeoPackage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening geopackage %s: %w", path, err)
	}
	// a single connection keeps the pragmas applied and sqlite writes serialized
	db.SetMaxOpenConns(1)
	g := &GeoPackage{db: db, path: path}
	if _, err = db.Exec(initialSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing geopackage %s: %w", path, err)
	}
	if _, err = db.Exec(coreDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating geopackage metadata tables: %w", err)
	}
	if err = g.SpatialReferenceSystems().createBaseline(); err != nil {
		db.Close()
		return nil, err
	}
	return g, nil
}

func (g *GeoPackage) Close() error {
	return g.db.Close()
}

func (g *GeoPackage) Path() string {
	return g.path
}

func (g *GeoPackage) SpatialReferenceSystems() *SpatialReferenceSystemDao {
	return &SpatialReferenceSystemDao{g: g}
}

func (g *GeoPackage) Contents() *ContentsDao {
	return &ContentsDao{g: g}
}

func (g *GeoPackage) TileMatrixSets() *TileMatrixSetDao {
	return &TileMatrixSetDao{g: g}
}

func (g *GeoPackage) TileMatrices() *TileMatrixDao {
	return &TileMatrixDao{g: g}
}

// TableExists reports whether a table of the given name exists in the database.
func (g *GeoPackage) TableExists(table string) (bool, error) {
	var n int
	err := g.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying sqlite_master: %w", err)
	}
	return n > 0, nil
}

// CreateTileTableWithMetadata creates a tile table plus its contents and tile
// matrix set rows. The contents bounding box is stored in WGS84, the tile
// matrix set extent in web mercator.
func (g *GeoPackage) CreateTileTableWithMetadata(table string, contentsBox tilemath.BoundingBox,
	mercator geom.Extent) (*TileMatrixSet, error) {

	if _, err := g.SpatialReferenceSystems().GetOrCreate(tilemath.EPSGWGS84); err != nil {
		return nil, err
	}
	if _, err := g.SpatialReferenceSystems().GetOrCreate(tilemath.EPSGWebMercator); err != nil {
		return nil, err
	}

	ddl := fmt.Sprintf(`CREATE TABLE "%s" (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		zoom_level INTEGER NOT NULL,
		tile_column INTEGER NOT NULL,
		tile_row INTEGER NOT NULL,
		tile_data BLOB NOT NULL,
		UNIQUE (zoom_level, tile_column, tile_row)
	)`, table)
	if _, err := g.db.Exec(ddl); err != nil {
		return nil, fmt.Errorf("creating tile table %s: %w", table, err)
	}

	contents := &Contents{
		TableName:  table,
		DataType:   ContentsDataTypeTiles,
		Identifier: table,
		LastChange: time.Now().UTC(),
		MinX:       contentsBox.MinLon,
		MinY:       contentsBox.MinLat,
		MaxX:       contentsBox.MaxLon,
		MaxY:       contentsBox.MaxLat,
		SrsID:      tilemath.EPSGWGS84,
	}
	if err := g.Contents().Create(contents); err != nil {
		return nil, err
	}

	tileMatrixSet := &TileMatrixSet{
		TableName: table,
		SrsID:     tilemath.EPSGWebMercator,
		MinX:      mercator[0],
		MinY:      mercator[1],
		MaxX:      mercator[2],
		MaxY:      mercator[3],
	}
	if err := g.TileMatrixSets().Create(tileMatrixSet); err != nil {
		return nil, err
	}
	return tileMatrixSet, nil
}

// DeleteTableQuietly drops a tile table and its metadata rows, swallowing all
// errors. Used as the compensating action when generation fails.
func (g *GeoPackage) DeleteTableQuietly(table string) {
	_, _ = g.db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, table))
	_, _ = g.db.Exec(`DELETE FROM gpkg_tile_matrix WHERE table_name = ?`, table)
	_, _ = g.db.Exec(`DELETE FROM gpkg_tile_matrix_set WHERE table_name = ?`, table)
	_, _ = g.db.Exec(`DELETE FROM gpkg_contents WHERE table_name = ?`, table)
}
