package gpkg

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/pdok/tilepyramid/tilemath"
)

// SpatialReferenceSystem is a row of gpkg_spatial_ref_sys.
type SpatialReferenceSystem struct {
	Name                   string
	SrsID                  int64
	Organization           string
	OrganizationCoordsysID int64
	Definition             string
	Description            string
}

type SpatialReferenceSystemDao struct {
	g *GeoPackage
}

// The srs rows every GeoPackage must carry plus the two this generator works in.
var wellKnownSrs = map[int64]SpatialReferenceSystem{
	-1: {
		Name:                   "Undefined cartesian SRS",
		SrsID:                  -1,
		Organization:           "NONE",
		OrganizationCoordsysID: -1,
		Definition:             "undefined",
		Description:            "undefined cartesian coordinate reference system",
	},
	0: {
		Name:                   "Undefined geographic SRS",
		SrsID:                  0,
		Organization:           "NONE",
		OrganizationCoordsysID: 0,
		Definition:             "undefined",
		Description:            "undefined geographic coordinate reference system",
	},
	tilemath.EPSGWGS84: {
		Name:                   "WGS 84 geodetic",
		SrsID:                  tilemath.EPSGWGS84,
		Organization:           "EPSG",
		OrganizationCoordsysID: tilemath.EPSGWGS84,
		Definition: `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],` +
			`AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],` +
			`UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`,
		Description: "longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid",
	},
	tilemath.EPSGWebMercator: {
		Name:                   "WGS 84 / Pseudo-Mercator",
		SrsID:                  tilemath.EPSGWebMercator,
		Organization:           "EPSG",
		OrganizationCoordsysID: tilemath.EPSGWebMercator,
		Definition: `PROJCS["WGS 84 / Pseudo-Mercator",GEOGCS["WGS 84",DATUM["WGS_1984",` +
			`SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],` +
			`PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],` +
			`AUTHORITY["EPSG","4326"]],PROJECTION["Mercator_1SP"],PARAMETER["central_meridian",0],` +
			`PARAMETER["scale_factor",1],PARAMETER["false_easting",0],PARAMETER["false_northing",0],` +
			`UNIT["metre",1,AUTHORITY["EPSG","9001"]],AUTHORITY["EPSG","3857"]]`,
		Description: "spherical web mercator in meters",
	},
}

// createBaseline inserts the srs rows required by the GeoPackage core.
func (d *SpatialReferenceSystemDao) createBaseline() error {
	for _, id := range []int64{-1, 0, tilemath.EPSGWGS84} {
		if err := d.create(wellKnownSrs[id]); err != nil {
			return err
		}
	}
	return nil
}

func (d *SpatialReferenceSystemDao) create(srs SpatialReferenceSystem) error {
	_, err := d.g.db.Exec(`INSERT OR IGNORE INTO gpkg_spatial_ref_sys
		(srs_name, srs_id, organization, organization_coordsys_id, definition, description)
		VALUES (?, ?, ?, ?, ?, ?)`,
		srs.Name, srs.SrsID, srs.Organization, srs.OrganizationCoordsysID, srs.Definition, srs.Description)
	if err != nil {
		return fmt.Errorf("creating srs %d: %w", srs.SrsID, err)
	}
	return nil
}

// Query returns the srs with the given id or nil when absent.
func (d *SpatialReferenceSystemDao) Query(srsID int64) (*SpatialReferenceSystem, error) {
	var srs SpatialReferenceSystem
	var description sql.NullString
	err := d.g.db.QueryRow(`SELECT srs_name, srs_id, organization, organization_coordsys_id, definition, description
		FROM gpkg_spatial_ref_sys WHERE srs_id = ?`, srsID).
		Scan(&srs.Name, &srs.SrsID, &srs.Organization, &srs.OrganizationCoordsysID, &srs.Definition, &description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying srs %d: %w", srsID, err)
	}
	srs.Description = description.String
	return &srs, nil
}

// GetOrCreate returns the srs with the given id, inserting its well known
// definition first when the registry does not hold it yet.
func (d *SpatialReferenceSystemDao) GetOrCreate(srsID int64) (*SpatialReferenceSystem, error) {
	srs, err := d.Query(srsID)
	if err != nil || srs != nil {
		return srs, err
	}
	known, ok := wellKnownSrs[srsID]
	if !ok {
		return nil, fmt.Errorf("no definition available for srs %d", srsID)
	}
	if err = d.create(known); err != nil {
		return nil, err
	}
	return &known, nil
}
