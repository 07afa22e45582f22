package gpkg

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const ContentsDataTypeTiles = "tiles"

// Contents is a row of gpkg_contents.
type Contents struct {
	TableName   string
	DataType    string
	Identifier  string
	Description string
	LastChange  time.Time
	MinX        float64
	MinY        float64
	MaxX        float64
	MaxY        float64
	SrsID       int64
}

type ContentsDao struct {
	g *GeoPackage
}

func (d *ContentsDao) Create(c *Contents) error {
	_, err := d.g.db.Exec(`INSERT INTO gpkg_contents
		(table_name, data_type, identifier, description, last_change, min_x, min_y, max_x, max_y, srs_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.TableName, c.DataType, c.Identifier, c.Description, c.LastChange.UTC().Format(TimeLayout),
		c.MinX, c.MinY, c.MaxX, c.MaxY, c.SrsID)
	if err != nil {
		return fmt.Errorf("creating contents row for %s: %w", c.TableName, err)
	}
	return nil
}

// QueryByID returns the contents row for a table or nil when absent.
func (d *ContentsDao) QueryByID(table string) (*Contents, error) {
	var c Contents
	var lastChange string
	err := d.g.db.QueryRow(`SELECT table_name, data_type, identifier, description, last_change,
		min_x, min_y, max_x, max_y, srs_id FROM gpkg_contents WHERE table_name = ?`, table).
		Scan(&c.TableName, &c.DataType, &c.Identifier, &c.Description, &lastChange,
			&c.MinX, &c.MinY, &c.MaxX, &c.MaxY, &c.SrsID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying contents for %s: %w", table, err)
	}
	c.LastChange, err = time.Parse(TimeLayout, lastChange)
	if err != nil {
		// tolerate foreign writers using plain RFC 3339
		c.LastChange, err = time.Parse(time.RFC3339, lastChange)
		if err != nil {
			return nil, fmt.Errorf("parsing contents last_change %q: %w", lastChange, err)
		}
	}
	return &c, nil
}

func (d *ContentsDao) Update(c *Contents) error {
	_, err := d.g.db.Exec(`UPDATE gpkg_contents SET data_type = ?, identifier = ?, description = ?,
		last_change = ?, min_x = ?, min_y = ?, max_x = ?, max_y = ?, srs_id = ?
		WHERE table_name = ?`,
		c.DataType, c.Identifier, c.Description, c.LastChange.UTC().Format(TimeLayout),
		c.MinX, c.MinY, c.MaxX, c.MaxY, c.SrsID, c.TableName)
	if err != nil {
		return fmt.Errorf("updating contents row for %s: %w", c.TableName, err)
	}
	return nil
}
