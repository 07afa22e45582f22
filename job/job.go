// Package job reads tile generation job definitions from JSON files.
package job

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/perimeterx/marshmallow"
)

// Job describes one generation run. BoundingBox is minLon, minLat, maxLon,
// maxLat in the srs given by SrsID; absent means the whole world.
type Job struct {
	GeoPackage      string    `validate:"required" json:"geopackage"`
	Table           string    `validate:"required" json:"table"`
	URL             string    `validate:"required" json:"url"`
	MinZoom         int       `validate:"min=0,max=25" json:"minZoom"`
	MaxZoom         int       `validate:"min=0,max=25,gtefield=MinZoom" json:"maxZoom"`
	BoundingBox     []float64 `validate:"omitempty,len=4" json:"boundingBox,omitempty"`
	SrsID           int64     `default:"4326" validate:"oneof=4326 3857" json:"srsId"`
	GoogleTiles     bool      `json:"googleTiles"`
	CompressFormat  string    `validate:"omitempty,oneof=png jpeg jpg" json:"compressFormat,omitempty"`
	CompressQuality *float64  `validate:"omitempty,min=0,max=1" json:"compressQuality,omitempty"`
	LogLevel        string    `default:"info" json:"logLevel"`
}

// Load reads and validates a job file.
func Load(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("reading job file %s: %w", path, err)
	}
	j, err := Parse(data)
	if err != nil {
		return j, fmt.Errorf("job file %s: %w", path, err)
	}
	return j, nil
}

// Parse unmarshals a job definition, applying defaults first. Unknown keys
// are tolerated.
func Parse(data []byte) (Job, error) {
	var j Job
	if err := defaults.Set(&j); err != nil {
		return j, err
	}
	if _, err := marshmallow.Unmarshal(data, &j); err != nil {
		return j, err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&j); err != nil {
		return j, err
	}
	if j.BoundingBox != nil {
		if j.BoundingBox[0] > j.BoundingBox[2] || j.BoundingBox[1] > j.BoundingBox[3] {
			return j, fmt.Errorf("bounding box min edges exceed max edges: %v", j.BoundingBox)
		}
	}
	return j, nil
}
