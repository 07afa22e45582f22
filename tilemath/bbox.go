// Package tilemath holds the coordinate math between geographic bounding
// boxes and web mercator tile grids. All boxes in web mercator are
// geom.Extent values in meters, WGS84 boxes have their own type in degrees.
package tilemath

import (
	"math"

	"github.com/go-spatial/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	// WebMercatorHalfWorld is the world half width and height in meters (EPSG:3857)
	WebMercatorHalfWorld = 20037508.342789244

	// WebMercatorMaxLatRange is the maximum latitude representable in web mercator
	WebMercatorMaxLatRange = 85.0511287798066
	// WebMercatorMinLatRange is the minimum latitude representable in web mercator
	WebMercatorMinLatRange = -WebMercatorMaxLatRange

	EPSGWGS84       = 4326
	EPSGWebMercator = 3857
)

// BoundingBox is a geographic (WGS84, degrees) bounding box.
type BoundingBox struct {
	MinLon float64
	MaxLon float64
	MinLat float64
	MaxLat float64
}

// WorldBoundingBox covers the full web-mercator-representable world.
func WorldBoundingBox() BoundingBox {
	return BoundingBox{
		MinLon: -180.0,
		MaxLon: 180.0,
		MinLat: WebMercatorMinLatRange,
		MaxLat: WebMercatorMaxLatRange,
	}
}

// ClampToWebMercator limits the latitudes to the web-mercator-representable range.
func (b BoundingBox) ClampToWebMercator() BoundingBox {
	b.MinLat = math.Max(b.MinLat, WebMercatorMinLatRange)
	b.MaxLat = math.Min(b.MaxLat, WebMercatorMaxLatRange)
	return b
}

func (b BoundingBox) Equal(other BoundingBox) bool {
	return b == other
}

// Union combines two boxes component-wise.
func Union(a, b BoundingBox) BoundingBox {
	return BoundingBox{
		MinLon: math.Min(a.MinLon, b.MinLon),
		MaxLon: math.Max(a.MaxLon, b.MaxLon),
		MinLat: math.Min(a.MinLat, b.MinLat),
		MaxLat: math.Max(a.MaxLat, b.MaxLat),
	}
}

// UnionExtent combines two web mercator extents component-wise.
func UnionExtent(a, b geom.Extent) geom.Extent {
	return geom.Extent{
		math.Min(a[0], b[0]),
		math.Min(a[1], b[1]),
		math.Max(a[2], b[2]),
		math.Max(a[3], b[3]),
	}
}

// ToWebMercator transforms a WGS84 box to a web mercator extent in meters.
func ToWebMercator(b BoundingBox) geom.Extent {
	b = b.ClampToWebMercator()
	min := project.WGS84.ToMercator(orb.Point{b.MinLon, b.MinLat})
	max := project.WGS84.ToMercator(orb.Point{b.MaxLon, b.MaxLat})
	return geom.Extent{min[0], min[1], max[0], max[1]}
}

// ToWGS84 transforms a web mercator extent back to a WGS84 box.
func ToWGS84(e geom.Extent) BoundingBox {
	min := project.Mercator.ToWGS84(orb.Point{e[0], e[1]})
	max := project.Mercator.ToWGS84(orb.Point{e[2], e[3]})
	return BoundingBox{MinLon: min[0], MinLat: min[1], MaxLon: max[0], MaxLat: max[1]}
}
