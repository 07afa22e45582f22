package tilemath

import (
	"fmt"

	"github.com/pdok/tilepyramid/mathhelp"
)

// TileGrid is an inclusive rectangle of tile coordinates at one zoom level.
type TileGrid struct {
	MinX int64
	MinY int64
	MaxX int64
	MaxY int64
}

// Count is the number of tiles in the grid.
func (g TileGrid) Count() int64 {
	return (g.MaxX + 1 - g.MinX) * (g.MaxY + 1 - g.MinY)
}

// Width is the number of tile columns in the grid.
func (g TileGrid) Width() int64 {
	return g.MaxX + 1 - g.MinX
}

// Height is the number of tile rows in the grid.
func (g TileGrid) Height() int64 {
	return g.MaxY + 1 - g.MinY
}

// Contains reports whether the tile coordinate lies inside the grid.
func (g TileGrid) Contains(x, y int64) bool {
	return mathhelp.BetweenInc(x, g.MinX, g.MaxX) && mathhelp.BetweenInc(y, g.MinY, g.MaxY)
}

func (g TileGrid) String() string {
	return fmt.Sprintf("[%d,%d]x[%d,%d]", g.MinX, g.MaxX, g.MinY, g.MaxY)
}
