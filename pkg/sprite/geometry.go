// Package sprite implements the sprite-sheet playback core: classifying
// grid shapes into the canonical request aspect ratios, deriving
// per-frame pixel geometry from a loaded sheet, and advancing a looping
// playback clock on a wall-clock timer.
package sprite

import (
	sferrors "github.com/pixeldrift/spriteforge/pkg/errors"
)

// Dimensions is the full pixel size of a loaded sheet image.
// Set once per image load; a new image replaces it wholesale.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Grid is the user-declared frame layout of a sheet. Columns and rows
// are clamped to >= 1 by the caller before they reach this package.
type Grid struct {
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// FrameCount returns the total number of frames the grid declares.
func (g Grid) FrameCount() int { return g.Columns * g.Rows }

// Geometry is the derived pixel size of a single frame. Sizes are
// real-valued so slicing a sheet whose dimensions are not evenly
// divisible never accumulates drift across frames.
type Geometry struct {
	FrameWidth  float64 `json:"frame_width"`
	FrameHeight float64 `json:"frame_height"`
}

// IsZero reports whether the geometry is unresolved ("no sheet loaded").
func (g Geometry) IsZero() bool { return g.FrameWidth == 0 && g.FrameHeight == 0 }

// Offset is the background translation that reveals one frame of the
// sheet. Both components are <= 0.
type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EffectiveRows returns the row count implied by the frame count and
// column count. The generation service is not guaranteed to honor the
// declared row count, so slicing trusts only the total frame count and
// the column count.
func EffectiveRows(frameCount, columns int) int {
	return (frameCount + columns - 1) / columns
}

// Resolve computes per-frame geometry from a loaded sheet's pixel
// dimensions and the declared grid. Non-positive inputs are a
// precondition violation by the caller and fail with an
// INVALID_GEOMETRY error rather than being clamped.
func Resolve(sheet Dimensions, grid Grid, frameCount int) (Geometry, error) {
	if grid.Columns <= 0 {
		return Geometry{}, sferrors.New(sferrors.ErrCodeInvalidGeometry, "columns must be positive, got %d", grid.Columns)
	}
	if frameCount <= 0 {
		return Geometry{}, sferrors.New(sferrors.ErrCodeInvalidGeometry, "frame count must be positive, got %d", frameCount)
	}
	if sheet.Width <= 0 || sheet.Height <= 0 {
		return Geometry{}, sferrors.New(sferrors.ErrCodeInvalidGeometry, "sheet dimensions must be positive, got %dx%d", sheet.Width, sheet.Height)
	}

	rows := EffectiveRows(frameCount, grid.Columns)
	return Geometry{
		FrameWidth:  float64(sheet.Width) / float64(grid.Columns),
		FrameHeight: float64(sheet.Height) / float64(rows),
	}, nil
}

// OffsetFor derives the translation that reveals frame index within a
// sheet of the given geometry and column count.
func OffsetFor(geom Geometry, columns, index int) Offset {
	if columns <= 0 {
		return Offset{}
	}
	col := index % columns
	row := index / columns
	return Offset{
		X: -float64(col) * geom.FrameWidth,
		Y: -float64(row) * geom.FrameHeight,
	}
}
