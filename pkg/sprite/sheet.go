package sprite

import (
	"bytes"
	"encoding/base64"
	"image"
	"io"
	"math"
	"os"
	"strings"

	"github.com/disintegration/imaging"

	sferrors "github.com/pixeldrift/spriteforge/pkg/errors"
)

// Sheet is a decoded sprite sheet together with its resolved frame
// geometry. Geometry is rebuilt on load, never mutated afterwards.
type Sheet struct {
	Image  image.Image
	Dims   Dimensions
	Grid   Grid
	Geom   Geometry
	Frames int
}

// Load decodes a sheet image from r and resolves its frame geometry.
// Decode failure is terminal for this load attempt; the caller owns
// any retry policy.
func Load(r io.Reader, grid Grid) (*Sheet, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, sferrors.Wrap(sferrors.ErrCodeImageLoad, err, "decode sheet image")
	}

	b := img.Bounds()
	dims := Dimensions{Width: b.Dx(), Height: b.Dy()}
	frames := grid.FrameCount()

	geom, err := Resolve(dims, grid, frames)
	if err != nil {
		return nil, err
	}

	return &Sheet{
		Image:  img,
		Dims:   dims,
		Grid:   grid,
		Geom:   geom,
		Frames: frames,
	}, nil
}

// LoadBytes decodes a sheet from an in-memory encoded image.
func LoadBytes(data []byte, grid Grid) (*Sheet, error) {
	return Load(bytes.NewReader(data), grid)
}

// LoadFile decodes a sheet from a file on disk.
func LoadFile(path string, grid Grid) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sferrors.Wrap(sferrors.ErrCodeImageLoad, err, "open sheet %s", path)
	}
	defer f.Close()
	return Load(f, grid)
}

// LoadDataURL decodes a sheet from a "data:image/...;base64," URL,
// the opaque image handle the generation service returns.
func LoadDataURL(s string, grid Grid) (*Sheet, error) {
	data, err := DecodeDataURL(s)
	if err != nil {
		return nil, err
	}
	return LoadBytes(data, grid)
}

// DecodeDataURL extracts the raw image bytes from a base64 data URL.
// A bare base64 string (no "data:" prefix) is accepted as well.
func DecodeDataURL(s string) ([]byte, error) {
	payload := s
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 {
			return nil, sferrors.New(sferrors.ErrCodeImageLoad, "malformed data URL")
		}
		payload = s[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, sferrors.Wrap(sferrors.ErrCodeImageLoad, err, "decode base64 image payload")
	}
	return data, nil
}

// Offset returns the translation that reveals frame index i.
func (s *Sheet) Offset(i int) Offset {
	return OffsetFor(s.Geom, s.Grid.Columns, i)
}

// Frame crops the sub-image for frame index i. Crop bounds are
// successive floors of the real-valued frame origins, so a sheet whose
// pixel dimensions are not evenly divisible slices without drift: the
// per-frame widths differ by at most one pixel and always sum to the
// sheet width.
func (s *Sheet) Frame(i int) (image.Image, error) {
	if i < 0 || i >= s.Frames {
		return nil, sferrors.New(sferrors.ErrCodeInvalidGeometry, "frame index %d out of range [0,%d)", i, s.Frames)
	}

	col := i % s.Grid.Columns
	row := i / s.Grid.Columns

	x0 := int(math.Floor(float64(col) * s.Geom.FrameWidth))
	x1 := int(math.Floor(float64(col+1) * s.Geom.FrameWidth))
	y0 := int(math.Floor(float64(row) * s.Geom.FrameHeight))
	y1 := int(math.Floor(float64(row+1) * s.Geom.FrameHeight))

	x1 = min(x1, s.Dims.Width)
	y1 = min(y1, s.Dims.Height)

	return imaging.Crop(s.Image, image.Rect(x0, y0, x1, y1)), nil
}
