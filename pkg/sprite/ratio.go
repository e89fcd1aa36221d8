package sprite

// Ratio is one of the canonical aspect ratios accepted by the image
// generation service. Requests must carry exactly one of these labels;
// arbitrary ratios are not supported upstream.
type Ratio string

const (
	RatioTall      Ratio = "9:16"
	RatioPortrait  Ratio = "3:4"
	RatioSquare    Ratio = "1:1"
	RatioLandscape Ratio = "4:3"
	RatioWide      Ratio = "16:9"
)

// Canonical ratio values, ascending.
const (
	valueTall      = 9.0 / 16.0
	valuePortrait  = 3.0 / 4.0
	valueSquare    = 1.0
	valueLandscape = 4.0 / 3.0
	valueWide      = 16.0 / 9.0
)

// Midpoints between adjacent canonical values. A grid ratio lands in
// the bucket whose canonical value sits on its side of each midpoint.
const (
	midLandscapeWide   = (valueLandscape + valueWide) / 2
	midSquareLandscape = (valueSquare + valueLandscape) / 2
	midPortraitSquare  = (valuePortrait + valueSquare) / 2
	midTallPortrait    = (valueTall + valuePortrait) / 2
)

// Classify maps a grid shape to the nearest canonical aspect ratio.
// It scans from the widest bucket downward, so any positive
// columns/rows pair classifies, and rescaling a shape (4x4 vs 8x8)
// never changes the result.
func Classify(columns, rows int) Ratio {
	r := float64(columns) / float64(rows)
	switch {
	case r > midLandscapeWide:
		return RatioWide
	case r > midSquareLandscape:
		return RatioLandscape
	case r > midPortraitSquare:
		return RatioSquare
	case r > midTallPortrait:
		return RatioPortrait
	default:
		return RatioTall
	}
}

// Ratios lists every canonical ratio, ascending by value.
func Ratios() []Ratio {
	return []Ratio{RatioTall, RatioPortrait, RatioSquare, RatioLandscape, RatioWide}
}
