package amg

import (
	"image"
	"math"
)

// Crop is one region the generator encodes separately.
type Crop struct {
	Box   image.Rectangle
	Layer int
}

// CropBoxes returns the whole image as layer 0 followed by, for each layer
// i in 1..layers, a 2^i x 2^i grid of overlapping crops.
func CropBoxes(width, height, layers int, overlapRatio float32) []Crop {
	crops := []Crop{{Box: image.Rect(0, 0, width, height), Layer: 0}}
	short := min(width, height)
	for layer := 1; layer <= layers; layer++ {
		perSide := 1 << layer
		overlap := int(overlapRatio * float32(short) * (2 / float32(perSide)))
		cw := cropLen(width, perSide, overlap)
		ch := cropLen(height, perSide, overlap)
		for i := 0; i < perSide; i++ {
			x0 := (cw - overlap) * i
			for j := 0; j < perSide; j++ {
				y0 := (ch - overlap) * j
				crops = append(crops, Crop{
					Box:   image.Rect(x0, y0, min(x0+cw, width), min(y0+ch, height)),
					Layer: layer,
				})
			}
		}
	}
	return crops
}

func cropLen(orig, n, overlap int) int {
	return int(math.Ceil(float64(overlap*(n-1)+orig) / float64(n)))
}

// PointGrid returns n x n points at the centres of a regular grid over the
// unit square, row by row.
func PointGrid(n int) [][2]float32 {
	if n <= 0 {
		return nil
	}
	offset := 1 / (2 * float32(n))
	side := make([]float32, n)
	for i := range side {
		if n == 1 {
			side[i] = 0.5
			continue
		}
		side[i] = offset + float32(i)*(1-2*offset)/float32(n-1)
	}
	pts := make([][2]float32, 0, n*n)
	for _, y := range side {
		for _, x := range side {
			pts = append(pts, [2]float32{x, y})
		}
	}
	return pts
}

// pointsForLayer scales the grid density down for deeper crop layers.
func pointsForLayer(p Params, layer int) int {
	factor := max(p.CropNPointsDownscaleFactor, 1)
	n := p.PointsPerSide
	for i := 0; i < layer; i++ {
		n /= factor
	}
	return max(n, 1)
}
