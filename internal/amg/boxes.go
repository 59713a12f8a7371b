package amg

import (
	"image"
	"sort"
)

// box is an XYXY box whose max corner is the last covered pixel.
type box struct {
	x0, y0, x1, y1 float32
}

func (b box) area() float32 { return (b.x1 - b.x0) * (b.y1 - b.y0) }

func (b box) offset(dx, dy int) box {
	return box{b.x0 + float32(dx), b.y0 + float32(dy), b.x1 + float32(dx), b.y1 + float32(dy)}
}

// rect converts to an image.Rectangle covering the same pixels.
func (b box) rect() image.Rectangle {
	return image.Rect(int(b.x0), int(b.y0), int(b.x1)+1, int(b.y1)+1)
}

func boxIoU(a, b box) float32 {
	ix0, iy0 := max(a.x0, b.x0), max(a.y0, b.y0)
	ix1, iy1 := min(a.x1, b.x1), min(a.y1, b.y1)
	if ix1 <= ix0 || iy1 <= iy0 {
		return 0
	}
	inter := (ix1 - ix0) * (iy1 - iy0)
	union := a.area() + b.area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// maskBox returns the bounding box and area of a w x h binary mask.
func maskBox(bin []uint8, w, h int) (box, int) {
	minX, minY, maxX, maxY := w, h, -1, -1
	area := 0
	for y := 0; y < h; y++ {
		row := bin[y*w : (y+1)*w]
		for x, v := range row {
			if v == 0 {
				continue
			}
			area++
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if area == 0 {
		return box{}, 0
	}
	return box{float32(minX), float32(minY), float32(maxX), float32(maxY)}, area
}

// nearCropEdge reports whether b touches an edge of crop that is not also
// an edge of the full image; such masks are likely cut off by the crop.
func nearCropEdge(b box, crop, full image.Rectangle) bool {
	const atol = 20
	bv := [4]float32{b.x0, b.y0, b.x1, b.y1}
	cv := [4]float32{float32(crop.Min.X), float32(crop.Min.Y), float32(crop.Max.X), float32(crop.Max.Y)}
	fv := [4]float32{float32(full.Min.X), float32(full.Min.Y), float32(full.Max.X), float32(full.Max.Y)}
	for i := range bv {
		if abs(bv[i]-cv[i]) <= atol && abs(bv[i]-fv[i]) > atol {
			return true
		}
	}
	return false
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// nms returns the indices to keep, ordered by descending score, dropping any
// box whose IoU with a kept box exceeds thresh.
func nms(boxes []box, scores []float32, thresh float32) []int {
	order := make([]int, len(boxes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	keep := make([]int, 0, len(order))
	suppressed := make([]bool, len(boxes))
	for i, oi := range order {
		if suppressed[oi] {
			continue
		}
		keep = append(keep, oi)
		for _, oj := range order[i+1:] {
			if !suppressed[oj] && boxIoU(boxes[oi], boxes[oj]) > thresh {
				suppressed[oj] = true
			}
		}
	}
	return keep
}
