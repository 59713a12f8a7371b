package sam

import (
	"image"

	"github.com/up-zero/gotool/imageutil"
)

// ImageNet normalisation constants expected by the encoders.
const (
	meanR, meanG, meanB = 0.485, 0.456, 0.406
	stdR, stdG, stdB    = 0.229, 0.224, 0.225
)

// Geometry records how an image was fitted into the encoder input.
type Geometry struct {
	OrigW, OrigH int
	NewW, NewH   int
	Scale        float32
}

// FitGeometry scales the long side of a w x h image to InputSize.
func FitGeometry(w, h int) Geometry {
	scale := float32(InputSize) / float32(max(w, h, 1))
	return Geometry{
		OrigW: w,
		OrigH: h,
		NewW:  max(int(float32(w)*scale), 1),
		NewH:  max(int(float32(h)*scale), 1),
		Scale: scale,
	}
}

// LowResValid is the region of a decoder plane covering the image.
func (g Geometry) LowResValid() (int, int) {
	return max(g.NewW/4, 1), max(g.NewH/4, 1)
}

// Preprocess resizes img, normalises it and zero-pads to a CHW tensor of
// 3 x InputSize x InputSize.
func Preprocess(img image.Image) ([]float32, Geometry) {
	b := img.Bounds()
	g := FitGeometry(b.Dx(), b.Dy())
	resized := imageutil.Resize(img, g.NewW, g.NewH)
	return normalizeAndPad(resized, InputSize, InputSize), g
}

func normalizeAndPad(src image.Image, targetW, targetH int) []float32 {
	b := src.Bounds()
	w, h := min(b.Dx(), targetW), min(b.Dy(), targetH)
	plane := targetW * targetH
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			idx := y*targetW + x
			data[idx] = (float32(r)/65535.0 - meanR) / stdR
			data[plane+idx] = (float32(g)/65535.0 - meanG) / stdG
			data[2*plane+idx] = (float32(bl)/65535.0 - meanB) / stdB
		}
	}
	return data
}
