// Package render turns segmentation results into label images and
// colour overlays for viewing.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/up-zero/gotool/imageutil"

	"segd/internal/common/fsutil"
	"segd/pkg/types"
)

// ErrNoMasks is returned when there is nothing to render.
var ErrNoMasks = errors.New("no masks")

// Labels folds binary masks into one label image: pixel p gets i+1 for
// the last mask i that covers it, 0 where no mask does.
func Labels(masks []types.Mask) (types.Labels, error) {
	if len(masks) == 0 {
		return types.Labels{}, ErrNoMasks
	}
	w, h := masks[0].Width, masks[0].Height
	out := types.Labels{Width: w, Height: h, Pix: make([]uint16, w*h)}
	for i, m := range masks {
		if m.Width != w || m.Height != h || len(m.Pix) != w*h {
			return types.Labels{}, fmt.Errorf("mask %d is %dx%d, want %dx%d", i, m.Width, m.Height, w, h)
		}
		label := uint16(min(i+1, math.MaxUint16))
		for p, v := range m.Pix {
			if v != 0 {
				out.Pix[p] = label
			}
		}
	}
	return out, nil
}

// FirstCandidate returns the first candidate of the first prompt of a
// predict response.
func FirstCandidate(resp types.PredictResponse) (types.Mask, bool) {
	if len(resp.Masks) == 0 || len(resp.Masks[0]) == 0 {
		return types.Mask{}, false
	}
	return resp.Masks[0][0], true
}

// ResizeLabels scales l to w x h with nearest-neighbour sampling.
func ResizeLabels(l types.Labels, w, h int) types.Labels {
	if l.Width == w && l.Height == h {
		return l
	}
	out := types.Labels{Width: w, Height: h, Pix: make([]uint16, w*h)}
	if l.Width == 0 || l.Height == 0 {
		return out
	}
	for y := 0; y < h; y++ {
		sy := y * l.Height / h
		for x := 0; x < w; x++ {
			out.Pix[y*w+x] = l.Pix[sy*l.Width+x*l.Width/w]
		}
	}
	return out
}

// Color returns the display colour of label n. Label 0 is transparent.
func Color(n uint16) color.RGBA {
	if n == 0 {
		return color.RGBA{}
	}
	// golden-angle hue steps keep neighbouring labels distinct
	hue := math.Mod(float64(n)*137.508, 360)
	r, g, b := hsvToRGB(hue, 0.75, 1)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

func hsvToRGB(h, s, v float64) (uint8, uint8, uint8) {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return uint8((r + m) * 255), uint8((g + m) * 255), uint8((b + m) * 255)
}

// Overlay blends label colours over img at the given alpha (0..1). Labels
// are rescaled to the image size when they differ.
func Overlay(img image.Image, labels types.Labels, alpha float64) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	l := ResizeLabels(labels, b.Dx(), b.Dy())
	a := math.Max(0, math.Min(1, alpha))
	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			n := l.Pix[y*l.Width+x]
			if n == 0 {
				continue
			}
			c := Color(n)
			i := dst.PixOffset(x, y)
			dst.Pix[i] = blend(dst.Pix[i], c.R, a)
			dst.Pix[i+1] = blend(dst.Pix[i+1], c.G, a)
			dst.Pix[i+2] = blend(dst.Pix[i+2], c.B, a)
			dst.Pix[i+3] = 0xff
		}
	}
	return dst
}

func blend(bg, fg uint8, a float64) uint8 {
	return uint8(math.Round(float64(bg)*(1-a) + float64(fg)*a))
}

// Outline draws the bounding box of every label in its colour.
func Outline(dst *image.RGBA, labels types.Labels, thickness int) {
	boxes := map[uint16]image.Rectangle{}
	l := ResizeLabels(labels, dst.Bounds().Dx(), dst.Bounds().Dy())
	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			n := l.Pix[y*l.Width+x]
			if n == 0 {
				continue
			}
			px := image.Rect(x, y, x+1, y+1)
			if r, ok := boxes[n]; ok {
				boxes[n] = r.Union(px)
			} else {
				boxes[n] = px
			}
		}
	}
	for n, r := range boxes {
		imageutil.DrawThickRectOutline(dst, r, Color(n), thickness)
	}
}

// Fit resizes img to size x size for display. size <= 0 returns img.
func Fit(img image.Image, size int) image.Image {
	if size <= 0 {
		return img
	}
	return imageutil.Resize(img, size, size)
}

// LoadImage opens a local image for display.
func LoadImage(path string) (image.Image, error) {
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	img, err := imageutil.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return img, nil
}

// LabelImage converts labels to a 16-bit grayscale image holding the raw
// label values.
func LabelImage(l types.Labels) *image.Gray16 {
	g := image.NewGray16(image.Rect(0, 0, l.Width, l.Height))
	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			g.SetGray16(x, y, color.Gray16{Y: l.Pix[y*l.Width+x]})
		}
	}
	return g
}

// SavePNG writes img to path, creating parent directories.
func SavePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
