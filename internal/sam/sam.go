// Package sam wraps SAM-family promptable segmentation models exported to
// ONNX (a vision encoder plus a prompt encoder / mask decoder).
//
// Inference is delegated to ONNX Runtime and compiled in with the 'onnx'
// build tag. Without the tag Open fails with ErrRuntimeUnavailable so that
// default builds stay CGO-free.
package sam

import (
	"context"
	"errors"
	"image"
	"math"
)

// Label is the prompt label understood by the SAM2 decoder.
type Label int

const (
	LabelBackground     Label = 0
	LabelForeground     Label = 1
	LabelBoxTopLeft     Label = 2
	LabelBoxBottomRight Label = 3
)

// Family identifies the model family behind a Model.
type Family string

const (
	FamilySAM2     Family = "sam2"
	FamilyMicroSAM Family = "micro_sam"
)

const (
	// InputSize is the long side of the encoder input.
	InputSize = 1024
	// LowResSize is the side of the decoder's mask logits.
	LowResSize = 256
)

// ErrRuntimeUnavailable is returned when the binary was built without ONNX Runtime.
var ErrRuntimeUnavailable = errors.New("onnx runtime support not built (missing 'onnx' build tag)")

// Point is a prompt point in original image pixel coordinates.
type Point struct {
	X, Y  float32
	Label Label
}

// Prompt is the set of points decoded together.
type Prompt struct {
	Points []Point
}

// BoxPrompt encodes a box as its two labelled corners.
func BoxPrompt(x0, y0, x1, y1 float32) Prompt {
	return Prompt{Points: []Point{
		{X: min(x0, x1), Y: min(y0, y1), Label: LabelBoxTopLeft},
		{X: max(x0, x1), Y: max(y0, y1), Label: LabelBoxBottomRight},
	}}
}

// Spec locates the weights of one model.
type Spec struct {
	ID          string
	Family      Family
	EncoderPath string
	DecoderPath string
}

// RuntimeConfig configures the shared ONNX Runtime environment.
type RuntimeConfig struct {
	LibraryPath string
	Device      string // cpu, cuda or coreml
	NumThreads  int
}

// Model encodes images into reusable embeddings.
type Model interface {
	ID() string
	Family() Family
	Encode(ctx context.Context, img image.Image) (Embedding, error)
	Close() error
}

// Embedding is the encoder output for one image. It owns native memory and
// must be closed exactly once.
type Embedding interface {
	Decode(ctx context.Context, p Prompt) (*LowResMasks, error)
	// Bounds reports the size of the encoded image.
	Bounds() image.Rectangle
	Close() error
}

// LowResMasks is the raw decoder output for one prompt.
type LowResMasks struct {
	// Logits holds Count() planes of LowResSize x LowResSize values.
	Logits []float32
	// IoU holds the predicted IoU of each plane.
	IoU []float32
	// ValidW and ValidH bound the region of each plane that maps to the image.
	ValidW, ValidH int
	// Width and Height are the original image size.
	Width, Height int
}

// Count returns the number of candidate masks.
func (l *LowResMasks) Count() int { return len(l.IoU) }

// Plane returns the logits of mask i.
func (l *LowResMasks) Plane(i int) []float32 {
	n := LowResSize * LowResSize
	return l.Logits[i*n : (i+1)*n]
}

// Best returns the index of the mask with the highest predicted IoU.
func (l *LowResMasks) Best() int {
	best := 0
	score := float32(math.Inf(-1))
	for i, s := range l.IoU {
		if s > score {
			best, score = i, s
		}
	}
	return best
}

// Binary upscales mask i to the original image size and thresholds it,
// returning one 0/1 byte per pixel.
func (l *LowResMasks) Binary(i int, threshold float32) []uint8 {
	return l.BinaryInto(nil, i, threshold)
}

// BinaryInto is Binary writing into dst, which is grown when too small.
func (l *LowResMasks) BinaryInto(dst []uint8, i int, threshold float32) []uint8 {
	n := l.Width * l.Height
	if cap(dst) < n {
		dst = make([]uint8, n)
	}
	dst = dst[:n]
	plane := l.Plane(i)
	vw, vh := max(l.ValidW, 1), max(l.ValidH, 1)
	xRatio := float32(vw) / float32(l.Width)
	yRatio := float32(vh) / float32(l.Height)
	for y := 0; y < l.Height; y++ {
		srcY := min(int(float32(y)*yRatio), vh-1)
		row := plane[srcY*LowResSize:]
		out := dst[y*l.Width : (y+1)*l.Width]
		for x := range out {
			srcX := min(int(float32(x)*xRatio), vw-1)
			if row[srcX] > threshold {
				out[x] = 1
			} else {
				out[x] = 0
			}
		}
	}
	return dst
}

// StabilityScore is the IoU between the masks obtained by thresholding
// mask i at threshold+offset and threshold-offset, measured on the valid
// low-resolution region.
func (l *LowResMasks) StabilityScore(i int, threshold, offset float32) float32 {
	plane := l.Plane(i)
	var inter, union int
	for y := 0; y < min(l.ValidH, LowResSize); y++ {
		for _, v := range plane[y*LowResSize : y*LowResSize+min(l.ValidW, LowResSize)] {
			if v > threshold+offset {
				inter++
			}
			if v > threshold-offset {
				union++
			}
		}
	}
	if union == 0 {
		return 0
	}
	return float32(inter) / float32(union)
}
