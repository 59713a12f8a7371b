// Package samtest provides a deterministic sam.Model for tests.
//
// The fake segments by colour: a point prompt selects every pixel with the
// same colour as the clicked pixel, a box prompt selects the box. Each
// decode returns three candidates: the selection (IoU 0.95), the whole
// image (IoU 0.30) and the complement (IoU 0.10).
package samtest

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"

	"segd/internal/sam"
)

// Model is a fake sam.Model.
type Model struct {
	id     string
	family sam.Family

	// EncodeErr, when set, is returned by Encode.
	EncodeErr error
	// DecodeErr, when set, is returned by Decode.
	DecodeErr error
	// NoCandidates, when set, makes Decode return zero masks.
	NoCandidates bool
	// Hook, when set, runs at the start of every Encode.
	Hook func(ctx context.Context) error

	encodes atomic.Int64
	decodes atomic.Int64
	open    atomic.Int64
	closed  atomic.Bool
}

// NewModel returns a fake model.
func NewModel(id string, family sam.Family) *Model {
	return &Model{id: id, family: family}
}

// Opener returns a function with the signature of sam.Open that serves
// models from the given map and fails for unknown ids.
func Opener(models map[string]*Model) func(sam.Spec, sam.RuntimeConfig) (sam.Model, error) {
	var mu sync.Mutex
	return func(spec sam.Spec, _ sam.RuntimeConfig) (sam.Model, error) {
		mu.Lock()
		defer mu.Unlock()
		m, ok := models[spec.ID]
		if !ok {
			return nil, errors.New("samtest: no fake for " + spec.ID)
		}
		return m, nil
	}
}

func (m *Model) ID() string         { return m.id }
func (m *Model) Family() sam.Family { return m.family }

func (m *Model) Close() error {
	m.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (m *Model) Closed() bool { return m.closed.Load() }

// Encodes returns the number of successful Encode calls.
func (m *Model) Encodes() int { return int(m.encodes.Load()) }

// Decodes returns the number of Decode calls.
func (m *Model) Decodes() int { return int(m.decodes.Load()) }

// OpenEmbeddings returns the number of embeddings not yet closed.
func (m *Model) OpenEmbeddings() int { return int(m.open.Load()) }

func (m *Model) Encode(ctx context.Context, img image.Image) (sam.Embedding, error) {
	if m.Hook != nil {
		if err := m.Hook(ctx); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.EncodeErr != nil {
		return nil, m.EncodeErr
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	m.encodes.Add(1)
	m.open.Add(1)
	return &Embedding{model: m, img: rgba, geo: sam.FitGeometry(b.Dx(), b.Dy())}, nil
}

// Embedding is the fake embedding; it keeps a copy of the encoded image.
type Embedding struct {
	model  *Model
	img    *image.RGBA
	geo    sam.Geometry
	closed atomic.Bool
}

func (e *Embedding) Bounds() image.Rectangle { return e.img.Bounds() }

func (e *Embedding) Close() error {
	if e.closed.CompareAndSwap(false, true) {
		e.model.open.Add(-1)
	}
	return nil
}

// Closed reports whether Close was called.
func (e *Embedding) Closed() bool { return e.closed.Load() }

func (e *Embedding) Decode(ctx context.Context, p sam.Prompt) (*sam.LowResMasks, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.closed.Load() {
		return nil, errors.New("samtest: embedding closed")
	}
	if e.model.DecodeErr != nil {
		return nil, e.model.DecodeErr
	}
	if len(p.Points) == 0 {
		return nil, errors.New("samtest: empty prompt")
	}
	e.model.decodes.Add(1)

	w, h := e.geo.OrigW, e.geo.OrigH
	vw, vh := e.geo.LowResValid()
	if e.model.NoCandidates {
		return &sam.LowResMasks{ValidW: vw, ValidH: vh, Width: w, Height: h}, nil
	}
	selected := e.selector(p)

	const n = sam.LowResSize * sam.LowResSize
	logits := make([]float32, 3*n)
	for ly := 0; ly < vh; ly++ {
		for lx := 0; lx < vw; lx++ {
			x := min((2*lx+1)*w/(2*vw), w-1)
			y := min((2*ly+1)*h/(2*vh), h-1)
			idx := ly*sam.LowResSize + lx
			if selected(x, y) {
				logits[idx] = 8
				logits[2*n+idx] = -8
			} else {
				logits[idx] = -8
				logits[2*n+idx] = 8
			}
			logits[n+idx] = 8
		}
	}
	return &sam.LowResMasks{
		Logits: logits,
		IoU:    []float32{0.95, 0.30, 0.10},
		ValidW: vw,
		ValidH: vh,
		Width:  w,
		Height: h,
	}, nil
}

func (e *Embedding) selector(p sam.Prompt) func(x, y int) bool {
	if len(p.Points) == 2 && p.Points[0].Label == sam.LabelBoxTopLeft && p.Points[1].Label == sam.LabelBoxBottomRight {
		r := image.Rect(int(p.Points[0].X), int(p.Points[0].Y), int(p.Points[1].X)+1, int(p.Points[1].Y)+1)
		return func(x, y int) bool { return image.Pt(x, y).In(r) }
	}
	var want []color.RGBA
	for _, pt := range p.Points {
		if pt.Label != sam.LabelForeground {
			continue
		}
		x := min(max(int(pt.X), 0), e.img.Rect.Dx()-1)
		y := min(max(int(pt.Y), 0), e.img.Rect.Dy()-1)
		want = append(want, e.img.RGBAAt(x, y))
	}
	return func(x, y int) bool {
		c := e.img.RGBAAt(x, y)
		for _, wc := range want {
			if c == wc {
				return true
			}
		}
		return false
	}
}

// Scene paints axis-aligned rectangles of distinct colours on a black
// background; handy input for the fake model.
func Scene(w, h int, rects ...image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)
	for i, r := range rects {
		c := color.RGBA{R: uint8(40 + 50*(i%4)), G: uint8(200 - 40*(i%5)), B: uint8(60 + 30*(i%7)), A: 255}
		draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
	}
	return img
}
