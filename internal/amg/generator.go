package amg

import (
	"context"
	"fmt"
	"image"
	"image/draw"

	"segd/internal/sam"
)

// Mask is one generated object mask in full image coordinates.
type Mask struct {
	Width, Height int
	// Segmentation holds one 0/1 byte per pixel, row-major.
	Segmentation   []uint8
	Area           int
	BBox           image.Rectangle
	PredictedIoU   float32
	StabilityScore float32
	Point          [2]float32
	CropBox        image.Rectangle
}

// Options carries optional inputs for Generate.
type Options struct {
	// Embedding, when set, is an encoding of the full image and is reused
	// for the layer-0 crop instead of encoding again. Generate does not
	// close it.
	Embedding sam.Embedding
}

type candidate struct {
	rle   rle
	box   box // full image coordinates
	area  int
	iou   float32
	stab  float32
	point [2]float32
	crop  image.Rectangle
}

// Generate segments every object in img. Masks are returned in the order
// the final de-duplication keeps them: highest predicted IoU first.
func Generate(ctx context.Context, model sam.Model, img image.Image, p Params, opts Options) ([]Mask, error) {
	if model == nil {
		return nil, fmt.Errorf("amg: nil model")
	}
	if p.PointsPerSide <= 0 {
		return nil, fmt.Errorf("amg: points_per_side must be positive, got %d", p.PointsPerSide)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("amg: empty image")
	}
	full := image.Rect(0, 0, w, h)

	crops := CropBoxes(w, h, p.CropNLayers, p.CropOverlapRatio)
	var all []candidate
	for _, c := range crops {
		got, err := generateCrop(ctx, model, img, c, full, p, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, got...)
	}

	if len(crops) > 1 && len(all) > 0 {
		boxes := make([]box, len(all))
		scores := make([]float32, len(all))
		for i, c := range all {
			boxes[i] = c.box
			// Prefer masks from smaller crops.
			scores[i] = 1 / float32(max(c.crop.Dx()*c.crop.Dy(), 1))
		}
		keep := nms(boxes, scores, p.CropNMSThresh)
		kept := make([]candidate, len(keep))
		for i, k := range keep {
			kept[i] = all[k]
		}
		all = kept
	}

	out := make([]Mask, 0, len(all))
	for _, c := range all {
		if p.MinMaskRegionArea > 0 && c.area < p.MinMaskRegionArea {
			continue
		}
		seg := make([]uint8, w*h)
		c.rle.pasteInto(seg, w, c.crop.Min.X, c.crop.Min.Y)
		out = append(out, Mask{
			Width:          w,
			Height:         h,
			Segmentation:   seg,
			Area:           c.area,
			BBox:           c.box.rect(),
			PredictedIoU:   c.iou,
			StabilityScore: c.stab,
			Point:          c.point,
			CropBox:        c.crop,
		})
	}
	return out, nil
}

func generateCrop(ctx context.Context, model sam.Model, img image.Image, c Crop, full image.Rectangle, p Params, opts Options) ([]candidate, error) {
	cw, ch := c.Box.Dx(), c.Box.Dy()
	emb := opts.Embedding
	owned := false
	if c.Layer != 0 || emb == nil || emb.Bounds().Dx() != cw || emb.Bounds().Dy() != ch {
		var err error
		emb, err = model.Encode(ctx, cropImage(img, c.Box))
		if err != nil {
			return nil, fmt.Errorf("amg: encode crop %v: %w", c.Box, err)
		}
		owned = true
	}
	if owned {
		defer emb.Close()
	}

	var (
		cands  []candidate
		boxes  []box
		scores []float32
		buf    []uint8
	)
	for _, pt := range PointGrid(pointsForLayer(p, c.Layer)) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		px, py := pt[0]*float32(cw), pt[1]*float32(ch)
		low, err := emb.Decode(ctx, sam.Prompt{Points: []sam.Point{{X: px, Y: py, Label: sam.LabelForeground}}})
		if err != nil {
			return nil, fmt.Errorf("amg: decode point (%.1f, %.1f): %w", px, py, err)
		}
		for i := 0; i < low.Count(); i++ {
			iou := low.IoU[i]
			if p.PredIoUThresh > 0 && iou <= p.PredIoUThresh {
				continue
			}
			stab := low.StabilityScore(i, p.MaskThreshold, p.StabilityScoreOffset)
			if p.StabilityScoreThresh > 0 && stab < p.StabilityScoreThresh {
				continue
			}
			buf = low.BinaryInto(buf, i, p.MaskThreshold)
			mb, area := maskBox(buf, low.Width, low.Height)
			if area == 0 {
				continue
			}
			fb := mb.offset(c.Box.Min.X, c.Box.Min.Y)
			if nearCropEdge(fb, c.Box, full) {
				continue
			}
			cands = append(cands, candidate{
				rle:   encodeRLE(buf, low.Width, low.Height),
				box:   fb,
				area:  area,
				iou:   iou,
				stab:  stab,
				point: [2]float32{px + float32(c.Box.Min.X), py + float32(c.Box.Min.Y)},
				crop:  c.Box,
			})
			boxes = append(boxes, fb)
			scores = append(scores, iou)
		}
	}

	keep := nms(boxes, scores, p.BoxNMSThresh)
	kept := make([]candidate, len(keep))
	for i, k := range keep {
		kept[i] = cands[k]
	}
	return kept, nil
}

// cropImage copies r out of img into an origin-based RGBA image.
func cropImage(img image.Image, r image.Rectangle) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min.Add(r.Min), draw.Src)
	return dst
}
