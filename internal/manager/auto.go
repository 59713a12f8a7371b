package manager

import (
	"context"
	"fmt"
	"image"

	"segd/internal/amg"
	"segd/internal/embedcache"
	"segd/internal/imageio"
	"segd/pkg/types"
)

// AutoSegment segments every object with the fixed generator preset. With
// Combined set it also returns label images from the requested model and
// from the micro-sam model, when one is configured.
func (m *Manager) AutoSegment(ctx context.Context, req types.AutoSegmentRequest) (types.AutoSegmentResponse, error) {
	src, img, err := m.loadImage(ctx, req.ImagePath)
	if err != nil {
		return types.AutoSegmentResponse{}, err
	}
	// A reference on the micro-sam embedding keeps it usable even when the
	// first pass evicts it from the cache.
	var microID string
	var held *embedcache.Entry
	if req.Combined {
		if id, ok := m.microModelID(); ok {
			microID = id
			if e, ok := m.cache.Pin(embedcache.Key(id, src.Identity())); ok {
				held = e
				defer m.cache.Release(e)
			}
		}
	}

	masks, modelID, err := m.generate(ctx, req.Model, src, img, amg.Default(), "auto_segment", nil)
	if err != nil {
		return types.AutoSegmentResponse{}, err
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	resp := types.AutoSegmentResponse{Masks: toWireMasks(masks)}
	if !req.Combined {
		return resp, nil
	}

	resp.SAM2Mask = &types.Labels{Width: w, Height: h, Pix: amg.LabelImage(masks, w, h)}
	if microID != "" && microID != modelID {
		micro, _, err := m.generate(ctx, microID, src, img, amg.Default(), "auto_segment_micro", held)
		if err != nil {
			return types.AutoSegmentResponse{}, fmt.Errorf("micro-sam: %w", err)
		}
		resp.MicroMask = &types.Labels{Width: w, Height: h, Pix: amg.LabelImage(micro, w, h)}
	}
	return resp, nil
}

// AutoSegmentAdaptive picks generator parameters from the image size and
// reports them alongside the masks.
func (m *Manager) AutoSegmentAdaptive(ctx context.Context, req types.AutoSegmentRequest) (types.AdaptiveSegmentResponse, error) {
	src, img, err := m.loadImage(ctx, req.ImagePath)
	if err != nil {
		return types.AdaptiveSegmentResponse{}, err
	}
	p := amg.Adaptive(img.Rect.Dx(), img.Rect.Dy())
	masks, _, err := m.generate(ctx, req.Model, src, img, p, "auto_segment_adaptive", nil)
	if err != nil {
		return types.AdaptiveSegmentResponse{}, err
	}
	return types.AdaptiveSegmentResponse{
		Masks: toWireMasks(masks),
		ParamsUsed: types.ParamsUsed{
			PointsPerSide:        p.PointsPerSide,
			PredIoUThresh:        roundParam(p.PredIoUThresh),
			StabilityScoreThresh: roundParam(p.StabilityScoreThresh),
			CropNLayers:          p.CropNLayers,
			CropOverlapRatio:     roundParam(p.CropOverlapRatio),
		},
	}, nil
}

// generate runs the automatic mask generator on modelID, reusing a cached
// embedding of the full image for the first crop. A non-nil held entry is
// used as that embedding; the caller keeps ownership of its reference.
func (m *Manager) generate(ctx context.Context, modelID string, src imageio.Source, img image.Image, p amg.Params, op string, held *embedcache.Entry) ([]amg.Mask, string, error) {
	inst, release, err := m.admit(ctx, modelID)
	if err != nil {
		return nil, "", err
	}
	defer release()
	e := held
	if e != nil && e.Model == inst.ID {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		m.log.Debug().Str("model", inst.ID).Str("image", src.Ref).Msg("embedding cache hit")
	} else {
		e, err = m.embeddingFor(ctx, inst, src, img)
		if err != nil {
			return nil, "", err
		}
		defer m.cache.Release(e)
	}

	start := m.clock.Now()
	masks, err := amg.Generate(ctx, inst.Model, img, p, amg.Options{Embedding: e.Embedding})
	if err != nil {
		return nil, "", err
	}
	dur := m.clock.Since(start)
	inferenceDuration.WithLabelValues(inst.ID, "generate").Observe(dur.Seconds())
	masksGeneratedTotal.WithLabelValues(inst.ID, op).Add(float64(len(masks)))
	m.log.Debug().Str("model", inst.ID).Str("op", op).Int("masks", len(masks)).Int("points_per_side", p.PointsPerSide).Dur("dur", dur).Msg("masks generated")
	m.publisher.Publish(Event{Name: EventMasksGenerated, ModelID: inst.ID, Fields: map[string]any{"op": op, "count": len(masks)}})
	return masks, inst.ID, nil
}

func toWireMasks(masks []amg.Mask) []types.Mask {
	out := make([]types.Mask, len(masks))
	for i, mk := range masks {
		out[i] = types.Mask{Width: mk.Width, Height: mk.Height, Pix: mk.Segmentation}
	}
	return out
}

// roundParam keeps float32 presets printing as 0.85 rather than 0.8500000238.
func roundParam(v float32) float64 {
	return float64(int64(float64(v)*1e4+0.5)) / 1e4
}
