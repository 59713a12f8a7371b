package manager

import (
	"context"
	"fmt"

	"segd/internal/sam"
	"segd/pkg/types"
)

// Predict decodes each point prompt against the image and returns, per
// prompt, every candidate mask the decoder produced.
func (m *Manager) Predict(ctx context.Context, req types.PredictRequest) (types.PredictResponse, error) {
	if err := validatePrompts(req.Prompts); err != nil {
		return types.PredictResponse{}, err
	}
	resp := types.PredictResponse{Masks: make([][]types.Mask, 0, len(req.Prompts))}
	if len(req.Prompts) == 0 {
		return resp, m.resolveImage(ctx, req.ImagePath)
	}
	src, img, err := m.loadImage(ctx, req.ImagePath)
	if err != nil {
		return types.PredictResponse{}, err
	}

	inst, release, err := m.admit(ctx, req.Model)
	if err != nil {
		return types.PredictResponse{}, err
	}
	defer release()
	e, err := m.embeddingFor(ctx, inst, src, img)
	if err != nil {
		return types.PredictResponse{}, err
	}
	defer m.cache.Release(e)

	for i, p := range req.Prompts {
		prompt := sam.Prompt{Points: make([]sam.Point, len(p.PointCoords))}
		for j, c := range p.PointCoords {
			prompt.Points[j] = sam.Point{X: float32(c[0]), Y: float32(c[1]), Label: sam.Label(p.PointLabels[j])}
		}
		low, err := m.decode(ctx, inst, e.Embedding, prompt)
		if err != nil {
			return types.PredictResponse{}, fmt.Errorf("prompt %d: %w", i, err)
		}
		masks := make([]types.Mask, low.Count())
		for k := range masks {
			masks[k] = types.Mask{Width: low.Width, Height: low.Height, Pix: low.Binary(k, 0), Bool: true}
		}
		resp.Masks = append(resp.Masks, masks)
		masksGeneratedTotal.WithLabelValues(inst.ID, "predict").Add(float64(len(masks)))
	}
	return resp, nil
}

func (m *Manager) decode(ctx context.Context, inst *Instance, emb sam.Embedding, p sam.Prompt) (*sam.LowResMasks, error) {
	start := m.clock.Now()
	low, err := emb.Decode(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	inferenceDuration.WithLabelValues(inst.ID, "decode").Observe(m.clock.Since(start).Seconds())
	return low, nil
}
