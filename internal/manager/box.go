package manager

import (
	"context"
	"fmt"

	"segd/internal/sam"
	"segd/pkg/types"
)

// BoxSegment returns the best mask for a box prompt.
func (m *Manager) BoxSegment(ctx context.Context, req types.BoxSegmentRequest) (types.BoxSegmentResponse, error) {
	if len(req.BoxCoords) != 4 {
		return types.BoxSegmentResponse{}, ErrInvalidRequest(fmt.Sprintf("box_coords must be [x_min, y_min, x_max, y_max], got %d values", len(req.BoxCoords)))
	}
	src, img, err := m.loadImage(ctx, req.ImagePath)
	if err != nil {
		return types.BoxSegmentResponse{}, err
	}
	inst, release, err := m.admit(ctx, req.Model)
	if err != nil {
		return types.BoxSegmentResponse{}, err
	}
	defer release()
	e, err := m.embeddingFor(ctx, inst, src, img)
	if err != nil {
		return types.BoxSegmentResponse{}, err
	}
	defer m.cache.Release(e)

	b := req.BoxCoords
	low, err := m.decode(ctx, inst, e.Embedding, sam.BoxPrompt(float32(b[0]), float32(b[1]), float32(b[2]), float32(b[3])))
	if err != nil {
		return types.BoxSegmentResponse{}, err
	}
	if low.Count() == 0 {
		return types.BoxSegmentResponse{}, fmt.Errorf("decode: model %s returned no masks", inst.ID)
	}
	masksGeneratedTotal.WithLabelValues(inst.ID, "box_segment").Inc()
	return types.BoxSegmentResponse{
		Mask: types.Mask{Width: low.Width, Height: low.Height, Pix: low.Binary(low.Best(), 0)},
	}, nil
}
