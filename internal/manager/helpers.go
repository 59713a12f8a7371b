package manager

import (
	"context"
	"errors"
	"fmt"
	"image"

	"segd/internal/imageio"
	"segd/pkg/types"
)

// Helper: find model in registry by id.
func (m *Manager) getModelByID(id string) (types.Model, bool) {
	for _, mdl := range m.registry {
		if mdl.ID == id {
			return mdl, true
		}
	}
	return types.Model{}, false
}

// microModelID returns the first micro-sam model, if any.
func (m *Manager) microModelID() (string, bool) {
	for _, mdl := range m.registry {
		if mdl.Family == types.FamilyMicroSAM {
			return mdl.ID, true
		}
	}
	return "", false
}

// loadImage resolves and decodes an image reference, mapping path
// problems to 400s.
func (m *Manager) loadImage(ctx context.Context, ref string) (imageio.Source, *image.RGBA, error) {
	src, img, err := m.images.Open(ctx, ref)
	switch {
	case err == nil:
		return src, img, nil
	case errors.Is(err, imageio.ErrInvalidPath):
		return imageio.Source{}, nil, invalidRequestError{msg: errInvalidImagePath, err: err}
	case errors.Is(err, imageio.ErrDecode):
		return imageio.Source{}, nil, invalidRequestError{msg: err.Error(), err: err}
	default:
		return imageio.Source{}, nil, err
	}
}

// resolveImage checks the reference without reading the image.
func (m *Manager) resolveImage(ctx context.Context, ref string) error {
	if _, err := m.images.Resolve(ctx, ref); err != nil {
		if errors.Is(err, imageio.ErrInvalidPath) {
			return invalidRequestError{msg: errInvalidImagePath, err: err}
		}
		return err
	}
	return nil
}

func validatePrompts(prompts []types.PointPrompt) error {
	for i, p := range prompts {
		if len(p.PointCoords) == 0 {
			return ErrInvalidRequest(fmt.Sprintf("prompt %d has no points", i))
		}
		if len(p.PointCoords) != len(p.PointLabels) {
			return ErrInvalidRequest(fmt.Sprintf("prompt %d: %d point_coords but %d point_labels", i, len(p.PointCoords), len(p.PointLabels)))
		}
		for j, c := range p.PointCoords {
			if len(c) != 2 {
				return ErrInvalidRequest(fmt.Sprintf("prompt %d point %d: want [x, y], got %d values", i, j, len(c)))
			}
		}
		for j, l := range p.PointLabels {
			if l != 0 && l != 1 {
				return ErrInvalidRequest(fmt.Sprintf("prompt %d point %d: label must be 0 or 1, got %d", i, j, l))
			}
		}
	}
	return nil
}
