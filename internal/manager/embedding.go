package manager

import (
	"context"
	"fmt"
	"image"

	"segd/internal/embedcache"
	"segd/internal/imageio"
	"segd/pkg/types"
)

// admit loads modelID and takes its inference slot.
func (m *Manager) admit(ctx context.Context, modelID string) (*Instance, func(), error) {
	inst, err := m.EnsureInstance(ctx, modelID)
	if err != nil {
		return nil, func() {}, err
	}
	release, err := m.beginInference(ctx, inst)
	if err != nil {
		return nil, func() {}, err
	}
	return inst, release, nil
}

// embeddingFor returns a referenced cache entry holding the encoding of img
// by inst's model, encoding on a miss. The caller must hold inst's
// inference slot and release the entry.
func (m *Manager) embeddingFor(ctx context.Context, inst *Instance, src imageio.Source, img image.Image) (*embedcache.Entry, error) {
	key := embedcache.Key(inst.ID, src.Identity())
	if e, ok := m.cache.Get(key); ok {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		m.log.Debug().Str("model", inst.ID).Str("image", src.Ref).Msg("embedding cache hit")
		return e, nil
	}
	cacheLookupsTotal.WithLabelValues("miss").Inc()

	start := m.clock.Now()
	emb, err := inst.Model.Encode(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	dur := m.clock.Since(start)
	inferenceDuration.WithLabelValues(inst.ID, "encode").Observe(dur.Seconds())

	e := m.cache.Put(key, inst.ID, emb)
	m.log.Debug().Str("model", inst.ID).Str("image", src.Ref).Dur("dur", dur).Str("embedding_id", e.ID).Msg("embedding cached")
	m.publisher.Publish(Event{Name: EventEmbeddingCached, ModelID: inst.ID, Fields: map[string]any{
		"embedding_id": e.ID,
		"key":          e.Key,
		"image":        src.Ref,
	}})
	return e, nil
}

func (m *Manager) onEmbeddingEvicted(e *embedcache.Entry) {
	cacheEvictionsTotal.Inc()
	m.publisher.Publish(Event{Name: EventEmbeddingEvicted, ModelID: e.Model, Fields: map[string]any{
		"embedding_id": e.ID,
		"key":          e.Key,
	}})
}

// ComputeEmbedding encodes an image and keeps the embedding in the cache
// for later requests. Without an explicit model the micro-sam model is
// used, falling back to the default model.
func (m *Manager) ComputeEmbedding(ctx context.Context, req types.ComputeEmbeddingRequest) (types.ComputeEmbeddingResponse, error) {
	src, img, err := m.loadImage(ctx, req.ImagePath)
	if err != nil {
		return types.ComputeEmbeddingResponse{}, err
	}
	modelID := req.Model
	if modelID == "" {
		if id, ok := m.microModelID(); ok {
			modelID = id
		}
	}
	inst, release, err := m.admit(ctx, modelID)
	if err != nil {
		return types.ComputeEmbeddingResponse{}, err
	}
	defer release()

	e, err := m.embeddingFor(ctx, inst, src, img)
	if err != nil {
		return types.ComputeEmbeddingResponse{}, err
	}
	defer m.cache.Release(e)
	return types.ComputeEmbeddingResponse{
		Status:      "embedding computed",
		EmbeddingID: e.ID,
		Model:       inst.ID,
		CacheKey:    e.Key,
	}, nil
}
