package manager

import (
	"context"
	"errors"
	"fmt"

	"segd/internal/sam"
)

// EnsureInstance resolves modelID (empty means the default model) and
// loads it if needed. Concurrent callers for the same model wait for a
// single load.
func (m *Manager) EnsureInstance(ctx context.Context, modelID string) (*Instance, error) {
	if modelID == "" {
		modelID = m.defaultModel
		if modelID == "" {
			return nil, ErrModelNotFound("(unspecified)")
		}
	}
	mdl, ok := m.getModelByID(modelID)
	if !ok {
		m.log.Debug().Str("model", modelID).Msg("ensure model not found")
		return nil, ErrModelNotFound(modelID)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, tooBusyError{modelID: modelID}
	}
	inst, ok := m.instances[modelID]
	if !ok {
		inst = &Instance{
			ID:       modelID,
			Family:   sam.Family(mdl.Family),
			State:    StateLoading,
			LastUsed: m.clock.Now(),
			genCh:    make(chan struct{}, 1),
			queueCh:  make(chan struct{}, m.maxQueueDepth),
		}
		m.instances[modelID] = inst
	}
	m.mu.Unlock()

	inst.loadMu.Lock()
	defer inst.loadMu.Unlock()
	if inst.Model != nil {
		return inst, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	inst.State = StateLoading
	inst.Err = ""
	if m.state != StateReady {
		m.state = StateLoading
	}
	m.mu.Unlock()

	start := m.clock.Now()
	m.log.Info().Str("model", modelID).Str("family", mdl.Family).Str("device", m.Device()).Msg("loading model")
	model, err := m.opener(sam.Spec{
		ID:          mdl.ID,
		Family:      sam.Family(mdl.Family),
		EncoderPath: mdl.Encoder,
		DecoderPath: mdl.Decoder,
	}, m.runtime)
	if err != nil {
		if errors.Is(err, sam.ErrRuntimeUnavailable) {
			err = dependencyUnavailableError{msg: err.Error(), err: err}
		} else {
			err = fmt.Errorf("load model %s: %w", modelID, err)
		}
		m.mu.Lock()
		inst.State = StateError
		inst.Err = err.Error()
		m.state = StateError
		m.err = err.Error()
		m.mu.Unlock()
		modelLoadsTotal.WithLabelValues(modelID, "error").Inc()
		m.log.Error().Err(err).Str("model", modelID).Msg("model load failed")
		m.publisher.Publish(Event{Name: EventModelLoadFailed, ModelID: modelID, Fields: map[string]any{"error": err.Error()}})
		return nil, err
	}

	dur := m.clock.Since(start)
	m.mu.Lock()
	inst.Model = model
	inst.State = StateReady
	inst.LastUsed = m.clock.Now()
	m.loadsTotal++
	m.state = StateReady
	m.err = ""
	m.mu.Unlock()
	modelLoadsTotal.WithLabelValues(modelID, "ok").Inc()
	m.log.Info().Str("model", modelID).Dur("dur", dur).Msg("model ready")
	m.publisher.Publish(Event{Name: EventModelLoaded, ModelID: modelID, Fields: map[string]any{"dur_ms": dur.Milliseconds()}})
	return inst, nil
}

// Preload loads the given models (all registered models when ids is empty).
// It stops at the first failure.
func (m *Manager) Preload(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		for _, mdl := range m.ListModels() {
			ids = append(ids, mdl.ID)
		}
	}
	for _, id := range ids {
		if _, err := m.EnsureInstance(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
