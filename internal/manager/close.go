package manager

import (
	"errors"
	"time"
)

// Close rejects new work, waits up to the drain timeout for queued and
// in-flight requests, then releases cached embeddings and closes models.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	insts := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		inst.State = StateDraining
		insts = append(insts, inst)
	}
	m.mu.Unlock()

	deadline := time.Now().Add(m.drainTimeout)
	for _, inst := range insts {
		for {
			qlen, inflight := len(inst.queueCh), len(inst.genCh)
			if qlen == 0 && inflight == 0 {
				break
			}
			if time.Now().After(deadline) {
				m.log.Warn().Str("model", inst.ID).Int("inflight", inflight).Int("queue", qlen).Msg("drain timeout")
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	// Embeddings reference model sessions; release them first.
	m.cache.Purge()

	var errs []error
	for _, inst := range insts {
		inst.loadMu.Lock()
		if inst.Model != nil {
			if err := inst.Model.Close(); err != nil {
				errs = append(errs, err)
			}
			inst.Model = nil
		}
		inst.loadMu.Unlock()
		m.publisher.Publish(Event{Name: EventModelUnloaded, ModelID: inst.ID, Fields: map[string]any{}})
	}
	return errors.Join(errs...)
}
