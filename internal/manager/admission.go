package manager

import (
	"context"
)

// beginInference reserves a queue slot and then the single in-flight slot.
// Returns a release func to be deferred.
func (m *Manager) beginInference(ctx context.Context, inst *Instance) (func(), error) {
	m.mu.RLock()
	draining := m.closed || inst.State == StateDraining
	m.mu.RUnlock()
	// If draining, reject new work to allow graceful shutdown
	if draining {
		return func() {}, tooBusyError{modelID: inst.ID}
	}

	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	timer := m.clock.NewTimer(m.maxWait)
	select {
	case inst.queueCh <- struct{}{}:
		// reserved queue slot
		timer.Stop()
	case <-ctx.Done():
		timer.Stop()
		return func() {}, ctx.Err()
	case <-timer.Chan():
		m.rejected(inst.ID, "queue_timeout")
		return func() {}, tooBusyError{modelID: inst.ID}
	}

	// Wait to acquire the single in-flight slot
	acquired := false
	defer func() {
		if !acquired {
			<-inst.queueCh
		}
	}()
	// Check for cancellation again before blocking on the inference slot
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer2 := m.clock.NewTimer(m.maxWait)
	defer timer2.Stop()
	select {
	case inst.genCh <- struct{}{}:
		acquired = true
		m.mu.Lock()
		inst.LastUsed = m.clock.Now()
		m.mu.Unlock()
		inferenceInflight.WithLabelValues(inst.ID).Inc()
		return func() {
			inferenceInflight.WithLabelValues(inst.ID).Dec()
			<-inst.genCh
			<-inst.queueCh
		}, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer2.Chan():
		m.rejected(inst.ID, "inflight_timeout")
		return func() {}, tooBusyError{modelID: inst.ID}
	}
}

func (m *Manager) rejected(modelID, reason string) {
	admissionRejectedTotal.WithLabelValues(reason).Inc()
	m.publisher.Publish(Event{Name: EventAdmissionRejected, ModelID: modelID, Fields: map[string]any{"reason": reason}})
}
