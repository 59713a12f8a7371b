package manager

// Event names published by the manager.
const (
	EventModelLoaded       = "model_loaded"
	EventModelLoadFailed   = "model_load_failed"
	EventModelUnloaded     = "model_unloaded"
	EventEmbeddingCached   = "embedding_cached"
	EventEmbeddingEvicted  = "embedding_evicted"
	EventMasksGenerated    = "masks_generated"
	EventAdmissionRejected = "admission_rejected"
)

// Event represents a manager lifecycle event.
// Minimal and stable: name + model ID and optional fields via key/values.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
