// Package manager coordinates segmentation models, image loading, the
// embedding cache and request admission. It is structured into small files
// by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: internal state types (State, Instance).
//   - errors.go: error types and helpers (IsTooBusy, IsModelNotFound, ...).
//   - helpers.go: model lookup and request validation.
//   - admission.go: per-instance queueing and inference admission.
//   - ensure.go: lazy model loading.
//   - embedding.go: cached image embeddings and ComputeEmbedding.
//   - predict.go, box.go, auto.go: the segmentation operations.
//   - status_report.go: Status reporting.
//   - close.go: draining and shutdown.
//   - metrics.go: Prometheus collectors for inference and the cache.
//   - events.go, eventpub_memory.go, eventpub_log.go: lifecycle events and sinks.
//
// Model runtimes are opened through ManagerConfig.Opener, which defaults to
// sam.Open. Builds without the 'onnx' tag report the runtime as unavailable
// and every operation fails with a dependency error (HTTP 503).
//
// External packages should treat this package as the orchestration layer and
// use public methods only. Internal types are subject to change.
package manager
