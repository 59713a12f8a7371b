package types

// IndexResponse is returned by GET /.
type IndexResponse struct {
	// example: SAM2 Server is running
	Message string `json:"message" example:"SAM2 Server is running"`
}

// PointPrompt is one click prompt: a set of points with their labels.
type PointPrompt struct {
	// Point coordinates as [x, y] pairs in original image pixels.
	// example: [[120,88],[140,90]]
	PointCoords [][]float64 `json:"point_coords"`
	// One label per point: 1 foreground, 0 background.
	// example: [1,1]
	PointLabels []int `json:"point_labels"`
}

// PredictRequest is the payload of POST /predict.
type PredictRequest struct {
	// Path to the image on the server host, or s3://bucket/key.
	// example: /data/cells/plate01.png
	ImagePath string `json:"image_path" example:"/data/cells/plate01.png"`
	// Prompts to decode; each produces its own set of candidate masks.
	Prompts []PointPrompt `json:"prompts"`
	// Optional model id. If empty, the server default is used.
	Model string `json:"model,omitempty"`
}

// PredictResponse holds, per prompt, every candidate mask of the decoder.
type PredictResponse struct {
	Masks [][]Mask `json:"masks" swaggertype:"array,object"`
}

// BoxSegmentRequest is the payload of POST /box_segment.
type BoxSegmentRequest struct {
	// example: /data/cells/plate01.png
	ImagePath string `json:"image_path" example:"/data/cells/plate01.png"`
	// Box as [x_min, y_min, x_max, y_max].
	// example: [367,168,441,349]
	BoxCoords []float64 `json:"box_coords"`
	Model     string    `json:"model,omitempty"`
}

// BoxSegmentResponse holds the single best mask for a box prompt.
type BoxSegmentResponse struct {
	Mask Mask `json:"mask" swaggertype:"array,object"`
}

// AutoSegmentRequest is the payload of POST /auto_segment and
// POST /auto_segment_adaptive.
type AutoSegmentRequest struct {
	// example: /data/cells/plate01.png
	ImagePath string `json:"image_path" example:"/data/cells/plate01.png"`
	// When true, /auto_segment also returns sam2_mask and micro_mask label images.
	Combined bool   `json:"combined,omitempty"`
	Model    string `json:"model,omitempty"`
}

// AutoSegmentResponse is returned by POST /auto_segment.
type AutoSegmentResponse struct {
	Masks     []Mask  `json:"masks" swaggertype:"array,object"`
	SAM2Mask  *Labels `json:"sam2_mask,omitempty" swaggertype:"array,object"`
	MicroMask *Labels `json:"micro_mask,omitempty" swaggertype:"array,object"`
}

// ParamsUsed reports the automatic mask generator preset chosen for an image.
type ParamsUsed struct {
	// example: 24
	PointsPerSide int `json:"points_per_side" example:"24"`
	// example: 0.8
	PredIoUThresh float64 `json:"pred_iou_thresh" example:"0.8"`
	// example: 0.85
	StabilityScoreThresh float64 `json:"stability_score_thresh" example:"0.85"`
	// example: 1
	CropNLayers int `json:"crop_n_layers" example:"1"`
	// example: 0.3
	CropOverlapRatio float64 `json:"crop_overlap_ratio" example:"0.3"`
}

// AdaptiveSegmentResponse is returned by POST /auto_segment_adaptive.
type AdaptiveSegmentResponse struct {
	Masks      []Mask     `json:"masks" swaggertype:"array,object"`
	ParamsUsed ParamsUsed `json:"params_used"`
}

// ComputeEmbeddingRequest is the payload of POST /compute_embedding.
type ComputeEmbeddingRequest struct {
	// example: /data/cells/plate01.png
	ImagePath string `json:"image_path" example:"/data/cells/plate01.png"`
	// Optional model id; defaults to the micro-sam model when one is configured.
	Model string `json:"model,omitempty"`
}

// ComputeEmbeddingResponse confirms an embedding was cached.
type ComputeEmbeddingResponse struct {
	// example: embedding computed
	Status string `json:"status" example:"embedding computed"`
	// Identifier of the cached embedding.
	// example: 3f1c7e4a-98b0-4c55-9c4e-2d0f1f2b6a77
	EmbeddingID string `json:"embedding_id" example:"3f1c7e4a-98b0-4c55-9c4e-2d0f1f2b6a77"`
	// example: micro-sam-vit-b
	Model string `json:"model" example:"micro-sam-vit-b"`
	// Cache key the embedding is stored under.
	CacheKey string `json:"cache_key"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// example: Invalid image path
	Error string `json:"error" example:"Invalid image path"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// ModelStatus summarizes a loaded model for /status.
type ModelStatus struct {
	// example: sam2-hiera-large
	ModelID string `json:"model_id" example:"sam2-hiera-large"`
	// example: sam2
	Family string `json:"family" example:"sam2"`
	// Lifecycle state: loading, ready or error.
	// example: ready
	State string `json:"state" example:"ready"`
	// Last time this model served a request (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// Requests holding a queue slot, including the one in flight.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	Error         string `json:"error,omitempty"`
}

// CacheEntryStatus describes one cached embedding.
type CacheEntryStatus struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Model       string `json:"model"`
	CreatedUnix int64  `json:"created_unix"`
}

// CacheStatus describes the embedding cache.
type CacheStatus struct {
	// example: 1
	Capacity int `json:"capacity" example:"1"`
	// example: 1
	Len     int                `json:"len" example:"1"`
	Hits    uint64             `json:"hits"`
	Misses  uint64             `json:"misses"`
	Entries []CacheEntryStatus `json:"entries"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall state (loading, ready, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Execution provider in use (cpu, cuda, coreml).
	// example: cuda
	Device string        `json:"device" example:"cuda"`
	Models []ModelStatus `json:"models"`
	Cache  CacheStatus   `json:"cache"`
	// example: 12
	LoadsTotal uint64 `json:"loads_total" example:"12"`
	LastError  string `json:"last_error,omitempty"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
