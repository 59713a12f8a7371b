// Package amg generates masks for every object in an image by prompting a
// SAM model with a regular grid of points, optionally over overlapping
// crops, and de-duplicating the results.
package amg

// Params tunes the automatic mask generator.
type Params struct {
	PointsPerSide              int     `json:"points_per_side"`
	PredIoUThresh              float32 `json:"pred_iou_thresh"`
	StabilityScoreThresh       float32 `json:"stability_score_thresh"`
	StabilityScoreOffset       float32 `json:"stability_score_offset"`
	MaskThreshold              float32 `json:"mask_threshold"`
	BoxNMSThresh               float32 `json:"box_nms_thresh"`
	CropNLayers                int     `json:"crop_n_layers"`
	CropOverlapRatio           float32 `json:"crop_overlap_ratio"`
	CropNMSThresh              float32 `json:"crop_nms_thresh"`
	CropNPointsDownscaleFactor int     `json:"crop_n_points_downscale_factor"`
	MinMaskRegionArea          int     `json:"min_mask_region_area"`
}

// Size thresholds for Adaptive, compared against the longer image side.
const (
	SmallImageMaxSide  = 512
	MediumImageMaxSide = 1024
)

// base holds the generator defaults that no preset overrides.
func base() Params {
	return Params{
		PointsPerSide:              32,
		PredIoUThresh:              0.8,
		StabilityScoreThresh:       0.95,
		StabilityScoreOffset:       1.0,
		MaskThreshold:              0.0,
		BoxNMSThresh:               0.7,
		CropNLayers:                0,
		CropOverlapRatio:           512.0 / 1500.0,
		CropNMSThresh:              0.7,
		CropNPointsDownscaleFactor: 1,
	}
}

// Default is the fixed preset used by plain automatic segmentation.
func Default() Params {
	p := base()
	p.PointsPerSide = 16
	p.PredIoUThresh = 0.7
	p.StabilityScoreThresh = 0.8
	return p
}

// Adaptive picks a preset from the image size: dense sampling with an
// extra crop layer for small images, sparse sampling without crops for
// large ones.
func Adaptive(width, height int) Params {
	p := base()
	switch side := max(width, height); {
	case side <= SmallImageMaxSide:
		p.PointsPerSide, p.PredIoUThresh, p.StabilityScoreThresh = 32, 0.85, 0.9
		p.CropNLayers, p.CropOverlapRatio = 1, 0.5
	case side <= MediumImageMaxSide:
		p.PointsPerSide, p.PredIoUThresh, p.StabilityScoreThresh = 24, 0.8, 0.85
		p.CropNLayers, p.CropOverlapRatio = 1, 0.3
	default:
		p.PointsPerSide, p.PredIoUThresh, p.StabilityScoreThresh = 16, 0.7, 0.8
		p.CropNLayers, p.CropOverlapRatio = 0, 0.2
	}
	return p
}
