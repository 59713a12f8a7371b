package types

// Model describes a segmentation model known to the server.
type Model struct {
	// Stable identifier for the model.
	// example: sam2-hiera-large
	ID string `json:"id" example:"sam2-hiera-large"`
	// Human-friendly name.
	// example: SAM2.1 Hiera Large
	Name string `json:"name" example:"SAM2.1 Hiera Large"`
	// Model family: sam2 or micro_sam.
	// example: sam2
	Family string `json:"family" example:"sam2"`
	// Absolute path to the ONNX image encoder.
	// example: /srv/weights/sam2-hiera-large/vision_encoder.onnx
	Encoder string `json:"encoder" example:"/srv/weights/sam2-hiera-large/vision_encoder.onnx"`
	// Absolute path to the ONNX prompt encoder / mask decoder.
	// example: /srv/weights/sam2-hiera-large/prompt_encoder_mask_decoder.onnx
	Decoder string `json:"decoder" example:"/srv/weights/sam2-hiera-large/prompt_encoder_mask_decoder.onnx"`
}

// Model families.
const (
	FamilySAM2     = "sam2"
	FamilyMicroSAM = "micro_sam"
)
