//go:build onnx

package sam

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	envOnce sync.Once
	envErr  error
)

var (
	encoderInputs  = []string{"pixel_values"}
	encoderOutputs = []string{"image_embeddings.0", "image_embeddings.1", "image_embeddings.2"}
	decoderInputs  = []string{"input_points", "input_labels", "input_boxes", "image_embeddings.0", "image_embeddings.1", "image_embeddings.2"}
	decoderOutputs = []string{"iou_scores", "pred_masks", "object_score_logits"}
)

// initEnvironment loads the shared library once per process.
func initEnvironment(libPath string) error {
	if libPath == "" {
		return errors.New("onnxruntime library path is empty")
	}
	envOnce.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		envErr = ort.InitializeEnvironment()
	})
	if envErr != nil {
		return fmt.Errorf("initialize onnxruntime: %w", envErr)
	}
	return nil
}

func newSessionOptions(rt RuntimeConfig) (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	if rt.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(rt.NumThreads); err != nil {
			opts.Destroy()
			return nil, fmt.Errorf("set threads: %w", err)
		}
	}
	switch rt.Device {
	case "cuda":
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			opts.Destroy()
			return nil, fmt.Errorf("cuda provider options: %w", err)
		}
		defer cuda.Destroy()
		if err := opts.AppendExecutionProviderCUDA(cuda); err != nil {
			opts.Destroy()
			return nil, fmt.Errorf("append cuda provider: %w", err)
		}
	case "coreml":
		if err := opts.AppendExecutionProviderCoreML(0); err != nil {
			opts.Destroy()
			return nil, fmt.Errorf("append coreml provider: %w", err)
		}
	}
	return opts, nil
}

type onnxModel struct {
	spec    Spec
	encoder *ort.DynamicAdvancedSession
	decoder *ort.DynamicAdvancedSession
}

// Open creates encoder and decoder sessions for spec.
func Open(spec Spec, rt RuntimeConfig) (Model, error) {
	if err := initEnvironment(rt.LibraryPath); err != nil {
		return nil, err
	}
	opts, err := newSessionOptions(rt)
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	enc, err := ort.NewDynamicAdvancedSession(spec.EncoderPath, encoderInputs, encoderOutputs, opts)
	if err != nil {
		return nil, fmt.Errorf("open encoder %s: %w", spec.EncoderPath, err)
	}
	dec, err := ort.NewDynamicAdvancedSession(spec.DecoderPath, decoderInputs, decoderOutputs, opts)
	if err != nil {
		enc.Destroy()
		return nil, fmt.Errorf("open decoder %s: %w", spec.DecoderPath, err)
	}
	return &onnxModel{spec: spec, encoder: enc, decoder: dec}, nil
}

func (m *onnxModel) ID() string     { return m.spec.ID }
func (m *onnxModel) Family() Family { return m.spec.Family }

func (m *onnxModel) Close() error {
	var errs []error
	if m.encoder != nil {
		errs = append(errs, m.encoder.Destroy())
		m.encoder = nil
	}
	if m.decoder != nil {
		errs = append(errs, m.decoder.Destroy())
		m.decoder = nil
	}
	return errors.Join(errs...)
}

func (m *onnxModel) Encode(ctx context.Context, img image.Image) (Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, geo := Preprocess(img)
	input, err := ort.NewTensor(ort.NewShape(1, 3, InputSize, InputSize), data)
	if err != nil {
		return nil, fmt.Errorf("encoder input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := make([]ort.Value, len(encoderOutputs))
	if err := m.encoder.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("encoder run: %w", err)
	}
	return &onnxEmbedding{model: m, features: outputs, geo: geo}, nil
}

type onnxEmbedding struct {
	model    *onnxModel
	features []ort.Value
	geo      Geometry

	mu     sync.Mutex
	closed bool
}

func (e *onnxEmbedding) Bounds() image.Rectangle {
	return image.Rect(0, 0, e.geo.OrigW, e.geo.OrigH)
}

func (e *onnxEmbedding) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	var errs []error
	for _, v := range e.features {
		if v != nil {
			errs = append(errs, v.Destroy())
		}
	}
	e.features = nil
	return errors.Join(errs...)
}

func (e *onnxEmbedding) Decode(ctx context.Context, p Prompt) (*LowResMasks, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(p.Points) == 0 {
		return nil, errors.New("prompt has no points")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errors.New("embedding already closed")
	}

	coords := make([]float32, 0, len(p.Points)*2)
	labels := make([]int64, 0, len(p.Points))
	for _, pt := range p.Points {
		coords = append(coords, pt.X*e.geo.Scale, pt.Y*e.geo.Scale)
		labels = append(labels, int64(pt.Label))
	}
	n := int64(len(p.Points))

	tPoints, err := ort.NewTensor(ort.NewShape(1, 1, n, 2), coords)
	if err != nil {
		return nil, fmt.Errorf("points tensor: %w", err)
	}
	defer tPoints.Destroy()
	tLabels, err := ort.NewTensor(ort.NewShape(1, 1, n), labels)
	if err != nil {
		return nil, fmt.Errorf("labels tensor: %w", err)
	}
	defer tLabels.Destroy()
	// boxes travel as labelled corner points
	tBoxes, err := ort.NewTensor(ort.NewShape(1, 0, 4), []float32{})
	if err != nil {
		return nil, fmt.Errorf("boxes tensor: %w", err)
	}
	defer tBoxes.Destroy()

	inputs := []ort.Value{tPoints, tLabels, tBoxes, e.features[0], e.features[1], e.features[2]}
	outputs := make([]ort.Value, len(decoderOutputs))
	if err := e.model.decoder.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("decoder run: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	scores, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("iou_scores: unexpected tensor type %T", outputs[0])
	}
	masks, ok := outputs[1].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("pred_masks: unexpected tensor type %T", outputs[1])
	}
	iou := append([]float32(nil), scores.GetData()...)
	logits := masks.GetData()
	if len(logits) < len(iou)*LowResSize*LowResSize {
		return nil, fmt.Errorf("pred_masks: %d values for %d masks", len(logits), len(iou))
	}
	vw, vh := e.geo.LowResValid()
	return &LowResMasks{
		Logits: append([]float32(nil), logits[:len(iou)*LowResSize*LowResSize]...),
		IoU:    iou,
		ValidW: vw,
		ValidH: vh,
		Width:  e.geo.OrigW,
		Height: e.geo.OrigH,
	}, nil
}
