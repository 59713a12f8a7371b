//go:build !onnx

package sam

// Open refuses to load models in builds without the 'onnx' tag.
func Open(spec Spec, rt RuntimeConfig) (Model, error) {
	return nil, ErrRuntimeUnavailable
}
