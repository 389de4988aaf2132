//go:build !js_eval

package store

// NewJSProjector is unavailable without the js_eval build tag.
func NewJSProjector(opts ...JSProjectorOption) Projector {
	_ = applyJSProjectorOptions(opts)
	return nil
}

func jsProjectorAvailable() bool {
	return false
}
