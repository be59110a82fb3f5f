package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*window)

// WithMaxSize sets how many build keys are remembered. Zero or a negative
// value remembers every key.
func WithMaxSize(maxSize int) Option {
	return func(w *window) {
		w.maxSize = maxSize
	}
}
