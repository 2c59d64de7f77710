package llm

// RequestOptions tunes a single completion call. Nil fields fall back to the
// provider defaults.
type RequestOptions struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	StopSeqs    []string
}

// WithTemperature returns options carrying only a sampling temperature.
func WithTemperature(t float64) *RequestOptions {
	return &RequestOptions{Temperature: &t}
}

// TemperatureOr returns the configured temperature or def when unset.
func (o *RequestOptions) TemperatureOr(def float64) float64 {
	if o == nil || o.Temperature == nil {
		return def
	}
	return *o.Temperature
}
