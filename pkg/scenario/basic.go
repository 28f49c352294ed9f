package scenario

import (
	"math"
	"time"

	"github.com/jihwankim/promemu/pkg/metrics"
)

// DoNothing returns the current metric value unchanged.
func DoNothing(ctx *metrics.Context, params map[string]any) (*float64, error) {
	return ctx.Value, nil
}

// RandomInRange returns a uniform random value in the given value_range
// param, defaulting to the metric's own configured range.
func RandomInRange(ctx *metrics.Context, params map[string]any) (*float64, error) {
	r := rangeParam(params, "value_range", ctx.Config.ValueRange)
	v := uniform(defaultSource, r[0], r[1])
	return &v, nil
}

// SineWave produces a configurable sine wave over elapsed wall-clock time.
// period must be positive; the wave's phase origin is stored on first call.
func SineWave(ctx *metrics.Context, params map[string]any) (*float64, error) {
	period := floatParam(params, "period", 300)
	amplitude := floatParam(params, "amplitude", 50)
	offset := floatParam(params, "offset", 50)
	phaseOffset := floatParam(params, "phase_offset", 0)

	if period <= 0 {
		return nil, validationErrorf("period must be positive, got %v", period)
	}

	if ctx.Storage.Get("sine_start_time", nil) == nil {
		ctx.Storage.Set("sine_start_time", ctx.Timestamp)
	}
	start := ctx.Storage.Get("sine_start_time", ctx.Timestamp).(time.Time)
	elapsed := ctx.Timestamp.Sub(start).Seconds()

	phase := (elapsed/period)*2*math.Pi + phaseOffset
	v := offset + amplitude*math.Sin(phase)
	return &v, nil
}
