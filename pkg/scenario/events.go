package scenario

import (
	"time"

	"github.com/jihwankim/promemu/pkg/metrics"
)

// CalcFunc computes a value from a linked metric's own Context, used by
// RelayToOtherMetric and CalcByEvent.
type CalcFunc func(ctx *metrics.Context) (*float64, error)

// RelayToOtherMetric invokes calcFunction against the Context of the linked
// metric named by sourceMetricName. Falls back to the current value on a
// missing link or a calcFunction error.
func RelayToOtherMetric(ctx *metrics.Context, params map[string]any) (*float64, error) {
	sourceName := stringParam(params, "source_metric_name", "")
	calcFunction, _ := params["calc_function"].(CalcFunc)

	linked, ok := ctx.Links[sourceName]
	if !ok || calcFunction == nil {
		return ctx.Value, nil
	}

	value, err := calcFunction(linked)
	if err != nil {
		return ctx.Value, nil //nolint:nilerr // relay absorbs calc errors, returning the prior value
	}
	return value, nil
}

// EventsConfig maps event names to CalcFunc for CalcByEvent.
type EventsConfig map[string]CalcFunc

// CalcByEvent dispatches to the CalcFunc registered for ctx.Event.Name, or
// returns the current value when no event fired or none matches.
func CalcByEvent(ctx *metrics.Context, params map[string]any) (*float64, error) {
	eventsConfig, _ := params["events_config"].(EventsConfig)
	if ctx.Event != nil && eventsConfig != nil {
		if fn, ok := eventsConfig[ctx.Event.Name]; ok {
			return fn(ctx)
		}
	}
	return ctx.Value, nil
}

// TimeDuration returns the number of seconds elapsed since the metric's
// first tick, returning 0 on that first call.
func TimeDuration(ctx *metrics.Context, params map[string]any) (*float64, error) {
	if ctx.Storage.Get("uptime_start", nil) == nil {
		ctx.Storage.Set("uptime_start", ctx.Timestamp)
		zero := 0.0
		return &zero, nil
	}
	start := ctx.Storage.Get("uptime_start", ctx.Timestamp).(time.Time)
	v := ctx.Timestamp.Sub(start).Seconds()
	return &v, nil
}
