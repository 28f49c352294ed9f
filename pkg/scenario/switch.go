package scenario

import (
	"time"

	"github.com/jihwankim/promemu/pkg/metrics"
)

// EventScenarioEntry configures the scenario switch_scenario_by_events
// applies when ctx.Event.Name matches its map key.
type EventScenarioEntry struct {
	// Scenario names a registered scenario (see Register/Lookup). If empty
	// and Func is nil, the entry resets any in-flight switched scenario
	// (step 2 of the contract below).
	Scenario string
	// Func, if set, is used instead of resolving Scenario by name, for
	// callers that already hold a function value rather than a registered
	// name.
	Func         metrics.ScenarioFunc
	ScenarioData map[string]any
	// Duration bounds how long the switched scenario stays active after the
	// triggering event. Nil means "until reset by another event".
	Duration *time.Duration
}

func (e EventScenarioEntry) resolve() metrics.ScenarioFunc {
	if e.Func != nil {
		return e.Func
	}
	if e.Scenario == "" {
		return nil
	}
	fn, _ := Lookup(e.Scenario)
	return fn
}

// SwitchScenarioByEvents lets an incoming event swap in a different
// scenario for a bounded or unbounded duration; absent a matching event, it
// falls back to a stored in-flight switch, then a configured default, then
// a uniform sample over the metric's value range.
func SwitchScenarioByEvents(ctx *metrics.Context, params map[string]any) (*float64, error) {
	eventsConfig, _ := params["events_config"].(map[string]EventScenarioEntry)
	defaultScenarioName := stringParam(params, "default_scenario", "")
	defaultScenarioData, _ := params["default_scenario_data"].(map[string]any)

	// delegated scenarios receive the bus the host injected into params
	withParentBus := func(data map[string]any) map[string]any {
		bus, ok := params[busParamKey]
		if !ok {
			return data
		}
		out := make(map[string]any, len(data)+1)
		for k, v := range data {
			out[k] = v
		}
		out[busParamKey] = bus
		return out
	}

	if ctx.Event != nil && eventsConfig != nil {
		if entry, ok := eventsConfig[ctx.Event.Name]; ok {
			if fn := entry.resolve(); fn != nil {
				ctx.Storage.Set("last_event_params", entry.ScenarioData)
				ctx.Storage.Set("last_event_timestamp", ctx.Timestamp)
				ctx.Storage.Set("last_event_duration", entry.Duration)
				ctx.Storage.Set("last_event_scenario", fn)

				if value, err := fn(ctx, withParentBus(entry.ScenarioData)); err == nil {
					return value, nil
				}
				return uniformFallback(ctx), nil
			}
			// matched but no scenario attached: reset in-flight switch state
			ctx.Storage.Set("last_event_scenario", nil)
			ctx.Storage.Set("last_event_duration", nil)
			ctx.Storage.Set("last_event_timestamp", nil)
		}
	}

	if fn, ok := ctx.Storage.Get("last_event_scenario", nil).(metrics.ScenarioFunc); ok && fn != nil {
		ts, hasTimestamp := ctx.Storage.Get("last_event_timestamp", nil).(time.Time)
		duration, _ := ctx.Storage.Get("last_event_duration", nil).(*time.Duration)
		if hasTimestamp && (duration == nil || ctx.Timestamp.Sub(ts) <= *duration) {
			lastParams, _ := ctx.Storage.Get("last_event_params", nil).(map[string]any)
			if value, err := fn(ctx, withParentBus(lastParams)); err == nil {
				return value, nil
			}
		}
	}

	if defaultScenarioName != "" {
		if fn, ok := Lookup(defaultScenarioName); ok {
			if value, err := fn(ctx, withParentBus(defaultScenarioData)); err == nil {
				return value, nil
			}
		}
	}

	return uniformFallback(ctx), nil
}

func uniformFallback(ctx *metrics.Context) *float64 {
	v := uniform(defaultSource, ctx.Config.ValueRange[0], ctx.Config.ValueRange[1])
	return &v
}
