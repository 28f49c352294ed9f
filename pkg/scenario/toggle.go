package scenario

import (
	"time"

	"github.com/jihwankim/promemu/pkg/eventbus"
	"github.com/jihwankim/promemu/pkg/metrics"
)

// FeatureToggle simulates a feature flag that toggles between on and off
// states on a fixed schedule, emitting feature_on / feature_off on the bus
// whenever the state changes.
//
// The bus is read from params[BusParamKey], which the host fills in; when it
// is absent the state still changes but no event is emitted.
func FeatureToggle(ctx *metrics.Context, params map[string]any) (*float64, error) {
	startTime := floatParam(params, "start_time", 30)
	duration := floatParam(params, "duration", 60)
	interval := floatParam(params, "interval", 15)
	onValue := floatParam(params, "on_value", 1)
	offValue := floatParam(params, "off_value", 0)
	src, _ := params["source"].(string)

	if startTime < 0 || duration <= 0 || interval <= 0 {
		return nil, validationErrorf("start_time must be non-negative, duration and interval must be positive")
	}

	if ctx.Storage.Get("start_timestamp", nil) == nil {
		ctx.Storage.Set("start_timestamp", ctx.Timestamp)
	}
	startTimestamp := ctx.Storage.Get("start_timestamp", ctx.Timestamp).(time.Time)
	elapsed := ctx.Timestamp.Sub(startTimestamp).Seconds()

	if elapsed < startTime {
		v := offValue
		return &v, nil
	}

	cycleElapsed := elapsed - startTime
	cycleLength := duration + interval
	cyclePosition := mod(cycleElapsed, cycleLength)
	isOn := cyclePosition < duration

	previousState, _ := ctx.Storage.Get("feature_active", false).(bool)
	if isOn != previousState {
		ctx.Storage.Set("feature_active", isOn)
		bus, _ := params[busParamKey].(*eventbus.Bus)
		if bus != nil {
			payload := eventbus.FeatureTogglePayload(ctx.Timestamp)
			if isOn {
				bus.Emit("feature_on", payload, src)
			} else {
				bus.Emit("feature_off", payload, src)
			}
		}
	}

	if isOn {
		return &onValue, nil
	}
	return &offValue, nil
}

func mod(a, b float64) float64 {
	m := a - b*float64(int(a/b))
	if m < 0 {
		m += b
	}
	return m
}

// BusParamKey is the well-known scenario_data key the host wiring injects
// into every metric's ScenarioData so FeatureToggle (and any scenario
// delegated to by switch_scenario_by_events) can emit bus events without
// every scenario signature taking a *Bus argument directly.
const BusParamKey = "__bus"

const busParamKey = BusParamKey

// VarietySelection performs weighted-cumulative sampling over values,
// changing the selected index with probability change_probability on each
// call.
func VarietySelection(ctx *metrics.Context, params map[string]any) (*float64, error) {
	values, vok := floatSliceParam(params, "values")
	varieties, wok := floatSliceParam(params, "varieties")
	changeProbability := floatParam(params, "change_probability", 0.1)

	if !vok || !wok {
		return nil, validationErrorf("values and varieties are required")
	}
	if len(values) != len(varieties) {
		return nil, validationErrorf("values length <%d> must match varieties length <%d>", len(values), len(varieties))
	}
	for _, w := range varieties {
		if w < 0 {
			return nil, validationErrorf("all variety weights must be non-negative")
		}
	}
	if changeProbability < 0 || changeProbability > 1 {
		return nil, validationErrorf("change_probability must be between 0.0 and 1.0")
	}

	var total float64
	for _, w := range varieties {
		total += w
	}
	if total == 0 {
		return nil, validationErrorf("variety weights cannot all be zero")
	}
	normalized := make([]float64, len(varieties))
	for i, w := range varieties {
		normalized[i] = w / total
	}

	currentIndex, _ := ctx.Storage.Get("variety_index", 0).(int)

	if defaultSource.Float64() < changeProbability {
		randValue := defaultSource.Float64()
		cumulative := 0.0
		for i, w := range normalized {
			cumulative += w
			if randValue <= cumulative {
				currentIndex = i
				break
			}
		}
		ctx.Storage.Set("variety_index", currentIndex)
	}

	v := values[currentIndex]
	return &v, nil
}

func floatSliceParam(params map[string]any, key string) ([]float64, bool) {
	v, ok := params[key]
	if !ok {
		return nil, false
	}
	switch s := v.(type) {
	case []float64:
		return s, true
	case []any:
		out := make([]float64, 0, len(s))
		for _, e := range s {
			f, ok := toFloat(e)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	}
	return nil, false
}

// UpdateByTrend accumulates steps within step_range, persisting the running
// total in ctx.Storage under accumulated_value except for the "hold" trend,
// which returns a one-off jitter without persisting.
func UpdateByTrend(ctx *metrics.Context, params map[string]any) (*float64, error) {
	trend := stringParam(params, "trend", "hold")
	stepRange := rangeParam(params, "step_range", [2]float64{1, 5})
	minStep, maxStep := stepRange[0], stepRange[1]

	if minStep < 0 || maxStep < 0 || minStep > maxStep {
		return nil, validationErrorf("step_range values must be non-negative and min <= max")
	}

	base := ctx.Value
	if base == nil {
		zero := 0.0
		base = &zero
	}
	accumulated, ok := ctx.Storage.Get("accumulated_value", nil).(float64)
	if !ok {
		accumulated = *base
	}

	switch trend {
	case "up":
		step := uniform(defaultSource, minStep, maxStep)
		next := accumulated + step
		ctx.Storage.Set("accumulated_value", next)
		return &next, nil
	case "down":
		step := uniform(defaultSource, -maxStep, -minStep)
		next := accumulated + step
		ctx.Storage.Set("accumulated_value", next)
		return &next, nil
	case "hold":
		step := uniform(defaultSource, -minStep, maxStep)
		next := accumulated + step
		return &next, nil
	default:
		return nil, validationErrorf("invalid trend value <%s>, must be up, down, or hold", trend)
	}
}
