// Package scenario implements the library of pure value-generating
// functions scenarios are built from, plus the name→function registry used
// to resolve a scenario by its configured name without a switch statement
// that needs editing for every new scenario.
package scenario

import (
	"sync"

	"github.com/jihwankim/promemu/pkg/metrics"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]metrics.ScenarioFunc{}
)

// Register adds fn under name to the global scenario registry. Intended to
// be called from init() by this package and by callers contributing custom
// scenarios.
func Register(name string, fn metrics.ScenarioFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// Lookup resolves a scenario by name. The second return value is false for
// unknown names; SwitchScenarioByEvents then falls back to a uniform sample
// over the metric's value range, and the demo loader rejects the name.
func Lookup(name string) (metrics.ScenarioFunc, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

func init() {
	Register("do_nothing", DoNothing)
	Register("random_in_range", RandomInRange)
	Register("sine_wave", SineWave)
	Register("feature_toggle", FeatureToggle)
	Register("variety_selection", VarietySelection)
	Register("update_by_trend", UpdateByTrend)
	Register("relay_to_other_metric", RelayToOtherMetric)
	Register("calc_by_event", CalcByEvent)
	Register("time_duration", TimeDuration)
	Register("switch_scenario_by_events", SwitchScenarioByEvents)
}
