// Package metrics implements the emulated-metric value computation: a
// MetricConfig ticks at its own interval, invokes a scenario function, and
// clamps/rounds the result into a well-formed Prometheus sample.
package metrics

import (
	"time"

	"github.com/jihwankim/promemu/pkg/eventbus"
	"github.com/jihwankim/promemu/pkg/storage"
)

// ValueDecimalPlaces is the rounding precision applied to every emitted
// value.
const ValueDecimalPlaces = 2

// TTLInfinite marks a metric or host as never expiring.
const TTLInfinite time.Duration = -1

// Type is the Prometheus metric kind a Config emulates.
type Type string

const (
	Gauge     Type = "gauge"
	Counter   Type = "counter"
	Histogram Type = "histogram"
)

// ScenarioFunc computes the next value for a metric. Implementations must be
// pure: all state persists through ctx.Storage, never on the function itself.
type ScenarioFunc func(ctx *Context, params map[string]any) (*float64, error)

// Config is the immutable definition of one metric. Zero value is invalid;
// build with a struct literal supplying at least Name, UpdateInterval and
// TTL (a zero TTL expires the metric right after StartTime).
type Config struct {
	Name        string
	Type        Type
	Units       string
	Description string

	// ValueRange is the inclusive [min, max] clamp window.
	ValueRange [2]float64

	// InitValue, if non-nil, seeds the first Value before any tick.
	InitValue *float64

	UpdateInterval time.Duration
	StartTime      time.Duration
	// TTL is the activity window after StartTime. Use TTLInfinite for no
	// expiry.
	TTL time.Duration

	ListenEvents  []string
	LinkedMetrics []string

	Scenario     ScenarioFunc
	ScenarioData map[string]any
}

// Context is the ephemeral record passed to a scenario invocation.
type Context struct {
	Config    Config
	Value     *float64
	Event     *eventbus.Event
	Timestamp time.Time
	Storage   *storage.State
	Links     map[string]*Context
}

// DefaultValueRange matches the emulator's historical default of [0, 100].
var DefaultValueRange = [2]float64{0, 100}

// DefaultUpdateInterval matches the emulator's historical default tick rate.
const DefaultUpdateInterval = 10 * time.Second
