package metrics

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/jihwankim/promemu/pkg/eventbus"
	"github.com/jihwankim/promemu/pkg/storage"
)

// Metric is the mutable runtime counterpart of a Config: it owns the last
// computed value, its own scenario state, and its event-bus subscriptions.
type Metric struct {
	log zerolog.Logger

	config Config
	value  *float64

	startTimestamp time.Time
	lastUpdate     time.Time

	storage *storage.State
	links   map[string]*Metric

	bus  *eventbus.Bus
	subs []eventbus.Subscription
}

// New constructs a Metric from config, subscribing it to every event named
// in config.ListenEvents on bus. now is the reference time used to compute
// the metric's deferred start timestamp.
func New(config Config, bus *eventbus.Bus, log zerolog.Logger, now time.Time) *Metric {
	m := &Metric{
		log:            log.With().Str("component", "metric").Str("metric", config.Name).Logger(),
		config:         config,
		value:          config.InitValue,
		startTimestamp: now.Add(config.StartTime),
		storage:        storage.New(),
		links:          make(map[string]*Metric),
		bus:            bus,
	}

	for _, name := range config.ListenEvents {
		sub := bus.Subscribe(name, m.handleEvent, false)
		m.subs = append(m.subs, sub)
	}
	return m
}

// Config returns the metric's static configuration.
func (m *Metric) Config() Config { return m.config }

// Value returns the last computed value.
func (m *Metric) Value() *float64 { return m.value }

// Storage returns the metric's private scenario state.
func (m *Metric) Storage() *storage.State { return m.storage }

// AddLink binds another metric as visible through ctx.Links[name] during this
// metric's scenario invocations.
func (m *Metric) AddLink(name string, other *Metric) {
	m.links[name] = other
}

// Close unsubscribes the metric from the event bus and clears its scenario
// state. Safe to call multiple times.
func (m *Metric) Close() {
	for _, sub := range m.subs {
		m.bus.Unsubscribe(sub)
	}
	m.subs = nil
	m.storage.Clean()
}

func (m *Metric) handleEvent(e eventbus.Event) {
	if _, err := m.Update(&e, time.Now()); err != nil {
		m.log.Error().Err(err).Str("event", e.Name).Msg("scenario error handling event")
	}
}

// Update advances the metric one step. event is nil for a time-driven tick;
// non-nil updates bypass the update-interval and TTL scheduling checks (an
// event-driven invocation always runs the scenario).
func (m *Metric) Update(event *eventbus.Event, now time.Time) (*float64, error) {
	if event == nil {
		if now.Before(m.startTimestamp) {
			return nil, nil
		}
		if m.config.TTL != TTLInfinite && now.After(m.startTimestamp.Add(m.config.TTL)) {
			return nil, nil
		}
		if now.Sub(m.lastUpdate) < m.config.UpdateInterval {
			return m.value, nil
		}
		m.lastUpdate = now
	}

	var err error
	m.value, err = m.runScenario(event, now)
	if err != nil {
		m.log.Error().Err(err).Msg("scenario error, keeping prior value")
	}

	if m.value != nil {
		clamped := clamp(*m.value, m.config.ValueRange)
		rounded := round(clamped, ValueDecimalPlaces)
		m.value = &rounded
	}
	return m.value, nil
}

func (m *Metric) runScenario(event *eventbus.Event, now time.Time) (*float64, error) {
	if m.config.Scenario == nil {
		return m.value, nil
	}

	ctx := m.buildContext(event, now)
	value, err := m.config.Scenario(ctx, m.config.ScenarioData)
	if err != nil {
		return m.value, err
	}
	return value, nil
}

func (m *Metric) buildContext(event *eventbus.Event, now time.Time) *Context {
	links := make(map[string]*Context, len(m.links))
	for name, linked := range m.links {
		links[name] = &Context{
			Config:    linked.config,
			Value:     linked.value,
			Event:     event,
			Timestamp: now,
			Storage:   linked.storage,
		}
	}

	return &Context{
		Config:    m.config,
		Value:     m.value,
		Event:     event,
		Timestamp: now,
		Storage:   m.storage,
		Links:     links,
	}
}

func clamp(v float64, r [2]float64) float64 {
	if v < r[0] {
		return r[0]
	}
	if v > r[1] {
		return r[1]
	}
	return v
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
