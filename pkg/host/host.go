// Package host emulates a single host generating metrics on a loop, using a
// randomized re-armed timer rather than a fixed ticker so hosts drift out of
// phase with each other, the way a population of real machines would.
package host

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jihwankim/promemu/pkg/eventbus"
	"github.com/jihwankim/promemu/pkg/metrics"
	"github.com/jihwankim/promemu/pkg/scenario"
)

// withBus returns a copy of data with the host's event bus injected under
// scenario.BusParamKey, so scenarios like feature_toggle can emit events
// without a *Bus in their function signature.
func withBus(data map[string]any, bus *eventbus.Bus) map[string]any {
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out[scenario.BusParamKey] = bus
	return out
}

// hostNameDict holds the fixed vocabularies a host synthesizes its fake
// hostname from when none is configured explicitly.
var hostNameDict = struct {
	service     []string
	app         []string
	environment []string
	cluster     []string
}{
	service:     []string{"stress", "worker", "proxy"},
	app:         []string{"app"},
	environment: []string{"stage"},
	cluster:     []string{"lgs01", "lgs02", "lgs03", "lgs04", "lgs05"},
}

// EventHandler reacts to a bus event delivered to a host-level listener
// (as opposed to a per-metric listener configured on a metrics.Config).
type EventHandler func(eventbus.Event)

// Config is the immutable definition of an emulated host.
type Config struct {
	Name          string
	Hostname      string
	TTL           time.Duration
	IntervalRange [2]time.Duration
	StartTime     time.Duration
	JobName       string
	Labels        map[string]string
	Metrics       []metrics.Config
	ListenEvents  map[string]EventHandler
}

const (
	// DefaultTTL is how long a host keeps ticking before it stops itself.
	DefaultTTL = 1800 * time.Second
)

// DefaultIntervalRange bounds the randomized delay between ticks when a
// Config leaves IntervalRange unset.
var DefaultIntervalRange = [2]time.Duration{12 * time.Second, 17 * time.Second}

// Batch is one tick's worth of computed metric values, delivered to the
// mixer via the UpdateCallback.
type Batch struct {
	HostName string
	Labels   map[string]string
	Values   map[string]float64
}

// UpdateCallback receives one Batch per completed tick that produced at
// least one non-nil metric value.
type UpdateCallback func(Batch)

// Status is a point-in-time snapshot of a running or stopped host.
type Status struct {
	Name         string
	Labels       map[string]string
	Running      bool
	Uptime       time.Duration
	TTLRemaining time.Duration
	MetricsCount int
}

// Host is the mutable runtime counterpart of a Config.
type Host struct {
	log zerolog.Logger

	config Config
	labels map[string]string

	bus            *eventbus.Bus
	updateCallback UpdateCallback

	mu        sync.RWMutex
	running   bool
	startedAt time.Time

	metrics     map[string]*metrics.Metric
	metricOrder []string

	subs []eventbus.Subscription

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Host, synthesizing labels and instantiating every configured
// metric (wired to bus, with linked metrics resolved by name). The host is
// pending until Start is called.
func New(config Config, bus *eventbus.Bus, log zerolog.Logger) *Host {
	if config.TTL == 0 {
		config.TTL = DefaultTTL
	}
	if config.IntervalRange == [2]time.Duration{} {
		config.IntervalRange = DefaultIntervalRange
	}

	hostLog := log.With().Str("component", "host").Str("host", config.Name).Logger()

	h := &Host{
		log:    hostLog,
		config: config,
		bus:    bus,
		labels: synthesizeLabels(config),
		done:   make(chan struct{}),
	}

	h.initMetrics()
	for name, handler := range config.ListenEvents {
		sub := bus.Subscribe(name, h.wrapHandler(handler), false)
		h.subs = append(h.subs, sub)
	}

	hostLog.Info().Str("hostname", h.labels["host"]).Str("address", h.labels["address"]).Msg("host created")
	return h
}

func synthesizeLabels(config Config) map[string]string {
	labels := map[string]string{
		"name":    config.Name,
		"host":    config.Hostname,
		"address": generateFakeIP(),
	}
	if labels["host"] == "" {
		labels["host"] = generateFakeHostname()
	}
	for k, v := range config.Labels {
		labels[k] = v
	}
	return labels
}

func generateFakeIP() string {
	return fmt.Sprintf("192.168.%d.%d", 1+rand.Intn(30), 10+rand.Intn(245))
}

func generateFakeHostname() string {
	service := hostNameDict.service[rand.Intn(len(hostNameDict.service))]
	number := fmt.Sprintf("%02d", 1+rand.Intn(299))
	app := hostNameDict.app[rand.Intn(len(hostNameDict.app))]
	environment := hostNameDict.environment[rand.Intn(len(hostNameDict.environment))]
	cluster := hostNameDict.cluster[rand.Intn(len(hostNameDict.cluster))]
	return fmt.Sprintf("%s%s.%s.%s.%s", service, number, cluster, app, environment)
}

func (h *Host) initMetrics() {
	h.metrics = make(map[string]*metrics.Metric, len(h.config.Metrics))
	now := time.Now()
	for _, cfg := range h.config.Metrics {
		cfg.ScenarioData = withBus(cfg.ScenarioData, h.bus)
		h.metrics[cfg.Name] = metrics.New(cfg, h.bus, h.log, now)
		h.metricOrder = append(h.metricOrder, cfg.Name)
	}
	for _, cfg := range h.config.Metrics {
		metric := h.metrics[cfg.Name]
		for _, linkedName := range cfg.LinkedMetrics {
			linked, ok := h.metrics[linkedName]
			if !ok {
				h.log.Warn().Str("metric", cfg.Name).Str("linked", linkedName).Msg("linked metric not found")
				continue
			}
			metric.AddLink(linkedName, linked)
			h.log.Info().Str("metric", cfg.Name).Str("linked", linkedName).Msg("linked metric added")
		}
	}
}

func (h *Host) wrapHandler(handler EventHandler) eventbus.Handler {
	return func(e eventbus.Event) {
		defer func() {
			if r := recover(); r != nil {
				h.log.Error().Interface("panic", r).Str("event", e.Name).Msg("host event handler panicked")
			}
		}()
		handler(e)
	}
}

// Config returns the host's static configuration.
func (h *Host) Config() Config { return h.config }

// Labels returns the host's synthesized label set.
func (h *Host) Labels() map[string]string { return h.labels }

// IsRunning reports whether the host's loop is currently active.
func (h *Host) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Start runs the host's update loop until ctx is cancelled, the TTL elapses,
// or Stop is called. onUpdate, if non-nil, receives every produced Batch —
// this is how the mixer observes the host's metrics.
func (h *Host) Start(ctx context.Context, onUpdate UpdateCallback) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		h.log.Warn().Msg("host already running")
		return
	}
	h.running = true
	h.updateCallback = onUpdate
	h.mu.Unlock()

	if h.config.StartTime > 0 {
		h.log.Info().Dur("start_time", h.config.StartTime).Msg("host waiting before starting")
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.running = false
			h.mu.Unlock()
			return
		case <-time.After(h.config.StartTime):
		}
	}

	h.mu.Lock()
	h.startedAt = time.Now()
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.mu.Unlock()

	h.bus.Emit(eventHostStarted, eventbus.HostStartedPayload(h.labels), h.config.Name)
	h.log.Info().Msg("host started")

	go h.runLoop(runCtx)
}

const (
	eventHostStarted = "host_started"
	eventHostStopped = "host_stopped"
)

func (h *Host) runLoop(ctx context.Context) {
	defer close(h.done)
	for {
		h.mu.RLock()
		elapsed := time.Since(h.startedAt)
		h.mu.RUnlock()
		if elapsed > h.config.TTL {
			h.log.Info().Msg("host TTL expired, stopping")
			go h.Stop()
			return
		}

		batch := h.tick()
		if h.updateCallback != nil && len(batch.Values) > 0 {
			h.updateCallback(batch)
		}

		sleep := uniformDuration(h.config.IntervalRange[0], h.config.IntervalRange[1])
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

func (h *Host) tick() Batch {
	now := time.Now()
	values := make(map[string]float64, len(h.metricOrder))
	for _, name := range h.metricOrder {
		metric := h.metrics[name]
		value, err := metric.Update(nil, now)
		if err != nil {
			h.log.Error().Err(err).Str("metric", name).Msg("error updating metric")
			continue
		}
		if value == nil {
			continue
		}
		if metric.Config().Type == metrics.Counter {
			total, _ := metric.Storage().Get("counter_total", 0.0).(float64)
			total += *value
			metric.Storage().Set("counter_total", total)
			values[name] = total
			continue
		}
		values[name] = *value
	}
	return Batch{HostName: h.config.Name, Labels: h.labels, Values: values}
}

func uniformDuration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}

// Stop idempotently halts the host's loop, cleans per-metric scenario
// state, and emits host_stopped.
func (h *Host) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	cancel := h.cancel
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		<-h.done
	}

	for _, metric := range h.metrics {
		metric.Close()
	}

	h.bus.Emit(eventHostStopped, eventbus.HostStartedPayload(h.labels), h.config.Name)
	h.log.Info().Msg("host stopped")
}

// Status reports the host's current lifecycle state.
func (h *Host) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var uptime, ttlRemaining time.Duration
	if h.running {
		uptime = time.Since(h.startedAt)
		ttlRemaining = h.config.TTL - uptime
		if ttlRemaining < 0 {
			ttlRemaining = 0
		}
	}

	return Status{
		Name:         h.config.Name,
		Labels:       h.labels,
		Running:      h.running,
		Uptime:       uptime,
		TTLRemaining: ttlRemaining,
		MetricsCount: len(h.config.Metrics),
	}
}
