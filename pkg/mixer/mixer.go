// Package mixer groups emulated hosts into Prometheus job registries and
// periodically pushes them to a gateway, with a best-effort,
// audit-then-summarize approach to job cleanup.
package mixer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jihwankim/promemu/internal/gateway"
	"github.com/jihwankim/promemu/pkg/eventbus"
	"github.com/jihwankim/promemu/pkg/host"
	"github.com/jihwankim/promemu/pkg/metrics"
)

const jobNamePrefix = "emulated_host_"

// ConfigError reports a malformed Config, such as a duplicate host name
// within one job.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

// Config is the immutable definition of a mixer run.
type Config struct {
	Hosts           []host.Config
	PushgatewayURL  string
	PushInterval    time.Duration
	DefaultJobName  string
	CleanupOnStart  bool
	CleanupOnFinish bool
}

// DefaultPushInterval is used when Config.PushInterval is zero.
const DefaultPushInterval = 15 * time.Second

type promMetric struct {
	gauge     *prometheus.GaugeVec
	counter   *prometheus.CounterVec
	histogram *prometheus.HistogramVec
	kind      metrics.Type
	labels    []string
}

type jobState struct {
	registry   *prometheus.Registry
	hosts      []*host.Host
	metricsMu  sync.Mutex
	promByName map[string]*promMetric
	lastValue  map[string]map[string]float64 // metric -> host -> last pushed value (counters)
	lastLabels map[string]map[string]map[string]string
}

// Mixer owns every host, grouped by job, and the periodic push loop.
type Mixer struct {
	log    zerolog.Logger
	config Config
	bus    *eventbus.Bus
	client *gateway.Client

	ttl time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	jobs     map[string]*jobState
	hostJob  map[string]string
}

// New builds a Mixer, grouping hosts by job and creating one registry per
// job. Returns a *ConfigError if two hosts share a name within one job.
func New(config Config, bus *eventbus.Bus, log zerolog.Logger) (*Mixer, error) {
	if config.PushInterval == 0 {
		config.PushInterval = DefaultPushInterval
	}
	if config.DefaultJobName == "" {
		config.DefaultJobName = jobNamePrefix + time.Now().UTC().Format("2006-01-02T15-04-05")
	}

	m := &Mixer{
		log:     log.With().Str("component", "mixer").Logger(),
		config:  config,
		bus:     bus,
		client:  gateway.New(config.PushgatewayURL, log),
		jobs:    make(map[string]*jobState),
		hostJob: make(map[string]string),
	}

	var ttl time.Duration
	seenPerJob := make(map[string]map[string]bool)
	for _, hc := range config.Hosts {
		jobName := jobNameFor(hc, config.DefaultJobName)
		if seenPerJob[jobName] == nil {
			seenPerJob[jobName] = make(map[string]bool)
		}
		if seenPerJob[jobName][hc.Name] {
			return nil, &ConfigError{msg: fmt.Sprintf("host <%s> already exists in job <%s>", hc.Name, jobName)}
		}
		seenPerJob[jobName][hc.Name] = true

		job, ok := m.jobs[jobName]
		if !ok {
			job = &jobState{
				registry:   prometheus.NewRegistry(),
				promByName: make(map[string]*promMetric),
				lastValue:  make(map[string]map[string]float64),
				lastLabels: make(map[string]map[string]map[string]string),
			}
			m.jobs[jobName] = job
		}

		h := host.New(hc, bus, log)
		job.hosts = append(job.hosts, h)
		m.hostJob[hc.Name] = jobName

		hostTTL := hc.StartTime + h.Config().TTL
		if hostTTL > ttl {
			ttl = hostTTL
		}
	}
	m.ttl = ttl

	for jobName, job := range m.jobs {
		m.log.Info().Str("job", jobName).Int("hosts", len(job.hosts)).Msg("job group created")
	}
	m.log.Info().Int("hosts", len(config.Hosts)).Int("jobs", len(m.jobs)).Msg("mixer created")

	return m, nil
}

func jobNameFor(hc host.Config, defaultName string) string {
	if hc.JobName != "" {
		return hc.JobName
	}
	return defaultName
}

// setupJobMetrics lazily creates the typed Prometheus collectors for every
// unique metric name seen across a job's hosts, using the union of all
// their label keys as the label schema.
func (m *Mixer) setupJobMetrics(jobName string) {
	job := m.jobs[jobName]
	job.metricsMu.Lock()
	defer job.metricsMu.Unlock()

	if len(job.promByName) > 0 {
		return
	}

	labelSet := make(map[string]struct{})
	configByMetric := make(map[string]metrics.Config)
	for _, h := range job.hosts {
		for k := range h.Labels() {
			labelSet[k] = struct{}{}
		}
		for _, mc := range h.Config().Metrics {
			configByMetric[mc.Name] = mc
		}
	}
	labelNames := make([]string, 0, len(labelSet))
	for k := range labelSet {
		labelNames = append(labelNames, k)
	}
	sort.Strings(labelNames)

	for name, mc := range configByMetric {
		pm := &promMetric{kind: mc.Type, labels: labelNames}
		help := mc.Description
		switch mc.Type {
		case metrics.Counter:
			if help == "" {
				help = name + " counter"
			}
			pm.counter = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labelNames)
			job.registry.MustRegister(pm.counter)
		case metrics.Histogram:
			if help == "" {
				help = name + " histogram"
			}
			pm.histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help}, labelNames)
			job.registry.MustRegister(pm.histogram)
		default:
			if help == "" {
				help = name + " metric"
			}
			pm.gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labelNames)
			job.registry.MustRegister(pm.gauge)
		}
		job.promByName[name] = pm
		job.lastValue[name] = make(map[string]float64)
		job.lastLabels[name] = make(map[string]map[string]string)
	}
}

// updateMetricsByHost is the per-tick callback every host reports its batch
// through.
func (m *Mixer) updateMetricsByHost(batch host.Batch) {
	jobName, ok := m.hostJob[batch.HostName]
	if !ok {
		m.log.Warn().Str("host", batch.HostName).Msg("host not found in configuration")
		return
	}

	m.setupJobMetrics(jobName)
	job := m.jobs[jobName]
	job.metricsMu.Lock()
	defer job.metricsMu.Unlock()

	for metricName, value := range batch.Values {
		pm, ok := job.promByName[metricName]
		if !ok {
			continue
		}

		for existingHost, existingLabels := range job.lastLabels[metricName] {
			if existingHost == batch.HostName {
				continue
			}
			if labelsEqual(existingLabels, batch.Labels) {
				m.log.Warn().Str("metric", metricName).Str("host_a", existingHost).Str("host_b", batch.HostName).
					Msg("duplicate metric with identical labels, will be overwritten")
			}
		}
		job.lastLabels[metricName][batch.HostName] = batch.Labels

		labelValues := make([]string, len(pm.labels))
		for i, name := range pm.labels {
			labelValues[i] = batch.Labels[name]
		}

		switch pm.kind {
		case metrics.Counter:
			key := batch.HostName
			prev := job.lastValue[metricName][key]
			delta := value - prev
			if delta < 0 {
				m.log.Warn().Str("metric", metricName).Str("host", batch.HostName).Msg("counter value decreased, resetting baseline")
				delta = value
			}
			if delta > 0 {
				pm.counter.WithLabelValues(labelValues...).Add(delta)
			}
			job.lastValue[metricName][key] = value
		case metrics.Histogram:
			pm.histogram.WithLabelValues(labelValues...).Observe(value)
		default:
			pm.gauge.WithLabelValues(labelValues...).Set(value)
		}
	}
}

func labelsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// Start begins every host's loop and the periodic push loop.
func (m *Mixer) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.log.Warn().Msg("mixer already running")
		return
	}
	m.running = true
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.log.Info().Msg("starting mixer")

	if m.config.CleanupOnStart {
		m.CleanupAllJobs(runCtx)
	}

	for _, job := range m.jobs {
		for _, h := range job.hosts {
			go h.Start(runCtx, m.updateMetricsByHost)
		}
	}
	for jobName := range m.jobs {
		m.setupJobMetrics(jobName)
	}

	go m.pushLoop(runCtx)
	m.log.Info().Int("jobs", len(m.jobs)).Msg("mixer started")
}

func (m *Mixer) pushLoop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.config.PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pushAllJobs(ctx)
		}
	}
}

func (m *Mixer) pushAllJobs(ctx context.Context) {
	for jobName, job := range m.jobs {
		if err := m.client.Push(ctx, jobName, job.registry); err != nil {
			m.log.Error().Err(err).Str("job", jobName).Msg("failed to push metrics")
			continue
		}

		hostNames := make([]string, len(job.hosts))
		for i, h := range job.hosts {
			hostNames[i] = h.Config().Name
		}
		m.bus.Emit("metrics_pushed", eventbus.MetricsPushedPayload(jobName, hostNames, len(job.promByName)), "mixer-"+jobName)
		m.log.Info().Str("job", jobName).Int("hosts", len(hostNames)).Msg("pushed metrics")
	}
}

// CleanupAllJobs discovers every job currently known to the gateway and
// deletes all of them — destructive by design, intended for a fresh start
// against a shared gateway instance.
func (m *Mixer) CleanupAllJobs(ctx context.Context) {
	m.log.Info().Msg("cleaning up all pushgateway jobs")
	jobs, err := m.client.ListJobs(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("failed to list pushgateway jobs")
		return
	}

	deleted := 0
	for _, jobName := range jobs {
		if err := m.client.Delete(ctx, jobName); err != nil {
			m.log.Error().Err(err).Str("job", jobName).Msg("failed to delete job")
			continue
		}
		deleted++
	}
	m.log.Info().Int("deleted", deleted).Int("found", len(jobs)).Msg("cleaned pushgateway jobs")
}

// CleanupMixerJobs deletes only the jobs this mixer itself manages.
func (m *Mixer) CleanupMixerJobs(ctx context.Context) {
	m.log.Info().Msg("cleaning up mixer-owned jobs")
	deleted := 0
	for jobName := range m.jobs {
		if err := m.client.Delete(ctx, jobName); err != nil {
			m.log.Error().Err(err).Str("job", jobName).Msg("failed to delete job")
			continue
		}
		deleted++
	}
	m.log.Info().Int("deleted", deleted).Int("total", len(m.jobs)).Msg("cleaned mixer jobs")
}

// Stop halts every host and the push loop, optionally cleaning up the
// mixer's own jobs.
func (m *Mixer) Stop(ctx context.Context) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	m.log.Info().Msg("stopping hosts")
	var wg sync.WaitGroup
	for _, job := range m.jobs {
		for _, h := range job.hosts {
			wg.Add(1)
			go func(h *host.Host) {
				defer wg.Done()
				h.Stop()
			}(h)
		}
	}
	wg.Wait()

	if cancel != nil {
		cancel()
		<-done
	}

	if m.config.CleanupOnFinish {
		m.CleanupMixerJobs(ctx)
	}
	m.log.Info().Msg("mixer stopped")
}

// IsRunning reports whether the mixer's loops are active.
func (m *Mixer) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// RunUntilComplete starts the mixer and blocks until every host has
// finished (or the aggregate TTL elapses), then stops it.
func (m *Mixer) RunUntilComplete(ctx context.Context) {
	m.Start(ctx)
	defer m.Stop(ctx)

	deadline := time.Now().Add(m.ttl)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !m.IsRunning() {
			return
		}
		if !m.anyHostActive() {
			return
		}
		if time.Now().After(deadline) {
			m.log.Info().Msg("mixer TTL expired, stopping")
			return
		}
	}
}

func (m *Mixer) anyHostActive() bool {
	for _, job := range m.jobs {
		for _, h := range job.hosts {
			if h.IsRunning() {
				return true
			}
		}
	}
	return false
}

// Status is a point-in-time snapshot of the mixer's state.
type Status struct {
	Running        bool
	PushgatewayURL string
	PushInterval   time.Duration
	TotalJobs      int
	TotalHosts     int
	ActiveHosts    int
	TotalMetrics   int
	Jobs           map[string]JobStatus
}

// JobStatus summarizes one job group.
type JobStatus struct {
	HostsCount   int
	MetricsCount int
	HostNames    []string
	Hosts        []host.Status
}

// Status reports the mixer's current state, optionally including per-host
// detail when includeHosts is true.
func (m *Mixer) Status(includeHosts bool) Status {
	status := Status{
		Running:        m.IsRunning(),
		PushgatewayURL: m.config.PushgatewayURL,
		PushInterval:   m.config.PushInterval,
		TotalJobs:      len(m.jobs),
		Jobs:           make(map[string]JobStatus, len(m.jobs)),
	}

	for jobName, job := range m.jobs {
		js := JobStatus{
			HostsCount:   len(job.hosts),
			MetricsCount: len(job.promByName),
		}
		status.TotalMetrics += js.MetricsCount
		for _, h := range job.hosts {
			js.HostNames = append(js.HostNames, h.Config().Name)
			status.TotalHosts++
			if h.IsRunning() {
				status.ActiveHosts++
			}
			if includeHosts {
				js.Hosts = append(js.Hosts, h.Status())
			}
		}
		status.Jobs[jobName] = js
	}

	return status
}
