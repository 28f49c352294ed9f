// Package demoload is a minimal, non-reflective YAML loader for demo host
// populations. It deliberately does not support picking a type by dotted
// path and instantiating it with keyword arguments — this loader only ever
// builds host.Config/metrics.Config values from a fixed YAML shape:
// read file, substitute environment variables, unmarshal.
package demoload

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jihwankim/promemu/pkg/host"
	"github.com/jihwankim/promemu/pkg/metrics"
	"github.com/jihwankim/promemu/pkg/scenario"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// fileHosts is the on-disk shape of a demo population file.
type fileHosts struct {
	Hosts []fileHost `yaml:"hosts"`
}

type fileHost struct {
	Name          string            `yaml:"name"`
	Hostname      string            `yaml:"hostname"`
	TTL           string            `yaml:"ttl"`
	IntervalRange []string          `yaml:"interval_range"`
	StartTime     string            `yaml:"start_time"`
	JobName       string            `yaml:"job_name"`
	Labels        map[string]string `yaml:"labels"`
	Metrics       []fileMetric      `yaml:"metrics"`
}

type fileMetric struct {
	Name           string         `yaml:"name"`
	Type           string         `yaml:"type"`
	Units          string         `yaml:"units"`
	Description    string         `yaml:"description"`
	ValueRange     []float64      `yaml:"value_range"`
	InitValue      *float64       `yaml:"init_value"`
	UpdateInterval string         `yaml:"update_interval"`
	StartTime      string         `yaml:"start_time"`
	TTL            string         `yaml:"ttl"`
	ListenEvents   []string       `yaml:"listen_events"`
	LinkedMetrics  []string       `yaml:"linked_metrics"`
	Scenario       string         `yaml:"scenario"`
	ScenarioData   map[string]any `yaml:"scenario_data"`
}

// LoadFile reads a demo host population from path and resolves every
// configured scenario name against the scenario registry.
func LoadFile(path string) ([]host.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read demo host file: %w", err)
	}
	return Load(data)
}

// Load parses raw YAML bytes into a host population.
func Load(data []byte) ([]host.Config, error) {
	expanded := expandEnv(string(data))

	var parsed fileHosts
	if err := yaml.Unmarshal([]byte(expanded), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse demo host file: %w", err)
	}

	hosts := make([]host.Config, 0, len(parsed.Hosts))
	for i, fh := range parsed.Hosts {
		hc, err := buildHostConfig(fh)
		if err != nil {
			return nil, fmt.Errorf("hosts[%d] (%s): %w", i, fh.Name, err)
		}
		hosts = append(hosts, hc)
	}
	return hosts, nil
}

func expandEnv(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

func buildHostConfig(fh fileHost) (host.Config, error) {
	if fh.Name == "" {
		return host.Config{}, fmt.Errorf("name is required")
	}

	hc := host.Config{
		Name:     fh.Name,
		Hostname: fh.Hostname,
		JobName:  fh.JobName,
		Labels:   fh.Labels,
	}

	var err error
	if hc.TTL, err = parseOptionalDuration(fh.TTL); err != nil {
		return host.Config{}, fmt.Errorf("ttl: %w", err)
	}
	if hc.StartTime, err = parseOptionalDuration(fh.StartTime); err != nil {
		return host.Config{}, fmt.Errorf("start_time: %w", err)
	}

	if len(fh.IntervalRange) > 0 {
		if len(fh.IntervalRange) != 2 {
			return host.Config{}, fmt.Errorf("interval_range must have exactly 2 values")
		}
		lo, err := time.ParseDuration(fh.IntervalRange[0])
		if err != nil {
			return host.Config{}, fmt.Errorf("interval_range[0]: %w", err)
		}
		hi, err := time.ParseDuration(fh.IntervalRange[1])
		if err != nil {
			return host.Config{}, fmt.Errorf("interval_range[1]: %w", err)
		}
		hc.IntervalRange = [2]time.Duration{lo, hi}
	}

	metricsConfigs := make([]metrics.Config, 0, len(fh.Metrics))
	for i, fm := range fh.Metrics {
		mc, err := buildMetricConfig(fm)
		if err != nil {
			return host.Config{}, fmt.Errorf("metrics[%d] (%s): %w", i, fm.Name, err)
		}
		metricsConfigs = append(metricsConfigs, mc)
	}
	hc.Metrics = metricsConfigs

	return hc, nil
}

func buildMetricConfig(fm fileMetric) (metrics.Config, error) {
	if fm.Name == "" {
		return metrics.Config{}, fmt.Errorf("name is required")
	}

	mc := metrics.Config{
		Name:          fm.Name,
		Units:         fm.Units,
		Description:   fm.Description,
		InitValue:     fm.InitValue,
		ListenEvents:  fm.ListenEvents,
		LinkedMetrics: fm.LinkedMetrics,
		ScenarioData:  fm.ScenarioData,
	}

	switch fm.Type {
	case "", "gauge":
		mc.Type = metrics.Gauge
	case "counter":
		mc.Type = metrics.Counter
	case "histogram":
		mc.Type = metrics.Histogram
	default:
		return metrics.Config{}, fmt.Errorf("unknown metric type %q", fm.Type)
	}

	if len(fm.ValueRange) > 0 {
		if len(fm.ValueRange) != 2 {
			return metrics.Config{}, fmt.Errorf("value_range must have exactly 2 values")
		}
		mc.ValueRange = [2]float64{fm.ValueRange[0], fm.ValueRange[1]}
	} else {
		mc.ValueRange = metrics.DefaultValueRange
	}

	var err error
	if mc.UpdateInterval, err = parseOptionalDuration(fm.UpdateInterval); err != nil {
		return metrics.Config{}, fmt.Errorf("update_interval: %w", err)
	}
	if mc.UpdateInterval == 0 {
		mc.UpdateInterval = metrics.DefaultUpdateInterval
	}
	if mc.StartTime, err = parseOptionalDuration(fm.StartTime); err != nil {
		return metrics.Config{}, fmt.Errorf("start_time: %w", err)
	}

	if fm.TTL == "" {
		mc.TTL = metrics.TTLInfinite
	} else if fm.TTL == "infinite" {
		mc.TTL = metrics.TTLInfinite
	} else {
		if mc.TTL, err = time.ParseDuration(fm.TTL); err != nil {
			return metrics.Config{}, fmt.Errorf("ttl: %w", err)
		}
	}

	if fm.Scenario != "" {
		fn, ok := scenario.Lookup(fm.Scenario)
		if !ok {
			return metrics.Config{}, fmt.Errorf("unknown scenario %q", fm.Scenario)
		}
		mc.Scenario = fn
	}

	return mc, nil
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
