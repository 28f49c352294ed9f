package demoload

import (
	"os"
	"testing"

	"github.com/jihwankim/promemu/pkg/metrics"
)

const sampleYAML = `
hosts:
  - name: web-01
    job_name: ${TEST_JOB_NAME}
    ttl: 30m
    interval_range: ["10s", "15s"]
    labels:
      role: web
    metrics:
      - name: cpu_usage
        type: gauge
        value_range: [0, 100]
        update_interval: 5s
        scenario: sine_wave
        scenario_data:
          period: 120
  - name: web-02
    metrics:
      - name: requests_total
        type: counter
        scenario: do_nothing
`

func TestLoadExpandsEnvAndBuildsHosts(t *testing.T) {
	os.Setenv("TEST_JOB_NAME", "web-fleet")
	defer os.Unsetenv("TEST_JOB_NAME")

	hosts, err := Load([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(hosts))
	}

	first := hosts[0]
	if first.JobName != "web-fleet" {
		t.Fatalf("expected env var expansion to yield web-fleet, got %q", first.JobName)
	}
	if first.Labels["role"] != "web" {
		t.Fatalf("expected role label to survive, got %v", first.Labels)
	}
	if len(first.Metrics) != 1 || first.Metrics[0].Type != metrics.Gauge {
		t.Fatalf("expected one gauge metric, got %+v", first.Metrics)
	}
	if first.Metrics[0].Scenario == nil {
		t.Fatal("expected sine_wave scenario to resolve")
	}

	second := hosts[1]
	if second.Metrics[0].Type != metrics.Counter {
		t.Fatalf("expected counter type, got %v", second.Metrics[0].Type)
	}
	if second.Metrics[0].ValueRange != metrics.DefaultValueRange {
		t.Fatalf("expected default value range when omitted, got %v", second.Metrics[0].ValueRange)
	}
}

func TestLoadRejectsUnknownScenario(t *testing.T) {
	yamlData := `
hosts:
  - name: broken
    metrics:
      - name: m1
        scenario: does_not_exist
`
	if _, err := Load([]byte(yamlData)); err == nil {
		t.Fatal("expected error for unknown scenario name")
	}
}

func TestLoadRejectsMissingHostName(t *testing.T) {
	yamlData := `
hosts:
  - metrics: []
`
	if _, err := Load([]byte(yamlData)); err == nil {
		t.Fatal("expected error for missing host name")
	}
}

func TestLoadRejectsMissingMetricName(t *testing.T) {
	yamlData := `
hosts:
  - name: h1
    metrics:
      - type: gauge
`
	if _, err := Load([]byte(yamlData)); err == nil {
		t.Fatal("expected error for missing metric name")
	}
}

func TestLoadRejectsBadIntervalRange(t *testing.T) {
	yamlData := `
hosts:
  - name: h1
    interval_range: ["10s"]
    metrics: []
`
	if _, err := Load([]byte(yamlData)); err == nil {
		t.Fatal("expected error for interval_range with wrong length")
	}
}

func TestExpandEnvLeavesUnknownVarsUntouched(t *testing.T) {
	os.Unsetenv("DEMOLOAD_UNSET_VAR")
	got := expandEnv("value: ${DEMOLOAD_UNSET_VAR}")
	if got != "value: ${DEMOLOAD_UNSET_VAR}" {
		t.Fatalf("expected unresolved var to pass through unchanged, got %q", got)
	}
}

func TestLoadFileReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/hosts.yaml"
	if err := os.WriteFile(path, []byte(`
hosts:
  - name: disk-host
    metrics:
      - name: m1
        scenario: do_nothing
`), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	hosts, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hosts) != 1 || hosts[0].Name != "disk-host" {
		t.Fatalf("expected one host named disk-host, got %+v", hosts)
	}
}

func TestLoadFileMissingFileErrors(t *testing.T) {
	if _, err := LoadFile("/nonexistent/path/hosts.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
