// Package reporting renders a Mixer's runtime status for an operator,
// either as plain text for a terminal or as JSON for scripting.
package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jihwankim/promemu/pkg/mixer"
)

// Format selects a status rendering.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Formatter writes mixer.Status snapshots to an io.Writer.
type Formatter struct {
	out io.Writer
}

// NewFormatter builds a Formatter that writes to out.
func NewFormatter(out io.Writer) *Formatter {
	return &Formatter{out: out}
}

// Write renders status in the requested format.
func (f *Formatter) Write(status mixer.Status, format Format) error {
	switch format {
	case FormatJSON:
		return f.writeJSON(status)
	case FormatText, "":
		return f.writeText(status)
	default:
		return fmt.Errorf("unsupported status format %q", format)
	}
}

func (f *Formatter) writeJSON(status mixer.Status) error {
	enc := json.NewEncoder(f.out)
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}

func (f *Formatter) writeText(status mixer.Status) error {
	var buf strings.Builder

	state := "stopped"
	if status.Running {
		state = "running"
	}
	fmt.Fprintf(&buf, "promemu [%s]\n", state)
	fmt.Fprintf(&buf, "  gateway:       %s\n", status.PushgatewayURL)
	fmt.Fprintf(&buf, "  push interval: %s\n", status.PushInterval)
	fmt.Fprintf(&buf, "  jobs:          %d\n", status.TotalJobs)
	fmt.Fprintf(&buf, "  hosts:         %d active / %d total\n", status.ActiveHosts, status.TotalHosts)
	fmt.Fprintf(&buf, "  metrics:       %d\n", status.TotalMetrics)

	jobNames := make([]string, 0, len(status.Jobs))
	for name := range status.Jobs {
		jobNames = append(jobNames, name)
	}
	sort.Strings(jobNames)

	for _, name := range jobNames {
		job := status.Jobs[name]
		fmt.Fprintf(&buf, "\n  job %s: %d hosts, %d metrics\n", name, job.HostsCount, job.MetricsCount)
		for _, h := range job.Hosts {
			hostState := "stopped"
			if h.Running {
				hostState = "running"
			}
			fmt.Fprintf(&buf, "    - %-20s %-8s uptime=%-10s ttl_remaining=%-10s metrics=%d\n",
				h.Name, hostState, h.Uptime.Truncate(time.Second), h.TTLRemaining.Truncate(time.Second), h.MetricsCount)
		}
	}

	_, err := io.WriteString(f.out, buf.String())
	return err
}
