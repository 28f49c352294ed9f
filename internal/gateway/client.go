// Package gateway wraps all Pushgateway I/O behind a narrow Client, for the
// push/delete/discover surface instead of queries.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/model"
	"github.com/rs/zerolog"
)

// TransportError wraps a failed HTTP round trip to the Pushgateway.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client talks to a single Pushgateway instance. It does not impose its own
// per-call timeout — callers pass a context.Context and are responsible for
// its deadline.
type Client struct {
	url        string
	httpClient *http.Client
	log        zerolog.Logger
}

// New creates a Client targeting gatewayURL (e.g. "http://localhost:9091").
func New(gatewayURL string, log zerolog.Logger) *Client {
	return &Client{
		url:        gatewayURL,
		httpClient: &http.Client{},
		log:        log,
	}
}

// Push POSTs the registry's current families under job, replacing only the
// series whose metric names are among the pushed ones.
func (c *Client) Push(ctx context.Context, job string, reg *prometheus.Registry) error {
	pusher := push.New(c.url, job).Gatherer(reg).Client(c.httpClient)
	if err := pusher.AddContext(ctx); err != nil {
		return &TransportError{Op: "push job " + job, Err: err}
	}
	return nil
}

// Delete removes every series pushed under job.
func (c *Client) Delete(ctx context.Context, job string) error {
	pusher := push.New(c.url, job).Client(c.httpClient)
	if err := pusher.DeleteContext(ctx); err != nil {
		return &TransportError{Op: "delete job " + job, Err: err}
	}
	return nil
}

type metricsAPIResponse struct {
	Status string             `json:"status"`
	Data   []metricsAPISeries `json:"data"`
}

type metricsAPISeries struct {
	Labels model.LabelSet `json:"labels"`
}

// ListJobs queries the Pushgateway's /api/v1/metrics discovery endpoint and
// returns the distinct job names currently pushed. Any non-2xx response or a
// non-"success" status is logged and treated as an empty list, never an
// error — discovery is used only by best-effort cleanup operations.
func (c *Client) ListJobs(ctx context.Context) ([]string, error) {
	endpoint, err := url.JoinPath(c.url, "/api/v1/metrics")
	if err != nil {
		return nil, &TransportError{Op: "build discovery url", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TransportError{Op: "build discovery request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "discovery request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		c.log.Warn().Int("status", resp.StatusCode).Msg("pushgateway discovery returned non-2xx, treating as empty")
		return nil, nil
	}

	var decoded metricsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &TransportError{Op: "decode discovery response", Err: err}
	}
	if decoded.Status != "success" {
		c.log.Warn().Str("status", decoded.Status).Msg("pushgateway discovery status not success, treating as empty")
		return nil, nil
	}

	seen := make(map[string]struct{})
	jobs := make([]string, 0)
	for _, series := range decoded.Data {
		job, ok := series.Labels[model.JobLabel]
		if !ok {
			continue
		}
		name := string(job)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		jobs = append(jobs, name)
	}
	return jobs, nil
}
