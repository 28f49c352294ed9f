package scenario

import (
	"testing"
	"time"

	"github.com/jihwankim/promemu/pkg/eventbus"
	"github.com/jihwankim/promemu/pkg/metrics"
)

func TestSwitchScenarioByEventsActivatesOnMatch(t *testing.T) {
	ctx := newTestContext(time.Now())
	ctx.Event = &eventbus.Event{Name: "overload"}

	spike := metrics.ScenarioFunc(func(c *metrics.Context, p map[string]any) (*float64, error) {
		v := 99.0
		return &v, nil
	})
	cfg := map[string]EventScenarioEntry{
		"overload": {Func: spike},
	}

	v, err := SwitchScenarioByEvents(ctx, map[string]any{"events_config": cfg})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *v != 99 {
		t.Fatalf("expected 99 from matched scenario, got %v", *v)
	}
}

func TestSwitchScenarioByEventsPersistsWithinDuration(t *testing.T) {
	start := time.Now()
	ctx := newTestContext(start)
	ctx.Event = &eventbus.Event{Name: "overload"}

	spike := metrics.ScenarioFunc(func(c *metrics.Context, p map[string]any) (*float64, error) {
		v := 99.0
		return &v, nil
	})
	duration := 30 * time.Second
	cfg := map[string]EventScenarioEntry{
		"overload": {Func: spike, Duration: &duration},
	}
	params := map[string]any{"events_config": cfg}

	if _, err := SwitchScenarioByEvents(ctx, params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// next tick has no event, but the switch should still be in-flight
	ctx.Event = nil
	ctx.Timestamp = start.Add(10 * time.Second)
	v, err := SwitchScenarioByEvents(ctx, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *v != 99 {
		t.Fatalf("expected in-flight switched scenario to persist, got %v", *v)
	}
}

func TestSwitchScenarioByEventsExpiresAfterDuration(t *testing.T) {
	start := time.Now()
	ctx := newTestContext(start)
	ctx.Config.ValueRange = [2]float64{0, 0}
	ctx.Event = &eventbus.Event{Name: "overload"}

	spike := metrics.ScenarioFunc(func(c *metrics.Context, p map[string]any) (*float64, error) {
		v := 99.0
		return &v, nil
	})
	duration := 5 * time.Second
	cfg := map[string]EventScenarioEntry{
		"overload": {Func: spike, Duration: &duration},
	}
	params := map[string]any{"events_config": cfg}

	if _, err := SwitchScenarioByEvents(ctx, params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx.Event = nil
	ctx.Timestamp = start.Add(time.Minute)
	v, err := SwitchScenarioByEvents(ctx, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *v != 0 {
		t.Fatalf("expected fallback to zero-width uniform range after expiry, got %v", *v)
	}
}

func TestSwitchScenarioByEventsFallsBackToDefault(t *testing.T) {
	Register("test_switch_default_scenario", func(c *metrics.Context, p map[string]any) (*float64, error) {
		v := 42.0
		return &v, nil
	})

	ctx := newTestContext(time.Now())
	v, err := SwitchScenarioByEvents(ctx, map[string]any{"default_scenario": "test_switch_default_scenario"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *v != 42 {
		t.Fatalf("expected default scenario value 42, got %v", *v)
	}
}

func TestSwitchScenarioByEventsFallsBackToUniform(t *testing.T) {
	ctx := newTestContext(time.Now())
	ctx.Config.ValueRange = [2]float64{10, 10}

	v, err := SwitchScenarioByEvents(ctx, map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *v != 10 {
		t.Fatalf("expected uniform fallback pinned at 10, got %v", *v)
	}
}
