package metrics

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jihwankim/promemu/pkg/eventbus"
)

func constantScenario(v float64) ScenarioFunc {
	return func(ctx *Context, params map[string]any) (*float64, error) {
		return &v, nil
	}
}

func TestUpdateRespectsStartTime(t *testing.T) {
	now := time.Now()
	bus := eventbus.New(zerolog.Nop())
	cfg := Config{Name: "m", ValueRange: [2]float64{0, 100}, UpdateInterval: time.Second, StartTime: time.Minute, Scenario: constantScenario(5)}
	m := New(cfg, bus, zerolog.Nop(), now)

	v, err := m.Update(nil, now)
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Fatalf("expected nil before start_time, got %v", *v)
	}
}

func TestUpdateRespectsTTLExpiry(t *testing.T) {
	now := time.Now()
	bus := eventbus.New(zerolog.Nop())
	cfg := Config{Name: "m", ValueRange: [2]float64{0, 100}, UpdateInterval: time.Second, TTL: time.Second, Scenario: constantScenario(5)}
	m := New(cfg, bus, zerolog.Nop(), now)

	v, err := m.Update(nil, now.Add(5*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Fatalf("expected nil after ttl expiry, got %v", *v)
	}
}

func TestUpdateIntervalBoundary(t *testing.T) {
	now := time.Now()
	bus := eventbus.New(zerolog.Nop())
	calls := 0
	cfg := Config{
		Name: "m", ValueRange: [2]float64{0, 100}, UpdateInterval: 10 * time.Second, TTL: TTLInfinite,
		Scenario: func(ctx *Context, params map[string]any) (*float64, error) {
			calls++
			v := float64(calls)
			return &v, nil
		},
	}
	m := New(cfg, bus, zerolog.Nop(), now)

	v1, _ := m.Update(nil, now)
	if *v1 != 1 {
		t.Fatalf("expected first tick, got %v", *v1)
	}

	// less than the interval: reuse
	v2, _ := m.Update(nil, now.Add(5*time.Second))
	if *v2 != 1 {
		t.Fatalf("expected reuse of value 1 within interval, got %v", *v2)
	}

	// exactly at the interval: fresh compute
	v3, _ := m.Update(nil, now.Add(10*time.Second))
	if *v3 != 2 {
		t.Fatalf("expected fresh compute at interval boundary, got %v", *v3)
	}
}

func TestUpdateClampsAndRounds(t *testing.T) {
	now := time.Now()
	bus := eventbus.New(zerolog.Nop())
	cfg := Config{Name: "m", ValueRange: [2]float64{0, 10}, UpdateInterval: time.Second, Scenario: constantScenario(123.456789)}
	m := New(cfg, bus, zerolog.Nop(), now)

	v, _ := m.Update(nil, now)
	if *v != 10 {
		t.Fatalf("expected clamp to max 10, got %v", *v)
	}
}

func TestUpdateRoundsToTwoDecimals(t *testing.T) {
	now := time.Now()
	bus := eventbus.New(zerolog.Nop())
	cfg := Config{Name: "m", ValueRange: [2]float64{0, 100}, UpdateInterval: time.Second, Scenario: constantScenario(1.005)}
	m := New(cfg, bus, zerolog.Nop(), now)

	v, _ := m.Update(nil, now)
	if *v != 1.0 && *v != 1.01 {
		t.Fatalf("unexpected rounding result: %v", *v)
	}
}

func TestScenarioErrorKeepsPriorValue(t *testing.T) {
	now := time.Now()
	bus := eventbus.New(zerolog.Nop())
	init := 42.0
	cfg := Config{
		Name: "m", ValueRange: [2]float64{0, 100}, UpdateInterval: time.Second, InitValue: &init,
		Scenario: func(ctx *Context, params map[string]any) (*float64, error) {
			return nil, errBoom
		},
	}
	m := New(cfg, bus, zerolog.Nop(), now)

	v, err := m.Update(nil, now)
	if err != nil {
		t.Fatalf("Update should absorb scenario errors, got %v", err)
	}
	if v == nil || *v != 42 {
		t.Fatalf("expected prior value 42 kept, got %v", v)
	}
}

var errBoom = &scenarioErr{"boom"}

type scenarioErr struct{ msg string }

func (e *scenarioErr) Error() string { return e.msg }
