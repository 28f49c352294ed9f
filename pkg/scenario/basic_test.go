package scenario

import (
	"math"
	"testing"
	"time"

	"github.com/jihwankim/promemu/pkg/metrics"
	"github.com/jihwankim/promemu/pkg/storage"
)

func newTestContext(now time.Time) *metrics.Context {
	return &metrics.Context{
		Config:    metrics.Config{ValueRange: [2]float64{0, 100}},
		Timestamp: now,
		Storage:   storage.New(),
	}
}

func TestDoNothingReturnsCurrentValue(t *testing.T) {
	ctx := newTestContext(time.Now())
	current := 12.5
	ctx.Value = &current

	v, err := DoNothing(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v == nil || *v != current {
		t.Fatalf("expected %v, got %v", current, v)
	}
}

func TestRandomInRangeRespectsBounds(t *testing.T) {
	ctx := newTestContext(time.Now())
	for i := 0; i < 50; i++ {
		v, err := RandomInRange(ctx, map[string]any{"value_range": [2]float64{10, 20}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *v < 10 || *v > 20 {
			t.Fatalf("value %v out of bounds [10,20]", *v)
		}
	}
}

func TestSineWaveAtQuarterPeriods(t *testing.T) {
	start := time.Unix(0, 0)
	ctx := newTestContext(start)
	params := map[string]any{"period": 100.0, "amplitude": 50.0, "offset": 50.0}

	v0, err := SineWave(ctx, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(*v0-50) > 1e-9 {
		t.Fatalf("expected 50 at t=0, got %v", *v0)
	}

	ctx.Timestamp = start.Add(25 * time.Second)
	v25, err := SineWave(ctx, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(*v25-100) > 1e-9 {
		t.Fatalf("expected 100 at t=25 (quarter period), got %v", *v25)
	}

	ctx.Timestamp = start.Add(50 * time.Second)
	v50, err := SineWave(ctx, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(*v50-50) > 1e-9 {
		t.Fatalf("expected 50 at t=50 (half period), got %v", *v50)
	}

	ctx.Timestamp = start.Add(75 * time.Second)
	v75, err := SineWave(ctx, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(*v75-0) > 1e-9 {
		t.Fatalf("expected 0 at t=75 (three-quarter period), got %v", *v75)
	}
}

func TestSineWaveRejectsNonPositivePeriod(t *testing.T) {
	ctx := newTestContext(time.Now())
	if _, err := SineWave(ctx, map[string]any{"period": 0.0}); err == nil {
		t.Fatal("expected validation error for period <= 0")
	}
}

func TestSizeToBytesUnits(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"100B", 100},
		{"1KB", 1024},
		{"1.5MB", int64(1.5 * 1024 * 1024)},
		{"2GB", 2 * 1024 * 1024 * 1024},
		{"1kbit", 1024},
		{"100 bytes", 100},
		{"1MBYTE", 1024 * 1024},
	}
	for _, tc := range tests {
		got, err := SizeToBytes(tc.input)
		if err != nil {
			t.Fatalf("SizeToBytes(%q) unexpected error: %v", tc.input, err)
		}
		if got != tc.want {
			t.Errorf("SizeToBytes(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestSizeToBytesRejectsMalformed(t *testing.T) {
	for _, input := range []string{"", "abc", "100XB", "-5KB"} {
		if _, err := SizeToBytes(input); err == nil {
			t.Errorf("SizeToBytes(%q) expected error, got nil", input)
		}
	}
}

func TestCalcPercentUsage(t *testing.T) {
	ctx := newTestContext(time.Now())
	ctx.Config.ValueRange = [2]float64{0, 200}
	value := 50.0
	ctx.Value = &value

	pct, err := CalcPercentUsage(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *pct != 25 {
		t.Fatalf("expected 25%%, got %v", *pct)
	}
}

func TestCalcPercentUsageNilValue(t *testing.T) {
	ctx := newTestContext(time.Now())
	pct, err := CalcPercentUsage(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pct != nil {
		t.Fatalf("expected nil for nil input value, got %v", *pct)
	}
}

func TestCalcPercentUsageInvalidRange(t *testing.T) {
	ctx := newTestContext(time.Now())
	ctx.Config.ValueRange = [2]float64{10, 10}
	value := 5.0
	ctx.Value = &value

	if _, err := CalcPercentUsage(ctx); err == nil {
		t.Fatal("expected error when min >= max")
	}
}
