package scenario

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jihwankim/promemu/pkg/metrics"
)

// byteUnits and bitUnits enumerate every size suffix SizeToBytes accepts,
// each mapped to its multiplier.
var byteUnits = buildUnits(
	[]string{"b", "byte", "bytes"}, 1,
	[]string{"kb", "kbyte", "kbytes", "kilobyte", "kilobytes"}, 1024,
	[]string{"mb", "mbyte", "mbytes", "megabyte", "megabytes"}, 1024 * 1024,
	[]string{"gb", "gbyte", "gbytes", "gigabyte", "gigabytes"}, 1024 * 1024 * 1024,
	[]string{"tb", "tbyte", "tbytes", "terabyte", "terabytes"}, 1024 * 1024 * 1024 * 1024,
	[]string{"pb", "pbyte", "pbytes", "petabyte", "petabytes"}, 1024 * 1024 * 1024 * 1024 * 1024,
)

var bitUnits = buildUnits(
	[]string{"bit", "bits"}, 1,
	[]string{"kbit", "kbits", "kilobit", "kilobits"}, 1024,
	[]string{"mbit", "mbits", "megabit", "megabits"}, 1024 * 1024,
	[]string{"gbit", "gbits", "gigabit", "gigabits"}, 1024 * 1024 * 1024,
	[]string{"tbit", "tbits", "terabit", "terabits"}, 1024 * 1024 * 1024 * 1024,
	[]string{"pbit", "pbits", "petabit", "petabits"}, 1024 * 1024 * 1024 * 1024 * 1024,
)

func buildUnits(pairs ...any) map[string]int64 {
	out := make(map[string]int64)
	for i := 0; i < len(pairs); i += 2 {
		names := pairs[i].([]string)
		mult := int64(pairs[i+1].(int))
		for _, n := range names {
			out[n] = mult
		}
	}
	return out
}

var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([a-z]+)$`)

// SizeToBytes parses a "<num><unit>" size string (case-insensitive, optional
// whitespace, decimal numbers, no sign or scientific notation) into an
// integer byte (or bit) count.
func SizeToBytes(size string) (int64, error) {
	if size == "" {
		return 0, validationErrorf("size must be a non-empty string")
	}

	lower := strings.ToLower(strings.TrimSpace(size))
	match := sizePattern.FindStringSubmatch(lower)
	if match == nil {
		return 0, validationErrorf("invalid size format: <%s>. Expected format like \"100KB\" or \"1.5Mbit\"", size)
	}

	number, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, validationErrorf("invalid number in size: <%s>", match[1])
	}

	unit := match[2]
	multiplier, ok := byteUnits[unit]
	if !ok {
		multiplier, ok = bitUnits[unit]
	}
	if !ok {
		return 0, validationErrorf("unsupported unit: <%s>. Supported units: bytes, bits and their prefixes (k, m, g, t, p)", unit)
	}

	return int64(number * float64(multiplier)), nil
}

// CalcPercentUsage clamps ctx.Value into ctx.Config.ValueRange and returns
// the percentage that clamped value represents within the range. Returns
// nil if ctx.Value is nil.
func CalcPercentUsage(ctx *metrics.Context) (*float64, error) {
	if ctx.Value == nil {
		return nil, nil
	}

	minValue, maxValue := ctx.Config.ValueRange[0], ctx.Config.ValueRange[1]
	if minValue >= maxValue {
		return nil, validationErrorf("invalid value range: min <%v> must be less than max <%v>", minValue, maxValue)
	}

	clamped := *ctx.Value
	if clamped < minValue {
		clamped = minValue
	} else if clamped > maxValue {
		clamped = maxValue
	}

	ratio := (clamped - minValue) / (maxValue - minValue)
	v := ratio * 100.0
	return &v, nil
}
