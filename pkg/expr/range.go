package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// buildRangeRegex compiles a numeric range "lo-hi" (0-999) into a regex
// alternation that matches exactly the integers in [lo, hi], so that
// range conditions don't rely on a post-match numeric comparison.
func buildRangeRegex(spec string) (string, error) {
	lo, hi, err := parseRangeSpec(spec)
	if err != nil {
		return "", err
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	alts := rangeAlternatives(lo, hi)
	return "(?:" + strings.Join(alts, "|") + ")", nil
}

func parseRangeSpec(spec string) (int, int, error) {
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("range must be \"lo-hi\", got %q", spec)
	}
	lo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("range low bound: %w", err)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("range high bound: %w", err)
	}
	if lo < 0 || lo > 999 || hi < 0 || hi > 999 {
		return 0, 0, fmt.Errorf("range %q outside 0-999", spec)
	}
	return lo, hi, nil
}

// rangeAlternatives splits [lo, hi] into per-digit-width alternatives:
// 0-9, 10-99 and 100-999 are each rendered as a literal alternation by
// digitRangePattern and further split at boundaries that don't align to
// a full decade.
func rangeAlternatives(lo, hi int) []string {
	var alts []string
	for lo <= hi {
		width := 1
		switch {
		case lo >= 100:
			width = 3
		case lo >= 10:
			width = 2
		}
		// Shrink width until the next decade boundary doesn't overshoot hi.
		for width > 1 {
			step := pow10(width - 1)
			boundary := (lo/step+1)*step - 1
			if boundary > hi {
				width--
				continue
			}
			break
		}
		step := pow10(width - 1)
		upper := (lo/step+1)*step - 1
		if upper > hi {
			upper = hi
		}
		alts = append(alts, digitRangePattern(lo, upper))
		lo = upper + 1
	}
	if len(alts) == 0 {
		alts = append(alts, "0")
	}
	return alts
}

func pow10(n int) int {
	v := 1
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

// digitRangePattern renders [lo, hi] (same digit width after padding) as a
// literal alternation; kept simple since ranges here never exceed 1000
// elements and readability matters more than alternation count.
func digitRangePattern(lo, hi int) string {
	if lo == hi {
		return strconv.Itoa(lo)
	}
	var nums []string
	for n := lo; n <= hi; n++ {
		nums = append(nums, strconv.Itoa(n))
	}
	return strings.Join(nums, "|")
}
