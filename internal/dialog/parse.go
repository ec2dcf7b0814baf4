package dialog

import (
	"math"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"
)

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a typed option
// name to count as a match.
const fuzzyThreshold = 0.92

// parsePrice reads an amount typed with arbitrary currency formatting, such
// as "1 500 000 руб." or "2,5". Everything except digits and separators is
// dropped. A lone comma followed by anything other than three digits is a
// decimal comma; other commas group thousands.
func parsePrice(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	num := strings.Trim(b.String(), ".,")
	if num == "" {
		return 0, false
	}

	if strings.Count(num, ",") == 1 && !strings.Contains(num, ".") {
		if i := strings.IndexByte(num, ','); len(num)-i-1 != 3 {
			num = strings.Replace(num, ",", ".", 1)
		}
	}
	num = strings.ReplaceAll(num, ",", "")

	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseDays reads a non-negative whole number of days.
func parseDays(s string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// parseDecimal reads a number within [lo, hi], accepting a decimal comma
// and an optional trailing percent sign.
func parseDecimal(s string, lo, hi float64) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v < lo || v > hi {
		return 0, false
	}
	return v, true
}

// matchOption resolves typed input to one of the offered option labels.
// An exact case-insensitive match wins; otherwise the most similar label at
// or above the fuzzy threshold is returned.
func matchOption(input string, labels []string) (int, bool) {
	needle := strings.ToLower(strings.TrimSpace(input))
	if needle == "" {
		return -1, false
	}

	best, bestScore := -1, 0.0
	for i, label := range labels {
		l := strings.ToLower(label)
		if l == needle {
			return i, true
		}
		if score := matchr.JaroWinkler(needle, l, false); score > bestScore {
			best, bestScore = i, score
		}
	}
	if bestScore >= fuzzyThreshold {
		return best, true
	}
	return -1, false
}
