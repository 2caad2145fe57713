package config

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

var ttlPattern = regexp.MustCompile(`(\d+)([smhd])`)

var ttlUnits = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// ParseTTL converts a compound duration such as "7d", "1h" or "1h30m" into a
// time.Duration. Units are s, m, h and d. Empty, unparseable or overflowing
// input yields 0.
func ParseTTL(ttl string) time.Duration {
	var total time.Duration
	for _, match := range ttlPattern.FindAllStringSubmatch(ttl, -1) {
		value, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return 0
		}

		unit := ttlUnits[match[2]]
		if value > math.MaxInt64/int64(unit) {
			return 0
		}
		part := time.Duration(value) * unit
		if total > math.MaxInt64-part {
			return 0
		}
		total += part
	}
	return total
}
