package utils

import "strings"

// intervals are the bucket sizes with a ClickHouse toStartOf<Interval>
// function.
var intervals = []string{"Minute", "Hour", "Day", "Week", "Month", "Quarter", "Year"}

func IsValidInterval(interval string) bool {
	for _, i := range intervals {
		if i == interval {
			return true
		}
	}
	return false
}

// NormalizeInterval maps any casing of a bucket size ("day", "HOUR") to the
// form IsValidInterval accepts.
func NormalizeInterval(interval string) (string, bool) {
	for _, i := range intervals {
		if strings.EqualFold(i, interval) {
			return i, true
		}
	}
	return "", false
}
