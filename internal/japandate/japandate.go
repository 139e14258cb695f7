// Package japandate formats issue dates in Japanese era notation.
package japandate

import (
	"fmt"
	"time"
)

var reiwaStart = time.Date(2019, time.May, 1, 0, 0, 0, 0, time.UTC)

// IssuedOn returns the era-formatted year-month for t, e.g. 令和7年8月.
// The first year of an era is written 元年.
func IssuedOn(t time.Time) string {
	if !t.Before(reiwaStart) {
		return format("令和", t.Year()-2018, int(t.Month()))
	}
	return format("平成", t.Year()-1988, int(t.Month()))
}

// Now returns IssuedOn for the current date.
func Now() string {
	return IssuedOn(time.Now())
}

func format(era string, year, month int) string {
	yearLabel := fmt.Sprintf("%d", year)
	if year == 1 {
		yearLabel = "元"
	}
	return fmt.Sprintf("%s%s年%d月", era, yearLabel, month)
}
