package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrBadFYLabel marks a fiscal-year label that does not parse.
var ErrBadFYLabel = errors.New("bad fiscal year label")

// Fiscal years run April through March and are labeled by their end year:
// a trade on 2023-07-15 belongs to FY2024.

// FYLabel returns the fiscal-year label for a date.
func FYLabel(d time.Time) string {
	year := d.Year()
	if d.Month() >= time.April {
		year++
	}
	return fmt.Sprintf("FY%d", year)
}

// FYStart returns April 1 of the year preceding the label's end year.
func FYStart(fy string) (time.Time, error) {
	year, err := fyEndYear(fy)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(year-1, time.April, 1, 0, 0, 0, 0, time.UTC), nil
}

// FYEnd returns March 31 of the label's end year.
func FYEnd(fy string) (time.Time, error) {
	year, err := fyEndYear(fy)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(year, time.March, 31, 0, 0, 0, 0, time.UTC), nil
}

func fyEndYear(fy string) (int, error) {
	if !strings.HasPrefix(fy, "FY") {
		return 0, fmt.Errorf("%w: must look like FY2025, got %q", ErrBadFYLabel, fy)
	}
	year, err := strconv.Atoi(strings.TrimPrefix(fy, "FY"))
	if err != nil || year < 1900 || year > 2100 {
		return 0, fmt.Errorf("%w: must look like FY2025, got %q", ErrBadFYLabel, fy)
	}
	return year, nil
}
