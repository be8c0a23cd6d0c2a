// Package daterange parses and checks calendar date pairs.
package daterange

import (
	"strings"
	"time"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
)

// Parse checks that both dates are YYYY-MM-DD and that start is strictly
// before end.
func Parse(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse(model.DateLayout, strings.TrimSpace(start))
	if err != nil {
		return time.Time{}, time.Time{}, apperr.InvalidDateRange(start, end, "start date must be YYYY-MM-DD")
	}
	e, err := time.Parse(model.DateLayout, strings.TrimSpace(end))
	if err != nil {
		return time.Time{}, time.Time{}, apperr.InvalidDateRange(start, end, "end date must be YYYY-MM-DD")
	}
	if !s.Before(e) {
		return time.Time{}, time.Time{}, apperr.InvalidDateRange(start, end, "start date must be before end date")
	}
	return s, e, nil
}

// Format renders t as a calendar date.
func Format(t time.Time) string { return t.Format(model.DateLayout) }
