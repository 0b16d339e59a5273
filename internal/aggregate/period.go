// Package aggregate turns transaction sets into period summaries: monthly
// totals, category by month breakdowns and a named-category income series.
//
// Every function here is a pure computation over the slice it receives.
// Nothing is cached between calls and no package state is mutated, so the
// functions are safe to call concurrently as long as callers do not mutate
// the slices they pass in.
package aggregate

import (
	"errors"
	"fmt"
	"time"

	"mycontrol/internal/core"
)

// ErrInvalidPeriod is returned when a month selector falls outside 1-12 or
// a year selector is not a four digit year.
var ErrInvalidPeriod = errors.New("invalid period")

// monthAbbrevs packs the twelve pt-BR abbreviations, three bytes each.
const monthAbbrevs = "JanFevMarAbrMaiJunJulAgoSetOutNovDez"

// MonthName returns the three-letter abbreviation of month m (1-12),
// or an empty string when m is out of range.
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return monthAbbrevs[(m-1)*3 : m*3]
}

// MonthLabel formats "Jan 2026".
func MonthLabel(month, year int) string {
	return fmt.Sprintf("%s %04d", MonthName(month), year)
}

// ValidatePeriod checks a resolved month/year pair.
func ValidatePeriod(month, year int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d outside 1-12", ErrInvalidPeriod, month)
	}
	return ValidateYear(year)
}

func ValidateYear(year int) error {
	if year < 1 || year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, year)
	}
	return nil
}

// ResolvePeriod fills missing selectors from now and validates the result.
func ResolvePeriod(month, year *int, now time.Time) (int, int, error) {
	m, y := int(now.Month()), now.Year()
	if month != nil {
		m = *month
	}
	if year != nil {
		y = *year
	}
	if err := ValidatePeriod(m, y); err != nil {
		return 0, 0, err
	}
	return m, y, nil
}

// Engine binds the pure functions of this package to an evaluation clock
// and a sentinel category.
type Engine struct {
	// Now returns the evaluation instant. Defaults to time.Now.
	Now func() time.Time
	// Location is the zone in which "current month" is resolved. Defaults to UTC.
	Location *time.Location
	// WorkCategory is the category of the income series. Defaults to core.WorkCategory.
	WorkCategory string
}

// NewEngine returns an Engine that resolves the current period in loc.
func NewEngine(loc *time.Location, workCategory string) *Engine {
	return &Engine{Now: time.Now, Location: loc, WorkCategory: workCategory}
}

func (e *Engine) now() time.Time {
	now := time.Now
	if e != nil && e.Now != nil {
		now = e.Now
	}
	t := now()
	if e != nil && e.Location != nil {
		return t.In(e.Location)
	}
	return t.UTC()
}

// CurrentYear returns the year of the evaluation clock.
func (e *Engine) CurrentYear() int {
	return e.now().Year()
}

// Resolve fills nil selectors from the evaluation clock.
func (e *Engine) Resolve(month, year *int) (int, int, error) {
	return ResolvePeriod(month, year, e.now())
}

func (e *Engine) category() string {
	if e != nil && e.WorkCategory != "" {
		return e.WorkCategory
	}
	return core.WorkCategory
}

// Summary is ComputeSummary evaluated against the engine clock.
func (e *Engine) Summary(txs []core.Transaction, month, year *int) (core.Summary, error) {
	return ComputeSummary(txs, month, year, e.now())
}

// WorkIncome is WorkIncomeSeries for the engine's sentinel category.
func (e *Engine) WorkIncome(txs []core.Transaction, year int) []core.MonthlyIncomeDetail {
	return WorkIncomeSeries(txs, year, e.category())
}

// WorkIncomeWithTotals is WorkIncomeSeriesWithTotals for the engine's sentinel category.
func (e *Engine) WorkIncomeWithTotals(detail, all []core.Transaction, year int) []core.MonthlyIncomeDetail {
	return WorkIncomeSeriesWithTotals(detail, all, year, e.category())
}

// WorkCategoryName reports the sentinel category in use.
func (e *Engine) WorkCategoryName() string {
	return e.category()
}

func inYear(d time.Time, year int) bool {
	return d.Year() == year
}

func inMonth(d time.Time, year, month int) bool {
	return d.Year() == year && int(d.Month()) == month
}
