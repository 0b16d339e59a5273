package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"mycontrol/internal/aggregate"
	"mycontrol/internal/core"
)

// SummaryService loads transaction slices from the store and hands them to
// the aggregation engine.
type SummaryService struct {
	store  TransactionStore
	engine *aggregate.Engine
}

func NewSummaryService(store TransactionStore, engine *aggregate.Engine) *SummaryService {
	if engine == nil {
		engine = &aggregate.Engine{}
	}
	return &SummaryService{store: store, engine: engine}
}

// MonthSummary summarises a month; nil selectors default to the current
// period. withCategories adds the category breakdown of the whole year.
func (s *SummaryService) MonthSummary(ctx context.Context, month, year *int, withCategories bool) (core.Summary, error) {
	m, y, err := s.engine.Resolve(month, year)
	if err != nil {
		return core.Summary{}, err
	}

	txs, err := s.store.List(ctx, core.Filter{Month: m, Year: y})
	if err != nil {
		return core.Summary{}, fmt.Errorf("load month %d/%d: %w", m, y, err)
	}
	summary, err := s.engine.Summary(txs, &m, &y)
	if err != nil {
		return core.Summary{}, err
	}

	if withCategories {
		paid, err := s.store.List(ctx, core.Filter{Year: y, Status: core.Paid})
		if err != nil {
			return core.Summary{}, fmt.Errorf("load year %d: %w", y, err)
		}
		summary.CategoriesByMonth = aggregate.GroupByCategoryAndMonth(paid, y)
	}
	return summary, nil
}

// CategoriesByMonth groups paid transactions of year by category and
// month. typ restricts the input to one type when set.
func (s *SummaryService) CategoriesByMonth(ctx context.Context, year *int, typ core.Type) ([]core.CategoryMonthly, error) {
	y, err := s.year(year)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.List(ctx, core.Filter{Year: y, Status: core.Paid, Type: typ})
	if err != nil {
		return nil, fmt.Errorf("load year %d: %w", y, err)
	}
	return aggregate.GroupByCategoryAndMonth(txs, y), nil
}

// WorkIncome returns the twelve-month work income series of year.
func (s *SummaryService) WorkIncome(ctx context.Context, year *int) ([]core.MonthlyIncomeDetail, error) {
	y, err := s.year(year)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.List(ctx, s.workFilter(y))
	if err != nil {
		return nil, fmt.Errorf("load work income %d: %w", y, err)
	}
	return s.engine.WorkIncome(txs, y), nil
}

// WorkIncomeWithTotals is WorkIncome plus each month's all-category
// totals. The detail and the totals come from two separate queries.
func (s *SummaryService) WorkIncomeWithTotals(ctx context.Context, year *int) ([]core.MonthlyIncomeDetail, error) {
	y, err := s.year(year)
	if err != nil {
		return nil, err
	}

	var detail, all []core.Transaction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		detail, err = s.store.List(gctx, s.workFilter(y))
		if err != nil {
			return fmt.Errorf("load work income %d: %w", y, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		all, err = s.store.List(gctx, core.Filter{Year: y})
		if err != nil {
			return fmt.Errorf("load year %d: %w", y, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s.engine.WorkIncomeWithTotals(detail, all, y), nil
}

// YearReport bundles every aggregate of one year.
type YearReport struct {
	Year       int
	Months     []core.Summary
	Categories []core.CategoryMonthly
	WorkIncome []core.MonthlyIncomeDetail
}

// Report computes the twelve month summaries, the category breakdown and
// the work income series of year from a single snapshot.
func (s *SummaryService) Report(ctx context.Context, year int) (YearReport, error) {
	if err := aggregate.ValidateYear(year); err != nil {
		return YearReport{}, err
	}
	all, err := s.store.List(ctx, core.Filter{Year: year})
	if err != nil {
		return YearReport{}, fmt.Errorf("load year %d: %w", year, err)
	}

	r := YearReport{Year: year, Months: make([]core.Summary, 0, 12)}
	for m := 1; m <= 12; m++ {
		month := m
		sum, err := s.engine.Summary(all, &month, &year)
		if err != nil {
			return YearReport{}, err
		}
		r.Months = append(r.Months, sum)
	}
	r.Categories = aggregate.GroupByCategoryAndMonth(all, year)
	r.WorkIncome = s.engine.WorkIncomeWithTotals(all, all, year)
	return r, nil
}

func (s *SummaryService) year(year *int) (int, error) {
	y := s.engine.CurrentYear()
	if year != nil {
		y = *year
	}
	if err := aggregate.ValidateYear(y); err != nil {
		return 0, err
	}
	return y, nil
}

func (s *SummaryService) workFilter(year int) core.Filter {
	return core.Filter{
		Year:     year,
		Type:     core.Income,
		Status:   core.Paid,
		Category: s.engine.WorkCategoryName(),
	}
}
