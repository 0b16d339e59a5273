// Package sheets defines the outbound port for yearly reports.
package sheets

import (
	"context"

	"mycontrol/internal/log"
	"mycontrol/internal/services"
)

// ReportExporter publishes a computed year report somewhere outside the
// process.
type ReportExporter interface {
	ExportReport(ctx context.Context, r services.YearReport) error
}

// LogExporter writes a one-line digest of each report to the log. It stands
// in for Google Sheets when no spreadsheet is configured.
type LogExporter struct {
	logger *log.Logger
}

var _ ReportExporter = (*LogExporter)(nil)

func NewLogExporter(logger *log.Logger) *LogExporter {
	return &LogExporter{logger: logger.WithComponent(log.ComponentSheets)}
}

func (e *LogExporter) ExportReport(ctx context.Context, r services.YearReport) error {
	d := Digest(r)
	e.logger.InfoContext(ctx, "Year report computed",
		log.FieldYear, r.Year,
		log.FieldOperation, log.OpExport,
		"income_cents", d.Income,
		"expense_cents", d.Expense,
		"open_income_cents", d.OpenIncome,
		"open_expense_cents", d.OpenExpense,
		"categories", d.Categories,
		"work_income_cents", d.WorkIncome)
	return nil
}

// ReportDigest holds the yearly totals of a report.
type ReportDigest struct {
	Income      int64
	Expense     int64
	OpenIncome  int64
	OpenExpense int64
	Categories  int
	WorkIncome  int64
}

// Digest sums the monthly figures of r.
func Digest(r services.YearReport) ReportDigest {
	d := ReportDigest{Categories: len(r.Categories)}
	for _, m := range r.Months {
		d.Income += m.Income
		d.Expense += m.Expense
		d.OpenIncome += m.OpenIncome
		d.OpenExpense += m.OpenExpense
	}
	for _, w := range r.WorkIncome {
		d.WorkIncome += w.TotalValue
	}
	return d
}
