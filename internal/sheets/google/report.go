package google

import (
	"fmt"

	"mycontrol/internal/aggregate"
	"mycontrol/internal/core"
	"mycontrol/internal/services"
)

var summaryHeader = []any{"Mês", "Receitas", "Despesas", "Saldo", "Receitas em aberto", "Despesas em aberto", "Saldo projetado"}

var workHeader = []any{"Mês", "Renda de trabalho", "Lançamentos", "Receitas pagas", "Despesas pagas"}

// ReportRows lays r out as three blocks separated by blank rows: monthly
// summaries, the category by month table and the work income series.
// Amounts are rendered as BRL strings.
func ReportRows(r services.YearReport) [][]any {
	rows := [][]any{{fmt.Sprintf("Relatório %d", r.Year)}, {}}

	rows = append(rows, summaryHeader)
	for _, m := range r.Months {
		rows = append(rows, []any{
			m.MonthLabel,
			core.FormatBRL(m.Income),
			core.FormatBRL(m.Expense),
			core.FormatBRL(m.Balance),
			core.FormatBRL(m.OpenIncome),
			core.FormatBRL(m.OpenExpense),
			core.FormatBRL(m.ProjectedBalance),
		})
	}

	rows = append(rows, []any{}, categoryHeader())
	for _, c := range r.Categories {
		rows = append(rows, categoryRow(c))
	}

	rows = append(rows, []any{}, workHeader)
	for _, w := range r.WorkIncome {
		rows = append(rows, []any{
			w.Month,
			core.FormatBRL(w.TotalValue),
			len(w.Transactions),
			core.FormatBRL(w.PaidIncome),
			core.FormatBRL(w.PaidExpense),
		})
	}
	return rows
}

func categoryHeader() []any {
	h := make([]any, 0, 14)
	h = append(h, "Categoria")
	for m := 1; m <= 12; m++ {
		h = append(h, aggregate.MonthName(m))
	}
	return append(h, "Total")
}

// categoryRow spreads the sparse monthly data over twelve columns.
func categoryRow(c core.CategoryMonthly) []any {
	var months [12]int64
	var total int64
	for _, mv := range c.MonthlyData {
		if mv.MonthNumber < 1 || mv.MonthNumber > 12 {
			continue
		}
		months[mv.MonthNumber-1] += mv.Value
		total += mv.Value
	}
	row := make([]any, 0, 14)
	row = append(row, c.Category)
	for _, v := range months {
		row = append(row, core.FormatBRL(v))
	}
	return append(row, core.FormatBRL(total))
}
