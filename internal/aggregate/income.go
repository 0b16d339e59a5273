package aggregate

import (
	"sort"
	"time"

	"mycontrol/internal/core"
)

// WorkIncomeSeries builds the twelve-month series of paid income in
// category for year. Months without matching transactions are present with
// a zero total and an empty transaction list.
func WorkIncomeSeries(txs []core.Transaction, year int, category string) []core.MonthlyIncomeDetail {
	if category == "" {
		category = core.WorkCategory
	}

	var buckets [12][]core.Transaction
	for _, tx := range txs {
		if tx.Type != core.Income || tx.Status != core.Paid || tx.Category != category {
			continue
		}
		if !inYear(tx.DueDate, year) {
			continue
		}
		i := tx.DueDate.Month() - 1
		buckets[i] = append(buckets[i], tx)
	}

	series := make([]core.MonthlyIncomeDetail, 12)
	for i := range series {
		month := buckets[i]
		sort.SliceStable(month, func(a, b int) bool {
			if !month[a].DueDate.Equal(month[b].DueDate) {
				return month[a].DueDate.Before(month[b].DueDate)
			}
			return month[a].ID < month[b].ID
		})

		entry := core.MonthlyIncomeDetail{
			Month:        MonthLabel(i+1, year),
			MonthNumber:  i + 1,
			Year:         year,
			Transactions: make([]core.TransactionDetail, 0, len(month)),
		}
		for _, tx := range month {
			entry.TotalValue += tx.Amount.Cents
			entry.Transactions = append(entry.Transactions, detailOf(tx))
		}
		series[i] = entry
	}
	return series
}

// WorkIncomeSeriesWithTotals is WorkIncomeSeries over detail, with each
// month also carrying the paid and open totals of every category taken
// from all. The two slices are read independently.
func WorkIncomeSeriesWithTotals(detail, all []core.Transaction, year int, category string) []core.MonthlyIncomeDetail {
	series := WorkIncomeSeries(detail, year, category)

	var monthly [12]totals
	for _, tx := range all {
		if !inYear(tx.DueDate, year) {
			continue
		}
		i := tx.DueDate.Month() - 1
		monthly[i] = monthly[i].add(tx)
	}

	for i := range series {
		t := monthly[i]
		series[i].PaidIncome = t.paidIncome
		series[i].PaidExpense = t.paidExpense
		series[i].OpenIncome = t.openIncome
		series[i].OpenExpense = t.openExpense
	}
	return series
}

// detailOf renders the due date as the UTC instant it denotes.
func detailOf(tx core.Transaction) core.TransactionDetail {
	return core.TransactionDetail{
		ID:          tx.ID,
		Description: tx.Description,
		Category:    tx.Category,
		Amount:      tx.Amount.Cents,
		DueDateISO:  tx.DueDate.UTC().Format(time.RFC3339),
	}
}
