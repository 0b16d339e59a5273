package aggregate

import (
	"time"

	"mycontrol/internal/core"
)

// totals accumulates amounts by type and status.
type totals struct {
	paidIncome  int64
	paidExpense int64
	openIncome  int64
	openExpense int64
}

func (t totals) add(tx core.Transaction) totals {
	c := tx.Amount.Cents
	switch {
	case tx.Type == core.Income && tx.Status == core.Paid:
		t.paidIncome += c
	case tx.Type == core.Expense && tx.Status == core.Paid:
		t.paidExpense += c
	case tx.Type == core.Income && tx.Status == core.Open:
		t.openIncome += c
	case tx.Type == core.Expense && tx.Status == core.Open:
		t.openExpense += c
	}
	return t
}

// ComputeSummary totals the transactions whose dueDate falls in the
// resolved month. Nil selectors default to now's month and year. The
// month window is applied here, so a pre-filtered input gives the same
// result as the full collection.
func ComputeSummary(txs []core.Transaction, month, year *int, now time.Time) (core.Summary, error) {
	m, y, err := ResolvePeriod(month, year, now)
	if err != nil {
		return core.Summary{}, err
	}

	from, to := core.MonthBounds(y, m)
	var t totals
	for _, tx := range txs {
		if core.Within(tx.DueDate, from, to) {
			t = t.add(tx)
		}
	}

	return core.Summary{
		Income:           t.paidIncome,
		Expense:          t.paidExpense,
		Balance:          t.paidIncome - t.paidExpense,
		OpenIncome:       t.openIncome,
		OpenExpense:      t.openExpense,
		ProjectedBalance: (t.paidIncome + t.openIncome) - (t.paidExpense + t.openExpense),
		MonthLabel:       MonthLabel(m, y),
		Month:            m,
		Year:             y,
	}, nil
}
