package aggregate

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"mycontrol/internal/core"
)

// GroupByCategoryAndMonth sums paid transactions of year by category and
// month. Categories with no nonzero month are dropped, as are zero months.
// Categories come out in pt-BR collation order.
func GroupByCategoryAndMonth(txs []core.Transaction, year int) []core.CategoryMonthly {
	sums := make(map[string]*[12]int64)
	for _, tx := range txs {
		if tx.Status != core.Paid || !inYear(tx.DueDate, year) {
			continue
		}
		months, ok := sums[tx.Category]
		if !ok {
			months = new([12]int64)
			sums[tx.Category] = months
		}
		months[tx.DueDate.Month()-1] += tx.Amount.Cents
	}

	out := make([]core.CategoryMonthly, 0, len(sums))
	for category, months := range sums {
		var data []core.MonthValue
		for i, v := range months {
			if v == 0 {
				continue
			}
			data = append(data, core.MonthValue{
				Month:       MonthLabel(i+1, year),
				MonthNumber: i + 1,
				Value:       v,
			})
		}
		if len(data) == 0 {
			continue
		}
		out = append(out, core.CategoryMonthly{Category: category, MonthlyData: data})
	}

	SortCategories(out)
	return out
}

// SortCategories orders entries by category name using pt-BR collation,
// falling back to byte order for names the collator considers equal.
func SortCategories(entries []core.CategoryMonthly) {
	// Collators keep internal buffers; one per call.
	c := collate.New(language.BrazilianPortuguese)
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Category, entries[j].Category
		if r := c.CompareString(a, b); r != 0 {
			return r < 0
		}
		return a < b
	})
}
