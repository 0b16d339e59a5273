package core

// Summary is the period summary of one calendar month. All amounts are cents.
type Summary struct {
	Income            int64             `json:"income"`
	Expense           int64             `json:"expense"`
	Balance           int64             `json:"balance"`
	OpenExpense       int64             `json:"openExpense"`
	OpenIncome        int64             `json:"openIncome"`
	ProjectedBalance  int64             `json:"projectedBalance"`
	MonthLabel        string            `json:"monthLabel"`
	Month             int               `json:"month"`
	Year              int               `json:"year"`
	CategoriesByMonth []CategoryMonthly `json:"categoriesByMonth,omitempty"`
}

// CategoryMonthly holds the nonzero monthly totals of a single category.
type CategoryMonthly struct {
	Category    string       `json:"category"`
	MonthlyData []MonthValue `json:"monthlyData"`
}

// MonthValue is one month's total, labelled "Mon YYYY".
type MonthValue struct {
	Month       string `json:"month"`
	MonthNumber int    `json:"monthNumber"`
	Value       int64  `json:"value"`
}

// MonthlyIncomeDetail is one month of the work income series.
// The Paid*/Open* totals are only filled by the variant that mixes in
// the all-category month summary.
type MonthlyIncomeDetail struct {
	Month        string              `json:"month"`
	MonthNumber  int                 `json:"monthNumber"`
	Year         int                 `json:"year"`
	TotalValue   int64               `json:"totalValue"`
	PaidExpense  int64               `json:"paidExpense"`
	PaidIncome   int64               `json:"paidIncome"`
	OpenExpense  int64               `json:"openExpense"`
	OpenIncome   int64               `json:"openIncome"`
	Transactions []TransactionDetail `json:"transactions"`
}

// TransactionDetail is the slice of a transaction exposed in income series.
type TransactionDetail struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Amount      int64  `json:"amount"`
	DueDateISO  string `json:"dueDateIso"`
}
