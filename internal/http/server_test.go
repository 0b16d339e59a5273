package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mycontrol/internal/aggregate"
	"mycontrol/internal/auth"
	"mycontrol/internal/core"
	"mycontrol/internal/log"
	"mycontrol/internal/middleware/ratelimit"
	"mycontrol/internal/services"
	"mycontrol/internal/storage/memory"
)

type testEnv struct {
	srv   *Server
	txs   *services.TransactionService
	token string
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	store := memory.New(nil)
	engine := &aggregate.Engine{
		Now:      func() time.Time { return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC) },
		Location: time.UTC,
	}
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	authSvc := auth.NewService(store, tokens)
	if _, err := authSvc.SeedDefaultUser(context.Background(), "ana@example.com", "s3cret", "Ana"); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	env := &testEnv{txs: services.NewTransactionService(store, nil)}
	env.srv = NewServer(":0", Deps{
		Transactions: env.txs,
		Summaries:    services.NewSummaryService(store, engine),
		Auth:         authSvc,
		Tokens:       tokens,
		Ready:        store.Ping,
		Logger:       log.New(log.Config{Output: io.Discard}),
	}, opts)
	t.Cleanup(func() { _ = env.srv.Shutdown(context.Background()) })

	rr := env.do(t, http.MethodPost, "/auth/login", `{"email":"ana@example.com","password":"s3cret"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body.String())
	}
	var res struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	decode(t, rr, &res)
	if res.TokenType != "Bearer" || res.AccessToken == "" {
		t.Fatalf("unexpected login response %+v", res)
	}
	env.token = res.AccessToken
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return e.doWithToken(t, method, path, body, e.token)
}

func (e *testEnv) doWithToken(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	decode(t, rr, &body)
	return body.Error
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.doWithToken(t, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s missing request id", path)
		}
	}

	env.srv.deps.Ready = func(context.Context) error { return errors.New("database is locked") }
	rr := env.doWithToken(t, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store status=%d", rr.Code)
	}
}

func TestLoginRejections(t *testing.T) {
	env := newTestEnv(t, Options{})
	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"email":"ana@example.com","password":"nope"}`, http.StatusUnauthorized},
		{"unknown user", `{"email":"bob@example.com","password":"s3cret"}`, http.StatusUnauthorized},
		{"malformed", `{"email":`, http.StatusBadRequest},
		{"empty", ``, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.doWithToken(t, http.MethodPost, "/auth/login", tt.body, "")
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
			if errorMessage(t, rr) == "" {
				t.Fatal("expected an error message")
			}
		})
	}
}

func TestForgotPassword(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.doWithToken(t, http.MethodPost, "/auth/forgot-password", `{"email":"ana@example.com"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("known email status=%d body=%s", rr.Code, rr.Body.String())
	}
	var ok forgotPasswordResponse
	decode(t, rr, &ok)
	if !ok.Success || ok.Message == "" {
		t.Fatalf("unexpected body %+v", ok)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown email", `{"email":"bob@example.com"}`, http.StatusNotFound},
		{"invalid email", `{"email":"bob"}`, http.StatusBadRequest},
		{"malformed", `{"email":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.doWithToken(t, http.MethodPost, "/auth/forgot-password", tt.body, "")
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
			if msg := errorMessage(t, rr); msg == "" || msg == "route not found" {
				t.Fatalf("unexpected error message %q", msg)
			}
		})
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, Options{})
	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.doWithToken(t, http.MethodGet, "/transactions", "", tt.token)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status=%d", rr.Code)
			}
			if !strings.HasPrefix(rr.Header().Get("WWW-Authenticate"), "Bearer") {
				t.Fatal("missing bearer challenge")
			}
		})
	}

	other := auth.NewTokenManager("another-secret", time.Hour)
	forged, _, err := other.Issue(core.User{ID: 1, Email: "ana@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if rr := env.doWithToken(t, http.MethodGet, "/categories", "", forged); rr.Code != http.StatusUnauthorized {
		t.Fatalf("token signed with another secret accepted: %d", rr.Code)
	}
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(t, http.MethodGet, "/categories", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var cats []string
	decode(t, rr, &cats)
	if len(cats) != len(core.SuggestedCategories) || cats[0] != "Alimentação" {
		t.Fatalf("categories = %v", cats)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodPost, "/transactions",
		`{"description":"Aluguel","amount":"1950,00","category":"Moradia","type":"expense","dueDate":"2026-01-10","recurrence":"MONTHLY"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created transactionResponse
	decode(t, rr, &created)
	if created.ID == 0 || created.Amount != 195000 || created.Status != core.Open || created.Recurrence != "Mensal" {
		t.Fatalf("unexpected created transaction %+v", created)
	}
	if created.AmountFormatted != "R$ 1.950,00" || created.DueDate != "2026-01-10T00:00:00Z" {
		t.Fatalf("unexpected formatting %+v", created)
	}
	if created.CreatedBy == 0 {
		t.Fatal("creator not recorded")
	}

	rr = env.do(t, http.MethodPost, "/transactions",
		`{"description":"Salário","amount":500000,"category":"Trabalho","type":"income","dueDate":"2026-02-05"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("second create status=%d body=%s", rr.Code, rr.Body.String())
	}

	path := "/transactions/" + itoa(created.ID)

	rr = env.do(t, http.MethodGet, path, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/transactions?type=expense&month=1&year=2026", "")
	var list []transactionResponse
	decode(t, rr, &list)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("filtered list = %+v", list)
	}

	rr = env.do(t, http.MethodGet, "/transactions?category=Lazer", "")
	list = nil
	decode(t, rr, &list)
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty JSON array, got %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodPatch, path, `{"description":"Aluguel janeiro","amount":200000}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	var updated transactionResponse
	decode(t, rr, &updated)
	if updated.Description != "Aluguel janeiro" || updated.Amount != 200000 || updated.Category != "Moradia" {
		t.Fatalf("unexpected update %+v", updated)
	}

	rr = env.do(t, http.MethodPatch, path+"/mark-as-paid", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("mark paid status=%d body=%s", rr.Code, rr.Body.String())
	}
	var paid transactionResponse
	decode(t, rr, &paid)
	if paid.Status != core.Paid || paid.PaidDate == nil {
		t.Fatalf("not paid: %+v", paid)
	}

	rr = env.do(t, http.MethodPatch, path+"/mark-as-paid", "")
	var again transactionResponse
	decode(t, rr, &again)
	if again.PaidDate == nil || !again.PaidDate.Equal(*paid.PaidDate) {
		t.Fatalf("second mark-as-paid changed paidDate: %v -> %v", paid.PaidDate, again.PaidDate)
	}

	rr = env.do(t, http.MethodPatch, path, `{"status":"open"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("reopen status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodDelete, path, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	var msg messageBody
	decode(t, rr, &msg)
	if msg.Message == "" {
		t.Fatal("delete should return a message")
	}

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		if rr := env.do(t, method, path, ""); rr.Code != http.StatusNotFound {
			t.Fatalf("%s after delete status=%d", method, rr.Code)
		}
	}
	if rr := env.do(t, http.MethodPatch, "/transactions/999/mark-as-paid", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("mark-as-paid unknown id status=%d", rr.Code)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	env := newTestEnv(t, Options{})
	valid := map[string]string{
		"description": `"Mercado"`,
		"amount":      `1000`,
		"category":    `"Alimentação"`,
		"type":        `"expense"`,
		"dueDate":     `"2026-01-10"`,
	}
	build := func(override map[string]string) string {
		parts := make([]string, 0, len(valid))
		for k, v := range valid {
			if o, ok := override[k]; ok {
				if o == "" {
					continue
				}
				v = o
			}
			parts = append(parts, `"`+k+`":`+v)
		}
		for k, v := range override {
			if _, ok := valid[k]; !ok {
				parts = append(parts, `"`+k+`":`+v)
			}
		}
		return "{" + strings.Join(parts, ",") + "}"
	}

	tests := []struct {
		name     string
		override map[string]string
	}{
		{"blank description", map[string]string{"description": `"   "`}},
		{"missing amount", map[string]string{"amount": ""}},
		{"negative amount", map[string]string{"amount": `-5`}},
		{"fractional cents", map[string]string{"amount": `10.5`}},
		{"bad decimal string", map[string]string{"amount": `"abc"`}},
		{"missing category", map[string]string{"category": ""}},
		{"bad type", map[string]string{"type": `"transfer"`}},
		{"bad due date", map[string]string{"dueDate": `"10/01/2026"`}},
		{"bad recurrence", map[string]string{"recurrence": `"Diária"`}},
		{"unknown field", map[string]string{"color": `"red"`}},
		{"description too long", map[string]string{"description": `"` + strings.Repeat("x", core.MaxDescriptionLength+1) + `"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/transactions", build(tt.override))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
		})
	}

	if rr := env.do(t, http.MethodPost, "/transactions", build(nil)); rr.Code != http.StatusCreated {
		t.Fatalf("valid body rejected: %d %s", rr.Code, rr.Body.String())
	}
}

func seedLedger(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()
	add := func(desc string, cents int64, cat string, typ core.Type, due string, paid bool) {
		d, err := core.ParseDueDate(due)
		if err != nil {
			t.Fatal(err)
		}
		tx, err := env.txs.Create(ctx, 1, core.NewTransaction{
			Description: desc, Amount: core.Money{Cents: cents}, Category: cat, Type: typ, DueDate: d,
		})
		if err != nil {
			t.Fatal(err)
		}
		if paid {
			if _, err := env.txs.MarkPaid(ctx, 1, tx.ID); err != nil {
				t.Fatal(err)
			}
		}
	}
	add("Salário", 500000, "Trabalho", core.Income, "2026-01-05", true)
	add("Mercado", 120000, "Alimentação", core.Expense, "2026-01-12", true)
	add("Aluguel", 200000, "Moradia", core.Expense, "2026-01-20", false)
	add("Freela", 80000, "Trabalho", core.Income, "2026-03-02", true)
}

func TestDashboardSummary(t *testing.T) {
	env := newTestEnv(t, Options{})
	seedLedger(t, env)

	rr := env.do(t, http.MethodGet, "/dashboard/summary?month=1&year=2026", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var sum core.Summary
	decode(t, rr, &sum)
	want := core.Summary{
		Income: 500000, Expense: 120000, Balance: 380000,
		OpenExpense: 200000, ProjectedBalance: 180000,
		MonthLabel: "Jan 2026", Month: 1, Year: 2026,
	}
	if sum.Income != want.Income || sum.Expense != want.Expense || sum.Balance != want.Balance ||
		sum.OpenExpense != want.OpenExpense || sum.OpenIncome != 0 || sum.ProjectedBalance != want.ProjectedBalance ||
		sum.MonthLabel != want.MonthLabel || sum.Month != 1 || sum.Year != 2026 {
		t.Fatalf("summary = %+v, want %+v", sum, want)
	}
	if sum.CategoriesByMonth != nil {
		t.Fatal("categories must be omitted unless requested")
	}

	// no selectors resolve to the engine clock (January 2026)
	rr = env.do(t, http.MethodGet, "/dashboard/summary?withCategories=true", "")
	sum = core.Summary{}
	decode(t, rr, &sum)
	if sum.MonthLabel != "Jan 2026" || len(sum.CategoriesByMonth) != 2 {
		t.Fatalf("default period summary = %+v", sum)
	}

	for _, q := range []string{"month=13&year=2026", "month=0", "month=abc", "year=20x6", "withCategories=maybe"} {
		rr := env.do(t, http.MethodGet, "/dashboard/summary?"+q, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status=%d", q, rr.Code)
		}
	}
}

func TestDashboardCategoriesByMonth(t *testing.T) {
	env := newTestEnv(t, Options{})
	seedLedger(t, env)

	rr := env.do(t, http.MethodGet, "/dashboard/categories-by-month?year=2026", "")
	var cats []core.CategoryMonthly
	decode(t, rr, &cats)
	if len(cats) != 2 || cats[0].Category != "Alimentação" || cats[1].Category != "Trabalho" {
		t.Fatalf("categories = %+v", cats)
	}
	if got := cats[1].MonthlyData; len(got) != 2 || got[0].Month != "Jan 2026" || got[1].MonthNumber != 3 || got[1].Value != 80000 {
		t.Fatalf("Trabalho months = %+v", got)
	}

	rr = env.do(t, http.MethodGet, "/dashboard/categories-by-month?year=2026&type=expense", "")
	cats = nil
	decode(t, rr, &cats)
	if len(cats) != 1 || cats[0].Category != "Alimentação" {
		t.Fatalf("expense categories = %+v", cats)
	}

	rr = env.do(t, http.MethodGet, "/dashboard/categories-by-month?year=2025", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("empty year should be [], got %s", rr.Body.String())
	}

	if rr := env.do(t, http.MethodGet, "/dashboard/categories-by-month?type=loan", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad type status=%d", rr.Code)
	}
}

func TestDashboardWorkIncome(t *testing.T) {
	env := newTestEnv(t, Options{})
	seedLedger(t, env)

	rr := env.do(t, http.MethodGet, "/dashboard/work-income?year=2026", "")
	var series []core.MonthlyIncomeDetail
	decode(t, rr, &series)
	if len(series) != 12 {
		t.Fatalf("series has %d entries", len(series))
	}
	if series[0].TotalValue != 500000 || series[2].TotalValue != 80000 || series[1].TotalValue != 0 {
		t.Fatalf("totals = %d %d %d", series[0].TotalValue, series[1].TotalValue, series[2].TotalValue)
	}
	if series[1].Transactions == nil || len(series[1].Transactions) != 0 {
		t.Fatalf("empty month should carry an empty list: %+v", series[1])
	}
	if series[0].Transactions[0].DueDateISO != "2026-01-05T00:00:00Z" {
		t.Fatalf("dueDateIso = %q", series[0].Transactions[0].DueDateISO)
	}

	rr = env.do(t, http.MethodGet, "/dashboard/work-income?year=2026&withTotals=true", "")
	series = nil
	decode(t, rr, &series)
	jan := series[0]
	if jan.PaidIncome != 500000 || jan.PaidExpense != 120000 || jan.OpenExpense != 200000 || jan.OpenIncome != 0 {
		t.Fatalf("january totals = %+v", jan)
	}
}

func TestMethodNotAllowedAndNotFound(t *testing.T) {
	env := newTestEnv(t, Options{})
	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/auth/login", http.StatusMethodNotAllowed},
		{http.MethodPut, "/transactions/1", http.StatusMethodNotAllowed},
		{http.MethodPost, "/dashboard/summary", http.StatusMethodNotAllowed},
		{http.MethodGet, "/auth/forgot-password", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodGet, "/transactions/abc", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, "")
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d", rr.Code, tt.want)
			}
			if errorMessage(t, rr) == "" {
				t.Fatal("expected JSON error body")
			}
		})
	}
}

func TestWriteRateLimit(t *testing.T) {
	env := newTestEnv(t, Options{RateLimit: ratelimit.Config{RequestsPerMinute: 3}})

	// login during setup consumed one write
	for i := 0; i < 2; i++ {
		if rr := env.do(t, http.MethodDelete, "/transactions/42", ""); rr.Code != http.StatusNotFound {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := env.do(t, http.MethodDelete, "/transactions/42", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" || errorMessage(t, rr) == "" {
		t.Fatal("429 should carry Retry-After and a JSON error")
	}
	if rr := env.do(t, http.MethodGet, "/categories", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, got %d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, Options{AllowedOrigins: []string{"https://mycontrol.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/transactions", nil)
	req.Header.Set("Origin", "https://mycontrol.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status=%d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://mycontrol.example.com" {
		t.Fatal("origin not allowed")
	}
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
