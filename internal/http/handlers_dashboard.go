package http

import (
	"context"
	"net/http"
	"strings"

	"mycontrol/internal/core"
	"mycontrol/internal/log"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	month, err := ParseOptionalInt(q, "month")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	year, err := ParseOptionalInt(q, "year")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	withCategories, err := ParseBool(q, "withCategories")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	sum, err := s.deps.Summaries.MonthSummary(ctx, month, year, withCategories)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(sum).Write(w)
}

func (s *Server) handleCategoriesByMonth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := ParseOptionalInt(q, "year")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	var typ core.Type
	if v := strings.TrimSpace(q.Get("type")); v != "" {
		if typ, err = core.ParseType(v); err != nil {
			writeError(w, r, log.OpParse, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	cats, err := s.deps.Summaries.CategoriesByMonth(ctx, year, typ)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	if cats == nil {
		cats = []core.CategoryMonthly{}
	}
	NewJSONResponse().Body(cats).Write(w)
}

func (s *Server) handleWorkIncome(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := ParseOptionalInt(q, "year")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	withTotals, err := ParseBool(q, "withTotals")
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	var series []core.MonthlyIncomeDetail
	if withTotals {
		series, err = s.deps.Summaries.WorkIncomeWithTotals(ctx, year)
	} else {
		series, err = s.deps.Summaries.WorkIncome(ctx, year)
	}
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(series).Write(w)
}
