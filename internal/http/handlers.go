package http

import (
	"context"
	"net/http"
	"time"

	"mycontrol/internal/core"
	"mycontrol/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks that the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"store": "ok"}
	status, code := "ready", http.StatusOK
	if s.deps.Ready != nil {
		if err := s.deps.Ready(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			checks["store"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}
	NewJSONResponse().Status(code).Body(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, log.OpLogin, err)
		return
	}
	res, err := s.deps.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, log.OpLogin, err)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}
	if err := s.deps.Auth.ResetPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}
	NewJSONResponse().Body(forgotPasswordResponse{
		Message: "Email de recuperação enviado! Verifique sua caixa de entrada.",
		Success: true,
	}).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(core.SuggestedCategories[:]).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	in, err := req.toNewTransaction()
	if err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	t, err := s.deps.Transactions.Create(ctx, principal(r), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogTransactionChange(ctx, log.OpCreate, t.ID, string(t.Type), string(t.Status), t.Category, t.Amount.Cents)
	NewJSONResponse().Status(http.StatusCreated).Body(toTransactionResponse(t)).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := ParseTransactionFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	txs, err := s.deps.Transactions.List(ctx, f)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(toTransactionResponses(txs)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	t, err := s.deps.Transactions.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(toTransactionResponse(t)).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	var req updateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	t, err := s.deps.Transactions.Update(ctx, principal(r), id, patch)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogTransactionChange(ctx, log.OpUpdate, t.ID, string(t.Type), string(t.Status), t.Category, t.Amount.Cents)
	NewJSONResponse().Body(toTransactionResponse(t)).Write(w)
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	t, err := s.deps.Transactions.MarkPaid(ctx, principal(r), id)
	if err != nil {
		writeError(w, r, log.OpMarkPaid, err)
		return
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogTransactionChange(ctx, log.OpMarkPaid, t.ID, string(t.Type), string(t.Status), t.Category, t.Amount.Cents)
	NewJSONResponse().Body(toTransactionResponse(t)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, log.OpParse, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := s.deps.Transactions.Delete(ctx, id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Body(messageBody{Message: "transaction deleted"}).Write(w)
}
