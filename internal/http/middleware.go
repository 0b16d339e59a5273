package http

import (
	"net/http"
	"strings"

	"mycontrol/internal/auth"
	"mycontrol/internal/log"
)

// requireAuth rejects requests without a valid bearer token and stores the
// caller in the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			UnauthorizedError("missing bearer token").Write(w)
			return
		}

		claims, err := s.deps.Tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			log.FromContext(r.Context()).WithComponent(log.ComponentAuth).DebugContext(r.Context(), "Token rejected", log.FieldError, err)
			UnauthorizedError(auth.ErrInvalidToken.Error()).Write(w)
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			UnauthorizedError(auth.ErrInvalidToken.Error()).Write(w)
			return
		}

		ctx := auth.WithPrincipal(r.Context(), auth.Principal{UserID: userID, Email: claims.Email})
		ctx = log.WithLogger(ctx, log.FromContext(ctx).With(log.FieldUserID, userID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principal returns the authenticated caller's ID, or 0.
func principal(r *http.Request) int64 {
	p, _ := auth.FromContext(r.Context())
	return p.UserID
}
