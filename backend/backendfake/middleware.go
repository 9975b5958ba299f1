package backendfake

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/jrsteele09/tramcan-session/token"
)

type ContextKey string

// ContextKeyClaims stores the verified bearer token claims.
const ContextKeyClaims ContextKey = "claims"

type contextToken struct{}

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

// APIMiddleware is the common prefix of every route's chain.
func (s *Server) APIMiddleware(mw ...func(http.HandlerFunc) http.HandlerFunc) []func(http.HandlerFunc) http.HandlerFunc {
	chainedMiddleWare := []func(http.HandlerFunc) http.HandlerFunc{
		s.RecoverMiddleware,
		s.LoggingMiddleware,
		s.TestHooksMiddleware,
	}
	return append(chainedMiddleWare, mw...)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		if s.env == "DEV" {
			s.logRoute(r.Method, r.URL.Path, rec.status)
			return
		}
		s.logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", rec.status).Str("request_id", r.Header.Get("X-Request-ID")).Msg("request")
	}
}

func (s *Server) RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Str("path", r.URL.Path).Str("stack", string(debug.Stack())).
					Msg(fmt.Sprintf("recovered from panic: %v", rec))
				writeFail(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next(w, r)
	}
}

// TestHooksMiddleware counts hits and applies FailNext and Hold.
func (s *Server) TestHooksMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		s.lock.Lock()
		s.hits[path]++
		status, fail := s.failNext[path]
		delete(s.failNext, path)
		hold := s.holds[path]
		s.lock.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if fail {
			writeFail(w, status, http.StatusText(status))
			return
		}
		next(w, r)
	}
}

// RequireToken validates the Bearer token and that it was issued for one of
// kinds.
func (s *Server) RequireToken(kinds ...token.Kind) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeFail(w, http.StatusUnauthorized, "Missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
				writeFail(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			claims, err := s.minter.Verify(parts[1])
			if err != nil {
				writeFail(w, http.StatusUnauthorized, err.Error())
				return
			}
			if len(kinds) > 0 && !slices.Contains(kinds, claims.Kind) {
				writeFail(w, http.StatusUnauthorized, "token not valid for this endpoint")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			ctx = context.WithValue(ctx, contextToken{}, parts[1])
			next(w, r.WithContext(ctx))
		}
	}
}

func claimsFrom(r *http.Request) *token.Claims {
	claims, _ := r.Context().Value(ContextKeyClaims).(*token.Claims)
	return claims
}

func rawTokenFrom(r *http.Request) string {
	raw, _ := r.Context().Value(contextToken{}).(string)
	return raw
}
