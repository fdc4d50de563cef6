package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const SessionHeader = "X-Session-ID"

type ctxKey int

const sessionKey ctxKey = iota

// SessionMiddleware opens the session named by X-Session-ID, minting a new
// id when the header is absent. GET and HEAD requests only peek: they never
// mint an id or keep a session live, and without a header they see an empty
// guest session. The id is echoed on the response whenever one is in use.
func SessionMiddleware(sessions *session.Manager, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionHeader)
			readOnly := r.Method == http.MethodGet || r.Method == http.MethodHead

			var (
				s   *session.Session
				err error
			)
			switch {
			case readOnly && id == "":
				s, err = sessions.Peek(r.Context(), uuid.New().String())
			case readOnly:
				s, err = sessions.Peek(r.Context(), id)
			default:
				if id == "" {
					id = uuid.New().String()
				}
				s, err = sessions.Open(r.Context(), id)
			}
			if err != nil {
				logger.WithTrace(r.Context(), log).Warn("failed to open session", zap.Error(err))
				respondError(w, http.StatusBadRequest, "invalid_session", "invalid session id")
				return
			}

			if id != "" {
				w.Header().Set(SessionHeader, id)
			}
			ctx := context.WithValue(r.Context(), sessionKey, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

func userFromContext(ctx context.Context) *domain.User {
	if s := sessionFromContext(ctx); s != nil {
		return s.User()
	}
	return nil
}

// RequestLogger logs one line per request with zap.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.WithTrace(r.Context(), log).Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// MaxBodyBytes caps request bodies at n bytes.
func MaxBodyBytes(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && n > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
