package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"go.uber.org/zap"
)

type contextKey string

const (
	requestIDKey      contextKey = "request_id"
	requestContextKey contextKey = "cart_request_context"
)

const (
	HeaderCartID        = "X-Cart-ID"
	HeaderSessionID     = "X-Session-ID"
	HeaderCustomerID    = "X-Customer-ID"
	HeaderCustomerToken = "X-Customer-Token"
	CookieCartID        = "cart_id"
	CookieSession       = "session_id"
)

// TokenValidator checks the token presented by a logged in customer.
type TokenValidator func(customerID int64, token string) bool

// MockTokenValidator accepts any non-empty token (replace with real JWT validation)
func MockTokenValidator(_ int64, token string) bool {
	return token != ""
}

// SessionMiddleware builds the domain.RequestContext of a request from its
// headers and cookies. Handlers read it with requestContext.
func SessionMiddleware(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := domain.RequestContext{
				CartID:     headerOrCookie(r, HeaderCartID, CookieCartID),
				HasSession: headerOrCookie(r, HeaderSessionID, CookieSession) != "",
			}

			if raw := r.Header.Get(HeaderCustomerID); raw != "" {
				id, err := strconv.ParseInt(raw, 10, 64)
				if err != nil || id <= 0 {
					respondError(w, http.StatusBadRequest, "invalid_customer_id", "customer id must be a positive integer")
					return
				}
				rc.CustomerID = id
				rc.LoggedIn = true
				rc.TokenValid = validate(id, r.Header.Get(HeaderCustomerToken))
			}

			ctx := context.WithValue(r.Context(), requestContextKey, rc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestContext(ctx context.Context) domain.RequestContext {
	rc, _ := ctx.Value(requestContextKey).(domain.RequestContext)
	return rc
}

func headerOrCookie(r *http.Request, header, cookie string) string {
	if v := r.Header.Get(header); v != "" {
		return v
	}
	if c, err := r.Cookie(cookie); err == nil {
		return c.Value
	}
	return ""
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// Logger middleware logs HTTP requests
func Logger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.statusCode),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", getRequestID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
