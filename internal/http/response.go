package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/lock"
	"github.com/fjod/go_cart/cart-engine/internal/service"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// MutationResponse keeps the field names storefront scripts already read.
type MutationResponse struct {
	Success  bool                     `json:"success"`
	HasError bool                     `json:"hasError"`
	Errors   []domain.ValidationError `json:"errors"`
	Quantity int                      `json:"quantity"`
	Cart     *domain.Snapshot         `json:"cart,omitempty"`
}

func newMutationResponse(res domain.MutationResult) MutationResponse {
	errs := res.Errors()
	if errs == nil {
		errs = domain.ValidationErrors{}
	}
	return MutationResponse{
		Success:  res.Success,
		HasError: len(errs) > 0,
		Errors:   errs,
		Quantity: res.Quantity,
		Cart:     res.Snapshot,
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps engine errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSessionRequired):
		respondError(w, http.StatusUnauthorized, "session_required", err.Error())
	case errors.Is(err, service.ErrInvalidToken):
		respondError(w, http.StatusUnauthorized, "invalid_token", err.Error())
	case errors.Is(err, service.ErrCartForbidden):
		respondError(w, http.StatusForbidden, "cart_forbidden", "cart belongs to another customer")
	case errors.Is(err, domain.ErrInvalidIntent):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, lock.ErrLockNotAcquired) && !errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusConflict, "cart_busy", "cart is being modified, retry")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
