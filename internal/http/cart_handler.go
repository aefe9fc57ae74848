package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/repository"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CartService is the engine as seen by the HTTP adapter.
type CartService interface {
	ProcessMutation(ctx context.Context, rc domain.RequestContext, intent domain.MutationIntent) (domain.MutationResult, error)
	GetSnapshot(ctx context.Context, cartID string) (domain.Snapshot, error)
}

type CartHandler struct {
	service CartService
	timeout time.Duration
	logger  *zap.Logger
}

func NewCartHandler(service CartService, timeout time.Duration, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		timeout: timeout,
		logger:  logger,
	}
}

type ItemRequestDTO struct {
	ProductID         int64   `json:"product_id"`
	VariantID         int64   `json:"variant_id"`
	Attributes        []int64 `json:"attributes"`
	CustomizationID   int64   `json:"customization_id"`
	DeliveryAddressID int64   `json:"delivery_address_id"`
	Quantity          int     `json:"quantity"`
	Direction         string  `json:"direction"`
}

type DiscountRequestDTO struct {
	Code string `json:"code"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rc := requestContext(r.Context())
	if rc.CartID == "" {
		respondJSON(w, http.StatusOK, emptySnapshot())
		return
	}

	snap, err := h.service.GetSnapshot(ctx, rc.CartID)
	if errors.Is(err, repository.ErrCartNotFound) {
		respondJSON(w, http.StatusOK, emptySnapshot())
		return
	}
	if err != nil {
		h.logger.Error("get cart failed",
			zap.String("cart_id", rc.CartID),
			zap.String("request_id", getRequestID(r.Context())),
			zap.Error(err))
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	h.changeItem(w, r, domain.MutationAdd)
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	h.changeItem(w, r, domain.MutationUpdate)
}

func (h *CartHandler) changeItem(w http.ResponseWriter, r *http.Request, kind domain.MutationKind) {
	var req ItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	h.mutate(w, r, domain.MutationIntent{
		Kind:              kind,
		ProductID:         req.ProductID,
		VariantID:         req.VariantID,
		AttributeSelector: req.Attributes,
		CustomizationID:   req.CustomizationID,
		DeliveryAddressID: req.DeliveryAddressID,
		Quantity:          req.Quantity,
		Direction:         domain.Direction(req.Direction),
	})
}

// RemoveItem takes the line identity from the query string.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ids := make(map[string]int64, 4)
	for _, name := range []string{"product_id", "variant_id", "customization_id", "delivery_address_id"} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a non-negative integer")
			return
		}
		ids[name] = id
	}
	if ids["product_id"] == 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	h.mutate(w, r, domain.MutationIntent{
		Kind:              domain.MutationRemove,
		ProductID:         ids["product_id"],
		VariantID:         ids["variant_id"],
		CustomizationID:   ids["customization_id"],
		DeliveryAddressID: ids["delivery_address_id"],
	})
}

func (h *CartHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req DiscountRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	h.mutate(w, r, domain.MutationIntent{
		Kind:         domain.MutationApplyDiscount,
		DiscountCode: req.Code,
	})
}

func (h *CartHandler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	ruleID, err := strconv.ParseInt(chi.URLParam(r, "rule_id"), 10, 64)
	if err != nil || ruleID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_rule_id", "rule_id must be a positive integer")
		return
	}

	h.mutate(w, r, domain.MutationIntent{
		Kind:           domain.MutationRemoveDiscount,
		DiscountRuleID: ruleID,
	})
}

func (h *CartHandler) mutate(w http.ResponseWriter, r *http.Request, raw domain.MutationIntent) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	intent, err := domain.NewMutationIntent(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	rc := requestContext(r.Context())
	res, err := h.service.ProcessMutation(ctx, rc, intent)
	if err != nil {
		h.logger.Error("cart mutation failed",
			zap.String("cart_id", rc.CartID),
			zap.String("kind", string(intent.Kind)),
			zap.String("request_id", getRequestID(r.Context())),
			zap.Error(err))
		handleServiceError(w, err)
		return
	}

	if rc.CartID == "" && res.CartID != "" {
		w.Header().Set(HeaderCartID, res.CartID)
		http.SetCookie(w, &http.Cookie{
			Name:     CookieCartID,
			Value:    res.CartID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, newMutationResponse(res))
}

func emptySnapshot() domain.Snapshot {
	return domain.Snapshot{
		Lines:            []domain.SnapshotLine{},
		AppliedDiscounts: []domain.AppliedDiscount{},
		Empty:            true,
	}
}
