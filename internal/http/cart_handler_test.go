package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/lock"
	"github.com/fjod/go_cart/cart-engine/internal/repository"
	"github.com/fjod/go_cart/cart-engine/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Mock ---

type cartServiceMock struct {
	result   domain.MutationResult
	snapshot domain.Snapshot
	err      error

	gotContext domain.RequestContext
	gotIntent  domain.MutationIntent
	calls      int
}

func (m *cartServiceMock) ProcessMutation(_ context.Context, rc domain.RequestContext, intent domain.MutationIntent) (domain.MutationResult, error) {
	m.calls++
	m.gotContext = rc
	m.gotIntent = intent
	if m.err != nil {
		return domain.MutationResult{}, m.err
	}
	return m.result, nil
}

func (m *cartServiceMock) GetSnapshot(_ context.Context, _ string) (domain.Snapshot, error) {
	m.calls++
	if m.err != nil {
		return domain.Snapshot{}, m.err
	}
	return m.snapshot, nil
}

// --- helper ---

func newTestRouter(svc CartService) http.Handler {
	handler := NewCartHandler(svc, 5*time.Second, zap.NewNop())
	return NewRouter(handler, RouterConfig{
		AllowedOrigins: []string{"*"},
		RequestTimeout: 10 * time.Second,
	}, zap.NewNop())
}

func serve(router http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, target, nil)
	} else {
		request = httptest.NewRequest(method, target, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		request.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func decodeMutation(t *testing.T, recorder *httptest.ResponseRecorder) MutationResponse {
	t.Helper()
	var response MutationResponse
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

var session = map[string]string{HeaderSessionID: "sess-1"}

// --- AddItem tests ---

func TestAddItem_NewCartSetsCookie(t *testing.T) {
	mock := &cartServiceMock{
		result: domain.Succeeded("cart-new", 2, &domain.Snapshot{CartID: "cart-new", ProductsCount: 2}),
	}
	router := newTestRouter(mock)

	recorder := serve(router, "POST", "/api/v1/cart/items",
		`{"product_id": 1, "attributes": [3, 1], "quantity": 2}`, session)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d: %s", http.StatusOK, recorder.Code, recorder.Body.String())
	}
	if got := recorder.Header().Get(HeaderCartID); got != "cart-new" {
		t.Errorf("expected %s header 'cart-new', got '%s'", HeaderCartID, got)
	}
	cookies := recorder.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieCartID || cookies[0].Value != "cart-new" {
		t.Errorf("expected cart cookie, got %v", cookies)
	}

	if mock.gotIntent.Kind != domain.MutationAdd {
		t.Errorf("expected add intent, got %s", mock.gotIntent.Kind)
	}
	if mock.gotIntent.Direction != domain.DirectionIncrease {
		t.Errorf("expected default direction up, got %s", mock.gotIntent.Direction)
	}
	if len(mock.gotIntent.AttributeSelector) != 2 {
		t.Errorf("expected 2 attributes, got %v", mock.gotIntent.AttributeSelector)
	}
	if !mock.gotContext.HasSession {
		t.Error("expected request context to carry the session")
	}

	response := decodeMutation(t, recorder)
	if !response.Success || response.HasError {
		t.Errorf("expected success without errors, got %+v", response)
	}
	if response.Errors == nil {
		t.Error("expected errors to encode as [], got null")
	}
	if response.Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", response.Quantity)
	}
}

func TestAddItem_ExistingCartNoCookie(t *testing.T) {
	mock := &cartServiceMock{result: domain.Succeeded("cart-1", 1, nil)}
	router := newTestRouter(mock)

	recorder := serve(router, "POST", "/api/v1/cart/items", `{"product_id": 1, "quantity": 1}`,
		map[string]string{HeaderSessionID: "sess-1", HeaderCartID: "cart-1"})

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	if mock.gotContext.CartID != "cart-1" {
		t.Errorf("expected cart id from header, got '%s'", mock.gotContext.CartID)
	}
	if len(recorder.Result().Cookies()) != 0 {
		t.Error("expected no cookie for an existing cart")
	}
}

func TestAddItem_CartIDFromCookie(t *testing.T) {
	mock := &cartServiceMock{result: domain.Succeeded("cart-7", 1, nil)}
	handler := NewCartHandler(mock, 5*time.Second, zap.NewNop())
	router := NewRouter(handler, RouterConfig{RequestTimeout: time.Second}, zap.NewNop())

	request := httptest.NewRequest("POST", "/api/v1/cart/items", strings.NewReader(`{"product_id": 1, "quantity": 1}`))
	request.AddCookie(&http.Cookie{Name: CookieCartID, Value: "cart-7"})
	request.AddCookie(&http.Cookie{Name: CookieSession, Value: "sess"})
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	if mock.gotContext.CartID != "cart-7" || !mock.gotContext.HasSession {
		t.Errorf("expected cookies to populate request context, got %+v", mock.gotContext)
	}
}

func TestAddItem_ValidationFailure(t *testing.T) {
	mock := &cartServiceMock{
		result: domain.Failed("", 0, domain.ValidationErrors{
			domain.NewValidationError(domain.KindNullQuantity),
			domain.NewValidationError(domain.KindProductNotFound),
		}, nil),
	}
	router := newTestRouter(mock)

	recorder := serve(router, "POST", "/api/v1/cart/items", `{"product_id": 99}`, session)

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected %d, got %d", http.StatusUnprocessableEntity, recorder.Code)
	}
	response := decodeMutation(t, recorder)
	if response.Success || !response.HasError {
		t.Errorf("expected failure with errors, got %+v", response)
	}
	if len(response.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(response.Errors))
	}
	if response.Errors[0].Kind != domain.KindNullQuantity || response.Errors[1].Kind != domain.KindProductNotFound {
		t.Errorf("unexpected error order: %+v", response.Errors)
	}
}

func TestAddItem_InvalidJSON(t *testing.T) {
	mock := &cartServiceMock{}
	router := newTestRouter(mock)

	recorder := serve(router, "POST", "/api/v1/cart/items", `{bad`, session)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected %d, got %d", http.StatusBadRequest, recorder.Code)
	}
	if mock.calls != 0 {
		t.Error("service must not be called for a malformed body")
	}
}

func TestUpdateItem_UnknownDirection(t *testing.T) {
	mock := &cartServiceMock{}
	router := newTestRouter(mock)

	recorder := serve(router, "PATCH", "/api/v1/cart/items",
		`{"product_id": 1, "quantity": 1, "direction": "sideways"}`, session)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected %d, got %d", http.StatusBadRequest, recorder.Code)
	}
	if mock.calls != 0 {
		t.Error("service must not be called for an invalid intent")
	}
}

func TestUpdateItem_Decrease(t *testing.T) {
	mock := &cartServiceMock{result: domain.Succeeded("cart-1", 1, nil)}
	router := newTestRouter(mock)

	recorder := serve(router, "PATCH", "/api/v1/cart/items",
		`{"product_id": 1, "variant_id": 10, "quantity": 1, "direction": "down"}`, session)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	if mock.gotIntent.Kind != domain.MutationUpdate || mock.gotIntent.Direction != domain.DirectionDecrease {
		t.Errorf("unexpected intent %+v", mock.gotIntent)
	}
	if mock.gotIntent.VariantID != 10 {
		t.Errorf("expected variant 10, got %d", mock.gotIntent.VariantID)
	}
}

// --- RemoveItem tests ---

func TestRemoveItem_QueryParams(t *testing.T) {
	mock := &cartServiceMock{result: domain.Succeeded("cart-1", 0, nil)}
	router := newTestRouter(mock)

	recorder := serve(router, "DELETE",
		"/api/v1/cart/items?product_id=3&customization_id=8&delivery_address_id=2", "", session)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	want := domain.IdentityKey{ProductID: 3, CustomizationID: 8, DeliveryAddressID: 2}
	if mock.gotIntent.Key() != want {
		t.Errorf("expected key %+v, got %+v", want, mock.gotIntent.Key())
	}
}

func TestRemoveItem_BadParams(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"missing product", "/api/v1/cart/items"},
		{"non numeric product", "/api/v1/cart/items?product_id=abc"},
		{"negative variant", "/api/v1/cart/items?product_id=1&variant_id=-4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &cartServiceMock{}
			recorder := serve(newTestRouter(mock), "DELETE", tt.query, "", session)

			if recorder.Code != http.StatusBadRequest {
				t.Errorf("expected %d, got %d", http.StatusBadRequest, recorder.Code)
			}
			if mock.calls != 0 {
				t.Error("service must not be called")
			}
		})
	}
}

// --- Discount tests ---

func TestApplyDiscount(t *testing.T) {
	mock := &cartServiceMock{result: domain.Succeeded("cart-1", 0, nil)}
	router := newTestRouter(mock)

	recorder := serve(router, "POST", "/api/v1/cart/discounts", `{"code": " SAVE10 "}`, session)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	if mock.gotIntent.DiscountCode != "SAVE10" {
		t.Errorf("expected trimmed code 'SAVE10', got '%s'", mock.gotIntent.DiscountCode)
	}
}

func TestRemoveDiscount(t *testing.T) {
	mock := &cartServiceMock{result: domain.Succeeded("cart-1", 0, nil)}
	router := newTestRouter(mock)

	recorder := serve(router, "DELETE", "/api/v1/cart/discounts/12", "", session)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	if mock.gotIntent.Kind != domain.MutationRemoveDiscount || mock.gotIntent.DiscountRuleID != 12 {
		t.Errorf("unexpected intent %+v", mock.gotIntent)
	}
}

func TestRemoveDiscount_InvalidRuleID(t *testing.T) {
	mock := &cartServiceMock{}
	recorder := serve(newTestRouter(mock), "DELETE", "/api/v1/cart/discounts/zero", "", session)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected %d, got %d", http.StatusBadRequest, recorder.Code)
	}
}

// --- GetCart tests ---

func TestGetCart_NoCart(t *testing.T) {
	mock := &cartServiceMock{}
	recorder := serve(newTestRouter(mock), "GET", "/api/v1/cart/", "", nil)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	if mock.calls != 0 {
		t.Error("service must not be called without a cart id")
	}
	var snap domain.Snapshot
	if err := json.NewDecoder(recorder.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !snap.Empty {
		t.Error("expected empty snapshot")
	}
}

func TestGetCart_NotFoundIsEmpty(t *testing.T) {
	mock := &cartServiceMock{err: repository.ErrCartNotFound}
	recorder := serve(newTestRouter(mock), "GET", "/api/v1/cart/", "",
		map[string]string{HeaderCartID: "gone"})

	if recorder.Code != http.StatusOK {
		t.Errorf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
}

func TestGetCart_Success(t *testing.T) {
	mock := &cartServiceMock{snapshot: domain.Snapshot{
		CartID:        "cart-1",
		ProductsCount: 3,
		Subtotal:      decimal.RequireFromString("59.97"),
		Total:         decimal.RequireFromString("59.97"),
	}}
	recorder := serve(newTestRouter(mock), "GET", "/api/v1/cart/", "",
		map[string]string{HeaderCartID: "cart-1"})

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	var snap domain.Snapshot
	if err := json.NewDecoder(recorder.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if snap.ProductsCount != 3 || !snap.Total.Equal(decimal.RequireFromString("59.97")) {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

// --- Error mapping tests ---

func TestMutation_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"session required", service.ErrSessionRequired, http.StatusUnauthorized, "session_required"},
		{"invalid token", service.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
		{"foreign cart", fmt.Errorf("%w: cart-9", service.ErrCartForbidden), http.StatusForbidden, "cart_forbidden"},
		{"lock busy", lock.ErrLockNotAcquired, http.StatusConflict, "cart_busy"},
		{"deadline", errors.Join(lock.ErrLockNotAcquired, context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{"storage", errors.New("mongo down"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &cartServiceMock{err: tt.err}
			recorder := serve(newTestRouter(mock), "POST", "/api/v1/cart/items",
				`{"product_id": 1, "quantity": 1}`, session)

			if recorder.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, recorder.Code)
			}
			var response ErrorResponse
			if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Code != tt.wantCode {
				t.Errorf("expected code '%s', got '%s'", tt.wantCode, response.Code)
			}
		})
	}
}

// --- Middleware tests ---

func TestSessionMiddleware_Customer(t *testing.T) {
	mock := &cartServiceMock{result: domain.Succeeded("cart-1", 1, nil)}
	router := newTestRouter(mock)

	serve(router, "POST", "/api/v1/cart/items", `{"product_id": 1, "quantity": 1}`, map[string]string{
		HeaderSessionID:     "sess",
		HeaderCustomerID:    "7",
		HeaderCustomerToken: "tok",
	})

	rc := mock.gotContext
	if rc.CustomerID != 7 || !rc.LoggedIn || !rc.TokenValid {
		t.Errorf("unexpected request context %+v", rc)
	}
}

func TestSessionMiddleware_MissingToken(t *testing.T) {
	mock := &cartServiceMock{result: domain.Succeeded("cart-1", 1, nil)}
	router := newTestRouter(mock)

	serve(router, "POST", "/api/v1/cart/items", `{"product_id": 1, "quantity": 1}`, map[string]string{
		HeaderSessionID:  "sess",
		HeaderCustomerID: "7",
	})

	if mock.gotContext.TokenValid {
		t.Error("expected token to be invalid without a token header")
	}
}

func TestSessionMiddleware_BadCustomerID(t *testing.T) {
	mock := &cartServiceMock{}
	recorder := serve(newTestRouter(mock), "POST", "/api/v1/cart/items", `{"product_id": 1}`,
		map[string]string{HeaderCustomerID: "nope"})

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected %d, got %d", http.StatusBadRequest, recorder.Code)
	}
	if mock.calls != 0 {
		t.Error("service must not be called")
	}
}

func TestHealth(t *testing.T) {
	recorder := serve(newTestRouter(&cartServiceMock{}), "GET", "/health", "", nil)

	if recorder.Code != http.StatusOK {
		t.Errorf("expected %d, got %d", http.StatusOK, recorder.Code)
	}
	if recorder.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}
