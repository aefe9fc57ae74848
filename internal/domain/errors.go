package domain

import (
	"fmt"
	"strings"
)

// ErrorKind names a validation failure. The presentation layer maps kinds to
// localized messages.
type ErrorKind string

const (
	KindNullQuantity               ErrorKind = "null_quantity"
	KindProductNotFound            ErrorKind = "product_not_found"
	KindProductUnavailable         ErrorKind = "product_unavailable"
	KindInsufficientStock          ErrorKind = "insufficient_stock"
	KindMissingCustomizationFields ErrorKind = "missing_customization_fields"
	KindBelowMinimalQuantity       ErrorKind = "below_minimal_quantity"
	KindMaximumQuantityReached     ErrorKind = "maximum_quantity_reached"
	KindItemNotInCart              ErrorKind = "item_not_in_cart"
	KindDiscountCodeEmpty          ErrorKind = "discount_code_empty"
	KindDiscountCodeInvalidFormat  ErrorKind = "discount_code_invalid_format"
	KindDiscountNotFound           ErrorKind = "discount_not_found"
	KindDiscountAlreadyApplied     ErrorKind = "discount_already_applied"
	KindDiscountRuleInvalid        ErrorKind = "discount_rule_invalid"
	KindConfigurationError         ErrorKind = "configuration_error"
)

type ValidationError struct {
	Kind   ErrorKind `json:"kind"`
	Params []int     `json:"params,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

func (e ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	for _, p := range e.Params {
		fmt.Fprintf(&b, " %d", p)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func NewValidationError(kind ErrorKind, params ...int) ValidationError {
	return ValidationError{Kind: kind, Params: params}
}

func BelowMinimalQuantity(minimum int) ValidationError {
	return NewValidationError(KindBelowMinimalQuantity, minimum)
}

func DiscountRuleInvalid(reason string) ValidationError {
	return ValidationError{Kind: KindDiscountRuleInvalid, Reason: reason}
}

// ValidationErrors keeps failures in the order they were found.
type ValidationErrors []ValidationError

func (v ValidationErrors) Has(kind ErrorKind) bool {
	for _, e := range v {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}
