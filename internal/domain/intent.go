package domain

import (
	"errors"
	"fmt"
	"strings"
)

type MutationKind string

const (
	MutationAdd            MutationKind = "add"
	MutationUpdate         MutationKind = "update"
	MutationRemove         MutationKind = "remove"
	MutationApplyDiscount  MutationKind = "apply_discount"
	MutationRemoveDiscount MutationKind = "remove_discount"
)

type Direction string

const (
	DirectionIncrease Direction = "up"
	DirectionDecrease Direction = "down"
)

var ErrInvalidIntent = errors.New("invalid mutation intent")

// MutationIntent is one shopper request against a cart. It is built once at
// the boundary with NewMutationIntent and never persisted.
type MutationIntent struct {
	Kind              MutationKind
	ProductID         int64
	VariantID         int64
	AttributeSelector []int64
	CustomizationID   int64
	DeliveryAddressID int64
	Quantity          int
	Direction         Direction
	DiscountCode      string
	DiscountRuleID    int64
}

// Key returns the line item identity the intent refers to.
func (i MutationIntent) Key() IdentityKey {
	return IdentityKey{
		ProductID:         i.ProductID,
		VariantID:         i.VariantID,
		CustomizationID:   i.CustomizationID,
		DeliveryAddressID: i.DeliveryAddressID,
	}
}

// NewMutationIntent normalizes and checks the shape of an intent. Business
// validation (zero quantity, unknown product) is left to the engine, which
// reports it as validation errors.
func NewMutationIntent(i MutationIntent) (MutationIntent, error) {
	switch i.Kind {
	case MutationAdd, MutationUpdate, MutationRemove, MutationApplyDiscount, MutationRemoveDiscount:
	default:
		return MutationIntent{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidIntent, i.Kind)
	}

	if i.Quantity < 0 {
		i.Quantity = -i.Quantity
	}
	switch i.Direction {
	case "":
		i.Direction = DirectionIncrease
	case DirectionIncrease, DirectionDecrease:
	default:
		return MutationIntent{}, fmt.Errorf("%w: unknown direction %q", ErrInvalidIntent, i.Direction)
	}

	if i.ProductID < 0 || i.VariantID < 0 || i.CustomizationID < 0 || i.DeliveryAddressID < 0 {
		return MutationIntent{}, fmt.Errorf("%w: negative id", ErrInvalidIntent)
	}

	i.DiscountCode = strings.TrimSpace(i.DiscountCode)
	if i.Kind == MutationRemoveDiscount && i.DiscountRuleID <= 0 {
		return MutationIntent{}, fmt.Errorf("%w: discount rule id must be positive", ErrInvalidIntent)
	}
	return i, nil
}

// RequestContext carries who is asking and for which cart. It replaces any
// ambient session state.
type RequestContext struct {
	CartID     string
	CustomerID int64
	HasSession bool
	LoggedIn   bool
	TokenValid bool
}

func (rc RequestContext) Customer() Customer {
	return Customer{ID: rc.CustomerID, LoggedIn: rc.LoggedIn}
}
