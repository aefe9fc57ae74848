package domain

import "time"

type EventType string

const (
	EventItemAdded       EventType = "item_added"
	EventItemUpdated     EventType = "item_updated"
	EventItemRemoved     EventType = "item_removed"
	EventDiscountApplied EventType = "discount_applied"
	EventDiscountRemoved EventType = "discount_removed"
	EventCartEmptied     EventType = "cart_emptied"
)

// Event is emitted after a mutation commits.
type Event struct {
	Type       EventType   `json:"type"`
	CartID     string      `json:"cart_id"`
	CustomerID int64       `json:"customer_id,omitempty"`
	Key        IdentityKey `json:"key"`
	Quantity   int         `json:"quantity"`
	RuleID     int64       `json:"rule_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}
