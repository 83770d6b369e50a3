// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by chemlab.
package domain

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityReagent identifies a stocked reagent record.
	EntityReagent EntityType = "reagent"
	// EntityRecipe identifies a recipe definition record.
	EntityRecipe EntityType = "recipe"
	// EntityExperiment identifies a recorded experiment run.
	EntityExperiment EntityType = "experiment"
	// EntitySupplier identifies a supplier record.
	EntitySupplier EntityType = "supplier"
	// EntityOrder identifies a purchase order record.
	EntityOrder EntityType = "order"
)

// OrderStatus enumerates the purchase order lifecycle.
type OrderStatus string

// Canonical order statuses.
const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusReceived OrderStatus = "received"
)

// OrderLeadDays is the fixed lead time applied to expected delivery dates.
const OrderLeadDays = 7

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// StockTransaction is one append-only history record of an inventory change.
type StockTransaction struct {
	Date     Date    `json:"date"`
	Amount   float64 `json:"amount"`
	Reason   string  `json:"reason"`
	NewLevel float64 `json:"new_level"`
}

// Range is a closed measurement interval with Min <= Max.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether value falls inside the closed interval.
func (r Range) Contains(value float64) bool {
	return r.Min <= value && value <= r.Max
}

// Midpoint returns the center of the interval.
func (r Range) Midpoint() float64 {
	return (r.Min + r.Max) / 2
}

// Supplier records a vendor and the reagents they provide.
type Supplier struct {
	Name        string            `json:"name"`
	ContactInfo map[string]string `json:"contact_info"`
	Reagents    []string          `json:"reagents"`
}

// Order records a reagent purchase from a supplier. Receiving a pending order
// credits the reagent's stock by the ordered quantity.
type Order struct {
	ID               string      `json:"order_id"`
	ReagentName      string      `json:"reagent_name"`
	Quantity         float64     `json:"quantity"`
	SupplierName     string      `json:"supplier_name"`
	OrderDate        Date        `json:"order_date"`
	ExpectedDelivery Date        `json:"expected_delivery"`
	Status           OrderStatus `json:"status"`
	ReceivedDate     Date        `json:"received_date"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported operations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}
