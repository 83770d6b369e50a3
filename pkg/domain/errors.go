package domain

import "fmt"

// FieldError reports invalid input supplied for a named field. Constructors
// return it before any state is touched; callers are expected to reject or
// re-prompt, never to default the value silently.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError is returned when a lookup by key misses.
type NotFoundError struct {
	Entity EntityType
	Key    string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// InsufficientStockError is returned when a stock change would drive a
// reagent's inventory below zero, or when a recipe requires more than is
// available. The rejected change is never applied.
type InsufficientStockError struct {
	Reagent string
	Have    float64
	Want    float64
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock of %q: have %g, need %g", e.Reagent, e.Have, e.Want)
}

// ExpiredError is returned when a recipe would consume a reagent on or past
// its expiry date.
type ExpiredError struct {
	Reagent string
	Expiry  Date
}

func (e ExpiredError) Error() string {
	return fmt.Sprintf("reagent %q expired on %s", e.Reagent, e.Expiry)
}

// ReagentUnavailableError is returned when a cost calculation references a
// reagent absent from the supplied catalog.
type ReagentUnavailableError struct {
	Recipe  string
	Reagent string
}

func (e ReagentUnavailableError) Error() string {
	return fmt.Sprintf("recipe %q references unavailable reagent %q", e.Recipe, e.Reagent)
}

// RuleViolationError is returned when a transaction is blocked by rules.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
