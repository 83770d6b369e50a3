package core

import "chemlab/pkg/domain"

// Aliases keep service signatures terse while the canonical definitions stay
// in pkg/domain.
type (
	// Reagent aliases domain.Reagent.
	Reagent = domain.Reagent
	// Recipe aliases domain.Recipe.
	Recipe = domain.Recipe
	// Experiment aliases domain.Experiment.
	Experiment = domain.Experiment
	// Supplier aliases domain.Supplier.
	Supplier = domain.Supplier
	// Order aliases domain.Order.
	Order = domain.Order
	// Change aliases domain.Change.
	Change = domain.Change
	// Result aliases domain.Result.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Rule aliases domain.Rule.
	Rule = domain.Rule
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore.
	PersistentStore = domain.PersistentStore
	// EntityType aliases domain.EntityType.
	EntityType = domain.EntityType
	// Action aliases domain.Action.
	Action = domain.Action
	// Date aliases domain.Date.
	Date = domain.Date
	// Range aliases domain.Range.
	Range = domain.Range
)
