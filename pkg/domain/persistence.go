package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Reagents, recipes, and suppliers are
// keyed by name, orders by their generated identifier; the experiment history
// is append-only.
type Transaction interface {
	Snapshot() TransactionView
	PutReagent(Reagent) (Reagent, error)
	UpdateReagent(name string, mutator func(*Reagent) error) error
	DeleteReagent(name string) error
	PutRecipe(Recipe) (Recipe, error)
	DeleteRecipe(name string) error
	PutSupplier(Supplier) (Supplier, error)
	UpdateSupplier(name string, mutator func(*Supplier) error) error
	CreateOrder(Order) (Order, error)
	UpdateOrder(id string, mutator func(*Order) error) error
	AppendExperiment(Experiment) (Experiment, error)
	FindReagent(name string) (Reagent, bool)
	FindRecipe(name string) (Recipe, bool)
	FindSupplier(name string) (Supplier, bool)
	FindOrder(id string) (Order, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView = RuleView

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers. Lookup
// misses surface as NotFoundError so callers can hand the result straight
// through.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetReagent(ctx context.Context, name string) (Reagent, error)
	ListReagents(ctx context.Context) ([]Reagent, error)
	GetRecipe(ctx context.Context, name string) (Recipe, error)
	ListRecipes(ctx context.Context) ([]Recipe, error)
	GetSupplier(ctx context.Context, name string) (Supplier, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	ListExperiments(ctx context.Context) ([]Experiment, error)
}
