// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"chemlab/pkg/domain"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Reagent aliases domain.Reagent for in-memory persistence operations.
	Reagent = domain.Reagent
	// Recipe aliases domain.Recipe.
	Recipe = domain.Recipe
	// Experiment aliases domain.Experiment.
	Experiment = domain.Experiment
	// Supplier aliases domain.Supplier.
	Supplier = domain.Supplier
	// Order aliases domain.Order.
	Order = domain.Order
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	reagents    map[string]Reagent
	recipes     map[string]Recipe
	suppliers   map[string]Supplier
	orders      map[string]Order
	experiments []Experiment
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Reagents    map[string]Reagent  `json:"reagents"`
	Recipes     map[string]Recipe   `json:"recipes"`
	Suppliers   map[string]Supplier `json:"suppliers"`
	Orders      map[string]Order    `json:"orders"`
	Experiments []Experiment        `json:"experiments"`
}

func newMemoryState() memoryState {
	return memoryState{
		reagents:  make(map[string]Reagent),
		recipes:   make(map[string]Recipe),
		suppliers: make(map[string]Supplier),
		orders:    make(map[string]Order),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Reagents:    make(map[string]Reagent, len(state.reagents)),
		Recipes:     make(map[string]Recipe, len(state.recipes)),
		Suppliers:   make(map[string]Supplier, len(state.suppliers)),
		Orders:      make(map[string]Order, len(state.orders)),
		Experiments: make([]Experiment, 0, len(state.experiments)),
	}
	for k, v := range state.reagents {
		s.Reagents[k] = v.Clone()
	}
	for k, v := range state.recipes {
		s.Recipes[k] = v.Clone()
	}
	for k, v := range state.suppliers {
		s.Suppliers[k] = cloneSupplier(v)
	}
	for k, v := range state.orders {
		s.Orders[k] = v
	}
	for _, e := range state.experiments {
		s.Experiments = append(s.Experiments, e.Clone())
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Reagents {
		state.reagents[k] = v.Clone()
	}
	for k, v := range s.Recipes {
		state.recipes[k] = v.Clone()
	}
	for k, v := range s.Suppliers {
		state.suppliers[k] = cloneSupplier(v)
	}
	for k, v := range s.Orders {
		state.orders[k] = v
	}
	for _, e := range s.Experiments {
		state.experiments = append(state.experiments, e.Clone())
	}
	return state
}

// migrateSnapshot normalizes snapshots produced by older payloads: nil maps
// become empty, map keys are re-derived from entity names, and orders that
// reference unknown reagents or suppliers are dropped.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Reagents == nil {
		snapshot.Reagents = map[string]Reagent{}
	}
	if snapshot.Recipes == nil {
		snapshot.Recipes = map[string]Recipe{}
	}
	if snapshot.Suppliers == nil {
		snapshot.Suppliers = map[string]Supplier{}
	}
	if snapshot.Orders == nil {
		snapshot.Orders = map[string]Order{}
	}

	for key, reagent := range snapshot.Reagents {
		if reagent.Name == "" {
			reagent.Name = key
		}
		if reagent.Location == "" {
			reagent.Location = domain.DefaultLocation
		}
		if reagent.Name != key {
			delete(snapshot.Reagents, key)
		}
		snapshot.Reagents[reagent.Name] = reagent
	}
	for key, recipe := range snapshot.Recipes {
		if recipe.Name == "" {
			recipe.Name = key
		}
		if recipe.Name != key {
			delete(snapshot.Recipes, key)
		}
		snapshot.Recipes[recipe.Name] = recipe
	}
	for key, supplier := range snapshot.Suppliers {
		if supplier.Name == "" {
			supplier.Name = key
		}
		if supplier.Name != key {
			delete(snapshot.Suppliers, key)
		}
		snapshot.Suppliers[supplier.Name] = supplier
	}
	for key, order := range snapshot.Orders {
		if order.ID == "" {
			order.ID = key
		}
		if order.Status == "" {
			order.Status = domain.OrderStatusPending
		}
		if _, ok := snapshot.Reagents[order.ReagentName]; !ok {
			delete(snapshot.Orders, key)
			continue
		}
		if order.ID != key {
			delete(snapshot.Orders, key)
		}
		snapshot.Orders[order.ID] = order
	}
	return snapshot
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.reagents {
		cloned.reagents[k] = v.Clone()
	}
	for k, v := range s.recipes {
		cloned.recipes[k] = v.Clone()
	}
	for k, v := range s.suppliers {
		cloned.suppliers[k] = cloneSupplier(v)
	}
	for k, v := range s.orders {
		cloned.orders[k] = v
	}
	if len(s.experiments) != 0 {
		cloned.experiments = make([]Experiment, 0, len(s.experiments))
		for _, e := range s.experiments {
			cloned.experiments = append(cloned.experiments, e.Clone())
		}
	}
	return cloned
}

func cloneSupplier(s Supplier) Supplier {
	cp := s
	if s.ContactInfo != nil {
		cp.ContactInfo = make(map[string]string, len(s.ContactInfo))
		for k, v := range s.ContactInfo {
			cp.ContactInfo[k] = v
		}
	}
	cp.Reagents = append([]string(nil), s.Reagents...)
	return cp
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine for integration points.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider installed with SetNowFunc, or nil when
// none has been set. Callers fall back to their own clock on nil.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider. Intended for tests; passing nil
// clears the override.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListReagents returns all reagents within the snapshot sorted by name.
func (v transactionView) ListReagents() []Reagent {
	out := make([]Reagent, 0, len(v.state.reagents))
	for _, r := range v.state.reagents {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListRecipes returns all recipes within the snapshot sorted by name.
func (v transactionView) ListRecipes() []Recipe {
	out := make([]Recipe, 0, len(v.state.recipes))
	for _, r := range v.state.recipes {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListExperiments returns the experiment history in recorded order.
func (v transactionView) ListExperiments() []Experiment {
	out := make([]Experiment, 0, len(v.state.experiments))
	for _, e := range v.state.experiments {
		out = append(out, e.Clone())
	}
	return out
}

// ListSuppliers returns all suppliers within the snapshot sorted by name.
func (v transactionView) ListSuppliers() []Supplier {
	out := make([]Supplier, 0, len(v.state.suppliers))
	for _, s := range v.state.suppliers {
		out = append(out, cloneSupplier(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListOrders returns all orders within the snapshot sorted by identifier.
func (v transactionView) ListOrders() []Order {
	out := make([]Order, 0, len(v.state.orders))
	for _, o := range v.state.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindReagent retrieves a reagent by name from the snapshot.
func (v transactionView) FindReagent(name string) (Reagent, bool) {
	r, ok := v.state.reagents[name]
	if !ok {
		return Reagent{}, false
	}
	return r.Clone(), true
}

// FindRecipe retrieves a recipe by name from the snapshot.
func (v transactionView) FindRecipe(name string) (Recipe, bool) {
	r, ok := v.state.recipes[name]
	if !ok {
		return Recipe{}, false
	}
	return r.Clone(), true
}

// FindSupplier retrieves a supplier by name from the snapshot.
func (v transactionView) FindSupplier(name string) (Supplier, bool) {
	s, ok := v.state.suppliers[name]
	if !ok {
		return Supplier{}, false
	}
	return cloneSupplier(s), true
}

// FindOrder retrieves an order by identifier from the snapshot.
func (v transactionView) FindOrder(id string) (Order, bool) {
	o, ok := v.state.orders[id]
	return o, ok
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindReagent exposes reagent lookup within the transaction scope.
func (tx *transaction) FindReagent(name string) (Reagent, bool) {
	r, ok := tx.state.reagents[name]
	if !ok {
		return Reagent{}, false
	}
	return r.Clone(), true
}

// FindRecipe exposes recipe lookup within the transaction scope.
func (tx *transaction) FindRecipe(name string) (Recipe, bool) {
	r, ok := tx.state.recipes[name]
	if !ok {
		return Recipe{}, false
	}
	return r.Clone(), true
}

// FindSupplier exposes supplier lookup within the transaction scope.
func (tx *transaction) FindSupplier(name string) (Supplier, bool) {
	s, ok := tx.state.suppliers[name]
	if !ok {
		return Supplier{}, false
	}
	return cloneSupplier(s), true
}

// FindOrder exposes order lookup within the transaction scope.
func (tx *transaction) FindOrder(id string) (Order, bool) {
	o, ok := tx.state.orders[id]
	return o, ok
}

// PutReagent inserts or replaces a reagent keyed by its name.
func (tx *transaction) PutReagent(r Reagent) (Reagent, error) {
	if strings.TrimSpace(r.Name) == "" {
		return Reagent{}, errors.New("reagent requires a name")
	}
	action := domain.ActionCreate
	var before any
	if current, exists := tx.state.reagents[r.Name]; exists {
		action = domain.ActionUpdate
		before = current.Clone()
	}
	tx.state.reagents[r.Name] = r.Clone()
	tx.recordChange(Change{Entity: domain.EntityReagent, Action: action, Before: before, After: r.Clone()})
	return r.Clone(), nil
}

// UpdateReagent mutates a reagent using the provided mutator function.
func (tx *transaction) UpdateReagent(name string, mutator func(*Reagent) error) error {
	current, ok := tx.state.reagents[name]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityReagent, Key: name}
	}
	before := current.Clone()
	if err := mutator(&current); err != nil {
		return err
	}
	current.Name = name
	tx.state.reagents[name] = current.Clone()
	tx.recordChange(Change{Entity: domain.EntityReagent, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return nil
}

// DeleteReagent removes a reagent from the transaction state.
func (tx *transaction) DeleteReagent(name string) error {
	current, ok := tx.state.reagents[name]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityReagent, Key: name}
	}
	for _, order := range tx.state.orders {
		if order.ReagentName == name && order.Status == domain.OrderStatusPending {
			return fmt.Errorf("reagent %q still referenced by pending order %q", name, order.ID)
		}
	}
	delete(tx.state.reagents, name)
	tx.recordChange(Change{Entity: domain.EntityReagent, Action: domain.ActionDelete, Before: current.Clone()})
	return nil
}

// PutRecipe inserts or replaces a recipe keyed by its name.
func (tx *transaction) PutRecipe(r Recipe) (Recipe, error) {
	if strings.TrimSpace(r.Name) == "" {
		return Recipe{}, errors.New("recipe requires a name")
	}
	action := domain.ActionCreate
	var before any
	if current, exists := tx.state.recipes[r.Name]; exists {
		action = domain.ActionUpdate
		before = current.Clone()
	}
	tx.state.recipes[r.Name] = r.Clone()
	tx.recordChange(Change{Entity: domain.EntityRecipe, Action: action, Before: before, After: r.Clone()})
	return r.Clone(), nil
}

// DeleteRecipe removes a recipe from the transaction state.
func (tx *transaction) DeleteRecipe(name string) error {
	current, ok := tx.state.recipes[name]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityRecipe, Key: name}
	}
	delete(tx.state.recipes, name)
	tx.recordChange(Change{Entity: domain.EntityRecipe, Action: domain.ActionDelete, Before: current.Clone()})
	return nil
}

// PutSupplier inserts or replaces a supplier keyed by its name.
func (tx *transaction) PutSupplier(s Supplier) (Supplier, error) {
	if strings.TrimSpace(s.Name) == "" {
		return Supplier{}, errors.New("supplier requires a name")
	}
	action := domain.ActionCreate
	var before any
	if current, exists := tx.state.suppliers[s.Name]; exists {
		action = domain.ActionUpdate
		before = cloneSupplier(current)
	}
	tx.state.suppliers[s.Name] = cloneSupplier(s)
	tx.recordChange(Change{Entity: domain.EntitySupplier, Action: action, Before: before, After: cloneSupplier(s)})
	return cloneSupplier(s), nil
}

// UpdateSupplier mutates a supplier using the provided mutator function.
func (tx *transaction) UpdateSupplier(name string, mutator func(*Supplier) error) error {
	current, ok := tx.state.suppliers[name]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntitySupplier, Key: name}
	}
	before := cloneSupplier(current)
	if err := mutator(&current); err != nil {
		return err
	}
	current.Name = name
	tx.state.suppliers[name] = cloneSupplier(current)
	tx.recordChange(Change{Entity: domain.EntitySupplier, Action: domain.ActionUpdate, Before: before, After: cloneSupplier(current)})
	return nil
}

// CreateOrder stores a new purchase order within the transaction.
func (tx *transaction) CreateOrder(o Order) (Order, error) {
	if o.ID == "" {
		o.ID = tx.store.newID()
	}
	if _, exists := tx.state.orders[o.ID]; exists {
		return Order{}, fmt.Errorf("order %q already exists", o.ID)
	}
	if _, ok := tx.state.reagents[o.ReagentName]; !ok {
		return Order{}, domain.NotFoundError{Entity: domain.EntityReagent, Key: o.ReagentName}
	}
	if o.Status == "" {
		o.Status = domain.OrderStatusPending
	}
	tx.state.orders[o.ID] = o
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionCreate, After: o})
	return o, nil
}

// UpdateOrder mutates an existing order.
func (tx *transaction) UpdateOrder(id string, mutator func(*Order) error) error {
	current, ok := tx.state.orders[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityOrder, Key: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return err
	}
	current.ID = id
	tx.state.orders[id] = current
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionUpdate, Before: before, After: current})
	return nil
}

// AppendExperiment records an experiment in the append-only history.
func (tx *transaction) AppendExperiment(e Experiment) (Experiment, error) {
	if e.ID == "" {
		e.ID = tx.store.newID()
	}
	for _, existing := range tx.state.experiments {
		if existing.ID == e.ID {
			return Experiment{}, fmt.Errorf("experiment %q already exists", e.ID)
		}
	}
	tx.state.experiments = append(tx.state.experiments, e.Clone())
	tx.recordChange(Change{Entity: domain.EntityExperiment, Action: domain.ActionCreate, After: e.Clone()})
	return e.Clone(), nil
}

// GetReagent retrieves a reagent by name from committed state.
func (s *Store) GetReagent(_ context.Context, name string) (Reagent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.reagents[name]
	if !ok {
		return Reagent{}, domain.NotFoundError{Entity: domain.EntityReagent, Key: name}
	}
	return r.Clone(), nil
}

// ListReagents returns all committed reagents sorted by name.
func (s *Store) ListReagents(_ context.Context) ([]Reagent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListReagents(), nil
}

// GetRecipe retrieves a recipe by name from committed state.
func (s *Store) GetRecipe(_ context.Context, name string) (Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.recipes[name]
	if !ok {
		return Recipe{}, domain.NotFoundError{Entity: domain.EntityRecipe, Key: name}
	}
	return r.Clone(), nil
}

// ListRecipes returns all committed recipes sorted by name.
func (s *Store) ListRecipes(_ context.Context) ([]Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListRecipes(), nil
}

// GetSupplier retrieves a supplier by name from committed state.
func (s *Store) GetSupplier(_ context.Context, name string) (Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.state.suppliers[name]
	if !ok {
		return Supplier{}, domain.NotFoundError{Entity: domain.EntitySupplier, Key: name}
	}
	return cloneSupplier(sp), nil
}

// ListSuppliers returns all committed suppliers sorted by name.
func (s *Store) ListSuppliers(_ context.Context) ([]Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListSuppliers(), nil
}

// GetOrder retrieves an order by identifier from committed state.
func (s *Store) GetOrder(_ context.Context, id string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.state.orders[id]
	if !ok {
		return Order{}, domain.NotFoundError{Entity: domain.EntityOrder, Key: id}
	}
	return o, nil
}

// ListOrders returns all committed orders sorted by identifier.
func (s *Store) ListOrders(_ context.Context) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListOrders(), nil
}

// ListExperiments returns the committed experiment history in recorded order.
func (s *Store) ListExperiments(_ context.Context) ([]Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListExperiments(), nil
}
