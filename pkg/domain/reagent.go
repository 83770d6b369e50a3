package domain

// Reagent is a stocked chemical item with cost, thresholds, expiry, and
// append-only transaction histories. Inventory is never mutated except
// through ApplyStockDelta, which appends exactly one history record per
// accepted change.
type Reagent struct {
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	Cost            float64            `json:"cost"`
	Category        string             `json:"category"`
	Inventory       float64            `json:"inventory"`
	Unit            string             `json:"unit"`
	MinThreshold    float64            `json:"min_threshold"`
	ExpiryDate      Date               `json:"expiry_date"`
	Location        string             `json:"location"`
	SafetyInfo      map[string]string  `json:"safety_info"`
	PurchaseHistory []StockTransaction `json:"purchase_history"`
	UsageHistory    []StockTransaction `json:"usage_history"`
}

// ReagentSpec carries the validated constructor inputs for a reagent.
type ReagentSpec struct {
	Name         string
	Description  string
	Cost         float64
	Category     string
	Inventory    float64
	Unit         string
	MinThreshold float64
	ExpiryDate   string // optional, YYYY-MM-DD
	Location     string // optional
	SafetyInfo   map[string]string
}

// DefaultLocation is assigned when a reagent spec omits its storage location.
const DefaultLocation = "General storage"

// NewReagent validates the given fields and constructs a reagent. Validation is
// all-or-nothing: any invalid field fails construction with a FieldError.
func NewReagent(spec ReagentSpec) (Reagent, error) {
	name, err := ValidateString(spec.Name, "name")
	if err != nil {
		return Reagent{}, err
	}
	description, err := ValidateString(spec.Description, "description")
	if err != nil {
		return Reagent{}, err
	}
	cost, err := ValidatePositiveNumber(spec.Cost, "cost")
	if err != nil {
		return Reagent{}, err
	}
	category, err := ValidateString(spec.Category, "category")
	if err != nil {
		return Reagent{}, err
	}
	inventory, err := ValidatePositiveNumber(spec.Inventory, "inventory")
	if err != nil {
		return Reagent{}, err
	}
	unit, err := ValidateString(spec.Unit, "unit")
	if err != nil {
		return Reagent{}, err
	}
	threshold, err := ValidatePositiveNumber(spec.MinThreshold, "min_threshold")
	if err != nil {
		return Reagent{}, err
	}
	expiry, err := ValidateDate(spec.ExpiryDate, "expiry_date")
	if err != nil {
		return Reagent{}, err
	}
	location := spec.Location
	if location == "" {
		location = DefaultLocation
	}
	location, err = ValidateString(location, "location")
	if err != nil {
		return Reagent{}, err
	}
	safety := make(map[string]string, len(spec.SafetyInfo))
	for k, v := range spec.SafetyInfo {
		safety[k] = v
	}
	return Reagent{
		Name:         name,
		Description:  description,
		Cost:         cost,
		Category:     category,
		Inventory:    inventory,
		Unit:         unit,
		MinThreshold: threshold,
		ExpiryDate:   expiry,
		Location:     location,
		SafetyInfo:   safety,
	}, nil
}

// IsLowStock reports whether inventory sits at or below the minimum threshold.
func (r Reagent) IsLowStock() bool {
	return r.Inventory <= r.MinThreshold
}

// IsExpired reports whether the reagent is unusable as of today. Expiry is
// inclusive: a reagent is expired on its expiry date itself.
func (r Reagent) IsExpired(today Date) bool {
	if r.ExpiryDate.IsZero() {
		return false
	}
	return !today.Before(r.ExpiryDate)
}

// DaysUntilExpiry returns the whole-day count to expiry, 0 when already
// expired, and (0, false) when no expiry date is set.
func (r Reagent) DaysUntilExpiry(today Date) (int, bool) {
	if r.ExpiryDate.IsZero() {
		return 0, false
	}
	if r.IsExpired(today) {
		return 0, true
	}
	return today.DaysUntil(r.ExpiryDate), true
}

// ApplyStockDelta adds amount to the inventory (negative amounts represent
// consumption) and appends one transaction record: to the purchase history
// when amount > 0, to the usage history when amount < 0. A change that would
// drive inventory below zero is rejected with InsufficientStockError and
// leaves the reagent untouched. A zero amount is rejected as invalid input
// rather than silently recorded as a no-op.
func (r *Reagent) ApplyStockDelta(amount float64, reason string, today Date) error {
	if amount == 0 {
		return FieldError{Field: "amount", Reason: "stock update amount must be non-zero"}
	}
	next := r.Inventory + amount
	if next < 0 {
		return InsufficientStockError{Reagent: r.Name, Have: r.Inventory, Want: -amount}
	}
	r.Inventory = next
	entry := StockTransaction{
		Date:     today,
		Amount:   amount,
		Reason:   reason,
		NewLevel: next,
	}
	if amount > 0 {
		r.PurchaseHistory = append(r.PurchaseHistory, entry)
	} else {
		r.UsageHistory = append(r.UsageHistory, entry)
	}
	return nil
}

// TotalUsage sums the absolute amounts across the usage history.
func (r Reagent) TotalUsage() float64 {
	var total float64
	for _, entry := range r.UsageHistory {
		if entry.Amount < 0 {
			total -= entry.Amount
		} else {
			total += entry.Amount
		}
	}
	return total
}

// Clone returns a deep copy safe to hand across transaction boundaries.
func (r Reagent) Clone() Reagent {
	cp := r
	if r.SafetyInfo != nil {
		cp.SafetyInfo = make(map[string]string, len(r.SafetyInfo))
		for k, v := range r.SafetyInfo {
			cp.SafetyInfo[k] = v
		}
	}
	cp.PurchaseHistory = append([]StockTransaction(nil), r.PurchaseHistory...)
	cp.UsageHistory = append([]StockTransaction(nil), r.UsageHistory...)
	return cp
}
