package domain

// Recipe is an immutable experiment formula: required reagents with
// quantities, expected measurement ranges, and procedure steps. It has no
// setters; a stored recipe never changes.
type Recipe struct {
	Name            string             `json:"name"`
	Objective       string             `json:"objective"`
	Reagents        map[string]float64 `json:"reagents"`
	ExpectedResults map[string]Range   `json:"expected_results"`
	Procedure       []string           `json:"procedure"`
}

// RecipeSpec carries the validated constructor inputs for a recipe.
type RecipeSpec struct {
	Name            string
	Objective       string
	Reagents        map[string]float64
	ExpectedResults map[string]Range
	Procedure       []string
}

// NewRecipe validates the given fields and constructs a recipe. The reagent set and
// procedure must be non-empty, required quantities positive, and every
// expected range must satisfy Min <= Max.
func NewRecipe(spec RecipeSpec) (Recipe, error) {
	name, err := ValidateString(spec.Name, "name")
	if err != nil {
		return Recipe{}, err
	}
	objective, err := ValidateString(spec.Objective, "objective")
	if err != nil {
		return Recipe{}, err
	}
	if len(spec.Reagents) == 0 {
		return Recipe{}, FieldError{Field: "reagents", Reason: "recipe requires at least one reagent"}
	}
	reagents := make(map[string]float64, len(spec.Reagents))
	for reagentName, qty := range spec.Reagents {
		trimmed, err := ValidateString(reagentName, "reagents")
		if err != nil {
			return Recipe{}, err
		}
		if _, err := ValidatePositiveNumber(qty, "reagents["+trimmed+"]"); err != nil {
			return Recipe{}, err
		}
		reagents[trimmed] = qty
	}
	if len(spec.ExpectedResults) == 0 {
		return Recipe{}, FieldError{Field: "expected_results", Reason: "recipe requires at least one expected result"}
	}
	expected := make(map[string]Range, len(spec.ExpectedResults))
	for measurement, rng := range spec.ExpectedResults {
		trimmed, err := ValidateString(measurement, "expected_results")
		if err != nil {
			return Recipe{}, err
		}
		if rng.Min > rng.Max {
			return Recipe{}, FieldError{Field: "expected_results[" + trimmed + "]", Reason: "range min exceeds max"}
		}
		expected[trimmed] = rng
	}
	if len(spec.Procedure) == 0 {
		return Recipe{}, FieldError{Field: "procedure", Reason: "recipe requires at least one step"}
	}
	procedure := append([]string(nil), spec.Procedure...)
	return Recipe{
		Name:            name,
		Objective:       objective,
		Reagents:        reagents,
		ExpectedResults: expected,
		Procedure:       procedure,
	}, nil
}

// ValidateReagents reports whether every required reagent exists in the
// catalog with enough unexpired stock. It short-circuits on the first
// failure.
func (rc Recipe) ValidateReagents(catalog map[string]Reagent, today Date) bool {
	for reagentName, required := range rc.Reagents {
		reagent, ok := catalog[reagentName]
		if !ok {
			return false
		}
		if reagent.Inventory < required || reagent.IsExpired(today) {
			return false
		}
	}
	return true
}

// TotalCost sums required quantity times unit cost over the recipe's
// reagents. A reagent missing from the catalog fails the whole calculation
// rather than being skipped.
func (rc Recipe) TotalCost(catalog map[string]Reagent) (float64, error) {
	var total float64
	for reagentName, required := range rc.Reagents {
		reagent, ok := catalog[reagentName]
		if !ok {
			return 0, ReagentUnavailableError{Recipe: rc.Name, Reagent: reagentName}
		}
		total += required * reagent.Cost
	}
	return total, nil
}

// Clone returns a deep copy safe to embed in experiment records.
func (rc Recipe) Clone() Recipe {
	cp := rc
	cp.Reagents = make(map[string]float64, len(rc.Reagents))
	for k, v := range rc.Reagents {
		cp.Reagents[k] = v
	}
	cp.ExpectedResults = make(map[string]Range, len(rc.ExpectedResults))
	for k, v := range rc.ExpectedResults {
		cp.ExpectedResults[k] = v
	}
	cp.Procedure = append([]string(nil), rc.Procedure...)
	return cp
}
