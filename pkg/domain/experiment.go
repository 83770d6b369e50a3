package domain

// MeasurementValidation captures the outcome of checking one recorded value
// against its expected range. Deviation is the percentage distance from the
// range midpoint; when the midpoint is zero the deviation is undefined and
// DeviationDefined is false (an infinite value would not survive the JSON
// snapshot round-trip).
type MeasurementValidation struct {
	Value            float64 `json:"value"`
	Valid            bool    `json:"is_valid"`
	Deviation        float64 `json:"deviation"`
	DeviationDefined bool    `json:"deviation_defined"`
	Expected         Range   `json:"expected_range"`
}

// Experiment is one recorded execution of a recipe. It embeds a copy of the
// recipe as used, so later recipe edits never rewrite history. Once appended
// to the result history it is not mutated again.
type Experiment struct {
	ID          string                           `json:"id"`
	Recipe      Recipe                           `json:"recipe"`
	Date        Date                             `json:"date"`
	Responsible []string                         `json:"responsible_people"`
	Results     map[string]float64               `json:"results"`
	Validations map[string]MeasurementValidation `json:"measurement_validations"`
	Success     bool                             `json:"success"`
	Cost        float64                          `json:"cost"`
	Notes       string                           `json:"notes"`
}

// NewExperiment constructs an experiment for one run of the recipe. The
// recipe is deep-copied; at least one responsible person is required.
func NewExperiment(recipe Recipe, responsible []string, date Date) (Experiment, error) {
	if len(responsible) == 0 {
		return Experiment{}, FieldError{Field: "responsible_people", Reason: "at least one responsible person is required"}
	}
	people := make([]string, 0, len(responsible))
	for _, person := range responsible {
		trimmed, err := ValidateString(person, "responsible_people")
		if err != nil {
			return Experiment{}, err
		}
		people = append(people, trimmed)
	}
	if date.IsZero() {
		return Experiment{}, FieldError{Field: "date", Reason: "experiment date is required"}
	}
	return Experiment{
		Recipe:      recipe.Clone(),
		Date:        date,
		Responsible: people,
		Results:     make(map[string]float64),
		Validations: make(map[string]MeasurementValidation),
	}, nil
}

// RecordResult stores the measured value unconditionally. When the
// measurement is declared in the recipe's expected results it is validated
// against the range and a validation entry is stored; undeclared
// measurements are informational and reported valid. Returns the computed
// validity.
func (e *Experiment) RecordResult(measurement string, value float64) bool {
	e.Results[measurement] = value
	expected, declared := e.Recipe.ExpectedResults[measurement]
	if !declared {
		return true
	}
	valid, deviation, defined := EvaluateMeasurement(value, expected)
	e.Validations[measurement] = MeasurementValidation{
		Value:            value,
		Valid:            valid,
		Deviation:        deviation,
		DeviationDefined: defined,
		Expected:         expected,
	}
	return valid
}

// ValidateResults reports whether every measurement declared in the recipe's
// expected results has been recorded and found valid. Missing required
// measurements invalidate the experiment.
func (e Experiment) ValidateResults() bool {
	for measurement := range e.Recipe.ExpectedResults {
		if _, recorded := e.Results[measurement]; !recorded {
			return false
		}
		validation, ok := e.Validations[measurement]
		if !ok || !validation.Valid {
			return false
		}
	}
	return true
}

// Deviations returns the defined deviations keyed by measurement.
func (e Experiment) Deviations() map[string]float64 {
	out := make(map[string]float64, len(e.Validations))
	for measurement, validation := range e.Validations {
		if validation.DeviationDefined {
			out[measurement] = validation.Deviation
		}
	}
	return out
}

// Clone returns a deep copy safe to hand across transaction boundaries.
func (e Experiment) Clone() Experiment {
	cp := e
	cp.Recipe = e.Recipe.Clone()
	cp.Responsible = append([]string(nil), e.Responsible...)
	cp.Results = make(map[string]float64, len(e.Results))
	for k, v := range e.Results {
		cp.Results[k] = v
	}
	cp.Validations = make(map[string]MeasurementValidation, len(e.Validations))
	for k, v := range e.Validations {
		cp.Validations[k] = v
	}
	return cp
}
