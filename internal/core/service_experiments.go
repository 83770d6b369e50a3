package core

import (
	"chemlab/pkg/domain"
	"context"
	"fmt"
	"sort"
)

// PerformExperiment runs a recipe: it verifies every ingredient is present,
// unexpired, and in sufficient stock, records and validates the supplied
// measurements, debits the consumed quantities, and appends the experiment to
// the result history. The whole run is one transaction; if any precondition
// fails nothing is consumed and nothing is recorded.
func (s *Service) PerformExperiment(ctx context.Context, recipeName string, responsible []string, measurements map[string]float64, notes string) (Experiment, error) {
	var performed Experiment
	var entityID string
	today := s.today()
	_, err := s.run(ctx, "perform_experiment", &entityID, func(tx Transaction) error {
		view := tx.Snapshot()
		recipe, ok := view.FindRecipe(recipeName)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityRecipe, Key: recipeName}
		}

		names := make([]string, 0, len(recipe.Reagents))
		for name := range recipe.Reagents {
			names = append(names, name)
		}
		sort.Strings(names)

		catalog := make(map[string]Reagent, len(names))
		for _, name := range names {
			reagent, ok := view.FindReagent(name)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityReagent, Key: name}
			}
			if reagent.IsExpired(today) {
				return domain.ExpiredError{Reagent: reagent.Name, Expiry: reagent.ExpiryDate}
			}
			if required := recipe.Reagents[name]; reagent.Inventory < required {
				return domain.InsufficientStockError{Reagent: reagent.Name, Have: reagent.Inventory, Want: required}
			}
			catalog[name] = reagent
		}

		experiment, err := domain.NewExperiment(recipe, responsible, today)
		if err != nil {
			return err
		}
		for measurement, value := range measurements {
			experiment.RecordResult(measurement, value)
		}
		experiment.Success = experiment.ValidateResults()
		experiment.Notes = notes

		cost, err := recipe.TotalCost(catalog)
		if err != nil {
			return err
		}
		experiment.Cost = cost

		reason := fmt.Sprintf("Experiment: %s", recipe.Name)
		for _, name := range names {
			required := recipe.Reagents[name]
			if err := tx.UpdateReagent(name, func(reagent *Reagent) error {
				return reagent.ApplyStockDelta(-required, reason, today)
			}); err != nil {
				return err
			}
		}

		stored, err := tx.AppendExperiment(experiment)
		if err != nil {
			return err
		}
		performed = stored
		entityID = stored.ID
		return nil
	})
	if err != nil {
		return Experiment{}, err
	}
	return performed, nil
}

// Experiments returns the full result history in recorded order.
func (s *Service) Experiments(ctx context.Context) ([]Experiment, error) {
	return s.store.ListExperiments(ctx)
}

// ResultsByRecipe returns the experiments performed with the named recipe.
func (s *Service) ResultsByRecipe(ctx context.Context, recipeName string) ([]Experiment, error) {
	experiments, err := s.store.ListExperiments(ctx)
	if err != nil {
		return nil, err
	}
	var out []Experiment
	for _, experiment := range experiments {
		if experiment.Recipe.Name == recipeName {
			out = append(out, experiment)
		}
	}
	return out, nil
}

// ResultsByResearcher returns the experiments the named researcher took part
// in.
func (s *Service) ResultsByResearcher(ctx context.Context, researcher string) ([]Experiment, error) {
	experiments, err := s.store.ListExperiments(ctx)
	if err != nil {
		return nil, err
	}
	var out []Experiment
	for _, experiment := range experiments {
		for _, person := range experiment.Responsible {
			if person == researcher {
				out = append(out, experiment)
				break
			}
		}
	}
	return out, nil
}

// ResultsByDateRange returns the experiments performed between from and to,
// both inclusive.
func (s *Service) ResultsByDateRange(ctx context.Context, from, to Date) ([]Experiment, error) {
	experiments, err := s.store.ListExperiments(ctx)
	if err != nil {
		return nil, err
	}
	var out []Experiment
	for _, experiment := range experiments {
		if experiment.Date.Before(from) || experiment.Date.After(to) {
			continue
		}
		out = append(out, experiment)
	}
	return out, nil
}

// SuccessRate returns the percentage of successful experiments, optionally
// restricted to one recipe (empty name means all). With no matching
// experiments the rate is zero.
func (s *Service) SuccessRate(ctx context.Context, recipeName string) (float64, error) {
	experiments, err := s.store.ListExperiments(ctx)
	if err != nil {
		return 0, err
	}
	var total, successful int
	for _, experiment := range experiments {
		if recipeName != "" && experiment.Recipe.Name != recipeName {
			continue
		}
		total++
		if experiment.Success {
			successful++
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(successful) / float64(total) * 100, nil
}

// AverageDeviations returns the mean absolute deviation per measurement over
// the whole result history. Measurements with undefined deviations are
// skipped.
func (s *Service) AverageDeviations(ctx context.Context) (map[string]float64, error) {
	experiments, err := s.store.ListExperiments(ctx)
	if err != nil {
		return nil, err
	}
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, experiment := range experiments {
		for measurement, deviation := range experiment.Deviations() {
			if deviation < 0 {
				deviation = -deviation
			}
			sums[measurement] += deviation
			counts[measurement]++
		}
	}
	out := make(map[string]float64, len(sums))
	for measurement, sum := range sums {
		out[measurement] = sum / float64(counts[measurement])
	}
	return out, nil
}
