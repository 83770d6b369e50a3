package core

import (
	"chemlab/pkg/domain"
	"context"
	"sort"
)

// AddRecipe registers a new recipe in the catalog.
func (s *Service) AddRecipe(ctx context.Context, spec domain.RecipeSpec) (Recipe, error) {
	var created Recipe
	var entityID string
	_, err := s.run(ctx, "add_recipe", &entityID, func(tx Transaction) error {
		recipe, err := domain.NewRecipe(spec)
		if err != nil {
			return err
		}
		stored, err := tx.PutRecipe(recipe)
		if err != nil {
			return err
		}
		created = stored
		entityID = stored.Name
		return nil
	})
	if err != nil {
		return Recipe{}, err
	}
	return created, nil
}

// RemoveRecipe deletes a recipe from the catalog. Past experiments keep their
// embedded copy of the recipe.
func (s *Service) RemoveRecipe(ctx context.Context, name string) error {
	entityID := name
	_, err := s.run(ctx, "remove_recipe", &entityID, func(tx Transaction) error {
		return tx.DeleteRecipe(name)
	})
	return err
}

// GetRecipe returns the recipe with the given name.
func (s *Service) GetRecipe(ctx context.Context, name string) (Recipe, error) {
	return s.store.GetRecipe(ctx, name)
}

// ListRecipes returns all recipes sorted by name.
func (s *Service) ListRecipes(ctx context.Context) ([]Recipe, error) {
	return s.store.ListRecipes(ctx)
}

// ReagentCheck reports the availability of one recipe ingredient.
type ReagentCheck struct {
	Reagent    string  `json:"reagent"`
	Required   float64 `json:"required"`
	Available  float64 `json:"available"`
	Exists     bool    `json:"exists"`
	Sufficient bool    `json:"sufficient"`
	Expired    bool    `json:"expired"`
	OK         bool    `json:"ok"`
}

// Feasibility summarizes whether a recipe could run against current stock.
type Feasibility struct {
	Recipe        string         `json:"recipe"`
	Feasible      bool           `json:"feasible"`
	EstimatedCost float64        `json:"estimated_cost"`
	CostKnown     bool           `json:"cost_known"`
	Checks        []ReagentCheck `json:"checks"`
}

// RecipeFeasibility checks a recipe against the current catalog without
// consuming anything: every ingredient must exist, be unexpired, and be in
// sufficient stock. The estimated cost is reported only when every ingredient
// exists.
func (s *Service) RecipeFeasibility(ctx context.Context, name string) (Feasibility, error) {
	var feasibility Feasibility
	err := s.store.View(ctx, func(view TransactionView) error {
		recipe, ok := view.FindRecipe(name)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityRecipe, Key: name}
		}
		today := s.today()
		feasibility = Feasibility{Recipe: recipe.Name, Feasible: true}

		names := make([]string, 0, len(recipe.Reagents))
		for reagentName := range recipe.Reagents {
			names = append(names, reagentName)
		}
		sort.Strings(names)

		catalog := make(map[string]Reagent, len(names))
		allExist := true
		for _, reagentName := range names {
			required := recipe.Reagents[reagentName]
			check := ReagentCheck{Reagent: reagentName, Required: required}
			if reagent, ok := view.FindReagent(reagentName); ok {
				check.Exists = true
				check.Available = reagent.Inventory
				check.Sufficient = reagent.Inventory >= required
				check.Expired = reagent.IsExpired(today)
				catalog[reagentName] = reagent
			} else {
				allExist = false
			}
			check.OK = check.Exists && check.Sufficient && !check.Expired
			if !check.OK {
				feasibility.Feasible = false
			}
			feasibility.Checks = append(feasibility.Checks, check)
		}
		if allExist {
			cost, err := recipe.TotalCost(catalog)
			if err == nil {
				feasibility.EstimatedCost = cost
				feasibility.CostKnown = true
			}
		}
		return nil
	})
	if err != nil {
		return Feasibility{}, err
	}
	return feasibility, nil
}
