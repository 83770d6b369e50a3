package core

import (
	"chemlab/pkg/domain"
	"context"
	"fmt"
)

// NewDefaultRulesEngine returns an engine loaded with the built-in laboratory
// rules.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewStockFloorRule())
	engine.Register(NewReagentExpiryRule())
	engine.Register(NewRecipeReagentsRule())
	return engine
}

type stockFloorRule struct{}

// NewStockFloorRule blocks any transaction that would leave a reagent with
// negative inventory.
func NewStockFloorRule() Rule {
	return stockFloorRule{}
}

func (stockFloorRule) Name() string { return "stock_floor" }

func (r stockFloorRule) Evaluate(ctx context.Context, view domain.RuleView, changes []Change) (Result, error) {
	var res Result
	for _, reagent := range view.ListReagents() {
		if reagent.Inventory < 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("reagent %q inventory is negative (%.2f)", reagent.Name, reagent.Inventory),
				Entity:   domain.EntityReagent,
				EntityID: reagent.Name,
			})
		}
	}
	return res, nil
}

type reagentExpiryRule struct{}

// NewReagentExpiryRule blocks recording an experiment whose ingredients were
// expired on the experiment date.
func NewReagentExpiryRule() Rule {
	return reagentExpiryRule{}
}

func (reagentExpiryRule) Name() string { return "reagent_expiry" }

func (r reagentExpiryRule) Evaluate(ctx context.Context, view domain.RuleView, changes []Change) (Result, error) {
	var res Result
	for _, change := range changes {
		if change.Entity != domain.EntityExperiment || change.Action != domain.ActionCreate {
			continue
		}
		experiment, ok := change.After.(Experiment)
		if !ok {
			continue
		}
		for name := range experiment.Recipe.Reagents {
			reagent, found := view.FindReagent(name)
			if !found {
				continue
			}
			if reagent.IsExpired(experiment.Date) {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     r.Name(),
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("experiment %q consumed expired reagent %q", experiment.Recipe.Name, name),
					Entity:   domain.EntityExperiment,
					EntityID: experiment.ID,
				})
			}
		}
	}
	return res, nil
}

type recipeReagentsRule struct{}

// NewRecipeReagentsRule blocks recipes with no ingredients or non-positive
// ingredient quantities.
func NewRecipeReagentsRule() Rule {
	return recipeReagentsRule{}
}

func (recipeReagentsRule) Name() string { return "recipe_reagents" }

func (r recipeReagentsRule) Evaluate(ctx context.Context, view domain.RuleView, changes []Change) (Result, error) {
	var res Result
	for _, change := range changes {
		if change.Entity != domain.EntityRecipe || change.Action == domain.ActionDelete {
			continue
		}
		recipe, ok := change.After.(Recipe)
		if !ok {
			continue
		}
		if len(recipe.Reagents) == 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("recipe %q declares no reagents", recipe.Name),
				Entity:   domain.EntityRecipe,
				EntityID: recipe.Name,
			})
			continue
		}
		for name, quantity := range recipe.Reagents {
			if quantity <= 0 {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     r.Name(),
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("recipe %q requires a positive quantity of %q", recipe.Name, name),
					Entity:   domain.EntityRecipe,
					EntityID: recipe.Name,
				})
			}
		}
	}
	return res, nil
}
