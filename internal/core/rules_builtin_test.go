package core

import (
	"chemlab/pkg/domain"
	"context"
	"errors"
	"testing"
	"time"
)

func TestStockFloorRule(t *testing.T) {
	store := memoryStoreWithReagent(t, "Ethanol", 100)
	svc := NewService(store, WithClock(ClockFunc(func() time.Time { return testNow })))

	// Bypass ApplyStockDelta so the rule is the only guard.
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		return tx.UpdateReagent("Ethanol", func(reagent *Reagent) error {
			reagent.Inventory = -5
			return nil
		})
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	if violation.Result.Violations[0].Rule != "stock_floor" {
		t.Fatalf("unexpected violation: %+v", violation.Result.Violations[0])
	}

	reagent, err := svc.GetReagent(context.Background(), "Ethanol")
	if err != nil {
		t.Fatalf("get reagent: %v", err)
	}
	if reagent.Inventory != 100 {
		t.Fatalf("blocked transaction must not commit, got %.2f", reagent.Inventory)
	}
}

func TestReagentExpiryRule(t *testing.T) {
	store := memoryStoreWithReagent(t, "Stale", 100)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		return tx.UpdateReagent("Stale", func(reagent *Reagent) error {
			reagent.ExpiryDate = domain.DateOf(testNow).AddDays(-1)
			return nil
		})
	})
	if err != nil {
		t.Fatalf("set expiry: %v", err)
	}

	recipe, err := domain.NewRecipe(domain.RecipeSpec{
		Name:            "Extraction",
		Objective:       "test",
		Reagents:        map[string]float64{"Stale": 5},
		ExpectedResults: map[string]domain.Range{"ph": {Min: 6, Max: 8}},
		Procedure:       []string{"mix"},
	})
	if err != nil {
		t.Fatalf("new recipe: %v", err)
	}
	experiment, err := domain.NewExperiment(recipe, []string{"Rivera"}, domain.DateOf(testNow))
	if err != nil {
		t.Fatalf("new experiment: %v", err)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.AppendExperiment(experiment)
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	if violation.Result.Violations[0].Rule != "reagent_expiry" {
		t.Fatalf("unexpected violation: %+v", violation.Result.Violations[0])
	}
}

func TestRecipeReagentsRule(t *testing.T) {
	store := memoryStoreWithReagent(t, "Ethanol", 100)

	t.Run("empty reagent set", func(t *testing.T) {
		_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
			_, err := tx.PutRecipe(Recipe{Name: "Empty", Objective: "x", Procedure: []string{"mix"}})
			return err
		})
		var violation domain.RuleViolationError
		if !errors.As(err, &violation) {
			t.Fatalf("expected RuleViolationError, got %v", err)
		}
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
			_, err := tx.PutRecipe(Recipe{
				Name:      "Zero",
				Objective: "x",
				Reagents:  map[string]float64{"Ethanol": 0},
				Procedure: []string{"mix"},
			})
			return err
		})
		var violation domain.RuleViolationError
		if !errors.As(err, &violation) {
			t.Fatalf("expected RuleViolationError, got %v", err)
		}
		if violation.Result.Violations[0].Rule != "recipe_reagents" {
			t.Fatalf("unexpected violation: %+v", violation.Result.Violations[0])
		}
	})
}

func memoryStoreWithReagent(t *testing.T, name string, inventory float64) PersistentStore {
	t.Helper()
	svc := NewInMemoryService(nil, WithClock(ClockFunc(func() time.Time { return testNow })))
	seedReagent(t, svc, name, inventory, "")
	return svc.Store()
}
