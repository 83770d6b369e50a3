package core

import (
	"chemlab/pkg/domain"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	opts = append([]ServiceOption{WithClock(ClockFunc(func() time.Time { return testNow }))}, opts...)
	return NewInMemoryService(nil, opts...)
}

func seedReagent(t *testing.T, svc *Service, name string, inventory float64, expiry string) Reagent {
	t.Helper()
	reagent, err := svc.AddReagent(context.Background(), domain.ReagentSpec{
		Name:         name,
		Description:  "test reagent",
		Cost:         2.5,
		Category:     "acids",
		Inventory:    inventory,
		Unit:         "ml",
		MinThreshold: 10,
		ExpiryDate:   expiry,
	})
	if err != nil {
		t.Fatalf("seed reagent %s: %v", name, err)
	}
	return reagent
}

func seedRecipe(t *testing.T, svc *Service, name string, reagents map[string]float64) Recipe {
	t.Helper()
	recipe, err := svc.AddRecipe(context.Background(), domain.RecipeSpec{
		Name:      name,
		Objective: "test objective",
		Reagents:  reagents,
		ExpectedResults: map[string]domain.Range{
			"ph": {Min: 6, Max: 8},
		},
		Procedure: []string{"mix", "observe"},
	})
	if err != nil {
		t.Fatalf("seed recipe %s: %v", name, err)
	}
	return recipe
}

func TestAddAndGetReagent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created := seedReagent(t, svc, "Ethanol", 100, "")
	if created.Location != domain.DefaultLocation {
		t.Fatalf("expected default location, got %q", created.Location)
	}

	got, err := svc.GetReagent(ctx, "Ethanol")
	if err != nil {
		t.Fatalf("get reagent: %v", err)
	}
	if got.Inventory != 100 {
		t.Fatalf("expected inventory 100, got %.2f", got.Inventory)
	}
}

func TestAddReagentValidation(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.AddReagent(context.Background(), domain.ReagentSpec{Name: "  "})
	if err == nil {
		t.Fatal("expected validation error")
	}
	var fieldErr domain.FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("expected FieldError, got %T", err)
	}
	if reagents, _ := svc.ListReagents(context.Background()); len(reagents) != 0 {
		t.Fatalf("expected no stored reagents, got %d", len(reagents))
	}
}

func TestRemoveReagent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedReagent(t, svc, "Acetone", 50, "")

	if err := svc.RemoveReagent(ctx, "Acetone"); err != nil {
		t.Fatalf("remove reagent: %v", err)
	}
	if _, err := svc.GetReagent(ctx, "Acetone"); err == nil {
		t.Fatal("expected reagent to be gone")
	}

	err := svc.RemoveReagent(ctx, "Acetone")
	var notFound domain.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestUpdateStock(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedReagent(t, svc, "Ethanol", 100, "")

	t.Run("debit", func(t *testing.T) {
		updated, err := svc.UpdateStock(ctx, "Ethanol", -30, "Spill cleanup")
		if err != nil {
			t.Fatalf("update stock: %v", err)
		}
		if updated.Inventory != 70 {
			t.Fatalf("expected inventory 70, got %.2f", updated.Inventory)
		}
		if len(updated.UsageHistory) != 1 || updated.UsageHistory[0].Reason != "Spill cleanup" {
			t.Fatalf("expected one usage entry, got %+v", updated.UsageHistory)
		}
	})

	t.Run("credit", func(t *testing.T) {
		updated, err := svc.UpdateStock(ctx, "Ethanol", 10, "Restock")
		if err != nil {
			t.Fatalf("update stock: %v", err)
		}
		if updated.Inventory != 80 {
			t.Fatalf("expected inventory 80, got %.2f", updated.Inventory)
		}
		if len(updated.PurchaseHistory) != 1 {
			t.Fatalf("expected one purchase entry, got %d", len(updated.PurchaseHistory))
		}
	})

	t.Run("insufficient", func(t *testing.T) {
		_, err := svc.UpdateStock(ctx, "Ethanol", -500, "Oops")
		var insufficient domain.InsufficientStockError
		if !errors.As(err, &insufficient) {
			t.Fatalf("expected InsufficientStockError, got %v", err)
		}
		got, _ := svc.GetReagent(ctx, "Ethanol")
		if got.Inventory != 80 {
			t.Fatalf("failed debit must not change inventory, got %.2f", got.Inventory)
		}
	})
}

func TestReagentsByCategoryAndLocation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedReagent(t, svc, "Ethanol", 100, "")
	if _, err := svc.AddReagent(ctx, domain.ReagentSpec{
		Name: "Agar", Description: "growth medium", Cost: 1, Category: "media",
		Inventory: 5, Unit: "g", MinThreshold: 1, Location: "Cold room",
	}); err != nil {
		t.Fatalf("add reagent: %v", err)
	}

	byCategory, err := svc.ReagentsByCategory(ctx, "Acids")
	if err != nil {
		t.Fatalf("by category: %v", err)
	}
	if len(byCategory) != 1 || byCategory[0].Name != "Ethanol" {
		t.Fatalf("unexpected category result: %+v", byCategory)
	}

	byLocation, err := svc.ReagentsByLocation(ctx, "cold room")
	if err != nil {
		t.Fatalf("by location: %v", err)
	}
	if len(byLocation) != 1 || byLocation[0].Name != "Agar" {
		t.Fatalf("unexpected location result: %+v", byLocation)
	}
}

func TestSupplierLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedReagent(t, svc, "Ethanol", 100, "")

	if _, err := svc.RegisterSupplier(ctx, Supplier{Name: "LabChem", ContactInfo: map[string]string{"email": "sales@labchem.test"}}); err != nil {
		t.Fatalf("register supplier: %v", err)
	}

	if err := svc.AssociateSupplier(ctx, "LabChem", "Ethanol"); err != nil {
		t.Fatalf("associate supplier: %v", err)
	}
	if err := svc.AssociateSupplier(ctx, "LabChem", "Ethanol"); err != nil {
		t.Fatalf("re-associate should be a no-op: %v", err)
	}
	supplier, err := svc.GetSupplier(ctx, "LabChem")
	if err != nil {
		t.Fatalf("get supplier: %v", err)
	}
	if len(supplier.Reagents) != 1 || supplier.Reagents[0] != "Ethanol" {
		t.Fatalf("unexpected supplier reagents: %+v", supplier.Reagents)
	}

	var notFound domain.NotFoundError
	if err := svc.AssociateSupplier(ctx, "LabChem", "Unknown"); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError for unknown reagent, got %v", err)
	}
	if err := svc.AssociateSupplier(ctx, "Unknown", "Ethanol"); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError for unknown supplier, got %v", err)
	}
}

func TestPlaceAndReceiveOrder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedReagent(t, svc, "Ethanol", 100, "")
	if _, err := svc.RegisterSupplier(ctx, Supplier{Name: "LabChem"}); err != nil {
		t.Fatalf("register supplier: %v", err)
	}

	order, err := svc.PlaceOrder(ctx, "Ethanol", 40, "LabChem")
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if !strings.HasPrefix(order.ID, "ORD-") {
		t.Fatalf("expected ORD- prefix, got %q", order.ID)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending status, got %q", order.Status)
	}
	wantDelivery := domain.DateOf(testNow).AddDays(domain.OrderLeadDays)
	if !order.ExpectedDelivery.Equal(wantDelivery) {
		t.Fatalf("expected delivery %s, got %s", wantDelivery, order.ExpectedDelivery)
	}

	pending, err := svc.PendingOrders(ctx)
	if err != nil {
		t.Fatalf("pending orders: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending order, got %d", len(pending))
	}

	received, err := svc.ReceiveOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("receive order: %v", err)
	}
	if received.Status != domain.OrderStatusReceived {
		t.Fatalf("expected received status, got %q", received.Status)
	}
	reagent, _ := svc.GetReagent(ctx, "Ethanol")
	if reagent.Inventory != 140 {
		t.Fatalf("expected inventory 140 after receipt, got %.2f", reagent.Inventory)
	}

	var notFound domain.NotFoundError
	if _, err := svc.ReceiveOrder(ctx, order.ID); !errors.As(err, &notFound) {
		t.Fatalf("second receipt should fail as not found, got %v", err)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedReagent(t, svc, "Ethanol", 100, "")
	if _, err := svc.RegisterSupplier(ctx, Supplier{Name: "LabChem"}); err != nil {
		t.Fatalf("register supplier: %v", err)
	}

	if _, err := svc.PlaceOrder(ctx, "Ethanol", 0, "LabChem"); err == nil {
		t.Fatal("expected error for non-positive quantity")
	}
	var notFound domain.NotFoundError
	if _, err := svc.PlaceOrder(ctx, "Ethanol", 5, "Unknown"); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError for unknown supplier, got %v", err)
	}
	if _, err := svc.PlaceOrder(ctx, "Unknown", 5, "LabChem"); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError for unknown reagent, got %v", err)
	}
}

func TestCheckAlerts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seedReagent(t, svc, "Plenty", 100, "")
	if _, err := svc.AddReagent(ctx, domain.ReagentSpec{
		Name: "Scarce", Description: "low stock", Cost: 1, Category: "acids",
		Inventory: 5, Unit: "ml", MinThreshold: 10,
	}); err != nil {
		t.Fatalf("add reagent: %v", err)
	}
	soon := domain.DateOf(testNow).AddDays(10).String()
	seedReagent(t, svc, "Aging", 50, soon)
	past := domain.DateOf(testNow).AddDays(-3).String()
	seedReagent(t, svc, "Stale", 50, past)

	alerts, err := svc.CheckAlerts(ctx)
	if err != nil {
		t.Fatalf("check alerts: %v", err)
	}

	byReagent := make(map[string][]Alert)
	for _, alert := range alerts {
		byReagent[alert.Reagent] = append(byReagent[alert.Reagent], alert)
	}
	if len(byReagent["Plenty"]) != 0 {
		t.Fatalf("healthy reagent should not alert: %+v", byReagent["Plenty"])
	}
	if len(byReagent["Scarce"]) != 1 || byReagent["Scarce"][0].Kind != AlertLowStock {
		t.Fatalf("expected low stock alert for Scarce, got %+v", byReagent["Scarce"])
	}
	if len(byReagent["Aging"]) != 1 || byReagent["Aging"][0].Kind != AlertExpiry || byReagent["Aging"][0].DaysLeft != 10 {
		t.Fatalf("expected 10-day expiry alert for Aging, got %+v", byReagent["Aging"])
	}
	if len(byReagent["Stale"]) != 1 || byReagent["Stale"][0].DaysLeft != 0 {
		t.Fatalf("expired reagent should report zero days left, got %+v", byReagent["Stale"])
	}
}
