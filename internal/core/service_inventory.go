package core

import (
	"chemlab/pkg/domain"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// AddReagent registers a new reagent in the catalog.
func (s *Service) AddReagent(ctx context.Context, spec domain.ReagentSpec) (Reagent, error) {
	var created Reagent
	var entityID string
	_, err := s.run(ctx, "add_reagent", &entityID, func(tx Transaction) error {
		reagent, err := domain.NewReagent(spec)
		if err != nil {
			return err
		}
		stored, err := tx.PutReagent(reagent)
		if err != nil {
			return err
		}
		created = stored
		entityID = stored.Name
		return nil
	})
	if err != nil {
		return Reagent{}, err
	}
	return created, nil
}

// RemoveReagent deletes a reagent from the catalog. Reagents referenced by a
// pending order cannot be removed.
func (s *Service) RemoveReagent(ctx context.Context, name string) error {
	entityID := name
	_, err := s.run(ctx, "remove_reagent", &entityID, func(tx Transaction) error {
		return tx.DeleteReagent(name)
	})
	return err
}

// GetReagent returns the reagent with the given name.
func (s *Service) GetReagent(ctx context.Context, name string) (Reagent, error) {
	return s.store.GetReagent(ctx, name)
}

// ListReagents returns all reagents sorted by name.
func (s *Service) ListReagents(ctx context.Context) ([]Reagent, error) {
	return s.store.ListReagents(ctx)
}

// ReagentsByCategory returns the reagents in the given category, sorted by
// name. Category matching is case-insensitive.
func (s *Service) ReagentsByCategory(ctx context.Context, category string) ([]Reagent, error) {
	reagents, err := s.store.ListReagents(ctx)
	if err != nil {
		return nil, err
	}
	var out []Reagent
	for _, reagent := range reagents {
		if strings.EqualFold(reagent.Category, category) {
			out = append(out, reagent)
		}
	}
	return out, nil
}

// ReagentsByLocation returns the reagents stored at the given location,
// sorted by name. Location matching is case-insensitive.
func (s *Service) ReagentsByLocation(ctx context.Context, location string) ([]Reagent, error) {
	reagents, err := s.store.ListReagents(ctx)
	if err != nil {
		return nil, err
	}
	var out []Reagent
	for _, reagent := range reagents {
		if strings.EqualFold(reagent.Location, location) {
			out = append(out, reagent)
		}
	}
	return out, nil
}

// UpdateStock adjusts a reagent's inventory by a signed amount and records
// the movement in its usage history. Debits that would take inventory below
// zero are rejected.
func (s *Service) UpdateStock(ctx context.Context, name string, amount float64, reason string) (Reagent, error) {
	var updated Reagent
	entityID := name
	today := s.today()
	_, err := s.run(ctx, "update_stock", &entityID, func(tx Transaction) error {
		if err := tx.UpdateReagent(name, func(reagent *Reagent) error {
			if err := reagent.ApplyStockDelta(amount, reason, today); err != nil {
				return err
			}
			updated = reagent.Clone()
			return nil
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Reagent{}, err
	}
	return updated, nil
}

// RegisterSupplier adds a supplier to the directory.
func (s *Service) RegisterSupplier(ctx context.Context, supplier Supplier) (Supplier, error) {
	var created Supplier
	entityID := supplier.Name
	_, err := s.run(ctx, "register_supplier", &entityID, func(tx Transaction) error {
		stored, err := tx.PutSupplier(supplier)
		if err != nil {
			return err
		}
		created = stored
		entityID = stored.Name
		return nil
	})
	if err != nil {
		return Supplier{}, err
	}
	return created, nil
}

// AssociateSupplier links a reagent to a supplier. Both must already exist;
// associating an already linked pair is a no-op.
func (s *Service) AssociateSupplier(ctx context.Context, supplierName, reagentName string) error {
	entityID := supplierName
	_, err := s.run(ctx, "associate_supplier", &entityID, func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindReagent(reagentName); !ok {
			return domain.NotFoundError{Entity: domain.EntityReagent, Key: reagentName}
		}
		return tx.UpdateSupplier(supplierName, func(supplier *Supplier) error {
			for _, existing := range supplier.Reagents {
				if existing == reagentName {
					return nil
				}
			}
			supplier.Reagents = append(supplier.Reagents, reagentName)
			return nil
		})
	})
	return err
}

// GetSupplier returns the supplier with the given name.
func (s *Service) GetSupplier(ctx context.Context, name string) (Supplier, error) {
	return s.store.GetSupplier(ctx, name)
}

// ListSuppliers returns all suppliers sorted by name.
func (s *Service) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	return s.store.ListSuppliers(ctx)
}

// PlaceOrder records a pending purchase order for a reagent. The expected
// delivery is computed from the standard lead time.
func (s *Service) PlaceOrder(ctx context.Context, reagentName string, quantity float64, supplierName string) (Order, error) {
	var created Order
	var entityID string
	today := s.today()
	_, err := s.run(ctx, "place_order", &entityID, func(tx Transaction) error {
		if quantity <= 0 {
			return domain.FieldError{Field: "quantity", Reason: "must be positive"}
		}
		if _, ok := tx.Snapshot().FindSupplier(supplierName); !ok {
			return domain.NotFoundError{Entity: domain.EntitySupplier, Key: supplierName}
		}
		order := Order{
			ID:               newOrderID(),
			ReagentName:      reagentName,
			Quantity:         quantity,
			SupplierName:     supplierName,
			OrderDate:        today,
			ExpectedDelivery: today.AddDays(domain.OrderLeadDays),
			Status:           domain.OrderStatusPending,
		}
		stored, err := tx.CreateOrder(order)
		if err != nil {
			return err
		}
		created = stored
		entityID = stored.ID
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return created, nil
}

// ReceiveOrder marks a pending order as received and credits the ordered
// quantity to the reagent's inventory. Orders that are not pending are
// treated as not found.
func (s *Service) ReceiveOrder(ctx context.Context, orderID string) (Order, error) {
	var received Order
	entityID := orderID
	today := s.today()
	_, err := s.run(ctx, "receive_order", &entityID, func(tx Transaction) error {
		order, ok := tx.Snapshot().FindOrder(orderID)
		if !ok || order.Status != domain.OrderStatusPending {
			return domain.NotFoundError{Entity: domain.EntityOrder, Key: orderID}
		}
		if err := tx.UpdateOrder(orderID, func(o *Order) error {
			o.Status = domain.OrderStatusReceived
			o.ReceivedDate = today
			received = *o
			return nil
		}); err != nil {
			return err
		}
		reason := fmt.Sprintf("Order received: %s", orderID)
		return tx.UpdateReagent(order.ReagentName, func(reagent *Reagent) error {
			return reagent.ApplyStockDelta(order.Quantity, reason, today)
		})
	})
	if err != nil {
		return Order{}, err
	}
	return received, nil
}

// GetOrder returns the order with the given identifier.
func (s *Service) GetOrder(ctx context.Context, id string) (Order, error) {
	return s.store.GetOrder(ctx, id)
}

// ListOrders returns all orders sorted by identifier.
func (s *Service) ListOrders(ctx context.Context) ([]Order, error) {
	return s.store.ListOrders(ctx)
}

// PendingOrders returns orders that have not yet been received.
func (s *Service) PendingOrders(ctx context.Context) ([]Order, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Order
	for _, order := range orders {
		if order.Status == domain.OrderStatusPending {
			pending = append(pending, order)
		}
	}
	return pending, nil
}

func newOrderID() string {
	return "ORD-" + uuid.NewString()[:8]
}

// AlertKind classifies an inventory alert.
type AlertKind string

// Inventory alert kinds.
const (
	AlertLowStock AlertKind = "low_stock"
	AlertExpiry   AlertKind = "expiry"
)

// Alert flags a reagent needing attention: stock at or below its minimum
// threshold, or expiry within the warning window.
type Alert struct {
	Kind      AlertKind `json:"kind"`
	Reagent   string    `json:"reagent"`
	Inventory float64   `json:"inventory,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	DaysLeft  int       `json:"days_left,omitempty"`
	Message   string    `json:"message"`
}

// expiryWarningDays is the window within which upcoming expiries are flagged.
const expiryWarningDays = 30

// CheckAlerts scans the catalog for low-stock and near-expiry reagents.
// Already expired reagents are reported with zero days left.
func (s *Service) CheckAlerts(ctx context.Context) ([]Alert, error) {
	reagents, err := s.store.ListReagents(ctx)
	if err != nil {
		return nil, err
	}
	today := s.today()
	var alerts []Alert
	for _, reagent := range reagents {
		if reagent.IsLowStock() {
			alerts = append(alerts, Alert{
				Kind:      AlertLowStock,
				Reagent:   reagent.Name,
				Inventory: reagent.Inventory,
				Threshold: reagent.MinThreshold,
				Message:   fmt.Sprintf("%s stock at %.2f %s (threshold %.2f)", reagent.Name, reagent.Inventory, reagent.Unit, reagent.MinThreshold),
			})
		}
		days, ok := reagent.DaysUntilExpiry(today)
		if !ok {
			continue
		}
		if days <= expiryWarningDays {
			alerts = append(alerts, Alert{
				Kind:     AlertExpiry,
				Reagent:  reagent.Name,
				DaysLeft: days,
				Message:  fmt.Sprintf("%s expires in %d days", reagent.Name, days),
			})
		}
	}
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Reagent != alerts[j].Reagent {
			return alerts[i].Reagent < alerts[j].Reagent
		}
		return alerts[i].Kind < alerts[j].Kind
	})
	return alerts, nil
}
