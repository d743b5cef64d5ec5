package services

import (
	"context"
	"fmt"

	"canteen/internal/amqp"
	"canteen/internal/core"
	"canteen/internal/ledger"
	"canteen/internal/log"
)

// OrderService applies the access rules around the ledger engine.
type OrderService struct {
	ledger *ledger.Engine
	orders OrderRepository
	users  UserRepository
	events *Events
	logger *log.Logger
}

func NewOrderService(engine *ledger.Engine, orders OrderRepository, users UserRepository, events *Events) *OrderService {
	return &OrderService{
		ledger: engine,
		orders: orders,
		users:  users,
		events: events,
		logger: log.NewDefault().WithComponent(log.ComponentOrder),
	}
}

// Place creates an order for the calling student. The student is always the
// caller; it is never taken from the request.
func (s *OrderService) Place(ctx context.Context, caller core.Identity, foodID int64, quantity int) (core.Order, error) {
	if !caller.IsStudent {
		return core.Order{}, core.NewPermissionDenied("place order", "Only students can place orders.")
	}

	order, err := s.ledger.PlaceOrder(ctx, caller.UserID, foodID, quantity)
	if err != nil {
		return core.Order{}, fmt.Errorf("place order: %w", err)
	}

	ev := amqp.NewLedgerEvent(amqp.EventOrderCreated, order.ID)
	ev.StudentID = order.StudentID
	ev.Amount = order.TotalPrice.String()
	s.events.Emit(ctx, ev)
	return order, nil
}

// List returns every order for managers and only the caller's own otherwise.
func (s *OrderService) List(ctx context.Context, caller core.Identity, filter core.OrderFilter) ([]core.Order, error) {
	if !caller.CanManage() {
		own := caller.UserID
		filter.StudentID = &own
	}
	orders, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Get hides other students' orders behind a not-found error.
func (s *OrderService) Get(ctx context.Context, caller core.Identity, id int64) (core.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return core.Order{}, err
	}
	if !visibleTo(caller, order) {
		return core.Order{}, core.NewReferenceError("order", id)
	}
	return order, nil
}

// Delete removes an order. Managers may delete any order, students their own.
func (s *OrderService) Delete(ctx context.Context, caller core.Identity, id int64) error {
	removed, err := s.ledger.DeleteOrder(ctx, id, func(o core.Order) error {
		if !visibleTo(caller, o) {
			return core.NewReferenceError("order", id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	s.logger.InfoContext(ctx, "Order deleted",
		log.FieldOrderID, id,
		log.FieldStudentID, removed.StudentID,
		log.FieldOperation, log.OpDelete)

	ev := amqp.NewLedgerEvent(amqp.EventOrderDeleted, id)
	ev.StudentID = removed.StudentID
	ev.Amount = removed.TotalPrice.String()
	s.events.Emit(ctx, ev)
	return nil
}

// Clear confirms payment of an order. Only managers may clear.
func (s *OrderService) Clear(ctx context.Context, caller core.Identity, id int64) (core.Order, error) {
	if err := requireManager(caller, "clear order"); err != nil {
		return core.Order{}, err
	}

	order, changed, err := s.ledger.ClearOrder(ctx, id)
	if err != nil {
		return core.Order{}, fmt.Errorf("clear order: %w", err)
	}
	if !changed {
		s.logger.InfoContext(ctx, "Order already cleared", log.FieldOrderID, id)
		return order, nil
	}
	s.logger.InfoContext(ctx, "Order cleared",
		log.FieldOrderID, id,
		log.FieldStudentID, order.StudentID,
		log.FieldAmount, order.TotalPrice.String(),
		log.FieldOperation, log.OpClear)

	ev := amqp.NewLedgerEvent(amqp.EventOrderCleared, id)
	ev.StudentID = order.StudentID
	ev.Amount = order.TotalPrice.String()
	s.events.Emit(ctx, ev)
	return order, nil
}

// Due returns the outstanding balance of the calling student.
func (s *OrderService) Due(ctx context.Context, caller core.Identity) (core.Money, error) {
	if !caller.IsStudent {
		return core.Money{}, core.NewPermissionDenied("view dues", "Only students can view dues.")
	}
	u, err := s.users.GetUser(ctx, caller.UserID)
	if err != nil {
		return core.Money{}, fmt.Errorf("load student: %w", err)
	}
	return u.DueAmount, nil
}

func visibleTo(caller core.Identity, o core.Order) bool {
	return caller.CanManage() || o.StudentID == caller.UserID
}
