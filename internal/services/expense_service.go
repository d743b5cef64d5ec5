package services

import (
	"context"
	"fmt"

	"canteen/internal/amqp"
	"canteen/internal/core"
	"canteen/internal/log"
)

// ExpenseService manages business expenses. Every operation is manager only.
type ExpenseService struct {
	expenses ExpenseRepository
	events   *Events
	logger   *log.Logger
}

func NewExpenseService(expenses ExpenseRepository, events *Events) *ExpenseService {
	return &ExpenseService{
		expenses: expenses,
		events:   events,
		logger:   log.NewDefault().WithComponent(log.ComponentExpense),
	}
}

func (s *ExpenseService) List(ctx context.Context, caller core.Identity, filter core.ExpenseFilter) ([]core.Expense, error) {
	if err := requireManager(caller, "list expenses"); err != nil {
		return nil, err
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, core.NewValidationError("category", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", filter.Category))
	}
	list, err := s.expenses.ListExpenses(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return list, nil
}

func (s *ExpenseService) Get(ctx context.Context, caller core.Identity, id int64) (core.Expense, error) {
	if err := requireManager(caller, "view expense"); err != nil {
		return core.Expense{}, err
	}
	return s.expenses.GetExpense(ctx, id)
}

// Create saves an expense. A missing category defaults to Misc.
func (s *ExpenseService) Create(ctx context.Context, caller core.Identity, e core.Expense) (core.Expense, error) {
	if err := requireManager(caller, "create expense"); err != nil {
		return core.Expense{}, err
	}
	if e.Category == "" {
		e.Category = core.CategoryMisc
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	created, err := s.expenses.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense created",
		log.FieldExpenseID, created.ID,
		log.FieldCategory, string(created.Category),
		log.FieldAmount, created.Amount.String(),
		log.FieldOperation, log.OpCreate)

	ev := amqp.NewLedgerEvent(amqp.EventExpenseCreated, created.ID)
	ev.Amount = created.Amount.String()
	s.events.Emit(ctx, ev)
	return created, nil
}

func (s *ExpenseService) Update(ctx context.Context, caller core.Identity, e core.Expense) (core.Expense, error) {
	if err := requireManager(caller, "update expense"); err != nil {
		return core.Expense{}, err
	}
	if e.Category == "" {
		e.Category = core.CategoryMisc
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	updated, err := s.expenses.UpdateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense updated",
		log.FieldExpenseID, updated.ID,
		log.FieldAmount, updated.Amount.String(),
		log.FieldOperation, log.OpUpdate)

	ev := amqp.NewLedgerEvent(amqp.EventExpenseUpdated, updated.ID)
	ev.Amount = updated.Amount.String()
	s.events.Emit(ctx, ev)
	return updated, nil
}

func (s *ExpenseService) Delete(ctx context.Context, caller core.Identity, id int64) error {
	if err := requireManager(caller, "delete expense"); err != nil {
		return err
	}
	if err := s.expenses.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense deleted", log.FieldExpenseID, id, log.FieldOperation, log.OpDelete)

	s.events.Emit(ctx, amqp.NewLedgerEvent(amqp.EventExpenseDeleted, id))
	return nil
}
