package services

import (
	"context"
	"fmt"

	"canteen/internal/amqp"
	"canteen/internal/core"
	"canteen/internal/ledger"
	"canteen/internal/log"
)

type FoodService struct {
	foods  FoodRepository
	ledger *ledger.Engine
	events *Events
	logger *log.Logger
}

func NewFoodService(foods FoodRepository, engine *ledger.Engine, events *Events) *FoodService {
	return &FoodService{
		foods:  foods,
		ledger: engine,
		events: events,
		logger: log.NewDefault().WithComponent(log.ComponentFood),
	}
}

func (s *FoodService) List(ctx context.Context, available *bool) ([]core.FoodItem, error) {
	foods, err := s.foods.ListFoods(ctx, available)
	if err != nil {
		return nil, fmt.Errorf("list foods: %w", err)
	}
	return foods, nil
}

func (s *FoodService) Get(ctx context.Context, id int64) (core.FoodItem, error) {
	return s.foods.GetFood(ctx, id)
}

func (s *FoodService) Create(ctx context.Context, caller core.Identity, f core.FoodItem) (core.FoodItem, error) {
	if err := requireManager(caller, "create food"); err != nil {
		return core.FoodItem{}, err
	}
	if err := f.Validate(); err != nil {
		return core.FoodItem{}, err
	}

	created, err := s.foods.CreateFood(ctx, f)
	if err != nil {
		return core.FoodItem{}, fmt.Errorf("create food: %w", err)
	}
	s.logger.InfoContext(ctx, "Food created",
		log.FieldFoodID, created.ID,
		"name", created.Name,
		log.FieldOperation, log.OpCreate)
	return created, nil
}

// Update replaces a food's fields. Existing order totals keep the price they
// were created with.
func (s *FoodService) Update(ctx context.Context, caller core.Identity, f core.FoodItem) (core.FoodItem, error) {
	if err := requireManager(caller, "update food"); err != nil {
		return core.FoodItem{}, err
	}
	if err := f.Validate(); err != nil {
		return core.FoodItem{}, err
	}

	updated, err := s.foods.UpdateFood(ctx, f)
	if err != nil {
		return core.FoodItem{}, fmt.Errorf("update food: %w", err)
	}
	s.logger.InfoContext(ctx, "Food updated",
		log.FieldFoodID, updated.ID,
		log.FieldOperation, log.OpUpdate)

	s.events.Emit(ctx, amqp.NewLedgerEvent(amqp.EventFoodUpdated, updated.ID))
	return updated, nil
}

// Delete removes the food and every order for it, adjusting the dues of the
// students concerned.
func (s *FoodService) Delete(ctx context.Context, caller core.Identity, id int64) error {
	if err := requireManager(caller, "delete food"); err != nil {
		return err
	}
	if _, err := s.ledger.RemoveFood(ctx, id); err != nil {
		return fmt.Errorf("delete food: %w", err)
	}
	s.events.Emit(ctx, amqp.NewLedgerEvent(amqp.EventFoodDeleted, id))
	return nil
}
