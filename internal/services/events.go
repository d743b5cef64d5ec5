package services

import (
	"context"
	"sync"

	"canteen/internal/amqp"
	"canteen/internal/log"
)

// Events fans ledger events out to in-process listeners and the broker.
// Publishing is best effort: the write it describes has already committed.
// A nil *Events drops everything.
type Events struct {
	publisher EventPublisher
	logger    *log.Logger

	mu        sync.RWMutex
	listeners []func(context.Context, *amqp.LedgerEvent)
}

// NewEvents returns an event hub. publisher may be nil when no broker is
// configured.
func NewEvents(publisher EventPublisher, logger *log.Logger) *Events {
	if logger == nil {
		logger = log.NewDefault()
	}
	return &Events{
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentAMQP),
	}
}

// Subscribe registers fn to run synchronously on every emitted event.
func (e *Events) Subscribe(fn func(context.Context, *amqp.LedgerEvent)) {
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

func (e *Events) Emit(ctx context.Context, ev *amqp.LedgerEvent) {
	if e == nil {
		return
	}

	e.mu.RLock()
	listeners := e.listeners
	e.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, ev)
	}

	if e.publisher == nil {
		e.logger.DebugContext(ctx, "No broker configured, skipping ledger event",
			log.FieldEventType, string(ev.Type))
		return
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventType, string(ev.Type),
			"entity_id", ev.EntityID,
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldOperation, log.OpPublish)
	}
}
