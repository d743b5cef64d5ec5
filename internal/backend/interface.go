// Package backend builds the store and event publisher selected by the
// configuration.
package backend

import (
	"context"

	"canteen/internal/amqp"
	"canteen/internal/ledger"
	"canteen/internal/report"
	"canteen/internal/services"
)

// Store is everything the application needs from persistence.
type Store interface {
	ledger.Store
	report.Source
	services.UserRepository
	services.FoodRepository
	services.OrderRepository
	services.ExpenseRepository

	Ping(ctx context.Context) error
	Close() error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result holds what the factory built. Publisher and Broker are nil when no
// broker is configured or reachable. Broker is the same client as Publisher,
// exposed for consumers.
type Result struct {
	Store     Store
	Publisher services.EventPublisher
	Broker    *amqp.Client
	Cleanup   CleanupFunc
}

type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory specific; seed files are read from here
	DataDirectory string

	// AMQP is optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
