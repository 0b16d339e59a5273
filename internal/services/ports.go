// Package services orchestrates the transaction store, the aggregation
// engine and event publishing.
package services

import (
	"context"

	"mycontrol/internal/amqp"
	"mycontrol/internal/core"
)

// TransactionStore persists transactions. Lookups of unknown IDs return
// core.ErrNotFound.
type TransactionStore interface {
	Create(ctx context.Context, t *core.Transaction) error
	Get(ctx context.Context, id int64) (core.Transaction, error)
	Update(ctx context.Context, t core.Transaction) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f core.Filter) ([]core.Transaction, error)
}

// UserStore persists accounts.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	CreateUser(ctx context.Context, u *core.User) error
}

// EventPublisher announces transaction changes.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}
