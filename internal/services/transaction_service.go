package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mycontrol/internal/aggregate"
	"mycontrol/internal/amqp"
	"mycontrol/internal/core"
)

// TransactionService handles transaction writes and announces each change.
type TransactionService struct {
	store     TransactionStore
	publisher EventPublisher
	now       func() time.Time
}

// NewTransactionService wires a store and an optional publisher.
func NewTransactionService(store TransactionStore, publisher EventPublisher) *TransactionService {
	return &TransactionService{store: store, publisher: publisher, now: time.Now}
}

// Create validates in and stores it as an open transaction.
func (s *TransactionService) Create(ctx context.Context, userID int64, in core.NewTransaction) (core.Transaction, error) {
	t, err := in.Build(userID)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.Create(ctx, &t); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.publish(ctx, t.ID, amqp.ActionCreated, t.DueDate)
	return t, nil
}

func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.Get(ctx, id)
}

// List returns transactions matching f. A month outside 1-12 is rejected.
func (s *TransactionService) List(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	if f.Month != 0 {
		year := f.Year
		if year == 0 {
			year = s.now().Year()
		}
		if err := aggregate.ValidatePeriod(f.Month, year); err != nil {
			return nil, err
		}
	} else if f.Year != 0 {
		if err := aggregate.ValidateYear(f.Year); err != nil {
			return nil, err
		}
	}
	txs, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs, nil
}

// Update applies p to transaction id on behalf of userID.
func (s *TransactionService) Update(ctx context.Context, userID, id int64, p core.TransactionPatch) (core.Transaction, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	before := t
	if err := t.Apply(p, s.now(), userID); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.Update(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	action := amqp.ActionUpdated
	if !before.IsPaid() && t.IsPaid() {
		action = amqp.ActionPaid
	}
	s.publish(ctx, t.ID, action, t.DueDate)
	if before.DueDate.Year() != t.DueDate.Year() {
		// The old year's report lost a row too.
		s.publish(ctx, t.ID, action, before.DueDate)
	}
	return s.store.Get(ctx, id)
}

// MarkPaid settles transaction id. Settling an already paid transaction
// keeps its original paid date.
func (s *TransactionService) MarkPaid(ctx context.Context, userID, id int64) (core.Transaction, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	wasPaid := t.IsPaid()
	t.MarkPaid(s.now(), userID)
	if err := s.store.Update(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("mark transaction paid: %w", err)
	}
	if !wasPaid {
		s.publish(ctx, t.ID, amqp.ActionPaid, t.DueDate)
	}
	return s.store.Get(ctx, id)
}

// Delete removes transaction id permanently.
func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, id, amqp.ActionDeleted, t.DueDate)
	return nil
}

func (s *TransactionService) publish(ctx context.Context, id int64, action amqp.Action, due time.Time) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping event", "id", id, "action", action)
		return
	}
	ev := amqp.NewTransactionEvent(id, action, due)
	if err := s.publisher.PublishTransactionEvent(ctx, ev); err != nil {
		// The write already succeeded; reports catch up on the next schedule.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"id", id, "action", action, "error", err)
	}
}
