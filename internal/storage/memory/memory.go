// Package memory is an in-process transaction and user store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mycontrol/internal/core"
)

type Store struct {
	mu     sync.Mutex
	now    func() time.Time
	nextID int64
	items  []core.Transaction
	users  []core.User
}

// New returns an empty store. now defaults to time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{now: now}
}

// Create stores a copy of t, assigning the next ID. IDs are never reused.
func (s *Store) Create(_ context.Context, t *core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	stamp := s.now().UTC()
	t.ID = s.nextID
	t.CreatedAt = stamp
	t.UpdatedAt = stamp
	s.items = append(s.items, clone(*t))
	return nil
}

func (s *Store) Get(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Transaction{}, core.ErrNotFound
	}
	return clone(s.items[i]), nil
}

func (s *Store) Update(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(t.ID)
	if i < 0 {
		return core.ErrNotFound
	}
	t.CreatedAt = s.items[i].CreatedAt
	t.CreatedBy = s.items[i].CreatedBy
	t.UpdatedAt = s.now().UTC()
	s.items[i] = clone(t)
	return nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.ErrNotFound
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

// List returns copies of the matching transactions, newest due date first.
func (s *Store) List(_ context.Context, f core.Filter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var out []core.Transaction
	for _, t := range s.items {
		if f.Matches(t, now) {
			out = append(out, clone(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.After(out[j].DueDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = core.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return core.User{}, core.ErrUserNotFound
}

func (s *Store) CreateUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := core.NormalizeEmail(u.Email)
	for _, existing := range s.users {
		if existing.Email == email {
			return core.ErrUserExists
		}
	}
	u.ID = int64(len(s.users) + 1)
	u.Email = email
	u.CreatedAt = s.now().UTC()
	s.users = append(s.users, *u)
	return nil
}

func (s *Store) indexOf(id int64) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// clone detaches the PaidDate pointer from the stored copy.
func clone(t core.Transaction) core.Transaction {
	if t.PaidDate != nil {
		p := *t.PaidDate
		t.PaidDate = &p
	}
	return t
}
