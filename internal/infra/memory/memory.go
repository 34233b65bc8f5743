// Package memory provides an in-memory UnitOfWork used by usecase tests.
// Transactions are serialized under one mutex and stage their writes until
// commit, mirroring the rollback behavior of the Postgres implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"circulation-service/internal/domain/catalog"
	"circulation-service/internal/domain/hold"
	"circulation-service/internal/domain/loan"
	"circulation-service/internal/infra"
	"circulation-service/internal/usecase/shared"

	"github.com/google/uuid"
)

type Store struct {
	mu    sync.Mutex
	users map[uuid.UUID]shared.UserSnapshot
	items map[uuid.UUID]*catalog.Item
	holds map[uuid.UUID]*hold.Hold
	loans map[uuid.UUID]*loan.Loan
}

func NewStore() *Store {
	return &Store{
		users: make(map[uuid.UUID]shared.UserSnapshot),
		items: make(map[uuid.UUID]*catalog.Item),
		holds: make(map[uuid.UUID]*hold.Hold),
		loans: make(map[uuid.UUID]*loan.Loan),
	}
}

func (s *Store) SeedUser(u shared.UserSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) SeedItem(item *catalog.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID()] = cloneItem(item)
}

func (s *Store) Item(id uuid.UUID) *catalog.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[id]; ok {
		return cloneItem(item)
	}
	return nil
}

func (s *Store) Hold(id uuid.UUID) *hold.Hold {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.holds[id]; ok {
		return cloneHold(h)
	}
	return nil
}

func (s *Store) Loan(id uuid.UUID) *loan.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.loans[id]; ok {
		return cloneLoan(l)
	}
	return nil
}

func (s *Store) LoanByHoldID(holdID uuid.UUID) *loan.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loanByHoldIDLocked(holdID, nil)
}

func (s *Store) loanByHoldIDLocked(holdID uuid.UUID, staged map[uuid.UUID]*loan.Loan) *loan.Loan {
	var found *loan.Loan
	merged := make(map[uuid.UUID]*loan.Loan, len(s.loans)+len(staged))
	for id, l := range s.loans {
		merged[id] = l
	}
	for id, l := range staged {
		merged[id] = l
	}
	for _, l := range merged {
		if l.HoldID() != holdID {
			continue
		}
		if found == nil || l.ReservedAt().After(found.ReservedAt()) {
			found = l
		}
	}
	if found == nil {
		return nil
	}
	return cloneLoan(found)
}

func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store: s,
		holds: make(map[uuid.UUID]*hold.Hold),
		loans: make(map[uuid.UUID]*loan.Loan),
		items: make(map[uuid.UUID]*catalog.Item),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, h := range tx.holds {
		s.holds[id] = h
	}
	for id, l := range tx.loans {
		s.loans[id] = l
	}
	for id, item := range tx.items {
		s.items[id] = item
	}
	return nil
}

func (s *Store) Reads() shared.Reads {
	return &memReads{store: s}
}

type memTx struct {
	store *Store
	holds map[uuid.UUID]*hold.Hold
	loans map[uuid.UUID]*loan.Loan
	items map[uuid.UUID]*catalog.Item
}

func (t *memTx) Holds() shared.HoldRepository { return &memHoldRepo{tx: t} }
func (t *memTx) Loans() shared.LoanRepository { return &memLoanRepo{tx: t} }
func (t *memTx) Items() shared.ItemRepository { return &memItemRepo{tx: t} }

func (t *memTx) hold(id uuid.UUID) (*hold.Hold, bool) {
	if h, ok := t.holds[id]; ok {
		return h, true
	}
	h, ok := t.store.holds[id]
	return h, ok
}

func (t *memTx) item(id uuid.UUID) (*catalog.Item, bool) {
	if item, ok := t.items[id]; ok {
		return item, true
	}
	item, ok := t.store.items[id]
	return item, ok
}

type memHoldRepo struct {
	tx *memTx
}

func (r *memHoldRepo) Create(_ context.Context, h *hold.Hold) error {
	r.tx.holds[h.ID()] = cloneHold(h)
	return nil
}

func (r *memHoldRepo) GetForUpdate(_ context.Context, id uuid.UUID) (*hold.Hold, error) {
	h, ok := r.tx.hold(id)
	if !ok {
		return nil, infra.NewRepoErr("hold not found", infra.KindNotFound)
	}
	return cloneHold(h), nil
}

func (r *memHoldRepo) Update(_ context.Context, h *hold.Hold) error {
	if _, ok := r.tx.hold(h.ID()); !ok {
		return infra.NewRepoErr("hold not found", infra.KindNotFound)
	}
	r.tx.holds[h.ID()] = cloneHold(h)
	return nil
}

func (r *memHoldRepo) CountPendingByUser(_ context.Context, userID uuid.UUID) (int, error) {
	count := 0
	for _, h := range r.merged() {
		if h.UserID() == userID && h.Status() == hold.StatusPending {
			count++
		}
	}
	return count, nil
}

func (r *memHoldRepo) HasPendingDuplicate(_ context.Context, userID, itemID uuid.UUID, isbn *string) (bool, error) {
	for _, h := range r.merged() {
		if h.UserID() != userID || h.Status() != hold.StatusPending {
			continue
		}
		if h.ItemID() == itemID {
			return true, nil
		}
		if isbn == nil {
			continue
		}
		if item, ok := r.tx.item(h.ItemID()); ok {
			if other := item.ISBN(); other != nil && *other == *isbn {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *memHoldRepo) merged() map[uuid.UUID]*hold.Hold {
	merged := make(map[uuid.UUID]*hold.Hold, len(r.tx.store.holds)+len(r.tx.holds))
	for id, h := range r.tx.store.holds {
		merged[id] = h
	}
	for id, h := range r.tx.holds {
		merged[id] = h
	}
	return merged
}

type memLoanRepo struct {
	tx *memTx
}

func (r *memLoanRepo) Create(_ context.Context, l *loan.Loan) error {
	r.tx.loans[l.ID()] = cloneLoan(l)
	return nil
}

func (r *memLoanRepo) GetForUpdate(_ context.Context, id uuid.UUID) (*loan.Loan, error) {
	if l, ok := r.tx.loans[id]; ok {
		return cloneLoan(l), nil
	}
	if l, ok := r.tx.store.loans[id]; ok {
		return cloneLoan(l), nil
	}
	return nil, infra.NewRepoErr("loan not found", infra.KindNotFound)
}

func (r *memLoanRepo) GetByHoldIDForUpdate(_ context.Context, holdID uuid.UUID) (*loan.Loan, error) {
	if l := r.tx.store.loanByHoldIDLocked(holdID, r.tx.loans); l != nil {
		return l, nil
	}
	return nil, infra.NewRepoErr("loan not found for hold", infra.KindNotFound)
}

func (r *memLoanRepo) Update(_ context.Context, l *loan.Loan) error {
	if _, ok := r.tx.loans[l.ID()]; !ok {
		if _, ok := r.tx.store.loans[l.ID()]; !ok {
			return infra.NewRepoErr("loan not found", infra.KindNotFound)
		}
	}
	r.tx.loans[l.ID()] = cloneLoan(l)
	return nil
}

type memItemRepo struct {
	tx *memTx
}

func (r *memItemRepo) Create(_ context.Context, item *catalog.Item) error {
	if isbn := item.ISBN(); isbn != nil {
		for _, existing := range r.tx.store.items {
			if other := existing.ISBN(); other != nil && *other == *isbn {
				return infra.NewRepoErr("item already exists", infra.KindDuplicateKey)
			}
		}
	}
	r.tx.items[item.ID()] = cloneItem(item)
	return nil
}

func (r *memItemRepo) Get(_ context.Context, id uuid.UUID) (*catalog.Item, error) {
	item, ok := r.tx.item(id)
	if !ok {
		return nil, infra.NewRepoErr("item not found", infra.KindNotFound)
	}
	return cloneItem(item), nil
}

func (r *memItemRepo) TryReserveCopy(_ context.Context, id uuid.UUID) error {
	item, ok := r.tx.item(id)
	if !ok {
		return infra.NewRepoErr("item not found", infra.KindNotFound)
	}
	next := cloneItem(item)
	if err := next.ReserveCopy(); err != nil {
		return infra.NewRepoErr("no copies available", infra.KindConflict)
	}
	r.tx.items[id] = next
	return nil
}

func (r *memItemRepo) ReleaseCopy(_ context.Context, id uuid.UUID) error {
	item, ok := r.tx.item(id)
	if !ok {
		return infra.NewRepoErr("item not found", infra.KindNotFound)
	}
	next := cloneItem(item)
	next.ReleaseCopy()
	r.tx.items[id] = next
	return nil
}

type memReads struct {
	store *Store
}

func (r *memReads) UserByID(_ context.Context, id uuid.UUID) (*shared.UserSnapshot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, infra.NewRepoErr("user not found", infra.KindNotFound)
	}
	return &u, nil
}

func (r *memReads) ItemByID(_ context.Context, id uuid.UUID) (*shared.ItemSnapshot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	item, ok := r.store.items[id]
	if !ok {
		return nil, infra.NewRepoErr("item not found", infra.KindNotFound)
	}
	return &shared.ItemSnapshot{
		ID:              item.ID(),
		LibraryID:       item.LibraryID(),
		Title:           item.Title(),
		ISBN:            item.ISBN(),
		TotalCopies:     item.TotalCopies(),
		AvailableCopies: item.AvailableCopies(),
	}, nil
}

func (r *memReads) ExpiredHoldIDs(_ context.Context, now time.Time, requestExpiry time.Duration) ([]uuid.UUID, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	type candidate struct {
		id          uuid.UUID
		requestedAt time.Time
	}
	found := make([]candidate, 0)
	for _, h := range r.store.holds {
		if h.IsExpired(now, requestExpiry) {
			found = append(found, candidate{id: h.ID(), requestedAt: h.RequestedAt()})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].requestedAt.Before(found[j].requestedAt) })

	ids := make([]uuid.UUID, 0, len(found))
	for _, c := range found {
		ids = append(ids, c.id)
	}
	return ids, nil
}

func (r *memReads) ConfirmedHoldIDsNeedingReminder(_ context.Context, now time.Time, lead time.Duration) ([]uuid.UUID, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ids := make([]uuid.UUID, 0)
	for _, h := range r.store.holds {
		if h.Status() != hold.StatusConfirmed || h.ReminderSent() || h.PickupDeadline() == nil {
			continue
		}
		deadline := *h.PickupDeadline()
		if !deadline.Before(now) && !deadline.After(now.Add(lead)) {
			ids = append(ids, h.ID())
		}
	}
	return ids, nil
}

func cloneHold(h *hold.Hold) *hold.Hold {
	c := *h
	return &c
}

func cloneLoan(l *loan.Loan) *loan.Loan {
	c := *l
	return &c
}

func cloneItem(i *catalog.Item) *catalog.Item {
	c := *i
	return &c
}
