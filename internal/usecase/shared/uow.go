package shared

import (
	"context"
	"time"

	"circulation-service/internal/domain/catalog"
	"circulation-service/internal/domain/hold"
	"circulation-service/internal/domain/loan"

	"github.com/google/uuid"
)

// UnitOfWork scopes every orchestrator operation to a single atomic
// boundary: the copy-count change, the hold flip and the loan flip either
// all commit or none do.
type UnitOfWork interface {
	// Within: full transaction for write operations with retry on
	// serialization failures.
	Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Reads: direct access for validation and listing outside transactions.
	Reads() Reads
}

type Tx interface {
	Holds() HoldRepository
	Loans() LoanRepository
	Items() ItemRepository
}

type HoldRepository interface {
	Create(ctx context.Context, h *hold.Hold) error
	// GetForUpdate row-locks the hold so the sweeper and a concurrent
	// confirm/cancel on the same hold are mutually exclusive.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*hold.Hold, error)
	Update(ctx context.Context, h *hold.Hold) error
	CountPendingByUser(ctx context.Context, userID uuid.UUID) (int, error)
	// HasPendingDuplicate matches by item identity or by the item's ISBN.
	HasPendingDuplicate(ctx context.Context, userID, itemID uuid.UUID, isbn *string) (bool, error)
}

type LoanRepository interface {
	Create(ctx context.Context, l *loan.Loan) error
	GetForUpdate(ctx context.Context, id uuid.UUID) (*loan.Loan, error)
	GetByHoldIDForUpdate(ctx context.Context, holdID uuid.UUID) (*loan.Loan, error)
	Update(ctx context.Context, l *loan.Loan) error
}

type ItemRepository interface {
	Create(ctx context.Context, item *catalog.Item) error
	Get(ctx context.Context, id uuid.UUID) (*catalog.Item, error)
	// TryReserveCopy decrements the available counter atomically, only
	// when it is positive. No copy left surfaces as a conflict-kind error.
	TryReserveCopy(ctx context.Context, id uuid.UUID) error
	// ReleaseCopy increments the counter, capped at the total. Idempotence
	// per hold is guarded by the hold's copy-lock flag, not here.
	ReleaseCopy(ctx context.Context, id uuid.UUID) error
}

// Reads are the out-of-transaction lookups the orchestrator and sweeper
// need before entering their atomic sections.
type Reads interface {
	UserByID(ctx context.Context, id uuid.UUID) (*UserSnapshot, error)
	ItemByID(ctx context.Context, id uuid.UUID) (*ItemSnapshot, error)
	// ExpiredHoldIDs lists open holds whose deadline (pickup deadline for
	// confirmed, requestedAt+requestExpiry for pending) is before now.
	ExpiredHoldIDs(ctx context.Context, now time.Time, requestExpiry time.Duration) ([]uuid.UUID, error)
	// ConfirmedHoldIDsNeedingReminder lists confirmed, not-yet-reminded
	// holds whose pickup deadline falls within the lead window.
	ConfirmedHoldIDsNeedingReminder(ctx context.Context, now time.Time, lead time.Duration) ([]uuid.UUID, error)
}

type UserSnapshot struct {
	ID        uuid.UUID
	Email     string
	LibraryID *uuid.UUID
	Role      string
}

func (u *UserSnapshot) IsStaff() bool {
	return u.Role == "librarian" || u.Role == "admin"
}

type ItemSnapshot struct {
	ID              uuid.UUID
	LibraryID       uuid.UUID
	Title           string
	ISBN            *string
	TotalCopies     int
	AvailableCopies int
}
