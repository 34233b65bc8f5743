package response

import (
	"time"

	"circulation-service/internal/domain/catalog"
	"circulation-service/internal/domain/hold"
	"circulation-service/internal/domain/loan"
	"circulation-service/internal/usecase/queries"

	"github.com/google/uuid"
)

type HoldResponse struct {
	ID             uuid.UUID  `json:"id"`
	ItemID         uuid.UUID  `json:"itemId"`
	ItemTitle      string     `json:"itemTitle,omitempty"`
	UserID         uuid.UUID  `json:"userId"`
	LibraryID      uuid.UUID  `json:"libraryId"`
	Status         string     `json:"status"`
	RequestedAt    time.Time  `json:"requestedAt"`
	ConfirmedAt    *time.Time `json:"confirmedAt,omitempty"`
	PickupDeadline *time.Time `json:"pickupDeadline,omitempty"`
	Comment        *string    `json:"comment,omitempty"`
}

type LoanResponse struct {
	ID           uuid.UUID  `json:"id"`
	HoldID       uuid.UUID  `json:"holdId"`
	ItemID       uuid.UUID  `json:"itemId"`
	ItemTitle    string     `json:"itemTitle,omitempty"`
	UserID       uuid.UUID  `json:"userId"`
	LibraryID    uuid.UUID  `json:"libraryId"`
	Status       string     `json:"status"`
	ReservedAt   time.Time  `json:"reservedAt"`
	BorrowedAt   *time.Time `json:"borrowedAt,omitempty"`
	DueDate      string     `json:"dueDate"`
	ReturnedAt   *time.Time `json:"returnedAt,omitempty"`
	DurationDays int        `json:"durationDays"`
	Extensions   int        `json:"extensions"`
	LateFeeCents int64      `json:"lateFeeCents"`
	Feedback     *string    `json:"feedback,omitempty"`
	Rating       *int       `json:"rating,omitempty"`
}

type ItemResponse struct {
	ID              uuid.UUID `json:"id"`
	LibraryID       uuid.UUID `json:"libraryId"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            *string   `json:"isbn,omitempty"`
	TotalCopies     int       `json:"totalCopies"`
	AvailableCopies int       `json:"availableCopies"`
}

const dueDateLayout = "2006-01-02"

func FromHold(h *hold.Hold) *HoldResponse {
	return &HoldResponse{
		ID:             h.ID(),
		ItemID:         h.ItemID(),
		UserID:         h.UserID(),
		LibraryID:      h.LibraryID(),
		Status:         string(h.Status()),
		RequestedAt:    h.RequestedAt(),
		ConfirmedAt:    h.ConfirmedAt(),
		PickupDeadline: h.PickupDeadline(),
		Comment:        h.Comment(),
	}
}

func FromHoldView(v *queries.HoldView) *HoldResponse {
	return &HoldResponse{
		ID:             v.ID,
		ItemID:         v.ItemID,
		ItemTitle:      v.ItemTitle,
		UserID:         v.UserID,
		LibraryID:      v.LibraryID,
		Status:         v.Status,
		RequestedAt:    v.RequestedAt,
		ConfirmedAt:    v.ConfirmedAt,
		PickupDeadline: v.PickupDeadline,
		Comment:        v.Comment,
	}
}

func FromLoan(l *loan.Loan) *LoanResponse {
	return &LoanResponse{
		ID:           l.ID(),
		HoldID:       l.HoldID(),
		ItemID:       l.ItemID(),
		UserID:       l.UserID(),
		LibraryID:    l.LibraryID(),
		Status:       string(l.Status()),
		ReservedAt:   l.ReservedAt(),
		BorrowedAt:   l.BorrowedAt(),
		DueDate:      l.DueDate().Format(dueDateLayout),
		ReturnedAt:   l.ReturnedAt(),
		DurationDays: l.DurationDays(),
		Extensions:   l.Extensions(),
		LateFeeCents: l.LateFeeCents(),
		Feedback:     l.Feedback(),
		Rating:       l.Rating(),
	}
}

func FromLoanView(v *queries.LoanView) *LoanResponse {
	return &LoanResponse{
		ID:           v.ID,
		HoldID:       v.HoldID,
		ItemID:       v.ItemID,
		ItemTitle:    v.ItemTitle,
		UserID:       v.UserID,
		LibraryID:    v.LibraryID,
		Status:       v.Status,
		ReservedAt:   v.ReservedAt,
		BorrowedAt:   v.BorrowedAt,
		DueDate:      v.DueDate.Format(dueDateLayout),
		ReturnedAt:   v.ReturnedAt,
		DurationDays: v.DurationDays,
		Extensions:   v.Extensions,
		LateFeeCents: v.LateFeeCents,
		Feedback:     v.Feedback,
		Rating:       v.Rating,
	}
}

func FromItem(i *catalog.Item) *ItemResponse {
	return &ItemResponse{
		ID:              i.ID(),
		LibraryID:       i.LibraryID(),
		Title:           i.Title(),
		Author:          i.Author(),
		ISBN:            i.ISBN(),
		TotalCopies:     i.TotalCopies(),
		AvailableCopies: i.AvailableCopies(),
	}
}
