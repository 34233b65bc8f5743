package catalog

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrInvalidCopyCount  = errors.New("total copies must be at least 1")
	ErrNoCopiesAvailable = errors.New("no copies available")
)

// Item is a catalog entry with a fixed total copy count and a live
// available-copy counter. The counter is mutated only through the
// circulation transaction paths; 0 <= available <= total always holds.
type Item struct {
	id              uuid.UUID
	libraryID       uuid.UUID
	title           string
	author          string
	isbn            *string
	totalCopies     int
	availableCopies int
	version         int64
}

func NewItem(libraryID uuid.UUID, title, author string, isbn *string, totalCopies int) (*Item, error) {
	if totalCopies < 1 {
		return nil, ErrInvalidCopyCount
	}
	return &Item{
		id:              uuid.New(),
		libraryID:       libraryID,
		title:           title,
		author:          author,
		isbn:            isbn,
		totalCopies:     totalCopies,
		availableCopies: totalCopies,
	}, nil
}

func ReconstructItem(
	id, libraryID uuid.UUID,
	title, author string,
	isbn *string,
	totalCopies, availableCopies int,
	version int64,
) *Item {
	return &Item{
		id:              id,
		libraryID:       libraryID,
		title:           title,
		author:          author,
		isbn:            isbn,
		totalCopies:     totalCopies,
		availableCopies: availableCopies,
		version:         version,
	}
}

// ReserveCopy takes one copy out of the pool. Fails when none are left.
func (i *Item) ReserveCopy() error {
	if i.availableCopies <= 0 {
		return ErrNoCopiesAvailable
	}
	i.availableCopies--
	i.version++
	return nil
}

// ReleaseCopy returns one copy to the pool, capped at the total count.
// Idempotence per hold is the hold's responsibility (copy-lock flag),
// not the item's.
func (i *Item) ReleaseCopy() {
	if i.availableCopies < i.totalCopies {
		i.availableCopies++
	}
	i.version++
}

func (i *Item) HasAvailableCopy() bool {
	return i.availableCopies > 0
}

func (i *Item) ID() uuid.UUID        { return i.id }
func (i *Item) LibraryID() uuid.UUID { return i.libraryID }
func (i *Item) Title() string        { return i.title }
func (i *Item) Author() string       { return i.author }
func (i *Item) ISBN() *string        { return i.isbn }
func (i *Item) TotalCopies() int     { return i.totalCopies }
func (i *Item) AvailableCopies() int { return i.availableCopies }
func (i *Item) Version() int64       { return i.version }
