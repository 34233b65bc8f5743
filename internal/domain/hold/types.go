package hold

type Status string

const (
	StatusPending          Status = "PENDING"
	StatusConfirmed        Status = "CONFIRMED"
	StatusBorrowingStarted Status = "BORROWING_STARTED"
	StatusRejected         Status = "REJECTED"
	StatusCancelled        Status = "CANCELLED"
	StatusExpired          Status = "EXPIRED"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusBorrowingStarted,
		StatusRejected, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// IsOpen reports whether the hold still awaits an outcome. Only open
// holds are subject to expiration.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusExpired, StatusBorrowingStarted:
		return true
	default:
		return false
	}
}
