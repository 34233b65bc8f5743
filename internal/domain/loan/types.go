package loan

type Status string

const (
	StatusReserved   Status = "RESERVED"
	StatusBorrowed   Status = "BORROWED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusBlocked    Status = "BLOCKED"
	StatusReturned   Status = "RETURNED"
	StatusClosed     Status = "CLOSED"
	StatusCancelled  Status = "CANCELLED"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusReserved, StatusBorrowed, StatusInProgress, StatusBlocked,
		StatusReturned, StatusClosed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the item is still out (or promised) to the user.
func (s Status) IsActive() bool {
	return s == StatusReserved || s == StatusBorrowed || s == StatusInProgress
}

func (s Status) IsTerminal() bool {
	return s == StatusClosed || s == StatusCancelled
}
