package library

import "errors"

// Business-rule failures are reported through these sentinels so callers can
// branch with errors.Is instead of matching message text. Anything else
// returned by a core operation is a wrapped storage error; state-changing
// operations roll back before returning one.
var (
	// ErrInvalidArgument means the caller passed bad input, such as a
	// non-positive loan period or a negative fine rate.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound means a referenced book, author, copy, member or loan
	// does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNoAvailableCopy means a borrow found nothing to lend: every copy
	// of the book is on loan, lost or damaged.
	ErrNoAvailableCopy = errors.New("no available copy")

	// ErrNoOpenLoan means a return found nothing to close.
	ErrNoOpenLoan = errors.New("no open loan")

	// ErrConflict means the operation would violate an integrity rule:
	// deleting a book or member with an open loan, or inserting a
	// duplicate ISBN, email or barcode.
	ErrConflict = errors.New("conflict")
)
