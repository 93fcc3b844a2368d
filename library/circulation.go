package library

import (
	"database/sql"
	"fmt"
	"time"
)

// Default lending terms, surfaced by the CLI.
const (
	DefaultLoanDays   = 14
	DefaultFinePerDay = 10.0
)

// Borrow lends any available copy of a book to a member. When several copies
// are available the one with the smallest barcode is chosen, so repeated runs
// against the same data pick the same copy. The lookup, the status flip and
// the loan insert happen in one transaction; on any failure nothing changes.
func (d *Database) Borrow(bookID, memberID int64, loanDays int) (*Loan, error) {
	if loanDays <= 0 {
		return nil, fmt.Errorf("%w: loan days must be positive, got %d", ErrInvalidArgument, loanDays)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM books WHERE id=?)`, bookID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("book %d: %w", bookID, ErrNotFound)
	}

	var copyID int64
	err = tx.QueryRow(`SELECT id FROM copies WHERE book_id=? AND status=? ORDER BY barcode ASC LIMIT 1`,
		bookID, StatusAvailable).Scan(&copyID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("book %d: %w", bookID, ErrNoAvailableCopy)
	}
	if err != nil {
		return nil, err
	}

	loan, err := d.lendCopy(tx, copyID, memberID, loanDays)
	if err != nil {
		return nil, err
	}
	return loan, tx.Commit()
}

// BorrowCopy lends one specific copy. It is the primitive Borrow is built on,
// for callers that already scanned a barcode and hold the copy id.
func (d *Database) BorrowCopy(copyID, memberID int64, loanDays int) (*Loan, error) {
	if loanDays <= 0 {
		return nil, fmt.Errorf("%w: loan days must be positive, got %d", ErrInvalidArgument, loanDays)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	loan, err := d.lendCopy(tx, copyID, memberID, loanDays)
	if err != nil {
		return nil, err
	}
	return loan, tx.Commit()
}

// lendCopy claims the copy and inserts the open loan inside the caller's
// transaction. The conditional UPDATE is the point that keeps two concurrent
// borrows from both taking the same copy: only one of them flips the row.
func (d *Database) lendCopy(tx *sql.Tx, copyID, memberID int64, loanDays int) (*Loan, error) {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM members WHERE id=?)`, memberID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("member %d: %w", memberID, ErrNotFound)
	}

	res, err := tx.Exec(`UPDATE copies SET status=? WHERE id=? AND status=?`,
		StatusOnLoan, copyID, StatusAvailable)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM copies WHERE id=?)`, copyID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("copy %d: %w", copyID, ErrNotFound)
		}
		return nil, fmt.Errorf("copy %d: %w", copyID, ErrNoAvailableCopy)
	}

	now := d.now().UTC()
	loan := &Loan{
		CopyID:   copyID,
		MemberID: memberID,
		LoanDate: now,
		DueDate:  now.AddDate(0, 0, loanDays),
	}
	ins, err := tx.Exec(`INSERT INTO loans(copy_id,member_id,loan_date,due_date,fine) VALUES(?,?,?,?,0)`,
		loan.CopyID, loan.MemberID, loan.LoanDate, loan.DueDate)
	if err != nil {
		return nil, err
	}
	if loan.ID, err = ins.LastInsertId(); err != nil {
		return nil, err
	}
	return loan, nil
}

// ReturnLoan closes the member's open loan against a copy of the given book.
// When the member holds several copies of that book, the most overdue loan
// (earliest due date) is closed first. Closing stamps the return date,
// computes the fine and releases the copy, all in one transaction.
func (d *Database) ReturnLoan(bookID, memberID int64, finePerDay float64) (*Loan, error) {
	if finePerDay < 0 {
		return nil, fmt.Errorf("%w: fine per day must not be negative, got %v", ErrInvalidArgument, finePerDay)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	loan, err := scanLoan(tx.QueryRow(`
        SELECT l.id, l.copy_id, l.member_id, l.loan_date, l.due_date, l.return_date, l.fine
        FROM loans l
        JOIN copies c ON c.id = l.copy_id
        WHERE l.member_id=? AND c.book_id=? AND l.return_date IS NULL
        ORDER BY l.due_date ASC
        LIMIT 1`, memberID, bookID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("member %d, book %d: %w", memberID, bookID, ErrNoOpenLoan)
	}
	if err != nil {
		return nil, err
	}

	if err := d.closeLoan(tx, loan, finePerDay); err != nil {
		return nil, err
	}
	return loan, tx.Commit()
}

// ReturnLoanByID closes one specific loan. It is the primitive ReturnLoan is
// built on.
func (d *Database) ReturnLoanByID(loanID int64, finePerDay float64) (*Loan, error) {
	if finePerDay < 0 {
		return nil, fmt.Errorf("%w: fine per day must not be negative, got %v", ErrInvalidArgument, finePerDay)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	loan, err := scanLoan(tx.QueryRow(`SELECT id,copy_id,member_id,loan_date,due_date,return_date,fine FROM loans WHERE id=?`, loanID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("loan %d: %w", loanID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !loan.Open() {
		return nil, fmt.Errorf("loan %d: %w", loanID, ErrNoOpenLoan)
	}

	if err := d.closeLoan(tx, loan, finePerDay); err != nil {
		return nil, err
	}
	return loan, tx.Commit()
}

// closeLoan stamps the return, writes the fine once and for all, and flips
// the copy back to Available inside the caller's transaction. The loan update
// re-checks return_date IS NULL so a return that lost a race closes nothing.
func (d *Database) closeLoan(tx *sql.Tx, loan *Loan, finePerDay float64) error {
	now := d.now().UTC()
	fine := Fine(loan.DueDate, now, finePerDay)

	res, err := tx.Exec(`UPDATE loans SET return_date=?, fine=? WHERE id=? AND return_date IS NULL`,
		now, fine, loan.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("loan %d: %w", loan.ID, ErrNoOpenLoan)
	}

	if _, err := tx.Exec(`UPDATE copies SET status=? WHERE id=? AND status=?`,
		StatusAvailable, loan.CopyID, StatusOnLoan); err != nil {
		return err
	}

	loan.ReturnDate = &now
	loan.Fine = fine
	return nil
}

// Fine computes the penalty for returning at `returned` a loan due at `due`:
// whole overdue days times the per-day rate. On-time returns owe nothing.
func Fine(due, returned time.Time, finePerDay float64) float64 {
	if !returned.After(due) {
		return 0
	}
	daysLate := int64(returned.Sub(due) / (24 * time.Hour))
	if daysLate <= 0 {
		return 0
	}
	return float64(daysLate) * finePerDay
}
