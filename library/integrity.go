package library

import "fmt"

// Pre-delete guards. Books and members with open loans cannot be removed;
// deletes re-check the guard inside their transaction so a borrow that races
// the delete cannot slip through.

// CanDeleteBook reports whether the book could be deleted right now: false
// iff any of its copies has an open loan.
func (d *Database) CanDeleteBook(bookID int64) (bool, error) {
	var open bool
	err := d.db.QueryRow(`
        SELECT EXISTS(
            SELECT 1 FROM loans l
            JOIN copies c ON c.id = l.copy_id
            WHERE c.book_id=? AND l.return_date IS NULL
        )`, bookID).Scan(&open)
	if err != nil {
		return false, err
	}
	return !open, nil
}

// CanDeleteMember reports whether the member could be deleted right now:
// false iff the member has any open loan.
func (d *Database) CanDeleteMember(memberID int64) (bool, error) {
	var open bool
	err := d.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM loans WHERE member_id=? AND return_date IS NULL)`, memberID).Scan(&open)
	if err != nil {
		return false, err
	}
	return !open, nil
}

// DeleteBook removes a book together with its copies, its loan history and
// its author links, as one atomic unit. It fails with ErrConflict while any
// copy is out on loan.
func (d *Database) DeleteBook(bookID int64) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM books WHERE id=?)`, bookID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("book %d: %w", bookID, ErrNotFound)
	}

	var open bool
	err = tx.QueryRow(`
        SELECT EXISTS(
            SELECT 1 FROM loans l
            JOIN copies c ON c.id = l.copy_id
            WHERE c.book_id=? AND l.return_date IS NULL
        )`, bookID).Scan(&open)
	if err != nil {
		return err
	}
	if open {
		return fmt.Errorf("%w: book %d has a copy on loan", ErrConflict, bookID)
	}

	// Children first so the foreign keys stay satisfied throughout.
	if _, err := tx.Exec(`DELETE FROM loans WHERE copy_id IN (SELECT id FROM copies WHERE book_id=?)`, bookID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM copies WHERE book_id=?`, bookID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM book_authors WHERE book_id=?`, bookID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM books WHERE id=?`, bookID); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteMember removes a member. Closed loans are kept as circulation
// history, still carrying the old member id. It fails with ErrConflict while
// the member has an open loan.
func (d *Database) DeleteMember(memberID int64) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM members WHERE id=?)`, memberID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("member %d: %w", memberID, ErrNotFound)
	}

	var open bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM loans WHERE member_id=? AND return_date IS NULL)`, memberID).Scan(&open); err != nil {
		return err
	}
	if open {
		return fmt.Errorf("%w: member %d has an open loan", ErrConflict, memberID)
	}

	if _, err := tx.Exec(`DELETE FROM members WHERE id=?`, memberID); err != nil {
		return err
	}
	return tx.Commit()
}
