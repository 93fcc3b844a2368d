package library

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// LibraryManager is a thin façade over the Database, keeping CLI code simple.
type LibraryManager struct {
	db *Database
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath.
func NewLibraryManager(dbPath string) (*LibraryManager, error) {
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	return &LibraryManager{db: db}, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// ------------------ Catalog helpers ------------------

func (lm *LibraryManager) AddBook(isbn, title, publisher string, year int) (int64, error) {
	return lm.db.AddBook(isbn, title, publisher, year)
}

func (lm *LibraryManager) AddBookWithAuthors(isbn, title, publisher string, year int, authors []string, category string) (int64, error) {
	return lm.db.AddBookWithAuthors(isbn, title, publisher, year, authors, category)
}

func (lm *LibraryManager) UpdateBook(bookID int64, isbn, title, publisher string, year int, authors []string, category string) error {
	return lm.db.UpdateBook(bookID, isbn, title, publisher, year, authors, category)
}

func (lm *LibraryManager) AddCopy(bookID int64, barcode, location string) (int64, error) {
	return lm.db.AddCopy(bookID, barcode, location)
}

func (lm *LibraryManager) GetBook(id int64) (*Book, error)          { return lm.db.GetBook(id) }
func (lm *LibraryManager) GetCopy(id int64) (*Copy, error)          { return lm.db.GetCopy(id) }
func (lm *LibraryManager) GetLoan(id int64) (*Loan, error)          { return lm.db.GetLoan(id) }
func (lm *LibraryManager) AuthorsByBook(id int64) ([]string, error) { return lm.db.AuthorsByBook(id) }

func (lm *LibraryManager) SetCopyStatus(copyID int64, status CopyStatus) error {
	return lm.db.SetCopyStatus(copyID, status)
}

// ------------------ Member helpers ------------------

// AddMember registers a member with a bcrypt-hashed password. An empty
// password is allowed and simply leaves credential checks disabled.
func (lm *LibraryManager) AddMember(name, email, phone, password string) (int64, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return 0, err
	}
	return lm.db.AddMember(name, email, phone, hash)
}

func (lm *LibraryManager) GetMember(id int64) (*Member, error) { return lm.db.GetMember(id) }

func (lm *LibraryManager) UpdateMember(id int64, name, email, phone string) error {
	return lm.db.UpdateMember(id, name, email, phone)
}

// ResetMemberPassword replaces the stored credential hash.
func (lm *LibraryManager) ResetMemberPassword(id int64, password string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: password cannot be empty", ErrInvalidArgument)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	return lm.db.SetMemberPassword(id, hash)
}

// AuthenticateMember verifies a member's password. Members registered
// without a password always pass.
func (lm *LibraryManager) AuthenticateMember(id int64, password string) error {
	m, err := lm.db.GetMember(id)
	if err != nil {
		return err
	}
	if m.PasswordHash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)); err != nil {
		return fmt.Errorf("invalid password for member %d", id)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ------------------ Circulation ------------------

func (lm *LibraryManager) Borrow(bookID, memberID int64, loanDays int) (*Loan, error) {
	return lm.db.Borrow(bookID, memberID, loanDays)
}

func (lm *LibraryManager) BorrowCopy(copyID, memberID int64, loanDays int) (*Loan, error) {
	return lm.db.BorrowCopy(copyID, memberID, loanDays)
}

func (lm *LibraryManager) ReturnLoan(bookID, memberID int64, finePerDay float64) (*Loan, error) {
	return lm.db.ReturnLoan(bookID, memberID, finePerDay)
}

func (lm *LibraryManager) ReturnLoanByID(loanID int64, finePerDay float64) (*Loan, error) {
	return lm.db.ReturnLoanByID(loanID, finePerDay)
}

// ------------------ Integrity ------------------

func (lm *LibraryManager) CanDeleteBook(bookID int64) (bool, error) {
	return lm.db.CanDeleteBook(bookID)
}

func (lm *LibraryManager) CanDeleteMember(memberID int64) (bool, error) {
	return lm.db.CanDeleteMember(memberID)
}

func (lm *LibraryManager) DeleteBook(bookID int64) error     { return lm.db.DeleteBook(bookID) }
func (lm *LibraryManager) DeleteMember(memberID int64) error { return lm.db.DeleteMember(memberID) }

// ------------------ Queries ------------------

func (lm *LibraryManager) CopiesByBook(bookID int64) ([]*CopyInfo, error) {
	return lm.db.CopiesByBook(bookID)
}

func (lm *LibraryManager) OpenLoansByMember(memberID int64) ([]*LoanInfo, error) {
	return lm.db.OpenLoansByMember(memberID)
}

func (lm *LibraryManager) SearchBooks(keyword string) ([]*BookInfo, error) {
	return lm.db.SearchBooks(keyword)
}

func (lm *LibraryManager) SearchMembers(keyword string) ([]*Member, error) {
	return lm.db.SearchMembers(keyword)
}

// ------------------ Utilities ------------------

// PrettyCopy formats a copy row for listings.
func PrettyCopy(c *CopyInfo) string {
	borrower := c.BorrowerName
	if borrower == "" {
		borrower = "-"
	}
	return fmt.Sprintf("%-5d %-15s %-10s %-15s %-25s", c.ID, c.Barcode, c.Status, c.Location, borrower)
}

// PrettyLoan formats an open loan row for listings.
func PrettyLoan(l *LoanInfo) string {
	return fmt.Sprintf("%-5d %-30s %-12s %-12s", l.ID, l.BookTitle,
		l.LoanDate.Format(time.DateOnly), l.DueDate.Format(time.DateOnly))
}
