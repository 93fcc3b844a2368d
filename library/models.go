package library

import "time"

// CopyStatus tracks the lifecycle of one physical copy.
type CopyStatus int

const (
	StatusAvailable CopyStatus = 0
	StatusOnLoan    CopyStatus = 1
	StatusLost      CopyStatus = 2
	StatusDamaged   CopyStatus = 3
)

func (s CopyStatus) String() string {
	switch s {
	case StatusAvailable:
		return "Available"
	case StatusOnLoan:
		return "OnLoan"
	case StatusLost:
		return "Lost"
	case StatusDamaged:
		return "Damaged"
	default:
		return "Unknown"
	}
}

// Borrowable reports whether a copy in this status may be lent out.
func (s CopyStatus) Borrowable() bool { return s == StatusAvailable }

// Book is catalog metadata. Physical inventory lives in Copy rows.
type Book struct {
	ID          int64     `json:"id"`
	ISBN        string    `json:"isbn"`
	Title       string    `json:"title"`
	Category    string    `json:"category,omitempty"`
	Publisher   string    `json:"publisher,omitempty"`
	PublishYear int       `json:"publish_year,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Author is referenced from books through book_authors link rows.
type Author struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Country   string     `json:"country,omitempty"`
}

// Copy is one barcoded physical instance of a book.
type Copy struct {
	ID        int64      `json:"id"`
	BookID    int64      `json:"book_id"`
	Barcode   string     `json:"barcode"`
	Status    CopyStatus `json:"status"`
	Location  string     `json:"location,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Member represents a registered library member.
type Member struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	JoinDate     time.Time `json:"join_date"`
	PasswordHash string    `json:"-"` // Don't serialize password hash
}

// Loan records one lending of a copy to a member. A loan with a nil
// ReturnDate is open and holds its copy in StatusOnLoan.
type Loan struct {
	ID         int64      `json:"id"`
	CopyID     int64      `json:"copy_id"`
	MemberID   int64      `json:"member_id"`
	LoanDate   time.Time  `json:"loan_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	Fine       float64    `json:"fine"`
}

// Open reports whether the loan has not been returned yet.
func (l *Loan) Open() bool { return l.ReturnDate == nil }

// CopyInfo is a copy annotated with the current borrower, for listings.
type CopyInfo struct {
	Copy
	BorrowerName string `json:"borrower_name,omitempty"`
}

// LoanInfo is a loan annotated with the title of the borrowed book.
type LoanInfo struct {
	Loan
	BookTitle string `json:"book_title"`
}

// BookInfo is a book annotated with its author names, for search results.
type BookInfo struct {
	Book
	Authors []string `json:"authors,omitempty"`
}
