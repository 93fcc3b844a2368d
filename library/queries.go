package library

import (
	"database/sql"
	"strings"

	"github.com/Masterminds/squirrel"
)

// Read paths for the UI. All of them run outside any write transaction and
// only ever see committed state.

// searchLimit caps keyword searches so one query cannot flood the UI.
const searchLimit = 200

// CopiesByBook lists a book's copies ordered by barcode, each annotated with
// the name of the current borrower when the copy is out.
func (d *Database) CopiesByBook(bookID int64) ([]*CopyInfo, error) {
	rows, err := squirrel.
		Select("c.id", "c.book_id", "c.barcode", "c.status", "c.location", "c.created_at",
			"COALESCE(m.name, '')").
		From("copies c").
		LeftJoin("loans l ON l.copy_id = c.id AND l.return_date IS NULL").
		LeftJoin("members m ON m.id = l.member_id").
		Where(squirrel.Eq{"c.book_id": bookID}).
		OrderBy("c.barcode ASC").
		RunWith(d.db).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var copies []*CopyInfo
	for rows.Next() {
		var ci CopyInfo
		if err := rows.Scan(&ci.ID, &ci.BookID, &ci.Barcode, &ci.Status, &ci.Location, &ci.CreatedAt, &ci.BorrowerName); err != nil {
			return nil, err
		}
		copies = append(copies, &ci)
	}
	return copies, rows.Err()
}

// OpenLoansByMember lists a member's open loans ordered by due date (most
// overdue first), each annotated with the borrowed book's title.
func (d *Database) OpenLoansByMember(memberID int64) ([]*LoanInfo, error) {
	rows, err := squirrel.
		Select("l.id", "l.copy_id", "l.member_id", "l.loan_date", "l.due_date", "l.return_date", "l.fine",
			"b.title").
		From("loans l").
		Join("copies c ON c.id = l.copy_id").
		Join("books b ON b.id = c.book_id").
		Where(squirrel.Eq{"l.member_id": memberID}).
		Where("l.return_date IS NULL").
		OrderBy("l.due_date ASC").
		RunWith(d.db).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []*LoanInfo
	for rows.Next() {
		var (
			li       LoanInfo
			returned sql.NullTime
		)
		if err := rows.Scan(&li.ID, &li.CopyID, &li.MemberID, &li.LoanDate, &li.DueDate, &returned, &li.Fine, &li.BookTitle); err != nil {
			return nil, err
		}
		if returned.Valid {
			t := returned.Time
			li.ReturnDate = &t
		}
		loans = append(loans, &li)
	}
	return loans, rows.Err()
}

// SearchBooks matches the keyword against title and ISBN, ordered by title.
// An empty keyword lists the catalog (capped like any other search). Author
// names are aggregated per book.
func (d *Database) SearchBooks(keyword string) ([]*BookInfo, error) {
	q := squirrel.
		Select("b.id", "b.isbn", "b.title", "b.category", "b.publisher", "COALESCE(b.publish_year, 0)", "b.created_at",
			"COALESCE(GROUP_CONCAT(a.name, ', '), '')").
		From("books b").
		LeftJoin("book_authors ba ON ba.book_id = b.id").
		LeftJoin("authors a ON a.id = ba.author_id").
		GroupBy("b.id").
		OrderBy("b.title ASC").
		Limit(searchLimit)

	if keyword = strings.TrimSpace(keyword); keyword != "" {
		pattern := "%" + keyword + "%"
		q = q.Where(squirrel.Or{
			squirrel.Like{"b.title": pattern},
			squirrel.Like{"b.isbn": pattern},
		})
	}

	rows, err := q.RunWith(d.db).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*BookInfo
	for rows.Next() {
		var (
			bi      BookInfo
			authors string
		)
		if err := rows.Scan(&bi.ID, &bi.ISBN, &bi.Title, &bi.Category, &bi.Publisher, &bi.PublishYear, &bi.CreatedAt, &authors); err != nil {
			return nil, err
		}
		if authors != "" {
			bi.Authors = strings.Split(authors, ", ")
		}
		books = append(books, &bi)
	}
	return books, rows.Err()
}

// SearchMembers matches the keyword against name and email, ordered by name.
func (d *Database) SearchMembers(keyword string) ([]*Member, error) {
	q := squirrel.
		Select("id", "name", "email", "phone", "join_date", "password_hash").
		From("members").
		OrderBy("name ASC").
		Limit(searchLimit)

	if keyword = strings.TrimSpace(keyword); keyword != "" {
		pattern := "%" + keyword + "%"
		q = q.Where(squirrel.Or{
			squirrel.Like{"name": pattern},
			squirrel.Like{"email": pattern},
		})
	}

	rows, err := q.RunWith(d.db).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.JoinDate, &m.PasswordHash); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}
