package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Database provides high-level helpers around a SQLite connection.
type Database struct {
	db *sql.DB

	// now is swapped out by tests that need a fixed clock.
	now func() time.Time

	addCopyStmt   *sql.Stmt
	addMemberStmt *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// busy_timeout absorbs lock contention; txlock=immediate makes every
	// transaction take the write lock up front, so concurrent borrows
	// serialize instead of failing on a stale WAL snapshot.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db, now: time.Now}
	if err := database.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.addCopyStmt != nil {
		d.addCopyStmt.Close()
	}
	if d.addMemberStmt != nil {
		d.addMemberStmt.Close()
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            isbn TEXT NOT NULL UNIQUE,
            title TEXT NOT NULL,
            category TEXT NOT NULL DEFAULT '',
            publisher TEXT NOT NULL DEFAULT '',
            publish_year INTEGER,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS authors (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            birth_date DATETIME,
            country TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS book_authors (
            book_id INTEGER NOT NULL REFERENCES books(id),
            author_id INTEGER NOT NULL REFERENCES authors(id),
            PRIMARY KEY (book_id, author_id)
        );`,
		`CREATE TABLE IF NOT EXISTS copies (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            book_id INTEGER NOT NULL REFERENCES books(id),
            barcode TEXT NOT NULL UNIQUE,
            status INTEGER NOT NULL DEFAULT 0,
            location TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            phone TEXT NOT NULL DEFAULT '',
            join_date DATETIME NOT NULL,
            password_hash TEXT NOT NULL DEFAULT ''
        );`,
		// member_id is intentionally not a foreign key: closed loans stay
		// behind as history after their member is deleted.
		`CREATE TABLE IF NOT EXISTS loans (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            copy_id INTEGER NOT NULL REFERENCES copies(id),
            member_id INTEGER NOT NULL,
            loan_date DATETIME NOT NULL,
            due_date DATETIME NOT NULL,
            return_date DATETIME,
            fine REAL NOT NULL DEFAULT 0
        );`,
		`CREATE INDEX IF NOT EXISTS idx_copies_book ON copies(book_id);`,
		`CREATE INDEX IF NOT EXISTS idx_loans_copy_open ON loans(copy_id) WHERE return_date IS NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_loans_member ON loans(member_id);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.addCopyStmt, err = d.db.Prepare(`INSERT INTO copies(book_id,barcode,status,location,created_at) VALUES(?,?,?,?,?)`); err != nil {
		return err
	}
	if d.addMemberStmt, err = d.db.Prepare(`INSERT INTO members(name,email,phone,join_date,password_hash) VALUES(?,?,?,?,?)`); err != nil {
		return err
	}
	return nil
}

// constraintErr maps SQLite constraint violations (duplicate ISBN, email,
// barcode) onto ErrConflict so callers don't have to parse driver messages.
func constraintErr(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// ---------------------------------------------------------------------------
// Books and authors
// ---------------------------------------------------------------------------

// AddBook inserts catalog metadata without any author links.
func (d *Database) AddBook(isbn, title, publisher string, year int) (int64, error) {
	res, err := d.db.Exec(`INSERT INTO books(isbn,title,publisher,publish_year,created_at) VALUES(?,?,?,?,?)`,
		isbn, title, publisher, nullableYear(year), d.now().UTC())
	if err != nil {
		return 0, constraintErr(err)
	}
	return res.LastInsertId()
}

// AddBookWithAuthors inserts a book and links it to the named authors in one
// transaction. Author names are matched exactly (after trimming); unknown
// names create new author rows.
func (d *Database) AddBookWithAuthors(isbn, title, publisher string, year int, authorNames []string, category string) (int64, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO books(isbn,title,category,publisher,publish_year,created_at) VALUES(?,?,?,?,?,?)`,
		isbn, title, category, publisher, nullableYear(year), d.now().UTC())
	if err != nil {
		return 0, constraintErr(err)
	}
	bookID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := linkAuthors(tx, bookID, authorNames); err != nil {
		return 0, err
	}
	return bookID, tx.Commit()
}

// UpdateBook rewrites a book's metadata and replaces all of its author links.
func (d *Database) UpdateBook(bookID int64, isbn, title, publisher string, year int, authorNames []string, category string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE books SET isbn=?, title=?, category=?, publisher=?, publish_year=? WHERE id=?`,
		isbn, title, category, publisher, nullableYear(year), bookID)
	if err != nil {
		return constraintErr(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("book %d: %w", bookID, ErrNotFound)
	}

	if _, err := tx.Exec(`DELETE FROM book_authors WHERE book_id=?`, bookID); err != nil {
		return err
	}
	if err := linkAuthors(tx, bookID, authorNames); err != nil {
		return err
	}
	return tx.Commit()
}

// linkAuthors resolves each name by exact match, creating missing authors,
// and inserts the link rows.
func linkAuthors(tx *sql.Tx, bookID int64, authorNames []string) error {
	for _, name := range authorNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		var authorID int64
		err := tx.QueryRow(`SELECT id FROM authors WHERE name=?`, name).Scan(&authorID)
		if err == sql.ErrNoRows {
			res, insErr := tx.Exec(`INSERT INTO authors(name) VALUES(?)`, name)
			if insErr != nil {
				return insErr
			}
			if authorID, insErr = res.LastInsertId(); insErr != nil {
				return insErr
			}
		} else if err != nil {
			return err
		}

		if _, err := tx.Exec(`INSERT OR IGNORE INTO book_authors(book_id,author_id) VALUES(?,?)`, bookID, authorID); err != nil {
			return err
		}
	}
	return nil
}

// AddAuthor inserts an author directly, for catalog maintenance.
func (d *Database) AddAuthor(name string, birthDate *time.Time, country string) (int64, error) {
	res, err := d.db.Exec(`INSERT INTO authors(name,birth_date,country) VALUES(?,?,?)`, name, birthDate, country)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetBook fetches a single book.
func (d *Database) GetBook(id int64) (*Book, error) {
	var (
		b    Book
		year sql.NullInt64
	)
	err := d.db.QueryRow(`SELECT id,isbn,title,category,publisher,COALESCE(publish_year,0),created_at FROM books WHERE id=?`, id).
		Scan(&b.ID, &b.ISBN, &b.Title, &b.Category, &b.Publisher, &year, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	b.PublishYear = int(year.Int64)
	return &b, nil
}

// AuthorsByBook returns the linked author names ordered alphabetically.
func (d *Database) AuthorsByBook(bookID int64) ([]string, error) {
	rows, err := d.db.Query(`SELECT a.name FROM book_authors ba JOIN authors a ON a.id=ba.author_id WHERE ba.book_id=? ORDER BY a.name`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ---------------------------------------------------------------------------
// Copies
// ---------------------------------------------------------------------------

// AddCopy registers a new physical copy of a book. Copies start Available.
func (d *Database) AddCopy(bookID int64, barcode, location string) (int64, error) {
	var exists bool
	if err := d.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM books WHERE id=?)`, bookID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("book %d: %w", bookID, ErrNotFound)
	}

	res, err := d.addCopyStmt.Exec(bookID, barcode, StatusAvailable, location, d.now().UTC())
	if err != nil {
		return 0, constraintErr(err)
	}
	return res.LastInsertId()
}

// GetCopy fetches a single copy.
func (d *Database) GetCopy(id int64) (*Copy, error) {
	var c Copy
	err := d.db.QueryRow(`SELECT id,book_id,barcode,status,location,created_at FROM copies WHERE id=?`, id).
		Scan(&c.ID, &c.BookID, &c.Barcode, &c.Status, &c.Location, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("copy %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SetCopyStatus is the administrative entry for the Lost and Damaged states
// (and for reactivating such a copy to Available). It refuses to place a copy
// OnLoan directly, and refuses any change while an open loan holds the copy;
// the loan must be returned first.
func (d *Database) SetCopyStatus(copyID int64, status CopyStatus) error {
	if status == StatusOnLoan {
		return fmt.Errorf("%w: OnLoan is only reachable through a borrow", ErrInvalidArgument)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current CopyStatus
	err = tx.QueryRow(`SELECT status FROM copies WHERE id=?`, copyID).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("copy %d: %w", copyID, ErrNotFound)
	}
	if err != nil {
		return err
	}

	var open bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM loans WHERE copy_id=? AND return_date IS NULL)`, copyID).Scan(&open); err != nil {
		return err
	}
	if open {
		return fmt.Errorf("%w: copy %d has an open loan", ErrConflict, copyID)
	}

	if _, err := tx.Exec(`UPDATE copies SET status=? WHERE id=?`, status, copyID); err != nil {
		return err
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

// AddMember registers a member. passwordHash may be empty when the caller
// does not use credential checks.
func (d *Database) AddMember(name, email, phone, passwordHash string) (int64, error) {
	res, err := d.addMemberStmt.Exec(name, email, phone, d.now().UTC(), passwordHash)
	if err != nil {
		return 0, constraintErr(err)
	}
	return res.LastInsertId()
}

// GetMember fetches a single member.
func (d *Database) GetMember(id int64) (*Member, error) {
	var m Member
	err := d.db.QueryRow(`SELECT id,name,email,phone,join_date,password_hash FROM members WHERE id=?`, id).
		Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.JoinDate, &m.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMember rewrites a member's contact details.
func (d *Database) UpdateMember(id int64, name, email, phone string) error {
	res, err := d.db.Exec(`UPDATE members SET name=?, email=?, phone=? WHERE id=?`, name, email, phone, id)
	if err != nil {
		return constraintErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	return nil
}

// SetMemberPassword stores a new credential hash.
func (d *Database) SetMemberPassword(id int64, passwordHash string) error {
	res, err := d.db.Exec(`UPDATE members SET password_hash=? WHERE id=?`, passwordHash, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Loans
// ---------------------------------------------------------------------------

// GetLoan fetches a single loan.
func (d *Database) GetLoan(id int64) (*Loan, error) {
	loan, err := scanLoan(d.db.QueryRow(`SELECT id,copy_id,member_id,loan_date,due_date,return_date,fine FROM loans WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("loan %d: %w", id, ErrNotFound)
	}
	return loan, err
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*Loan, error) {
	var (
		l        Loan
		returned sql.NullTime
	)
	if err := row.Scan(&l.ID, &l.CopyID, &l.MemberID, &l.LoanDate, &l.DueDate, &returned, &l.Fine); err != nil {
		return nil, err
	}
	if returned.Valid {
		t := returned.Time
		l.ReturnDate = &t
	}
	return &l, nil
}

func nullableYear(year int) any {
	if year == 0 {
		return nil
	}
	return year
}
