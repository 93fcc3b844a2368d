package library

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempDB(t *testing.T) *Database {
	t.Helper()
	dir := t.TempDir()
	db, err := NewDatabase(filepath.Join(dir, "test.db"))
	require.NoError(t, err, "new db")
	t.Cleanup(func() { db.Close() })
	return db
}

// addBook inserts a book with a generated ISBN for tests that don't care
// about catalog metadata.
func addBook(t *testing.T, db *Database, title string) int64 {
	t.Helper()
	id, err := db.AddBook("isbn-"+title, title, "", 0)
	require.NoError(t, err, "add book")
	return id
}

func addCopy(t *testing.T, db *Database, bookID int64, barcode string) int64 {
	t.Helper()
	id, err := db.AddCopy(bookID, barcode, "")
	require.NoError(t, err, "add copy")
	return id
}

func addMember(t *testing.T, db *Database, name string) int64 {
	t.Helper()
	id, err := db.AddMember(name, name+"@example.com", "", "")
	require.NoError(t, err, "add member")
	return id
}

func TestAddBookWithAuthorsReusesExistingAuthor(t *testing.T) {
	db := tempDB(t)

	b1, err := db.AddBookWithAuthors("978-0452284234", "1984", "Secker & Warburg", 1949,
		[]string{"George Orwell"}, "Fiction")
	require.NoError(t, err)
	b2, err := db.AddBookWithAuthors("978-0452284240", "Animal Farm", "Secker & Warburg", 1945,
		[]string{" George Orwell ", "Unknown Illustrator"}, "Fiction")
	require.NoError(t, err)

	names1, err := db.AuthorsByBook(b1)
	require.NoError(t, err)
	assert.Equal(t, []string{"George Orwell"}, names1)

	names2, err := db.AuthorsByBook(b2)
	require.NoError(t, err)
	assert.Equal(t, []string{"George Orwell", "Unknown Illustrator"}, names2)

	// The trimmed name must resolve to the same author row, not a duplicate.
	var count int
	err = db.db.QueryRow(`SELECT COUNT(*) FROM authors WHERE name='George Orwell'`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpdateBookReplacesAuthorLinks(t *testing.T) {
	db := tempDB(t)

	id, err := db.AddBookWithAuthors("978-1", "Good Omens", "", 1990,
		[]string{"Terry Pratchett"}, "")
	require.NoError(t, err)

	err = db.UpdateBook(id, "978-1", "Good Omens", "Gollancz", 1990,
		[]string{"Terry Pratchett", "Neil Gaiman"}, "Fantasy")
	require.NoError(t, err)

	book, err := db.GetBook(id)
	require.NoError(t, err)
	assert.Equal(t, "Gollancz", book.Publisher)
	assert.Equal(t, "Fantasy", book.Category)

	names, err := db.AuthorsByBook(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"Neil Gaiman", "Terry Pratchett"}, names)

	err = db.UpdateBook(99999, "x", "x", "", 0, nil, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUniqueConstraintsReportConflict(t *testing.T) {
	db := tempDB(t)

	bookID, err := db.AddBook("978-0452284234", "1984", "", 1949)
	require.NoError(t, err)

	_, err = db.AddBook("978-0452284234", "Another 1984", "", 0)
	assert.ErrorIs(t, err, ErrConflict, "duplicate ISBN")

	addCopy(t, db, bookID, "C-001")
	_, err = db.AddCopy(bookID, "C-001", "")
	assert.ErrorIs(t, err, ErrConflict, "duplicate barcode")

	_, err = db.AddMember("Alice", "alice@example.com", "", "")
	require.NoError(t, err)
	_, err = db.AddMember("Another Alice", "alice@example.com", "", "")
	assert.ErrorIs(t, err, ErrConflict, "duplicate email")
}

func TestAddCopyRequiresBook(t *testing.T) {
	db := tempDB(t)
	_, err := db.AddCopy(12345, "B-1", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetCopyStatus(t *testing.T) {
	db := tempDB(t)
	bookID := addBook(t, db, "Dune")
	copyID := addCopy(t, db, bookID, "D-1")
	memberID := addMember(t, db, "Alice")

	// OnLoan is not an administrative target.
	err := db.SetCopyStatus(copyID, StatusOnLoan)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// A copy with an open loan cannot be touched.
	_, err = db.BorrowCopy(copyID, memberID, 7)
	require.NoError(t, err)
	err = db.SetCopyStatus(copyID, StatusLost)
	assert.ErrorIs(t, err, ErrConflict)

	// After the return the copy can be marked lost, and a lost copy is not
	// borrowable.
	_, err = db.ReturnLoan(bookID, memberID, 0)
	require.NoError(t, err)
	require.NoError(t, db.SetCopyStatus(copyID, StatusLost))

	_, err = db.Borrow(bookID, memberID, 7)
	assert.ErrorIs(t, err, ErrNoAvailableCopy)

	// Reactivation makes it lendable again.
	require.NoError(t, db.SetCopyStatus(copyID, StatusAvailable))
	_, err = db.Borrow(bookID, memberID, 7)
	assert.NoError(t, err)

	err = db.SetCopyStatus(99999, StatusLost)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetNotFound(t *testing.T) {
	db := tempDB(t)

	_, err := db.GetBook(1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.GetCopy(1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.GetMember(1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.GetLoan(1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMember(t *testing.T) {
	db := tempDB(t)
	id := addMember(t, db, "Alice")

	require.NoError(t, db.UpdateMember(id, "Alice Smith", "alice.smith@example.com", "555-1234"))

	m, err := db.GetMember(id)
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", m.Name)
	assert.Equal(t, "alice.smith@example.com", m.Email)
	assert.Equal(t, "555-1234", m.Phone)
	assert.WithinDuration(t, time.Now().UTC(), m.JoinDate, time.Minute)

	err = db.UpdateMember(99999, "x", "x@example.com", "")
	assert.ErrorIs(t, err, ErrNotFound)
}
