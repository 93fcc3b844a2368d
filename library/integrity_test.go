package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteBookVetoedWhileOnLoan(t *testing.T) {
	db := tempDB(t)
	bookID, err := db.AddBookWithAuthors("978-7", "It", "Viking", 1986, []string{"Stephen King"}, "Horror")
	require.NoError(t, err)
	copyID := addCopy(t, db, bookID, "IT-1")
	memberID := addMember(t, db, "Alice")

	_, err = db.Borrow(bookID, memberID, 7)
	require.NoError(t, err)

	ok, err := db.CanDeleteBook(bookID)
	require.NoError(t, err)
	assert.False(t, ok)
	err = db.DeleteBook(bookID)
	assert.ErrorIs(t, err, ErrConflict)

	// The veto must not have removed anything.
	_, err = db.GetBook(bookID)
	require.NoError(t, err)
	_, err = db.GetCopy(copyID)
	require.NoError(t, err)

	loan, err := db.ReturnLoan(bookID, memberID, 10)
	require.NoError(t, err)

	ok, err = db.CanDeleteBook(bookID)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, db.DeleteBook(bookID))

	// Book, copies, loan history and author links are all gone.
	_, err = db.GetBook(bookID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.GetCopy(copyID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.GetLoan(loan.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var links int
	require.NoError(t, db.db.QueryRow(`SELECT COUNT(*) FROM book_authors WHERE book_id=?`, bookID).Scan(&links))
	assert.Zero(t, links)

	// Authors themselves survive for other books.
	var authors int
	require.NoError(t, db.db.QueryRow(`SELECT COUNT(*) FROM authors WHERE name='Stephen King'`).Scan(&authors))
	assert.Equal(t, 1, authors)
}

func TestDeleteMemberKeepsLoanHistory(t *testing.T) {
	db := tempDB(t)
	bookID := addBook(t, db, "Misery")
	addCopy(t, db, bookID, "M-1")
	memberID := addMember(t, db, "Alice")

	_, err := db.Borrow(bookID, memberID, 7)
	require.NoError(t, err)

	ok, err := db.CanDeleteMember(memberID)
	require.NoError(t, err)
	assert.False(t, ok)
	err = db.DeleteMember(memberID)
	assert.ErrorIs(t, err, ErrConflict)

	loan, err := db.ReturnLoan(bookID, memberID, 10)
	require.NoError(t, err)

	ok, err = db.CanDeleteMember(memberID)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, db.DeleteMember(memberID))

	_, err = db.GetMember(memberID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The closed loan stays behind, still naming the old member id.
	stored, err := db.GetLoan(loan.ID)
	require.NoError(t, err)
	assert.Equal(t, memberID, stored.MemberID)
	assert.False(t, stored.Open())
}

func TestDeleteNotFound(t *testing.T) {
	db := tempDB(t)

	assert.ErrorIs(t, db.DeleteBook(42), ErrNotFound)
	assert.ErrorIs(t, db.DeleteMember(42), ErrNotFound)
}
