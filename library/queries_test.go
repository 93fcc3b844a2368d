package library

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopiesByBookAnnotatesBorrower(t *testing.T) {
	db := tempDB(t)
	bookID := addBook(t, db, "Lolita")
	addCopy(t, db, bookID, "L-2")
	addCopy(t, db, bookID, "L-1")
	addCopy(t, db, bookID, "L-3")
	memberID := addMember(t, db, "Alice")

	// The borrow claims L-1, the smallest barcode.
	_, err := db.Borrow(bookID, memberID, 7)
	require.NoError(t, err)

	copies, err := db.CopiesByBook(bookID)
	require.NoError(t, err)
	require.Len(t, copies, 3)

	barcodes := lo.Map(copies, func(c *CopyInfo, _ int) string { return c.Barcode })
	assert.Equal(t, []string{"L-1", "L-2", "L-3"}, barcodes, "ordered by barcode")

	assert.Equal(t, StatusOnLoan, copies[0].Status)
	assert.Equal(t, "Alice", copies[0].BorrowerName)
	assert.Empty(t, copies[1].BorrowerName)
	assert.Empty(t, copies[2].BorrowerName)
}

func TestOpenLoansByMemberOrdering(t *testing.T) {
	db := tempDB(t)
	b1 := addBook(t, db, "Blindness")
	b2 := addBook(t, db, "Beloved")
	b3 := addBook(t, db, "Atonement")
	addCopy(t, db, b1, "B1-1")
	addCopy(t, db, b2, "B2-1")
	addCopy(t, db, b3, "B3-1")
	memberID := addMember(t, db, "Alice")

	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return start }

	_, err := db.Borrow(b1, memberID, 21)
	require.NoError(t, err)
	_, err = db.Borrow(b2, memberID, 7)
	require.NoError(t, err)
	closed, err := db.Borrow(b3, memberID, 3)
	require.NoError(t, err)

	// A returned loan must not show up.
	_, err = db.ReturnLoanByID(closed.ID, 0)
	require.NoError(t, err)

	loans, err := db.OpenLoansByMember(memberID)
	require.NoError(t, err)
	require.Len(t, loans, 2)

	assert.Equal(t, "Beloved", loans[0].BookTitle, "earliest due date first")
	assert.Equal(t, "Blindness", loans[1].BookTitle)
	assert.True(t, loans[0].DueDate.Before(loans[1].DueDate))

	none, err := db.OpenLoansByMember(99999)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchBooks(t *testing.T) {
	db := tempDB(t)
	_, err := db.AddBookWithAuthors("978-0452284234", "1984", "", 1949, []string{"George Orwell"}, "")
	require.NoError(t, err)
	_, err = db.AddBookWithAuthors("978-0141187761", "Brave New World", "", 1932, []string{"Aldous Huxley"}, "")
	require.NoError(t, err)
	_, err = db.AddBookWithAuthors("978-0586044476", "The Dispossessed", "", 1974, []string{"Ursula K. Le Guin"}, "")
	require.NoError(t, err)

	// Empty keyword lists the catalog ordered by title.
	all, err := db.SearchBooks("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	titles := lo.Map(all, func(b *BookInfo, _ int) string { return b.Title })
	assert.Equal(t, []string{"1984", "Brave New World", "The Dispossessed"}, titles)

	// Title substring.
	hits, err := db.SearchBooks("brave")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Brave New World", hits[0].Title)
	assert.Equal(t, []string{"Aldous Huxley"}, hits[0].Authors)

	// ISBN substring.
	hits, err = db.SearchBooks("0586044476")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "The Dispossessed", hits[0].Title)

	// No match.
	hits, err = db.SearchBooks("moby dick")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchMembers(t *testing.T) {
	db := tempDB(t)
	addMember(t, db, "Alice")
	addMember(t, db, "Bob")
	_, err := db.AddMember("Alicia Keys", "akeys@music.example.com", "", "")
	require.NoError(t, err)

	all, err := db.SearchMembers("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Alice", all[0].Name, "ordered by name")

	hits, err := db.SearchMembers("alic")
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = db.SearchMembers("music.example")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Alicia Keys", hits[0].Name)
}
