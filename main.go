package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"library-circulation/library"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var dbPath string

func main() {
	root := &cobra.Command{
		Use:           "libcirc",
		Short:         "Library circulation manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "library.db", "path to the SQLite database")

	root.AddCommand(
		addBookCmd(),
		addCopyCmd(),
		addMemberCmd(),
		listBooksCmd(),
		copiesCmd(),
		loansCmd(),
		borrowCmd(),
		returnCmd(),
		markCopyCmd(),
		deleteBookCmd(),
		deleteMemberCmd(),
		resetPasswordCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openManager() (*library.LibraryManager, error) {
	return library.NewLibraryManager(dbPath)
}

// readPassword securely reads a password with masking.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println() // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

// authenticateMember prompts for and verifies a member's credentials before
// a circulation action runs on their behalf.
func authenticateMember(mgr *library.LibraryManager, memberID int64) error {
	member, err := mgr.GetMember(memberID)
	if err != nil {
		return err
	}
	if member.PasswordHash == "" {
		return nil
	}
	password, err := readPassword(fmt.Sprintf("Password for %s: ", member.Name))
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	return mgr.AuthenticateMember(memberID, password)
}

func addBookCmd() *cobra.Command {
	var (
		isbn, title, publisher, category string
		year                             int
		authors                          []string
	)
	cmd := &cobra.Command{
		Use:   "add-book",
		Short: "Add a book to the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			id, err := mgr.AddBookWithAuthors(isbn, title, publisher, year, authors, category)
			if err != nil {
				if errors.Is(err, library.ErrConflict) {
					return fmt.Errorf("a book with ISBN %s already exists", isbn)
				}
				return err
			}
			fmt.Printf("Added book ID %d (%s)\n", id, title)
			return nil
		},
	}
	cmd.Flags().StringVar(&isbn, "isbn", "", "ISBN (unique)")
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&publisher, "publisher", "", "publisher")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().IntVar(&year, "year", 0, "publish year")
	cmd.Flags().StringSliceVar(&authors, "author", nil, "author name (repeatable)")
	cmd.MarkFlagRequired("isbn")
	cmd.MarkFlagRequired("title")
	return cmd
}

func addCopyCmd() *cobra.Command {
	var (
		bookID            int64
		barcode, location string
	)
	cmd := &cobra.Command{
		Use:   "add-copy",
		Short: "Register a physical copy of a book",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			if barcode == "" {
				barcode = uuid.NewString()
			}
			id, err := mgr.AddCopy(bookID, barcode, location)
			if err != nil {
				if errors.Is(err, library.ErrConflict) {
					return fmt.Errorf("barcode %s is already in use", barcode)
				}
				return err
			}
			fmt.Printf("Added copy ID %d with barcode %s\n", id, barcode)
			return nil
		},
	}
	cmd.Flags().Int64Var(&bookID, "book", 0, "book ID")
	cmd.Flags().StringVar(&barcode, "barcode", "", "barcode (generated when omitted)")
	cmd.Flags().StringVar(&location, "location", "", "shelf location")
	cmd.MarkFlagRequired("book")
	return cmd
}

func addMemberCmd() *cobra.Command {
	var name, email, phone string
	cmd := &cobra.Command{
		Use:   "add-member",
		Short: "Register a library member",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			password, err := readPassword(fmt.Sprintf("Password for %s (empty to skip): ", name))
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}

			id, err := mgr.AddMember(name, email, phone, password)
			if err != nil {
				if errors.Is(err, library.ErrConflict) {
					return fmt.Errorf("a member with email %s already exists", email)
				}
				return err
			}
			fmt.Printf("Added member '%s' with ID %d\n", name, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "member name")
	cmd.Flags().StringVar(&email, "email", "", "email (unique)")
	cmd.Flags().StringVar(&phone, "phone", "", "phone")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	return cmd
}

func listBooksCmd() *cobra.Command {
	var keyword string
	cmd := &cobra.Command{
		Use:   "list-books",
		Short: "List or search the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			books, err := mgr.SearchBooks(keyword)
			if err != nil {
				return err
			}
			if len(books) == 0 {
				fmt.Println("No books found.")
				return nil
			}

			fmt.Printf("%-5s %-15s %-35s %-30s\n", "ID", "ISBN", "Title", "Authors")
			fmt.Println(strings.Repeat("-", 90))
			for _, b := range books {
				fmt.Printf("%-5d %-15s %-35s %-30s\n", b.ID, b.ISBN,
					truncateString(b.Title, 35), truncateString(strings.Join(b.Authors, ", "), 30))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&keyword, "search", "", "match title or ISBN")
	return cmd
}

func copiesCmd() *cobra.Command {
	var bookID int64
	cmd := &cobra.Command{
		Use:   "copies",
		Short: "List a book's copies and who holds them",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			book, err := mgr.GetBook(bookID)
			if err != nil {
				return err
			}
			copies, err := mgr.CopiesByBook(bookID)
			if err != nil {
				return err
			}

			available := lo.CountBy(copies, func(c *library.CopyInfo) bool {
				return c.Status == library.StatusAvailable
			})
			fmt.Printf("Copies of '%s' (%d of %d available):\n", book.Title, available, len(copies))
			if len(copies) == 0 {
				return nil
			}
			fmt.Printf("%-5s %-15s %-10s %-15s %-25s\n", "ID", "Barcode", "Status", "Location", "Borrower")
			fmt.Println(strings.Repeat("-", 75))
			for _, c := range copies {
				fmt.Println(library.PrettyCopy(c))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&bookID, "book", 0, "book ID")
	cmd.MarkFlagRequired("book")
	return cmd
}

func loansCmd() *cobra.Command {
	var memberID int64
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "List a member's open loans",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			member, err := mgr.GetMember(memberID)
			if err != nil {
				return err
			}
			loans, err := mgr.OpenLoansByMember(memberID)
			if err != nil {
				return err
			}
			if len(loans) == 0 {
				fmt.Printf("%s has no open loans.\n", member.Name)
				return nil
			}

			fmt.Printf("Open loans for %s:\n", member.Name)
			fmt.Printf("%-5s %-30s %-12s %-12s\n", "ID", "Title", "Borrowed", "Due")
			fmt.Println(strings.Repeat("-", 65))
			for _, l := range loans {
				fmt.Println(library.PrettyLoan(l))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&memberID, "member", 0, "member ID")
	cmd.MarkFlagRequired("member")
	return cmd
}

func borrowCmd() *cobra.Command {
	var (
		bookID, memberID int64
		days             int
	)
	cmd := &cobra.Command{
		Use:   "borrow",
		Short: "Lend an available copy of a book to a member",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			if err := authenticateMember(mgr, memberID); err != nil {
				return err
			}

			loan, err := mgr.Borrow(bookID, memberID, days)
			if err != nil {
				if errors.Is(err, library.ErrNoAvailableCopy) {
					return fmt.Errorf("no copies of book %d are available right now", bookID)
				}
				return err
			}
			cp, _ := mgr.GetCopy(loan.CopyID)
			barcode := lo.TernaryF(cp != nil,
				func() string { return cp.Barcode },
				func() string { return "?" })
			fmt.Printf("Loan %d created: copy %s due back %s\n",
				loan.ID, barcode, loan.DueDate.Format("2006-01-02"))
			return nil
		},
	}
	cmd.Flags().Int64Var(&bookID, "book", 0, "book ID")
	cmd.Flags().Int64Var(&memberID, "member", 0, "member ID")
	cmd.Flags().IntVar(&days, "days", library.DefaultLoanDays, "loan period in days")
	cmd.MarkFlagRequired("book")
	cmd.MarkFlagRequired("member")
	return cmd
}

func returnCmd() *cobra.Command {
	var (
		bookID, memberID int64
		finePerDay       float64
	)
	cmd := &cobra.Command{
		Use:   "return",
		Short: "Return a member's borrowed copy of a book",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			if err := authenticateMember(mgr, memberID); err != nil {
				return err
			}

			loan, err := mgr.ReturnLoan(bookID, memberID, finePerDay)
			if err != nil {
				if errors.Is(err, library.ErrNoOpenLoan) {
					return fmt.Errorf("member %d has no open loan for book %d", memberID, bookID)
				}
				return err
			}
			if loan.Fine > 0 {
				fmt.Printf("Loan %d closed. Fine due: %.2f\n", loan.ID, loan.Fine)
			} else {
				fmt.Printf("Loan %d closed. No fine.\n", loan.ID)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&bookID, "book", 0, "book ID")
	cmd.Flags().Int64Var(&memberID, "member", 0, "member ID")
	cmd.Flags().Float64Var(&finePerDay, "fine-per-day", library.DefaultFinePerDay, "fine per overdue day")
	cmd.MarkFlagRequired("book")
	cmd.MarkFlagRequired("member")
	return cmd
}

func markCopyCmd() *cobra.Command {
	var (
		copyID int64
		state  string
	)
	cmd := &cobra.Command{
		Use:   "mark-copy",
		Short: "Administratively mark a copy lost, damaged or available",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status library.CopyStatus
			switch strings.ToLower(state) {
			case "lost":
				status = library.StatusLost
			case "damaged":
				status = library.StatusDamaged
			case "available":
				status = library.StatusAvailable
			default:
				return fmt.Errorf("unknown state %q (want lost, damaged or available)", state)
			}

			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			if err := mgr.SetCopyStatus(copyID, status); err != nil {
				if errors.Is(err, library.ErrConflict) {
					return fmt.Errorf("copy %d is on loan; return it first", copyID)
				}
				return err
			}
			fmt.Printf("Copy %d marked %s\n", copyID, status)
			return nil
		},
	}
	cmd.Flags().Int64Var(&copyID, "copy", 0, "copy ID")
	cmd.Flags().StringVar(&state, "state", "", "lost | damaged | available")
	cmd.MarkFlagRequired("copy")
	cmd.MarkFlagRequired("state")
	return cmd
}

func deleteBookCmd() *cobra.Command {
	var bookID int64
	cmd := &cobra.Command{
		Use:   "delete-book",
		Short: "Delete a book with its copies, loan history and author links",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			if err := mgr.DeleteBook(bookID); err != nil {
				if errors.Is(err, library.ErrConflict) {
					return fmt.Errorf("book %d has a copy on loan and cannot be deleted", bookID)
				}
				return err
			}
			fmt.Printf("Deleted book %d\n", bookID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&bookID, "book", 0, "book ID")
	cmd.MarkFlagRequired("book")
	return cmd
}

func deleteMemberCmd() *cobra.Command {
	var memberID int64
	cmd := &cobra.Command{
		Use:   "delete-member",
		Short: "Delete a member (closed loans are kept as history)",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			if err := mgr.DeleteMember(memberID); err != nil {
				if errors.Is(err, library.ErrConflict) {
					return fmt.Errorf("member %d still has an open loan and cannot be deleted", memberID)
				}
				return err
			}
			fmt.Printf("Deleted member %d\n", memberID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&memberID, "member", 0, "member ID")
	cmd.MarkFlagRequired("member")
	return cmd
}

func resetPasswordCmd() *cobra.Command {
	var memberID int64
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Reset a member's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()

			member, err := mgr.GetMember(memberID)
			if err != nil {
				return err
			}
			password, err := readPassword(fmt.Sprintf("New password for %s (ID: %d): ", member.Name, memberID))
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			if err := mgr.ResetMemberPassword(memberID, password); err != nil {
				return err
			}
			fmt.Printf("Password reset for %s (ID: %d)\n", member.Name, memberID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&memberID, "member", 0, "member ID")
	cmd.MarkFlagRequired("member")
	return cmd
}

func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return s[:maxLength]
	}
	return s[:maxLength-3] + "..."
}
