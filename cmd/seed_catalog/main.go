package main

import (
	"flag"
	"fmt"
	"os"

	"library-circulation/library"

	jsoniter "github.com/json-iterator/go"
)

// seedFile is the shape of the JSON catalog seed.
type seedFile struct {
	Books []struct {
		ISBN      string   `json:"isbn"`
		Title     string   `json:"title"`
		Publisher string   `json:"publisher"`
		Year      int      `json:"year"`
		Category  string   `json:"category"`
		Authors   []string `json:"authors"`
		Copies    []struct {
			Barcode  string `json:"barcode"`
			Location string `json:"location"`
		} `json:"copies"`
	} `json:"books"`
	Members []struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"members"`
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	seedPath := flag.String("seed", "seed.json", "path to the JSON seed file")
	dbPath := flag.String("db", "library.db", "path to the SQLite database")
	flag.Parse()

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading seed file: %v\n", err)
		os.Exit(1)
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing seed file: %v\n", err)
		os.Exit(1)
	}

	manager, err := library.NewLibraryManager(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	successCount := 0
	errorCount := 0

	for _, b := range seed.Books {
		fmt.Printf("Importing: %s (%s)... ", b.Title, b.ISBN)
		bookID, err := manager.AddBookWithAuthors(b.ISBN, b.Title, b.Publisher, b.Year, b.Authors, b.Category)
		if err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Printf("SUCCESS (ID: %d)\n", bookID)
		successCount++

		for _, c := range b.Copies {
			if _, err := manager.AddCopy(bookID, c.Barcode, c.Location); err != nil {
				fmt.Printf("  copy %s: ERROR - %v\n", c.Barcode, err)
				errorCount++
				continue
			}
			fmt.Printf("  copy %s added\n", c.Barcode)
		}
	}

	for _, m := range seed.Members {
		fmt.Printf("Registering member: %s... ", m.Name)
		// Seeded members get no password; reset-password sets one later.
		id, err := manager.AddMember(m.Name, m.Email, m.Phone, "")
		if err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Printf("SUCCESS (ID: %d)\n", id)
		successCount++
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d records\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)
}
