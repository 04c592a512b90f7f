package main

import (
	"bkalan/infrastructure/storage"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

func main() {
	_ = godotenv.Load()
	dbPath := flag.String("db", os.Getenv("BADGER_FILEPATH"), "Path to badger DB")
	limit := flag.Int("limit", 0, "Number of most recent messages, 0 for all")
	flag.Parse()
	if *dbPath == "" {
		log.Fatal("No database path: set BADGER_FILEPATH or pass -db")
	}

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	repository := storage.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelWarn), nil)
	messages, err := repository.GetMessages(*limit)
	if err != nil {
		log.Fatal(err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"At", "ID", "Author", "Lang", "Censored", "Content"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, message := range messages {
		censored := ""
		if message.Censored {
			censored = "yes"
		}
		table.Append([]string{
			message.At.Format("2006-01-02 15:04:05"),
			// First 8 characters are enough to tell messages apart
			message.ID.String()[:8],
			message.Author,
			message.Lang,
			censored,
			message.Content,
		})
	}
	table.Render()
	fmt.Printf("%d message(s)\n", len(messages))
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil && strings.Contains(err.Error(), "Log truncate required") {
		return nil, fmt.Errorf("database needs recovery, start the server once: %w", err)
	}
	return db, err
}
