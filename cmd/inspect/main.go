// Command inspect dumps the users table and the message log of a chat-relay
// database to the terminal, for debugging a deployment offline.
package main

import (
	"chat-relay/domain"
	"chat-relay/repositories"
	"flag"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	if err := dumpUsers(db); err != nil {
		log.Fatal("Error while dumping users: ", err)
	}
	if err := dumpMessages(db); err != nil {
		log.Fatal("Error while dumping messages: ", err)
	}
}

func dumpUsers(db *badger.DB) error {
	repo, err := repositories.NewUserRepository(db)
	if err != nil {
		return err
	}
	defer repo.Close()

	users, err := repo.ListUsers()
	if err != nil {
		return err
	}

	color.Green.Printf("users (%d)\n", len(users))
	table := newTable([]string{"ID", "Username", "Private Key", "Public Key", "Created At"})
	for _, u := range users {
		table.Append([]string{
			strconv.FormatUint(u.ID, 10),
			u.Username,
			strconv.FormatInt(u.PrivateKey, 10),
			strconv.FormatInt(u.PublicKey, 10),
			u.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
	return nil
}

func dumpMessages(db *badger.DB) error {
	repo, err := repositories.NewMessageRepository(db, slog.Default())
	if err != nil {
		return err
	}
	defer repo.Close()

	group, err := repo.ListGroupMessages()
	if err != nil {
		return err
	}

	color.Green.Printf("group messages (%d)\n", len(group))
	table := newTable([]string{"ID", "Sender", "Recipient", "Message", "Timestamp"})
	for _, m := range group {
		table.Append(messageRow(m))
	}
	table.Render()
	return nil
}

func messageRow(m domain.Message) []string {
	recipient := "<group>"
	if m.Recipient != nil {
		recipient = *m.Recipient
	}
	return []string{
		strconv.FormatUint(m.ID, 10),
		m.Sender,
		recipient,
		m.Body,
		m.Timestamp.Format("2006-01-02 15:04:05"),
	}
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
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
	return table
}
