// Command inspect prints the raw records of a store as a table, one row
// per key under the given prefix. It opens the database read-only and
// bypasses the lock guard so it works against a running server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"chat-sync/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	opts := badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	header := color.New(color.BgBlack, color.FgGreen).Render(fmt.Sprintf(" scanning %q ", *prefix))
	fmt.Println(header)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Detail"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(v []byte) error {
				kind, detail := describe(key, v)
				table.Append([]string{key, kind, detail})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// describe decodes the value based on the key namespace. Index entries
// hold a plain reference, everything else is a JSON document.
func describe(key string, val []byte) (string, string) {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var m domain.Message
		if err := json.Unmarshal(val, &m); err != nil {
			return "MSG", fmt.Sprintf("unreadable: %v", err)
		}
		detail := m.Body
		if m.HasAttachment() {
			detail += fmt.Sprintf(" [file %s]", m.Attachment.Name)
		}
		return "MSG", fmt.Sprintf("%s at %s: %s", m.UserName, m.CreatedAt.Format("15:04:05"), truncate(detail, 64))
	case strings.HasPrefix(key, "chan:"):
		var ch domain.Channel
		if err := json.Unmarshal(val, &ch); err != nil {
			return "CHAN", fmt.Sprintf("unreadable: %v", err)
		}
		return "CHAN", fmt.Sprintf("%s %s (%d members)", ch.Kind, ch.Name, len(ch.Members))
	case strings.HasPrefix(key, "user:"):
		var u domain.User
		if err := json.Unmarshal(val, &u); err != nil {
			return "USER", fmt.Sprintf("unreadable: %v", err)
		}
		return "USER", fmt.Sprintf("%s <%s> plan=%s", u.DisplayName, u.Email, u.Plan)
	case strings.HasPrefix(key, "notif:"):
		var n domain.Notification
		if err := json.Unmarshal(val, &n); err != nil {
			return "NOTIF", fmt.Sprintf("unreadable: %v", err)
		}
		return "NOTIF", fmt.Sprintf("%s: %s", n.Title, truncate(n.Body, 64))
	case strings.HasPrefix(key, "invite:"), strings.HasPrefix(key, "email:"), strings.HasPrefix(key, "msgid:"):
		return "INDEX", string(val)
	}
	return "?", truncate(string(val), 64)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
