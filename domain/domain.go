// Package domain holds the entities shared by the store, the router and the
// transport layer. It has no dependencies on any of them.
package domain

import "time"

// User is a registered identity. The keypair fields are display-only values
// carried through the data model; nothing is ever encrypted with them.
type User struct {
	ID         uint64
	Username   string
	Credential string
	PrivateKey int64
	PublicKey  int64
	CreatedAt  time.Time
}

// Message is one persisted chat message. Recipient nil means group scope,
// non-nil means a direct message to exactly that username. There is no third
// scope.
type Message struct {
	ID        uint64
	Sender    string
	Recipient *string
	Body      string
	Timestamp time.Time
}

// IsGroup reports whether the message has group (broadcast) scope.
func (m Message) IsGroup() bool {
	return m.Recipient == nil
}
