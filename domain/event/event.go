package event

import "time"

// DomainEvent is anything the router publishes to delivery sinks. Name is the
// wire-level event name seen by connected clients.
type DomainEvent interface {
	Name() string
}

// NewMessage is published for every accepted message, to the two-sink direct
// scope or to the full group scope depending on Recipient.
type NewMessage struct {
	ID        uint64    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient *string   `json:"recipient"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (NewMessage) Name() string { return "new_message" }

// MessageDeleted notifies every connected sink that a single message is gone.
// Deletion notifications are global, not scoped to the original conversation.
type MessageDeleted struct {
	ID uint64 `json:"id"`
}

func (MessageDeleted) Name() string { return "message_deleted" }

// GroupCleared notifies every connected sink that the group log was wiped.
type GroupCleared struct{}

func (GroupCleared) Name() string { return "group_cleared" }

// UserStatus carries the full online set after any presence change.
type UserStatus struct {
	Users []string `json:"users"`
}

func (UserStatus) Name() string { return "user_status" }
