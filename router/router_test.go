package router

import (
	"chat-relay/domain/event"
	"chat-relay/presence"
	"chat-relay/repositories"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

// captureSink records everything published to it; optionally it fails every
// delivery to exercise the no-shared-fate rule.
type captureSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
	fail   bool
}

func (c *captureSink) Consume(ctx context.Context, e event.DomainEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return fmt.Errorf("sink unavailable")
	}
	c.events = append(c.events, e)
	return nil
}

func (c *captureSink) byName(name string) []event.DomainEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []event.DomainEvent
	for _, e := range c.events {
		if e.Name() == name {
			out = append(out, e)
		}
	}
	return out
}

func (c *captureSink) lastUserStatus() (event.UserStatus, bool) {
	statuses := c.byName("user_status")
	if len(statuses) == 0 {
		return event.UserStatus{}, false
	}
	return statuses[len(statuses)-1].(event.UserStatus), true
}

func newRouter(t *testing.T) *Router {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := repositories.NewMessageRepository(db, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return NewRouter(slog.Default(), presence.NewRegistry(), repo, func() time.Time {
		return fixedTime
	})
}

func TestRouter_DirectMessage_Reaches_Both_Sides_Only(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := newRouter(t)

	alice, bob, carol := &captureSink{}, &captureSink{}, &captureSink{}
	r.Connect(ctx, "alice", alice)
	r.Connect(ctx, "bob", bob)
	// carol never connects; her sink must stay silent

	// When alice sends bob a direct message
	r.SubmitMessage(ctx, "alice", "bob", "hi")

	// Then exactly one message is persisted with the right scope
	history, err := r.Conversation("alice", "bob")
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("alice", history[0].Sender)
	req.NotNil(history[0].Recipient)
	req.Equal("bob", *history[0].Recipient)
	req.Equal("hi", history[0].Body)
	req.Equal(fixedTime, history[0].Timestamp)

	// And both sides got the live payload
	for _, sink := range []*captureSink{alice, bob} {
		deliveries := sink.byName("new_message")
		req.Len(deliveries, 1)
		msg := deliveries[0].(event.NewMessage)
		req.Equal("hi", msg.Message)
		req.Equal("alice", msg.Sender)
		req.Equal(history[0].ID, msg.ID)
	}
	req.Empty(carol.events)
}

func TestRouter_EmptyRecipient_Is_Group_Scope(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := newRouter(t)

	alice, bob := &captureSink{}, &captureSink{}
	r.Connect(ctx, "alice", alice)
	r.Connect(ctx, "bob", bob)

	r.SubmitMessage(ctx, "alice", "", "hello all")

	// Persisted as group: recipient normalized to nil
	history, err := r.GroupHistory()
	req.NoError(err)
	req.Len(history, 1)
	req.Nil(history[0].Recipient)
	req.Equal("hello all", history[0].Body)

	// Every online sink received it
	req.Len(alice.byName("new_message"), 1)
	req.Len(bob.byName("new_message"), 1)
}

func TestRouter_WhitespaceBody_Is_Dropped_Silently(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := newRouter(t)

	alice := &captureSink{}
	r.Connect(ctx, "alice", alice)

	r.SubmitMessage(ctx, "alice", "", "   ")

	history, err := r.GroupHistory()
	req.NoError(err)
	req.Empty(history)
	req.Empty(alice.byName("new_message"))
}

func TestRouter_OfflineSender_Is_Dropped_Silently(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := newRouter(t)

	bob := &captureSink{}
	r.Connect(ctx, "bob", bob)

	// alice never connected
	r.SubmitMessage(ctx, "alice", "", "hello?")

	history, err := r.GroupHistory()
	req.NoError(err)
	req.Empty(history)
	req.Empty(bob.byName("new_message"))
}

func TestRouter_UserStatus_Follows_Presence(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := newRouter(t)

	alice, bob := &captureSink{}, &captureSink{}

	r.Connect(ctx, "alice", alice)
	status, ok := alice.lastUserStatus()
	req.True(ok)
	req.Equal([]string{"alice"}, status.Users)

	r.Connect(ctx, "bob", bob)
	status, ok = alice.lastUserStatus()
	req.True(ok)
	req.Equal([]string{"alice", "bob"}, status.Users)

	r.Disconnect(ctx, "bob")
	status, ok = alice.lastUserStatus()
	req.True(ok)
	req.NotContains(status.Users, "bob")

	// The departed sink no longer gets broadcasts
	before := len(bob.events)
	r.SubmitMessage(ctx, "alice", "", "anyone?")
	req.Len(bob.events, before)
}

func TestRouter_Disconnect_Twice_Is_NoOp(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := newRouter(t)

	alice, bob := &captureSink{}, &captureSink{}
	r.Connect(ctx, "alice", alice)
	r.Connect(ctx, "bob", bob)

	r.Disconnect(ctx, "bob")
	statusesBefore := len(alice.byName("user_status"))

	// A second close signal for the same identity must not re-broadcast
	r.Disconnect(ctx, "bob")
	req.Len(alice.byName("user_status"), statusesBefore)
}

func TestRouter_DirectMessage_Echoes_Even_If_Recipient_Offline(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := newRouter(t)

	alice := &captureSink{}
	r.Connect(ctx, "alice", alice)

	// "mallory" is not online, not even a registered user: the recipient is
	// an opaque label at write time
	r.SubmitMessage(ctx, "alice", "mallory", "are you there?")

	history, err := r.Conversation("alice", "mallory")
	req.NoError(err)
	req.Len(history, 1)

	deliveries := alice.byName("new_message")
	req.Len(deliveries, 1)
}

func TestRouter_DeleteMessage_Ownership(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := newRouter(t)

	alice, bob := &captureSink{}, &captureSink{}
	r.Connect(ctx, "alice", alice)
	r.Connect(ctx, "bob", bob)

	r.SubmitMessage(ctx, "alice", "", "delete me")
	history, err := r.GroupHistory()
	req.NoError(err)
	req.Len(history, 1)
	id := history[0].ID

	// bob is not the sender: nothing changes, no error either
	deleted, err := r.DeleteMessage(ctx, "bob", id)
	req.NoError(err)
	req.False(deleted)
	history, err = r.GroupHistory()
	req.NoError(err)
	req.Len(history, 1)

	// alice owns it
	deleted, err = r.DeleteMessage(ctx, "alice", id)
	req.NoError(err)
	req.True(deleted)
	history, err = r.GroupHistory()
	req.NoError(err)
	req.Empty(history)

	// Deletion notifications are global, whoever asked
	req.NotEmpty(bob.byName("message_deleted"))
}

func TestRouter_ClearGroup_Ignores_Ownership(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := newRouter(t)

	alice, bob := &captureSink{}, &captureSink{}
	r.Connect(ctx, "alice", alice)
	r.Connect(ctx, "bob", bob)

	r.SubmitMessage(ctx, "alice", "", "one")
	r.SubmitMessage(ctx, "bob", "", "two")
	r.SubmitMessage(ctx, "alice", "bob", "keep me")

	// Any authenticated identity may wipe the group log
	count, err := r.ClearGroupMessages(ctx)
	req.NoError(err)
	req.Equal(2, count)

	group, err := r.GroupHistory()
	req.NoError(err)
	req.Empty(group)

	direct, err := r.Conversation("alice", "bob")
	req.NoError(err)
	req.Len(direct, 1)

	req.NotEmpty(alice.byName("group_cleared"))
	req.NotEmpty(bob.byName("group_cleared"))
}

func TestRouter_Failed_Delivery_Does_Not_Abort_Others(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := newRouter(t)

	broken := &captureSink{fail: true}
	bob := &captureSink{}
	r.Connect(ctx, "alice", broken)
	r.Connect(ctx, "bob", bob)

	r.SubmitMessage(ctx, "bob", "", "still delivered")

	// The broken sink swallowed nothing, bob still got his copy, and the
	// message was persisted before any delivery was attempted
	req.Len(bob.byName("new_message"), 1)
	history, err := r.GroupHistory()
	req.NoError(err)
	req.Len(history, 1)
}

func TestRouter_Reconnect_Replaces_Delivery_Channel(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := newRouter(t)

	old := &captureSink{}
	r.Connect(ctx, "alice", old)

	fresh := &captureSink{}
	r.Connect(ctx, "alice", fresh)

	// The reconnect still triggered a user_status broadcast
	status, ok := fresh.lastUserStatus()
	req.True(ok)
	req.Equal([]string{"alice"}, status.Users)

	before := len(old.events)
	r.SubmitMessage(ctx, "alice", "", "after reconnect")

	// Only the fresh channel observes traffic now
	req.Len(old.events, before)
	req.Len(fresh.byName("new_message"), 1)
}

func TestRouter_PermanentSinks_Observe_All_Events(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	r := newRouter(t)

	projection := &captureSink{}
	r.Add(projection)

	alice := &captureSink{}
	r.Connect(ctx, "alice", alice)
	r.SubmitMessage(ctx, "alice", "bob", "indexed too")

	// Direct scope delivery still reaches the permanent sink
	req.Len(projection.byName("new_message"), 1)
	req.NotEmpty(projection.byName("user_status"))
}
