// Package router is the presence-tracked message router: it decides the
// delivery scope of every inbound message, persists it, and fans it out to
// the live sinks. It owns no state of its own beyond the serialization lock;
// history belongs to the store, liveness to the presence registry.
package router

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/presence"
	"chat-relay/repositories"
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

type Router struct {
	// mu serializes "mutate presence" with "publish the resulting online
	// set", so two concurrent connects or disconnects can never interleave
	// into a stale user_status broadcast.
	mu       sync.Mutex
	log      *slog.Logger
	registry *presence.Registry
	messages repositories.IMessageRepository
	now      contract.Clock
	sinks    []contract.EventSink // permanent sinks, receive every published event
}

func NewRouter(log *slog.Logger, registry *presence.Registry,
	messages repositories.IMessageRepository, now contract.Clock) *Router {
	return &Router{
		log:      log,
		registry: registry,
		messages: messages,
		now:      now,
	}
}

// Add registers permanent sinks (projections, search indexing) that observe
// every event the router publishes, alongside the per-connection scopes.
func (r *Router) Add(sinks ...contract.EventSink) {
	r.sinks = append(r.sinks, sinks...)
}

// Connect marks the identity online with its delivery sink and broadcasts
// the updated online set to every live sink. Reconnecting under the same
// username replaces the sink but still triggers the broadcast.
func (r *Router) Connect(ctx context.Context, username string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registry.MarkOnline(username, sink)
	r.broadcastUserStatus(ctx)
}

// Disconnect removes the identity and broadcasts the shrunken online set.
// Disconnecting an identity that is already offline is a no-op, so repeated
// close signals from the transport are harmless.
func (r *Router) Disconnect(ctx context.Context, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.registry.IsOnline(username) {
		return
	}
	r.registry.MarkOffline(username)
	r.broadcastUserStatus(ctx)
}

// broadcastUserStatus publishes the current online set to the group scope.
// Callers hold r.mu.
func (r *Router) broadcastUserStatus(ctx context.Context) {
	users := r.registry.SnapshotOnline()
	sort.Strings(users)
	r.publish(ctx, r.registry.GroupScope(), event.UserStatus{Users: users})
}

// SubmitMessage validates, persists and fans out one inbound message.
// An offline sender or a whitespace-only body is dropped silently: no
// persistence, no publish, no acknowledgement. An empty recipient is the
// group signal and is normalized to nil before anything else looks at it.
func (r *Router) SubmitMessage(ctx context.Context, sender, recipient, rawBody string) {
	body := strings.TrimSpace(rawBody)
	if body == "" || !r.registry.IsOnline(sender) {
		r.log.Debug("dropping message", "sender", sender, "empty_body", body == "")
		return
	}

	var rcpt *string
	if recipient != "" {
		rcpt = &recipient
	}

	ts := r.now()
	id, err := r.messages.AppendMessage(sender, rcpt, body, ts)
	if err != nil {
		// A failed append is fatal to this message only, never to the router.
		r.log.Error("append failed", "sender", sender, "error", err)
		return
	}

	payload := event.NewMessage{
		ID:        id,
		Sender:    sender,
		Recipient: rcpt,
		Message:   body,
		Timestamp: ts,
	}

	if rcpt != nil {
		// Direct scope: the recipient if present, plus the sender's echo.
		// An offline recipient misses live delivery and catches up via
		// history; the echo happens regardless.
		var scope []contract.EventSink
		if sink, ok := r.registry.SinkFor(*rcpt); ok && *rcpt != sender {
			scope = append(scope, sink)
		}
		if sink, ok := r.registry.SinkFor(sender); ok {
			scope = append(scope, sink)
		}
		r.publish(ctx, scope, payload)
		return
	}

	// Group scope, recomputed at this instant. The snapshot may be stale by
	// the time a delivery lands; such deliveries are dropped per sink.
	r.publish(ctx, r.registry.GroupScope(), payload)
}

// DeleteMessage removes a single message if the requesting identity is its
// sender, then notifies every connected sink. The notification is global and
// mirrors the persisted state, not the outcome of the ownership check.
func (r *Router) DeleteMessage(ctx context.Context, requestingUser string, id uint64) (bool, error) {
	deleted, err := r.messages.DeleteMessage(id, requestingUser)
	if err != nil {
		return false, err
	}
	r.publish(ctx, r.registry.GroupScope(), event.MessageDeleted{ID: id})
	return deleted, nil
}

// ClearGroupMessages wipes the whole group log for any authenticated
// identity. Unlike DeleteMessage there is no ownership check; clients
// rely on the clear being unconditional.
func (r *Router) ClearGroupMessages(ctx context.Context) (int, error) {
	count, err := r.messages.DeleteAllGroupMessages()
	if err != nil {
		return 0, err
	}
	r.publish(ctx, r.registry.GroupScope(), event.GroupCleared{})
	return count, nil
}

// GroupHistory replays the group log in id order. Reads are not linearizable
// with concurrent appends; a reply may miss a message committed microseconds
// later.
func (r *Router) GroupHistory() ([]domain.Message, error) {
	return r.messages.ListGroupMessages()
}

// Conversation replays the direct history between two identities, in id
// order and symmetric in its arguments.
func (r *Router) Conversation(userA, userB string) ([]domain.Message, error) {
	return r.messages.ListConversation(userA, userB)
}

// publish delivers one event to each sink independently plus the permanent
// sinks. A failed delivery never aborts the others; it is logged and
// swallowed.
func (r *Router) publish(ctx context.Context, scope []contract.EventSink, e event.DomainEvent) {
	for _, sink := range append(scope, r.sinks...) {
		if err := sink.Consume(ctx, e); err != nil {
			r.log.Debug("delivery dropped", "event", e.Name(), "error", err)
		}
	}
}
