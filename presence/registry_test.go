package presence

import (
	"chat-relay/domain/event"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubSink struct{ name string }

func (s *stubSink) Consume(ctx context.Context, e event.DomainEvent) error { return nil }

func TestRegistry_MarkOnline_Then_Offline(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink := &stubSink{name: "alice"}

	// Given nobody online
	req.Empty(registry.SnapshotOnline())
	req.False(registry.IsOnline("alice"))

	// When alice connects
	registry.MarkOnline("alice", sink)

	// Then she is online with her sink
	req.True(registry.IsOnline("alice"))
	req.ElementsMatch([]string{"alice"}, registry.SnapshotOnline())
	got, ok := registry.SinkFor("alice")
	req.True(ok)
	req.Same(sink, got)

	// When she disconnects
	registry.MarkOffline("alice")

	// Then the entry is gone
	req.False(registry.IsOnline("alice"))
	req.Empty(registry.SnapshotOnline())
}

func TestRegistry_Reconnect_Replaces_Sink(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	first := &stubSink{name: "first"}
	second := &stubSink{name: "second"}

	// Given an online user
	registry.MarkOnline("alice", first)

	// When the same username connects again
	registry.MarkOnline("alice", second)

	// Then there is still one entry and it points at the new sink
	req.Len(registry.SnapshotOnline(), 1)
	got, ok := registry.SinkFor("alice")
	req.True(ok)
	req.Same(second, got)
}

func TestRegistry_MarkOffline_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.MarkOnline("alice", &stubSink{})
	registry.MarkOffline("alice")
	registry.MarkOffline("alice")

	req.False(registry.IsOnline("alice"))
	req.Empty(registry.SnapshotOnline())
}

func TestRegistry_GroupScope_Snapshots_All_Sinks(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := &stubSink{name: "alice"}
	bob := &stubSink{name: "bob"}

	registry.MarkOnline("alice", alice)
	registry.MarkOnline("bob", bob)

	scope := registry.GroupScope()
	req.Len(scope, 2)
	req.ElementsMatch([]string{"alice", "bob"}, registry.SnapshotOnline())

	// A later disconnect does not mutate the already-taken snapshot
	registry.MarkOffline("bob")
	req.Len(scope, 2)
	req.Len(registry.GroupScope(), 1)
}
