package main

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/rivulet/chat/server/store/types"
)

func TestSnapshotsAreCopies(t *testing.T) {
	model, c := newTestController(t)
	v := newView(model, zap.NewNop())

	alice := mustUser(t, c, "alice")
	mustConversation(t, c, "general", alice.ID)

	users := v.Users()
	if len(users) != 1 || users[0].ID != alice.ID {
		t.Fatalf("unexpected user snapshot: %+v", users)
	}
	users[0].Name = "mutated"
	if model.UserByID(alice.ID).Name != "alice" {
		t.Error("snapshot aliases live model state")
	}

	convos := v.Conversations()
	if len(convos) != 1 || convos[0].Title != "general" {
		t.Fatalf("unexpected conversation snapshot: %+v", convos)
	}
}

func TestBulkLookupsAreBestEffort(t *testing.T) {
	model, c := newTestController(t)
	v := newView(model, zap.NewNop())

	alice := mustUser(t, c, "alice")
	ch := mustConversation(t, c, "general", alice.ID)
	m1 := mustMessage(t, c, alice.ID, ch.ID, "one", time.Time{})
	m2 := mustMessage(t, c, alice.ID, ch.ID, "two", time.Time{})

	// Missing and duplicate ids are skipped, not failures.
	msgs := v.Messages([]types.Uid{m1.ID, types.Uid(0xdead), m2.ID, m1.ID})
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != m1.ID || msgs[1].ID != m2.ID {
		t.Errorf("unexpected resolution order: %s %s", msgs[0].ID, msgs[1].ID)
	}

	payloads := v.ConversationPayloads([]types.Uid{ch.ID, ch.ID, types.Uid(0xdead)})
	if len(payloads) != 1 {
		t.Fatalf("got %d payloads, want 1", len(payloads))
	}
}

func TestConversationStatusUpdate(t *testing.T) {
	model, c := newTestController(t)
	v := newView(model, zap.NewNop())

	alice := mustUser(t, c, "alice")
	bob := mustUser(t, c, "bob")
	ch := mustConversation(t, c, "general", alice.ID)

	if err := c.AddConversationInterest("general", bob.ID); err != nil {
		t.Fatal(err)
	}

	// Right after the add there is nothing new.
	if n, err := v.ConversationStatusUpdate("general", bob.ID); err != nil || n != 0 {
		t.Fatalf("fresh interest: count=%d err=%v", n, err)
	}

	// Three messages at t1 < t2 < t3 with the watermark at t1: exactly
	// the two strictly-after messages count.
	base := time.Now().Add(-time.Hour)
	mustMessage(t, c, alice.ID, ch.ID, "one", base)
	mustMessage(t, c, alice.ID, ch.ID, "two", base.Add(time.Minute))
	mustMessage(t, c, alice.ID, ch.ID, "three", base.Add(2*time.Minute))
	bob.ConvoSeen[ch.ID] = base

	n, err := v.ConversationStatusUpdate("general", bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	// The watermark advanced: an immediate re-query reports nothing.
	if n, err := v.ConversationStatusUpdate("general", bob.ID); err != nil || n != 0 {
		t.Errorf("re-query: count=%d err=%v", n, err)
	}
}

func TestConversationStatusUpdateFailures(t *testing.T) {
	model, c := newTestController(t)
	v := newView(model, zap.NewNop())

	alice := mustUser(t, c, "alice")
	mustConversation(t, c, "general", alice.ID)

	if _, err := v.ConversationStatusUpdate("nothere", alice.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("unknown conversation: got %v", err)
	}
	if _, err := v.ConversationStatusUpdate("general", alice.ID); !errors.Is(err, types.ErrNotInterested) {
		t.Errorf("not in interests: got %v", err)
	}
	if _, err := v.ConversationStatusUpdate("general", types.Uid(0xdead)); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("unknown requester: got %v", err)
	}
}

func TestUserStatusUpdate(t *testing.T) {
	model, c := newTestController(t)
	v := newView(model, zap.NewNop())

	alice := mustUser(t, c, "alice")
	bob := mustUser(t, c, "bob")
	base := time.Now().Add(-time.Hour)

	// Conversation with a qualifying message by alice, plus one alice
	// created after the watermark with no messages in it.
	general := mustConversation(t, c, "general", alice.ID)
	mustMessage(t, c, alice.ID, general.ID, "hello", base.Add(time.Minute))

	if err := c.AddUserInterest("alice", bob.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := c.NewConversation(types.ZeroUid, "plans", alice.ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	bob.UserSeen[alice.ID] = base

	got, err := v.UserStatusUpdate("alice", bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"general", "plans (Creator)"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("contributions mismatch (-want +got):\n%s", diff)
	}

	// The watermark advanced regardless, so the next query is quiet.
	got, err = v.UserStatusUpdate("alice", bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"(No recent conversations)"}, got); diff != "" {
		t.Errorf("quiet query mismatch (-want +got):\n%s", diff)
	}
}

func TestUserStatusUpdateReportsEachConversationOnce(t *testing.T) {
	model, c := newTestController(t)
	v := newView(model, zap.NewNop())

	alice := mustUser(t, c, "alice")
	bob := mustUser(t, c, "bob")
	base := time.Now().Add(-time.Hour)

	general := mustConversation(t, c, "general", alice.ID)
	mustMessage(t, c, alice.ID, general.ID, "one", base.Add(time.Minute))
	mustMessage(t, c, alice.ID, general.ID, "two", base.Add(2*time.Minute))

	if err := c.AddUserInterest("alice", bob.ID); err != nil {
		t.Fatal(err)
	}
	bob.UserSeen[alice.ID] = base

	got, err := v.UserStatusUpdate("alice", bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"general"}, got); diff != "" {
		t.Errorf("two qualifying messages must report the title once (-want +got):\n%s", diff)
	}
}

func TestUserStatusUpdateFailures(t *testing.T) {
	model, c := newTestController(t)
	v := newView(model, zap.NewNop())

	alice := mustUser(t, c, "alice")
	mustUser(t, c, "bob")

	if _, err := v.UserStatusUpdate("nobody", alice.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("unknown target: got %v", err)
	}
	if _, err := v.UserStatusUpdate("bob", alice.ID); !errors.Is(err, types.ErrNotInterested) {
		t.Errorf("not in interests: got %v", err)
	}
}
