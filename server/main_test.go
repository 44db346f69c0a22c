package main

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rivulet/chat/server/relay"
	"github.com/rivulet/chat/server/store"
	"github.com/rivulet/chat/server/store/types"
)

var testUidKey = []byte("0123456789abcdef")

func newTestController(t *testing.T) (*store.Store, *Controller) {
	t.Helper()
	model := store.New()
	controller, err := newController(1, testUidKey, model, zap.NewNop())
	if err != nil {
		t.Fatalf("newController: %v", err)
	}
	return model, controller
}

// newTestServer builds a server with long periodic intervals so only the
// units a test invokes explicitly ever run.
func newTestServer(t *testing.T, id types.Uid, rly relay.Relay) *Server {
	t.Helper()
	s, err := newServer(serverOptions{
		id:         id,
		secret:     "s3cret",
		uidKey:     testUidKey,
		relay:      rly,
		relayPull:  time.Hour,
		relayBatch: 32,
		saveEvery:  time.Hour,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	t.Cleanup(s.timeline.Stop)
	return s
}

// mustUser / mustConversation / mustMessage cut the error-check noise in
// scenario tests.
func mustUser(t *testing.T, c *Controller, name string) *types.User {
	t.Helper()
	u, err := c.NewUser(types.ZeroUid, name, time.Time{})
	if err != nil {
		t.Fatalf("NewUser(%q): %v", name, err)
	}
	return u
}

func mustConversation(t *testing.T, c *Controller, title string, owner types.Uid) *types.ConversationHeader {
	t.Helper()
	ch, err := c.NewConversation(types.ZeroUid, title, owner, time.Time{})
	if err != nil {
		t.Fatalf("NewConversation(%q): %v", title, err)
	}
	return ch
}

func mustMessage(t *testing.T, c *Controller, author, convo types.Uid, body string, at time.Time) *types.Message {
	t.Helper()
	m, err := c.NewMessage(types.ZeroUid, author, convo, body, at)
	if err != nil {
		t.Fatalf("NewMessage(%q): %v", body, err)
	}
	return m
}
