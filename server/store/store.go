// Package store implements the server's authoritative in-memory model:
// id-indexed stores for users, conversation headers, conversation payloads
// and messages, plus first-match-wins secondary indexes by name and title.
//
// The store is a pure indexed container. It performs no validation; the
// controller is the only caller allowed to create entities and must check
// id freedom before adding. Entities are never removed.
package store

import (
	"github.com/rivulet/chat/server/store/types"
)

// Store owns all four entity indexes. It is not safe for concurrent use;
// the server's timeline serializes every unit of work that touches it.
type Store struct {
	users    map[types.Uid]*types.User
	convos   map[types.Uid]*types.ConversationHeader
	payloads map[types.Uid]*types.ConversationPayload
	messages map[types.Uid]*types.Message

	// Secondary text indexes. Only the first entity inserted under a given
	// name/title is indexed: name collisions resolve to the earliest
	// insertion, and callers depend on that.
	userByName   map[string]types.Uid
	convoByTitle map[string]types.Uid

	// Insertion order, for deterministic snapshots and scans.
	userOrder  []types.Uid
	convoOrder []types.Uid
}

// New allocates an empty store.
func New() *Store {
	return &Store{
		users:        make(map[types.Uid]*types.User),
		convos:       make(map[types.Uid]*types.ConversationHeader),
		payloads:     make(map[types.Uid]*types.ConversationPayload),
		messages:     make(map[types.Uid]*types.Message),
		userByName:   make(map[string]types.Uid),
		convoByTitle: make(map[string]types.Uid),
	}
}

// AddUser indexes a user. The caller must have verified the id is free.
func (s *Store) AddUser(u *types.User) {
	if _, ok := s.users[u.ID]; ok {
		return
	}
	s.users[u.ID] = u
	s.userOrder = append(s.userOrder, u.ID)
	if _, ok := s.userByName[u.Name]; !ok {
		s.userByName[u.Name] = u.ID
	}
}

// AddConversation indexes a header together with its payload record. The
// caller must have verified the id is free.
func (s *Store) AddConversation(ch *types.ConversationHeader, cp *types.ConversationPayload) {
	if _, ok := s.convos[ch.ID]; ok {
		return
	}
	s.convos[ch.ID] = ch
	s.payloads[cp.ID] = cp
	s.convoOrder = append(s.convoOrder, ch.ID)
	if _, ok := s.convoByTitle[ch.Title]; !ok {
		s.convoByTitle[ch.Title] = ch.ID
	}
}

// AddMessage indexes a message. The caller must have verified the id is
// free; chain pointers are the controller's job.
func (s *Store) AddMessage(m *types.Message) {
	if _, ok := s.messages[m.ID]; ok {
		return
	}
	s.messages[m.ID] = m
}

// UserByID returns the user or nil.
func (s *Store) UserByID(id types.Uid) *types.User {
	return s.users[id]
}

// UserByName returns the first user inserted under name, or nil.
func (s *Store) UserByName(name string) *types.User {
	if id, ok := s.userByName[name]; ok {
		return s.users[id]
	}
	return nil
}

// ConversationByID returns the header or nil.
func (s *Store) ConversationByID(id types.Uid) *types.ConversationHeader {
	return s.convos[id]
}

// ConversationByTitle returns the first header inserted under title, or nil.
func (s *Store) ConversationByTitle(title string) *types.ConversationHeader {
	if id, ok := s.convoByTitle[title]; ok {
		return s.convos[id]
	}
	return nil
}

// PayloadByID returns the payload record or nil.
func (s *Store) PayloadByID(id types.Uid) *types.ConversationPayload {
	return s.payloads[id]
}

// MessageByID returns the message or nil.
func (s *Store) MessageByID(id types.Uid) *types.Message {
	return s.messages[id]
}

// UserIDs returns user ids in insertion order. The slice is a copy.
func (s *Store) UserIDs() []types.Uid {
	out := make([]types.Uid, len(s.userOrder))
	copy(out, s.userOrder)
	return out
}

// ConversationIDs returns conversation ids in insertion order. The slice
// is a copy.
func (s *Store) ConversationIDs() []types.Uid {
	out := make([]types.Uid, len(s.convoOrder))
	copy(out, s.convoOrder)
	return out
}

// IsIDFree reports whether id names no user, conversation or message.
func (s *Store) IsIDFree(id types.Uid) bool {
	if _, ok := s.users[id]; ok {
		return false
	}
	if _, ok := s.convos[id]; ok {
		return false
	}
	if _, ok := s.messages[id]; ok {
		return false
	}
	return true
}
