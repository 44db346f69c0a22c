// Relay synchronization. Pull: a periodic unit fetches a bounded batch of
// bundles after the local cursor and folds each into the model through
// the controller's explicit-id paths; merging is idempotent because every
// existence check is by id. Push: after a message is created locally, a
// follow-up unit sends it with its conversation and author as one bundle.

package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rivulet/chat/server/relay"
	"github.com/rivulet/chat/server/store/types"
)

// relayPullUnit runs one pull pass and reschedules itself. Errors are
// logged and retried on the next interval, never fatal.
func (s *Server) relayPullUnit() {
	if err := s.pullOnce(); err != nil {
		s.logger.Error("relay pull failed", zap.Error(err))
	}
	s.timeline.ScheduleIn(s.relayPull, s.relayPullUnit)
}

// pullOnce reads one batch and applies it. The cursor advances past a
// bundle only after that bundle was applied.
func (s *Server) pullOnce() error {
	bundles, err := s.relay.Read(s.id, s.secret, s.lastSeen, s.relayBatch)
	if err != nil {
		return err
	}

	for _, bundle := range bundles {
		if err := s.applyBundle(bundle); err != nil {
			return fmt.Errorf("bundle %s: %w", bundle.ID, err)
		}
		s.lastSeen = bundle.ID
		statsInc("RelayBundlesAppliedTotal", 1)
	}
	return nil
}

// applyBundle folds one bundle into the model: create the user if its id
// is unknown, then the conversation, then the message. Replaying the same
// bundle is a no-op.
func (s *Server) applyBundle(bundle relay.Bundle) error {
	user := s.model.UserByID(bundle.User.ID)
	if user == nil {
		var err error
		user, err = s.controller.NewUser(bundle.User.ID, bundle.User.Text, bundle.User.Time)
		if err != nil {
			return fmt.Errorf("merge user: %w", err)
		}
	}

	conversation := s.model.ConversationByID(bundle.Conversation.ID)
	if conversation == nil {
		// The relay does not carry true ownership, so the bundle's user
		// gets ownership of this server's copy of the conversation.
		var err error
		conversation, err = s.controller.NewConversation(
			bundle.Conversation.ID, bundle.Conversation.Text, user.ID, bundle.Conversation.Time)
		if err != nil {
			return fmt.Errorf("merge conversation: %w", err)
		}
	}

	if s.model.MessageByID(bundle.Message.ID) == nil {
		if _, err := s.controller.NewMessage(
			bundle.Message.ID, user.ID, conversation.ID, bundle.Message.Text, bundle.Message.Time); err != nil {
			return fmt.Errorf("merge message: %w", err)
		}
	}
	return nil
}

// relayPushUnit builds the follow-up unit that sends one locally created
// message to the relay. By the time it runs the three entities are
// resolvable through the view.
func (s *Server) relayPushUnit(author, conversation, message types.Uid) func() {
	return func() {
		user := s.view.FindUser(author)
		header := s.view.FindConversation(conversation)
		msg := s.view.FindMessage(message)
		if user == nil || header == nil || msg == nil {
			s.logger.Error("relay push: entity vanished",
				zap.Stringer("author", author),
				zap.Stringer("conversation", conversation),
				zap.Stringer("message", message))
			return
		}

		err := s.relay.Write(s.id, s.secret,
			relay.Component{ID: user.ID, Text: user.Name, Time: user.CreatedAt},
			relay.Component{ID: header.ID, Text: header.Title, Time: header.CreatedAt},
			relay.Component{ID: msg.ID, Text: msg.Content, Time: msg.CreatedAt})
		if err != nil {
			s.logger.Error("relay push failed", zap.Error(err))
			return
		}
		statsInc("RelayBundlesPushedTotal", 1)
	}
}
