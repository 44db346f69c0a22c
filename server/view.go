// The view answers read queries against the model and computes status
// updates: what changed since the requester last asked. Status queries
// advance the requester's watermark, which is the view's only write.

package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rivulet/chat/server/store"
	"github.com/rivulet/chat/server/store/types"
)

// Placeholder returned when a user status update finds no activity.
const noRecentConversations = "(No recent conversations)"

// View is the read-only query surface.
type View struct {
	model  *store.Store
	logger *zap.Logger
}

func newView(model *store.Store, logger *zap.Logger) *View {
	return &View{model: model, logger: logger}
}

// Users returns a snapshot copy of all users in insertion order.
func (v *View) Users() []types.User {
	ids := v.model.UserIDs()
	out := make([]types.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, *v.model.UserByID(id))
	}
	return out
}

// Conversations returns a snapshot copy of all headers in insertion order.
func (v *View) Conversations() []types.ConversationHeader {
	ids := v.model.ConversationIDs()
	out := make([]types.ConversationHeader, 0, len(ids))
	for _, id := range ids {
		out = append(out, *v.model.ConversationByID(id))
	}
	return out
}

// ConversationPayloads resolves a set of payload ids. Missing and
// duplicate ids are logged and skipped, never failures.
func (v *View) ConversationPayloads(ids []types.Uid) []types.ConversationPayload {
	seen := make(map[types.Uid]bool, len(ids))
	out := make([]types.ConversationPayload, 0, len(ids))
	for _, id := range ids {
		cp := v.model.PayloadByID(id)
		switch {
		case cp == nil:
			v.logger.Warn("unmapped payload id", zap.Stringer("id", id))
		case seen[id]:
			v.logger.Warn("duplicate payload id", zap.Stringer("id", id))
		default:
			seen[id] = true
			out = append(out, *cp)
		}
	}
	return out
}

// Messages resolves a set of message ids with the same best-effort
// semantics as ConversationPayloads.
func (v *View) Messages(ids []types.Uid) []types.Message {
	seen := make(map[types.Uid]bool, len(ids))
	out := make([]types.Message, 0, len(ids))
	for _, id := range ids {
		m := v.model.MessageByID(id)
		switch {
		case m == nil:
			v.logger.Warn("unmapped message id", zap.Stringer("id", id))
		case seen[id]:
			v.logger.Warn("duplicate message id", zap.Stringer("id", id))
		default:
			seen[id] = true
			out = append(out, *m)
		}
	}
	return out
}

// FindUser returns the user or nil.
func (v *View) FindUser(id types.Uid) *types.User { return v.model.UserByID(id) }

// FindConversation returns the header or nil.
func (v *View) FindConversation(id types.Uid) *types.ConversationHeader {
	return v.model.ConversationByID(id)
}

// FindMessage returns the message or nil.
func (v *View) FindMessage(id types.Uid) *types.Message { return v.model.MessageByID(id) }

// ConversationStatusUpdate counts the messages added to the conversation
// titled title since the requester last asked about it, then moves the
// requester's watermark to now. The conversation must be in the
// requester's interests.
func (v *View) ConversationStatusUpdate(title string, requester types.Uid) (int, error) {
	who := v.model.UserByID(requester)
	if who == nil {
		return 0, fmt.Errorf("conversation status: requester: %w", types.ErrNotFound)
	}
	convo := v.model.ConversationByTitle(title)
	if convo == nil {
		return 0, fmt.Errorf("conversation status %q: %w", title, types.ErrNotFound)
	}
	if !who.ConvoInterests[convo.ID] {
		return 0, fmt.Errorf("conversation status %q: %w", title, types.ErrNotInterested)
	}

	since := who.ConvoSeen[convo.ID]
	count := 0
	payload := v.model.PayloadByID(convo.ID)
	for id := payload.FirstMessage; !id.IsZero(); {
		m := v.model.MessageByID(id)
		if m.CreatedAt.After(since) {
			count++
		}
		id = m.Next
	}

	who.ConvoSeen[convo.ID] = time.Now()
	return count, nil
}

// UserStatusUpdate lists the titles of conversations the user named name
// has contributed to since the requester last asked about them; a
// conversation the target created in that window is flagged "(Creator)".
// The watermark advances whether or not anything qualified.
func (v *View) UserStatusUpdate(name string, requester types.Uid) ([]string, error) {
	who := v.model.UserByID(requester)
	if who == nil {
		return nil, fmt.Errorf("user status: requester: %w", types.ErrNotFound)
	}
	target := v.model.UserByName(name)
	if target == nil {
		return nil, fmt.Errorf("user status %q: %w", name, types.ErrNotFound)
	}
	if !who.UserInterests[target.ID] {
		return nil, fmt.Errorf("user status %q: %w", name, types.ErrNotInterested)
	}

	since := who.UserSeen[target.ID]
	var contributions []string

	for _, convoID := range v.model.ConversationIDs() {
		header := v.model.ConversationByID(convoID)
		payload := v.model.PayloadByID(convoID)

		// The first qualifying message settles this conversation.
		recorded := false
		for id := payload.FirstMessage; !id.IsZero() && !recorded; {
			m := v.model.MessageByID(id)
			if m.Author == target.ID && m.CreatedAt.After(since) {
				contributions = append(contributions, header.Title)
				recorded = true
			}
			id = m.Next
		}

		if !recorded && header.Owner == target.ID && header.CreatedAt.After(since) {
			contributions = append(contributions, header.Title+" (Creator)")
		}
	}

	if len(contributions) == 0 {
		contributions = []string{noRecentConversations}
	}
	who.UserSeen[target.ID] = time.Now()
	return contributions, nil
}
