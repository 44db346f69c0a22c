// The controller is the only component allowed to create or mutate
// entities. Every operation runs inside one timeline unit, so there is no
// locking here; the timeline is the serialization point.

package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rivulet/chat/server/store"
	"github.com/rivulet/chat/server/store/types"
)

// Controller mutates the model: allocates ids, appends messages to
// conversation chains, maintains interest sets and runs the permission
// state machine.
type Controller struct {
	model  *store.Store
	gen    *types.UidGenerator
	logger *zap.Logger
}

// newController seeds the id generator with the server's own identity.
func newController(serverID types.Uid, uidKey []byte, model *store.Store, logger *zap.Logger) (*Controller, error) {
	gen := &types.UidGenerator{}
	// Snowflake worker ids are 10 bits wide; fold the server id down.
	if err := gen.Init(uint(serverID)&0x3ff, uidKey); err != nil {
		return nil, fmt.Errorf("controller: id generator: %w", err)
	}
	return &Controller{model: model, gen: gen, logger: logger}, nil
}

// NewUser creates a user. A zero id asks the controller to generate one (a
// local request); an explicit id preserves cross-server identity on the
// relay-merge and replay paths. A zero time means now.
func (c *Controller) NewUser(id types.Uid, name string, at time.Time) (*types.User, error) {
	if id.IsZero() {
		id = c.createID()
	} else if !c.model.IsIDFree(id) {
		return nil, fmt.Errorf("new user %q: %w", name, types.ErrIdInUse)
	}
	if at.IsZero() {
		at = time.Now()
	}

	user := types.NewUser(id, name, at)
	c.model.AddUser(user)
	c.logger.Info("user added", zap.Stringer("id", id), zap.String("name", name))
	return user, nil
}

// NewConversation creates a conversation owned by owner, seeding the
// owner's role at creator rank. Id and time follow the NewUser rules.
func (c *Controller) NewConversation(id types.Uid, title string, owner types.Uid, at time.Time) (*types.ConversationHeader, error) {
	if c.model.UserByID(owner) == nil {
		return nil, fmt.Errorf("new conversation %q: owner: %w", title, types.ErrNotFound)
	}
	if id.IsZero() {
		id = c.createID()
	} else if !c.model.IsIDFree(id) {
		return nil, fmt.Errorf("new conversation %q: %w", title, types.ErrIdInUse)
	}
	if at.IsZero() {
		at = time.Now()
	}

	header := types.NewConversationHeader(id, owner, at, title)
	payload := &types.ConversationPayload{ID: id}
	c.model.AddConversation(header, payload)
	c.logger.Info("conversation added", zap.Stringer("id", id), zap.String("title", title))
	return header, nil
}

// NewMessage appends a message to the conversation's chain: the previous
// tail's next pointer is set to the new id, the head is set if the chain
// was empty, and the tail always becomes the new id.
func (c *Controller) NewMessage(id types.Uid, author, conversation types.Uid, body string, at time.Time) (*types.Message, error) {
	if c.model.UserByID(author) == nil {
		return nil, fmt.Errorf("new message: author: %w", types.ErrNotFound)
	}
	payload := c.model.PayloadByID(conversation)
	if payload == nil {
		return nil, fmt.Errorf("new message: conversation: %w", types.ErrNotFound)
	}
	if id.IsZero() {
		id = c.createID()
	} else if !c.model.IsIDFree(id) {
		return nil, fmt.Errorf("new message: %w", types.ErrIdInUse)
	}
	if at.IsZero() {
		at = time.Now()
	}

	message := &types.Message{
		ID:           id,
		Author:       author,
		Conversation: conversation,
		CreatedAt:    at,
		Content:      body,
	}
	c.model.AddMessage(message)

	if !payload.LastMessage.IsZero() {
		c.model.MessageByID(payload.LastMessage).Next = id
	}
	if payload.FirstMessage.IsZero() {
		payload.FirstMessage = id
	}
	payload.LastMessage = id

	c.logger.Info("message added", zap.Stringer("id", id), zap.Stringer("conversation", conversation))
	return message, nil
}

// AddUserInterest puts the user named name into owner's user interest set
// and stamps the watermark to now, so a status query right after the add
// reports nothing until real new activity happens.
func (c *Controller) AddUserInterest(name string, owner types.Uid) error {
	who := c.model.UserByID(owner)
	if who == nil {
		return fmt.Errorf("add user interest: owner: %w", types.ErrNotFound)
	}
	target := c.model.UserByName(name)
	if target == nil {
		return fmt.Errorf("add user interest %q: %w", name, types.ErrNotFound)
	}
	if who.UserInterests[target.ID] {
		return fmt.Errorf("add user interest %q: %w", name, types.ErrAlreadyCurrentSetting)
	}

	who.UserInterests[target.ID] = true
	who.UserSeen[target.ID] = time.Now()
	c.logger.Info("user interest added", zap.Stringer("owner", owner), zap.Stringer("target", target.ID))
	return nil
}

// RemoveUserInterest drops the user named name from owner's interest set.
func (c *Controller) RemoveUserInterest(name string, owner types.Uid) error {
	who := c.model.UserByID(owner)
	if who == nil {
		return fmt.Errorf("remove user interest: owner: %w", types.ErrNotFound)
	}
	target := c.model.UserByName(name)
	if target == nil {
		return fmt.Errorf("remove user interest %q: %w", name, types.ErrNotFound)
	}
	if !who.UserInterests[target.ID] {
		return fmt.Errorf("remove user interest %q: %w", name, types.ErrAlreadyCurrentSetting)
	}

	delete(who.UserInterests, target.ID)
	delete(who.UserSeen, target.ID)
	c.logger.Info("user interest removed", zap.Stringer("owner", owner), zap.Stringer("target", target.ID))
	return nil
}

// AddConversationInterest mirrors AddUserInterest for conversations.
func (c *Controller) AddConversationInterest(title string, owner types.Uid) error {
	who := c.model.UserByID(owner)
	if who == nil {
		return fmt.Errorf("add conversation interest: owner: %w", types.ErrNotFound)
	}
	target := c.model.ConversationByTitle(title)
	if target == nil {
		return fmt.Errorf("add conversation interest %q: %w", title, types.ErrNotFound)
	}
	if who.ConvoInterests[target.ID] {
		return fmt.Errorf("add conversation interest %q: %w", title, types.ErrAlreadyCurrentSetting)
	}

	who.ConvoInterests[target.ID] = true
	who.ConvoSeen[target.ID] = time.Now()
	c.logger.Info("conversation interest added", zap.Stringer("owner", owner), zap.Stringer("target", target.ID))
	return nil
}

// RemoveConversationInterest mirrors RemoveUserInterest for conversations.
func (c *Controller) RemoveConversationInterest(title string, owner types.Uid) error {
	who := c.model.UserByID(owner)
	if who == nil {
		return fmt.Errorf("remove conversation interest: owner: %w", types.ErrNotFound)
	}
	target := c.model.ConversationByTitle(title)
	if target == nil {
		return fmt.Errorf("remove conversation interest %q: %w", title, types.ErrNotFound)
	}
	if !who.ConvoInterests[target.ID] {
		return fmt.Errorf("remove conversation interest %q: %w", title, types.ErrAlreadyCurrentSetting)
	}

	delete(who.ConvoInterests, target.ID)
	delete(who.ConvoSeen, target.ID)
	c.logger.Info("conversation interest removed", zap.Stringer("owner", owner), zap.Stringer("target", target.ID))
	return nil
}

// AddUserToConversation adds the user named name to the conversation
// titled title at member rank. The actor must hold owner rank or better.
func (c *Controller) AddUserToConversation(name, title string, actor types.Uid) error {
	target := c.model.UserByName(name)
	convo := c.model.ConversationByTitle(title)
	if target == nil || convo == nil {
		return fmt.Errorf("add %q to %q: %w", name, title, types.ErrNotFound)
	}
	if _, ok := convo.Role[target.ID]; ok {
		return fmt.Errorf("add %q to %q: %w", name, title, types.ErrAlreadyCurrentSetting)
	}
	if convo.Role[actor] < types.LevelOwner {
		return fmt.Errorf("add %q to %q: %w", name, title, types.ErrInsufficientPermission)
	}

	convo.Role[target.ID] = types.LevelMember
	c.logger.Info("member added", zap.Stringer("conversation", convo.ID), zap.Stringer("user", target.ID))
	return nil
}

// ChangePermissionLevel sets the target's rank in a conversation. An
// actor may only change others, only from a strictly higher rank, and
// only to a rank strictly below its own.
func (c *Controller) ChangePermissionLevel(name, title string, level types.Level, actor types.Uid) error {
	target := c.model.UserByName(name)
	convo := c.model.ConversationByTitle(title)
	if target == nil || convo == nil {
		return fmt.Errorf("change permission of %q in %q: %w", name, title, types.ErrNotFound)
	}
	if target.ID == actor {
		return fmt.Errorf("change permission of %q in %q: %w", name, title, types.ErrSelfChange)
	}
	current, ok := convo.Role[target.ID]
	if !ok {
		return fmt.Errorf("change permission of %q in %q: not a member: %w", name, title, types.ErrNotFound)
	}
	actorLevel := convo.Role[actor]
	// Both the granted level and the target's current level must sit
	// strictly below the actor's own rank. The second leg keeps the
	// original creator as the only creator-level entry.
	if actorLevel < types.LevelOwner || level >= actorLevel || current >= actorLevel {
		return fmt.Errorf("change permission of %q in %q: %w", name, title, types.ErrInsufficientPermission)
	}
	if current == level {
		return fmt.Errorf("change permission of %q in %q: %w", name, title, types.ErrAlreadyCurrentSetting)
	}

	convo.Role[target.ID] = level
	c.logger.Info("permission changed",
		zap.Stringer("conversation", convo.ID),
		zap.Stringer("user", target.ID),
		zap.Uint32("level", uint32(level)))
	return nil
}

// createID loops until the generated candidate is free. With the
// generator's entropy the loop body runs once in practice.
func (c *Controller) createID() types.Uid {
	candidate := c.gen.Get()
	for !c.model.IsIDFree(candidate) {
		candidate = c.gen.Get()
	}
	return candidate
}
