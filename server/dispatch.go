// Connection dispatch: a fixed table from request opcode to handler
// function. Each handler reads its fixed field sequence, invokes exactly
// one controller or view operation and writes the response; the
// connection carries one request/response pair and is then closed.

package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/rivulet/chat/server/connections"
	"github.com/rivulet/chat/server/relay"
	"github.com/rivulet/chat/server/store"
	"github.com/rivulet/chat/server/store/types"
	"github.com/rivulet/chat/server/wire"
)

const serverVersion = "1.0.0"

// Wire encoding of conversation status outcomes: a non-negative count, or
// one of these.
const (
	statusNotInterested int32 = -1
	statusNotFound      int32 = -2
)

type handlerFunc func(conn connections.Connection) error

// Server glues the model, controller, view, relay tasks and record log
// together behind the dispatch table.
type Server struct {
	id     types.Uid
	secret string

	model      *store.Store
	controller *Controller
	view       *View
	timeline   *Timeline
	records    *RecordLog
	relay      relay.Relay

	// Cursor: id of the last relay bundle applied locally.
	lastSeen types.Uid

	relayPull  time.Duration
	relayBatch int
	saveEvery  time.Duration

	startTime time.Time
	handlers  map[uint32]handlerFunc
	logger    *zap.Logger
}

type serverOptions struct {
	id         types.Uid
	secret     string
	uidKey     []byte
	relay      relay.Relay
	records    *RecordLog
	relayPull  time.Duration
	relayBatch int
	saveEvery  time.Duration
}

func newServer(opt serverOptions, logger *zap.Logger) (*Server, error) {
	model := store.New()
	controller, err := newController(opt.id, opt.uidKey, model, logger.Named("controller"))
	if err != nil {
		return nil, err
	}

	s := &Server{
		id:         opt.id,
		secret:     opt.secret,
		model:      model,
		controller: controller,
		view:       newView(model, logger.Named("view")),
		timeline:   newTimeline(),
		records:    opt.records,
		relay:      opt.relay,
		relayPull:  opt.relayPull,
		relayBatch: opt.relayBatch,
		saveEvery:  opt.saveEvery,
		startTime:  time.Now(),
		logger:     logger,
	}

	s.handlers = map[uint32]handlerFunc{
		wire.NewMessageRequest:                 s.handleNewMessage,
		wire.NewUserRequest:                    s.handleNewUser,
		wire.NewConversationRequest:            s.handleNewConversation,
		wire.GetUsersRequest:                   s.handleGetUsers,
		wire.GetAllConversationsRequest:        s.handleGetAllConversations,
		wire.GetConversationsByIDRequest:       s.handleGetConversationsByID,
		wire.GetMessagesByIDRequest:            s.handleGetMessagesByID,
		wire.ServerInfoRequest:                 s.handleServerInfo,
		wire.AddUserInterestRequest:            s.interestHandler(wire.AddUserInterestResponse, s.controller.AddUserInterest),
		wire.RemoveUserInterestRequest:         s.interestHandler(wire.RemoveUserInterestResponse, s.controller.RemoveUserInterest),
		wire.AddConversationInterestRequest:    s.interestHandler(wire.AddConversationInterestResponse, s.controller.AddConversationInterest),
		wire.RemoveConversationInterestRequest: s.interestHandler(wire.RemoveConversationInterestResponse, s.controller.RemoveConversationInterest),
		wire.AddUserToConversationRequest:      s.handleAddUserToConversation,
		wire.ChangePermissionRequest:           s.handleChangePermission,
		wire.UserStatusUpdateRequest:           s.handleUserStatusUpdate,
		wire.ConversationStatusUpdateRequest:   s.handleConversationStatusUpdate,
	}

	return s, nil
}

// start kicks off the periodic units: relay pull and snapshot save.
func (s *Server) start() {
	if s.relay != nil {
		s.timeline.Schedule(s.relayPullUnit)
	}
	if s.records != nil {
		s.timeline.ScheduleIn(s.saveEvery, s.saveUnit)
	}
}

func (s *Server) stop() {
	s.timeline.Stop()
	if s.records != nil {
		if err := s.records.Flush(); err != nil {
			s.logger.Error("final record flush failed", zap.Error(err))
		}
	}
}

// HandleConnection schedules the exchange onto the timeline. The accept
// goroutine calls this and immediately goes back to accepting.
func (s *Server) HandleConnection(conn connections.Connection) {
	s.timeline.Schedule(func() {
		defer conn.Close()

		code, err := wire.ReadUint32(conn)
		if err != nil {
			s.logger.Warn("short request", zap.Error(err))
			return
		}

		handler, ok := s.handlers[code]
		if !ok {
			s.logger.Warn("unknown request code", zap.Uint32("code", code))
			wire.WriteUint32(conn, wire.NoMessage)
			return
		}

		statsCountRequest(code)
		if err := handler(conn); err != nil {
			s.logger.Warn("request failed", zap.Uint32("code", code), zap.Error(err))
		}
	})
}

func (s *Server) handleNewMessage(conn connections.Connection) error {
	author, err := wire.ReadUid(conn)
	if err != nil {
		return err
	}
	conversation, err := wire.ReadUid(conn)
	if err != nil {
		return err
	}
	content, err := wire.ReadString(conn)
	if err != nil {
		return err
	}

	message, opErr := s.controller.NewMessage(types.ZeroUid, author, conversation, content, time.Time{})
	if opErr != nil {
		s.logger.Info("new message rejected", zap.Error(opErr))
	} else {
		s.records.Message(message)
		statsInc("MessagesCreatedTotal", 1)
		if s.relay != nil {
			s.timeline.Schedule(s.relayPushUnit(author, conversation, message.ID))
		}
	}

	if err := wire.WriteUint32(conn, wire.NewMessageResponse); err != nil {
		return err
	}
	if err := wire.WriteNullable(conn, message != nil); err != nil {
		return err
	}
	if message != nil {
		return wire.WriteMessage(conn, message)
	}
	return nil
}

func (s *Server) handleNewUser(conn connections.Connection) error {
	name, err := wire.ReadString(conn)
	if err != nil {
		return err
	}

	user, opErr := s.controller.NewUser(types.ZeroUid, name, time.Time{})
	if opErr != nil {
		s.logger.Info("new user rejected", zap.Error(opErr))
	} else {
		s.records.User(user)
		statsInc("UsersCreatedTotal", 1)
	}

	if err := wire.WriteUint32(conn, wire.NewUserResponse); err != nil {
		return err
	}
	if err := wire.WriteNullable(conn, user != nil); err != nil {
		return err
	}
	if user != nil {
		return wire.WriteUser(conn, user)
	}
	return nil
}

func (s *Server) handleNewConversation(conn connections.Connection) error {
	title, err := wire.ReadString(conn)
	if err != nil {
		return err
	}
	owner, err := wire.ReadUid(conn)
	if err != nil {
		return err
	}

	conversation, opErr := s.controller.NewConversation(types.ZeroUid, title, owner, time.Time{})
	if opErr != nil {
		s.logger.Info("new conversation rejected", zap.Error(opErr))
	} else {
		s.records.Conversation(conversation)
		statsInc("ConversationsCreatedTotal", 1)
	}

	if err := wire.WriteUint32(conn, wire.NewConversationResponse); err != nil {
		return err
	}
	if err := wire.WriteNullable(conn, conversation != nil); err != nil {
		return err
	}
	if conversation != nil {
		return wire.WriteConversationHeader(conn, conversation)
	}
	return nil
}

func (s *Server) handleGetUsers(conn connections.Connection) error {
	users := s.view.Users()

	if err := wire.WriteUint32(conn, wire.GetUsersResponse); err != nil {
		return err
	}
	if err := wire.WriteUint32(conn, uint32(len(users))); err != nil {
		return err
	}
	for i := range users {
		if err := wire.WriteUser(conn, &users[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleGetAllConversations(conn connections.Connection) error {
	headers := s.view.Conversations()

	if err := wire.WriteUint32(conn, wire.GetAllConversationsResponse); err != nil {
		return err
	}
	if err := wire.WriteUint32(conn, uint32(len(headers))); err != nil {
		return err
	}
	for i := range headers {
		if err := wire.WriteConversationHeader(conn, &headers[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleGetConversationsByID(conn connections.Connection) error {
	ids, err := wire.ReadUidList(conn)
	if err != nil {
		return err
	}
	payloads := s.view.ConversationPayloads(ids)

	if err := wire.WriteUint32(conn, wire.GetConversationsByIDResponse); err != nil {
		return err
	}
	if err := wire.WriteUint32(conn, uint32(len(payloads))); err != nil {
		return err
	}
	for i := range payloads {
		if err := wire.WriteConversationPayload(conn, &payloads[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleGetMessagesByID(conn connections.Connection) error {
	ids, err := wire.ReadUidList(conn)
	if err != nil {
		return err
	}
	messages := s.view.Messages(ids)

	if err := wire.WriteUint32(conn, wire.GetMessagesByIDResponse); err != nil {
		return err
	}
	if err := wire.WriteUint32(conn, uint32(len(messages))); err != nil {
		return err
	}
	for i := range messages {
		if err := wire.WriteMessage(conn, &messages[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleServerInfo(conn connections.Connection) error {
	if err := wire.WriteUint32(conn, wire.ServerInfoResponse); err != nil {
		return err
	}
	if err := wire.WriteString(conn, serverVersion); err != nil {
		return err
	}
	return wire.WriteTime(conn, s.startTime)
}

// interestHandler builds the handler for the four interest operations;
// they share the (text, owner) -> status shape.
func (s *Server) interestHandler(respCode uint32, op func(string, types.Uid) error) handlerFunc {
	return func(conn connections.Connection) error {
		text, err := wire.ReadString(conn)
		if err != nil {
			return err
		}
		owner, err := wire.ReadUid(conn)
		if err != nil {
			return err
		}

		opErr := op(text, owner)

		if err := wire.WriteUint32(conn, respCode); err != nil {
			return err
		}
		return wire.WriteByte(conn, wire.StatusOf(opErr))
	}
}

func (s *Server) handleAddUserToConversation(conn connections.Connection) error {
	name, err := wire.ReadString(conn)
	if err != nil {
		return err
	}
	title, err := wire.ReadString(conn)
	if err != nil {
		return err
	}
	actor, err := wire.ReadUid(conn)
	if err != nil {
		return err
	}

	opErr := s.controller.AddUserToConversation(name, title, actor)

	if err := wire.WriteUint32(conn, wire.AddUserToConversationResponse); err != nil {
		return err
	}
	return wire.WriteByte(conn, wire.StatusOf(opErr))
}

func (s *Server) handleChangePermission(conn connections.Connection) error {
	name, err := wire.ReadString(conn)
	if err != nil {
		return err
	}
	title, err := wire.ReadString(conn)
	if err != nil {
		return err
	}
	level, err := wire.ReadUint32(conn)
	if err != nil {
		return err
	}
	actor, err := wire.ReadUid(conn)
	if err != nil {
		return err
	}

	opErr := s.controller.ChangePermissionLevel(name, title, types.Level(level), actor)

	if err := wire.WriteUint32(conn, wire.ChangePermissionResponse); err != nil {
		return err
	}
	return wire.WriteByte(conn, wire.StatusOf(opErr))
}

func (s *Server) handleUserStatusUpdate(conn connections.Connection) error {
	name, err := wire.ReadString(conn)
	if err != nil {
		return err
	}
	requester, err := wire.ReadUid(conn)
	if err != nil {
		return err
	}

	titles, opErr := s.view.UserStatusUpdate(name, requester)

	if err := wire.WriteUint32(conn, wire.UserStatusUpdateResponse); err != nil {
		return err
	}
	if err := wire.WriteByte(conn, wire.StatusOf(opErr)); err != nil {
		return err
	}
	return wire.WriteStringList(conn, titles)
}

func (s *Server) handleConversationStatusUpdate(conn connections.Connection) error {
	title, err := wire.ReadString(conn)
	if err != nil {
		return err
	}
	requester, err := wire.ReadUid(conn)
	if err != nil {
		return err
	}

	count, opErr := s.view.ConversationStatusUpdate(title, requester)
	result := int32(count)
	switch wire.StatusOf(opErr) {
	case wire.StatusOK:
	case wire.StatusNotInterested:
		result = statusNotInterested
	default:
		result = statusNotFound
	}

	if err := wire.WriteUint32(conn, wire.ConversationStatusUpdateResponse); err != nil {
		return err
	}
	return wire.WriteInt32(conn, result)
}
