// The record log is the server's persistence: an append-only sequence of
// text lines, one entity per line, framed as "<Kind>;<json>". Mutating
// handlers queue lines in memory; a periodic timeline unit appends the
// queued lines to disk. On boot the log is replayed before any listener
// starts: User and Convo lines go straight into the model, Message lines
// go through the controller so chain pointers are rebuilt, not copied
// stale.

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rivulet/chat/server/store"
	"github.com/rivulet/chat/server/store/types"
)

const (
	recordKindUser    = "User"
	recordKindConvo   = "Convo"
	recordKindMessage = "Message"
)

type userRecord struct {
	ID        types.Uid `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type convoRecord struct {
	ID        types.Uid                 `json:"id"`
	Owner     types.Uid                 `json:"owner"`
	CreatedAt time.Time                 `json:"created_at"`
	Title     string                    `json:"title"`
	Role      map[types.Uid]types.Level `json:"role"`
}

// A message line leads with the owning conversation id; the message's own
// serialized form repeats it, but the framing is fixed.
type messageRecord struct {
	Conversation types.Uid      `json:"convo"`
	Message      *types.Message `json:"message"`
}

// RecordLog buffers record lines and owns the log file. A nil *RecordLog
// is a valid no-op sink, used when persistence is disabled.
type RecordLog struct {
	path    string
	pending []string
	logger  *zap.Logger
}

func newRecordLog(path string, logger *zap.Logger) *RecordLog {
	return &RecordLog{path: path, logger: logger}
}

func (rl *RecordLog) User(u *types.User) {
	rl.push(recordKindUser, &userRecord{ID: u.ID, Name: u.Name, CreatedAt: u.CreatedAt})
}

func (rl *RecordLog) Conversation(ch *types.ConversationHeader) {
	rl.push(recordKindConvo, &convoRecord{
		ID:        ch.ID,
		Owner:     ch.Owner,
		CreatedAt: ch.CreatedAt,
		Title:     ch.Title,
		Role:      ch.Role,
	})
}

func (rl *RecordLog) Message(m *types.Message) {
	rl.push(recordKindMessage, &messageRecord{Conversation: m.Conversation, Message: m})
}

// push marshals the record and queues the framed line. The record must be
// a pointer so the id fields marshal through their text form.
func (rl *RecordLog) push(kind string, record any) {
	if rl == nil {
		return
	}
	payload, err := json.Marshal(record)
	if err != nil {
		rl.logger.Error("record marshal failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	rl.pending = append(rl.pending, kind+";"+string(payload))
}

// Flush appends pending lines to the log file. Pending lines are kept on
// failure and retried on the next save interval.
func (rl *RecordLog) Flush() error {
	if rl == nil || len(rl.pending) == 0 {
		return nil
	}

	f, err := os.OpenFile(rl.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("record log: open: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, line := range rl.pending {
		if _, err = w.WriteString(line + "\n"); err != nil {
			break
		}
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("record log: write: %w", err)
	}

	rl.logger.Info("records flushed", zap.Int("lines", len(rl.pending)))
	rl.pending = rl.pending[:0]
	return nil
}

// Replay reads the log back into an empty model. A missing file is a
// clean first boot. Unparseable lines are logged and skipped so one bad
// record cannot wedge the whole server.
func (rl *RecordLog) Replay(model *store.Store, controller *Controller) error {
	if rl == nil {
		return nil
	}

	f, err := os.Open(rl.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("record log: open: %w", err)
	}
	defer f.Close()

	restored := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		kind, payload, found := strings.Cut(line, ";")
		if !found {
			rl.logger.Warn("unframed record line skipped")
			continue
		}

		switch kind {
		case recordKindUser:
			var rec userRecord
			if err := json.Unmarshal([]byte(payload), &rec); err != nil {
				rl.logger.Warn("bad user record skipped", zap.Error(err))
				continue
			}
			if model.UserByID(rec.ID) == nil {
				model.AddUser(types.NewUser(rec.ID, rec.Name, rec.CreatedAt))
				restored++
			}

		case recordKindConvo:
			var rec convoRecord
			if err := json.Unmarshal([]byte(payload), &rec); err != nil {
				rl.logger.Warn("bad conversation record skipped", zap.Error(err))
				continue
			}
			if model.ConversationByID(rec.ID) == nil {
				header := types.NewConversationHeader(rec.ID, rec.Owner, rec.CreatedAt, rec.Title)
				for uid, level := range rec.Role {
					header.Role[uid] = level
				}
				model.AddConversation(header, &types.ConversationPayload{ID: rec.ID})
				restored++
			}

		case recordKindMessage:
			var rec messageRecord
			if err := json.Unmarshal([]byte(payload), &rec); err != nil || rec.Message == nil {
				rl.logger.Warn("bad message record skipped", zap.Error(err))
				continue
			}
			m := rec.Message
			if _, err := controller.NewMessage(m.ID, m.Author, rec.Conversation, m.Content, m.CreatedAt); err != nil {
				rl.logger.Warn("message record not replayable", zap.Stringer("id", m.ID), zap.Error(err))
				continue
			}
			restored++

		default:
			rl.logger.Warn("unknown record kind skipped", zap.String("kind", kind))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("record log: read: %w", err)
	}

	rl.logger.Info("records replayed", zap.Int("restored", restored))
	return nil
}

// saveUnit is the periodic snapshot unit on the timeline.
func (s *Server) saveUnit() {
	if err := s.records.Flush(); err != nil {
		s.logger.Error("record flush failed", zap.Error(err))
	}
	s.timeline.ScheduleIn(s.saveEvery, s.saveUnit)
}
