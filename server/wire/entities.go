package wire

import (
	"fmt"
	"io"

	"github.com/rivulet/chat/server/store/types"
)

// Entity codecs. Interest sets and watermarks are server-local state and
// never travel; a user on the wire is id, name, creation time.

func WriteUser(w io.Writer, u *types.User) error {
	if err := WriteUid(w, u.ID); err != nil {
		return err
	}
	if err := WriteString(w, u.Name); err != nil {
		return err
	}
	return WriteTime(w, u.CreatedAt)
}

func ReadUser(r io.Reader) (*types.User, error) {
	id, err := ReadUid(r)
	if err != nil {
		return nil, err
	}
	name, err := ReadString(r)
	if err != nil {
		return nil, err
	}
	at, err := ReadTime(r)
	if err != nil {
		return nil, err
	}
	return types.NewUser(id, name, at), nil
}

func WriteConversationHeader(w io.Writer, ch *types.ConversationHeader) error {
	if err := WriteUid(w, ch.ID); err != nil {
		return err
	}
	if err := WriteUid(w, ch.Owner); err != nil {
		return err
	}
	if err := WriteTime(w, ch.CreatedAt); err != nil {
		return err
	}
	if err := WriteString(w, ch.Title); err != nil {
		return err
	}
	if err := WriteUint32(w, uint32(len(ch.Role))); err != nil {
		return err
	}
	for uid, level := range ch.Role {
		if err := WriteUid(w, uid); err != nil {
			return err
		}
		if err := WriteUint32(w, uint32(level)); err != nil {
			return err
		}
	}
	return nil
}

func ReadConversationHeader(r io.Reader) (*types.ConversationHeader, error) {
	id, err := ReadUid(r)
	if err != nil {
		return nil, err
	}
	owner, err := ReadUid(r)
	if err != nil {
		return nil, err
	}
	at, err := ReadTime(r)
	if err != nil {
		return nil, err
	}
	title, err := ReadString(r)
	if err != nil {
		return nil, err
	}
	n, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	if n > maxListLen {
		return nil, fmt.Errorf("%w: role count %d", types.ErrMalformed, n)
	}
	ch := &types.ConversationHeader{
		ID:        id,
		Owner:     owner,
		CreatedAt: at,
		Title:     title,
		Role:      make(map[types.Uid]types.Level, n),
	}
	for i := uint32(0); i < n; i++ {
		uid, err := ReadUid(r)
		if err != nil {
			return nil, err
		}
		level, err := ReadUint32(r)
		if err != nil {
			return nil, err
		}
		ch.Role[uid] = types.Level(level)
	}
	return ch, nil
}

func WriteConversationPayload(w io.Writer, cp *types.ConversationPayload) error {
	if err := WriteUid(w, cp.ID); err != nil {
		return err
	}
	if err := WriteUid(w, cp.FirstMessage); err != nil {
		return err
	}
	return WriteUid(w, cp.LastMessage)
}

func ReadConversationPayload(r io.Reader) (*types.ConversationPayload, error) {
	id, err := ReadUid(r)
	if err != nil {
		return nil, err
	}
	first, err := ReadUid(r)
	if err != nil {
		return nil, err
	}
	last, err := ReadUid(r)
	if err != nil {
		return nil, err
	}
	return &types.ConversationPayload{ID: id, FirstMessage: first, LastMessage: last}, nil
}

func WriteMessage(w io.Writer, m *types.Message) error {
	if err := WriteUid(w, m.ID); err != nil {
		return err
	}
	if err := WriteUid(w, m.Author); err != nil {
		return err
	}
	if err := WriteUid(w, m.Conversation); err != nil {
		return err
	}
	if err := WriteTime(w, m.CreatedAt); err != nil {
		return err
	}
	if err := WriteString(w, m.Content); err != nil {
		return err
	}
	return WriteUid(w, m.Next)
}

func ReadMessage(r io.Reader) (*types.Message, error) {
	id, err := ReadUid(r)
	if err != nil {
		return nil, err
	}
	author, err := ReadUid(r)
	if err != nil {
		return nil, err
	}
	convo, err := ReadUid(r)
	if err != nil {
		return nil, err
	}
	at, err := ReadTime(r)
	if err != nil {
		return nil, err
	}
	content, err := ReadString(r)
	if err != nil {
		return nil, err
	}
	next, err := ReadUid(r)
	if err != nil {
		return nil, err
	}
	return &types.Message{
		ID:           id,
		Author:       author,
		Conversation: convo,
		CreatedAt:    at,
		Content:      content,
		Next:         next,
	}, nil
}
