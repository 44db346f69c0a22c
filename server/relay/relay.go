// Package relay defines the store-and-forward contract that lets
// independently-running servers converge on the same conversation history.
// Each locally created message is pushed to the relay as one bundle; every
// server periodically pulls bundles it has not seen and folds them into
// its own model.
package relay

import (
	"io"
	"time"

	"github.com/rivulet/chat/server/store/types"
	"github.com/rivulet/chat/server/wire"
)

// Component is one snapshot inside a bundle: an entity reduced to the
// identity, text and time needed to recreate it on another server.
type Component struct {
	ID   types.Uid
	Text string
	Time time.Time
}

// Bundle replicates one new message: the message itself plus the user and
// conversation it needs. ID is assigned by the relay and is monotonic in
// log order, so it doubles as a pull cursor.
type Bundle struct {
	ID           types.Uid
	User         Component
	Conversation Component
	Message      Component
}

// Relay is the cross-server store-and-forward log.
type Relay interface {
	// Read returns up to limit bundles logged after the bundle identified
	// by `after`, oldest first. ZeroUid reads from the beginning.
	Read(server types.Uid, secret string, after types.Uid, limit int) ([]Bundle, error)
	// Write appends one bundle, keyed by the writing server's identity.
	Write(server types.Uid, secret string, user, conversation, message Component) error
}

func WriteComponent(w io.Writer, c Component) error {
	if err := wire.WriteUid(w, c.ID); err != nil {
		return err
	}
	if err := wire.WriteString(w, c.Text); err != nil {
		return err
	}
	return wire.WriteTime(w, c.Time)
}

func ReadComponent(r io.Reader) (Component, error) {
	id, err := wire.ReadUid(r)
	if err != nil {
		return Component{}, err
	}
	text, err := wire.ReadString(r)
	if err != nil {
		return Component{}, err
	}
	at, err := wire.ReadTime(r)
	if err != nil {
		return Component{}, err
	}
	return Component{ID: id, Text: text, Time: at}, nil
}

func WriteBundle(w io.Writer, b Bundle) error {
	if err := wire.WriteUid(w, b.ID); err != nil {
		return err
	}
	if err := WriteComponent(w, b.User); err != nil {
		return err
	}
	if err := WriteComponent(w, b.Conversation); err != nil {
		return err
	}
	return WriteComponent(w, b.Message)
}

func ReadBundle(r io.Reader) (Bundle, error) {
	id, err := wire.ReadUid(r)
	if err != nil {
		return Bundle{}, err
	}
	user, err := ReadComponent(r)
	if err != nil {
		return Bundle{}, err
	}
	convo, err := ReadComponent(r)
	if err != nil {
		return Bundle{}, err
	}
	msg, err := ReadComponent(r)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{ID: id, User: user, Conversation: convo, Message: msg}, nil
}
