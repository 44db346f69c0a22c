// Package types defines the identifier type and the four entity kinds
// stored by the server.
package types

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"time"
)

// Uid is a fixed-width opaque identifier, unique within one server's id
// space. The zero value is the null sentinel.
type Uid uint64

// ZeroUid is the reserved "no id" value.
var ZeroUid Uid = 0

const (
	uidBase64Unpadded = 11
	uidBase64Padded   = 12
)

// IsZero returns true for the null sentinel.
func (uid Uid) IsZero() bool {
	return uid == 0
}

// Compare returns -1 if uid is smaller than u2, 1 if greater, 0 if equal.
func (uid Uid) Compare(u2 Uid) int {
	if uid < u2 {
		return -1
	} else if uid > u2 {
		return 1
	}
	return 0
}

func (uid *Uid) MarshalBinary() ([]byte, error) {
	dst := make([]byte, 8)
	binary.LittleEndian.PutUint64(dst, uint64(*uid))
	return dst, nil
}

func (uid *Uid) UnmarshalBinary(b []byte) error {
	if len(b) < 8 {
		return errors.New("Uid.UnmarshalBinary: invalid length")
	}
	*uid = Uid(binary.LittleEndian.Uint64(b))
	return nil
}

func (uid *Uid) MarshalText() ([]byte, error) {
	if *uid == 0 {
		return []byte{}, nil
	}
	src := make([]byte, 8)
	dst := make([]byte, base64.URLEncoding.EncodedLen(8))
	binary.LittleEndian.PutUint64(src, uint64(*uid))
	base64.URLEncoding.Encode(dst, src)
	return dst[0:uidBase64Unpadded], nil
}

func (uid *Uid) UnmarshalText(src []byte) error {
	if len(src) == 0 {
		*uid = ZeroUid
		return nil
	}
	if len(src) != uidBase64Unpadded {
		return errors.New("Uid.UnmarshalText: invalid length")
	}
	dec := make([]byte, base64.URLEncoding.DecodedLen(uidBase64Padded))
	for len(src) < uidBase64Padded {
		src = append(src, '=')
	}
	count, err := base64.URLEncoding.Decode(dec, src)
	if count < 8 {
		if err != nil {
			return errors.New("Uid.UnmarshalText: failed to decode " + err.Error())
		}
		return errors.New("Uid.UnmarshalText: failed to decode")
	}
	*uid = Uid(binary.LittleEndian.Uint64(dec))
	return nil
}

func (uid *Uid) MarshalJSON() ([]byte, error) {
	dst, _ := uid.MarshalText()
	return append(append([]byte{'"'}, dst...), '"'), nil
}

func (uid *Uid) UnmarshalJSON(b []byte) error {
	size := len(b)
	if size < 2 || b[0] != '"' || b[size-1] != '"' {
		return errors.New("Uid.UnmarshalJSON: unrecognized")
	}
	return uid.UnmarshalText(b[1 : size-1])
}

func (uid Uid) String() string {
	buf, _ := uid.MarshalText()
	return string(buf)
}

// ParseUid parses the unprefixed text form of an id. Malformed input
// yields ZeroUid.
func ParseUid(s string) Uid {
	var uid Uid
	uid.UnmarshalText([]byte(s))
	return uid
}

// Level is a member's per-conversation permission rank.
type Level uint32

const (
	// LevelNone marks a user who is not a member of the conversation.
	LevelNone Level = 0
	// LevelMember may read and post.
	LevelMember Level = 1
	// LevelOwner may additionally add members and change ranks below its own.
	LevelOwner Level = 2
	// LevelCreator is the original owner. Exactly one per conversation.
	LevelCreator Level = 3
)

// User is a registered account plus the interest state it owns: which
// users and conversations it watches, and when it last asked about each.
type User struct {
	ID        Uid       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`

	// Interest sets. Mutated only by the controller.
	UserInterests  map[Uid]bool `json:"-"`
	ConvoInterests map[Uid]bool `json:"-"`

	// Watermarks: the time of the requester's last status inquiry per
	// interest target. Mutated by the controller (on add) and the view
	// (on inquiry).
	UserSeen  map[Uid]time.Time `json:"-"`
	ConvoSeen map[Uid]time.Time `json:"-"`
}

// NewUser allocates a user with empty interest state.
func NewUser(id Uid, name string, at time.Time) *User {
	return &User{
		ID:             id,
		Name:           name,
		CreatedAt:      at,
		UserInterests:  make(map[Uid]bool),
		ConvoInterests: make(map[Uid]bool),
		UserSeen:       make(map[Uid]time.Time),
		ConvoSeen:      make(map[Uid]time.Time),
	}
}

// ConversationHeader is the immutable part of a conversation plus the
// membership rank map. Role only ever grows; ranks change but members are
// never removed.
type ConversationHeader struct {
	ID        Uid           `json:"id"`
	Owner     Uid           `json:"owner"`
	CreatedAt time.Time     `json:"created_at"`
	Title     string        `json:"title"`
	Role      map[Uid]Level `json:"role"`
}

// NewConversationHeader allocates a header with the owner seeded at
// creator rank.
func NewConversationHeader(id Uid, owner Uid, at time.Time, title string) *ConversationHeader {
	return &ConversationHeader{
		ID:        id,
		Owner:     owner,
		CreatedAt: at,
		Title:     title,
		Role:      map[Uid]Level{owner: LevelCreator},
	}
}

// MemberCount reports the number of role entries.
func (ch *ConversationHeader) MemberCount() int {
	return len(ch.Role)
}

// ConversationPayload holds the mutable head and tail of a conversation's
// message chain, kept apart from the header so header reads stay cheap.
// FirstMessage is set at most once per conversation.
type ConversationPayload struct {
	ID           Uid `json:"id"`
	FirstMessage Uid `json:"first_message"`
	LastMessage  Uid `json:"last_message"`
}

// Message is a node of a conversation's singly-linked chain. Next is
// written exactly once, when a newer message is appended after this one.
type Message struct {
	ID           Uid       `json:"id"`
	Author       Uid       `json:"author"`
	Conversation Uid       `json:"convo"`
	CreatedAt    time.Time `json:"created_at"`
	Content      string    `json:"content"`
	Next         Uid       `json:"next"`
}
