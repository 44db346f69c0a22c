package relay

import (
	"errors"
	"sync"

	"github.com/rivulet/chat/server/store/types"
)

// ErrBadSecret rejects a caller whose shared secret does not match.
var ErrBadSecret = errors.New("relay: bad secret")

// MemRelay is an in-memory relay log: bundles in arrival order with
// monotonically increasing ids. It backs the relayd daemon and the tests.
// Safe for concurrent use.
type MemRelay struct {
	mu     sync.Mutex
	secret string
	log    []Bundle
	nextID types.Uid
}

// NewMemRelay allocates an empty relay. An empty secret accepts any caller.
func NewMemRelay(secret string) *MemRelay {
	return &MemRelay{secret: secret, nextID: 1}
}

func (m *MemRelay) checkSecret(secret string) error {
	if m.secret != "" && m.secret != secret {
		return ErrBadSecret
	}
	return nil
}

// Read implements Relay. An unknown `after` id reads from the beginning,
// which is safe: merge on the puller's side is idempotent.
func (m *MemRelay) Read(server types.Uid, secret string, after types.Uid, limit int) ([]Bundle, error) {
	if err := m.checkSecret(secret); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start := 0
	if !after.IsZero() {
		for i, b := range m.log {
			if b.ID == after {
				start = i + 1
				break
			}
		}
	}

	end := start + limit
	if end > len(m.log) {
		end = len(m.log)
	}
	out := make([]Bundle, end-start)
	copy(out, m.log[start:end])
	return out, nil
}

// Write implements Relay.
func (m *MemRelay) Write(server types.Uid, secret string, user, conversation, message Component) error {
	if err := m.checkSecret(secret); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.log = append(m.log, Bundle{
		ID:           m.nextID,
		User:         user,
		Conversation: conversation,
		Message:      message,
	})
	m.nextID++
	return nil
}

// Len reports the number of logged bundles.
func (m *MemRelay) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.log)
}
