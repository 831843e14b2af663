package transcript

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrUnknownSlot     = errors.New("no placeholder reserved for key")
	ErrAlreadyResolved = errors.New("placeholder already resolved")
	ErrDuplicateSlot   = errors.New("placeholder already reserved for key")
)

// Greeting is the system message every new log starts with.
const Greeting = "Comparison Engine Active. Upload TWO images to begin A/B analysis."

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Attachment is an encoded image payload. The first attachment of a turn is
// Image A, the second Image B.
type Attachment struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mime_type"`
}

type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	AgentID     string       `json:"agent_id,omitempty"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	Pending     bool         `json:"pending"`
	RunID       string       `json:"run_id,omitempty"`
}

// Key addresses one placeholder slot.
type Key struct {
	RunID   string
	AgentID string
}

type slot struct {
	index    int
	resolved bool
}

// Log is the ordered transcript. Placeholders are reserved up front and
// resolved in place, so message order is reservation order.
type Log struct {
	messages []Message
	slots    map[Key]*slot
	seq      int
	mu       sync.RWMutex
}

// New returns a log holding the system greeting.
func New() *Log {
	l := NewEmpty()
	l.Append(Message{Role: RoleSystem, Content: Greeting})
	return l
}

func NewEmpty() *Log {
	return &Log{slots: make(map[Key]*slot)}
}

// Append adds a finalized message, assigning an id and timestamp when unset.
func (l *Log) Append(msg Message) Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("%s-%d", msg.Role, l.seq)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	msg.Pending = false
	l.messages = append(l.messages, msg)
	return msg
}

// Reserve appends a pending assistant placeholder owned by agentID.
func (l *Log) Reserve(runID, agentID string) (Key, error) {
	key := Key{RunID: runID, AgentID: agentID}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.slots[key]; ok {
		return key, fmt.Errorf("%w: run %s agent %s", ErrDuplicateSlot, runID, agentID)
	}

	l.seq++
	l.messages = append(l.messages, Message{
		ID:        fmt.Sprintf("thinking-%s-%d", agentID, l.seq),
		Role:      RoleAssistant,
		AgentID:   agentID,
		Timestamp: time.Now(),
		Pending:   true,
		RunID:     runID,
	})
	l.slots[key] = &slot{index: len(l.messages) - 1}
	return key, nil
}

// Resolve replaces the placeholder for key in place. The text is stored
// verbatim.
func (l *Log) Resolve(key Key, text string) (Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		return Message{}, fmt.Errorf("%w: run %s agent %s", ErrUnknownSlot, key.RunID, key.AgentID)
	}
	if s.resolved {
		return Message{}, fmt.Errorf("%w: run %s agent %s", ErrAlreadyResolved, key.RunID, key.AgentID)
	}

	l.seq++
	msg := l.messages[s.index]
	msg.ID = fmt.Sprintf("msg-%s-%d", key.AgentID, l.seq)
	msg.Content = text
	msg.Pending = false
	msg.Timestamp = time.Now()
	l.messages[s.index] = msg
	s.resolved = true
	return msg, nil
}

// Messages returns a snapshot of the transcript.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Run returns the messages belonging to runID in transcript order.
func (l *Log) Run(runID string) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Message
	for _, m := range l.messages {
		if m.RunID == runID {
			out = append(out, m)
		}
	}
	return out
}

// Pending counts the unresolved placeholders of runID.
func (l *Log) Pending(runID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for key, s := range l.slots {
		if key.RunID == runID && !s.resolved {
			n++
		}
	}
	return n
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}
