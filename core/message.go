package core

import (
	"sync"
	"time"
)

// MessageType labels a transcript entry by its origin.
type MessageType string

const (
	MessageTypeWorkflowStart      MessageType = "workflow_start"
	MessageTypeChat               MessageType = "chat"
	MessageTypeGroupChatSummary   MessageType = "group_chat_summary"
	MessageTypeHumanInput         MessageType = "human_input"
	MessageTypeReflectionFeedback MessageType = "reflection_feedback"
	MessageTypeReflectionRevision MessageType = "reflection_revision"
	MessageTypeReflectionFinal    MessageType = "reflection_final"
	MessageTypeWorkflowEnd        MessageType = "workflow_end"
)

// Message is one entry in the ordered conversation transcript. Sequence
// numbers are zero-based and strictly increasing within a run.
type Message struct {
	Sequence       int            `json:"sequence"`
	AgentName      string         `json:"agent_name"`
	AgentType      string         `json:"agent_type,omitempty"`
	Content        string         `json:"content"`
	Type           MessageType    `json:"message_type"`
	Timestamp      time.Time      `json:"timestamp"`
	ResponseTimeMS int64          `json:"response_time_ms,omitempty"`
	TokenCount     int            `json:"token_count,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Identity is the reconciliation key for a message. Two messages with the
// same identity are treated as the same logical entry when merging an
// in-flight transcript with a stored one.
type Identity struct {
	Sequence  int
	AgentName string
	Type      MessageType
}

// Identity returns the reconciliation key for the message.
func (m Message) Identity() Identity {
	return Identity{Sequence: m.Sequence, AgentName: m.AgentName, Type: m.Type}
}

// Sequencer hands out strictly increasing sequence numbers for one run.
// It is safe for concurrent use.
type Sequencer struct {
	mu   sync.Mutex
	next int
}

// NewSequencer returns a sequencer starting at 0.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// NewSequencerFrom returns a sequencer whose first value is next.
func NewSequencerFrom(next int) *Sequencer {
	if next < 0 {
		next = 0
	}
	return &Sequencer{next: next}
}

// Next returns the next sequence number.
func (s *Sequencer) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.next
	s.next++
	return n
}

// Peek returns the value Next would return, without consuming it.
func (s *Sequencer) Peek() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Advance moves the sequencer forward so the next value is at least next.
func (s *Sequencer) Advance(next int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next > s.next {
		s.next = next
	}
}

// NewMessage builds a transcript entry stamped with the current UTC time.
func NewMessage(seq int, agentName, content string, t MessageType) Message {
	return Message{
		Sequence:  seq,
		AgentName: agentName,
		Content:   content,
		Type:      t,
		Timestamp: time.Now().UTC(),
	}
}

// MaxSequence returns the highest sequence number in msgs, or -1 when
// msgs is empty.
func MaxSequence(msgs []Message) int {
	max := -1
	for _, m := range msgs {
		if m.Sequence > max {
			max = m.Sequence
		}
	}
	return max
}
