package ai

import (
	"context"
	"sync"
)

// Transcript is an append-only conversation log bounded to the most recent
// window entries. Entries are never validated or deduplicated.
type Transcript struct {
	mu      sync.Mutex
	window  int
	entries []Message
}

// NewTranscript creates a transcript seeded with earlier entries.
func NewTranscript(window int, seed ...Message) *Transcript {
	t := &Transcript{window: window}
	t.Append(seed...)
	return t
}

// Append adds entries and drops the oldest beyond the window.
func (t *Transcript) Append(entries ...Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entries...)
	if t.window > 0 && len(t.entries) > t.window {
		t.entries = append([]Message(nil), t.entries[len(t.entries)-t.window:]...)
	}
}

// Entries returns a copy of the entries, oldest first.
func (t *Transcript) Entries() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.entries...)
}

// Len returns the number of retained entries.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// ChatSession is a text conversation with the companion persona.
type ChatSession struct {
	companion  *Companion
	transcript *Transcript
}

// NewChatSession starts a conversation on top of transcript.
func NewChatSession(c *Companion, transcript *Transcript) *ChatSession {
	return &ChatSession{companion: c, transcript: transcript}
}

// Send answers text and records both turns. A failed call still records the
// fallback reply so the conversation reads naturally.
func (s *ChatSession) Send(ctx context.Context, text string) Message {
	history := s.transcript.Entries()
	reply := Message{Role: RoleAssistant, Text: s.companion.Reply(ctx, history, text)}
	s.transcript.Append(Message{Role: RoleUser, Text: text}, reply)
	return reply
}

// Transcript returns the session transcript.
func (s *ChatSession) Transcript() *Transcript { return s.transcript }
