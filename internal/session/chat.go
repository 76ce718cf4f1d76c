// Package session holds the per-call state shared between agents: the chat
// context the model sees and the archiver that copies the call to the
// transcript archive.
package session

import (
	"sync"

	"github.com/MrWong99/huddle/pkg/types"
)

// ChatContext is the ordered message history of one call. In team mode every
// role holds the same *ChatContext, so a handoff never copies history.
//
// All methods are safe for concurrent use.
type ChatContext struct {
	maxMessages int

	mu       sync.Mutex
	messages []types.Message
}

// NewChatContext returns an empty chat context. When maxMessages is positive
// the oldest messages are dropped once the history grows beyond it; trimming
// always stops at a user message so tool results keep their calls.
func NewChatContext(maxMessages int) *ChatContext {
	return &ChatContext{maxMessages: maxMessages}
}

// Append adds messages to the end of the history.
func (c *ChatContext) Append(msgs ...types.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msgs...)
	c.trim()
}

func (c *ChatContext) trim() {
	if c.maxMessages <= 0 || len(c.messages) <= c.maxMessages {
		return
	}
	cut := len(c.messages) - c.maxMessages
	for cut < len(c.messages) && c.messages[cut].Role != "user" {
		cut++
	}
	if cut == len(c.messages) {
		// No user message to start from; keep everything rather than
		// leaving orphaned tool results.
		return
	}
	c.messages = append([]types.Message(nil), c.messages[cut:]...)
}

// Messages returns a copy of the history.
func (c *ChatContext) Messages() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.Message(nil), c.messages...)
}

// Len returns the number of messages.
func (c *ChatContext) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}
