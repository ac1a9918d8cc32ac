package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/relay-agents/relay/pkg/llms"
	"github.com/relay-agents/relay/pkg/utils"
)

// Thread is an append-only conversation history shared across agent runs.
// Safe for concurrent use.
type Thread struct {
	id string

	mu       sync.RWMutex
	messages []llms.Message

	store   MessageStore
	counter *utils.TokenCounter

	// maxTokens bounds the model window built from this thread.
	// Zero means no trimming.
	maxTokens int
}

// ThreadOption configures a new thread.
type ThreadOption func(*Thread)

// WithThreadID sets an explicit thread ID instead of a generated one.
func WithThreadID(id string) ThreadOption {
	return func(t *Thread) { t.id = id }
}

// WithStore attaches a message store used by Save and Load.
func WithStore(store MessageStore) ThreadOption {
	return func(t *Thread) { t.store = store }
}

// WithMaxTokens enables token-aware trimming of the model window.
// The counter must match the model the thread will be used with.
func WithMaxTokens(maxTokens int, counter *utils.TokenCounter) ThreadOption {
	return func(t *Thread) {
		t.maxTokens = maxTokens
		t.counter = counter
	}
}

// NewThread creates a conversation thread.
func NewThread(opts ...ThreadOption) *Thread {
	t := &Thread{}
	for _, opt := range opts {
		opt(t)
	}
	if t.id == "" {
		t.id = uuid.NewString()
	}
	return t
}

// ID returns the thread identifier.
func (t *Thread) ID() string { return t.id }

// Append adds messages to the history.
func (t *Thread) Append(msgs ...llms.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msgs...)
}

// Messages returns a copy of the full history.
func (t *Thread) Messages() []llms.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]llms.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages in the history.
func (t *Thread) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Window returns the messages to send to the model, trimmed to the
// configured token budget. Trimming drops the oldest messages first and
// never produces a window that opens with an orphaned tool result.
func (t *Thread) Window() []llms.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.maxTokens <= 0 || t.counter == nil {
		out := make([]llms.Message, len(t.messages))
		copy(out, t.messages)
		return out
	}

	// Reply priming overhead.
	budget := t.maxTokens - 3

	start := len(t.messages)
	used := 0
	for i := len(t.messages) - 1; i >= 0; i-- {
		msg := t.messages[i]
		cost := t.counter.CountMessage(string(msg.Role), msg.Content)
		for _, call := range msg.ToolCalls {
			cost += t.counter.Count(call.Name)
		}
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}

	// A tool result without the assistant message that requested it is
	// rejected by the API. Drop leading results until the window opens
	// with a regular message.
	for start < len(t.messages) && t.messages[start].Role == llms.RoleTool {
		start++
	}

	out := make([]llms.Message, len(t.messages)-start)
	copy(out, t.messages[start:])
	return out
}

// Save persists the history to the attached store.
func (t *Thread) Save(ctx context.Context) error {
	if t.store == nil {
		return fmt.Errorf("thread %s has no store attached", t.id)
	}
	return t.store.SaveMessages(ctx, t.id, t.Messages())
}

// Load replaces the history with the stored one.
func (t *Thread) Load(ctx context.Context) error {
	if t.store == nil {
		return fmt.Errorf("thread %s has no store attached", t.id)
	}
	msgs, err := t.store.LoadMessages(ctx, t.id)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = msgs
	return nil
}
