package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-agents/relay/pkg/llms"
	"github.com/relay-agents/relay/pkg/utils"
)

func TestThreadAppendAndMessages(t *testing.T) {
	thread := NewThread()
	assert.NotEmpty(t, thread.ID())

	thread.Append(
		llms.Message{Role: llms.RoleUser, Content: "hi"},
		llms.Message{Role: llms.RoleAssistant, Content: "hello"},
	)
	assert.Equal(t, 2, thread.Len())

	msgs := thread.Messages()
	msgs[0].Content = "mutated"
	assert.Equal(t, "hi", thread.Messages()[0].Content, "Messages must return a copy")
}

func TestThreadExplicitID(t *testing.T) {
	thread := NewThread(WithThreadID("thread-42"))
	assert.Equal(t, "thread-42", thread.ID())
}

func TestThreadWindowNoTrimming(t *testing.T) {
	thread := NewThread()
	thread.Append(llms.Message{Role: llms.RoleUser, Content: "hi"})

	window := thread.Window()
	require.Len(t, window, 1)
}

func TestThreadWindowTrimsOldest(t *testing.T) {
	counter, err := utils.NewTokenCounter("gpt-4o")
	require.NoError(t, err)

	long := "This is a deliberately long message that should cost a meaningful number of tokens to encode."

	thread := NewThread(WithMaxTokens(40, counter))
	thread.Append(
		llms.Message{Role: llms.RoleUser, Content: long},
		llms.Message{Role: llms.RoleAssistant, Content: long},
		llms.Message{Role: llms.RoleUser, Content: "short"},
		llms.Message{Role: llms.RoleAssistant, Content: "ok"},
	)

	window := thread.Window()
	require.NotEmpty(t, window)
	assert.Less(t, len(window), 4, "oldest messages should be trimmed")
	assert.Equal(t, "ok", window[len(window)-1].Content, "most recent message survives")
}

func TestThreadWindowDropsOrphanToolResults(t *testing.T) {
	counter, err := utils.NewTokenCounter("gpt-4o")
	require.NoError(t, err)

	long := "This long user question establishes enough history that the window cannot keep everything around."

	thread := NewThread(WithMaxTokens(60, counter))
	thread.Append(
		llms.Message{Role: llms.RoleUser, Content: long},
		llms.Message{Role: llms.RoleAssistant, Content: long, ToolCalls: []*llms.ToolCall{
			{ID: "call_1", Name: "lookup", Args: map[string]interface{}{}},
		}},
		llms.Message{Role: llms.RoleTool, Content: "result", ToolCallID: "call_1", Name: "lookup"},
		llms.Message{Role: llms.RoleAssistant, Content: "final answer"},
	)

	window := thread.Window()
	require.NotEmpty(t, window)
	assert.NotEqual(t, llms.RoleTool, window[0].Role,
		"window must not open with a tool result whose call was trimmed")
}

func TestThreadSaveRequiresStore(t *testing.T) {
	thread := NewThread()
	assert.Error(t, thread.Save(t.Context()))
	assert.Error(t, thread.Load(t.Context()))
}
