package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/relay-agents/relay/pkg/agent"
	"github.com/relay-agents/relay/pkg/llms"
	"github.com/relay-agents/relay/pkg/observability"
	"github.com/relay-agents/relay/pkg/tools"
)

// Workflow runs a handoff conversation. Build one with HandoffBuilder
// or FromConfig.
//
// The lifecycle is event-driven: RunStream returns a channel, the
// caller consumes events, and whenever a RequestInfoEvent arrives the
// caller answers it with SendResponses. The stream ends with either an
// OutputEvent or an ErrorEvent, after which the channel is closed.
type Workflow struct {
	name        string
	agents      map[string]*agent.Agent
	coordinator string
	terminate   TerminationCondition
	maxTurns    int
	thread      *agent.Thread
	streaming   bool

	responses chan map[string]string

	mu      sync.Mutex
	pending map[string]*UserInputRequest
	running bool
}

// Name returns the workflow name.
func (w *Workflow) Name() string { return w.name }

// Thread returns the conversation thread the workflow runs on.
func (w *Workflow) Thread() *agent.Thread { return w.thread }

// Participants returns the participant names sorted alphabetically.
func (w *Workflow) Participants() []string {
	names := make([]string, 0, len(w.agents))
	for name := range w.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunStream starts the conversation with the given user input and
// returns the event stream. A workflow runs at most once.
func (w *Workflow) RunStream(ctx context.Context, input string) (<-chan Event, error) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil, fmt.Errorf("workflow %s is already running", w.name)
	}
	w.running = true
	w.mu.Unlock()

	events := make(chan Event, 16)
	go w.run(ctx, input, events)
	return events, nil
}

// SendResponses answers pending user input requests. Every key must
// match the RequestID of an outstanding RequestInfoEvent.
func (w *Workflow) SendResponses(ctx context.Context, responses map[string]string) error {
	w.mu.Lock()
	for id := range responses {
		if _, ok := w.pending[id]; !ok {
			w.mu.Unlock()
			return fmt.Errorf("workflow %s: unknown request ID %q", w.name, id)
		}
	}
	w.mu.Unlock()

	select {
	case w.responses <- responses:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Workflow) run(ctx context.Context, input string, events chan<- Event) {
	defer close(events)

	logger := slog.Default().With("workflow", w.name)
	tracer := observability.GetTracer("relay.workflow")

	active := w.coordinator
	for turn := 1; ; turn++ {
		if turn > w.maxTurns {
			events <- ErrorEvent{Err: fmt.Errorf("workflow %s: exceeded %d turns", w.name, w.maxTurns)}
			return
		}

		turnCtx, span := tracer.Start(ctx, observability.SpanWorkflowTurn)
		span.SetAttributes(
			attribute.String(observability.AttrWorkflowName, w.name),
			attribute.String(observability.AttrAgentName, active),
		)

		result, target, err := w.runTurn(turnCtx, active, input, events)
		span.End()
		if err != nil {
			events <- ErrorEvent{Err: err}
			return
		}
		input = ""

		events <- AgentTurnEvent{Agent: active, Text: result.Text, TokensUsed: result.TokensUsed}

		if target != "" {
			logger.Info("handoff", "from", active, "to", target)
			events <- HandoffEvent{From: active, To: target}
			active = target
			continue
		}

		reply, err := w.requestUserInput(ctx, active, result.Text, events)
		if err != nil {
			events <- ErrorEvent{Err: err}
			return
		}

		if w.terminate != nil && w.terminate(reply) {
			w.thread.Append(llms.Message{Role: llms.RoleUser, Content: reply})
			events <- OutputEvent{Conversation: w.thread.Messages()}
			return
		}
		input = reply
	}
}

// runTurn executes one agent turn with transfer tools injected and
// reports the handoff target if the agent transferred.
func (w *Workflow) runTurn(ctx context.Context, active, input string, events chan<- Event) (*agent.RunResult, string, error) {
	current, ok := w.agents[active]
	if !ok {
		return nil, "", fmt.Errorf("workflow %s: no such agent %q", w.name, active)
	}

	var target string
	opts := []agent.RunOption{agent.WithTools(w.transferTools(active, &target)...)}
	if w.streaming {
		opts = append(opts, agent.WithStreamFunc(func(delta string) {
			events <- TextDeltaEvent{Agent: active, Delta: delta}
		}))
	}

	result, err := current.Run(ctx, input, w.thread, opts...)
	if err != nil {
		return nil, "", err
	}
	return result, target, nil
}

// transferTools builds one transfer_to_<name> tool per participant
// other than the active agent. Calling a transfer tool records the
// target; the first transfer of a turn wins.
func (w *Workflow) transferTools(active string, target *string) []tools.Tool {
	names := w.Participants()

	out := make([]tools.Tool, 0, len(names)-1)
	for _, name := range names {
		if name == active {
			continue
		}
		to := name
		description := fmt.Sprintf("Transfer the conversation to the %s agent.", to)
		if desc := w.agents[to].Description(); desc != "" {
			description = fmt.Sprintf("Transfer the conversation to the %s agent. %s", to, desc)
		}
		t, err := tools.NewFunctionTool("transfer_to_"+to, description,
			func(_ context.Context, _ struct{}) (any, error) {
				if *target != "" {
					return nil, fmt.Errorf("a transfer to %s is already in progress", *target)
				}
				*target = to
				return fmt.Sprintf("Transferring to %s.", to), nil
			})
		if err != nil {
			// Participant names are validated at build time.
			continue
		}
		out = append(out, t)
	}
	return out
}

// requestUserInput parks the workflow until SendResponses delivers the
// reply for the emitted request.
func (w *Workflow) requestUserInput(ctx context.Context, active, prompt string, events chan<- Event) (string, error) {
	request := &UserInputRequest{
		RequestID: uuid.NewString(),
		Agent:     active,
		Prompt:    prompt,
	}

	w.mu.Lock()
	w.pending[request.RequestID] = request
	w.mu.Unlock()

	events <- RequestInfoEvent{Request: request}

	for {
		select {
		case responses := <-w.responses:
			reply, ok := responses[request.RequestID]
			if !ok {
				continue
			}
			w.mu.Lock()
			delete(w.pending, request.RequestID)
			w.mu.Unlock()
			return reply, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
