package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhuss/analyst/pkg/conversation"
	"github.com/rhuss/analyst/pkg/debug"
	"github.com/rhuss/analyst/pkg/observability"
	"github.com/rhuss/analyst/pkg/provider"
)

// ErrMaxTurns is returned when a turn needs more model calls than allowed.
var ErrMaxTurns = errors.New("maximum number of model calls per turn exceeded")

// State is a node of the agent state machine.
type State int

const (
	// StateStart is the entry node; it always moves to StateChatbot.
	StateStart State = iota
	// StateChatbot asks the model for the next message.
	StateChatbot
	// StateTools executes the tool calls of the last model message.
	StateTools
	// StateEnd finishes the turn.
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateChatbot:
		return "chatbot"
	case StateTools:
		return "tools"
	case StateEnd:
		return "end"
	default:
		return "invalid"
	}
}

// runLoop drives the state machine over conv until END. Messages produced
// along the way are appended to conv. It returns the number of model calls.
func (e *Engine) runLoop(ctx context.Context, conv *conversation.Conversation) (int, error) {
	maxTurns := e.cfg.maxTurns()
	modelCalls := 0
	state := StateStart

	for {
		debug.Log(debug.Engine, "agent state", "thread_id", conv.ThreadID, "state", state.String(), "model_calls", modelCalls)

		switch state {
		case StateStart:
			state = StateChatbot

		case StateChatbot:
			if modelCalls >= maxTurns {
				return modelCalls, fmt.Errorf("%w (%d)", ErrMaxTurns, maxTurns)
			}
			modelCalls++

			msg, err := e.chatbot(ctx, conv)
			if err != nil {
				return modelCalls, err
			}
			conv.Append(msg)

			next, err := RouteConversation(conv)
			if err != nil {
				return modelCalls, err
			}
			if next == TransitionInvokeTool {
				state = StateTools
			} else {
				state = StateEnd
			}

		case StateTools:
			last, _ := conv.Last()
			msg, err := Invoke(ctx, e.tools, last.ToolCalls, conv.Attachments())
			if err != nil {
				return modelCalls, err
			}
			conv.Append(msg)
			state = StateChatbot

		case StateEnd:
			return modelCalls, nil

		default:
			return modelCalls, fmt.Errorf("%w: unknown state %d", ErrInvalidState, int(state))
		}
	}
}

// chatbot normalizes the history and asks the model for the next message.
func (e *Engine) chatbot(ctx context.Context, conv *conversation.Conversation) (conversation.Message, error) {
	norm, err := Normalize(conv.Messages)
	if err != nil {
		return conversation.Message{}, err
	}
	for _, d := range norm.Diagnostics {
		slog.Warn("dropping message from model context",
			"thread_id", conv.ThreadID,
			"index", d.Index,
			"kind", d.Kind.String(),
			"reason", d.Reason,
		)
		observability.NormalizerDroppedTotal.WithLabelValues(d.Kind.String()).Inc()
	}

	req := &provider.Request{
		Model:     e.cfg.Model,
		System:    e.cfg.SystemPrompt,
		Messages:  norm.Messages,
		Tools:     e.tools.Definitions(),
		MaxTokens: e.cfg.MaxTokens,
	}

	provName := e.provider.Name()
	start := time.Now()
	resp, err := e.provider.Complete(ctx, req)
	duration := time.Since(start)
	observability.ProviderLatency.WithLabelValues(provName, e.cfg.Model).Observe(duration.Seconds())

	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(provName, e.cfg.Model, "error").Inc()
		return conversation.Message{}, fmt.Errorf("model call: %w", err)
	}

	observability.ProviderRequestsTotal.WithLabelValues(provName, e.cfg.Model, "success").Inc()
	observability.ProviderTokensTotal.WithLabelValues(provName, e.cfg.Model, "input").Add(float64(resp.Usage.InputTokens))
	observability.ProviderTokensTotal.WithLabelValues(provName, e.cfg.Model, "output").Add(float64(resp.Usage.OutputTokens))

	msg := resp.Message
	msg.Kind = conversation.KindAssistant
	return msg, nil
}
