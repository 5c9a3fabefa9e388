package engine

import (
	"errors"

	"github.com/rhuss/analyst/pkg/conversation"
)

// ErrInvalidState is returned when the router is asked to route an empty
// history. It indicates a bug in the caller.
var ErrInvalidState = errors.New("no messages found in state")

// Transition is the router's decision after a model call.
type Transition int

const (
	// TransitionTerminate ends the turn.
	TransitionTerminate Transition = iota

	// TransitionInvokeTool runs the pending tool calls.
	TransitionInvokeTool
)

func (t Transition) String() string {
	if t == TransitionInvokeTool {
		return "invoke-tool"
	}
	return "terminate"
}

// Route decides the next transition from the last message alone. Tool
// calls on earlier messages were resolved by previous cycles.
func Route(messages []conversation.Message) (Transition, error) {
	if len(messages) == 0 {
		return TransitionTerminate, ErrInvalidState
	}
	if messages[len(messages)-1].HasToolCalls() {
		return TransitionInvokeTool, nil
	}
	return TransitionTerminate, nil
}

// RouteConversation routes a conversation state.
func RouteConversation(c *conversation.Conversation) (Transition, error) {
	if c == nil {
		return TransitionTerminate, ErrInvalidState
	}
	return Route(c.Messages)
}
