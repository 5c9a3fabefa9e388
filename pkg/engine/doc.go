// Package engine implements the agent loop. Each turn appends the caller's
// message to the thread history and then alternates between asking the
// model and running the tools it requests, until the model answers without
// tool calls:
//
//	START -> CHATBOT -> {TOOLS -> CHATBOT}* -> END
//
// Before every model call the history is normalized into the flat shape the
// model expects; files produced by tools never reach the model and are
// returned to the caller separately. Thread state lives in a checkpoint
// store that serializes turns on the same thread.
package engine
