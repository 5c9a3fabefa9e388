// Package provider defines the protocol-agnostic interface for language-model
// backends. Each adapter (anthropic, openai) handles its own wire protocol
// internally; the engine only sees the normalized Message shape defined here
// and the assistant conversation.Message that comes back.
package provider
