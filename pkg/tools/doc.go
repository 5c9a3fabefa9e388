// Package tools defines the executor contract used by the agent loop's tool
// invoker, together with the Call and Result types exchanged with executors.
//
// A Result is serialized into a tool message as one JSON object; produced
// files travel in that object under the "files" key so they can be returned
// to the caller while the normalizer keeps them out of the model context.
package tools
