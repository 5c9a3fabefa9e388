// Package debug gates verbose per-component logging.
//
// Categories select WHAT is logged (logging.debug or ANALYST_DEBUG, comma
// separated); the slog level decides HOW MUCH. Debug lines are emitted at
// slog.LevelDebug, full request and response bodies at LevelTrace.
//
//	debug.Log(debug.Providers, "request", "model", model)
//	if debug.TraceEnabled(debug.Sandbox) { /* expensive formatting */ }
package debug

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// LevelTrace is below slog.LevelDebug for maximum verbosity.
const LevelTrace = slog.LevelDebug - 4

// Known categories. "all" enables every category.
const (
	Providers  = "providers"
	Engine     = "engine"
	Sandbox    = "sandbox"
	Checkpoint = "checkpoint"
	Transport  = "transport"
	All        = "all"
)

// categories is written by Configure at startup and only read afterwards.
var categories = map[string]bool{}

// Configure enables the comma-separated categories in list.
func Configure(list string) {
	categories = parseCategories(list)
}

// Enabled reports whether output is active for the category.
func Enabled(category string) bool {
	return categories[All] || categories[category]
}

// Log emits a debug line for the category. No-op when disabled.
func Log(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level line for the category.
func Trace(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceEnabled reports whether trace output would be written for the
// category.
func TraceEnabled(category string) bool {
	return Enabled(category) && slog.Default().Enabled(context.Background(), LevelTrace)
}

// Categories returns the enabled categories, sorted.
func Categories() []string {
	out := make([]string, 0, len(categories))
	for k := range categories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Truncate shortens s to maxLen bytes, appending "..." when cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
