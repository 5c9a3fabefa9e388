// Package sandbox provides the python interpreter tool. Code runs in a
// remote execution sandbox reached over its REST API.
package sandbox

import "encoding/json"

// ExecuteRequest is the request body for POST /execute on the sandbox.
type ExecuteRequest struct {
	Code           string `json:"code"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`

	// Libraries lists packages preinstalled in the sandbox image.
	Libraries []string `json:"available_libraries,omitempty"`

	// Files are staged into the working directory before execution,
	// keyed by filename with base64 content.
	Files map[string]string `json:"files,omitempty"`
}

// ExecuteResponse is the response from POST /execute.
type ExecuteResponse struct {
	Status          string            `json:"status"`
	Stdout          string            `json:"stdout"`
	Stderr          string            `json:"stderr"`
	ExitCode        int               `json:"exit_code"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
	Files           map[string]string `json:"files,omitempty"`
	FilesProduced   map[string]string `json:"files_produced,omitempty"`

	// Fields holds every top-level field of the decoded reply, including
	// those not declared above. Nil unless the response was unmarshaled.
	Fields map[string]any `json:"-"`
}

// UnmarshalJSON decodes the declared fields and keeps the raw object in
// Fields.
func (r *ExecuteResponse) UnmarshalJSON(b []byte) error {
	type plain ExecuteResponse
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*r = ExecuteResponse(p)
	r.Fields = fields
	return nil
}

// ResultFields returns the reply as seen by the model: every field except
// the produced files. A response built in code, without Fields, yields its
// declared result fields.
func (r *ExecuteResponse) ResultFields() map[string]any {
	if r.Fields == nil {
		return map[string]any{
			"status":    r.Status,
			"stdout":    r.Stdout,
			"stderr":    r.Stderr,
			"exit_code": r.ExitCode,
		}
	}
	out := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		if k == "files" || k == "files_produced" {
			continue
		}
		out[k] = v
	}
	return out
}

// ProducedFiles returns the files created by the execution. Sandboxes
// report them either under "files" or "files_produced"; when both are
// present the latter wins on name clashes.
func (r *ExecuteResponse) ProducedFiles() map[string]string {
	if len(r.Files) == 0 && len(r.FilesProduced) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.Files)+len(r.FilesProduced))
	for k, v := range r.Files {
		out[k] = v
	}
	for k, v := range r.FilesProduced {
		out[k] = v
	}
	return out
}
