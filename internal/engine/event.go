// Package engine implements the Engine Adapter: running an external LLM
// CLI as a child process and exposing its output as a lazy sequence of
// Events, with strict process-group resource discipline.
package engine

// Kind tags the variant of an Event.
type Kind string

const (
	KindContent    Kind = "content"
	KindToolUse    Kind = "tool_use"
	KindToolResult Kind = "tool_result"
	KindMetadata   Kind = "metadata"
	KindError      Kind = "error"
	KindDone       Kind = "done"
)

// Event is the unit streamed out of the engine adapter: a tagged variant
// terminated by an ERROR or DONE event.
type Event struct {
	Kind Kind

	// CONTENT
	Text  string
	Index int

	// TOOL_USE
	ToolUseID string
	ToolName  string
	ToolInput map[string]any

	// TOOL_RESULT
	ToolResult any

	// ERROR
	Message string

	// DONE
	StopReason string

	// METADATA / unknown types
	Metadata map[string]any

	// Raw is the original line for parsed events; it is empty for events
	// the adapter creates itself (cancellation, exit errors, end of turn).
	Raw string
}

// IsError reports whether this event is an ERROR event.
func (e Event) IsError() bool { return e.Kind == KindError }

// IsDone reports whether this event is a DONE event.
func (e Event) IsDone() bool { return e.Kind == KindDone }

// ExtractTextContent concatenates every CONTENT event's text, in order.
func ExtractTextContent(events []Event) string {
	var out string
	for _, e := range events {
		if e.Kind == KindContent {
			out += e.Text
		}
	}
	return out
}

// ToolUse is a completed tool invocation extracted from a TOOL_USE event.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// ExtractToolUses returns every complete tool use (one that carries both a
// name and an id) in the event list.
func ExtractToolUses(events []Event) []ToolUse {
	var out []ToolUse
	for _, e := range events {
		if e.Kind == KindToolUse && e.ToolName != "" && e.ToolUseID != "" {
			out = append(out, ToolUse{ID: e.ToolUseID, Name: e.ToolName, Input: e.ToolInput})
		}
	}
	return out
}

// HasError reports whether any event in the list is an ERROR event.
func HasError(events []Event) bool {
	for _, e := range events {
		if e.IsError() {
			return true
		}
	}
	return false
}
