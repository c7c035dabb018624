package engine

import "encoding/json"

// parseLine parses one complete stdout line as JSON and maps it to an
// Event per the §4.5 type-mapping contract. Unparseable lines emit an
// ERROR event carrying the raw text; they do not kill the stream.
func parseLine(line string) Event {
	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return Event{Kind: KindError, Message: "failed to parse engine output: " + err.Error(), Raw: line}
	}

	eventType, _ := data["type"].(string)

	switch eventType {
	case "content":
		text, _ := data["content"].(string)
		index := intField(data, "index")
		return Event{Kind: KindContent, Text: text, Index: index, Raw: line}

	case "content_block_delta":
		delta, _ := data["delta"].(map[string]any)
		index := intField(data, "index")
		if text, ok := delta["text"].(string); ok {
			return Event{Kind: KindContent, Text: text, Index: index, Raw: line}
		}
		if partial, ok := delta["partial_json"].(string); ok {
			return Event{Kind: KindToolUse, Text: partial, Index: index, Raw: line}
		}
		return Event{Kind: KindMetadata, Metadata: data, Raw: line}

	case "content_block_start":
		block, _ := data["content_block"].(map[string]any)
		if blockType, _ := block["type"].(string); blockType == "tool_use" {
			id, _ := block["id"].(string)
			name, _ := block["name"].(string)
			input, _ := block["input"].(map[string]any)
			return Event{Kind: KindToolUse, ToolUseID: id, ToolName: name, ToolInput: input, Raw: line}
		}
		return Event{Kind: KindMetadata, Metadata: data, Raw: line}

	case "tool_use":
		id, _ := data["id"].(string)
		name, _ := data["name"].(string)
		input, _ := data["input"].(map[string]any)
		return Event{Kind: KindToolUse, ToolUseID: id, ToolName: name, ToolInput: input, Raw: line}

	case "tool_result":
		toolUseID, _ := data["tool_use_id"].(string)
		return Event{Kind: KindToolResult, ToolUseID: toolUseID, ToolResult: data["result"], Raw: line}

	case "error":
		message, _ := data["error"].(string)
		if message == "" {
			message, _ = data["message"].(string)
		}
		return Event{Kind: KindError, Message: message, Raw: line}

	case "done", "message_stop":
		stopReason, _ := data["stop_reason"].(string)
		return Event{Kind: KindDone, StopReason: stopReason, Raw: line}

	case "reasoning":
		summary, _ := data["summary"].(string)
		return Event{Kind: KindMetadata, Metadata: map[string]any{"reasoning": data["reasoning"], "summary": summary}, Raw: line}

	default:
		return Event{Kind: KindMetadata, Metadata: data, Raw: line}
	}
}

func intField(data map[string]any, key string) int {
	v, ok := data[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
