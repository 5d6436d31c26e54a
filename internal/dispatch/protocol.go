package dispatch

import (
	"log/slog"
	"strings"
)

// Completion output markers.
const (
	sayMarker      = "SAY:"
	toolCallMarker = "TOOL_CALL"
)

// toolCall is one parsed TOOL_CALL line: `TOOL_CALL <Tool>: <method> <args>`.
type toolCall struct {
	Tool   string
	Method string
	Args   string
}

// passOutput is the structured view of one completion's text.
type passOutput struct {
	// Say holds immediate-speech texts, dispatched before any second pass.
	Say []string

	// Call is the first tool call in the output. Later TOOL_CALL lines are
	// ignored; first-wins keeps the injected tool result unambiguous.
	Call *toolCall

	// Leftover is the remaining text, the candidate final response when no
	// tool pass follows.
	Leftover string
}

// parseCompletion splits a completion's free-form text into speech, tool
// call, and leftover response lines.
func parseCompletion(text string) passOutput {
	var out passOutput
	var leftover []string

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, sayMarker):
			if say := strings.TrimSpace(line[len(sayMarker):]); say != "" {
				out.Say = append(out.Say, say)
			}
		case strings.HasPrefix(line, toolCallMarker):
			call, ok := parseToolCall(line)
			if !ok {
				slog.Warn("dispatch: unparseable tool call line", "line", line)
				continue
			}
			if out.Call != nil {
				slog.Warn("dispatch: extra tool call ignored", "tool", call.Tool, "method", call.Method)
				continue
			}
			out.Call = &call
		default:
			leftover = append(leftover, line)
		}
	}

	out.Leftover = strings.Join(leftover, "\n")
	return out
}

// parseToolCall decodes `TOOL_CALL <Tool>: <method> <args>`. The args part
// may be empty.
func parseToolCall(line string) (toolCall, bool) {
	rest := strings.TrimSpace(line[len(toolCallMarker):])
	name, invocation, found := strings.Cut(rest, ":")
	name = strings.TrimSpace(name)
	if !found || name == "" {
		return toolCall{}, false
	}

	method, args, _ := strings.Cut(strings.TrimSpace(invocation), " ")
	if method == "" {
		return toolCall{}, false
	}
	return toolCall{
		Tool:   name,
		Method: method,
		Args:   strings.TrimSpace(args),
	}, true
}
