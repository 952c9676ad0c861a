package attrs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
)

// flatMessage is the normalized shape of one input or output message
// after content-block flattening: an accumulated content string plus any
// tool calls extracted from tool_use blocks.
type flatMessage struct {
	role      string
	content   string
	toolCalls []toolCall
}

type toolCall struct {
	name      string
	arguments string
}

// RequestAttributes builds the OpenInference request attributes for a
// (possibly rewritten) request body. It never returns an error: a body
// that doesn't parse as JSON yields only the span-kind/system attributes.
func RequestAttributes(raw []byte) []attribute.KeyValue {
	if !gjson.ValidBytes(raw) {
		return []attribute.KeyValue{
			attribute.String(SpanKind, SpanKindLLM),
			attribute.String(LLMSystem, LLMSystemVal),
		}
	}

	root := gjson.ParseBytes(raw)

	attrsList := []attribute.KeyValue{
		attribute.String(SpanKind, SpanKindLLM),
		attribute.String(LLMSystem, LLMSystemVal),
		attribute.String(LLMModelName, root.Get("model").String()),
	}

	messagesResult := root.Get("messages")
	if messagesJSON := messagesResult.Raw; messagesJSON != "" {
		attrsList = append(attrsList, attribute.String(InputValue, messagesJSON))
	}

	if params := invocationParameters(root); len(params) > 0 {
		if encoded, err := json.Marshal(params); err == nil {
			attrsList = append(attrsList, attribute.String(LLMInvocationParameters, string(encoded)))
		}
	}

	flat := flattenInputMessages(root)
	for i, msg := range flat {
		attrsList = append(attrsList, messageAttributes(InputMessagesPrefix, i, msg)...)
	}

	root.Get("tools").ForEach(func(idx, tool gjson.Result) bool {
		attrsList = append(attrsList, attribute.String(fmt.Sprintf("%s.%d.tool.json_schema", LLMTools, idx.Int()), tool.Raw))
		return true
	})

	return attrsList
}

// invocationParameters collects the subset of top-level fields spec §4.6
// names into the llm.invocation_parameters object, omitting any that
// aren't present on the request.
func invocationParameters(root gjson.Result) map[string]any {
	params := map[string]any{}

	if v := root.Get("max_tokens"); v.Exists() {
		params["max_tokens"] = v.Value()
	}
	if v := root.Get("temperature"); v.Exists() {
		params["temperature"] = v.Value()
	}
	if v := root.Get("top_p"); v.Exists() {
		params["top_p"] = v.Value()
	}
	if v := root.Get("top_k"); v.Exists() {
		params["top_k"] = v.Value()
	}
	if v := root.Get("stop_sequences"); v.Exists() {
		params["stop_sequences"] = v.Value()
	}

	return params
}

// flattenInputMessages builds the ordered list of input messages: the
// system prompt (if present) occupies index 0, and the request's own
// messages shift to follow it — per spec §4.6.
func flattenInputMessages(root gjson.Result) []flatMessage {
	var out []flatMessage

	if sys := root.Get("system"); sys.Exists() {
		out = append(out, flatMessage{role: "system", content: systemText(sys)})
	}

	root.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		out = append(out, flattenContentMessage(msg))
		return true
	})

	return out
}

// systemText joins a string-or-blocks system prompt into one string.
func systemText(sys gjson.Result) string {
	if sys.IsArray() {
		var parts []string
		sys.ForEach(func(_, part gjson.Result) bool {
			if part.Get("type").String() == "text" {
				parts = append(parts, part.Get("text").String())
			}
			return true
		})
		return strings.Join(parts, "\n")
	}
	return sys.String()
}

// flattenContentMessage flattens one message's content (string or block
// array) into a single content string plus any tool calls, tolerating
// unknown block types by silently skipping them.
func flattenContentMessage(msg gjson.Result) flatMessage {
	role := msg.Get("role").String()
	content := msg.Get("content")

	if content.Type == gjson.String {
		return flatMessage{role: role, content: content.String()}
	}

	var textParts []string
	var calls []toolCall

	content.ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			textParts = append(textParts, block.Get("text").String())
		case "tool_use":
			calls = append(calls, toolCall{
				name:      block.Get("name").String(),
				arguments: block.Get("input").Raw,
			})
		case "tool_result":
			if resultContent := block.Get("content"); resultContent.Type == gjson.String {
				textParts = append(textParts, resultContent.String())
			}
		default:
			// Unknown block type: tolerated, silently skipped.
		}
		return true
	})

	return flatMessage{role: role, content: strings.Join(textParts, "\n"), toolCalls: calls}
}

// messageAttributes renders one flattened message into its
// llm.{input,output}_messages.<i>.* attribute set.
func messageAttributes(prefix string, i int, msg flatMessage) []attribute.KeyValue {
	out := []attribute.KeyValue{
		attribute.String(fmt.Sprintf("%s.%d.%s", prefix, i, MessageRole), msg.role),
	}
	if msg.content != "" {
		out = append(out, attribute.String(fmt.Sprintf("%s.%d.%s", prefix, i, MessageContent), msg.content))
	}
	for j, call := range msg.toolCalls {
		out = append(out,
			attribute.String(fmt.Sprintf("%s.%d.%s.%d.%s", prefix, i, "tool_calls", j, ToolCallFunctionName), call.name),
			attribute.String(fmt.Sprintf("%s.%d.%s.%d.%s", prefix, i, "tool_calls", j, ToolCallFunctionArguments), call.arguments),
		)
	}
	return out
}
