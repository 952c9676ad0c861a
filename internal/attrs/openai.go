package attrs

import (
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
)

// OpenAIRequestAttrs builds request attributes for the OpenAI-shaped
// chat-completions request body the older shadow-proxy generation
// speaks (messages[].role/content, max_completion_tokens).
func OpenAIRequestAttrs(raw []byte) []attribute.KeyValue {
	if !gjson.ValidBytes(raw) {
		return []attribute.KeyValue{
			attribute.String(SpanKind, SpanKindLLM),
		}
	}

	root := gjson.ParseBytes(raw)
	out := []attribute.KeyValue{
		attribute.String(SpanKind, SpanKindLLM),
		attribute.String(LLMModelName, root.Get("model").String()),
	}

	if v := root.Get("max_completion_tokens"); v.Exists() {
		out = append(out, attribute.Int64(LLMInvocationParameters+".max_completion_tokens", v.Int()))
	}

	root.Get("messages").ForEach(func(idx, msg gjson.Result) bool {
		m := flatMessage{role: msg.Get("role").String(), content: msg.Get("content").String()}
		out = append(out, messageAttributes(InputMessagesPrefix, int(idx.Int()), m)...)
		return true
	})

	return out
}

// OpenAIResponseAttrs builds the same output_messages/token_count
// attribute set as ResponseAttributesJSON, but for the OpenAI-shaped
// chat-completions response body the older shadow-proxy generation
// speaks (choices[0].message, prompt_tokens/completion_tokens, tool_calls
// with function.name/arguments already JSON-encoded strings). Kept
// distinct from the Anthropic builder because the two wire formats
// disagree on where the assistant turn and its token counts live, not
// just on field names.
func OpenAIResponseAttrs(raw []byte) []attribute.KeyValue {
	if !gjson.ValidBytes(raw) {
		return nil
	}

	root := gjson.ParseBytes(raw)
	choice := root.Get("choices.0.message")

	msg := flatMessage{
		role:    choice.Get("role").String(),
		content: choice.Get("content").String(),
	}

	choice.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		msg.toolCalls = append(msg.toolCalls, toolCall{
			name:      call.Get("function.name").String(),
			arguments: call.Get("function.arguments").String(),
		})
		return true
	})

	out := messageAttributes(OutputMessagesPrefix, 0, msg)

	if v := root.Get("usage.prompt_tokens"); v.Exists() {
		out = append(out, attribute.Int64(LLMTokenCountPrompt, v.Int()))
	}
	if v := root.Get("usage.completion_tokens"); v.Exists() {
		out = append(out, attribute.Int64(LLMTokenCountCompletion, v.Int()))
	}

	return out
}
