package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/anthropics/cc-proxy/internal/sse"
)

func findAttr(t *testing.T, attrs []attribute.KeyValue, key string) attribute.Value {
	t.Helper()
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value
		}
	}
	require.Failf(t, "attribute not found", "key %q", key)
	return attribute.Value{}
}

func hasAttr(attrs []attribute.KeyValue, key string) bool {
	for _, a := range attrs {
		if string(a.Key) == key {
			return true
		}
	}
	return false
}

func TestRequestAttributesBasic(t *testing.T) {
	body := []byte(`{
		"model": "claude-3-opus",
		"max_tokens": 512,
		"temperature": 0.5,
		"system": "be terse",
		"messages": [{"role": "user", "content": "hi there"}],
		"tools": [{"name": "bash", "input_schema": {"type": "object"}}]
	}`)

	attrs := RequestAttributes(body)

	assert.Equal(t, "LLM", findAttr(t, attrs, SpanKind).AsString())
	assert.Equal(t, "anthropic", findAttr(t, attrs, LLMSystem).AsString())
	assert.Equal(t, "claude-3-opus", findAttr(t, attrs, LLMModelName).AsString())
	assert.Contains(t, findAttr(t, attrs, LLMInvocationParameters).AsString(), "max_tokens")

	// system prompt occupies index 0, shifting the request's own message to 1.
	assert.Equal(t, "system", findAttr(t, attrs, "llm.input_messages.0.message.role").AsString())
	assert.Equal(t, "be terse", findAttr(t, attrs, "llm.input_messages.0.message.content").AsString())
	assert.Equal(t, "user", findAttr(t, attrs, "llm.input_messages.1.message.role").AsString())
	assert.Equal(t, "hi there", findAttr(t, attrs, "llm.input_messages.1.message.content").AsString())

	assert.True(t, hasAttr(attrs, "llm.tools.0.tool.json_schema"))
}

func TestRequestAttributesMalformedBodyDegradesGracefully(t *testing.T) {
	attrs := RequestAttributes([]byte(`not json`))
	assert.Equal(t, "LLM", findAttr(t, attrs, SpanKind).AsString())
	assert.False(t, hasAttr(attrs, LLMModelName))
}

func TestResponseAttributesJSONToolUse(t *testing.T) {
	body := []byte(`{
		"role": "assistant",
		"content": [
			{"type": "text", "text": "running it"},
			{"type": "tool_use", "id": "t1", "name": "bash", "input": {"cmd": "ls"}}
		],
		"usage": {"input_tokens": 50, "output_tokens": 20}
	}`)

	attrs := ResponseAttributesJSON(body)

	assert.Equal(t, "assistant", findAttr(t, attrs, "llm.output_messages.0.message.role").AsString())
	assert.Equal(t, "running it", findAttr(t, attrs, "llm.output_messages.0.message.content").AsString())
	assert.Equal(t, "bash", findAttr(t, attrs, "llm.output_messages.0.tool_calls.0.tool_call.function.name").AsString())
	assert.JSONEq(t, `{"cmd":"ls"}`, findAttr(t, attrs, "llm.output_messages.0.tool_calls.0.tool_call.function.arguments").AsString())
	assert.Equal(t, int64(50), findAttr(t, attrs, LLMTokenCountPrompt).AsInt64())
	assert.Equal(t, int64(20), findAttr(t, attrs, LLMTokenCountCompletion).AsInt64())
}

// TestResponseAttributesSSEStreamingToolUse covers scenario 2: a
// message_start declaring usage.input_tokens=50, a tool_use block built
// from two input_json_delta chunks, and a message_delta declaring
// usage.output_tokens=20.
func TestResponseAttributesSSEStreamingToolUse(t *testing.T) {
	raw := "" +
		"event: message_start\ndata: {\"message\":{\"role\":\"assistant\",\"usage\":{\"input_tokens\":50}}}\n\n" +
		"event: content_block_start\ndata: {\"index\":0,\"content_block\":{\"type\":\"tool_use\",\"id\":\"t1\",\"name\":\"bash\",\"input\":{}}}\n\n" +
		"event: content_block_delta\ndata: {\"index\":0,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"{\\\"cmd\\\": \"}}\n\n" +
		"event: content_block_delta\ndata: {\"index\":0,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"\\\"ls\\\"}\"}}\n\n" +
		"event: content_block_stop\ndata: {\"index\":0}\n\n" +
		"event: message_delta\ndata: {\"delta\":{\"stop_reason\":\"tool_use\"},\"usage\":{\"output_tokens\":20}}\n\n" +
		"event: message_stop\ndata: {}\n\n"

	events := sse.Parse([]byte(raw))
	attrs := ResponseAttributesSSE(events)

	assert.Equal(t, "assistant", findAttr(t, attrs, "llm.output_messages.0.message.role").AsString())
	assert.Equal(t, "bash", findAttr(t, attrs, "llm.output_messages.0.tool_calls.0.tool_call.function.name").AsString())
	assert.Equal(t, `{"cmd": "ls"}`, findAttr(t, attrs, "llm.output_messages.0.tool_calls.0.tool_call.function.arguments").AsString())
	assert.Equal(t, int64(50), findAttr(t, attrs, LLMTokenCountPrompt).AsInt64())
	assert.Equal(t, int64(20), findAttr(t, attrs, LLMTokenCountCompletion).AsInt64())
}

// TestResponseAttributesJSONMultipleTextBlocksJoinEmpty covers a
// text -> tool_use -> text response: the two text blocks must be
// concatenated with no separator, matching the original's
// text_parts.join("").
func TestResponseAttributesJSONMultipleTextBlocksJoinEmpty(t *testing.T) {
	body := []byte(`{
		"role": "assistant",
		"content": [
			{"type": "text", "text": "a"},
			{"type": "tool_use", "id": "t1", "name": "bash", "input": {}},
			{"type": "text", "text": "b"}
		],
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`)

	attrs := ResponseAttributesJSON(body)
	assert.Equal(t, "ab", findAttr(t, attrs, "llm.output_messages.0.message.content").AsString())
}

// TestResponseAttributesSSEOutputTokensLastWins covers an upstream that
// reports a cumulative output_tokens across multiple message_delta
// events: the final value must win, not the first.
func TestResponseAttributesSSEOutputTokensLastWins(t *testing.T) {
	raw := "" +
		"event: message_start\ndata: {\"message\":{\"role\":\"assistant\",\"usage\":{\"input_tokens\":5}}}\n\n" +
		"event: message_delta\ndata: {\"usage\":{\"output_tokens\":10}}\n\n" +
		"event: message_delta\ndata: {\"usage\":{\"output_tokens\":25}}\n\n"

	events := sse.Parse([]byte(raw))
	attrs := ResponseAttributesSSE(events)

	assert.Equal(t, int64(25), findAttr(t, attrs, LLMTokenCountCompletion).AsInt64())
}

// TestResponseAttributesSSEInputTokensFallback covers the message_start/
// message_delta input_tokens fallback spec §4.6 requires: when
// message_start omits usage.input_tokens, the value reported later by
// message_delta must still be attributed exactly once.
func TestResponseAttributesSSEInputTokensFallback(t *testing.T) {
	raw := "" +
		"event: message_start\ndata: {\"message\":{\"role\":\"assistant\"}}\n\n" +
		"event: content_block_start\ndata: {\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}\n\n" +
		"event: content_block_delta\ndata: {\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"hi\"}}\n\n" +
		"event: message_delta\ndata: {\"delta\":{},\"usage\":{\"input_tokens\":7,\"output_tokens\":3}}\n\n" +
		"event: message_stop\ndata: {}\n\n"

	events := sse.Parse([]byte(raw))
	attrs := ResponseAttributesSSE(events)

	assert.Equal(t, int64(7), findAttr(t, attrs, LLMTokenCountPrompt).AsInt64())
	assert.Equal(t, int64(3), findAttr(t, attrs, LLMTokenCountCompletion).AsInt64())
}

// TestRequestAttributesToleratesUnknownContentBlock covers scenario 3:
// an unrecognised block type among known ones must not prevent the
// known blocks from producing attributes.
func TestRequestAttributesToleratesUnknownContentBlock(t *testing.T) {
	body := []byte(`{
		"model": "claude-3-opus",
		"max_tokens": 16,
		"messages": [{"role": "assistant", "content": [
			{"type": "thinking", "thinking": "..."},
			{"type": "text", "text": "final answer"},
			{"type": "server_tool_use", "id": "x"}
		]}]
	}`)

	attrs := RequestAttributes(body)
	assert.Equal(t, "final answer", findAttr(t, attrs, "llm.input_messages.0.message.content").AsString())
}

func TestOpenAIRequestAttrsVariant(t *testing.T) {
	body := []byte(`{
		"model": "gpt-4o",
		"max_completion_tokens": 512,
		"messages": [
			{"role": "user", "content": "ping"}
		]
	}`)

	attrs := OpenAIRequestAttrs(body)

	assert.Equal(t, SpanKindLLM, findAttr(t, attrs, SpanKind).AsString())
	assert.Equal(t, "gpt-4o", findAttr(t, attrs, LLMModelName).AsString())
	assert.Equal(t, int64(512), findAttr(t, attrs, LLMInvocationParameters+".max_completion_tokens").AsInt64())
	assert.Equal(t, "user", findAttr(t, attrs, "llm.input_messages.0.message.role").AsString())
	assert.Equal(t, "ping", findAttr(t, attrs, "llm.input_messages.0.message.content").AsString())
}

func TestOpenAIRequestAttrsMalformedBodyDegradesGracefully(t *testing.T) {
	attrs := OpenAIRequestAttrs([]byte("not json"))
	assert.Equal(t, SpanKindLLM, findAttr(t, attrs, SpanKind).AsString())
}

func TestOpenAIResponseAttrsVariant(t *testing.T) {
	body := []byte(`{
		"choices": [{"message": {
			"role": "assistant",
			"content": "done",
			"tool_calls": [{"function": {"name": "bash", "arguments": "{\"cmd\":\"ls\"}"}}]
		}}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 4}
	}`)

	attrs := OpenAIResponseAttrs(body)

	assert.Equal(t, "assistant", findAttr(t, attrs, "llm.output_messages.0.message.role").AsString())
	assert.Equal(t, "bash", findAttr(t, attrs, "llm.output_messages.0.tool_calls.0.tool_call.function.name").AsString())
	assert.Equal(t, int64(12), findAttr(t, attrs, LLMTokenCountPrompt).AsInt64())
	assert.Equal(t, int64(4), findAttr(t, attrs, LLMTokenCountCompletion).AsInt64())
}
