package attrs

import (
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"

	"github.com/anthropics/cc-proxy/internal/sse"
)

// ResponseAttributesJSON builds response attributes for a non-streaming
// /v1/messages response body.
func ResponseAttributesJSON(raw []byte) []attribute.KeyValue {
	var out []attribute.KeyValue

	if utf8.Valid(raw) {
		out = append(out, attribute.String(OutputValue, string(raw)))
	}

	if !gjson.ValidBytes(raw) {
		return out
	}

	root := gjson.ParseBytes(raw)
	msg := flattenResponseContent(root.Get("role").String(), root.Get("content"))
	out = append(out, messageAttributes(OutputMessagesPrefix, 0, msg)...)

	if v := root.Get("usage.input_tokens"); v.Exists() {
		out = append(out, attribute.Int64(LLMTokenCountPrompt, v.Int()))
	}
	if v := root.Get("usage.output_tokens"); v.Exists() {
		out = append(out, attribute.Int64(LLMTokenCountCompletion, v.Int()))
	}

	return out
}

// flattenResponseContent mirrors flattenContentMessage for a response's
// top-level content array, which shares the same block shapes
// (text/tool_use) as a request message's content.
func flattenResponseContent(role string, content gjson.Result) flatMessage {
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
		default:
			// Unknown block type: tolerated, silently skipped.
		}
		return true
	})

	return flatMessage{role: role, content: strings.Join(textParts, ""), toolCalls: calls}
}

// accumulatedBlock is one content block reconstructed from a
// content_block_start event plus its subsequent deltas.
type accumulatedBlock struct {
	blockType string
	text      string
	toolName  string
	toolInput string
}

// ResponseAttributesSSE reconstructs a streaming response from its raw
// SSE event sequence and builds the same response attribute set a
// non-streaming call would produce, per spec §4.6's streaming
// reconstruction rules: the role comes from message_start, content
// blocks are accumulated by index across content_block_start/delta/stop.
// input_tokens takes the first value seen across message_start/
// message_delta (preventing double-counting); output_tokens is set by
// every message_delta that carries it, so the last one wins, matching
// upstreams that report a cumulative total across deltas.
func ResponseAttributesSSE(events []sse.Event) []attribute.KeyValue {
	var role string
	blocks := map[int64]*accumulatedBlock{}
	var order []int64

	var inputTokens, outputTokens int64
	var haveInputTokens, haveOutputTokens bool

	for _, ev := range events {
		if !gjson.Valid(ev.Data) {
			continue
		}
		data := gjson.Parse(ev.Data)

		switch ev.Type {
		case "message_start":
			role = data.Get("message.role").String()
			if v := data.Get("message.usage.input_tokens"); v.Exists() && !haveInputTokens {
				inputTokens = v.Int()
				haveInputTokens = true
			}

		case "content_block_start":
			idx := data.Get("index").Int()
			block := data.Get("content_block")
			acc := &accumulatedBlock{blockType: block.Get("type").String()}
			if acc.blockType == "text" {
				acc.text = block.Get("text").String()
			}
			if acc.blockType == "tool_use" {
				acc.toolName = block.Get("name").String()
			}
			blocks[idx] = acc
			order = append(order, idx)

		case "content_block_delta":
			idx := data.Get("index").Int()
			acc, ok := blocks[idx]
			if !ok {
				continue
			}
			delta := data.Get("delta")
			switch delta.Get("type").String() {
			case "text_delta":
				acc.text += delta.Get("text").String()
			case "input_json_delta":
				acc.toolInput += delta.Get("partial_json").String()
			}

		case "message_delta":
			if v := data.Get("usage.output_tokens"); v.Exists() {
				outputTokens = v.Int()
				haveOutputTokens = true
			}
			if v := data.Get("usage.input_tokens"); v.Exists() && !haveInputTokens {
				inputTokens = v.Int()
				haveInputTokens = true
			}
		}
	}

	msg := flatMessage{role: role}
	var textParts []string
	for _, idx := range order {
		acc := blocks[idx]
		switch acc.blockType {
		case "text":
			textParts = append(textParts, acc.text)
		case "tool_use":
			msg.toolCalls = append(msg.toolCalls, toolCall{name: acc.toolName, arguments: acc.toolInput})
		}
	}
	msg.content = strings.Join(textParts, "")

	out := messageAttributes(OutputMessagesPrefix, 0, msg)

	if haveInputTokens {
		out = append(out, attribute.Int64(LLMTokenCountPrompt, inputTokens))
	}
	if haveOutputTokens {
		out = append(out, attribute.Int64(LLMTokenCountCompletion, outputTokens))
	}

	return out
}
