package tap

import (
	"github.com/tidwall/gjson"

	"github.com/anthropics/cc-proxy/internal/sse"
	"github.com/anthropics/cc-proxy/internal/stats"
)

// extractStatsJSON mirrors attrs.ResponseAttributesJSON's parse but
// populates only the process counters, per the non-streaming half of
// spec §4.7.
func extractStatsJSON(st *stats.Stats, raw []byte) {
	if st == nil || !gjson.ValidBytes(raw) {
		return
	}

	root := gjson.ParseBytes(raw)
	st.AddInputTokens(root.Get("usage.input_tokens").Int())
	st.AddOutputTokens(root.Get("usage.output_tokens").Int())

	var toolUseCount int64
	root.Get("content").ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "tool_use" {
			toolUseCount++
		}
		return true
	})
	st.AddToolCalls(toolUseCount)
}

// extractStatsSSE scans a buffered event sequence once, adding
// input_tokens at most once regardless of how many events carry a value
// for it, output_tokens from message_delta, and one tool call per
// content_block_start of type tool_use.
func extractStatsSSE(st *stats.Stats, events []sse.Event) {
	if st == nil {
		return
	}

	var seenInputTokens bool

	for _, ev := range events {
		if !gjson.Valid(ev.Data) {
			continue
		}
		data := gjson.Parse(ev.Data)

		switch ev.Type {
		case "message_start":
			if !seenInputTokens {
				if v := data.Get("message.usage.input_tokens"); v.Exists() {
					st.AddInputTokens(v.Int())
					seenInputTokens = true
				}
			}
		case "content_block_start":
			if data.Get("content_block.type").String() == "tool_use" {
				st.AddToolCalls(1)
			}
		case "message_delta":
			if v := data.Get("usage.output_tokens"); v.Exists() {
				st.AddOutputTokens(v.Int())
			}
			if !seenInputTokens {
				if v := data.Get("usage.input_tokens"); v.Exists() {
					st.AddInputTokens(v.Int())
					seenInputTokens = true
				}
			}
		}
	}
}
