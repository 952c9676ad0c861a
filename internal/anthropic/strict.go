// Package anthropic holds the closed-world request shape used only by
// the typed validator (C5). The rest of the proxy deliberately avoids
// decoding the client body into Go structs — gjson/sjson views (see
// internal/rewrite, internal/attrs) keep byte-for-byte fidelity, while
// this package exists purely to detect protocol drift.
package anthropic

import "encoding/json"

// Known content-block type tags. Any tag outside this set is absorbed
// into the Other sentinel by ContentBlock.UnmarshalJSON.
const (
	BlockText       = "text"
	BlockImage      = "image"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// StrictRequest is the closed-world request shape: known top-level
// fields and known content-block tags. Message roles are not checked —
// any string is accepted. Parsing it is the validator's layer-1 check —
// any field shape this struct can't accept produces a typed_parse_failure
// finding.
type StrictRequest struct {
	Model         string         `json:"model"`
	MaxTokens     uint64         `json:"max_tokens"`
	Stream        bool           `json:"stream"`
	Messages      []Message      `json:"messages"`
	System        *SystemPrompt  `json:"system,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	TopP          *float64       `json:"top_p,omitempty"`
	TopK          *int           `json:"top_k,omitempty"`
	StopSequences []string       `json:"stop_sequences,omitempty"`
	Tools         []Tool         `json:"tools,omitempty"`
	ToolChoice    json.RawMessage `json:"tool_choice,omitempty"`
}

// Message is one turn in the conversation. Content is either a plain
// string or an ordered sequence of content blocks.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// Content models the string-or-blocks union that both `messages[].content`
// and `system` allow.
type Content struct {
	Text   string
	Blocks []ContentBlock
}

// UnmarshalJSON accepts either a JSON string or a JSON array of content
// blocks, matching the Anthropic wire contract.
func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		return nil
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	c.Blocks = blocks
	return nil
}

// SystemPrompt models the `system` field: a string or an ordered sequence
// of {type:text, text} blocks, joined with newlines by the caller.
type SystemPrompt struct {
	Text  string
	Parts []SystemPart
}

// SystemPart is one block of a multi-part system prompt.
type SystemPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// UnmarshalJSON accepts either a JSON string or an array of {type:text}
// blocks.
func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s.Text = str
		return nil
	}

	var parts []SystemPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	s.Parts = parts
	return nil
}

// Tool is one entry in the `tools` array.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ContentBlock is the closed-world content-block union. Exactly one of
// Text/Image/ToolUse/ToolResult is set when the block's "type" tag
// matches a known value; Other is set (with the literal tag name
// recoverable only via a second, permissive parse) for anything else.
// This mirrors the enum-plus-catch-all pattern used for Anthropic content
// blocks across the retrieved gateway examples, adapted to Go's lack of a
// native serde-`other` equivalent: we decode into a type-only wrapper
// first, then dispatch on the known tag set.
type ContentBlock struct {
	Type       string
	Text       *TextBlock
	Image      *ImageBlock
	ToolUse    *ToolUseBlock
	ToolResult *ToolResultBlock
	Other      bool
}

// TextBlock is a `{type:"text", text:"..."}` content block.
type TextBlock struct {
	Text string `json:"text"`
}

// ImageBlock is a `{type:"image", source:{...}}` content block. The
// source shape isn't interpreted by the proxy — it only needs to round
// trip, which the permissive (non-strict) path guarantees.
type ImageBlock struct {
	Source json.RawMessage `json:"source"`
}

// ToolUseBlock is a `{type:"tool_use", id, name, input}` content block.
type ToolUseBlock struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResultBlock is a `{type:"tool_result", tool_use_id, content}`
// content block. Content may be a string or a nested block array on the
// wire; the validator only needs to know it parsed, so it's left raw.
type ToolResultBlock struct {
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
}

// UnmarshalJSON dispatches on the "type" tag, decoding into the matching
// known variant or setting Other for anything unrecognised.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var tagged struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	b.Type = tagged.Type

	switch tagged.Type {
	case BlockText:
		var t TextBlock
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		b.Text = &t
	case BlockImage:
		var img ImageBlock
		if err := json.Unmarshal(data, &img); err != nil {
			return err
		}
		b.Image = &img
	case BlockToolUse:
		var tu ToolUseBlock
		if err := json.Unmarshal(data, &tu); err != nil {
			return err
		}
		b.ToolUse = &tu
	case BlockToolResult:
		var tr ToolResultBlock
		if err := json.Unmarshal(data, &tr); err != nil {
			return err
		}
		b.ToolResult = &tr
	default:
		b.Other = true
	}
	return nil
}
