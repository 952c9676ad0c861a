// Package validate implements the typed-validation sidecar (C5): a strict
// parse attempted purely to detect protocol drift. Its findings are
// telemetry, never request errors.
package validate

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/anthropics/cc-proxy/internal/anthropic"
)

// Severity levels, ordered low to high for MaxSeverity comparison.
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Finding categories.
const (
	CategoryTypedParseFailure = "typed_parse_failure"
	CategoryUnknownBlock      = "unknown_content_block"
)

// Finding is one entry in a Report's Findings list.
type Finding struct {
	Severity     string `json:"severity"`
	Category     string `json:"category"`
	Message      string `json:"message"`
	BlockType    string `json:"block_type,omitempty"`
	MessageIndex *int   `json:"message_index,omitempty"`
	Role         string `json:"role,omitempty"`
}

// Report is the typed validator's output, emitted onto the request's
// root span as attributes by the caller.
type Report struct {
	TypedParseOK      bool
	Findings          []Finding
	UnknownBlockTypes []string
	MaxSeverity       string // "" if there are no findings
}

// Validate runs the two-layer detector described in spec §4.5 over a
// request body.
//
// Layer 1: a strict, closed-world parse. A failure produces a single
// high-severity typed_parse_failure finding and Validate returns early —
// there's nothing more a positional cross-reference could recover once
// the body doesn't even match the envelope shape.
//
// Layer 2: for every content block whose tag fell into the strict
// parse's Other sentinel, recover the literal tag string by looking up
// the same (message index, block index) position in a permissive gjson
// view of the original bytes, and emit one medium-severity finding per
// occurrence plus a deduplicated list of the unknown type names.
func Validate(raw []byte) Report {
	var strict anthropic.StrictRequest
	if err := json.Unmarshal(raw, &strict); err != nil {
		return Report{
			TypedParseOK: false,
			MaxSeverity:  SeverityHigh,
			Findings: []Finding{{
				Severity: SeverityHigh,
				Category: CategoryTypedParseFailure,
				Message:  err.Error(),
			}},
		}
	}

	report := Report{TypedParseOK: true}
	seen := map[string]bool{}

	for msgIdx, msg := range strict.Messages {
		for blockIdx, block := range msg.Content.Blocks {
			if !block.Other {
				continue
			}

			literal := recoverBlockType(raw, msgIdx, blockIdx)
			idx := msgIdx
			report.Findings = append(report.Findings, Finding{
				Severity:     SeverityMedium,
				Category:     CategoryUnknownBlock,
				Message:      fmt.Sprintf("unrecognised content block type %q at message %d block %d", literal, msgIdx, blockIdx),
				BlockType:    literal,
				MessageIndex: &idx,
				Role:         msg.Role,
			})

			if !seen[literal] {
				seen[literal] = true
				report.UnknownBlockTypes = append(report.UnknownBlockTypes, literal)
			}
		}
	}

	if len(report.Findings) > 0 {
		report.MaxSeverity = SeverityMedium
	}

	return report
}

// recoverBlockType recovers the literal "type" string for a content
// block the strict parse absorbed into its Other sentinel, by looking up
// the same position in a permissive gjson view of the original bytes.
func recoverBlockType(raw []byte, msgIdx, blockIdx int) string {
	path := fmt.Sprintf("messages.%d.content.%d.type", msgIdx, blockIdx)
	result := gjson.GetBytes(raw, path)
	if !result.Exists() {
		return "unknown"
	}
	return result.String()
}
