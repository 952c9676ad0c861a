package validate

import (
	"encoding/json"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute key names, verbatim per spec §4.5.
const (
	AttrTypedParseOK        = "shadow.validation.typed_parse_ok"
	AttrFindingCount        = "shadow.validation.finding_count"
	AttrUnknownBlockTypes   = "shadow.validation.unknown_block_types"
	AttrMaxSeverity         = "shadow.validation.max_severity"
	AttrFindingsJSON        = "shadow.validation.findings_json"
)

// Attributes converts the report into the span attributes described in
// spec §4.5. unknown_block_types and max_severity are omitted when there
// is nothing to report, matching the spec's "omitted if empty"/"omitted
// if no findings" wording.
func (r Report) Attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Bool(AttrTypedParseOK, r.TypedParseOK),
		attribute.Int(AttrFindingCount, len(r.Findings)),
	}

	if len(r.UnknownBlockTypes) > 0 {
		attrs = append(attrs, attribute.String(AttrUnknownBlockTypes, strings.Join(r.UnknownBlockTypes, ",")))
	}

	if r.MaxSeverity != "" {
		attrs = append(attrs, attribute.String(AttrMaxSeverity, r.MaxSeverity))
	}

	if len(r.Findings) > 0 {
		if encoded, err := json.Marshal(r.Findings); err == nil {
			attrs = append(attrs, attribute.String(AttrFindingsJSON, string(encoded)))
		}
	}

	return attrs
}

// Log emits one log event per finding: warn for high severity, info for
// medium, matching spec §4.5.
func (r Report) Log(logger *slog.Logger, correlationID string) {
	for _, f := range r.Findings {
		args := []any{"correlation_id", correlationID, "category", f.Category, "message", f.Message}
		if f.BlockType != "" {
			args = append(args, "block_type", f.BlockType)
		}
		if f.MessageIndex != nil {
			args = append(args, "message_index", *f.MessageIndex)
		}
		if f.Role != "" {
			args = append(args, "role", f.Role)
		}

		if f.Severity == SeverityHigh {
			logger.Warn("validation finding", args...)
		} else {
			logger.Info("validation finding", args...)
		}
	}
}
