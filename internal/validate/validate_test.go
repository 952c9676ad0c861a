package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKnownBlockTypesProduceNoFindings(t *testing.T) {
	body := []byte(`{
		"model": "m", "max_tokens": 8,
		"messages": [{"role":"user","content":[
			{"type":"text","text":"hi"},
			{"type":"image","source":{}},
			{"type":"tool_use","id":"1","name":"bash","input":{}},
			{"type":"tool_result","tool_use_id":"1","content":"ok"}
		]}]
	}`)

	report := Validate(body)
	assert.True(t, report.TypedParseOK)
	assert.Empty(t, report.Findings)
	assert.Empty(t, report.UnknownBlockTypes)
	assert.Empty(t, report.MaxSeverity)
}

func TestValidateUnknownBlockTypesTolerated(t *testing.T) {
	body := []byte(`{
		"model": "m", "max_tokens": 8,
		"messages": [{"role":"assistant","content":[
			{"type":"thinking","thinking":"..."},
			{"type":"text","text":"A"},
			{"type":"server_tool_use","id":"x"}
		]}]
	}`)

	report := Validate(body)
	require.True(t, report.TypedParseOK)
	require.Len(t, report.Findings, 2)
	assert.Equal(t, []string{"thinking", "server_tool_use"}, report.UnknownBlockTypes)
	assert.Equal(t, SeverityMedium, report.MaxSeverity)

	for _, f := range report.Findings {
		assert.Equal(t, CategoryUnknownBlock, f.Category)
		assert.Equal(t, SeverityMedium, f.Severity)
		assert.Equal(t, "assistant", f.Role)
	}
}

func TestValidateDuplicateUnknownTypesAreDeduped(t *testing.T) {
	body := []byte(`{
		"model": "m", "max_tokens": 8,
		"messages": [{"role":"user","content":[
			{"type":"widget"},
			{"type":"widget"},
			{"type":"gadget"}
		]}]
	}`)

	report := Validate(body)
	assert.Len(t, report.Findings, 3)
	assert.Equal(t, []string{"widget", "gadget"}, report.UnknownBlockTypes)
}

func TestValidateTypedParseFailure(t *testing.T) {
	report := Validate([]byte(`{"model": 123}`))
	assert.False(t, report.TypedParseOK)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, CategoryTypedParseFailure, report.Findings[0].Category)
	assert.Equal(t, SeverityHigh, report.Findings[0].Severity)
	assert.Equal(t, SeverityHigh, report.MaxSeverity)
}

func TestAttributesOmitEmptyFields(t *testing.T) {
	report := Report{TypedParseOK: true}
	attrs := report.Attributes()
	// Only typed_parse_ok and finding_count should be present.
	assert.Len(t, attrs, 2)
}
