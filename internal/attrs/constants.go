// Package attrs maps Anthropic-format request/response JSON (and its SSE
// event sequence) to OpenInference-style span attributes, without ever
// failing the request: malformed input, unknown block types, and
// non-UTF-8 bytes are tolerated by skipping the affected attribute.
package attrs

// Attribute key names, verbatim per spec §4.6. Grounded on the
// OpenInference attribute surface named in the retrieved
// xiaolin593-ai-gateway tracing/openinference package (SpanKind,
// LLMSystem, LLMModelName, InputValue, LLMInvocationParameters, ...).
const (
	SpanKind     = "openinference.span.kind"
	SpanKindLLM  = "LLM"
	LLMSystem    = "llm.system"
	LLMSystemVal = "anthropic"
	LLMModelName = "llm.model_name"

	InputValue              = "input.value"
	LLMInvocationParameters = "llm.invocation_parameters"
	LLMTools                = "llm.tools"

	InputMessagesPrefix  = "llm.input_messages"
	OutputMessagesPrefix = "llm.output_messages"

	MessageRole    = "message.role"
	MessageContent = "message.content"

	ToolCallFunctionName      = "tool_call.function.name"
	ToolCallFunctionArguments = "tool_call.function.arguments"

	OutputValue = "output.value"

	LLMTokenCountPrompt     = "llm.token_count.prompt"
	LLMTokenCountCompletion = "llm.token_count.completion"
)
