// Package rewrite patches the `model` and `max_tokens` fields of a request
// body in place, preserving the literal encoding of every other field.
package rewrite

import (
	"errors"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrInvalidJSON is returned when the body isn't a parseable JSON
// document; the rewrite is a no-op in that case.
var ErrInvalidJSON = errors.New("rewrite: body is not valid JSON")

// DefaultMaxTokens is used when the request omits max_tokens (or sets it
// to null) and the caller didn't configure a different default.
const DefaultMaxTokens uint64 = 65536

// sjsonOptions favors in-place byte replacement when the new value is the
// same length or shorter — this is the same option set the retrieved
// gateway translators use for this exact "patch one field, leave the
// encoding of the rest alone" operation.
var sjsonOptions = &sjson.Options{Optimistic: true, ReplaceInPlace: true}

// Body permissively rewrites raw, a JSON request body:
//   - if modelOverride is non-empty, the top-level "model" field is set
//     to it (inserted if absent);
//   - if "max_tokens" is absent or JSON null, it is set to defaultMaxTokens.
//
// Every other field passes through with its original JSON encoding
// untouched — Body never round-trips the document through a generic Go
// map, which would silently reorder keys and renormalize number literals
// on re-marshal.
//
// If raw fails to parse as a JSON object, Body returns it unchanged
// alongside a non-nil error; the caller is expected to log a warning and
// forward the original bytes.
func Body(raw []byte, modelOverride string, defaultMaxTokens uint64) ([]byte, error) {
	if !gjson.ValidBytes(raw) {
		return raw, ErrInvalidJSON
	}

	out := raw

	if modelOverride != "" {
		patched, err := sjson.SetBytesOptions(out, "model", modelOverride, sjsonOptions)
		if err != nil {
			return raw, err
		}
		out = patched
	}

	maxTokens := gjson.GetBytes(out, "max_tokens")
	if !maxTokens.Exists() || maxTokens.Type == gjson.Null {
		patched, err := sjson.SetBytesOptions(out, "max_tokens", defaultMaxTokens, sjsonOptions)
		if err != nil {
			return raw, err
		}
		out = patched
	}

	return out, nil
}
