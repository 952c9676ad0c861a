package rewrite

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestBodySetsModelOverride(t *testing.T) {
	in := []byte(`{"model":"orig","extra":{"a":1},"messages":[{"role":"user","content":"hi"}]}`)

	out, err := Body(in, "override-x", DefaultMaxTokens)
	require.NoError(t, err)

	assert.Equal(t, "override-x", gjson.GetBytes(out, "model").String())
	assert.EqualValues(t, DefaultMaxTokens, gjson.GetBytes(out, "max_tokens").Uint())
	assert.Equal(t, float64(1), gjson.GetBytes(out, "extra.a").Float())
}

func TestBodyInsertsMissingMaxTokens(t *testing.T) {
	in := []byte(`{"model":"m","messages":[]}`)

	out, err := Body(in, "", 4096)
	require.NoError(t, err)
	assert.EqualValues(t, 4096, gjson.GetBytes(out, "max_tokens").Uint())
}

func TestBodyReplacesNullMaxTokens(t *testing.T) {
	in := []byte(`{"model":"m","max_tokens":null,"messages":[]}`)

	out, err := Body(in, "", 4096)
	require.NoError(t, err)
	assert.EqualValues(t, 4096, gjson.GetBytes(out, "max_tokens").Uint())
}

func TestBodyLeavesExplicitMaxTokensAlone(t *testing.T) {
	in := []byte(`{"model":"m","max_tokens":8,"messages":[]}`)

	out, err := Body(in, "", 4096)
	require.NoError(t, err)
	assert.EqualValues(t, 8, gjson.GetBytes(out, "max_tokens").Uint())
}

func TestBodyNoOverrideLeavesModelAlone(t *testing.T) {
	in := []byte(`{"model":"orig","max_tokens":8}`)

	out, err := Body(in, "", 4096)
	require.NoError(t, err)
	assert.Equal(t, "orig", gjson.GetBytes(out, "model").String())
}

func TestBodyInvalidJSONPassesThrough(t *testing.T) {
	in := []byte(`not json`)

	out, err := Body(in, "x", 4096)
	require.Error(t, err)
	assert.Equal(t, in, out)
}

// TestBodyPreservesUntouchedFields is a property-style test over random
// JSON objects: every field other than model/max_tokens must survive
// rewrite with its original JSON encoding, per the §3 invariant.
func TestBodyPreservesUntouchedFields(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		obj := randomObject(rng, 4)
		obj["model"] = "orig"
		obj["max_tokens"] = 8
		raw, err := json.Marshal(obj)
		require.NoError(t, err)

		out, err := Body(raw, "override", 4096)
		require.NoError(t, err)

		for k, v := range obj {
			if k == "model" || k == "max_tokens" {
				continue
			}
			wantRaw, err := json.Marshal(v)
			require.NoError(t, err)

			var want, got any
			require.NoError(t, json.Unmarshal(wantRaw, &want))
			require.NoError(t, json.Unmarshal([]byte(gjson.GetBytes(out, gjson.Escape(k)).Raw), &got))
			assert.Equal(t, want, got, "field %q changed", k)
			assert.Equal(t, string(wantRaw), gjson.GetBytes(out, gjson.Escape(k)).Raw, "field %q encoding changed", k)
		}
	}
}

// TestBodyRewriteIsIdempotentUnderNilOverride verifies: parse of a
// rewritten body, then rewrite again with no override, equals the first
// rewrite (the None-override round trip from §8).
func TestBodyRewriteIsIdempotentUnderNilOverride(t *testing.T) {
	in := []byte(`{"model":"orig","extra":"keep-me","messages":[1,2,3]}`)

	first, err := Body(in, "override-x", 4096)
	require.NoError(t, err)

	second, err := Body(first, "", 4096)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
}

func randomObject(rng *rand.Rand, depth int) map[string]any {
	obj := map[string]any{}
	n := 1 + rng.Intn(4)
	for i := 0; i < n; i++ {
		key := randomKey(rng)
		obj[key] = randomValue(rng, depth)
	}
	return obj
}

func randomKey(rng *rand.Rand) string {
	letters := "abcdefghij"
	b := make([]byte, 1+rng.Intn(6))
	for i := range b {
		b[i] = letters[rng.Intn(len(letters))]
	}
	return string(b)
}

func randomValue(rng *rand.Rand, depth int) any {
	if depth <= 0 {
		return rng.Intn(1000)
	}
	switch rng.Intn(5) {
	case 0:
		return rng.Intn(1000)
	case 1:
		return rng.Float64()
	case 2:
		return "val-" + randomKey(rng)
	case 3:
		arr := make([]any, rng.Intn(3))
		for i := range arr {
			arr[i] = randomValue(rng, depth-1)
		}
		return arr
	default:
		return randomObject(rng, depth-1)
	}
}
