package docstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode_SortsKeysAndIndents(t *testing.T) {
	out, err := Encode([]byte(`{"b":1,"a":{"z":true,"y":[1,2]}}`))
	require.NoError(t, err)
	want := "{\n  \"a\": {\n    \"y\": [\n      1,\n      2\n    ],\n    \"z\": true\n  },\n  \"b\": 1\n}\n"
	require.Equal(t, want, string(out))
}

func TestEncode_KeepsNumbersAndUnicode(t *testing.T) {
	out, err := Encode([]byte(`{"price":172.50,"big":12345678901234567890,"name":"דנה <3"}`))
	require.NoError(t, err)
	require.Contains(t, string(out), `"price": 172.50`)
	require.Contains(t, string(out), `"big": 12345678901234567890`)
	require.Contains(t, string(out), `"name": "דנה <3"`)
}

func TestEncode_IsStable(t *testing.T) {
	first, err := Encode([]byte(`{"x":{"c":3,"a":1}}`))
	require.NoError(t, err)
	second, err := Encode(first)
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

func TestEncode_RejectsInvalid(t *testing.T) {
	for _, in := range []string{``, `{`, `{} {}`, `nope`} {
		_, err := Encode([]byte(in))
		require.ErrorIs(t, err, ErrInvalidContent, "input %q", in)
	}
}

func TestMarshal(t *testing.T) {
	out, err := Marshal(map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)
	require.Equal(t, "{\n  \"a\": 1,\n  \"b\": 2\n}\n", string(out))
}
