package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSortsKeys(t *testing.T) {
	out, err := Marshal(map[string]int{"b": 2, "a": 1, "c": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(out))
}

func TestDigestIsStable(t *testing.T) {
	v := map[string]any{"subject_id": "sub-1", "score": 80.5}

	first, err := Digest(v)
	require.NoError(t, err)
	second, err := Digest(v)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, first)
}

func TestDigestIgnoresKeyOrder(t *testing.T) {
	type ab struct {
		A string `json:"a"`
		B string `json:"b"`
	}
	type ba struct {
		B string `json:"b"`
		A string `json:"a"`
	}

	first, err := Digest(ab{A: "x", B: "y"})
	require.NoError(t, err)
	second, err := Digest(ba{B: "y", A: "x"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDigestDistinguishesValues(t *testing.T) {
	first, err := Digest(map[string]int{"score": 80})
	require.NoError(t, err)
	second, err := Digest(map[string]int{"score": 81})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestMarshalRejectsUnencodable(t *testing.T) {
	_, err := Marshal(func() {})
	assert.Error(t, err)
}
