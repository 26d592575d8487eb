package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalJSONKeepsHTMLCharacters(t *testing.T) {
	got, err := MarshalJSON(map[string]string{"item_name": "Tom & Jerry <M>"})
	require.NoError(t, err)
	assert.Equal(t, `{"item_name":"Tom & Jerry <M>"}`, string(got))
}

func TestMarshalJSONKeepsLineSeparators(t *testing.T) {
	got, err := MarshalJSON([]string{"a\u2028b\u2029c", `x\u2028`})
	require.NoError(t, err)
	assert.Equal(t, "[\"a\u2028b\u2029c\",\"x\\\\u2028\"]", string(got))
}
