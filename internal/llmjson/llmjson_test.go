package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type turnShape struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

func TestUnmarshalBareObject(t *testing.T) {
	var turn turnShape
	err := Unmarshal(`{"kind": "question", "content": "備蓄品は？"}`, &turn)

	require.NoError(t, err)
	assert.Equal(t, "question", turn.Kind)
	assert.Equal(t, "備蓄品は？", turn.Content)
}

func TestUnmarshalStripsCodeFenceAndProse(t *testing.T) {
	response := "承知しました。以下が出力です。\n```json\n{\"kind\": \"proposal\", \"content\": \"改定案です\"}\n```\n以上です。"

	var turn turnShape
	err := Unmarshal(response, &turn)

	require.NoError(t, err)
	assert.Equal(t, "proposal", turn.Kind)
}

func TestUnmarshalRepairsTrailingComma(t *testing.T) {
	var turn turnShape
	err := Unmarshal(`{"kind": "question", "content": "避難経路は？",}`, &turn)

	require.NoError(t, err)
	assert.Equal(t, "question", turn.Kind)
}

func TestUnmarshalNoObjectIsParseError(t *testing.T) {
	var turn turnShape
	err := Unmarshal("ただのテキストです", &turn)

	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestUnmarshalEmptyInput(t *testing.T) {
	var turn turnShape
	err := Unmarshal("   ", &turn)

	require.Error(t, err)
}

func TestFirstObjectSpanIsGreedy(t *testing.T) {
	span, ok := firstObjectSpan(`prefix {"a": {"b": 1}} suffix {"c": 2} tail`)

	require.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}} suffix {"c": 2}`, span)
}
