package agentic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuri-sun/bous-ai/internal/domain"
)

type fakeTextGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeTextGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestProduceTurnParsesQuestion(t *testing.T) {
	gen := &fakeTextGenerator{response: `{"kind": "question", "content": "避難経路はどこですか？"}`}
	turns := NewTurnGenerator(gen)

	turn := turns.ProduceTurn(context.Background(), domain.TurnContext{}, nil)

	assert.Equal(t, domain.TurnKindQuestion, turn.Kind)
	assert.Equal(t, "避難経路はどこですか？", turn.Content)
}

func TestProduceTurnParsesProposalWithHistory(t *testing.T) {
	gen := &fakeTextGenerator{response: `{"kind": "proposal", "content": "非常用照明を各階に追加してください。"}`}
	turns := NewTurnGenerator(gen)

	history := []domain.Message{
		{Role: domain.RoleAssistant, Content: "備蓄品は何がありますか？"},
		{Role: domain.RoleUser, Content: "水と乾パンです。"},
	}
	turn := turns.ProduceTurn(context.Background(), domain.TurnContext{}, history)

	assert.Equal(t, domain.TurnKindProposal, turn.Kind)
	assert.Equal(t, "非常用照明を各階に追加してください。", turn.Content)
}

func TestProduceTurnFallsBackOnBackendError(t *testing.T) {
	gen := &fakeTextGenerator{err: errors.New("backend down")}
	turns := NewTurnGenerator(gen)

	turn := turns.ProduceTurn(context.Background(), domain.TurnContext{}, nil)

	assert.Equal(t, domain.TurnKindQuestion, turn.Kind)
	assert.Equal(t, fallbackQuestion, turn.Content)
}

func TestProduceTurnFallsBackOnGarbage(t *testing.T) {
	for _, response := range []string{
		"これはJSONではありません",
		`{"kind": "essay", "content": "長文"}`,
		`{"kind": "question", "content": "   "}`,
	} {
		gen := &fakeTextGenerator{response: response}
		turns := NewTurnGenerator(gen)

		turn := turns.ProduceTurn(context.Background(), domain.TurnContext{}, nil)

		assert.Equal(t, fallbackQuestion, turn.Content, "response %q", response)
	}
}

func TestProduceTurnRecoversWrappedJSON(t *testing.T) {
	gen := &fakeTextGenerator{response: "```json\n{\"kind\": \"question\", \"content\": \"連絡先を教えてください。\"}\n```"}
	turns := NewTurnGenerator(gen)

	turn := turns.ProduceTurn(context.Background(), domain.TurnContext{}, nil)

	assert.Equal(t, domain.TurnKindQuestion, turn.Kind)
	assert.Equal(t, "連絡先を教えてください。", turn.Content)
}

func TestProduceTurnOverridesProposalOnEmptyHistory(t *testing.T) {
	gen := &fakeTextGenerator{response: `{"kind": "proposal", "content": "いきなり提案します。"}`}
	turns := NewTurnGenerator(gen)

	turn := turns.ProduceTurn(context.Background(), domain.TurnContext{}, nil)

	assert.Equal(t, domain.TurnKindQuestion, turn.Kind)
	assert.Equal(t, fallbackQuestion, turn.Content)
}

func TestProduceTurnPromptIncludesContextAndHistory(t *testing.T) {
	gen := &fakeTextGenerator{response: `{"kind": "question", "content": "OK?"}`}
	turns := NewTurnGenerator(gen)

	tc := domain.TurnContext{
		Place:               &domain.Place{City: "渋谷区", Prefecture: "東京都"},
		SearchReferenceText: "公式マニュアルの参照テキスト",
	}
	history := []domain.Message{{Role: domain.RoleUser, Content: "回答です"}}
	turns.ProduceTurn(context.Background(), tc, history)

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "INPUT(JSON):")
	assert.Contains(t, prompt, "渋谷区")
	assert.Contains(t, prompt, "公式マニュアルの参照テキスト")
	assert.Contains(t, prompt, "回答です")
}
