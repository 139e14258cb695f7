package agentic

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/kuri-sun/bous-ai/internal/domain"
	"github.com/kuri-sun/bous-ai/internal/llm"
	"github.com/kuri-sun/bous-ai/internal/llmjson"
)

// fallbackQuestion keeps the conversation able to advance whenever the
// backend fails or returns something unusable.
const fallbackQuestion = "防災マニュアルを改善するために、補足したい情報があれば教えてください。"

const turnInstructions = "あなたはマンション用の防災マニュアルの改定を支援する対話型エージェントです。" +
	"次のルールを厳守してください:" +
	"1) 返答は1ターンのみで、質問か提案のどちらか一方。" +
	"2) 会話開始時（履歴が空）は必ず質問で始める。" +
	"   質問は具体的な不足情報を1〜3問だけ列挙する。" +
	"3) 質問は広い問いではなく、避難経路の地名/ルート、連絡先の番号と役割、" +
	"   備蓄品の種類と数量、要支援者サポート体制などの具体情報を尋ねる。" +
	"4) ユーザーの直近の回答が曖昧・不足している場合は、追加の質問。" +
	"   質問は1ターンに1〜3問まで列挙してよい。" +
	"5) 情報が十分に揃ったと判断できるときだけ、具体的な改定提案を1つ提示。" +
	"6) 提案は2〜4文の短い段落で、箇条書きは使わない。" +
	"7) 余計な説明やメタ情報は不要。" +
	"8) 以下のテキストを参考に、足りない箇所や改善が必要な箇所にフォーカスすること:" +
	"   context.search_reference_text は公式マニュアルPDFのテキスト。" +
	"   context.generated_plain_text は現在の生成マニュアルの本文。" +
	"出力は必ずJSONのみで次の形式にしてください:\n" +
	`{"kind": "question" | "proposal", "content": "..."}` + "\n"

// TurnGenerator produces the next conversation turn. It never fails
// outwardly: any backend error or malformed output becomes the fallback
// question, since the conversation must always be able to advance.
type TurnGenerator struct {
	gen llm.TextGenerator
}

// NewTurnGenerator creates a TurnGenerator on the given text backend.
func NewTurnGenerator(gen llm.TextGenerator) *TurnGenerator {
	return &TurnGenerator{gen: gen}
}

type turnPayload struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// ProduceTurn builds the instruction+context prompt, invokes the backend
// once, and validates its structured output. With an empty history the
// result is forced to be a question even if the model disobeys the prompt.
func (t *TurnGenerator) ProduceTurn(ctx context.Context, tc domain.TurnContext, history []domain.Message) domain.Turn {
	prompt, err := buildTurnPrompt(tc, history)
	if err != nil {
		slog.Warn("turn prompt build failed", "error", err)
		return fallbackTurn()
	}

	response, err := t.gen.GenerateText(ctx, prompt)
	if err != nil {
		slog.Warn("turn generation failed", "error", err)
		return fallbackTurn()
	}

	turn, ok := coerceTurn(response)
	if !ok {
		return fallbackTurn()
	}
	if len(history) == 0 && turn.Kind != domain.TurnKindQuestion {
		// First contact always probes for missing specifics.
		slog.Warn("model proposed on empty history, overriding to question")
		return fallbackTurn()
	}
	return turn
}

func buildTurnPrompt(tc domain.TurnContext, history []domain.Message) (string, error) {
	payload := struct {
		Context domain.TurnContext `json:"context"`
		History []domain.Message   `json:"history"`
	}{Context: tc, History: history}

	input, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return turnInstructions + "INPUT(JSON):\n" + string(input), nil
}

func coerceTurn(response string) (domain.Turn, bool) {
	var payload turnPayload
	if err := llmjson.Unmarshal(response, &payload); err != nil {
		slog.Warn("turn response unparsable", "error", err)
		return domain.Turn{}, false
	}
	if payload.Kind != domain.TurnKindQuestion && payload.Kind != domain.TurnKindProposal {
		return domain.Turn{}, false
	}
	content := strings.TrimSpace(payload.Content)
	if content == "" {
		return domain.Turn{}, false
	}
	return domain.Turn{Kind: payload.Kind, Content: content}, true
}

func fallbackTurn() domain.Turn {
	return domain.Turn{Kind: domain.TurnKindQuestion, Content: fallbackQuestion}
}
