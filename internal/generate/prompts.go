package generate

import (
	"encoding/json"
	"fmt"

	"github.com/kuri-sun/bous-ai/internal/domain"
)

const markdownInstructions = "あなたは日本語の防災マニュアルを作成するアシスタントです。" +
	"必ず最初の1ページはマニュアルの表紙とし、以下のみを含めてください:" +
	"1) マニュアルタイトル(manual_title)" +
	"2) 名称" +
	"3) 発行年月" +
	"4) 発行者" +
	"表紙はMarkdown上で専用のセクションとして作成し、" +
	"タイトルは中央寄せ、発行年月と発行者はページ下部に配置してください。" +
	"表紙タイトルは名称と「防災マニュアル」を改行して2行で表示し、" +
	"名称が空の場合は「防災マニュアル」だけを1行で表示してください。" +
	"表紙で１ページ目を使うので、の２ページ目からセクション１を開始してください。" +
	"メモと画像情報を参考に、PDF化に適したMarkdownを作成してください。" +
	"入力画像は指定されたURLと説明を使ってMarkdownに差し込みます。" +
	"input_imagesのpublic_urlはそれぞれ1回だけ使い、" +
	"説明はaltとして反映してください。" +
	"さらに、適切な箇所に追加すべきイラストのプレースホルダーを" +
	"Markdown中に挿入し、そのイラスト生成用プロンプトも作成してください。" +
	"出力は必ずJSONのみで次の形式にしてください:\n" +
	`{"markdown": "...", "illustration_prompts": ` +
	`[{"id": "illust-1", "prompt": "...", "alt": "..."}]}` + "\n" +
	"illustration_promptsは2〜3件の配列で、idはMarkdown内の" +
	"プレースホルダー ![ALT](illustration://ID) と一致させます。" +
	"イラストのプロンプトは日本語で、" +
	"日本のマンション居住者が理解しやすい表現にしてください。" +
	"各プロンプトに" +
	"「イラスト内に文字は含めない（文字禁止）」を必ず含めてください。" +
	"Markdownには見出しと段落を使い、長文は適度に分割してください。" +
	"本文には提案・改善案・追加提案などの文言を入れず、" +
	"純粋なマニュアル本文だけにしてください。" +
	"余計な説明やコードフェンスは不要です。\n\n"

const htmlInstructions = "あなたは日本語の防災マニュアルをHTML化するアシスタントです。" +
	"Markdownを読み、A4向けの完成HTML(<!doctype html>から</html>まで)" +
	"のみを返してください。" +
	"illustration://ID のプレースホルダーは、対応するURLに置換して" +
	"画像として差し込んでください。" +
	"input_imagesのpublic_urlはすべてHTMLに反映し、" +
	`画像は<div class="image-block">で囲み、` +
	`<img class="manual-image">で出力してください。` +
	"画像にstyle属性は付けないでください。" +
	"画像には枠線やボーダーを付けないでください。" +
	`表紙は<section class="cover">で構成し、` +
	"タイトルは中央寄せ、発行年月と発行者は下部に配置してください。" +
	"表紙タイトルは名称と「防災マニュアル」を改行して2行で表示し、" +
	"名称が空の場合は「防災マニュアル」だけを1行で表示してください。" +
	"CSSは<head>内の<style>に含め、読みやすい構成にしてください。" +
	"ページ分割が崩れないよう、A4印刷時の高さに合わせて" +
	"各セクションの高さ・余白を調整し、" +
	"長い文章は段落で分割して" +
	"適切に改ページ(page-break)されるようにしてください。" +
	"見出し直後の改ページや、段落の途中での改ページは避けてください。" +
	"必ず以下のCSSルールを含めてください:" +
	"@page { size: A4; margin: 18mm 14mm; }" +
	"h1, h2, h3 { page-break-after: avoid; break-after: avoid; }" +
	"p, li, table, section { page-break-inside: avoid; break-inside: avoid; }" +
	"section { margin-bottom: 12mm; }" +
	".manual-image { width: 100%; max-width: 160mm; max-height: 90mm; " +
	"height: auto; object-fit: contain; border: none; }" +
	".image-block img { max-width: 160mm !important; " +
	"max-height: 90mm !important; }" +
	".image-block { margin: 6mm 0; display: flex; " +
	"justify-content: center; }" +
	".cover { min-height: 240mm; display: flex; flex-direction: column; " +
	"justify-content: space-between; margin-bottom: 0; " +
	"page-break-after: always; }" +
	".cover-title { text-align: center; margin-top: 40mm; }" +
	".cover-meta { text-align: center; margin-bottom: 10mm; }" +
	"大きな表やリストは複数のsectionに分割して下さい。" +
	"余計な説明やコードフェンスは不要です。\n\n"

const proposalHTMLInstructions = "あなたは、インプットされたほぼ完成された日本語の防災マニュアル(previous_html)を、最終調整するアシスタントです。" +
	"提案内容(proposal)を反映してHTML(previous_html)を更新してください。" +
	"previous_htmlの<head>とCSSは変更しないでください。" +
	"previous_htmlのレイアウトと画像配置ルールは絶対変更しないでください。" +
	"変更が必要な箇所以外は絶対変更しないでください。" +
	"ページ分割には、絶対配慮してください。" +
	"outputは完成HTML(<!doctype html>から</html>まで)のみ。" +
	"outputにはバックスラッシュ(\\)やエスケープ文字列" +
	`(\n, \t, \"など)を含めないでください。` +
	"余計な説明やコードフェンスは不要です。"

const formInstructions = "あなたは日本語のマンション用の防災マニュアル作成のために" +
	"不足情報を特定するアシスタントです。" +
	"`memo`がある場合は、防災マニュアル作成のためのメモで、" +
	"マニュアル作成のための有益な情報が含まれています。" +
	"`text_extracted_from_uploaded_file`がある場合は、" +
	"アップロードされたファイルをGoogle Visionが抽出したものになります。" +
	"`description_for_uploaded_file`がある場合は、" +
	"アップロードされたファイルの説明です。" +
	"以下のJSONを読み、いざという時に使える有益なマンション用の" +
	"防災マニュアル作成にあたって、まだ不足している情報を" +
	"JSONで返してください。" +
	`必ず次の形式のみを返します: {"msg": "...", "form": {"fields": [...]}}。` +
	"fieldsはid, label, field_type(text|textarea|select), required, " +
	"placeholder, optionsを含めます。" +
	"余計な説明やコードフェンスは不要です。\n\n"

func withJSONInput(instructions string, payload any) (string, error) {
	input, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal prompt input: %w", err)
	}
	return instructions + "INPUT(JSON):\n" + string(input), nil
}

func buildMarkdownPrompt(in InitialInput) (string, error) {
	payload := struct {
		ManualTitle string              `json:"manual_title"`
		Name        string              `json:"name"`
		Author      string              `json:"author"`
		IssuedOn    string              `json:"issued_on"`
		Memo        string              `json:"memo"`
		InputImages []domain.InputImage `json:"input_images"`
	}{in.ManualTitle, in.Name, in.Author, in.IssuedOn, in.Memo, in.InputImages}
	return withJSONInput(markdownInstructions, payload)
}

func buildHTMLPrompt(markdown string, inputImages []domain.InputImage, illustrations []domain.IllustrationImage) (string, error) {
	payload := struct {
		Markdown           string                     `json:"markdown"`
		InputImages        []domain.InputImage        `json:"input_images"`
		IllustrationImages []domain.IllustrationImage `json:"illustration_images"`
	}{markdown, inputImages, illustrations}
	return withJSONInput(htmlInstructions, payload)
}

func buildProposalHTMLPrompt(previousMarkdown, previousHTML, proposal string) (string, error) {
	payload := struct {
		Proposal         string `json:"proposal"`
		PreviousMarkdown string `json:"previous_markdown"`
		PreviousHTML     string `json:"previous_html"`
	}{proposal, previousMarkdown, previousHTML}
	return withJSONInput(proposalHTMLInstructions, payload)
}

func buildFormPrompt(extracted ExtractedInput) (string, error) {
	return withJSONInput(formInstructions, extracted)
}
