// Package generate turns collected wizard inputs into manual content:
// markdown, illustrations, print-ready HTML, and the rendered PDF.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kuri-sun/bous-ai/internal/domain"
	"github.com/kuri-sun/bous-ai/internal/llm"
	"github.com/kuri-sun/bous-ai/internal/llmjson"
	"github.com/kuri-sun/bous-ai/internal/render"
	"github.com/kuri-sun/bous-ai/internal/storage"
)

// InitialInput drives the first full generation of a manual.
type InitialInput struct {
	SessionID   string
	Memo        string
	InputImages []domain.InputImage
	ManualTitle string
	Name        string
	Author      string
	IssuedOn    string
}

// ProposalInput drives regeneration after an accepted revision proposal.
// The previously generated body is updated in place; layout and CSS are
// kept untouched.
type ProposalInput struct {
	SessionID        string
	PreviousMarkdown string
	PreviousHTML     string
	Proposal         string
}

// Result is the outcome of a pipeline run. The PDF has already been written
// to the object store when a Result is returned.
type Result struct {
	Markdown           string
	HTML               string
	PDFBlobName        string
	PDFURL             string
	IllustrationImages []domain.IllustrationImage
}

// Pipeline orchestrates content generation against injected backends. Every
// backend error aborts the run; nothing partial is reported back.
type Pipeline struct {
	text     llm.TextGenerator
	image    llm.ImageGenerator
	renderer render.PDFRenderer
	store    storage.ObjectStore
	bucket   string
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(text llm.TextGenerator, image llm.ImageGenerator, renderer render.PDFRenderer, store storage.ObjectStore, bucket string) *Pipeline {
	return &Pipeline{
		text:     text,
		image:    image,
		renderer: renderer,
		store:    store,
		bucket:   bucket,
	}
}

// PDFBlobName returns the deterministic output path for a session's manual.
func PDFBlobName(sessionID string) string {
	return fmt.Sprintf("sessions/%s/output/manual.pdf", sessionID)
}

// GenerateInitial runs the full first-time pipeline: markdown with
// illustration placeholders, illustration generation and upload, HTML
// layout, PDF render, PDF upload.
func (p *Pipeline) GenerateInitial(ctx context.Context, in InitialInput) (*Result, error) {
	markdown, prompts, err := p.GenerateMarkdownWithPrompts(ctx, in)
	if err != nil {
		return nil, err
	}

	illustrations, err := p.generateIllustrations(ctx, in.SessionID, prompts)
	if err != nil {
		return nil, err
	}

	html, err := p.GenerateManualHTML(ctx, markdown, in.InputImages, illustrations)
	if err != nil {
		return nil, err
	}

	blobName, pdfURL, err := p.renderAndUpload(ctx, in.SessionID, html)
	if err != nil {
		return nil, err
	}

	return &Result{
		Markdown:           markdown,
		HTML:               html,
		PDFBlobName:        blobName,
		PDFURL:             pdfURL,
		IllustrationImages: illustrations,
	}, nil
}

// RegenerateWithProposal incorporates an accepted proposal into the
// previously generated HTML and re-renders the PDF. The markdown body is
// carried forward unchanged, matching the fixed-layout rule.
func (p *Pipeline) RegenerateWithProposal(ctx context.Context, in ProposalInput) (*Result, error) {
	html, err := p.GenerateManualHTMLWithProposal(ctx, in.PreviousMarkdown, in.PreviousHTML, in.Proposal)
	if err != nil {
		return nil, err
	}

	blobName, pdfURL, err := p.renderAndUpload(ctx, in.SessionID, html)
	if err != nil {
		return nil, err
	}

	return &Result{
		Markdown:    in.PreviousMarkdown,
		HTML:        html,
		PDFBlobName: blobName,
		PDFURL:      pdfURL,
	}, nil
}

type markdownPayload struct {
	Markdown            string `json:"markdown"`
	IllustrationPrompts []struct {
		ID     string `json:"id"`
		Prompt string `json:"prompt"`
		Alt    string `json:"alt"`
	} `json:"illustration_prompts"`
}

// GenerateMarkdownWithPrompts asks the model for the manual body plus 2-3
// illustration placeholders, and guarantees every uploaded image URL is
// referenced at least once.
func (p *Pipeline) GenerateMarkdownWithPrompts(ctx context.Context, in InitialInput) (string, []domain.IllustrationPrompt, error) {
	prompt, err := buildMarkdownPrompt(in)
	if err != nil {
		return "", nil, err
	}
	response, err := p.text.GenerateText(ctx, prompt)
	if err != nil {
		return "", nil, fmt.Errorf("markdown generation: %w", err)
	}

	var payload markdownPayload
	if err := llmjson.Unmarshal(response, &payload); err != nil {
		return "", nil, fmt.Errorf("markdown generation: %w", err)
	}
	markdown := strings.TrimSpace(payload.Markdown)
	if markdown == "" {
		return "", nil, fmt.Errorf("markdown generation: body is missing")
	}

	var prompts []domain.IllustrationPrompt
	for index, item := range payload.IllustrationPrompts {
		promptText := strings.TrimSpace(item.Prompt)
		if promptText == "" {
			continue
		}
		id := strings.TrimSpace(item.ID)
		if id == "" {
			id = fmt.Sprintf("illust-%d", index+1)
		}
		prompts = append(prompts, domain.IllustrationPrompt{
			ID:     id,
			Prompt: promptText,
			Alt:    strings.TrimSpace(item.Alt),
		})
	}

	return ensureInputImagesInMarkdown(markdown, in.InputImages), prompts, nil
}

// generateIllustrations runs one image generation per placeholder and
// uploads the result under the session's illustration prefix. Calls are
// sequential; the first failure aborts the run.
func (p *Pipeline) generateIllustrations(ctx context.Context, sessionID string, prompts []domain.IllustrationPrompt) ([]domain.IllustrationImage, error) {
	if len(prompts) == 0 {
		return nil, nil
	}
	if p.bucket == "" {
		return nil, fmt.Errorf("GCS_BUCKET is not set")
	}

	var illustrations []domain.IllustrationImage
	for _, prompt := range prompts {
		data, contentType, err := p.image.GenerateImage(ctx, prompt.Prompt)
		if err != nil {
			return nil, fmt.Errorf("illustration %s: %w", prompt.ID, err)
		}

		blobName := fmt.Sprintf("sessions/%s/illustrations/%s%s", sessionID, prompt.ID, extensionFor(contentType))
		gcsURI, err := p.store.Upload(ctx, p.bucket, blobName, data, contentType)
		if err != nil {
			return nil, fmt.Errorf("upload illustration %s: %w", prompt.ID, err)
		}

		illustrations = append(illustrations, domain.IllustrationImage{
			ID:          prompt.ID,
			Prompt:      prompt.Prompt,
			PublicURL:   p.store.PublicURL(p.bucket, blobName),
			GCSURI:      gcsURI,
			ContentType: contentType,
			Alt:         prompt.Alt,
		})
		slog.Info("illustration generated", "session_id", sessionID, "id", prompt.ID, "blob", blobName)
	}
	return illustrations, nil
}

// GenerateManualHTML lays the markdown body out as a complete A4 HTML
// document with the fixed print CSS.
func (p *Pipeline) GenerateManualHTML(ctx context.Context, markdown string, inputImages []domain.InputImage, illustrations []domain.IllustrationImage) (string, error) {
	prompt, err := buildHTMLPrompt(markdown, inputImages, illustrations)
	if err != nil {
		return "", err
	}
	response, err := p.text.GenerateText(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("html generation: %w", err)
	}
	html := strings.TrimSpace(response)
	if html == "" {
		return "", fmt.Errorf("html generation: empty response")
	}
	return html, nil
}

// GenerateManualHTMLWithProposal updates the previous HTML with the accepted
// proposal while leaving head, CSS and layout untouched.
func (p *Pipeline) GenerateManualHTMLWithProposal(ctx context.Context, previousMarkdown, previousHTML, proposal string) (string, error) {
	prompt, err := buildProposalHTMLPrompt(previousMarkdown, previousHTML, proposal)
	if err != nil {
		return "", err
	}
	response, err := p.text.GenerateText(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("html generation: %w", err)
	}
	html := strings.TrimSpace(response)
	if html == "" {
		return "", fmt.Errorf("html generation: empty response")
	}
	return html, nil
}

func (p *Pipeline) renderAndUpload(ctx context.Context, sessionID, html string) (string, string, error) {
	if p.bucket == "" {
		return "", "", fmt.Errorf("GCS_BUCKET is not set")
	}

	pdfBytes, err := p.renderer.RenderPDF(ctx, html)
	if err != nil {
		return "", "", err
	}

	blobName := PDFBlobName(sessionID)
	if _, err := p.store.Upload(ctx, p.bucket, blobName, pdfBytes, "application/pdf"); err != nil {
		return "", "", fmt.Errorf("upload pdf: %w", err)
	}
	return blobName, p.store.PublicURL(p.bucket, blobName), nil
}

// ensureInputImagesInMarkdown appends a reference-images section for any
// uploaded image the model failed to place.
func ensureInputImagesInMarkdown(markdown string, inputImages []domain.InputImage) string {
	if len(inputImages) == 0 {
		return markdown
	}
	var missing []domain.InputImage
	for _, image := range inputImages {
		if !strings.Contains(markdown, image.PublicURL) {
			missing = append(missing, image)
		}
	}
	if len(missing) == 0 {
		return markdown
	}

	lines := []string{strings.TrimRight(markdown, "\n"), "", "## 参考画像"}
	for _, image := range missing {
		alt := image.Description
		if alt == "" {
			alt = "参考画像"
		}
		lines = append(lines, fmt.Sprintf("![%s](%s)", alt, image.PublicURL))
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
