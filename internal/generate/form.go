package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/kuri-sun/bous-ai/internal/domain"
	"github.com/kuri-sun/bous-ai/internal/llm"
	"github.com/kuri-sun/bous-ai/internal/llmjson"
)

// ExtractedInput is the analyze step's view of what the user provided,
// serialized into the form-generation prompt.
type ExtractedInput struct {
	SourceType                    string `json:"source_type"`
	HasText                       bool   `json:"has_text"`
	HasFile                       bool   `json:"has_file"`
	Memo                          string `json:"memo,omitempty"`
	UploadedFileGCSURI            string `json:"uploaded_file_gcs_uri,omitempty"`
	UploadedFileName              string `json:"uploaded_file_name,omitempty"`
	UploadedFileContentType       string `json:"uploaded_file_content_type,omitempty"`
	TextExtractedFromUploadedFile string `json:"text_extracted_from_uploaded_file,omitempty"`
	DescriptionForUploadedFile    string `json:"description_for_uploaded_file,omitempty"`
}

// FormResult is the generated missing-info form plus its user-facing message.
type FormResult struct {
	Msg  string
	Form *domain.FormSchema
}

// GenerateMissingInfoForm asks the model which information is still missing
// for a useful manual, returned as a strict form schema.
func GenerateMissingInfoForm(ctx context.Context, text llm.TextGenerator, extracted ExtractedInput) (*FormResult, error) {
	prompt, err := buildFormPrompt(extracted)
	if err != nil {
		return nil, err
	}
	response, err := text.GenerateText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("form generation: %w", err)
	}

	var payload struct {
		Msg  string `json:"msg"`
		Form struct {
			Fields []struct {
				ID          string   `json:"id"`
				Label       string   `json:"label"`
				FieldType   string   `json:"field_type"`
				Required    *bool    `json:"required"`
				Placeholder string   `json:"placeholder"`
				Options     []string `json:"options"`
			} `json:"fields"`
		} `json:"form"`
	}
	if err := llmjson.Unmarshal(response, &payload); err != nil {
		return nil, fmt.Errorf("form generation: %w", err)
	}
	if strings.TrimSpace(payload.Msg) == "" {
		return nil, fmt.Errorf("form generation: msg is missing")
	}

	var fields []domain.FormField
	for _, item := range payload.Form.Fields {
		fieldType := item.FieldType
		if fieldType == "" {
			fieldType = "text"
		}
		required := true
		if item.Required != nil {
			required = *item.Required
		}
		fields = append(fields, domain.FormField{
			ID:          item.ID,
			Label:       item.Label,
			FieldType:   fieldType,
			Required:    required,
			Placeholder: item.Placeholder,
			Options:     item.Options,
		})
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("form generation: no valid fields")
	}

	return &FormResult{
		Msg:  payload.Msg,
		Form: &domain.FormSchema{Fields: fields},
	}, nil
}
