// Package domain holds the typed session and conversation model for the
// manual wizard. Everything here is plain data; behavior lives in services.
package domain

import "time"

// Wizard session statuses.
const (
	SessionStatusStep1 = "step1"
	SessionStatusStep2 = "step2"
	SessionStatusDone  = "done"
)

// Step1Input is what the analyze step captured from the user.
type Step1Input struct {
	Name                    string `json:"name,omitempty"`
	Author                  string `json:"author,omitempty"`
	Memo                    string `json:"memo,omitempty"`
	FileDescription         string `json:"file_description,omitempty"`
	UploadedFileGCSURI      string `json:"uploaded_file_gcs_uri,omitempty"`
	UploadedFileName        string `json:"uploaded_file_name,omitempty"`
	UploadedFileContentType string `json:"uploaded_file_content_type,omitempty"`
	ExtractedText           string `json:"extracted_text,omitempty"`
}

// Step2Input is the answer set used to generate the manual body.
type Step2Input struct {
	Memo               string              `json:"memo"`
	ManualTitle        string              `json:"manual_title,omitempty"`
	Name               string              `json:"name,omitempty"`
	Author             string              `json:"author,omitempty"`
	IssuedOn           string              `json:"issued_on,omitempty"`
	Answers            map[string]string   `json:"answers,omitempty"`
	UploadedImages     []InputImage        `json:"uploaded_images"`
	IllustrationImages []IllustrationImage `json:"illustration_images,omitempty"`
}

// AcceptedProposal records the proposal content an accepted regeneration ran with.
type AcceptedProposal struct {
	Proposal string `json:"proposal"`
}

// Inputs aggregates everything the wizard collected for a session.
type Inputs struct {
	Step1    *Step1Input       `json:"step1,omitempty"`
	Step2    *Step2Input       `json:"step2,omitempty"`
	Markdown string            `json:"markdown,omitempty"`
	HTML     string            `json:"html,omitempty"`
	Agentic  *AcceptedProposal `json:"agentic,omitempty"`
}

// Session is one wizard run, keyed by ID and persisted across requests.
type Session struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	Place       *Place        `json:"place,omitempty"`
	Inputs      *Inputs       `json:"inputs,omitempty"`
	Agentic     *AgenticState `json:"agentic,omitempty"`
	Form        *FormSchema   `json:"form,omitempty"`
	Msg         string        `json:"msg,omitempty"`
	PDFBlobName string        `json:"pdf_blob_name,omitempty"`
	PDFURL      string        `json:"pdf_url,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
