package domain

// InputImage describes an image the user uploaded for the manual.
// Description and PublicURL are required; the rest is carried through.
type InputImage struct {
	Description string `json:"description"`
	PublicURL   string `json:"public_url"`
	GCSURI      string `json:"gcs_uri,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// IllustrationPrompt is a placeholder the markdown generator emits: a stable
// id matching an illustration://ID reference plus a text-to-image prompt.
type IllustrationPrompt struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
	Alt    string `json:"alt,omitempty"`
}

// IllustrationImage is a generated illustration after upload.
type IllustrationImage struct {
	ID          string `json:"id"`
	Prompt      string `json:"prompt"`
	PublicURL   string `json:"public_url"`
	GCSURI      string `json:"gcs_uri,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Alt         string `json:"alt,omitempty"`
}

// FormField is one input the missing-info form asks the user to fill.
type FormField struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	FieldType   string   `json:"field_type"`
	Required    bool     `json:"required"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// FormSchema is the generated missing-info form.
type FormSchema struct {
	Fields []FormField `json:"fields"`
}
