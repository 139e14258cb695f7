package ocr

import (
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentText(t *testing.T) {
	response := &visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{
			{},
			{FullTextAnnotation: &visionpb.TextAnnotation{Text: "避難経路図"}},
		},
	}

	assert.Equal(t, "避難経路図", documentText(response))
}

func TestDocumentTextEmptyResponse(t *testing.T) {
	assert.Empty(t, documentText(nil))
	assert.Empty(t, documentText(&visionpb.BatchAnnotateImagesResponse{}))
	assert.Empty(t, documentText(&visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{{}},
	}))
}

func TestExtractTextFromOutput(t *testing.T) {
	content := []byte(`{
		"responses": [
			{"fullTextAnnotation": {"text": "1ページ目"}},
			{"fullTextAnnotation": {"text": "2ページ目"}},
			{}
		]
	}`)

	text, err := extractTextFromOutput(content)
	require.NoError(t, err)
	assert.Equal(t, "1ページ目\n2ページ目", text)
}

func TestExtractTextFromOutputInvalidJSON(t *testing.T) {
	_, err := extractTextFromOutput([]byte("not json"))
	require.Error(t, err)
}
