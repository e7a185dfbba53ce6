package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/ingestion"
)

func TestValidateAddDocument(t *testing.T) {
	tests := []struct {
		name   string
		req    ingestion.AddDocumentRequest
		fields []string
	}{
		{"valid", ingestion.AddDocumentRequest{Title: "t", Abstract: "a"}, nil},
		{"valid with id", ingestion.AddDocumentRequest{ID: "doc-1", Title: "t", Abstract: "a"}, nil},
		{"missing both", ingestion.AddDocumentRequest{}, []string{"title", "abstract"}},
		{"long title", ingestion.AddDocumentRequest{Title: strings.Repeat("x", maxTitleLength+1), Abstract: "a"}, []string{"title"}},
		{"long abstract", ingestion.AddDocumentRequest{Title: "t", Abstract: strings.Repeat("x", maxAbstractLength+1)}, []string{"abstract"}},
		{"id with space", ingestion.AddDocumentRequest{ID: "a b", Title: "t", Abstract: "a"}, []string{"id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddDocument(&tt.req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Fields, len(tt.fields))
			for _, f := range tt.fields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
}

func TestValidationErrorMessageIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"title": "x", "abstract": "y"}}
	assert.Equal(t, "abstract:y; title:x", err.Error())
}
