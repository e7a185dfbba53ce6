// Package validator checks document ingestion requests and returns per-field
// error details.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/ingestion"
)

const (
	maxTitleLength    = 1024
	maxAbstractLength = 65536
	maxIDLength       = 255
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateAddDocument requires a title and an abstract within length limits.
func ValidateAddDocument(req *ingestion.AddDocumentRequest) error {
	errs := make(map[string]string)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		errs["title"] = "title is required"
	} else if len(title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	abstract := strings.TrimSpace(req.Abstract)
	if abstract == "" {
		errs["abstract"] = "abstract is required"
	} else if len(abstract) > maxAbstractLength {
		errs["abstract"] = fmt.Sprintf("abstract must be at most %d characters", maxAbstractLength)
	}
	if len(req.ID) > maxIDLength {
		errs["id"] = fmt.Sprintf("id must be at most %d characters", maxIDLength)
	} else if strings.ContainsAny(req.ID, " \t\n") {
		errs["id"] = "id must not contain whitespace"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
