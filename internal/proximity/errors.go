package proximity

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDocuments is returned when a merge or pipeline run receives no
	// documents at all.
	ErrNoDocuments = errors.New("no documents to merge")
	// ErrSummarizedMerge is returned when a mean/median vicinity map is passed
	// to Merge; only raw distance lists can be concatenated.
	ErrSummarizedMerge = errors.New("cannot merge summarized vicinity map")
	// ErrInvalidParams is returned for malformed extraction parameters.
	ErrInvalidParams = errors.New("invalid proximity parameters")
)

// MissingTermError reports that the reference term does not occur in a
// document. Callers skip that document instead of aborting the corpus.
type MissingTermError struct {
	Term string
}

func (e *MissingTermError) Error() string {
	return fmt.Sprintf("reference term %q not found in document", e.Term)
}

// IsMissingTerm reports whether err (or anything it wraps) is a
// MissingTermError.
func IsMissingTerm(err error) bool {
	var mte *MissingTermError
	return errors.As(err, &mte)
}
