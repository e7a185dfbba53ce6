// Package ingestion defines the request and response types used when
// documents are added to the local library.
package ingestion

// AddDocumentRequest is the JSON body accepted by POST /api/v1/documents.
// ID is optional; a content hash is used when it is empty.
type AddDocumentRequest struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
}

// AddDocumentResponse is returned after a document is indexed.
type AddDocumentResponse struct {
	DocumentID       string `json:"document_id"`
	Status           string `json:"status"`
	LibraryDocuments int    `json:"library_documents"`
}
