package analytics

import "time"

type EventType string

const (
	EventNetwork       EventType = "network"
	EventNetworkEmpty  EventType = "network_empty"
	EventNetworkFailed EventType = "network_failed"
	EventDocumentAdded EventType = "document.added"
)

// NetworkEvent describes one neighbour-network request.
type NetworkEvent struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query"`
	Reference  string    `json:"reference"`
	Units      int       `json:"units"`
	Matched    int       `json:"matched"`
	Neighbours []string  `json:"neighbours"`
	Outcome    string    `json:"outcome"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

// DocumentEvent mirrors the payload published when a document is added to
// the library.
type DocumentEvent struct {
	Type       EventType `json:"type"`
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	AddedAt    time.Time `json:"added_at"`
}

type envelope struct {
	Type EventType `json:"type"`
}
