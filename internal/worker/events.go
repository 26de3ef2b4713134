package worker

import "time"

// DocumentIndexedEvent is published after a document's chunks are stored.
type DocumentIndexedEvent struct {
	Filename      string    `json:"filename"`
	DocumentName  string    `json:"document_name"`
	FileType      string    `json:"file_type"`
	Chunks        int       `json:"chunks"`
	Characters    int       `json:"characters"`
	IndexedAt     time.Time `json:"indexed_at"`
	CorrelationID string    `json:"correlation_id"`
}

// ETLTask asks a worker to run the scraping ETL over a links CSV.
type ETLTask struct {
	Filename      string `json:"filename"`
	CorrelationID string `json:"correlation_id"`
}
