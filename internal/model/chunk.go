package model

type Chunk struct {
	ID         string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	PageNumber int       `json:"page_number"`
	Index      int       `json:"index"`
	Offset     int       `json:"offset"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
}

// Page is one unit of extracted text, numbered from 1.
type Page struct {
	Number int    `json:"page_number"`
	Text   string `json:"text"`
}
