package model

type AnswerRecord struct {
	ID         string   `json:"qa_id"`
	DocumentID string   `json:"document_id"`
	UserID     string   `json:"user_id"`
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Context    []string `json:"context"`
	Ctime      int64    `json:"created_at"`
}
