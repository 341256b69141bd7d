package model

type ImageRecord struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	DocumentID  string `json:"document_id"`
	Description string `json:"description"`
	Message     string `json:"message"`
	UploadedAt  int64  `json:"uploaded_at"`
}
