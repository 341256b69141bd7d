package model

type SourceKind string

const (
	SourceKindPDF   SourceKind = "pdf"
	SourceKindImage SourceKind = "image"
	SourceKindVideo SourceKind = "video"
)

func (k SourceKind) Valid() bool {
	switch k {
	case SourceKindPDF, SourceKindImage, SourceKindVideo:
		return true
	}
	return false
}

// Document is written once, after its chunks are indexed.
type Document struct {
	ID         string     `json:"document_id"`
	OwnerID    string     `json:"owner_id"`
	SourceKind SourceKind `json:"source_kind"`
	FileName   string     `json:"file_name"`
	FileKey    string     `json:"-"`
	SourceURL  string     `json:"source_url,omitempty"`
	Collection string     `json:"-"`
	PageCount  int        `json:"page_count"`
	ChunkCount int        `json:"chunk_count"`
	UploadedAt int64      `json:"uploaded_at"`
}
