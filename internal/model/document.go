package model

type EmbedStatus string

const (
	EmbedStatusPending  EmbedStatus = "pending"
	EmbedStatusEmbedded EmbedStatus = "embedded"
	EmbedStatusFailed   EmbedStatus = "failed"
)

type Document struct {
	ID               string      `json:"id"`
	UserID           string      `json:"user_id"`
	Filename         string      `json:"filename"`
	OriginalFilename string      `json:"original_filename"`
	FileSize         int64       `json:"file_size"`
	FileType         string      `json:"file_type"`
	LocalPath        string      `json:"local_path"`
	EmbedStatus      EmbedStatus `json:"embed_status"`
	EmbedError       string      `json:"embed_error,omitempty"`
	IndexPath        string      `json:"index_path,omitempty"`
	ChunkCount       int         `json:"chunk_count"`
	Ctime            int64       `json:"ctime"`
	Mtime            int64       `json:"mtime"`
}

func (d *Document) Embedded() bool {
	return d.EmbedStatus == EmbedStatusEmbedded
}
