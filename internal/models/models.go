package models

import (
	"time"
)

// Source types accepted by the ingestion pipeline. URL sources are planned
// but not wired yet.
const (
	SourceTypePDF  = "pdf"
	SourceTypeText = "text"
	SourceTypeURL  = "url"
)

// User represents an authenticated account that owns chatbots.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Chatbot is the tenant unit: every knowledge-base row hangs off exactly one
// chatbot and is never shared across chatbots.
type Chatbot struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SourceDocument records one successfully ingested file. A row exists only
// when the whole pipeline succeeded up to persistence; deleting it cascades
// to its chunks. Rows are never mutated after creation (re-ingesting a file
// creates a new row).
type SourceDocument struct {
	ID         string    `db:"id" json:"id"`
	ChatbotID  string    `db:"chatbot_id" json:"chatbot_id"`
	SourceType string    `db:"source_type" json:"source_type"` // "pdf" | "text" | "url"
	FileName   string    `db:"file_name" json:"file_name"`
	StorageURL string    `db:"storage_url" json:"storage_url,omitempty"` // archived original, empty if not archived
	ByteSize   int64     `db:"byte_size" json:"byte_size"`
	PageCount  int       `db:"page_count" json:"page_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DocumentChunk is one embedded span of a source document. ChatbotID is
// denormalized so retrieval can filter by tenant without a join.
type DocumentChunk struct {
	ID        string    `db:"id" json:"id"`
	ChatbotID string    `db:"chatbot_id" json:"chatbot_id"`
	SourceID  string    `db:"source_id" json:"source_id"`
	Text      string    `db:"text" json:"text"`
	Embedding []float32 `db:"embedding" json:"embedding"` // pgvector column
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SourceUpload is the raw input handed to the ingestion pipeline by the
// upload handler: the document bytes plus what the caller declared about them.
type SourceUpload struct {
	Data       []byte
	FileName   string
	SourceType string
}
