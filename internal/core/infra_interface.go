package core

import (
	"context"
	"io"

	"github.com/cesuygun/chatbot-platform/internal/models"
)

// KnowledgeStore defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
//
// RecordChunks must only be called after RecordSource has succeeded for the
// same source ID; the ingestion pipeline enforces that order. The store does
// not offer transactionality across the two calls.
type KnowledgeStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateChatbot(ctx context.Context, bot *models.Chatbot) error
	GetChatbotByID(ctx context.Context, id string) (*models.Chatbot, error)
	ListChatbotsByUser(ctx context.Context, userID string) ([]models.Chatbot, error)
	DeleteChatbot(ctx context.Context, id string) error

	// RecordSource durably creates the source-document row and returns its
	// generated ID.
	RecordSource(ctx context.Context, src *models.SourceDocument) (string, error)
	// RecordChunks durably creates all chunk rows for a source in one
	// transaction.
	RecordChunks(ctx context.Context, chunks []models.DocumentChunk) error

	GetSourceByID(ctx context.Context, id string) (*models.SourceDocument, error)
	ListSourcesByChatbot(ctx context.Context, chatbotID string) ([]models.SourceDocument, error)
	DeleteSource(ctx context.Context, id string) error

	GetChunksBySource(ctx context.Context, sourceID string) ([]models.DocumentChunk, error)
	SearchChunks(ctx context.Context, chatbotID string, queryVec []float32, limit int) ([]models.DocumentChunk, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so AWS can be replaced with MinIO, GCP, etc. easily.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}
