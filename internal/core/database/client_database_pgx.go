package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cesuygun/chatbot-platform/internal/config"
	"github.com/cesuygun/chatbot-platform/internal/core"
	"github.com/cesuygun/chatbot-platform/internal/models"
)

// KnowledgeStore implements core.KnowledgeStore over Postgres + pgvector
// through the pgx stdlib driver.
type KnowledgeStore struct {
	db *sql.DB
}

var _ core.KnowledgeStore = (*KnowledgeStore)(nil)

func NewKnowledgeStore(ctx context.Context, cfg *config.Config) (*KnowledgeStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn := cfg.DatabaseURL
	if cfg.SslCertPath != "" {
		u, err := url.Parse(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		q := u.Query()
		q.Set("sslmode", "verify-ca")
		q.Set("sslrootcert", cfg.SslCertPath)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Pool settings sized for an API service.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &KnowledgeStore{db: db}, nil
}

func (s *KnowledgeStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Users

func (s *KnowledgeStore) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
	`
	_, err := s.db.ExecContext(ctx, q, user.ID, user.Email, user.PasswordHash)
	return err
}

func (s *KnowledgeStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := s.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Chatbots

func (s *KnowledgeStore) CreateChatbot(ctx context.Context, bot *models.Chatbot) error {
	if bot == nil {
		return errors.New("nil chatbot")
	}
	const q = `
		INSERT INTO chatbots (id, user_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
	`
	_, err := s.db.ExecContext(ctx, q, bot.ID, bot.UserID, bot.Name)
	return err
}

func (s *KnowledgeStore) GetChatbotByID(ctx context.Context, id string) (*models.Chatbot, error) {
	const q = `
		SELECT id, user_id, name, created_at, updated_at
		FROM chatbots WHERE id = $1
	`
	var b models.Chatbot
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.UserID, &b.Name, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *KnowledgeStore) ListChatbotsByUser(ctx context.Context, userID string) ([]models.Chatbot, error) {
	const q = `
		SELECT id, user_id, name, created_at, updated_at
		FROM chatbots
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Chatbot
	for rows.Next() {
		var b models.Chatbot
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *KnowledgeStore) DeleteChatbot(ctx context.Context, id string) error {
	// Sources and chunks go with it via ON DELETE CASCADE.
	res, err := s.db.ExecContext(ctx, `DELETE FROM chatbots WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("chatbot not found: %s", id)
	}
	return nil
}

// Source documents and chunks

// RecordSource creates the source-document row, generating its ID here so
// the identity exists only once the row does.
func (s *KnowledgeStore) RecordSource(ctx context.Context, src *models.SourceDocument) (string, error) {
	if src == nil {
		return "", &core.StorageError{Op: "record_source", Err: errors.New("nil source")}
	}
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO source_documents
			(id, chatbot_id, source_type, file_name, storage_url, byte_size, page_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`
	_, err := s.db.ExecContext(ctx, q,
		src.ID, src.ChatbotID, src.SourceType, src.FileName, src.StorageURL, src.ByteSize, src.PageCount)
	if err != nil {
		return "", &core.StorageError{Op: "record_source", Err: err}
	}
	return src.ID, nil
}

// RecordChunks inserts all chunk rows for a source in a single transaction.
func (s *KnowledgeStore) RecordChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return &core.StorageError{Op: "record_chunks", Err: err}
	}

	const q = `
		INSERT INTO document_chunks
			(id, chatbot_id, source_id, position, text, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return &core.StorageError{Op: "record_chunks", Err: err}
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		vec := pgvector.NewVector(ch.Embedding)
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.ChatbotID, ch.SourceID, ch.Position, ch.Text, vec,
		); err != nil {
			_ = tx.Rollback()
			return &core.StorageError{Op: "record_chunks", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &core.StorageError{Op: "record_chunks", Err: err}
	}
	return nil
}

func (s *KnowledgeStore) GetSourceByID(ctx context.Context, id string) (*models.SourceDocument, error) {
	const q = `
		SELECT id, chatbot_id, source_type, file_name, storage_url, byte_size, page_count, created_at
		FROM source_documents
		WHERE id = $1
	`
	var d models.SourceDocument
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.ChatbotID, &d.SourceType, &d.FileName, &d.StorageURL, &d.ByteSize, &d.PageCount, &d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *KnowledgeStore) ListSourcesByChatbot(ctx context.Context, chatbotID string) ([]models.SourceDocument, error) {
	const q = `
		SELECT id, chatbot_id, source_type, file_name, storage_url, byte_size, page_count, created_at
		FROM source_documents
		WHERE chatbot_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, q, chatbotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SourceDocument
	for rows.Next() {
		var d models.SourceDocument
		if err := rows.Scan(
			&d.ID, &d.ChatbotID, &d.SourceType, &d.FileName, &d.StorageURL, &d.ByteSize, &d.PageCount, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *KnowledgeStore) DeleteSource(ctx context.Context, id string) error {
	// Chunks cascade.
	res, err := s.db.ExecContext(ctx, `DELETE FROM source_documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("source document not found: %s", id)
	}
	return nil
}

func (s *KnowledgeStore) GetChunksBySource(ctx context.Context, sourceID string) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, chatbot_id, source_id, position, text, embedding, created_at
		FROM document_chunks
		WHERE source_id = $1
		ORDER BY position ASC
	`
	rows, err := s.db.QueryContext(ctx, q, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var (
			ch  models.DocumentChunk
			emb pgvector.Vector
		)
		if err := rows.Scan(&ch.ID, &ch.ChatbotID, &ch.SourceID, &ch.Position, &ch.Text, &emb, &ch.CreatedAt); err != nil {
			return nil, err
		}
		ch.Embedding = emb.Slice()
		out = append(out, ch)
	}
	return out, rows.Err()
}

// SearchChunks finds the top-k chunks for a chatbot by vector distance.
// Retrieval-time read; ingestion never calls it.
func (s *KnowledgeStore) SearchChunks(ctx context.Context, chatbotID string, queryVec []float32, limit int) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, chatbot_id, source_id, position, text, embedding, created_at
		FROM document_chunks
		WHERE chatbot_id = $1
		ORDER BY embedding <-> $2
		LIMIT $3
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := s.db.QueryContext(ctx, q, chatbotID, vec, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var (
			ch  models.DocumentChunk
			emb pgvector.Vector
		)
		if err := rows.Scan(&ch.ID, &ch.ChatbotID, &ch.SourceID, &ch.Position, &ch.Text, &emb, &ch.CreatedAt); err != nil {
			return nil, err
		}
		ch.Embedding = emb.Slice()
		out = append(out, ch)
	}
	return out, rows.Err()
}
