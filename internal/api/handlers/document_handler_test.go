package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	middleware "github.com/cesuygun/chatbot-platform/internal/api/middlewares"
	"github.com/cesuygun/chatbot-platform/internal/config"
	"github.com/cesuygun/chatbot-platform/internal/core"
	"github.com/cesuygun/chatbot-platform/internal/core/ingestion_engine"
	"github.com/cesuygun/chatbot-platform/internal/models"
)

type stubStore struct {
	core.KnowledgeStore
	bot     *models.Chatbot
	sources []models.SourceDocument
	source  *models.SourceDocument
	deleted []string
}

func (s *stubStore) GetChatbotByID(ctx context.Context, id string) (*models.Chatbot, error) {
	if s.bot != nil && s.bot.ID == id {
		return s.bot, nil
	}
	return nil, nil
}

func (s *stubStore) ListSourcesByChatbot(ctx context.Context, chatbotID string) ([]models.SourceDocument, error) {
	return s.sources, nil
}

func (s *stubStore) GetSourceByID(ctx context.Context, id string) (*models.SourceDocument, error) {
	if s.source != nil && s.source.ID == id {
		return s.source, nil
	}
	return nil, nil
}

func (s *stubStore) DeleteSource(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type stubIngestor struct {
	gotUpload models.SourceUpload
	gotBotID  string
	result    *ingestion_engine.Result
	err       error
}

func (s *stubIngestor) Ingest(ctx context.Context, up models.SourceUpload, chatbotID string) (*ingestion_engine.Result, error) {
	s.gotUpload = up
	s.gotBotID = chatbotID
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// withRoute attaches the authenticated user and chi URL params the router
// would normally provide.
func withRoute(r *http.Request, userID string, params map[string]string) *http.Request {
	ctx := r.Context()
	if userID != "" {
		ctx = context.WithValue(ctx, middleware.UserIDKey, userID)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

func multipartUpload(t *testing.T, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func newDocumentHandler(store core.KnowledgeStore, ing ingestion_engine.Ingestor) *DocumentHandler {
	return NewDocumentHandler(store, nil, ing, &config.Config{}, zerolog.Nop())
}

func TestDocumentUpload(t *testing.T) {
	store := &stubStore{bot: &models.Chatbot{ID: "bot-1", UserID: "user-1"}}
	ing := &stubIngestor{result: &ingestion_engine.Result{SourceID: "src-1", PageCount: 3, ChunkCount: 12}}
	h := newDocumentHandler(store, ing)

	body, contentType := multipartUpload(t, "notes.txt", []byte("hello knowledge base"))
	req := httptest.NewRequest(http.MethodPost, "/api/chatbots/bot-1/documents", body)
	req.Header.Set("Content-Type", contentType)
	req = withRoute(req, "user-1", map[string]string{"chatbotID": "bot-1"})

	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var res ingestion_engine.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "src-1", res.SourceID)
	assert.Equal(t, 12, res.ChunkCount)

	assert.Equal(t, "bot-1", ing.gotBotID)
	assert.Equal(t, "notes.txt", ing.gotUpload.FileName)
	assert.Equal(t, models.SourceTypeText, ing.gotUpload.SourceType)
	assert.Equal(t, []byte("hello knowledge base"), ing.gotUpload.Data)
}

func TestDocumentUpload_ExtractionFailure(t *testing.T) {
	store := &stubStore{bot: &models.Chatbot{ID: "bot-1", UserID: "user-1"}}
	ing := &stubIngestor{err: &core.ExtractionError{FileName: "bad.pdf", SourceType: models.SourceTypePDF}}
	h := newDocumentHandler(store, ing)

	body, contentType := multipartUpload(t, "bad.pdf", []byte("not a pdf"))
	req := httptest.NewRequest(http.MethodPost, "/api/chatbots/bot-1/documents", body)
	req.Header.Set("Content-Type", contentType)
	req = withRoute(req, "user-1", map[string]string{"chatbotID": "bot-1"})

	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "extract")
}

func TestDocumentUpload_EmbeddingFailure(t *testing.T) {
	store := &stubStore{bot: &models.Chatbot{ID: "bot-1", UserID: "user-1"}}
	ing := &stubIngestor{err: &core.EmbeddingError{Attempts: 4}}
	h := newDocumentHandler(store, ing)

	body, contentType := multipartUpload(t, "doc.txt", []byte("text"))
	req := httptest.NewRequest(http.MethodPost, "/api/chatbots/bot-1/documents", body)
	req.Header.Set("Content-Type", contentType)
	req = withRoute(req, "user-1", map[string]string{"chatbotID": "bot-1"})

	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDocumentUpload_WrongOwner(t *testing.T) {
	store := &stubStore{bot: &models.Chatbot{ID: "bot-1", UserID: "someone-else"}}
	ing := &stubIngestor{}
	h := newDocumentHandler(store, ing)

	body, contentType := multipartUpload(t, "doc.txt", []byte("text"))
	req := httptest.NewRequest(http.MethodPost, "/api/chatbots/bot-1/documents", body)
	req.Header.Set("Content-Type", contentType)
	req = withRoute(req, "user-1", map[string]string{"chatbotID": "bot-1"})

	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, ing.gotBotID, "ingestion must not run for a chatbot the caller does not own")
}

func TestDocumentUpload_Unauthenticated(t *testing.T) {
	store := &stubStore{bot: &models.Chatbot{ID: "bot-1", UserID: "user-1"}}
	h := newDocumentHandler(store, &stubIngestor{})

	body, contentType := multipartUpload(t, "doc.txt", []byte("text"))
	req := httptest.NewRequest(http.MethodPost, "/api/chatbots/bot-1/documents", body)
	req.Header.Set("Content-Type", contentType)
	req = withRoute(req, "", map[string]string{"chatbotID": "bot-1"})

	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDocumentDelete(t *testing.T) {
	store := &stubStore{
		bot:    &models.Chatbot{ID: "bot-1", UserID: "user-1"},
		source: &models.SourceDocument{ID: "src-1", ChatbotID: "bot-1"},
	}
	h := newDocumentHandler(store, &stubIngestor{})

	req := httptest.NewRequest(http.MethodDelete, "/api/chatbots/bot-1/documents/src-1", nil)
	req = withRoute(req, "user-1", map[string]string{"chatbotID": "bot-1", "documentID": "src-1"})

	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"src-1"}, store.deleted)
}

func TestDocumentDelete_OtherChatbotsDocument(t *testing.T) {
	store := &stubStore{
		bot:    &models.Chatbot{ID: "bot-1", UserID: "user-1"},
		source: &models.SourceDocument{ID: "src-1", ChatbotID: "bot-2"},
	}
	h := newDocumentHandler(store, &stubIngestor{})

	req := httptest.NewRequest(http.MethodDelete, "/api/chatbots/bot-1/documents/src-1", nil)
	req = withRoute(req, "user-1", map[string]string{"chatbotID": "bot-1", "documentID": "src-1"})

	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, store.deleted)
}

func TestSourceTypeFor(t *testing.T) {
	assert.Equal(t, models.SourceTypePDF, sourceTypeFor("Report.PDF"))
	assert.Equal(t, models.SourceTypeText, sourceTypeFor("readme.md"))
	assert.Equal(t, models.SourceTypeText, sourceTypeFor("notes.txt"))
	assert.Equal(t, "docx", sourceTypeFor("contract.docx"))
}
