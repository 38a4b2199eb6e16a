package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cesuygun/chatbot-platform/internal/config"
	"github.com/cesuygun/chatbot-platform/internal/core"
	"github.com/cesuygun/chatbot-platform/internal/core/ingestion_engine"
	"github.com/cesuygun/chatbot-platform/internal/models"
)

const maxUploadBytes = 32 << 20 // 32 MB

type DocumentHandler struct {
	store    core.KnowledgeStore
	objects  core.ObjectClient // nil when no object storage is configured
	ingestor ingestion_engine.Ingestor
	cfg      *config.Config
	log      zerolog.Logger
}

func NewDocumentHandler(store core.KnowledgeStore, objects core.ObjectClient, ing ingestion_engine.Ingestor, cfg *config.Config, log zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{store: store, objects: objects, ingestor: ing, cfg: cfg, log: log}
}

// Upload accepts a multipart file, archives it, and runs the ingestion
// pipeline synchronously. The response is the pipeline's result mapped to
// HTTP: the new source ID on success, or the failure reason.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	bot, ok := requireChatbot(h.store, w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "could not read file", http.StatusBadRequest)
		return
	}

	// Strip any path components a hostile client might send.
	cleanName := filepath.Base(header.Filename)
	up := models.SourceUpload{
		Data:       data,
		FileName:   cleanName,
		SourceType: sourceTypeFor(cleanName),
	}

	// Archive the original before ingesting so a failed run can be
	// retried from the archived bytes. Best effort when unconfigured.
	if h.objects != nil {
		key := fmt.Sprintf("%s/%s", bot.ID, cleanName)
		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if _, err := h.objects.UploadFile(r.Context(), h.cfg.BucketName, key, bytes.NewReader(data), contentType); err != nil {
			h.log.Warn().Err(err).Str("chatbot_id", bot.ID).Msg("archive upload failed, ingesting anyway")
		}
	}

	result, err := h.ingestor.Ingest(r.Context(), up, bot.ID)
	if err != nil {
		h.writeIngestError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	bot, ok := requireChatbot(h.store, w, r)
	if !ok {
		return
	}

	docs, err := h.store.ListSourcesByChatbot(r.Context(), bot.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(docs)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	bot, ok := requireChatbot(h.store, w, r)
	if !ok {
		return
	}

	docID := chi.URLParam(r, "documentID")
	doc, err := h.store.GetSourceByID(r.Context(), docID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if doc == nil || doc.ChatbotID != bot.ID {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	if err := h.store.DeleteSource(r.Context(), doc.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeIngestError maps the pipeline's typed failures onto status codes.
// The body carries only a human-readable message; the typed detail stays in
// logs.
func (h *DocumentHandler) writeIngestError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var (
		xerr *core.ExtractionError
		eerr *core.EmbeddingError
		serr *core.StorageError
	)
	switch {
	case errors.As(err, &xerr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &eerr):
		status = http.StatusBadGateway
	case errors.As(err, &serr):
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}

// sourceTypeFor maps a filename onto a declared source type. Unknown
// extensions fall through to the generic extractor.
func sourceTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return models.SourceTypePDF
	case ".txt", ".md":
		return models.SourceTypeText
	default:
		return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	}
}
