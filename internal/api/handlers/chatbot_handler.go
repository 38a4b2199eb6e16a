package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	middleware "github.com/cesuygun/chatbot-platform/internal/api/middlewares"
	"github.com/cesuygun/chatbot-platform/internal/core"
	"github.com/cesuygun/chatbot-platform/internal/models"
)

type ChatbotHandler struct {
	store core.KnowledgeStore
}

func NewChatbotHandler(store core.KnowledgeStore) *ChatbotHandler {
	return &ChatbotHandler{store: store}
}

type createChatbotRequest struct {
	Name string `json:"name"`
}

func (h *ChatbotHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	var req createChatbotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}

	bot := &models.Chatbot{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   req.Name,
	}
	if err := h.store.CreateChatbot(r.Context(), bot); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(bot)
}

func (h *ChatbotHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	bots, err := h.store.ListChatbotsByUser(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bots)
}

func (h *ChatbotHandler) Get(w http.ResponseWriter, r *http.Request) {
	bot, ok := requireChatbot(h.store, w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bot)
}

func (h *ChatbotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	bot, ok := requireChatbot(h.store, w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteChatbot(r.Context(), bot.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireChatbot loads the chatbot from the URL and checks the caller owns
// it; on failure it writes the response itself.
func requireChatbot(store core.KnowledgeStore, w http.ResponseWriter, r *http.Request) (*models.Chatbot, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return nil, false
	}

	botID := chi.URLParam(r, "chatbotID")
	bot, err := store.GetChatbotByID(r.Context(), botID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	if bot == nil || bot.UserID != userID {
		http.Error(w, "chatbot not found", http.StatusNotFound)
		return nil, false
	}
	return bot, true
}
