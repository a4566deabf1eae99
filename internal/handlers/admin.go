package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"ascii-arena/internal/audit"
	"ascii-arena/internal/auth"
	"ascii-arena/internal/middleware"
	"ascii-arena/internal/models"
	"ascii-arena/internal/store"

	"github.com/rs/zerolog/log"
)

const maxAsciiOutputBytes = 64 * 1024

// AdminHandler manages arena content. Everything except Login sits behind
// RequireAdmin.
type AdminHandler struct {
	store           store.Store
	jwtService      *auth.JWTService
	passwordService *auth.PasswordService
	passwordHash    string
	audit           *audit.Logger
}

func NewAdminHandler(st store.Store, jwtService *auth.JWTService, passwordService *auth.PasswordService, passwordHash string, auditLog *audit.Logger) *AdminHandler {
	return &AdminHandler{
		store:           st,
		jwtService:      jwtService,
		passwordService: passwordService,
		passwordHash:    passwordHash,
		audit:           auditLog,
	}
}

type AdminLoginRequest struct {
	Password string `json:"password"`
}

type AdminLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CreateModelRequest struct {
	ModelName   string                 `json:"model_name"`
	ModelConfig string                 `json:"model_config"`
	Metadata    map[string]interface{} `json:"metadata"`
}

type CreatePromptRequest struct {
	Text string `json:"text"`
}

type CreateOutputRequest struct {
	PromptID string `json:"prompt_id"`
	ModelID  string `json:"model_id"`
	Content  string `json:"content"`
}

// Login exchanges the admin password for a bearer token.
// POST /api/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req AdminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.passwordService.CheckAdmin(h.passwordHash, req.Password); err != nil {
		h.audit.LogRequest(audit.EventAdminLoginFailed, r, err.Error())
		if errors.Is(err, auth.ErrAdminDisabled) {
			respondWithError(w, http.StatusForbidden, "Admin login is disabled")
			return
		}
		respondWithError(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	token, expiresAt, err := h.jwtService.GenerateAdminToken("admin")
	if err != nil {
		log.Error().Err(err).Msg("failed to sign admin token")
		respondWithError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.audit.LogRequest(audit.EventAdminLogin, r, "")
	respondWithJSON(w, http.StatusOK, AdminLoginResponse{Token: token, ExpiresAt: expiresAt})
}

// CreateModel registers a model at the starting rating.
// POST /api/admin/models
func (h *AdminHandler) CreateModel(w http.ResponseWriter, r *http.Request) {
	var req CreateModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ModelName = strings.TrimSpace(req.ModelName)
	if req.ModelName == "" {
		respondWithError(w, http.StatusBadRequest, "model_name is required")
		return
	}

	m := &models.Model{
		ModelName:   req.ModelName,
		ModelConfig: req.ModelConfig,
		Metadata:    req.Metadata,
	}
	if err := h.store.CreateModel(r.Context(), m); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respondWithError(w, http.StatusConflict, "A model with this name and config already exists")
			return
		}
		log.Error().Err(err).Str("model", req.ModelName).Msg("failed to create model")
		respondWithError(w, http.StatusInternalServerError, "Failed to create model")
		return
	}

	h.logCreate(r, "model="+m.ID)
	respondWithJSON(w, http.StatusCreated, m)
}

// CreatePrompt adds a prompt.
// POST /api/admin/prompts
func (h *AdminHandler) CreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req CreatePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		respondWithError(w, http.StatusBadRequest, "text is required")
		return
	}

	p := &models.Prompt{Text: req.Text}
	if err := h.store.CreatePrompt(r.Context(), p); err != nil {
		log.Error().Err(err).Msg("failed to create prompt")
		respondWithError(w, http.StatusInternalServerError, "Failed to create prompt")
		return
	}

	h.logCreate(r, "prompt="+p.ID)
	respondWithJSON(w, http.StatusCreated, p)
}

// CreateOutput stores a model's ASCII art for a prompt.
// POST /api/admin/outputs
func (h *AdminHandler) CreateOutput(w http.ResponseWriter, r *http.Request) {
	var req CreateOutputRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAsciiOutputBytes)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PromptID == "" || req.ModelID == "" || req.Content == "" {
		respondWithError(w, http.StatusBadRequest, "prompt_id, model_id and content are required")
		return
	}

	o := &models.AsciiOutput{
		PromptID: req.PromptID,
		ModelID:  req.ModelID,
		Content:  req.Content,
	}
	if err := h.store.CreateOutput(r.Context(), o); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Prompt or model not found")
			return
		}
		log.Error().Err(err).Msg("failed to create output")
		respondWithError(w, http.StatusInternalServerError, "Failed to create output")
		return
	}

	h.logCreate(r, "output="+o.ID)
	respondWithJSON(w, http.StatusCreated, o)
}

func (h *AdminHandler) logCreate(r *http.Request, details string) {
	if claims, ok := middleware.GetAdminFromContext(r.Context()); ok {
		details = "by=" + claims.Subject + " " + details
	}
	h.audit.LogRequest(audit.EventAdminCreate, r, details)
}
