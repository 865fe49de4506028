package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/tastediary/syncserver/internal/server/auth"
	"github.com/tastediary/syncserver/internal/server/models"
)

// ClientAPI is the device registration surface used by the handlers.
type ClientAPI interface {
	Register(ctx context.Context, ac *auth.Context, pushToken string) (*models.Registration, error)
	Unregister(ctx context.Context, ac *auth.Context, clientID int64) error
	SetPushToken(ctx context.Context, ac *auth.Context, clientID int64, pushToken string) error
}

type ClientHandler struct {
	clients  ClientAPI
	validate *validator.Validate
}

func NewClientHandler(clients ClientAPI) *ClientHandler {
	return &ClientHandler{
		clients:  clients,
		validate: validator.New(),
	}
}

type registerRequest struct {
	PushToken string `json:"pushToken"`
}

type pushTokenRequest struct {
	PushToken string `json:"pushToken" validate:"required"`
}

// authFromRequest pulls the identity placed by AuthMiddleware.
func authFromRequest(r *http.Request) (*auth.Context, bool) {
	return auth.FromContext(r.Context())
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return id, err == nil && id > 0
}

func (h *ClientHandler) Register(w http.ResponseWriter, r *http.Request) {
	ac, ok := authFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	reg, err := h.clients.Register(r.Context(), ac, req.PushToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (h *ClientHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	ac, ok := authFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	clientID, ok := pathID(r, "clientId")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid client id"})
		return
	}

	if err := h.clients.Unregister(r.Context(), ac, clientID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *ClientHandler) SetPushToken(w http.ResponseWriter, r *http.Request) {
	ac, ok := authFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	clientID, ok := pathID(r, "clientId")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid client id"})
		return
	}

	var req pushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "pushToken is required"})
		return
	}

	if err := h.clients.SetPushToken(r.Context(), ac, clientID, req.PushToken); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
