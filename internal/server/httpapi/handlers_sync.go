package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/tastediary/syncserver/internal/server/auth"
	"github.com/tastediary/syncserver/internal/server/models"
)

// SyncAPI is the sync protocol surface used by the handlers.
type SyncAPI interface {
	StartSession(ctx context.Context, ac *auth.Context, clientID int64) error
	EndSession(ctx context.Context, ac *auth.Context, clientID int64) error
	GetUpdates(ctx context.Context, ac *auth.Context, clientID int64) (*models.Delta, error)
	GetCategory(ctx context.Context, ac *auth.Context, clientID int64, uuid string) (*models.Category, error)
	GetEntry(ctx context.Context, ac *auth.Context, clientID int64, uuid string) (*models.Entry, error)
	GetEntryIDs(ctx context.Context, ac *auth.Context, clientID int64) (map[string]int64, error)
	PutCategory(ctx context.Context, ac *auth.Context, clientID int64, cat *models.Category) (*models.PushResult, error)
	PutEntry(ctx context.Context, ac *auth.Context, clientID int64, entry *models.Entry) (*models.PushResult, error)
}

type SyncHandler struct {
	sync     SyncAPI
	validate *validator.Validate
}

func NewSyncHandler(sync SyncAPI) *SyncHandler {
	return &SyncHandler{
		sync:     sync,
		validate: validator.New(),
	}
}

// syncParams extracts and checks the common handler inputs.
func (h *SyncHandler) syncParams(w http.ResponseWriter, r *http.Request) (*auth.Context, int64, bool) {
	ac, ok := authFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return nil, 0, false
	}
	clientID, ok := pathID(r, "clientId")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid client id"})
		return nil, 0, false
	}
	return ac, clientID, true
}

func pathUUID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := mux.Vars(r)["uuid"]
	if _, err := uuid.Parse(raw); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid uuid"})
		return "", false
	}
	return raw, true
}

func (h *SyncHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	ac, clientID, ok := h.syncParams(w, r)
	if !ok {
		return
	}
	if err := h.sync.StartSession(r.Context(), ac, clientID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *SyncHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	ac, clientID, ok := h.syncParams(w, r)
	if !ok {
		return
	}
	if err := h.sync.EndSession(r.Context(), ac, clientID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *SyncHandler) GetUpdates(w http.ResponseWriter, r *http.Request) {
	ac, clientID, ok := h.syncParams(w, r)
	if !ok {
		return
	}
	delta, err := h.sync.GetUpdates(r.Context(), ac, clientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, delta)
}

func (h *SyncHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	ac, clientID, ok := h.syncParams(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	cat, err := h.sync.GetCategory(r.Context(), ac, clientID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (h *SyncHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	ac, clientID, ok := h.syncParams(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	entry, err := h.sync.GetEntry(r.Context(), ac, clientID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *SyncHandler) GetEntryIDs(w http.ResponseWriter, r *http.Request) {
	ac, clientID, ok := h.syncParams(w, r)
	if !ok {
		return
	}
	ids, err := h.sync.GetEntryIDs(r.Context(), ac, clientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *SyncHandler) PutCategory(w http.ResponseWriter, r *http.Request) {
	ac, clientID, ok := h.syncParams(w, r)
	if !ok {
		return
	}

	var req models.Category
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Var(req.UUID, "required,uuid"); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid category uuid"})
		return
	}

	result, err := h.sync.PutCategory(r.Context(), ac, clientID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *SyncHandler) PutEntry(w http.ResponseWriter, r *http.Request) {
	ac, clientID, ok := h.syncParams(w, r)
	if !ok {
		return
	}

	var req models.Entry
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Var(req.UUID, "required,uuid"); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid entry uuid"})
		return
	}
	if err := h.validate.Var(req.CatUUID, "omitempty,uuid"); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid category uuid"})
		return
	}

	result, err := h.sync.PutEntry(r.Context(), ac, clientID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
