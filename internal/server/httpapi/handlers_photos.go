package httpapi

import (
	"context"
	"net/http"
)

// PhotoAPI issues presigned URLs for photo content.
type PhotoAPI interface {
	PresignUpload(ctx context.Context) (string, string, error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

type PhotoHandler struct {
	photos PhotoAPI
}

func NewPhotoHandler(photos PhotoAPI) *PhotoHandler {
	return &PhotoHandler{photos: photos}
}

type uploadURLResponse struct {
	StorageKey string `json:"storageKey"`
	URL        string `json:"url"`
}

type downloadURLResponse struct {
	URL string `json:"url"`
}

func (h *PhotoHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
	key, url, err := h.photos.PresignUpload(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadURLResponse{StorageKey: key, URL: url})
}

func (h *PhotoHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing key"})
		return
	}

	url, err := h.photos.PresignDownload(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, downloadURLResponse{URL: url})
}
