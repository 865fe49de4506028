package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tastediary/syncserver/internal/logging"
)

// NewRouter assembles the /api/v1 surface. Everything except the health
// probe sits behind bearer auth.
func NewRouter(sync SyncAPI, clients ClientAPI, photos PhotoAPI, secretKey []byte, logger logging.Logger) *mux.Router {
	syncHandler := NewSyncHandler(sync)
	clientHandler := NewClientHandler(clients)
	photoHandler := NewPhotoHandler(photos)

	r := mux.NewRouter()
	r.Use(LoggerMiddleware(logger))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(AuthMiddleware(secretKey))

	api.HandleFunc("/register", clientHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/unregister/{clientId:[0-9]+}", clientHandler.Unregister).Methods(http.MethodPost)
	api.HandleFunc("/push-token/{clientId:[0-9]+}", clientHandler.SetPushToken).Methods(http.MethodPost)

	api.HandleFunc("/sync/start/{clientId:[0-9]+}", syncHandler.StartSession).Methods(http.MethodPost)
	api.HandleFunc("/sync/end/{clientId:[0-9]+}", syncHandler.EndSession).Methods(http.MethodPost)
	api.HandleFunc("/sync/updates/{clientId:[0-9]+}", syncHandler.GetUpdates).Methods(http.MethodGet)
	api.HandleFunc("/sync/cats/{clientId:[0-9]+}/{uuid}", syncHandler.GetCategory).Methods(http.MethodGet)
	api.HandleFunc("/sync/cats/{clientId:[0-9]+}", syncHandler.PutCategory).Methods(http.MethodPost)
	api.HandleFunc("/sync/entries/{clientId:[0-9]+}/{uuid}", syncHandler.GetEntry).Methods(http.MethodGet)
	api.HandleFunc("/sync/entries/{clientId:[0-9]+}", syncHandler.PutEntry).Methods(http.MethodPost)
	api.HandleFunc("/sync/entry-ids/{clientId:[0-9]+}", syncHandler.GetEntryIDs).Methods(http.MethodGet)

	api.HandleFunc("/photos/upload-url", photoHandler.UploadURL).Methods(http.MethodGet)
	api.HandleFunc("/photos/download-url", photoHandler.DownloadURL).Methods(http.MethodGet)

	return r
}
