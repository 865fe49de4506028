package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastediary/syncserver/internal/common"
	"github.com/tastediary/syncserver/internal/logging"
	"github.com/tastediary/syncserver/internal/server/auth"
	"github.com/tastediary/syncserver/internal/server/models"
)

var testSecret = []byte("test-secret")

type fakeSync struct {
	startErr   error
	endErr     error
	delta      *models.Delta
	cat        *models.Category
	catErr     error
	entry      *models.Entry
	entryErr   error
	ids        map[string]int64
	pushResult *models.PushResult
	pushErr    error

	gotClientID int64
	gotUUID     string
	gotCategory *models.Category
	gotEntry    *models.Entry
}

func (f *fakeSync) StartSession(ctx context.Context, ac *auth.Context, clientID int64) error {
	f.gotClientID = clientID
	return f.startErr
}

func (f *fakeSync) EndSession(ctx context.Context, ac *auth.Context, clientID int64) error {
	f.gotClientID = clientID
	return f.endErr
}

func (f *fakeSync) GetUpdates(ctx context.Context, ac *auth.Context, clientID int64) (*models.Delta, error) {
	return f.delta, nil
}

func (f *fakeSync) GetCategory(ctx context.Context, ac *auth.Context, clientID int64, uuid string) (*models.Category, error) {
	f.gotUUID = uuid
	return f.cat, f.catErr
}

func (f *fakeSync) GetEntry(ctx context.Context, ac *auth.Context, clientID int64, uuid string) (*models.Entry, error) {
	f.gotUUID = uuid
	return f.entry, f.entryErr
}

func (f *fakeSync) GetEntryIDs(ctx context.Context, ac *auth.Context, clientID int64) (map[string]int64, error) {
	return f.ids, nil
}

func (f *fakeSync) PutCategory(ctx context.Context, ac *auth.Context, clientID int64, cat *models.Category) (*models.PushResult, error) {
	f.gotCategory = cat
	return f.pushResult, f.pushErr
}

func (f *fakeSync) PutEntry(ctx context.Context, ac *auth.Context, clientID int64, entry *models.Entry) (*models.PushResult, error) {
	f.gotEntry = entry
	return f.pushResult, f.pushErr
}

type fakeClientAPI struct {
	reg           *models.Registration
	unregErr      error
	gotPushToken  string
	gotClientID   int64
	setTokenCalls int
}

func (f *fakeClientAPI) Register(ctx context.Context, ac *auth.Context, pushToken string) (*models.Registration, error) {
	f.gotPushToken = pushToken
	return f.reg, nil
}

func (f *fakeClientAPI) Unregister(ctx context.Context, ac *auth.Context, clientID int64) error {
	f.gotClientID = clientID
	return f.unregErr
}

func (f *fakeClientAPI) SetPushToken(ctx context.Context, ac *auth.Context, clientID int64, pushToken string) error {
	f.setTokenCalls++
	f.gotClientID = clientID
	f.gotPushToken = pushToken
	return nil
}

type fakePhotoAPI struct {
	key, putURL, getURL string
	gotKey              string
}

func (f *fakePhotoAPI) PresignUpload(ctx context.Context) (string, string, error) {
	return f.key, f.putURL, nil
}

func (f *fakePhotoAPI) PresignDownload(ctx context.Context, key string) (string, error) {
	f.gotKey = key
	return f.getURL, nil
}

func newTestRouter(t *testing.T, sync *fakeSync, clients *fakeClientAPI, photos *fakePhotoAPI) http.Handler {
	t.Helper()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewRouter(sync, clients, photos, testSecret, logger)
}

func bearerToken(t *testing.T) string {
	t.Helper()
	tok, err := auth.GenerateToken("uid-1", "u@example.com", testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth_Unauthenticated(t *testing.T) {
	h := newTestRouter(t, &fakeSync{}, &fakeClientAPI{}, &fakePhotoAPI{})
	rec := doRequest(t, h, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_MissingToken(t *testing.T) {
	h := newTestRouter(t, &fakeSync{}, &fakeClientAPI{}, &fakePhotoAPI{})
	rec := doRequest(t, h, http.MethodPost, "/api/v1/sync/start/7", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_BadToken(t *testing.T) {
	h := newTestRouter(t, &fakeSync{}, &fakeClientAPI{}, &fakePhotoAPI{})
	rec := doRequest(t, h, http.MethodPost, "/api/v1/sync/start/7", nil, "Bearer not.a.jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister(t *testing.T) {
	clients := &fakeClientAPI{reg: &models.Registration{ClientID: 42}}
	h := newTestRouter(t, &fakeSync{}, clients, &fakePhotoAPI{})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/register",
		map[string]string{"pushToken": "tok-a"}, bearerToken(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var reg models.Registration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.Equal(t, int64(42), reg.ClientID)
	assert.Equal(t, "tok-a", clients.gotPushToken)
}

func TestUnregister_NotFound(t *testing.T) {
	clients := &fakeClientAPI{unregErr: common.ErrNotFound}
	h := newTestRouter(t, &fakeSync{}, clients, &fakePhotoAPI{})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/unregister/42", nil, bearerToken(t))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartSession_Locked(t *testing.T) {
	sync := &fakeSync{startErr: common.ErrLocked}
	h := newTestRouter(t, sync, &fakeClientAPI{}, &fakePhotoAPI{})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/sync/start/7", nil, bearerToken(t))
	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, int64(7), sync.gotClientID)
}

func TestPutCategory_ConflictIsOK(t *testing.T) {
	sync := &fakeSync{pushResult: &models.PushResult{Accepted: false}}
	h := newTestRouter(t, sync, &fakeClientAPI{}, &fakePhotoAPI{})

	body := map[string]any{
		"uuid": "5f0a7a9c-3a9e-4a5a-9b1a-0a2b3c4d5e6f",
		"name": "Coffee",
		"age":  100,
	}
	rec := doRequest(t, h, http.MethodPost, "/api/v1/sync/cats/7", body, bearerToken(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.PushResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Accepted)
	require.NotNil(t, sync.gotCategory)
	assert.Equal(t, "5f0a7a9c-3a9e-4a5a-9b1a-0a2b3c4d5e6f", sync.gotCategory.UUID)
}

func TestPutCategory_InvalidUUID(t *testing.T) {
	h := newTestRouter(t, &fakeSync{}, &fakeClientAPI{}, &fakePhotoAPI{})

	body := map[string]any{"uuid": "not-a-uuid", "name": "Coffee"}
	rec := doRequest(t, h, http.MethodPost, "/api/v1/sync/cats/7", body, bearerToken(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPutEntry_UnknownCategory(t *testing.T) {
	sync := &fakeSync{pushErr: common.ErrNotFound}
	h := newTestRouter(t, sync, &fakeClientAPI{}, &fakePhotoAPI{})

	body := map[string]any{
		"uuid":    "5f0a7a9c-3a9e-4a5a-9b1a-0a2b3c4d5e6f",
		"catUuid": "6f0a7a9c-3a9e-4a5a-9b1a-0a2b3c4d5e6f",
		"title":   "Espresso",
	}
	rec := doRequest(t, h, http.MethodPost, "/api/v1/sync/entries/7", body, bearerToken(t))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutEntry_DecodesUUIDs(t *testing.T) {
	sync := &fakeSync{pushResult: &models.PushResult{Accepted: true}}
	h := newTestRouter(t, sync, &fakeClientAPI{}, &fakePhotoAPI{})

	body := map[string]any{
		"uuid":    "5f0a7a9c-3a9e-4a5a-9b1a-0a2b3c4d5e6f",
		"catUuid": "6f0a7a9c-3a9e-4a5a-9b1a-0a2b3c4d5e6f",
		"title":   "Espresso",
	}
	rec := doRequest(t, h, http.MethodPost, "/api/v1/sync/entries/7", body, bearerToken(t))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, sync.gotEntry)
	assert.Equal(t, "5f0a7a9c-3a9e-4a5a-9b1a-0a2b3c4d5e6f", sync.gotEntry.UUID)
	assert.Equal(t, "6f0a7a9c-3a9e-4a5a-9b1a-0a2b3c4d5e6f", sync.gotEntry.CatUUID)
}

func TestPutEntry_InvalidCatUUID(t *testing.T) {
	h := newTestRouter(t, &fakeSync{}, &fakeClientAPI{}, &fakePhotoAPI{})

	body := map[string]any{
		"uuid":    "5f0a7a9c-3a9e-4a5a-9b1a-0a2b3c4d5e6f",
		"catUuid": "not-a-uuid",
		"title":   "Espresso",
	}
	rec := doRequest(t, h, http.MethodPost, "/api/v1/sync/entries/7", body, bearerToken(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCategory_NotFound(t *testing.T) {
	sync := &fakeSync{catErr: common.ErrNotFound}
	h := newTestRouter(t, sync, &fakeClientAPI{}, &fakePhotoAPI{})

	rec := doRequest(t, h, http.MethodGet,
		"/api/v1/sync/cats/7/5f0a7a9c-3a9e-4a5a-9b1a-0a2b3c4d5e6f", nil, bearerToken(t))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCategory_InvalidUUID(t *testing.T) {
	h := newTestRouter(t, &fakeSync{}, &fakeClientAPI{}, &fakePhotoAPI{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/sync/cats/7/nope", nil, bearerToken(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUpdates(t *testing.T) {
	sync := &fakeSync{delta: &models.Delta{
		DeletedCats:    map[string]int64{"c-9": 500},
		DeletedEntries: map[string]int64{},
	}}
	h := newTestRouter(t, sync, &fakeClientAPI{}, &fakePhotoAPI{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/sync/updates/7", nil, bearerToken(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var delta models.Delta
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &delta))
	assert.Equal(t, map[string]int64{"c-9": 500}, delta.DeletedCats)
}

func TestGetEntryIDs(t *testing.T) {
	sync := &fakeSync{ids: map[string]int64{"e-1": 21}}
	h := newTestRouter(t, sync, &fakeClientAPI{}, &fakePhotoAPI{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/sync/entry-ids/7", nil, bearerToken(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var ids map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
	assert.Equal(t, map[string]int64{"e-1": 21}, ids)
}

func TestPhotoUploadURL(t *testing.T) {
	photos := &fakePhotoAPI{key: "photos/2026/8/29/abc", putURL: "http://signed-put"}
	h := newTestRouter(t, &fakeSync{}, &fakeClientAPI{}, photos)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/photos/upload-url", nil, bearerToken(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp uploadURLResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "photos/2026/8/29/abc", resp.StorageKey)
	assert.Equal(t, "http://signed-put", resp.URL)
}

func TestPhotoDownloadURL_MissingKey(t *testing.T) {
	h := newTestRouter(t, &fakeSync{}, &fakeClientAPI{}, &fakePhotoAPI{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/photos/download-url", nil, bearerToken(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetPushToken(t *testing.T) {
	clients := &fakeClientAPI{}
	h := newTestRouter(t, &fakeSync{}, clients, &fakePhotoAPI{})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/push-token/42",
		map[string]string{"pushToken": "tok-b"}, bearerToken(t))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, clients.setTokenCalls)
	assert.Equal(t, "tok-b", clients.gotPushToken)
}
