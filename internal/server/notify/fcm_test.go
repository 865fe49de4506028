package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotify_EmptyAddresses(t *testing.T) {
	n := NewFCMNotifier("http://unused", "k")
	results, err := n.Notify(t.Context(), nil, "sync")
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestNotify_MapsOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key=server-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req fcmRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, []string{"tok-a", "tok-b", "tok-c", "tok-d"}, req.RegistrationIDs)
		assert.Equal(t, "sync", req.CollapseKey)

		_ = json.NewEncoder(w).Encode(fcmResponse{
			Success:      3,
			Failure:      1,
			CanonicalIDs: 1,
			Results: []fcmResult{
				{MessageID: "m1"},
				{MessageID: "m2", RegistrationID: "tok-b2"},
				{Error: "NotRegistered"},
				{Error: "Unavailable"},
			},
		})
	}))
	defer srv.Close()

	n := NewFCMNotifier(srv.URL, "server-key")
	results, err := n.Notify(t.Context(), []string{"tok-a", "tok-b", "tok-c", "tok-d"}, "sync")
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, Result{Address: "tok-a", Outcome: Delivered}, results[0])
	assert.Equal(t, Result{Address: "tok-b", Outcome: Rotated, NewAddress: "tok-b2"}, results[1])
	assert.Equal(t, Result{Address: "tok-c", Outcome: Invalid}, results[2])
	assert.Equal(t, Result{Address: "tok-d", Outcome: Failed}, results[3])
}

func TestNotify_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewFCMNotifier(srv.URL, "bad-key")
	_, err := n.Notify(t.Context(), []string{"tok-a"}, "sync")
	require.Error(t, err)
}

func TestNotify_ShortResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(fcmResponse{Success: 1, Results: []fcmResult{{MessageID: "m1"}}})
	}))
	defer srv.Close()

	n := NewFCMNotifier(srv.URL, "k")
	results, err := n.Notify(t.Context(), []string{"tok-a", "tok-b"}, "sync")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, Delivered, results[0].Outcome)
	assert.Equal(t, Failed, results[1].Outcome)
}
