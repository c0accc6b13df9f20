package apiclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/auth/login", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req["username"])

		_ = json.NewEncoder(w).Encode(LoginResponse{
			AccessToken:  "token-123",
			RefreshToken: "refresh-456",
			TokenType:    "Bearer",
			User:         User{Username: "alice", Role: "user"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.Login("alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "token-123", resp.AccessToken)
	assert.Equal(t, "token-123", c.token)
}

func TestBearerTokenSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]Folder{{ID: "f1", Name: "photos"}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetToken("tok")
	folders, err := c.ListFolders()
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "photos", folders[0].Name)
}

func TestProblemDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"title":"Not Found","status":404,"detail":"Share not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetShare("MISSING")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "Share not found", apiErr.Error())
}

func TestNonProblemErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.ListOperations()
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "bad gateway", apiErr.Error())
}

func TestTrailingSlashNormalized(t *testing.T) {
	c := New("http://localhost:8419/")
	assert.Equal(t, "http://localhost:8419", c.BaseURL())
}

func TestExportImportShare(t *testing.T) {
	record := []byte{0x01, 0x02, 0x03, 0xff}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/shares/ABC/export":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(record)
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/shares/import":
			assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(Share{ShareID: "ABC", AccessLevel: "public"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)

	exported, err := c.ExportShare("ABC")
	require.NoError(t, err)
	assert.Equal(t, record, exported)

	share, err := c.ImportShare(exported)
	require.NoError(t, err)
	assert.Equal(t, "ABC", share.ShareID)
}

func TestOperationFinished(t *testing.T) {
	assert.False(t, (&Operation{Status: OpRunning}).Finished())
	assert.True(t, (&Operation{Status: OpSucceeded}).Finished())
	assert.True(t, (&Operation{Status: OpFailed}).Finished())
	assert.True(t, (&Operation{Status: OpCancelled}).Finished())
}
