package formsapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const formJSON = `{"id": 5, "is_locked": false, "allow_anonymous": true, "questions": [
	{"id": 1, "text": "Name", "type": "short_text", "required": true}
]}`

func newTestFetcher(url string) *HTTPFetcher {
	return &HTTPFetcher{BaseURL: url, Client: &http.Client{}, Timeout: time.Second, Endpoints: DefaultEndpoints}
}

func TestFetch_PrimaryEndpoint(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(formJSON))
	}))
	defer srv.Close()

	form, err := newTestFetcher(srv.URL).Fetch(context.Background(), 5, "")
	require.NoError(t, err)
	assert.Equal(t, 5, form.ID)
	assert.Len(t, form.Questions, 1)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/forms/5/meta"}, paths)
}

func TestFetch_FallsBackWhenMetaFails(t *testing.T) {
	var mu sync.Mutex
	var auth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = append(auth, r.Header.Get("Authorization"))
		mu.Unlock()
		if r.URL.Path == "/forms/5/meta" {
			http.Error(w, `{"detail":"Form not found"}`, http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id": 5, "is_locked": true, "questions": []}`))
	}))
	defer srv.Close()

	form, err := newTestFetcher(srv.URL).Fetch(context.Background(), 5, "Bearer abc")
	require.NoError(t, err)
	assert.True(t, form.IsLocked)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Bearer abc", "Bearer abc"}, auth)
}

func TestFetch_LastFailurePassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/forms/9/meta" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"Not allowed"}`))
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv.URL).Fetch(context.Background(), 9, "")
	var failed *FetchFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, http.StatusForbidden, failed.Status)
	assert.Equal(t, `{"detail":"Not allowed"}`, failed.Body)
}

func TestFetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestFetcher(url).Fetch(context.Background(), 1, "")
	var unavailable *RemoteUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Contains(t, err.Error(), "Forms service unreachable")
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL)
	f.Timeout = 50 * time.Millisecond
	_, err := f.Fetch(context.Background(), 1, "")
	var unavailable *RemoteUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

func TestFetch_MalformedSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": 2, "questions": [{"id": "first", "type": "short_text"}]}`))
	}))
	defer srv.Close()

	_, err := newTestFetcher(srv.URL).Fetch(context.Background(), 2, "")
	var malformed *MalformedSchemaError
	require.True(t, errors.As(err, &malformed))
	assert.Contains(t, err.Error(), "Malformed form meta")
}
