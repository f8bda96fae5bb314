package docstore

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-github/v66/github"
	"github.com/stretchr/testify/require"
)

// fakeContentsAPI implements the two contents endpoints with the same SHA rules as GitHub.
type fakeContentsAPI struct {
	mu       sync.Mutex
	files    map[string][]byte
	messages []string
	branches []string
	fail     int
	// hidden answers 404 everywhere, like a private repository the token lost access to
	hidden bool
}

func blobSHA(b []byte) string {
	h := sha1.Sum(b)
	return hex.EncodeToString(h[:])
}

func (f *fakeContentsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != 0 {
		w.WriteHeader(f.fail)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
		return
	}
	if f.hidden {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
		return
	}
	if r.Method == http.MethodGet && r.URL.Path == "/repos/tutor/lessons-data" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"lessons-data","full_name":"tutor/lessons-data","private":true}`))
		return
	}
	const prefix = "/repos/tutor/lessons-data/contents/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	p := strings.TrimPrefix(r.URL.Path, prefix)
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		f.branches = append(f.branches, r.URL.Query().Get("ref"))
		body, ok := f.files[p]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"type":     "file",
			"encoding": "base64",
			"path":     p,
			"sha":      blobSHA(body),
			"content":  base64.StdEncoding.EncodeToString(body),
		})
	case http.MethodPut:
		var req struct {
			Message string  `json:"message"`
			Content string  `json:"content"`
			SHA     *string `json:"sha"`
			Branch  string  `json:"branch"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		current, exists := f.files[p]
		switch {
		case exists && req.SHA == nil:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"Invalid request. \"sha\" wasn't supplied."}`))
			return
		case exists && *req.SHA != blobSHA(current):
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"does not match"}`))
			return
		case !exists && req.SHA != nil:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		body, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.files[p] = body
		f.messages = append(f.messages, req.Message)
		f.branches = append(f.branches, req.Branch)
		if exists {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusCreated)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": map[string]string{"path": p, "sha": blobSHA(body)},
			"commit":  map[string]string{"sha": "c0ffee"},
		})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newGitHubTestStore(t *testing.T) (*GitHubStore, *fakeContentsAPI) {
	t.Helper()
	api := &fakeContentsAPI{files: map[string][]byte{}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client := NewGitHubClient("test-token", srv.Client())
	u, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = u
	return NewGitHubStore(client, "tutor", "lessons-data", "main", "data"), api
}

func TestGitHubStore_AbsentDocument(t *testing.T) {
	s, _ := newGitHubTestStore(t)
	doc, err := s.Fetch(context.Background(), "students")
	require.NoError(t, err)
	require.False(t, doc.Exists())
}

func TestGitHubStore_CreateFetchUpdate(t *testing.T) {
	s, api := newGitHubTestStore(t)
	ctx := context.Background()

	r1, err := s.Put(ctx, "students", json.RawMessage(`[{"name":"Dana","id":"s1","price":170}]`), NoRevision, "Save students")
	require.NoError(t, err)
	require.NotEqual(t, NoRevision, r1)

	stored := string(api.files["data/students.json"])
	require.Equal(t, "[\n  {\n    \"id\": \"s1\",\n    \"name\": \"Dana\",\n    \"price\": 170\n  }\n]\n", stored)
	require.Equal(t, []string{"Save students"}, api.messages)

	doc, err := s.Fetch(ctx, "students")
	require.NoError(t, err)
	require.Equal(t, r1, doc.Revision)
	require.JSONEq(t, `[{"id":"s1","name":"Dana","price":170}]`, string(doc.Content))

	r2, err := s.Put(ctx, "students", json.RawMessage(`[]`), r1, "")
	require.NoError(t, err)
	require.NotEqual(t, r1, r2)
	require.Equal(t, "Update students", api.messages[1])
	for _, b := range api.branches {
		require.Equal(t, "main", b)
	}
}

func TestGitHubStore_Conflicts(t *testing.T) {
	s, api := newGitHubTestStore(t)
	ctx := context.Background()

	r1, err := s.Put(ctx, "payments", json.RawMessage(`{}`), NoRevision, "")
	require.NoError(t, err)
	_, err = s.Put(ctx, "payments", json.RawMessage(`{"e1":{"status":"paid"}}`), r1, "")
	require.NoError(t, err)
	before := string(api.files["data/payments.json"])

	// stale sha -> 409
	_, err = s.Put(ctx, "payments", json.RawMessage(`{"e2":{"status":"paid"}}`), r1, "")
	require.ErrorIs(t, err, ErrRevisionConflict)

	// create without sha over existing file -> 422
	_, err = s.Put(ctx, "payments", json.RawMessage(`{}`), NoRevision, "")
	require.ErrorIs(t, err, ErrRevisionConflict)

	// update of a file that does not exist -> 404
	_, err = s.Put(ctx, "credentials", json.RawMessage(`{}`), Revision("deadbeef"), "")
	require.ErrorIs(t, err, ErrRevisionConflict)

	require.Equal(t, before, string(api.files["data/payments.json"]))
}

func TestGitHubStore_Unavailable(t *testing.T) {
	s, api := newGitHubTestStore(t)
	api.fail = http.StatusInternalServerError

	_, err := s.Fetch(context.Background(), "students")
	require.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = s.Put(context.Background(), "students", json.RawMessage(`[]`), NoRevision, "")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.NotErrorIs(t, err, ErrRevisionConflict)

	api.fail = http.StatusForbidden
	_, err = s.Fetch(context.Background(), "students")
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestGitHubStore_MalformedContent(t *testing.T) {
	s, api := newGitHubTestStore(t)
	api.files["data/students.json"] = []byte("not json")
	_, err := s.Fetch(context.Background(), "students")
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestIsConflictStatus(t *testing.T) {
	require.True(t, isConflictStatus(http.StatusConflict, NoRevision))
	require.True(t, isConflictStatus(http.StatusUnprocessableEntity, NoRevision))
	require.True(t, isConflictStatus(http.StatusNotFound, Revision("x")))
	require.False(t, isConflictStatus(http.StatusNotFound, NoRevision))
	require.False(t, isConflictStatus(http.StatusInternalServerError, Revision("x")))
}

func TestIsRateLimited(t *testing.T) {
	require.True(t, IsRateLimited(&github.RateLimitError{Message: "slow down"}))
	require.False(t, IsRateLimited(ErrStoreUnavailable))
}

func TestGitHubStore_LostAccessIsUnavailable(t *testing.T) {
	s, api := newGitHubTestStore(t)
	ctx := context.Background()
	rev, err := s.Put(ctx, "payments", json.RawMessage(`{}`), NoRevision, "")
	require.NoError(t, err)

	api.hidden = true
	_, err = s.Put(ctx, "payments", json.RawMessage(`{"e1":{"status":"paid"}}`), rev, "")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.NotErrorIs(t, err, ErrRevisionConflict)
}
